// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/campus/internal/device"
	applog "github.com/hitoshi/campus/internal/logger"
	"github.com/hitoshi/campus/internal/model"
)

// DeviceIDHeader は端末IDを運ぶリクエストヘッダー。
const DeviceIDHeader = "X-Device-ID"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// deviceContextKey はリクエストコンテキストに端末を格納するためのキー。
var deviceContextKey = contextKey("device")

// DeviceAttacher は端末IDから端末を取得する。device.Registryが実装する。
type DeviceAttacher interface {
	Attach(ctx context.Context, id string) (*device.Device, error)
}

// NewDeviceMiddleware はX-Device-IDヘッダーから端末を解決し、
// リクエストコンテキストに注入するミドルウェアを返す。
// 未登録の端末IDはIDプロバイダー側にセッションが残っている場合のみ復元される。
// ヘッダーがない、形式が不正、またはセッションのない未登録IDの場合は401 Unauthorizedを返す。
func NewDeviceMiddleware(attacher DeviceAttacher) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. ヘッダーから端末IDを取得
			id := r.Header.Get(DeviceIDHeader)
			if id == "" {
				WriteErrorResponse(w, r, http.StatusUnauthorized, model.NewDeviceNotFoundError())
				return
			}

			// 2. 端末を解決
			d, err := attacher.Attach(r.Context(), id)
			if errors.Is(err, device.ErrInvalidDeviceID) || errors.Is(err, device.ErrUnknownDevice) {
				WriteErrorResponse(w, r, http.StatusUnauthorized, model.NewDeviceNotFoundError())
				return
			}
			if err != nil {
				slog.Error("failed to attach device",
					applog.DeviceAttr(id),
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w, r)
				return
			}

			// 3. 端末をコンテキストに注入
			noteDeviceID(r.Context(), d.ID)
			next.ServeHTTP(w, r.WithContext(ContextWithDevice(r.Context(), d)))
		})
	}
}

// DeviceFromContext はリクエストコンテキストから端末を取得する。
// 端末ミドルウェアを通過したリクエストでのみ有効。
func DeviceFromContext(ctx context.Context) (*device.Device, error) {
	d, ok := ctx.Value(deviceContextKey).(*device.Device)
	if !ok || d == nil {
		return nil, errors.New("device not found in context")
	}
	return d, nil
}

// ContextWithDevice はコンテキストに端末を注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithDevice(ctx context.Context, d *device.Device) context.Context {
	return context.WithValue(ctx, deviceContextKey, d)
}
