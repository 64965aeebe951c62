package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/campus/internal/device"
	"github.com/hitoshi/campus/internal/flow"
	"github.com/hitoshi/campus/internal/i18n"
	"github.com/hitoshi/campus/internal/middleware"
	"github.com/hitoshi/campus/internal/model"
)

// dialogResponse はダイアログのみを返す操作のレスポンス。
type dialogResponse struct {
	Dialog *model.Dialog `json:"dialog"`
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// localizeDialog はダイアログをリクエストの応答言語に翻訳する。
func localizeDialog(r *http.Request, d *model.Dialog) *model.Dialog {
	return i18n.Dialog(middleware.LocaleFromContext(r.Context()), d)
}

// decodeBody はリクエストボディをJSONとして読み込む。失敗時はエラーレスポンスを書き込みfalseを返す。
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		middleware.WriteErrorResponse(w, r, http.StatusBadRequest, model.NewInvalidRequestError())
		return false
	}
	return true
}

// requireDevice はコンテキストから端末を取得する。取得できない場合はエラーレスポンスを書き込む。
func requireDevice(w http.ResponseWriter, r *http.Request) (*device.Device, bool) {
	d, err := middleware.DeviceFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, r, http.StatusUnauthorized, model.NewDeviceNotFoundError())
		return nil, false
	}
	return d, true
}

// requireIdentity は端末のゲートが保持する認証済みIDを取得する。
func requireIdentity(w http.ResponseWriter, r *http.Request) (*device.Device, *model.Identity, bool) {
	d, ok := requireDevice(w, r)
	if !ok {
		return nil, nil, false
	}
	identity := d.Gate.Snapshot().Identity
	if identity == nil {
		middleware.WriteErrorResponse(w, r, http.StatusConflict,
			model.NewScreenNotMountedError(string(d.Gate.Render())))
		return nil, nil, false
	}
	return d, identity, true
}

// flowSession は端末をフロー実行用の依存に変換する。
func flowSession(d *device.Device) flow.Session {
	return flow.Session{
		Provider:  d.Provider,
		Gate:      d.Gate,
		Navigator: d.Navigator,
	}
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, r, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w, r)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeRequiredFields, model.ErrCodeInvalidEmail, model.ErrCodeEmailDomain,
		model.ErrCodeInvalidRequest, model.ErrCodeInvalidResetToken:
		return http.StatusBadRequest
	case model.ErrCodeWeakPassword, model.ErrCodePasswordMismatch,
		model.ErrCodeInvalidImage, model.ErrCodeInvalidPhoto:
		return http.StatusUnprocessableEntity
	case model.ErrCodeInvalidCredentials, model.ErrCodeDeviceNotFound:
		return http.StatusUnauthorized
	case model.ErrCodeEmailAlreadyInUse, model.ErrCodeSignupInProgress, model.ErrCodeScreenNotMounted:
		return http.StatusConflict
	case model.ErrCodeProgramNotFound:
		return http.StatusNotFound
	case model.ErrCodeConfirmationRequired:
		return http.StatusPreconditionRequired
	case model.ErrCodeRateLimitExceeded:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
