package middleware

import (
	"net/http"

	"github.com/hitoshi/campus/internal/gate"
	"github.com/hitoshi/campus/internal/model"
)

// NewScreenSetGuard は端末のゲートが指定の画面セットをマウントしている場合のみ
// リクエストを通すミドルウェアを返す。マウントされていない場合は409 Conflictを返す。
// 端末ミドルウェアの後に配置する。
func NewScreenSetGuard(set gate.ScreenSet) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d, err := DeviceFromContext(r.Context())
			if err != nil {
				WriteErrorResponse(w, r, http.StatusUnauthorized, model.NewDeviceNotFoundError())
				return
			}
			if d.Gate.Render() != set {
				WriteErrorResponse(w, r, http.StatusConflict, model.NewScreenNotMountedError(string(set)))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
