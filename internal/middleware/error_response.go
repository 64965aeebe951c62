package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/campus/internal/i18n"
	"github.com/hitoshi/campus/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// 原因カテゴリと対処方法に加え、クライアントがそのまま表示するダイアログを含む。
type ErrorResponseBody struct {
	Code     string        `json:"code"`
	Message  string        `json:"message"`
	Category string        `json:"category"`
	Action   string        `json:"action"`
	Dialog   *model.Dialog `json:"dialog"`
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
// ダイアログの文言はリクエストの応答言語に翻訳する。
func WriteErrorResponse(w http.ResponseWriter, r *http.Request, statusCode int, apiErr *model.APIError) {
	tag := LocaleFromContext(r.Context())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  i18n.Translate(tag, apiErr.Message),
		Category: apiErr.Category,
		Action:   i18n.Translate(tag, apiErr.Action),
		Dialog:   i18n.Dialog(tag, apiErr.Dialog()),
	})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter, r *http.Request) {
	WriteErrorResponse(w, r, http.StatusInternalServerError, model.NewInternalError())
}
