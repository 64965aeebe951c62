package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/campus/internal/news"
)

// HomeServiceInterface はホーム画面の内容を組み立てる。news.Serviceが実装する。
type HomeServiceInterface interface {
	Home(ctx context.Context, displayName string) *news.Home
}

// HomeHandler はホーム画面のHTTPハンドラー。
type HomeHandler struct {
	service HomeServiceInterface
}

// NewHomeHandler はHomeHandlerを生成する。
func NewHomeHandler(service HomeServiceInterface) *HomeHandler {
	return &HomeHandler{service: service}
}

// GetHome は挨拶、お知らせ、行事予定を返す。
// GET /api/home
func (h *HomeHandler) GetHome(w http.ResponseWriter, r *http.Request) {
	_, identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.service.Home(r.Context(), identity.DisplayName))
}
