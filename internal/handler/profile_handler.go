package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/campus/internal/model"
	"github.com/hitoshi/campus/internal/profile"
)

// ProfileServiceInterface はプロフィールハンドラーが必要とするサービスインターフェース。
type ProfileServiceInterface interface {
	Load(ctx context.Context, identity *model.Identity) (*model.Profile, error)
	Save(ctx context.Context, provider profile.DisplayNamer, identity *model.Identity, in profile.SaveInput) (*model.Profile, *model.Dialog, error)
}

// ProfileHandler はプロフィールのHTTPハンドラー。
type ProfileHandler struct {
	service ProfileServiceInterface
}

// NewProfileHandler はProfileHandlerを生成する。
func NewProfileHandler(service ProfileServiceInterface) *ProfileHandler {
	return &ProfileHandler{service: service}
}

// profileResponse はプロフィールのレスポンス。
type profileResponse struct {
	Profile *model.Profile `json:"profile"`
	Dialog  *model.Dialog  `json:"dialog,omitempty"`
}

// GetProfile はサインイン中の利用者のプロフィールを返す。未作成なら空のプロフィールを作成する。
// GET /api/profile
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	_, identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	p, err := h.service.Load(r.Context(), identity)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profileResponse{Profile: p})
}

// UpdateProfile はプロフィールを更新し、表示名を同期する。
// PUT /api/profile
func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	d, identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	var req profile.SaveInput
	if !decodeBody(w, r, &req) {
		return
	}

	p, dialog, err := h.service.Save(r.Context(), d.Provider, identity, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profileResponse{Profile: p, Dialog: localizeDialog(r, dialog)})
}
