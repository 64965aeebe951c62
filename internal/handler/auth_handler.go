package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/campus/internal/flow"
	"github.com/hitoshi/campus/internal/middleware"
	"github.com/hitoshi/campus/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするフローのインターフェース。
// flow.Serviceが実装する。
type AuthServiceInterface interface {
	// Login はサインインする。
	Login(ctx context.Context, sess flow.Session, in flow.LoginInput) (*model.Dialog, error)
	// SignUp はアカウントを作成してログイン画面へ戻す。
	SignUp(ctx context.Context, sess flow.Session, in flow.SignUpInput) (*model.Dialog, error)
	// RequestPasswordReset は再設定メールを要求する。
	RequestPasswordReset(ctx context.Context, provider flow.IdentityProvider, email string) (*model.Dialog, error)
	// ConfirmPasswordReset は再設定リンクのトークンでパスワードを変更する。
	ConfirmPasswordReset(ctx context.Context, in flow.ConfirmPasswordResetInput) (*model.Dialog, error)
	// SignOut は確認済みの場合にサインアウトする。
	SignOut(ctx context.Context, sess flow.Session, confirmed bool) (*model.Dialog, error)
}

// AuthHandler は認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface) *AuthHandler {
	return &AuthHandler{service: service}
}

// passwordResetRequest は再設定メール要求のボディ。
type passwordResetRequest struct {
	Email string `json:"email"`
}

// Login はログインを処理する。画面セットの切り替えはゲートの通知で行われる。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	d, ok := requireDevice(w, r)
	if !ok {
		return
	}
	var req flow.LoginInput
	if !decodeBody(w, r, &req) {
		return
	}

	dialog, err := h.service.Login(r.Context(), flowSession(d), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dialogResponse{Dialog: localizeDialog(r, dialog)})
}

// SignUp はアカウント登録を処理する。
// POST /auth/signup
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	d, ok := requireDevice(w, r)
	if !ok {
		return
	}
	var req flow.SignUpInput
	if !decodeBody(w, r, &req) {
		return
	}

	dialog, err := h.service.SignUp(r.Context(), flowSession(d), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, dialogResponse{Dialog: localizeDialog(r, dialog)})
}

// RequestPasswordReset は再設定メールの送信を処理する。
// アカウントの有無にかかわらず同じ応答を返す。
// POST /auth/password-reset
func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	d, ok := requireDevice(w, r)
	if !ok {
		return
	}
	var req passwordResetRequest
	if !decodeBody(w, r, &req) {
		return
	}

	dialog, err := h.service.RequestPasswordReset(r.Context(), d.Provider, req.Email)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dialogResponse{Dialog: localizeDialog(r, dialog)})
}

// ConfirmPasswordReset は再設定リンクからのパスワード変更を処理する。
// POST /auth/password-reset/confirm
func (h *AuthHandler) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req flow.ConfirmPasswordResetInput
	if !decodeBody(w, r, &req) {
		return
	}

	dialog, err := h.service.ConfirmPasswordReset(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dialogResponse{Dialog: localizeDialog(r, dialog)})
}

// Logout はサインアウトを処理する。確認がない場合は428と確認ダイアログを返す。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	d, ok := requireDevice(w, r)
	if !ok {
		return
	}

	dialog, err := h.service.SignOut(r.Context(), flowSession(d), middleware.Confirmed(r))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dialogResponse{Dialog: localizeDialog(r, dialog)})
}
