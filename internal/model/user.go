// Package model はドメインモデルを定義する。
package model

import "time"

// Account はIDプロバイダーが管理する認証アカウントを表す。
// PasswordHashはbcryptハッシュで、平文パスワードは保持しない。
type Account struct {
	ID           string
	Email        string
	PasswordHash string
	DisplayName  string
	PhotoURL     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity はIDプロバイダーが通知する認証済みユーザーを表す。
// クライアント側からは不透明な値として扱う。
type Identity struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	PhotoURL    string `json:"photo_url,omitempty"`
}

// Identity はアカウントから通知用のIdentityを生成する。
func (a *Account) Identity() *Identity {
	return &Identity{
		ID:          a.ID,
		Email:       a.Email,
		DisplayName: a.DisplayName,
		PhotoURL:    a.PhotoURL,
	}
}

// Session は端末に紐づくログインセッションを表す。
// 端末IDを保持することで、端末の再接続時にログイン状態を復元できる。
type Session struct {
	ID        string
	UserID    string
	DeviceID  string
	ExpiresAt time.Time
	CreatedAt time.Time
}
