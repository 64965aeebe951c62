// Package flow はログイン、サインアップ、パスワード再設定、サインアウトの各フローを実装する。
// フローは端末に束縛されたIDプロバイダーとセッションゲートを介して状態を変更する。
package flow

import (
	"context"

	"github.com/hitoshi/campus/internal/docstore"
	"github.com/hitoshi/campus/internal/gate"
	"github.com/hitoshi/campus/internal/model"
)

// IdentityProvider はフローが利用する端末単位のIDプロバイダー。
type IdentityProvider interface {
	SignIn(ctx context.Context, email, password string) (*model.Identity, error)
	SignUp(ctx context.Context, email, password string) (*model.Identity, error)
	SignOut(ctx context.Context) error
	SendPasswordReset(ctx context.Context, email string) error
	UpdateDisplayName(ctx context.Context, identity *model.Identity, displayName string) error
}

// syncer は配信待ちの通知をすべて配信し終えるまで待てるIDプロバイダー。
type syncer interface {
	Sync(ctx context.Context) error
}

// Suppressor はセッションゲートの抑止トークンを払い出す。*gate.Gateが実装する。
type Suppressor interface {
	Suppress() (*gate.Hold, error)
}

// Navigator は画面遷移を行う。*gate.Navigatorが実装する。
type Navigator interface {
	Navigate(screen gate.Screen, params map[string]string) error
}

// RecordWriter はプロフィールの書き込み先。
type RecordWriter interface {
	Set(ctx context.Context, collection, id string, fields docstore.Fields, merge bool) error
}

// PasswordResetter は再設定トークンによるパスワード変更を行う。*auth.Serviceが実装する。
type PasswordResetter interface {
	ResetPassword(ctx context.Context, token, newPassword string) error
}

// Session は1端末分のフロー実行に必要な依存。
type Session struct {
	Provider  IdentityProvider
	Gate      Suppressor
	Navigator Navigator
}
