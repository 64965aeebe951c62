package auth

import (
	"context"
	"log/slog"
)

// Mailer はパスワード再設定メールの送信インターフェース。
type Mailer interface {
	SendPasswordReset(ctx context.Context, email, link string) error
}

// LogMailer は送信内容を構造化ログに記録するMailer実装。
// メール送信基盤を接続するまでの開発用。
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer はLogMailerを生成する。
func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// SendPasswordReset はリンクをログに出力する。
func (m *LogMailer) SendPasswordReset(ctx context.Context, email, link string) error {
	m.logger.InfoContext(ctx, "password reset mail",
		slog.String("email", email),
		slog.String("link", link),
	)
	return nil
}
