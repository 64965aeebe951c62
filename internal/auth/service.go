// Package auth はメールアドレスとパスワードによる認証、端末セッション管理、
// パスワード再設定を提供するIDプロバイダーを実装する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/campus/internal/logger"
	"github.com/hitoshi/campus/internal/model"
	"github.com/hitoshi/campus/internal/repository"
)

// IDプロバイダーが返すエラー
var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrEmailAlreadyInUse  = errors.New("auth: email already in use")
	ErrWeakPassword       = errors.New("auth: weak password")
	ErrInvalidEmail       = errors.New("auth: invalid email")
	ErrAccountNotFound    = errors.New("auth: account not found")
	ErrInvalidResetToken  = errors.New("auth: invalid reset token")
)

// minPasswordLength はIDプロバイダーとして受け付ける最小パスワード長。
const minPasswordLength = 6

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int    // セッション有効期間（秒）
	ResetURL      string // パスワード再設定画面のURL。トークンはクエリに付与する
}

// Service は認証に関するビジネスロジックを提供する。
// セッションは端末IDに紐づけ、1端末につき1セッションを保持する。
type Service struct {
	accounts repository.AccountRepository
	sessions repository.SessionRepository
	hasher   PasswordHasher
	tokens   *ResetTokens
	mailer   Mailer
	config   ServiceConfig
	now      func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	accounts repository.AccountRepository,
	sessions repository.SessionRepository,
	hasher PasswordHasher,
	tokens *ResetTokens,
	mailer Mailer,
	config ServiceConfig,
) *Service {
	return &Service{
		accounts: accounts,
		sessions: sessions,
		hasher:   hasher,
		tokens:   tokens,
		mailer:   mailer,
		config:   config,
		now:      time.Now,
	}
}

// SignUp はアカウントを作成し、端末にセッションを発行する。
// 作成直後はサインイン済みとなる。
func (s *Service) SignUp(ctx context.Context, deviceID, email, password string) (*model.Identity, error) {
	// 1. 入力の検証
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if len(password) < minPasswordLength {
		return nil, ErrWeakPassword
	}

	// 2. 重複確認
	existing, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	if existing != nil {
		return nil, ErrEmailAlreadyInUse
	}

	// 3. アカウント作成
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	now := s.now()
	account := &model.Account{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrEmailAlreadyInUse
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	// 4. セッション発行
	if err := s.startSession(ctx, deviceID, account.ID); err != nil {
		return nil, err
	}

	slog.Info("account created",
		slog.String("user_id", account.ID),
		logger.DeviceAttr(deviceID),
	)
	return account.Identity(), nil
}

// SignIn はメールアドレスとパスワードを検証し、端末にセッションを発行する。
// アカウント不在とパスワード不一致は区別せずErrInvalidCredentialsを返す。
func (s *Service) SignIn(ctx context.Context, deviceID, email, password string) (*model.Identity, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	if account == nil {
		return nil, ErrInvalidCredentials
	}

	ok, err := s.hasher.Compare(account.PasswordHash, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	if err := s.startSession(ctx, deviceID, account.ID); err != nil {
		return nil, err
	}

	slog.Info("user signed in",
		slog.String("user_id", account.ID),
		logger.DeviceAttr(deviceID),
	)
	return account.Identity(), nil
}

// SignOut は端末のセッションを破棄する。
func (s *Service) SignOut(ctx context.Context, deviceID string) error {
	if err := s.sessions.DeleteByDeviceID(ctx, deviceID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	slog.Info("user signed out", logger.DeviceAttr(deviceID))
	return nil
}

// CurrentIdentity は端末の有効セッションに対応するIdentityを返す。
// セッションがない場合はnilを返す。
func (s *Service) CurrentIdentity(ctx context.Context, deviceID string) (*model.Identity, error) {
	session, err := s.sessions.FindLatestByDeviceID(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, nil
	}

	account, err := s.accounts.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	if account == nil {
		return nil, nil
	}
	return account.Identity(), nil
}

// UpdateDisplayName は表示名を更新し、更新後のIdentityを返す。
func (s *Service) UpdateDisplayName(ctx context.Context, userID, displayName string) (*model.Identity, error) {
	account, err := s.accounts.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}

	displayName = strings.TrimSpace(displayName)
	if err := s.accounts.UpdateDisplayName(ctx, userID, displayName, s.now()); err != nil {
		return nil, err
	}
	account.DisplayName = displayName
	return account.Identity(), nil
}

// SendPasswordReset はパスワード再設定リンクをメールで送信する。
// アカウントが存在しない場合はErrAccountNotFoundを返す。呼び出し側で利用者に伏せること。
func (s *Service) SendPasswordReset(ctx context.Context, email string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}

	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to find account: %w", err)
	}
	if account == nil {
		return ErrAccountNotFound
	}

	token, err := s.tokens.Issue(account)
	if err != nil {
		return err
	}

	link, err := buildResetLink(s.config.ResetURL, token)
	if err != nil {
		return err
	}
	if err := s.mailer.SendPasswordReset(ctx, account.Email, link); err != nil {
		return fmt.Errorf("failed to send reset mail: %w", err)
	}
	return nil
}

// ResetPassword はトークンを検証して新しいパスワードを設定する。
// 成功時はそのアカウントの全端末セッションを破棄する。
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return ErrInvalidResetToken
	}
	if len(newPassword) < minPasswordLength {
		return ErrWeakPassword
	}

	account, err := s.accounts.FindByID(ctx, claims.UserID)
	if err != nil {
		return fmt.Errorf("failed to find account: %w", err)
	}
	if account == nil || !claims.Matches(account) {
		return ErrInvalidResetToken
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.accounts.UpdatePasswordHash(ctx, account.ID, hash, s.now()); err != nil {
		return err
	}
	if err := s.sessions.DeleteByUserID(ctx, account.ID); err != nil {
		return fmt.Errorf("failed to revoke sessions: %w", err)
	}

	slog.Info("password reset completed", slog.String("user_id", account.ID))
	return nil
}

// startSession は端末の既存セッションを破棄してから新しいセッションを作成する。
func (s *Service) startSession(ctx context.Context, deviceID, userID string) error {
	if deviceID == "" {
		return fmt.Errorf("device ID is required")
	}
	if err := s.sessions.DeleteByDeviceID(ctx, deviceID); err != nil {
		return fmt.Errorf("failed to clear device sessions: %w", err)
	}

	sessionID, err := generateSessionID()
	if err != nil {
		return fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := s.now()
	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		DeviceID:  deviceID,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// normalizeEmail は前後の空白を除いて小文字化し、形式を検証する。
func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}

func buildResetLink(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid reset URL: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
