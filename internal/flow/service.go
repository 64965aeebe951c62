package flow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hitoshi/campus/internal/auth"
	"github.com/hitoshi/campus/internal/docstore"
	"github.com/hitoshi/campus/internal/gate"
	"github.com/hitoshi/campus/internal/metrics"
	"github.com/hitoshi/campus/internal/model"
)

// ProfileCollection はプロフィールを保存するコレクション名。
const ProfileCollection = "users"

// パスワード再設定で常に返す文言。アカウントの有無を区別しない。
const (
	resetSentTitle   = "Correo enviado"
	resetSentMessage = "Se ha enviado un enlace a su correo. Si su cuenta existe, recibirá las instrucciones para restablecer su contraseña. Por favor, revise su bandeja de entrada y la carpeta de spam."
)

// drainTimeout は抑止解除前に通知の配信完了を待つ上限。
const drainTimeout = 2 * time.Second

// Config はフローの設定。
type Config struct {
	LoginEmailDomains []string      // ログインで許可するメールドメイン
	SettleDelay       time.Duration // 抑止取得からIDプロバイダー呼び出しまでの待ち時間
}

// Service は認証フローを提供する。端末ごとの依存はSessionで受け取る。
type Service struct {
	store     RecordWriter
	resetter  PasswordResetter
	config    Config
	collector metrics.MetricsCollector
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewService はServiceを生成する。
func NewService(store RecordWriter, resetter PasswordResetter, config Config, collector metrics.MetricsCollector) *Service {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Service{
		store:     store,
		resetter:  resetter,
		config:    config,
		collector: collector,
		sleep:     sleepContext,
	}
}

// LoginInput はログインの入力。
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login はサインインする。画面の切り替えはゲートの購読に任せる。
func (s *Service) Login(ctx context.Context, sess Session, in LoginInput) (*model.Dialog, error) {
	// 1. 入力の検証
	if anyBlank(in.Email, in.Password) {
		s.collector.RecordAuthOutcome("login", "rejected")
		return nil, model.NewRequiredFieldsError()
	}
	email := normalizeEmail(in.Email)
	if !isValidEmail(email) || !hasAllowedDomain(email, s.config.LoginEmailDomains) {
		s.collector.RecordAuthOutcome("login", "rejected")
		return nil, model.NewEmailDomainError(s.config.LoginEmailDomains)
	}

	// 2. サインイン
	if _, err := sess.Provider.SignIn(ctx, email, in.Password); err != nil {
		s.collector.RecordAuthOutcome("login", "failure")
		if !errors.Is(err, auth.ErrInvalidCredentials) && !errors.Is(err, auth.ErrInvalidEmail) {
			slog.Error("sign in failed", slog.String("error", err.Error()))
		}
		return nil, model.NewInvalidCredentialsError()
	}

	s.collector.RecordAuthOutcome("login", "success")
	return model.NewSuccessDialog("Éxito", "Inicio de sesión correcto."), nil
}

// SignUpInput はサインアップの入力。
type SignUpInput struct {
	FirstName       string `json:"nombre"`
	LastName        string `json:"apellido"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// SignUp はアカウントを作成し、プロフィールを書き込んでからサインアウトしてログイン画面へ戻す。
// 実行中はゲートを抑止し、途中のセッション通知で認証済み画面に切り替わらないようにする。
// 抑止はどの経路で終了しても必ず解除する。
func (s *Service) SignUp(ctx context.Context, sess Session, in SignUpInput) (*model.Dialog, error) {
	// 1. 入力の検証（ネットワーク呼び出しの前に行う）
	if apiErr := validateSignUp(in); apiErr != nil {
		s.collector.RecordAuthOutcome("signup", "rejected")
		return nil, apiErr
	}
	email := normalizeEmail(in.Email)

	// 2. 抑止トークンの取得
	hold, err := sess.Gate.Suppress()
	if err != nil {
		s.collector.RecordAuthOutcome("signup", "rejected")
		return nil, model.NewSignupInProgressError()
	}
	defer hold.Release()
	// 解除より先に、抑止中に発生した通知をゲートへ届け切る
	defer s.drain(sess.Provider)

	// 3. ゲートが抑止を観測するまで待つ
	if err := s.sleep(ctx, s.config.SettleDelay); err != nil {
		s.collector.RecordAuthOutcome("signup", "failure")
		return nil, model.NewSignupFailedError("operación cancelada")
	}

	// 4. IDの作成
	identity, err := sess.Provider.SignUp(ctx, email, in.Password)
	if err != nil {
		s.collector.RecordAuthOutcome("signup", "failure")
		return nil, signUpProviderError(err)
	}

	// 5. 表示名の設定
	profile := model.Profile{
		FirstName: trim(in.FirstName),
		LastName:  trim(in.LastName),
		Email:     email,
	}
	if err := sess.Provider.UpdateDisplayName(ctx, identity, profile.DisplayName()); err != nil {
		return nil, s.abortSignUp(ctx, sess, "display name", err)
	}

	// 6. プロフィールの書き込み
	fields, err := docstore.FromStruct(profile)
	if err != nil {
		return nil, s.abortSignUp(ctx, sess, "profile encode", err)
	}
	if err := s.store.Set(ctx, ProfileCollection, identity.ID, fields, false); err != nil {
		return nil, s.abortSignUp(ctx, sess, "profile write", err)
	}

	// 7. 成功ダイアログ
	dialog := model.NewSuccessDialog("Éxito", "Usuario registrado correctamente")

	// 8. サインアウト
	if err := sess.Provider.SignOut(ctx); err != nil {
		return nil, s.abortSignUp(ctx, sess, "sign out", err)
	}

	// 9. ログイン画面へ
	if err := sess.Navigator.Navigate(gate.ScreenLogin, nil); err != nil {
		slog.Warn("failed to navigate after signup", slog.String("error", err.Error()))
	}

	slog.Info("signup completed", slog.String("user_id", identity.ID))
	s.collector.RecordAuthOutcome("signup", "success")
	return dialog, nil
}

// abortSignUp はID作成後の失敗を処理する。作成済みのセッションはベストエフォートで破棄する。
func (s *Service) abortSignUp(ctx context.Context, sess Session, step string, cause error) *model.APIError {
	slog.Error("signup aborted",
		slog.String("step", step),
		slog.String("error", cause.Error()),
	)
	s.collector.RecordAuthOutcome("signup", "failure")

	if err := sess.Provider.SignOut(context.WithoutCancel(ctx)); err != nil {
		slog.Warn("best-effort sign out failed", slog.String("error", err.Error()))
	}
	return model.NewSignupFailedError("intentá nuevamente")
}

// drain はIDプロバイダーが配信待ちの通知を持っていれば配信完了まで待つ。
func (s *Service) drain(provider IdentityProvider) {
	sp, ok := provider.(syncer)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := sp.Sync(ctx); err != nil {
		slog.Warn("session notifications not drained", slog.String("error", err.Error()))
	}
}

// RequestPasswordReset は再設定メールを要求する。
// 入力が妥当であれば、IDプロバイダーの結果にかかわらず同じ成功ダイアログを返す。
func (s *Service) RequestPasswordReset(ctx context.Context, provider IdentityProvider, email string) (*model.Dialog, error) {
	if anyBlank(email) {
		s.collector.RecordAuthOutcome("password_reset", "rejected")
		return nil, model.NewRequiredFieldsError()
	}
	email = normalizeEmail(email)
	if !isValidEmail(email) {
		s.collector.RecordAuthOutcome("password_reset", "rejected")
		return nil, model.NewInvalidEmailError()
	}

	if err := provider.SendPasswordReset(ctx, email); err != nil {
		// 結果を利用者に伝えるとアカウントの有無が推測できるためログのみ
		if !errors.Is(err, auth.ErrAccountNotFound) {
			slog.Warn("password reset dispatch failed", slog.String("error", err.Error()))
		}
	}

	s.collector.RecordAuthOutcome("password_reset", "success")
	return model.NewSuccessDialog(resetSentTitle, resetSentMessage), nil
}

// ConfirmPasswordResetInput は再設定リンクから送られる新しいパスワード。
type ConfirmPasswordResetInput struct {
	Token           string `json:"token"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// ConfirmPasswordReset はトークンを検証してパスワードを変更する。
func (s *Service) ConfirmPasswordReset(ctx context.Context, in ConfirmPasswordResetInput) (*model.Dialog, error) {
	if anyBlank(in.Token, in.Password, in.ConfirmPassword) {
		return nil, model.NewRequiredFieldsError()
	}
	if !isStrongPassword(in.Password) {
		return nil, model.NewWeakPasswordError()
	}
	if in.Password != in.ConfirmPassword {
		return nil, model.NewPasswordMismatchError()
	}

	if err := s.resetter.ResetPassword(ctx, in.Token, in.Password); err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidResetToken):
			return nil, model.NewInvalidResetTokenError()
		case errors.Is(err, auth.ErrWeakPassword):
			return nil, model.NewWeakPasswordError()
		default:
			return nil, err
		}
	}
	return model.NewSuccessDialog("Listo", "Tu contraseña fue actualizada."), nil
}

// SignOut は確認済みの場合にサインアウトする。未確認なら確認ダイアログのエラーを返す。
func (s *Service) SignOut(ctx context.Context, sess Session, confirmed bool) (*model.Dialog, error) {
	if !confirmed {
		return nil, model.NewConfirmationRequiredError("Cerrar sesión", "¿Querés cerrar sesión?", "Cerrar sesión")
	}
	if err := sess.Provider.SignOut(ctx); err != nil {
		s.collector.RecordAuthOutcome("signout", "failure")
		return nil, err
	}
	s.collector.RecordAuthOutcome("signout", "success")
	return model.NewInfoDialog("Sesión cerrada", "Cerraste sesión correctamente."), nil
}

// validateSignUp はサインアップの入力を検証する。
func validateSignUp(in SignUpInput) *model.APIError {
	if anyBlank(in.FirstName, in.LastName, in.Email, in.Password, in.ConfirmPassword) {
		return model.NewRequiredFieldsError()
	}
	if !isValidEmail(normalizeEmail(in.Email)) {
		return model.NewInvalidEmailError()
	}
	if !isStrongPassword(in.Password) {
		return model.NewWeakPasswordError()
	}
	if in.Password != in.ConfirmPassword {
		return model.NewPasswordMismatchError()
	}
	return nil
}

// signUpProviderError はIDプロバイダーのエラーを利用者向けエラーに変換する。
func signUpProviderError(err error) *model.APIError {
	switch {
	case errors.Is(err, auth.ErrEmailAlreadyInUse):
		return model.NewEmailAlreadyInUseError()
	case errors.Is(err, auth.ErrWeakPassword):
		return model.NewWeakPasswordError()
	case errors.Is(err, auth.ErrInvalidEmail):
		return model.NewInvalidEmailError()
	default:
		slog.Error("sign up failed", slog.String("error", err.Error()))
		return model.NewSignupFailedError("intentá nuevamente")
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
