// Package handler はHTTPハンドラーとルーティングを提供する。
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/text/language"

	"github.com/hitoshi/campus/internal/device"
	"github.com/hitoshi/campus/internal/gate"
	"github.com/hitoshi/campus/internal/middleware"
)

// DeviceRegistry は端末の払い出しと解決を行う。device.Registryが実装する。
type DeviceRegistry interface {
	DeviceCreator
	middleware.DeviceAttacher
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Devices           DeviceRegistry
	CORSAllowedOrigin string
	TrustProxy        bool // trueならX-Forwarded-For等をクライアントIPとして扱う
	RateLimiter       *middleware.RateLimiter
	DefaultLocale     language.Tag
	Logger            *slog.Logger
	StatusRecorder    middleware.StatusRecorder

	// 運用
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	// 認証フロー
	AuthService AuthServiceInterface

	// プロフィール
	ProfileService ProfileServiceInterface

	// ホーム
	HomeService HomeServiceInterface

	// カリキュラム
	ProgramService ProgramServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	[RealIP] → Logging → Recovery → SecurityHeaders → CORS → Locale → Device → RateLimit(General) → ScreenSetGuard
//
// 端末登録と認証系のルートはクライアントIPごとにも制限する。
//
// 未認証の画面セットでのみ受け付けるルートと、認証済みの画面セットでのみ受け付けるルートを分け、
// マウントされていない画面の操作は409で拒否する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	locale := deps.DefaultLocale
	if locale == language.Und {
		locale = language.Spanish
	}

	if deps.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.NewLoggingMiddleware(logger, deps.StatusRecorder))
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLocaleMiddleware(locale))

	deviceHandler := NewDeviceHandler(deps.Devices)
	navigationHandler := NewNavigationHandler()
	authHandler := NewAuthHandler(deps.AuthService)
	profileHandler := NewProfileHandler(deps.ProfileService)
	homeHandler := NewHomeHandler(deps.HomeService)
	programHandler := NewProgramHandler(deps.ProgramService)
	healthHandler := NewHealthHandler(deps.HealthChecker)

	// --- 端末不要のルート ---
	r.Get("/health", healthHandler.Health)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}
	r.With(deps.RateLimiter.DeviceRegistrationMiddleware()).Post("/api/devices", deviceHandler.CreateDevice)

	// --- 端末が必要なルート ---
	// ミドルウェアスタック: Device → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewDeviceMiddleware(deps.Devices))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// ナビゲーション（画面セットによらず利用可能）
		r.Route("/api/navigation", func(r chi.Router) {
			r.Get("/", navigationHandler.GetNavigation)
			r.Post("/", navigationHandler.Navigate)
			r.Get("/events", navigationHandler.Events)
		})

		// 未認証の画面セット
		r.Group(func(r chi.Router) {
			r.Use(deps.RateLimiter.AuthMiddleware())
			r.Use(middleware.NewScreenSetGuard(gate.ScreenSetUnauthenticated))

			r.Post("/auth/login", authHandler.Login)
			r.Post("/auth/signup", authHandler.SignUp)
			r.Post("/auth/password-reset", authHandler.RequestPasswordReset)
			r.Post("/auth/password-reset/confirm", authHandler.ConfirmPasswordReset)
		})

		// 認証済みの画面セット
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewScreenSetGuard(gate.ScreenSetAuthenticated))

			r.Post("/auth/logout", authHandler.Logout)

			r.Route("/api/profile", func(r chi.Router) {
				r.Get("/", profileHandler.GetProfile)
				r.Put("/", profileHandler.UpdateProfile)
			})

			r.Get("/api/home", homeHandler.GetHome)

			r.Route("/api/programs", func(r chi.Router) {
				r.Get("/", programHandler.ListPrograms)
				r.Post("/", programHandler.CreateProgram)
				r.Get("/events", programHandler.Events)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", programHandler.GetProgram)
					r.Put("/", programHandler.UpdateProgram)
					r.Delete("/", programHandler.DeleteProgram)
				})
			})
		})
	})

	return r
}

// Registryがインターフェースを満たすことをコンパイル時に確認する
var _ DeviceRegistry = (*device.Registry)(nil)
