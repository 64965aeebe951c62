package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/campus/internal/auth"
	"github.com/hitoshi/campus/internal/config"
	"github.com/hitoshi/campus/internal/database"
	"github.com/hitoshi/campus/internal/device"
	"github.com/hitoshi/campus/internal/docstore"
	"github.com/hitoshi/campus/internal/events"
	"github.com/hitoshi/campus/internal/flow"
	"github.com/hitoshi/campus/internal/handler"
	"github.com/hitoshi/campus/internal/i18n"
	"github.com/hitoshi/campus/internal/logger"
	"github.com/hitoshi/campus/internal/metrics"
	"github.com/hitoshi/campus/internal/middleware"
	"github.com/hitoshi/campus/internal/news"
	"github.com/hitoshi/campus/internal/profile"
	"github.com/hitoshi/campus/internal/program"
	"github.com/hitoshi/campus/internal/repository"
	"github.com/hitoshi/campus/internal/security"
	"github.com/hitoshi/campus/internal/worker/cleanup"
)

// cleanupInterval は期限切れセッション削除の実行間隔。
const cleanupInterval = 24 * time.Hour

// Init はアプリケーションの初期化を行う。
// .envファイルと環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. .envファイルがあれば環境変数に取り込む。既に設定済みの値は上書きしない
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	// 3. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 4. 設定されたログレベルで作り直す
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("store_driver", cfg.StoreDriver),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandSeed:
		return runSeed(cfg)
	default:
		return runServe(cfg)
	}
}

// openStore は設定されたドライバーでDB接続を開く。
// PostgreSQLは疎通確認のみ行い、SQLiteとインメモリは接続時にマイグレーションを適用する。
func openStore(cfg *config.Config) (*sql.DB, database.Dialect, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverSQLite, config.StoreDriverMemory:
		path := cfg.SQLitePath
		if cfg.StoreDriver == config.StoreDriverMemory {
			path = ":memory:"
		}
		db, err := database.OpenSQLite(path)
		if err != nil {
			return nil, database.DialectSQLite, err
		}
		if err := database.RunSQLiteMigrations(db); err != nil {
			db.Close()
			return nil, database.DialectSQLite, err
		}
		slog.Info("database connection established", slog.String("driver", cfg.StoreDriver))
		return db, database.DialectSQLite, nil

	default:
		db, err := database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, database.DialectPostgres, fmt.Errorf("failed to open database: %w", err)
		}
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, database.DialectPostgres, fmt.Errorf("failed to connect to database: %w", err)
		}
		slog.Info("database connection established",
			slog.String("driver", cfg.StoreDriver),
			slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
		)
		return db, database.DialectPostgres, nil
	}
}

// newBroker は変更イベントの配信方式を選ぶ。REDIS_ADDRが設定されていればRedis Pub/Subを使う。
func newBroker(cfg *config.Config) (events.Broker, func(), error) {
	if cfg.RedisAddr == "" {
		return events.NewMemoryBroker(), func() {}, nil
	}
	client, err := events.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("redis connection established", slog.String("addr", cfg.RedisAddr))
	return events.NewRedisBroker(client), func() { client.Close() }, nil
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, dialect, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// 2. 変更イベントの配信
	broker, closeBroker, err := newBroker(cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer closeBroker()

	// 3. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	// 4. リポジトリとストアの初期化
	accountRepo := repository.NewSQLAccountRepo(db, dialect)
	sessionRepo := repository.NewSQLSessionRepo(db, dialect)
	store := docstore.NewWatchingStore(docstore.NewSQLStore(db, dialect), broker)

	// 5. セキュリティサービスの初期化
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewContentSanitizer()

	// 6. IDプロバイダーの初期化
	authService := auth.NewService(
		accountRepo, sessionRepo,
		auth.NewBcryptHasher(0),
		auth.NewResetTokens(cfg.ResetTokenSecret, cfg.ResetTokenTTL),
		auth.NewLogMailer(slog.Default()),
		auth.ServiceConfig{
			SessionMaxAge: cfg.SessionMaxAge,
			ResetURL:      cfg.BaseURL + "/reset-password",
		},
	)

	devices := device.NewRegistry(authService, device.Config{
		SignInGrace: cfg.SignInGrace,
		IdleTTL:     cfg.DeviceIdleTTL,
		InitTimeout: cfg.DeviceInitTimeout,
	}, collector)
	defer devices.Stop()

	// 7. ドメインサービスの初期化
	flowService := flow.NewService(store, authService, flow.Config{
		LoginEmailDomains: cfg.LoginEmailDomains,
		SettleDelay:       cfg.SignupSettleDelay,
	}, collector)
	programService := program.NewService(store, ssrfGuard, sanitizer, collector)
	profileService := profile.NewService(store, sanitizer, cfg.ProfilePhotoMaxBytes)
	if cfg.StoreDriver == config.StoreDriverMemory {
		n, err := programService.Seed(context.Background())
		if err != nil {
			return fmt.Errorf("seed failed: %w", err)
		}
		slog.Info("in-memory store seeded", slog.Int("created", n))
	}
	newsService := news.NewService(news.Config{
		FeedURL:  cfg.NewsFeedURL,
		Timeout:  cfg.NewsFetchTimeout,
		MaxSize:  cfg.NewsMaxSize,
		CacheTTL: cfg.NewsCacheTTL,
	}, ssrfGuard, collector)

	// 8. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitAuth, cfg.RateLimitDevices),
	)
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		Devices:           devices,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		TrustProxy:        cfg.TrustProxy,
		RateLimiter:       rateLimiter,
		DefaultLocale:     i18n.ParseLocale(cfg.DefaultLocale),
		Logger:            slog.Default(),
		StatusRecorder:    collector,

		HealthChecker:  db,
		MetricsHandler: metrics.Handler(registry),

		AuthService:    flowService,
		ProfileService: profileService,
		HomeService:    newsService,
		ProgramService: programService,
	}

	router := handler.NewRouter(deps)

	// 9. HTTPサーバーの起動
	// SSEのストリームは個別に書き込み期限を外すため、WriteTimeoutは通常のAPI応答向けの値とする
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-stop:
	case err := <-errCh:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、期限切れセッションの削除ジョブを定期実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, dialect, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// 2. クリーンアップジョブの初期化
	cleanupJob := cleanup.NewCleanupJob(db, dialect, slog.Default())

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	slog.Info("worker starting",
		slog.Duration("cleanup_interval", cleanupInterval),
		slog.Duration("grace_period", cleanupJob.GracePeriod),
	)

	// 3. ctxが終了するまでブロッキングで実行
	cleanupJob.RunEvery(ctx, cleanupInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	switch cfg.StoreDriver {
	case config.StoreDriverSQLite:
		slog.Info("running database migrations",
			slog.String("driver", cfg.StoreDriver),
			slog.String("path", cfg.SQLitePath),
		)
		db, err := database.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		defer db.Close()
		if err := database.RunSQLiteMigrations(db); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}

	case config.StoreDriverMemory:
		slog.Info("in-memory store is migrated on startup; nothing to do")
		return nil

	default:
		slog.Info("running database migrations",
			slog.String("driver", cfg.StoreDriver),
			slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
		)
		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runSeed はカリキュラムの初期データを投入する。
func runSeed(cfg *config.Config) error {
	db, dialect, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	store := docstore.NewSQLStore(db, dialect)
	svc := program.NewService(store, security.NewSSRFGuard(), security.NewContentSanitizer(), nil)

	n, err := svc.Seed(context.Background())
	if err != nil {
		return fmt.Errorf("seed failed: %w", err)
	}

	slog.Info("seed completed", slog.Int("created", n))
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
