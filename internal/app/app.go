package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/arcadekiosk/internal/config"
	"github.com/hitoshi/arcadekiosk/internal/database"
	"github.com/hitoshi/arcadekiosk/internal/handler"
	"github.com/hitoshi/arcadekiosk/internal/ipc"
	"github.com/hitoshi/arcadekiosk/internal/launcher"
	"github.com/hitoshi/arcadekiosk/internal/logger"
	"github.com/hitoshi/arcadekiosk/internal/metrics"
	"github.com/hitoshi/arcadekiosk/internal/middleware"
	"github.com/hitoshi/arcadekiosk/internal/repository"
	"github.com/hitoshi/arcadekiosk/internal/security"
	"github.com/hitoshi/arcadekiosk/internal/session"
	"github.com/hitoshi/arcadekiosk/internal/store"
	"github.com/hitoshi/arcadekiosk/internal/telemetry"
	"github.com/hitoshi/arcadekiosk/internal/worker/reaper"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、LOG_LEVELに従ったJSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたレベルでロガーを作り直す
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
		slog.String("port", cfg.ServerPort),
		slog.String("kiosk_id", cfg.KioskID),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はキオスクAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、セッションコントローラーとHTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	log := slog.Default()

	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Info("database connection established")

	// 2. リポジトリとストアゲートウェイの初期化
	gameRepo := repository.NewPostgresGameRepo(db)
	sessionRepo := repository.NewPostgresGameSessionRepo(db)
	ratingRepo := repository.NewPostgresRatingRepo(db)
	settingsRepo := repository.NewPostgresSettingsRepo(db)

	gateway := store.NewGateway(sessionRepo, ratingRepo, settingsRepo, cfg.StoreTimeout, log)

	// 3. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)

	// 4. ランチャーとテレメトリ
	launcherClient := launcher.NewClient(cfg.LauncherBaseURL, cfg.LauncherTimeout, log)
	keyPresser := launcher.NewCommandKeyPresser(cfg.FallbackCommand, log)
	publisher := newPublisher(cfg, log)
	defer publisher.Close()

	// 5. セッションコントローラー
	controller := session.NewController(launcherClient, keyPresser, gateway, publisher, collector, session.Config{
		DefaultTimerMinutes: cfg.DefaultTimerMinutes,
		FallbackStopKey:     cfg.FallbackStopKey,
		FallbackTimeout:     cfg.FallbackTimeout,
		TickInterval:        cfg.TickInterval,
		DrainTimeout:        cfg.ShutdownTimeout,
	}, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := controller.Run(ctx); err != nil {
			log.Error("session controller stopped with error", slog.String("error", err.Error()))
		}
	}()

	// 6. バックグラウンド処理（設定変更の購読、ハードウェアIPC、放置セッションの回収）
	if listener, err := store.NewPQSettingsListener(cfg.DatabaseURL, log); err != nil {
		log.Warn("timer setting notifications disabled", slog.String("error", err.Error()))
	} else {
		defer listener.Close()
		go gateway.WatchSettings(ctx, listener)
	}

	sanitizer := security.NewTextSanitizer()
	startSubscriber(ctx, cfg, controller, sanitizer, log)

	reaperJob := reaper.NewJob(sessionRepo, collector, cfg.StaleSessionAfter, log)
	go reaperJob.Start(ctx, cfg.StaleSessionInterval)

	// 7. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitTap), log)
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Logger:            log,
		Controller:        controller,
		Catalog:           gameRepo,
		Sanitizer:         sanitizer,
		HealthChecker:     db,
		LauncherHealth:    launcherClient,
		MetricsHandler:    metrics.Handler(registry),
	})

	// 8. HTTPサーバーの起動
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

	serverErr := make(chan error, 1)
	go func() {
		log.Info("kiosk API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	var runErr error
	select {
	case <-stop:
	case err := <-serverErr:
		runErr = fmt.Errorf("server listen error: %w", err)
	}
	log.Info("shutting down kiosk API server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("server shutdown failed: %w", err)
	}

	// HTTPを閉じてからコントローラーを停止し、実行中のセッションを完了させる
	cancel()
	select {
	case <-controller.Done():
	case <-time.After(cfg.ShutdownTimeout + time.Second):
		log.Warn("session controller did not stop in time")
	}

	if runErr != nil {
		return runErr
	}
	log.Info("kiosk API server stopped gracefully")
	return nil
}

// newPublisher はRABBITMQ_URLが設定されていればAMQPのPublisherを返す。
// 未設定または接続に失敗した場合はNopPublisherを返す。
func newPublisher(cfg *config.Config, log *slog.Logger) telemetry.Publisher {
	if cfg.RabbitMQURL == "" {
		return telemetry.NopPublisher{}
	}
	p, err := telemetry.NewAMQPPublisher(cfg.RabbitMQURL, cfg.TelemetryQueue, cfg.KioskID, log)
	if err != nil {
		log.Warn("telemetry disabled", slog.String("error", err.Error()))
		return telemetry.NopPublisher{}
	}
	return p
}

// startSubscriber はREDIS_ADDRが設定されていればハードウェアIPCの購読を開始する。
func startSubscriber(ctx context.Context, cfg *config.Config, triggers ipc.Triggers, sanitizer ipc.Sanitizer, log *slog.Logger) {
	if cfg.RedisAddr == "" {
		return
	}
	client, err := ipc.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Warn("hardware IPC disabled", slog.String("error", err.Error()))
		return
	}

	sub := ipc.NewSubscriber(client, cfg.KioskEventChannel, triggers, sanitizer, log)
	go func() {
		defer client.Close()
		if err := sub.Run(ctx); err != nil {
			log.Error("hardware IPC subscriber stopped", slog.String("error", err.Error()))
		}
	}()
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、放置セッションの回収ジョブを実行する。
// 複数台のキオスクが同じDBを共有する構成で、回収を1プロセスに集約するために使う。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. 回収ジョブの初期化
	sessionRepo := repository.NewPostgresGameSessionRepo(db)
	job := reaper.NewJob(sessionRepo, metrics.NopCollector{}, cfg.StaleSessionAfter, slog.Default())

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("interval", cfg.StaleSessionInterval),
		slog.Duration("stale_after", cfg.StaleSessionAfter),
	)

	// 回収ジョブをメインgoroutineで実行（ブロッキング）
	job.Start(ctx, cfg.StaleSessionInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	version, _, err := database.SchemaVersion(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	slog.Info("database migrations completed successfully", slog.Uint64("schema_version", uint64(version)))
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
