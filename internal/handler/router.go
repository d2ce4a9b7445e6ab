package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/arcadekiosk/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// キオスク操作
	Controller SessionController
	Catalog    GameCatalog
	Sanitizer  TextSanitizer

	// ヘルスチェック
	HealthChecker  HealthChecker
	LauncherHealth LauncherHealthChecker

	// MetricsHandler がnilの場合は/metricsを公開しない
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → RealIP → Recovery → Logging → SecurityHeaders → CORS → RateLimit(General)
//
// /health と /metrics はレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	kioskHandler := NewKioskHandler(deps.Controller, deps.Catalog, deps.Sanitizer, deps.Logger)
	healthHandler := NewHealthHandler(deps.HealthChecker, deps.LauncherHealth, deps.Logger)

	r.Get("/health", healthHandler.Health)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// RFIDタップはタグリーダーの連続読み取り対策として専用のレート制限を追加
		r.With(deps.RateLimiter.TapMiddleware()).Post("/rfid", kioskHandler.Tap)

		r.Post("/launch", kioskHandler.ConfirmLaunch)
		r.Post("/exit", kioskHandler.Exit)
		r.Post("/external-button", kioskHandler.ExternalButton)
		r.Post("/webhook/stop-timer", kioskHandler.WebhookStop)

		r.Route("/rating", func(r chi.Router) {
			r.Post("/", kioskHandler.SubmitRating)
			r.Post("/skip", kioskHandler.SkipRating)
		})

		r.Get("/state", kioskHandler.State)
		r.Get("/games", kioskHandler.ListGames)
		r.Get("/launcher/health", healthHandler.LauncherHealth)
	})

	return r
}
