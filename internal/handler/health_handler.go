package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

const healthCheckTimeout = 3 * time.Second

// HealthChecker はDBの疎通確認インターフェース。*sql.DBが満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// LauncherHealthChecker は外部ランチャーの疎通確認インターフェース。
type LauncherHealthChecker interface {
	Health(ctx context.Context) error
}

// HealthHandler はヘルスチェック用のHTTPハンドラー。
type HealthHandler struct {
	db       HealthChecker
	launcher LauncherHealthChecker
	logger   *slog.Logger
}

// NewHealthHandler はHealthHandlerを生成する。
func NewHealthHandler(db HealthChecker, launcher LauncherHealthChecker, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{db: db, launcher: launcher, logger: logger}
}

type healthResponse struct {
	Status string `json:"status"`
}

type launcherHealthResponse struct {
	Reachable bool   `json:"reachable"`
	Error     string `json:"error,omitempty"`
}

// Health はDBに接続できれば200、できなければ503を返す。
// GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		h.logger.Warn("health check failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

// LauncherHealth は外部ランチャーへの到達可否を返す。
// 到達できない場合も画面表示用に200で返す。
// GET /api/launcher/health
func (h *HealthHandler) LauncherHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.launcher.Health(r.Context()); err != nil {
		writeJSON(w, http.StatusOK, launcherHealthResponse{Reachable: false, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, launcherHealthResponse{Reachable: true})
}
