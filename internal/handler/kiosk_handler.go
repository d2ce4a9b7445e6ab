package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/arcadekiosk/internal/model"
	"github.com/hitoshi/arcadekiosk/internal/session"
)

// SessionController はキオスクハンドラーが操作するセッションコントローラーのインターフェース。
type SessionController interface {
	Tap(ctx context.Context, game model.GameRef) error
	ConfirmLaunch(ctx context.Context) error
	Exit(ctx context.Context) error
	PressExternalButton(ctx context.Context) error
	StopByWebhook(ctx context.Context, detail string) error
	SubmitRating(ctx context.Context, rating int) error
	SkipRating(ctx context.Context) error
	Snapshot() session.Snapshot
}

// GameCatalog はRFIDタップの解決とゲーム一覧に使うカタログの読み取りインターフェース。
type GameCatalog interface {
	FindByTitle(ctx context.Context, title string) (*model.GameRef, error)
	List(ctx context.Context) ([]*model.GameRef, error)
}

// TextSanitizer は停止理由のテキストを表示用に無害化する。
type TextSanitizer interface {
	Sanitize(raw string) string
}

// KioskHandler はキオスクUIとハードウェア連携プロセスからの操作を受け付けるHTTPハンドラー。
type KioskHandler struct {
	controller SessionController
	catalog    GameCatalog
	sanitizer  TextSanitizer
	logger     *slog.Logger
}

// NewKioskHandler はKioskHandlerを生成する。
func NewKioskHandler(controller SessionController, catalog GameCatalog, sanitizer TextSanitizer, logger *slog.Logger) *KioskHandler {
	return &KioskHandler{
		controller: controller,
		catalog:    catalog,
		sanitizer:  sanitizer,
		logger:     logger,
	}
}

type rfidRequest struct {
	Title string `json:"title"`
}

type ratingRequest struct {
	Rating int `json:"rating"`
}

type webhookStopRequest struct {
	Cause string `json:"cause"`
}

// gameResponse はカタログのゲーム情報のAPIレスポンス。
type gameResponse struct {
	Title                string `json:"title"`
	LaunchKey            string `json:"launch_key"`
	SteamURL             string `json:"steam_url,omitempty"`
	TimerOverrideSeconds int    `json:"timer_override_seconds,omitempty"`
}

// Tap はRFIDタグから読み取ったタイトルでゲームを選択する。
// POST /api/rfid
func (h *KioskHandler) Tap(w http.ResponseWriter, r *http.Request) {
	var req rfidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("JSONの解析に失敗しました"))
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("titleは必須です"))
		return
	}

	game, err := h.catalog.FindByTitle(r.Context(), title)
	if err != nil {
		h.logger.Error("failed to look up game",
			slog.String("title", title),
			slog.String("error", err.Error()),
		)
		writeAPIErrorResponse(w, http.StatusServiceUnavailable, model.NewKioskUnavailableError())
		return
	}
	if game == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewGameNotFoundError(title))
		return
	}

	h.respond(w, h.controller.Tap(r.Context(), *game))
}

// ConfirmLaunch は選択中のゲームを起動する。
// POST /api/launch
func (h *KioskHandler) ConfirmLaunch(w http.ResponseWriter, r *http.Request) {
	h.respond(w, h.controller.ConfirmLaunch(r.Context()))
}

// Exit はキオスク終了操作を受け付ける。起動前なら選択を取り消す。
// POST /api/exit
func (h *KioskHandler) Exit(w http.ResponseWriter, r *http.Request) {
	h.respond(w, h.controller.Exit(r.Context()))
}

// ExternalButton はハードウェアの停止ボタン押下を受け付ける。
// POST /api/external-button
func (h *KioskHandler) ExternalButton(w http.ResponseWriter, r *http.Request) {
	h.respond(w, h.controller.PressExternalButton(r.Context()))
}

// WebhookStop は外部システムからの停止要求を受け付ける。ボディは省略できる。
// POST /api/webhook/stop-timer
func (h *KioskHandler) WebhookStop(w http.ResponseWriter, r *http.Request) {
	var req webhookStopRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("JSONの解析に失敗しました"))
		return
	}
	detail := req.Cause
	if h.sanitizer != nil {
		detail = h.sanitizer.Sanitize(detail)
	}
	h.respond(w, h.controller.StopByWebhook(r.Context(), detail))
}

// SubmitRating は評価を送信する。
// POST /api/rating
func (h *KioskHandler) SubmitRating(w http.ResponseWriter, r *http.Request) {
	var req ratingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("JSONの解析に失敗しました"))
		return
	}
	if !model.IsValidRating(req.Rating) {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRatingError(req.Rating))
		return
	}
	h.respond(w, h.controller.SubmitRating(r.Context(), req.Rating))
}

// SkipRating は評価入力を省略する。
// POST /api/rating/skip
func (h *KioskHandler) SkipRating(w http.ResponseWriter, r *http.Request) {
	h.respond(w, h.controller.SkipRating(r.Context()))
}

// State は現在のセッション状態を返す。キオスクUIがポーリングする。
// GET /api/state
func (h *KioskHandler) State(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.controller.Snapshot())
}

// ListGames はカタログのゲーム一覧を返す。
// GET /api/games
func (h *KioskHandler) ListGames(w http.ResponseWriter, r *http.Request) {
	games, err := h.catalog.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list games", slog.String("error", err.Error()))
		writeAPIErrorResponse(w, http.StatusServiceUnavailable, model.NewKioskUnavailableError())
		return
	}

	resp := make([]gameResponse, 0, len(games))
	for _, g := range games {
		resp = append(resp, gameResponse{
			Title:                g.Title,
			LaunchKey:            g.LaunchKey,
			SteamURL:             g.SteamURL,
			TimerOverrideSeconds: g.TimerOverrideSeconds,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *KioskHandler) respond(w http.ResponseWriter, err error) {
	snap := h.controller.Snapshot()
	if err != nil {
		handleControllerError(w, h.logger, snap, err)
		return
	}
	writeJSON(w, http.StatusOK, actionResponse{Accepted: true, State: snap})
}
