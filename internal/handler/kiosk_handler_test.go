package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/arcadekiosk/internal/middleware"
	"github.com/hitoshi/arcadekiosk/internal/model"
	"github.com/hitoshi/arcadekiosk/internal/security"
	"github.com/hitoshi/arcadekiosk/internal/session"
)

// --- モック定義 ---

type mockController struct {
	tapFn          func(ctx context.Context, game model.GameRef) error
	confirmFn      func(ctx context.Context) error
	exitFn         func(ctx context.Context) error
	buttonFn       func(ctx context.Context) error
	webhookFn      func(ctx context.Context, detail string) error
	submitRatingFn func(ctx context.Context, rating int) error
	skipRatingFn   func(ctx context.Context) error
	snapshot       session.Snapshot
}

func (m *mockController) Tap(ctx context.Context, game model.GameRef) error {
	if m.tapFn != nil {
		return m.tapFn(ctx, game)
	}
	return nil
}

func (m *mockController) ConfirmLaunch(ctx context.Context) error {
	if m.confirmFn != nil {
		return m.confirmFn(ctx)
	}
	return nil
}

func (m *mockController) Exit(ctx context.Context) error {
	if m.exitFn != nil {
		return m.exitFn(ctx)
	}
	return nil
}

func (m *mockController) PressExternalButton(ctx context.Context) error {
	if m.buttonFn != nil {
		return m.buttonFn(ctx)
	}
	return nil
}

func (m *mockController) StopByWebhook(ctx context.Context, detail string) error {
	if m.webhookFn != nil {
		return m.webhookFn(ctx, detail)
	}
	return nil
}

func (m *mockController) SubmitRating(ctx context.Context, rating int) error {
	if m.submitRatingFn != nil {
		return m.submitRatingFn(ctx, rating)
	}
	return nil
}

func (m *mockController) SkipRating(ctx context.Context) error {
	if m.skipRatingFn != nil {
		return m.skipRatingFn(ctx)
	}
	return nil
}

func (m *mockController) Snapshot() session.Snapshot {
	return m.snapshot
}

type mockCatalog struct {
	findByTitleFn func(ctx context.Context, title string) (*model.GameRef, error)
	listFn        func(ctx context.Context) ([]*model.GameRef, error)
}

func (m *mockCatalog) FindByTitle(ctx context.Context, title string) (*model.GameRef, error) {
	if m.findByTitleFn != nil {
		return m.findByTitleFn(ctx, title)
	}
	return nil, nil
}

func (m *mockCatalog) List(ctx context.Context) ([]*model.GameRef, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

// --- テストヘルパー ---

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

func newTestKioskHandler(ctrl *mockController, catalog *mockCatalog) *KioskHandler {
	var buf bytes.Buffer
	return NewKioskHandler(ctrl, catalog, security.NewTextSanitizer(), newTestLogger(&buf))
}

func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorResponseBody {
	t.Helper()
	var body middleware.ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return body
}

func parseActionResponse(t *testing.T, w *httptest.ResponseRecorder) actionResponse {
	t.Helper()
	var body actionResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode action response: %v", err)
	}
	return body
}

var elvenAssassin = &model.GameRef{Title: "Elven Assassin", LaunchKey: "e"}

// --- テスト ---

func TestKioskHandler_Tap_ResolvesGameFromCatalog(t *testing.T) {
	var tapped model.GameRef
	ctrl := &mockController{
		tapFn: func(_ context.Context, game model.GameRef) error {
			tapped = game
			return nil
		},
		snapshot: session.Snapshot{Phase: "armed", GameTitle: "Elven Assassin"},
	}
	catalog := &mockCatalog{findByTitleFn: func(_ context.Context, title string) (*model.GameRef, error) {
		if title == "Elven Assassin" {
			return elvenAssassin, nil
		}
		return nil, nil
	}}
	h := newTestKioskHandler(ctrl, catalog)

	req := httptest.NewRequest(http.MethodPost, "/api/rfid", strings.NewReader(`{"title":"  Elven Assassin "}`))
	w := httptest.NewRecorder()
	h.Tap(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if tapped.LaunchKey != "e" {
		t.Errorf("tapped game = %+v", tapped)
	}
	body := parseActionResponse(t, w)
	if !body.Accepted || body.State.Phase != "armed" {
		t.Errorf("body = %+v", body)
	}
}

func TestKioskHandler_Tap_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		catalog    *mockCatalog
		wantStatus int
		wantCode   string
	}{
		{
			name:       "不正なJSON",
			body:       `{`,
			catalog:    &mockCatalog{},
			wantStatus: http.StatusBadRequest,
			wantCode:   model.ErrCodeInvalidRequest,
		},
		{
			name:       "タイトルが空",
			body:       `{"title":"  "}`,
			catalog:    &mockCatalog{},
			wantStatus: http.StatusBadRequest,
			wantCode:   model.ErrCodeInvalidRequest,
		},
		{
			name:       "カタログに存在しない",
			body:       `{"title":"Unknown"}`,
			catalog:    &mockCatalog{},
			wantStatus: http.StatusNotFound,
			wantCode:   model.ErrCodeGameNotFound,
		},
		{
			name: "カタログの読み取り失敗",
			body: `{"title":"Elven Assassin"}`,
			catalog: &mockCatalog{findByTitleFn: func(context.Context, string) (*model.GameRef, error) {
				return nil, errors.New("db down")
			}},
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   model.ErrCodeKioskUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := &mockController{tapFn: func(context.Context, model.GameRef) error {
				t.Fatal("controller should not be called")
				return nil
			}}
			h := newTestKioskHandler(ctrl, tt.catalog)

			w := httptest.NewRecorder()
			h.Tap(w, httptest.NewRequest(http.MethodPost, "/api/rfid", strings.NewReader(tt.body)))

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if body := parseAPIErrorResponse(t, w); body.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Code, tt.wantCode)
			}
		})
	}
}

func TestKioskHandler_ControllerErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"状態遷移エラー", &model.StateError{Phase: "idle", Event: "confirm_launch"}, http.StatusConflict, model.ErrCodeInvalidTransition},
		{"停止済み", session.ErrControllerStopped, http.StatusServiceUnavailable, model.ErrCodeKioskUnavailable},
		{"キャンセル", context.Canceled, http.StatusServiceUnavailable, model.ErrCodeKioskUnavailable},
		{"想定外", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := &mockController{confirmFn: func(context.Context) error { return tt.err }}
			h := newTestKioskHandler(ctrl, &mockCatalog{})

			w := httptest.NewRecorder()
			h.ConfirmLaunch(w, httptest.NewRequest(http.MethodPost, "/api/launch", nil))

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if body := parseAPIErrorResponse(t, w); body.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Code, tt.wantCode)
			}
		})
	}
}

func TestKioskHandler_LatchedTriggerIsAccepted202(t *testing.T) {
	ctrl := &mockController{
		buttonFn: func(context.Context) error { return session.ErrTerminationLatched },
		snapshot: session.Snapshot{Phase: "terminating", Cause: "timeout"},
	}
	h := newTestKioskHandler(ctrl, &mockCatalog{})

	w := httptest.NewRecorder()
	h.ExternalButton(w, httptest.NewRequest(http.MethodPost, "/api/external-button", nil))

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", w.Code)
	}
	body := parseActionResponse(t, w)
	if body.Accepted {
		t.Error("accepted should be false for a latched trigger")
	}
	if body.State.Cause != "timeout" {
		t.Errorf("state = %+v", body.State)
	}
}

func TestKioskHandler_WebhookStop(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantDetail string
	}{
		{"理由付き", `{"cause":"<b>閉店</b>作業"}`, http.StatusOK, "閉店作業"},
		{"ボディなし", ``, http.StatusOK, ""},
		{"不正なJSON", `{"cause":`, http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotDetail string
			called := false
			ctrl := &mockController{webhookFn: func(_ context.Context, detail string) error {
				called = true
				gotDetail = detail
				return nil
			}}
			h := newTestKioskHandler(ctrl, &mockCatalog{})

			w := httptest.NewRecorder()
			h.WebhookStop(w, httptest.NewRequest(http.MethodPost, "/api/webhook/stop-timer", strings.NewReader(tt.body)))

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusOK {
				if !called || gotDetail != tt.wantDetail {
					t.Errorf("called = %v detail = %q, want %q", called, gotDetail, tt.wantDetail)
				}
			} else if called {
				t.Error("controller should not be called for a malformed body")
			}
		})
	}
}

func TestKioskHandler_SubmitRating(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCalled bool
	}{
		{"有効な評価", `{"rating":4}`, http.StatusOK, true},
		{"下限未満", `{"rating":0}`, http.StatusBadRequest, false},
		{"上限超過", `{"rating":6}`, http.StatusBadRequest, false},
		{"不正なJSON", `rating=4`, http.StatusBadRequest, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got int
			ctrl := &mockController{submitRatingFn: func(_ context.Context, rating int) error {
				got = rating
				return nil
			}}
			h := newTestKioskHandler(ctrl, &mockCatalog{})

			w := httptest.NewRecorder()
			h.SubmitRating(w, httptest.NewRequest(http.MethodPost, "/api/rating", strings.NewReader(tt.body)))

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if (got != 0) != tt.wantCalled {
				t.Errorf("controller called = %v, want %v", got != 0, tt.wantCalled)
			}
		})
	}
}

func TestKioskHandler_SimpleActions(t *testing.T) {
	calls := map[string]int{}
	ctrl := &mockController{
		exitFn:       func(context.Context) error { calls["exit"]++; return nil },
		skipRatingFn: func(context.Context) error { calls["skip"]++; return nil },
	}
	h := newTestKioskHandler(ctrl, &mockCatalog{})

	h.Exit(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/exit", nil))
	h.SkipRating(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/rating/skip", nil))

	if calls["exit"] != 1 || calls["skip"] != 1 {
		t.Errorf("calls = %v", calls)
	}
}

func TestKioskHandler_State(t *testing.T) {
	ctrl := &mockController{snapshot: session.Snapshot{
		Phase:            "running",
		GameTitle:        "Elven Assassin",
		RemainingSeconds: 298,
		Running:          true,
		TimerMinutes:     8,
	}}
	h := newTestKioskHandler(ctrl, &mockCatalog{})

	w := httptest.NewRecorder()
	h.State(w, httptest.NewRequest(http.MethodGet, "/api/state", nil))

	var snap session.Snapshot
	if err := json.NewDecoder(w.Body).Decode(&snap); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if snap.RemainingSeconds != 298 || !snap.Running || snap.Phase != "running" {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestKioskHandler_ListGames(t *testing.T) {
	catalog := &mockCatalog{listFn: func(context.Context) ([]*model.GameRef, error) {
		return []*model.GameRef{
			{Title: "Beat Saber", LaunchKey: "b", TimerOverrideSeconds: 300},
			elvenAssassin,
		}, nil
	}}
	h := newTestKioskHandler(&mockController{}, catalog)

	w := httptest.NewRecorder()
	h.ListGames(w, httptest.NewRequest(http.MethodGet, "/api/games", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var games []gameResponse
	if err := json.NewDecoder(w.Body).Decode(&games); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if len(games) != 2 || games[0].TimerOverrideSeconds != 300 || games[1].LaunchKey != "e" {
		t.Errorf("games = %+v", games)
	}
}

func TestKioskHandler_ListGames_EmptyIsArray(t *testing.T) {
	h := newTestKioskHandler(&mockController{}, &mockCatalog{})

	w := httptest.NewRecorder()
	h.ListGames(w, httptest.NewRequest(http.MethodGet, "/api/games", nil))

	if got := strings.TrimSpace(w.Body.String()); got != "[]" {
		t.Errorf("body = %s, want []", got)
	}
}
