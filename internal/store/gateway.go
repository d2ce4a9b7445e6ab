// Package store はセッション記録・評価・タイマー設定を扱う永続化ゲートウェイを提供する。
// すべての失敗は *model.StoreError として返す。
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/arcadekiosk/internal/model"
	"github.com/hitoshi/arcadekiosk/internal/repository"
)

// DefaultTimeout は1操作あたりの上限時間。
const DefaultTimeout = 5 * time.Second

// errSettingsMissing はグローバル設定行が存在しない場合のエラー。
var errSettingsMissing = errors.New("global timer setting row is missing")

// Gateway はセッションライフサイクルから見た永続化ストアの窓口。
type Gateway struct {
	sessions repository.GameSessionRepository
	ratings  repository.RatingRepository
	settings repository.SettingsRepository
	logger   *slog.Logger
	timeout  time.Duration

	newID func() string
	now   func() time.Time

	mu     sync.Mutex
	subs   map[int]func(minutes int)
	nextID int
}

// NewGateway はGatewayを生成する。timeoutが0以下の場合はDefaultTimeoutを使用する。
func NewGateway(
	sessions repository.GameSessionRepository,
	ratings repository.RatingRepository,
	settings repository.SettingsRepository,
	timeout time.Duration,
	logger *slog.Logger,
) *Gateway {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Gateway{
		sessions: sessions,
		ratings:  ratings,
		settings: settings,
		logger:   logger,
		timeout:  timeout,
		newID:    func() string { return uuid.New().String() },
		now:      time.Now,
		subs:     make(map[int]func(int)),
	}
}

// GetOpenSession は指定ゲームの未完了セッションを返す。存在しない場合はnilを返す。
func (g *Gateway) GetOpenSession(ctx context.Context, gameTitle string) (*model.SessionRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	s, err := g.sessions.FindOpenByGameTitle(ctx, gameTitle)
	if err != nil {
		return nil, &model.StoreError{Op: "get_open_session", Err: err}
	}
	return s, nil
}

// OpenSession は指定ゲームのセッションを開始する。
// 既に未完了セッションが存在する場合は新規作成せず、そのセッションをそのまま返す。
func (g *Gateway) OpenSession(ctx context.Context, gameTitle string, durationMinutes int) (*model.SessionRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	s, created, err := g.sessions.CreateIfNoneOpen(ctx, &model.SessionRecord{
		ID:              g.newID(),
		GameTitle:       gameTitle,
		StartedAt:       g.now(),
		DurationMinutes: durationMinutes,
	})
	if err != nil {
		return nil, &model.StoreError{Op: "open_session", Err: err}
	}

	if created {
		g.logger.Info("セッションを開始しました",
			slog.String("session_id", s.ID),
			slog.String("game_title", gameTitle),
			slog.Int("duration_minutes", durationMinutes),
		)
	} else {
		g.logger.Info("既存の未完了セッションを再利用します",
			slog.String("session_id", s.ID),
			slog.String("game_title", gameTitle),
		)
	}
	return s, nil
}

// CloseSession はセッションを完了済みにする。既に完了済みの場合はエラーにしない。
func (g *Gateway) CloseSession(ctx context.Context, sessionID string) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	closed, err := g.sessions.Close(ctx, sessionID, g.now())
	if err != nil {
		return &model.StoreError{Op: "close_session", Err: err}
	}
	if !closed {
		g.logger.Debug("セッションは既に完了済みです", slog.String("session_id", sessionID))
	}
	return nil
}

// RecordRating は評価を記録する。範囲外の評価値はストアに渡さず拒否する。
func (g *Gateway) RecordRating(ctx context.Context, gameTitle string, rating int) error {
	if !model.IsValidRating(rating) {
		return model.ErrInvalidRating
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	err := g.ratings.Create(ctx, &model.RatingRecord{
		ID:        g.newID(),
		GameTitle: gameTitle,
		Rating:    rating,
		CreatedAt: g.now(),
	})
	if err != nil {
		return &model.StoreError{Op: "record_rating", Err: err}
	}
	return nil
}

// TimerDuration はグローバルのタイマー設定（分）を返す。
func (g *Gateway) TimerDuration(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	setting, err := g.settings.FindTimerSetting(ctx)
	if err != nil {
		return 0, &model.StoreError{Op: "timer_duration", Err: err}
	}
	if setting == nil {
		return 0, &model.StoreError{Op: "timer_duration", Err: errSettingsMissing}
	}
	if setting.TimerDurationMinutes < 1 {
		return 0, &model.StoreError{
			Op:  "timer_duration",
			Err: fmt.Errorf("invalid timer duration: %d", setting.TimerDurationMinutes),
		}
	}
	return setting.TimerDurationMinutes, nil
}

// SubscribeTimerDuration はタイマー設定の変更通知を購読する。
// 返り値の関数を呼ぶと購読を解除する。複数回呼んでも安全。
func (g *Gateway) SubscribeTimerDuration(fn func(minutes int)) (cancel func()) {
	g.mu.Lock()
	id := g.nextID
	g.nextID++
	g.subs[id] = fn
	g.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.subs, id)
			g.mu.Unlock()
		})
	}
}

// SubscriberCount は現在の購読者数を返す。
func (g *Gateway) SubscriberCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.subs)
}

// publishTimerDuration は全購読者に新しいタイマー設定を通知する。
// コールバックはロック外で呼び出す。
func (g *Gateway) publishTimerDuration(minutes int) {
	g.mu.Lock()
	fns := make([]func(int), 0, len(g.subs))
	for _, fn := range g.subs {
		fns = append(fns, fn)
	}
	g.mu.Unlock()

	for _, fn := range fns {
		fn(minutes)
	}
}
