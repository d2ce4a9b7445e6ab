package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/arcadekiosk/internal/launcher"
	"github.com/hitoshi/arcadekiosk/internal/metrics"
	"github.com/hitoshi/arcadekiosk/internal/model"
	"github.com/hitoshi/arcadekiosk/internal/telemetry"
)

// Launcher は外部ランチャーへの一次経路。
type Launcher interface {
	SendLaunch(ctx context.Context, cmd launcher.LaunchCommand) error
	SendStop(ctx context.Context) error
}

// Store はコントローラーが使う永続化ストアの操作。
type Store interface {
	OpenSession(ctx context.Context, gameTitle string, durationMinutes int) (*model.SessionRecord, error)
	CloseSession(ctx context.Context, sessionID string) error
	RecordRating(ctx context.Context, gameTitle string, rating int) error
	TimerDuration(ctx context.Context) (int, error)
	SubscribeTimerDuration(fn func(minutes int)) (cancel func())
}

const (
	defaultTickInterval = time.Second
	defaultDrainTimeout = 15 * time.Second
	eventQueueSize      = 64
	// defaultFallbackTimeout はキー入力シミュレーション1回あたりの上限。
	defaultFallbackTimeout = 5 * time.Second
)

// Config はControllerの設定値。
type Config struct {
	DefaultTimerMinutes int
	FallbackStopKey     string
	TickInterval        time.Duration
	DrainTimeout        time.Duration
	// FallbackTimeout はフォールバックのキー入力1回の上限。超えた場合は失敗として扱い状態遷移を進める。
	FallbackTimeout time.Duration
	// Ticks を指定するとTickIntervalのティッカーの代わりに使う。
	Ticks <-chan time.Time
}

// Controller はキオスク1台分のセッション状態機械を駆動する。
// 全イベントを単一のゴルーチン（Run）で逐次処理し、I/Oは副作用として別ゴルーチンで実行する。
type Controller struct {
	launcher  Launcher
	fallback  launcher.KeyPresser
	store     Store
	publisher telemetry.Publisher
	metrics   metrics.MetricsCollector
	logger    *slog.Logger
	cfg       Config

	events chan envelope
	done   chan struct{}

	// effectCtx は副作用の実行に使う。停止時のドレインがタイムアウトした時点でキャンセルする。
	effectCtx     context.Context
	cancelEffects context.CancelFunc

	// Runのゴルーチンのみが触る
	state    State
	inflight int
	stopping bool
	ticker   *time.Ticker // Config.Ticks指定時はnil

	mu       sync.RWMutex
	snapshot Snapshot
}

type envelope struct {
	ev     Event
	reply  chan error
	result bool
}

// NewController はControllerを生成する。publisherとcollectorはnilでもよい。
func NewController(
	l Launcher,
	fallback launcher.KeyPresser,
	store Store,
	publisher telemetry.Publisher,
	collector metrics.MetricsCollector,
	cfg Config,
	logger *slog.Logger,
) *Controller {
	if publisher == nil {
		publisher = telemetry.NopPublisher{}
	}
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = defaultTickInterval
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = defaultDrainTimeout
	}
	if cfg.FallbackTimeout <= 0 {
		cfg.FallbackTimeout = defaultFallbackTimeout
	}

	effectCtx, cancelEffects := context.WithCancel(context.Background())
	c := &Controller{
		launcher:      l,
		fallback:      fallback,
		store:         store,
		publisher:     publisher,
		metrics:       collector,
		logger:        logger,
		cfg:           cfg,
		events:        make(chan envelope, eventQueueSize),
		done:          make(chan struct{}),
		effectCtx:     effectCtx,
		cancelEffects: cancelEffects,
		state:         NewState(cfg.DefaultTimerMinutes),
	}
	c.snapshot = c.state.Snapshot()
	return c
}

// Run はイベントループを開始する。ctxがキャンセルされると停止処理を行い、
// 実行中の副作用の完了をDrainTimeoutまで待ってから返る。
func (c *Controller) Run(ctx context.Context) error {
	defer close(c.done)
	defer c.cancelEffects()

	unsubscribe := c.store.SubscribeTimerDuration(func(minutes int) {
		c.deliver(envelope{ev: TimerSettingChanged{Minutes: minutes}})
	})

	ticks := c.cfg.Ticks
	if ticks == nil {
		c.ticker = time.NewTicker(c.cfg.TickInterval)
		defer c.ticker.Stop()
		ticks = c.ticker.C
	}

	c.execute(FetchTimerSetting{Gen: c.state.Gen})

	c.logger.Info("セッションコントローラーを開始しました",
		slog.Int("timer_minutes", c.state.TimerMinutes),
	)

	for {
		select {
		case <-ctx.Done():
			unsubscribe()
			c.shutdown()
			return nil
		case <-ticks:
			c.apply(Tick{})
		case env := <-c.events:
			c.handle(env)
		}
	}
}

// shutdown は停止イベントを適用し、実行中の副作用の結果を待つ。
func (c *Controller) shutdown() {
	c.stopping = true
	c.apply(Teardown{})

	timer := time.NewTimer(c.cfg.DrainTimeout)
	defer timer.Stop()

	for c.inflight > 0 {
		select {
		case env := <-c.events:
			c.handle(env)
		case <-timer.C:
			c.logger.Warn("停止処理のタイムアウトにより未完了の処理を打ち切りました",
				slog.Int("inflight", c.inflight),
				slog.String("phase", c.state.Phase.String()),
			)
			return
		}
	}

	c.logger.Info("セッションコントローラーを停止しました",
		slog.String("phase", c.state.Phase.String()),
	)
}

func (c *Controller) handle(env envelope) {
	if env.result {
		c.inflight--
	}

	// 停止処理中は副作用の結果以外を受け付けない
	if c.stopping && !env.result {
		if env.reply != nil {
			env.reply <- ErrControllerStopped
		}
		return
	}

	err := c.apply(env.ev)
	if env.reply != nil {
		env.reply <- err
	}
}

// apply はイベントを状態機械に適用し、要求された副作用を実行する。
func (c *Controller) apply(ev Event) error {
	prev := c.state
	next, effects, err := Step(prev, ev)
	if err != nil {
		c.logRejected(prev, ev, err)
		return err
	}

	c.state = next
	c.observeTransition(prev, next, ev)
	c.publishSnapshot()

	for _, eff := range effects {
		c.execute(eff)
	}
	return nil
}

func (c *Controller) logRejected(s State, ev Event, err error) {
	name := ev.eventName()
	switch {
	case errors.Is(err, ErrTerminationLatched):
		c.metrics.RecordTriggerIgnored(name)
		c.logger.Info("終了処理中のためトリガーを無視しました",
			slog.String("event", name),
			slog.String("phase", s.Phase.String()),
			slog.String("cause", string(s.Cause)),
		)
	case errors.Is(err, model.ErrInvalidRating):
		c.logger.Warn("範囲外の評価を拒否しました", slog.String("phase", s.Phase.String()))
	default:
		c.logger.Warn("許可されていない状態遷移を無視しました",
			slog.String("event", name),
			slog.String("phase", s.Phase.String()),
		)
	}
}

func (c *Controller) observeTransition(prev, next State, ev Event) {
	if next.Phase == PhaseRunning {
		c.metrics.SetRemainingSeconds(next.Countdown.Remaining())
	}
	if prev.Phase == next.Phase {
		return
	}

	// 最初のTickはRunning開始からTickInterval後に届く
	if next.Phase == PhaseRunning && c.ticker != nil {
		c.ticker.Reset(c.cfg.TickInterval)
	}
	if prev.Phase == PhaseRunning && next.Phase != PhaseRunning {
		c.metrics.SetRemainingSeconds(0)
	}
	if next.Phase == PhaseTerminating {
		c.metrics.RecordTermination(string(next.Cause))
	}

	c.logger.Info("セッション状態が遷移しました",
		slog.String("from", prev.Phase.String()),
		slog.String("to", next.Phase.String()),
		slog.String("event", ev.eventName()),
		slog.String("game_title", next.Game.Title),
	)
}

func (c *Controller) publishSnapshot() {
	snap := c.state.Snapshot()
	c.mu.Lock()
	c.snapshot = snap
	c.mu.Unlock()
}

// Snapshot は現在の状態のコピーを返す。任意のゴルーチンから呼べる。
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}

// Post はイベントをキューに投入し、適用結果を待つ。
// 許可されていない遷移は *model.StateError、終了処理中の終了要求は ErrTerminationLatched を返す。
func (c *Controller) Post(ctx context.Context, ev Event) error {
	reply := make(chan error, 1)
	select {
	case c.events <- envelope{ev: ev, reply: reply}:
	case <-c.done:
		return ErrControllerStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-reply:
		return err
	case <-c.done:
		return ErrControllerStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// deliver は応答を待たずにイベントを投入する。停止後は破棄する。
func (c *Controller) deliver(env envelope) {
	select {
	case c.events <- env:
	case <-c.done:
	}
}

// Done はRunが終了したときに閉じられるチャネルを返す。
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// execute は副作用を別ゴルーチンで実行し、結果をイベントとして戻す。
func (c *Controller) execute(eff Effect) {
	c.inflight++
	go func() {
		ev := c.run(eff)
		c.deliver(envelope{ev: ev, result: true})
	}()
}

// run は副作用を1つ実行する。各呼び出しはランチャー・ストア側のタイムアウトで上限が決まる。
func (c *Controller) run(eff Effect) Event {
	ctx := c.effectCtx

	switch e := eff.(type) {
	case FetchTimerSetting:
		minutes, err := c.store.TimerDuration(ctx)
		if err != nil {
			c.storeFailed("timer_duration", err)
		}
		return TimerSettingFetched{Gen: e.Gen, Minutes: minutes, Err: err}

	case SendLaunch:
		primary, fallback := c.dispatch(ctx, "launch", e.Key, func(ctx context.Context) error {
			return c.launcher.SendLaunch(ctx, launcher.LaunchCommand{Key: e.Key, SteamURL: e.SteamURL})
		})
		return LaunchDispatched{Gen: e.Gen, PrimaryErr: primary, FallbackErr: fallback}

	case OpenSession:
		rec, err := c.store.OpenSession(ctx, e.GameTitle, e.DurationMinutes)
		if err != nil {
			c.storeFailed("open_session", err)
			return SessionOpenFailed{Gen: e.Gen, Err: err}
		}
		c.metrics.RecordSessionOpened(e.GameTitle)
		c.publish(ctx, telemetry.Event{
			Type:            telemetry.TypeSessionOpened,
			SessionID:       rec.ID,
			GameTitle:       e.GameTitle,
			DurationMinutes: rec.DurationMinutes,
		})
		return SessionOpened{Gen: e.Gen, Record: rec}

	case SendStop:
		primary, fallback := c.dispatch(ctx, "stop", c.cfg.FallbackStopKey, c.launcher.SendStop)
		return StopDispatched{Gen: e.Gen, PrimaryErr: primary, FallbackErr: fallback}

	case CloseSession:
		err := c.store.CloseSession(ctx, e.SessionID)
		if err != nil {
			c.storeFailed("close_session", err)
		} else {
			c.publish(ctx, telemetry.Event{
				Type:      telemetry.TypeSessionClosed,
				SessionID: e.SessionID,
				GameTitle: e.GameTitle,
				Cause:     string(e.Cause),
			})
		}
		return SessionClosed{Gen: e.Gen, Err: err}

	case RecordRating:
		err := c.store.RecordRating(ctx, e.GameTitle, e.Rating)
		if err != nil {
			c.storeFailed("record_rating", err)
		} else {
			c.metrics.RecordRating(e.Rating)
			c.publish(ctx, telemetry.Event{
				Type:      telemetry.TypeRatingRecorded,
				GameTitle: e.GameTitle,
				Rating:    e.Rating,
			})
		}
		return RatingRecorded{Gen: e.Gen, Err: err}
	}

	panic("session: unknown effect " + eff.effectName())
}

// dispatch は一次経路でコマンドを送り、失敗した場合のみフォールバックでkeyを送る。
// フォールバックの失敗はログとメトリクスのみで、呼び出し元には結果として返す。
func (c *Controller) dispatch(ctx context.Context, op, key string, primary func(context.Context) error) (primaryErr, fallbackErr error) {
	primaryErr = primary(ctx)
	if primaryErr == nil {
		return nil, nil
	}

	c.metrics.RecordTransportFailure(op)
	c.logger.Warn("ランチャーへの送信に失敗したためフォールバック経路を試行します",
		slog.String("op", op),
		slog.String("key", key),
		slog.String("error", primaryErr.Error()),
	)

	if c.fallback == nil || key == "" {
		return primaryErr, launcher.ErrFallbackDisabled
	}

	fbCtx, cancel := context.WithTimeout(ctx, c.cfg.FallbackTimeout)
	defer cancel()
	fallbackErr = c.fallback.PressKey(fbCtx, key)
	c.metrics.RecordFallback(op, fallbackErr == nil)
	if fallbackErr != nil {
		c.logger.Error("フォールバック経路での送信にも失敗しました",
			slog.String("op", op),
			slog.String("key", key),
			slog.String("error", fallbackErr.Error()),
		)
	}
	return primaryErr, fallbackErr
}

func (c *Controller) storeFailed(op string, err error) {
	c.metrics.RecordStoreError(op)
	c.logger.Error("ストア操作に失敗しました",
		slog.String("op", op),
		slog.String("error", err.Error()),
	)
}

func (c *Controller) publish(ctx context.Context, ev telemetry.Event) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	if err := c.publisher.Publish(ctx, ev); err != nil {
		c.logger.Warn("テレメトリイベントの送信に失敗しました",
			slog.String("type", ev.Type),
			slog.String("error", err.Error()),
		)
	}
}
