package store

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/lib/pq"
)

// SettingsChannel はタイマー設定変更を通知するPostgreSQLのLISTENチャネル名。
// マイグレーションのトリガーがpg_notifyで新しい分数を送る。
const SettingsChannel = "settings_changed"

const (
	minReconnectInterval = 10 * time.Second
	maxReconnectInterval = time.Minute
	listenerPingInterval = 90 * time.Second
)

// SettingsNotifier は設定変更通知の供給元。
// 受信したnilの通知は再接続を意味し、通知の取りこぼしがあり得る。
type SettingsNotifier interface {
	Notifications() <-chan *pq.Notification
	Ping() error
}

// PQSettingsListener はpq.ListenerによるSettingsNotifier実装。
type PQSettingsListener struct {
	listener *pq.Listener
}

// NewPQSettingsListener はsettings_changedチャネルをLISTENするリスナーを生成する。
func NewPQSettingsListener(databaseURL string, logger *slog.Logger) (*PQSettingsListener, error) {
	l := pq.NewListener(databaseURL, minReconnectInterval, maxReconnectInterval,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				logger.Warn("設定通知リスナーの接続状態が変化しました",
					slog.Int("event", int(ev)),
					slog.String("error", err.Error()),
				)
			}
		})

	if err := l.Listen(SettingsChannel); err != nil {
		l.Close()
		return nil, fmt.Errorf("failed to listen %s: %w", SettingsChannel, err)
	}
	return &PQSettingsListener{listener: l}, nil
}

// Notifications は通知チャネルを返す。
func (p *PQSettingsListener) Notifications() <-chan *pq.Notification {
	return p.listener.Notify
}

// Ping は接続の生存確認を行う。
func (p *PQSettingsListener) Ping() error {
	return p.listener.Ping()
}

// Close はLISTENを終了して接続を閉じる。
func (p *PQSettingsListener) Close() error {
	return p.listener.Close()
}

// WatchSettings は設定変更通知を受信し、購読者にタイマー設定を配信する。
// ctxがキャンセルされるか通知チャネルが閉じられるまでブロックする。
func (g *Gateway) WatchSettings(ctx context.Context, n SettingsNotifier) {
	ping := time.NewTicker(listenerPingInterval)
	defer ping.Stop()

	ch := n.Notifications()
	for {
		select {
		case <-ctx.Done():
			return
		case notif, ok := <-ch:
			if !ok {
				g.logger.Warn("設定通知チャネルが閉じられました")
				return
			}
			g.handleNotification(ctx, notif)
		case <-ping.C:
			if err := n.Ping(); err != nil {
				g.logger.Warn("設定通知リスナーのPingに失敗しました", slog.String("error", err.Error()))
			}
		}
	}
}

func (g *Gateway) handleNotification(ctx context.Context, notif *pq.Notification) {
	// 再接続時は最新値を取り直す
	if notif == nil {
		g.refreshTimerDuration(ctx)
		return
	}

	minutes, err := strconv.Atoi(notif.Extra)
	if err != nil || minutes < 1 {
		g.logger.Warn("設定通知のペイロードが不正なため再取得します",
			slog.String("payload", notif.Extra),
		)
		g.refreshTimerDuration(ctx)
		return
	}

	g.logger.Info("タイマー設定の変更を受信しました", slog.Int("timer_minutes", minutes))
	g.publishTimerDuration(minutes)
}

func (g *Gateway) refreshTimerDuration(ctx context.Context) {
	minutes, err := g.TimerDuration(ctx)
	if err != nil {
		g.logger.Warn("タイマー設定の再取得に失敗しました", slog.String("error", err.Error()))
		return
	}
	g.publishTimerDuration(minutes)
}
