// Package ipc はホスト側のハードウェア連携プロセスからのイベントをRedis Pub/Subで受信し、
// セッションコントローラーの終了トリガーに変換する。
package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/arcadekiosk/internal/session"
)

// メッセージ種別
const (
	TypeExternalButtonPressed = "external-button-pressed"
	TypeWebhookStopTimer      = "webhook-stop-timer"
)

// ErrUnknownMessageType は未知の種別のメッセージを受信したことを表す。
var ErrUnknownMessageType = errors.New("unknown kiosk event type")

// Message はチャネルに流れるJSONメッセージ。
type Message struct {
	Type  string `json:"type"`
	Cause string `json:"cause,omitempty"`
}

// Triggers はサブスクライバーが呼び出すコントローラーの操作。
type Triggers interface {
	PressExternalButton(ctx context.Context) error
	StopByWebhook(ctx context.Context, detail string) error
}

// Sanitizer は停止理由のテキストを表示用に無害化する。
type Sanitizer interface {
	Sanitize(raw string) string
}

// Subscriber はRedisチャネルを購読し、受信したイベントをコントローラーに渡す。
type Subscriber struct {
	client    *redis.Client
	channel   string
	triggers  Triggers
	sanitizer Sanitizer
	logger    *slog.Logger
}

// NewSubscriber は新しいSubscriberを生成する。
func NewSubscriber(client *redis.Client, channel string, triggers Triggers, sanitizer Sanitizer, logger *slog.Logger) *Subscriber {
	return &Subscriber{
		client:    client,
		channel:   channel,
		triggers:  triggers,
		sanitizer: sanitizer,
		logger:    logger,
	}
}

// NewRedisClient はRedisクライアントを生成し、2秒のタイムアウトで疎通を確認する。
func NewRedisClient(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", addr, err)
	}
	return client, nil
}

// Run はチャネルを購読し、ctxがキャンセルされるまでメッセージを処理する。
// 切断時の再接続はgo-redisが行う。
func (s *Subscriber) Run(ctx context.Context) error {
	pubsub := s.client.Subscribe(ctx, s.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", s.channel, err)
	}

	s.logger.Info("キオスクイベントの購読を開始しました", slog.String("channel", s.channel))
	s.consume(ctx, pubsub.Channel())
	return nil
}

func (s *Subscriber) consume(ctx context.Context, messages <-chan *redis.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			if err := s.Dispatch(ctx, []byte(msg.Payload)); err != nil {
				s.logDispatchError(msg.Payload, err)
			}
		}
	}
}

// Dispatch は1件のメッセージを解釈してコントローラーに渡す。
func (s *Subscriber) Dispatch(ctx context.Context, payload []byte) error {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("failed to decode kiosk event: %w", err)
	}

	switch msg.Type {
	case TypeExternalButtonPressed:
		return s.triggers.PressExternalButton(ctx)
	case TypeWebhookStopTimer:
		detail := msg.Cause
		if s.sanitizer != nil {
			detail = s.sanitizer.Sanitize(detail)
		}
		return s.triggers.StopByWebhook(ctx, detail)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMessageType, msg.Type)
	}
}

func (s *Subscriber) logDispatchError(payload string, err error) {
	if errors.Is(err, session.ErrTerminationLatched) {
		// 終了処理中の重複トリガーは正常系
		s.logger.Debug("終了処理中のためキオスクイベントを無視しました", slog.String("payload", payload))
		return
	}
	s.logger.Warn("キオスクイベントの処理に失敗しました",
		slog.String("payload", payload),
		slog.String("error", err.Error()),
	)
}
