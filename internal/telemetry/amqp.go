package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// amqpChannel はPublisherが使うAMQPチャネル操作。テストで差し替えられるようにする。
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher はRabbitMQの永続キューにイベントを送るPublisher。
// 接続は起動時に1本だけ張り、チャネルはミューテックスで直列化して使う。
type AMQPPublisher struct {
	conn    *amqp.Connection
	ch      amqpChannel
	queue   string
	kioskID string
	logger  *slog.Logger
	mu      sync.Mutex
}

// NewAMQPPublisher はRabbitMQに接続し、永続キューを宣言したPublisherを返す。
func NewAMQPPublisher(url, queue, kioskID string, logger *slog.Logger) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open rabbitmq channel: %w", err)
	}

	// ブローカー再起動後もメッセージが残るようdurableで宣言する
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}

	return &AMQPPublisher{
		conn:    conn,
		ch:      ch,
		queue:   queue,
		kioskID: kioskID,
		logger:  logger,
	}, nil
}

// Publish はイベントをJSONにして永続メッセージとして送信する。
func (p *AMQPPublisher) Publish(ctx context.Context, ev Event) error {
	if ev.KioskID == "" {
		ev.KioskID = p.kioskID
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal telemetry event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    ev.OccurredAt,
		Type:         ev.Type,
		Body:         body,
	})
	if err != nil {
		p.logger.Warn("テレメトリイベントの送信に失敗しました",
			slog.String("type", ev.Type),
			slog.String("queue", p.queue),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to publish telemetry event: %w", err)
	}
	return nil
}

// Close はチャネルと接続を閉じる。
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	chErr := p.ch.Close()
	var connErr error
	if p.conn != nil {
		connErr = p.conn.Close()
	}
	if chErr != nil {
		return chErr
	}
	return connErr
}

var _ Publisher = (*AMQPPublisher)(nil)
