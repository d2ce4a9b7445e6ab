// Package telemetry はセッションの開始・終了・評価イベントを外部のメッセージブローカーへ送信する。
// 送信失敗はログに記録するのみで、セッションの進行を妨げない。
package telemetry

import (
	"context"
	"time"
)

// イベント種別
const (
	TypeSessionOpened  = "session.opened"
	TypeSessionClosed  = "session.closed"
	TypeRatingRecorded = "rating.recorded"
)

// Event はブローカーに送るテレメトリイベント。
type Event struct {
	Type            string    `json:"type"`
	KioskID         string    `json:"kiosk_id,omitempty"`
	SessionID       string    `json:"session_id,omitempty"`
	GameTitle       string    `json:"game_title"`
	DurationMinutes int       `json:"duration_minutes,omitempty"`
	Cause           string    `json:"cause,omitempty"`
	Rating          int       `json:"rating,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// Publisher はテレメトリイベントの送信インターフェース。
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// NopPublisher は何もしないPublisher。ブローカー未設定時に使う。
type NopPublisher struct{}

// Publish は何もしない。
func (NopPublisher) Publish(context.Context, Event) error { return nil }

// Close は何もしない。
func (NopPublisher) Close() error { return nil }

var _ Publisher = NopPublisher{}
