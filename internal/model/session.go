package model

import "time"

// SessionRecord は1回のプレイを表すセッション記録。
// 同一ゲームに対して Completed=false の記録は同時に1件までしか存在しない。
type SessionRecord struct {
	ID        string
	GameTitle string
	StartedAt time.Time
	EndedAt   *time.Time
	// DurationMinutes は作成時の予定秒数を分に切り上げた値。
	// 途中終了しても実経過時間では更新しない。
	DurationMinutes int
	Completed       bool
}

// IsOpen はセッションが未完了（プレイ中）かを返す。
func (s *SessionRecord) IsOpen() bool {
	return !s.Completed
}

// RatingRecord は完了したセッションに対する評価。作成後は更新しない。
type RatingRecord struct {
	ID        string
	GameTitle string
	Rating    int
	CreatedAt time.Time
}

// GlobalSettingsID はグローバル設定行の固定キー。
const GlobalSettingsID = "global"

// TimerSetting はグローバルのプレイ時間設定。
type TimerSetting struct {
	ID                   string
	TimerDurationMinutes int
	UpdatedAt            time.Time
}

const (
	// MinRating は評価の最小値。
	MinRating = 1
	// MaxRating は評価の最大値。
	MaxRating = 5
)

// IsValidRating は評価値が1〜5の範囲内かを返す。
func IsValidRating(rating int) bool {
	return rating >= MinRating && rating <= MaxRating
}

// PlannedDurationMinutes は予定秒数を分単位に切り上げる。
func PlannedDurationMinutes(seconds int) int {
	if seconds <= 0 {
		return 0
	}
	return (seconds + 59) / 60
}
