// Package model はドメインモデルを定義する。
package model

import "time"

// GameRef は起動可能なゲームタイトルを表す。
// Titleはセッション記録との紐付けに使う安定キーで、起動時点でコントローラーが知っている唯一の識別子。
// カタログ側が所有し、コントローラーからは読み取り専用として扱う。
type GameRef struct {
	Title                string
	LaunchKey            string // 外部ランチャーに送るキー
	SteamURL             string // 代替起動先（任意）
	TimerOverrideSeconds int    // 0の場合はグローバルのタイマー設定を使用する
	CreatedAt            time.Time
}

// HasTimerOverride はゲーム固有のタイマー秒数が設定されているかを返す。
func (g GameRef) HasTimerOverride() bool {
	return g.TimerOverrideSeconds > 0
}

// PlannedSeconds はこのゲームのプレイ予定秒数を返す。
// オーバーライドがあればそれを優先し、なければtimerMinutes分を秒に換算する。
func (g GameRef) PlannedSeconds(timerMinutes int) int {
	if g.HasTimerOverride() {
		return g.TimerOverrideSeconds
	}
	return timerMinutes * 60
}
