package session

import "github.com/hitoshi/arcadekiosk/internal/model"

// Event はコントローラーのイベントキューに投入される入力。
type Event interface {
	eventName() string
}

// 外部トリガー

// Tap はRFIDタップでゲームが特定されたことを表す。
type Tap struct{ Game model.GameRef }

// Cancel は起動前の取り消し。
type Cancel struct{}

// ConfirmLaunch は利用者による起動の確定。
type ConfirmLaunch struct{}

// Tick はカウントダウンの1秒経過。
type Tick struct{}

// Interrupt は外部ボタン・Webhook・キオスク終了による早期終了要求。
type Interrupt struct {
	Cause  Cause
	Detail string
}

// SubmitRating は評価の送信。
type SubmitRating struct{ Rating int }

// SkipRating は評価入力の省略。
type SkipRating struct{}

// TimerSettingChanged はストアからのタイマー設定変更通知。
type TimerSettingChanged struct{ Minutes int }

// Teardown はコントローラー停止の開始。
type Teardown struct{}

// 副作用の結果

// TimerSettingFetched はタイマー設定取得の結果。
type TimerSettingFetched struct {
	Gen     uint64
	Minutes int
	Err     error
}

// LaunchDispatched は起動コマンド送信の結果。
// PrimaryErrがnilでない場合、フォールバック経路が試行されている。
type LaunchDispatched struct {
	Gen         uint64
	PrimaryErr  error
	FallbackErr error
}

// SessionOpened はセッション記録の作成（または既存の再利用）の成功。
type SessionOpened struct {
	Gen    uint64
	Record *model.SessionRecord
}

// SessionOpenFailed はセッション記録の作成失敗。
type SessionOpenFailed struct {
	Gen uint64
	Err error
}

// StopDispatched は停止コマンド送信の結果。
type StopDispatched struct {
	Gen         uint64
	PrimaryErr  error
	FallbackErr error
}

// SessionClosed はセッション記録の完了処理の結果。失敗してもErrに格納して届く。
type SessionClosed struct {
	Gen uint64
	Err error
}

// RatingRecorded は評価記録の結果。
type RatingRecorded struct {
	Gen uint64
	Err error
}

func (Tap) eventName() string                 { return "tap" }
func (Cancel) eventName() string              { return "cancel" }
func (ConfirmLaunch) eventName() string       { return "confirm_launch" }
func (Tick) eventName() string                { return "tick" }
func (Interrupt) eventName() string           { return "interrupt" }
func (SubmitRating) eventName() string        { return "submit_rating" }
func (SkipRating) eventName() string          { return "skip_rating" }
func (TimerSettingChanged) eventName() string { return "timer_setting_changed" }
func (Teardown) eventName() string            { return "teardown" }
func (TimerSettingFetched) eventName() string { return "timer_setting_fetched" }
func (LaunchDispatched) eventName() string    { return "launch_dispatched" }
func (SessionOpened) eventName() string       { return "session_opened" }
func (SessionOpenFailed) eventName() string   { return "session_open_failed" }
func (StopDispatched) eventName() string      { return "stop_dispatched" }
func (SessionClosed) eventName() string       { return "session_closed" }
func (RatingRecorded) eventName() string      { return "rating_recorded" }

// EventName はイベントの名前を返す。ログとメトリクスのラベルに使う。
func EventName(ev Event) string {
	return ev.eventName()
}

// Effect はStepが要求する副作用。コントローラーが非同期に実行し、結果をイベントとして戻す。
type Effect interface {
	effectName() string
}

// FetchTimerSetting はグローバルのタイマー設定を取得する。
type FetchTimerSetting struct{ Gen uint64 }

// SendLaunch は起動コマンドを送る。一次経路が失敗した場合はフォールバックでKeyを送る。
type SendLaunch struct {
	Gen      uint64
	Key      string
	SteamURL string
}

// OpenSession はセッション記録を作成する。
type OpenSession struct {
	Gen             uint64
	GameTitle       string
	DurationMinutes int
}

// SendStop は停止コマンドを送る。
type SendStop struct{ Gen uint64 }

// CloseSession はセッション記録を完了済みにする。
type CloseSession struct {
	Gen       uint64
	SessionID string
	GameTitle string
	Cause     Cause
}

// RecordRating は評価を記録する。
type RecordRating struct {
	Gen       uint64
	GameTitle string
	Rating    int
}

func (FetchTimerSetting) effectName() string { return "fetch_timer_setting" }
func (SendLaunch) effectName() string        { return "send_launch" }
func (OpenSession) effectName() string       { return "open_session" }
func (SendStop) effectName() string          { return "send_stop" }
func (CloseSession) effectName() string      { return "close_session" }
func (RecordRating) effectName() string      { return "record_rating" }
