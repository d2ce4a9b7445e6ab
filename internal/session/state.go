// Package session はキオスク1台分のプレイセッションのライフサイクルを管理する。
// RFIDタップからゲーム起動、カウントダウン、終了、評価入力、リセットまでを
// 単一の状態機械として扱う。
package session

import (
	"github.com/hitoshi/arcadekiosk/internal/countdown"
	"github.com/hitoshi/arcadekiosk/internal/model"
)

// Phase はセッション状態の種別。
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseArmed
	PhaseLaunchPending
	PhaseRunning
	PhaseTerminating
	PhaseRatingPending
	PhaseResetting
)

// String はフェーズ名を返す。
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseArmed:
		return "armed"
	case PhaseLaunchPending:
		return "launch_pending"
	case PhaseRunning:
		return "running"
	case PhaseTerminating:
		return "terminating"
	case PhaseRatingPending:
		return "rating_pending"
	case PhaseResetting:
		return "resetting"
	default:
		return "unknown"
	}
}

// Cause はセッション終了の要因。
type Cause string

const (
	CauseTimeout         Cause = "timeout"
	CauseExternalButton  Cause = "external-button"
	CauseExternalWebhook Cause = "external-webhook"
	CauseKioskExit       Cause = "kiosk-exit"
	// CauseTeardown はコントローラー停止時のクリーンアップ終了。停止コマンドは送らない。
	CauseTeardown Cause = "teardown"
)

// IsValid は外部から受け付ける終了要因かを返す。teardownは内部専用。
func (c Cause) IsValid() bool {
	switch c {
	case CauseTimeout, CauseExternalButton, CauseExternalWebhook, CauseKioskExit:
		return true
	default:
		return false
	}
}

// State はコントローラーの状態。値としてコピーでき、Stepはコピーを返す。
//
// Gen はタップごとに進む世代番号で、副作用の結果イベントに付与される。
// 世代が一致しない結果は古いセッションのものとして破棄する。
type State struct {
	Phase Phase
	Gen   uint64

	Game           model.GameRef
	PlannedSeconds int
	SessionID      string
	Countdown      countdown.Engine

	// 終了処理（Terminating）
	Cause       Cause
	CauseDetail string
	stopDone    bool
	closeDone   bool

	// LaunchPending中に届いた終了要求。セッション開始後に適用する。
	PendingCause  Cause
	PendingDetail string

	Rating int

	// TimerMinutes は最後に取得したグローバルのタイマー設定（分）。セッションをまたいで保持する。
	TimerMinutes int

	// Notice はUIに表示する非ブロッキングのステータス文言。
	Notice string
}

// NewState は待機状態の初期値を返す。
func NewState(defaultTimerMinutes int) State {
	if defaultTimerMinutes < 1 {
		defaultTimerMinutes = 1
	}
	return State{Phase: PhaseIdle, TimerMinutes: defaultTimerMinutes}
}

// idle はタイマー設定と世代番号を引き継いだ待機状態を返す。
func (s State) idle() State {
	return State{
		Phase:        PhaseIdle,
		Gen:          s.Gen,
		TimerMinutes: s.TimerMinutes,
		Notice:       s.Notice,
	}
}

// Snapshot はAPIやログ向けの状態の読み取り専用コピー。
type Snapshot struct {
	Phase            string `json:"phase"`
	GameTitle        string `json:"game_title,omitempty"`
	SessionID        string `json:"session_id,omitempty"`
	RemainingSeconds int    `json:"remaining_seconds"`
	Running          bool   `json:"running"`
	Cause            string `json:"cause,omitempty"`
	Notice           string `json:"notice,omitempty"`
	TimerMinutes     int    `json:"timer_minutes"`
}

// Snapshot は状態のスナップショットを作成する。
func (s State) Snapshot() Snapshot {
	return Snapshot{
		Phase:            s.Phase.String(),
		GameTitle:        s.Game.Title,
		SessionID:        s.SessionID,
		RemainingSeconds: s.Countdown.Remaining(),
		Running:          s.Countdown.Running(),
		Cause:            string(s.Cause),
		Notice:           s.Notice,
		TimerMinutes:     s.TimerMinutes,
	}
}
