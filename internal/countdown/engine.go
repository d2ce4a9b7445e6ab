// Package countdown はプレイ時間のカウントダウンを管理する。
// 残り秒数の唯一の保持者であり、1秒ごとのTickで減算し、満了と外部割り込みを通知する。
// スケジューリングは呼び出し側の単一ループが担い、Engine自体はgoroutineを持たない。
package countdown

// Event はEngineの操作結果として発生するイベント。
type Event int

const (
	// EventNone は通知すべきイベントがないことを示す。
	EventNone Event = iota
	// EventExpired は残り時間が0に達したことを示す。
	EventExpired
	// EventInterrupted は外部要因で途中終了したことを示す。
	EventInterrupted
)

// String はイベント名を返す。
func (e Event) String() string {
	switch e {
	case EventExpired:
		return "expired"
	case EventInterrupted:
		return "interrupted"
	default:
		return "none"
	}
}

// Engine はカウントダウンの状態を保持する。
// 値としてコピー可能で、ゼロ値は停止状態。
type Engine struct {
	remaining int
	running   bool
	cause     string
}

// Start は残り秒数を設定してカウントダウンを開始する。
// 1未満の値は1秒として扱う。
func (e *Engine) Start(initialSeconds int) {
	if initialSeconds < 1 {
		initialSeconds = 1
	}
	e.remaining = initialSeconds
	e.running = true
	e.cause = ""
}

// Tick は1秒分減算する。0に達した時点でrunningをfalseにし、EventExpiredを1回だけ返す。
// 停止後に呼ばれた場合は何もしない。
func (e *Engine) Tick() Event {
	if !e.running {
		return EventNone
	}
	e.remaining--
	if e.remaining > 0 {
		return EventNone
	}
	e.remaining = 0
	e.running = false
	return EventExpired
}

// Reconfigure は残り秒数を新しい合計値で置き換える。
// 経過分を差し引かないハードリセット。停止中は何もせずfalseを返す。
func (e *Engine) Reconfigure(newTotalSeconds int) bool {
	if !e.running {
		return false
	}
	if newTotalSeconds < 1 {
		newTotalSeconds = 1
	}
	e.remaining = newTotalSeconds
	return true
}

// Interrupt は次のTickを待たずに残り秒数を0にし、EventInterruptedを返す。
// 既に停止している場合はEventNoneを返す。
func (e *Engine) Interrupt(cause string) Event {
	if !e.running {
		return EventNone
	}
	e.remaining = 0
	e.running = false
	e.cause = cause
	return EventInterrupted
}

// Remaining は残り秒数を返す。
func (e Engine) Remaining() int {
	return e.remaining
}

// Running はカウントダウン中かを返す。
func (e Engine) Running() bool {
	return e.running
}

// Cause は割り込みの原因を返す。満了や未割り込みの場合は空文字。
func (e Engine) Cause() string {
	return e.cause
}
