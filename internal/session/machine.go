package session

import (
	"errors"

	"github.com/hitoshi/arcadekiosk/internal/countdown"
	"github.com/hitoshi/arcadekiosk/internal/model"
)

var (
	// ErrTerminationLatched は終了処理が既に始まっているため終了要求を無視したことを表す。
	ErrTerminationLatched = errors.New("termination already in progress")
	// ErrControllerStopped はコントローラーが停止済みまたは停止処理中であることを表す。
	ErrControllerStopped = errors.New("session controller is stopped")
)

// ステータス表示用の文言
const (
	noticeLaunchFallback = "ランチャーに接続できないため、代替経路で起動コマンドを送信しました。"
	noticeLaunchFailed   = "ゲームの起動コマンドを送信できませんでした。スタッフにお知らせください。"
	noticeStopFallback   = "ランチャーに接続できないため、代替経路で停止コマンドを送信しました。"
	noticeStopFailed     = "ゲームの停止コマンドを送信できませんでした。スタッフにお知らせください。"
	noticeOpenFailed     = "プレイ記録を作成できませんでした。もう一度「スタート」を押してください。"
)

// Step は状態とイベントから次の状態と実行すべき副作用を求める純粋関数。
// 許可されていない遷移は *model.StateError を返し、状態は変更しない。
// 副作用の結果イベントのうち世代やフェーズが一致しないものは黙って破棄する。
func Step(s State, ev Event) (State, []Effect, error) {
	switch e := ev.(type) {
	case TimerSettingChanged:
		return onTimerSettingChanged(s, e)
	case TimerSettingFetched:
		if e.Err == nil && e.Minutes >= 1 {
			s.TimerMinutes = e.Minutes
		}
		return s, nil, nil
	case Tick:
		return onTick(s)
	case Teardown:
		return onTeardown(s)
	}

	switch s.Phase {
	case PhaseIdle:
		return stepIdle(s, ev)
	case PhaseArmed:
		return stepArmed(s, ev)
	case PhaseLaunchPending:
		return stepLaunchPending(s, ev)
	case PhaseRunning:
		return stepRunning(s, ev)
	case PhaseTerminating:
		return stepTerminating(s, ev)
	case PhaseRatingPending:
		return stepRatingPending(s, ev)
	case PhaseResetting:
		return stepResetting(s, ev)
	}
	return s, nil, invalid(s, ev)
}

func invalid(s State, ev Event) error {
	return &model.StateError{Phase: s.Phase.String(), Event: ev.eventName()}
}

// isResult は副作用の結果イベントかを返す。
func isResult(ev Event) bool {
	switch ev.(type) {
	case LaunchDispatched, SessionOpened, SessionOpenFailed, StopDispatched, SessionClosed, RatingRecorded:
		return true
	}
	return false
}

// ignoreResult は想定外の結果イベントを破棄する。それ以外はStateErrorとする。
func ignoreResult(s State, ev Event) (State, []Effect, error) {
	if isResult(ev) {
		return s, nil, nil
	}
	return s, nil, invalid(s, ev)
}

func arm(s State, game model.GameRef) (State, []Effect, error) {
	next := s.idle()
	next.Phase = PhaseArmed
	next.Gen = s.Gen + 1
	next.Game = game
	next.Notice = ""
	return next, []Effect{FetchTimerSetting{Gen: next.Gen}}, nil
}

func stepIdle(s State, ev Event) (State, []Effect, error) {
	switch e := ev.(type) {
	case Tap:
		return arm(s, e.Game)
	case Interrupt, Cancel:
		// 待機中の終了要求は何もしない
		return s, nil, nil
	}
	return ignoreResult(s, ev)
}

func stepArmed(s State, ev Event) (State, []Effect, error) {
	switch e := ev.(type) {
	case Tap:
		return arm(s, e.Game)
	case Cancel:
		return s.idle(), nil, nil
	case Interrupt:
		if e.Cause == CauseKioskExit {
			return s.idle(), nil, nil
		}
		return s, nil, invalid(s, ev)
	case ConfirmLaunch:
		s.Phase = PhaseLaunchPending
		s.Notice = ""
		s.PendingCause = ""
		s.PendingDetail = ""
		return s, []Effect{SendLaunch{Gen: s.Gen, Key: s.Game.LaunchKey, SteamURL: s.Game.SteamURL}}, nil
	}
	return ignoreResult(s, ev)
}

func stepLaunchPending(s State, ev Event) (State, []Effect, error) {
	switch e := ev.(type) {
	case LaunchDispatched:
		if e.Gen != s.Gen || s.PlannedSeconds > 0 {
			return s, nil, nil
		}
		switch {
		case e.PrimaryErr == nil:
		case e.FallbackErr == nil:
			s.Notice = noticeLaunchFallback
		default:
			s.Notice = noticeLaunchFailed
		}
		s.PlannedSeconds = s.Game.PlannedSeconds(s.TimerMinutes)
		return s, []Effect{OpenSession{
			Gen:             s.Gen,
			GameTitle:       s.Game.Title,
			DurationMinutes: model.PlannedDurationMinutes(s.PlannedSeconds),
		}}, nil

	case SessionOpened:
		if e.Gen != s.Gen || e.Record == nil {
			return s, nil, nil
		}
		s.Phase = PhaseRunning
		s.SessionID = e.Record.ID
		s.Countdown.Start(s.PlannedSeconds)
		if s.PendingCause != "" {
			cause, detail := s.PendingCause, s.PendingDetail
			s.PendingCause, s.PendingDetail = "", ""
			s.Countdown.Interrupt(string(cause))
			return terminate(s, cause, detail)
		}
		return s, nil, nil

	case SessionOpenFailed:
		if e.Gen != s.Gen {
			return s, nil, nil
		}
		if s.PendingCause != "" {
			// 終了要求済みなら再試行させずに待機へ戻し、起動済みのゲームは止める
			next := s.idle()
			next.Notice = noticeOpenFailed
			if s.PendingCause == CauseTeardown {
				return next, nil, nil
			}
			return next, []Effect{SendStop{Gen: s.Gen}}, nil
		}
		s.Phase = PhaseArmed
		s.PlannedSeconds = 0
		s.Notice = noticeOpenFailed
		return s, nil, nil

	case Interrupt:
		if !e.Cause.IsValid() {
			return s, nil, invalid(s, ev)
		}
		if s.PendingCause != "" {
			return s, nil, ErrTerminationLatched
		}
		s.PendingCause = e.Cause
		s.PendingDetail = e.Detail
		return s, nil, nil
	}
	return ignoreResult(s, ev)
}

func stepRunning(s State, ev Event) (State, []Effect, error) {
	switch e := ev.(type) {
	case Interrupt:
		if !e.Cause.IsValid() {
			return s, nil, invalid(s, ev)
		}
		s.Countdown.Interrupt(string(e.Cause))
		return terminate(s, e.Cause, e.Detail)
	}
	return ignoreResult(s, ev)
}

// terminate は終了ラッチを立て、停止コマンドとセッション完了を要求する。
func terminate(s State, cause Cause, detail string) (State, []Effect, error) {
	s.Phase = PhaseTerminating
	s.Cause = cause
	s.CauseDetail = detail
	s.closeDone = false

	closeEff := CloseSession{Gen: s.Gen, SessionID: s.SessionID, GameTitle: s.Game.Title, Cause: cause}
	if cause == CauseTeardown {
		s.stopDone = true
		return s, []Effect{closeEff}, nil
	}
	s.stopDone = false
	return s, []Effect{SendStop{Gen: s.Gen}, closeEff}, nil
}

func stepTerminating(s State, ev Event) (State, []Effect, error) {
	switch e := ev.(type) {
	case Interrupt:
		return s, nil, ErrTerminationLatched
	case StopDispatched:
		if e.Gen != s.Gen || s.stopDone {
			return s, nil, nil
		}
		s.stopDone = true
		switch {
		case e.PrimaryErr == nil:
		case e.FallbackErr == nil:
			s.Notice = noticeStopFallback
		default:
			s.Notice = noticeStopFailed
		}
	case SessionClosed:
		if e.Gen != s.Gen || s.closeDone {
			return s, nil, nil
		}
		// 完了処理の失敗はログのみで先に進む
		s.closeDone = true
	default:
		return ignoreResult(s, ev)
	}

	if !s.stopDone || !s.closeDone {
		return s, nil, nil
	}
	if s.Cause == CauseTeardown {
		return s.idle(), nil, nil
	}
	s.Phase = PhaseRatingPending
	return s, nil, nil
}

func stepRatingPending(s State, ev Event) (State, []Effect, error) {
	switch e := ev.(type) {
	case SubmitRating:
		if !model.IsValidRating(e.Rating) {
			return s, nil, model.ErrInvalidRating
		}
		s.Phase = PhaseResetting
		s.Rating = e.Rating
		return s, []Effect{RecordRating{Gen: s.Gen, GameTitle: s.Game.Title, Rating: e.Rating}}, nil
	case SkipRating:
		return s.idle(), nil, nil
	case Interrupt:
		if e.Cause == CauseKioskExit {
			return s.idle(), nil, nil
		}
		return s, nil, ErrTerminationLatched
	case Tap:
		// 評価を待たずに次の利用者がタップした場合は評価を省略して次へ進む
		return arm(s, e.Game)
	}
	return ignoreResult(s, ev)
}

func stepResetting(s State, ev Event) (State, []Effect, error) {
	switch e := ev.(type) {
	case RatingRecorded:
		if e.Gen != s.Gen {
			return s, nil, nil
		}
		return s.idle(), nil, nil
	case Interrupt:
		return s, nil, ErrTerminationLatched
	}
	return ignoreResult(s, ev)
}

func onTimerSettingChanged(s State, e TimerSettingChanged) (State, []Effect, error) {
	if e.Minutes < 1 {
		return s, nil, nil
	}
	s.TimerMinutes = e.Minutes
	if s.Phase == PhaseRunning {
		s.Countdown.Reconfigure(e.Minutes * 60)
	}
	return s, nil, nil
}

func onTick(s State) (State, []Effect, error) {
	if s.Phase != PhaseRunning {
		return s, nil, nil
	}
	if s.Countdown.Tick() != countdown.EventExpired {
		return s, nil, nil
	}
	return terminate(s, CauseTimeout, "")
}

func onTeardown(s State) (State, []Effect, error) {
	switch s.Phase {
	case PhaseRunning:
		s.Countdown.Interrupt(string(CauseTeardown))
		return terminate(s, CauseTeardown, "")
	case PhaseLaunchPending:
		// セッション作成の結果を待ち、作成されていればすぐに完了させる
		if s.PendingCause == "" {
			s.PendingCause = CauseTeardown
		}
		return s, nil, nil
	case PhaseTerminating, PhaseResetting:
		return s, nil, nil
	}
	return s.idle(), nil, nil
}
