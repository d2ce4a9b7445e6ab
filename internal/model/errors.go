package model

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// APIError は統一エラーフォーマットを表す。
// キオスクUIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, session, catalog, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeGameNotFound      = "GAME_NOT_FOUND"
	ErrCodeInvalidRequest    = "INVALID_REQUEST"
	ErrCodeInvalidRating     = "INVALID_RATING"
	ErrCodeInvalidTransition = "INVALID_TRANSITION"
	ErrCodeKioskUnavailable  = "KIOSK_UNAVAILABLE"
)

// NewGameNotFoundError はゲーム未登録エラーを生成する。
func NewGameNotFoundError(title string) *APIError {
	return &APIError{
		Code:     ErrCodeGameNotFound,
		Message:  fmt.Sprintf("指定されたゲームが見つかりません: %s", title),
		Category: "catalog",
		Action:   "カタログに登録されたタイトルのRFIDタグを使用してください。",
	}
}

// NewInvalidRequestError はリクエストボディ不正エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "リクエスト内容を確認してください。",
	}
}

// NewInvalidRatingError は評価値の範囲外エラーを生成する。
func NewInvalidRatingError(rating int) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRating,
		Message:  fmt.Sprintf("無効な評価です: %d", rating),
		Category: "validation",
		Action:   "評価は1〜5の整数で指定してください。",
	}
}

// NewInvalidTransitionError は現在の状態では受け付けられない操作のエラーを生成する。
func NewInvalidTransitionError(err *StateError) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTransition,
		Message:  fmt.Sprintf("現在の状態（%s）では %s を受け付けられません。", err.Phase, err.Event),
		Category: "session",
		Action:   "画面の表示に従って操作してください。",
	}
}

// NewKioskUnavailableError はコントローラー停止中のエラーを生成する。
func NewKioskUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeKioskUnavailable,
		Message:  "キオスクが停止処理中です。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// ErrInvalidRating は評価値が1〜5の範囲外の場合のエラー。
var ErrInvalidRating = errors.New("rating must be an integer between 1 and 5")

// TransportError は外部ランチャーへのコマンド送信失敗を表す。
// タイムアウト、ネットワーク障害、2xx以外のステータスのいずれか。
type TransportError struct {
	Op         string // "launch" / "stop" / "health"
	StatusCode int    // HTTPステータス（ネットワーク障害時は0）
	Err        error
}

// Error はerrorインターフェースを実装する。
func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("launcher %s returned status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("launcher %s failed: %v", e.Op, e.Err)
}

// Unwrap は元のエラーを返す。
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Timeout はタイムアウトによる失敗かを返す。
func (e *TransportError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

// StoreError は永続化ストアの読み書き失敗を表す。
type StoreError struct {
	Op  string
	Err error
}

// Error はerrorインターフェースを実装する。
func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s failed: %v", e.Op, e.Err)
}

// Unwrap は元のエラーを返す。
func (e *StoreError) Unwrap() error {
	return e.Err
}

// StateError は現在の状態で許可されていない遷移が要求されたことを表す。
// ロジック上の不整合として扱い、ログに記録して無視する。
type StateError struct {
	Phase string
	Event string
}

// Error はerrorインターフェースを実装する。
func (e *StateError) Error() string {
	return fmt.Sprintf("invalid transition: %s in phase %s", e.Event, e.Phase)
}
