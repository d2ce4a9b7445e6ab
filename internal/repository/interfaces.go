// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/arcadekiosk/internal/model"
)

// GameRepository はゲームカタログの読み取りインターフェース。
// カタログの編集は管理画面側の責務であり、ここでは参照のみ提供する。
type GameRepository interface {
	// FindByTitle はタイトルでゲームを取得する。見つからない場合はnilを返す。
	FindByTitle(ctx context.Context, title string) (*model.GameRef, error)

	// List は全ゲームをタイトル順で返す。
	List(ctx context.Context) ([]*model.GameRef, error)
}

// GameSessionRepository はプレイセッション記録の永続化インターフェース。
type GameSessionRepository interface {
	// FindOpenByGameTitle は指定ゲームの未完了セッションを取得する。見つからない場合はnilを返す。
	FindOpenByGameTitle(ctx context.Context, gameTitle string) (*model.SessionRecord, error)

	// CreateIfNoneOpen は未完了セッションが存在しない場合のみ作成する。
	// 既に存在する場合はそのセッションを返し、createdはfalseになる。
	CreateIfNoneOpen(ctx context.Context, session *model.SessionRecord) (existing *model.SessionRecord, created bool, err error)

	// Close はセッションを完了済みにする。既に完了済みの場合は何もせずfalseを返す。
	Close(ctx context.Context, id string, endedAt time.Time) (bool, error)

	// CloseStaleBefore はcutoffより前に開始された未完了セッションを一括で完了済みにする。
	// 完了させた件数を返す。
	CloseStaleBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// RatingRepository は評価データの永続化インターフェース。評価は追記のみ。
type RatingRepository interface {
	// Create は評価を作成する。
	Create(ctx context.Context, rating *model.RatingRecord) error
}

// SettingsRepository はグローバル設定の読み取りインターフェース。
type SettingsRepository interface {
	// FindTimerSetting はグローバルのタイマー設定を取得する。見つからない場合はnilを返す。
	FindTimerSetting(ctx context.Context) (*model.TimerSetting, error)
}
