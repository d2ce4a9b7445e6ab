package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/arcadekiosk/internal/model"
)

// PostgresSettingsRepo はPostgreSQLを使用したグローバル設定リポジトリ。
type PostgresSettingsRepo struct {
	db *sql.DB
}

// NewPostgresSettingsRepo はPostgresSettingsRepoを生成する。
func NewPostgresSettingsRepo(db *sql.DB) *PostgresSettingsRepo {
	return &PostgresSettingsRepo{db: db}
}

// FindTimerSetting はグローバルのタイマー設定を取得する。見つからない場合はnilを返す。
func (r *PostgresSettingsRepo) FindTimerSetting(ctx context.Context) (*model.TimerSetting, error) {
	setting := &model.TimerSetting{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, timer_duration_minutes, updated_at
		 FROM settings
		 WHERE id = $1`,
		model.GlobalSettingsID,
	).Scan(&setting.ID, &setting.TimerDurationMinutes, &setting.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find timer setting: %w", err)
	}
	return setting, nil
}

// compile-time interface check
var _ SettingsRepository = (*PostgresSettingsRepo)(nil)
