package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/arcadekiosk/internal/model"
)

// PostgresGameSessionRepo はPostgreSQLを使用したプレイセッションリポジトリ。
// 同一ゲームの未完了セッションの一意性は部分ユニークインデックスで担保する。
type PostgresGameSessionRepo struct {
	db *sql.DB
}

// NewPostgresGameSessionRepo はPostgresGameSessionRepoを生成する。
func NewPostgresGameSessionRepo(db *sql.DB) *PostgresGameSessionRepo {
	return &PostgresGameSessionRepo{db: db}
}

const selectSessionColumns = `id, game_title, started_at, ended_at, duration_minutes, completed`

func scanSession(row interface{ Scan(...any) error }) (*model.SessionRecord, error) {
	s := &model.SessionRecord{}
	var endedAt sql.NullTime
	if err := row.Scan(&s.ID, &s.GameTitle, &s.StartedAt, &endedAt, &s.DurationMinutes, &s.Completed); err != nil {
		return nil, err
	}
	if endedAt.Valid {
		t := endedAt.Time
		s.EndedAt = &t
	}
	return s, nil
}

// FindOpenByGameTitle は指定ゲームの未完了セッションを取得する。見つからない場合はnilを返す。
func (r *PostgresGameSessionRepo) FindOpenByGameTitle(ctx context.Context, gameTitle string) (*model.SessionRecord, error) {
	s, err := scanSession(r.db.QueryRowContext(ctx,
		`SELECT `+selectSessionColumns+`
		 FROM game_sessions
		 WHERE game_title = $1 AND completed = false`,
		gameTitle,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find open session: %w", err)
	}
	return s, nil
}

// CreateIfNoneOpen は未完了セッションが存在しない場合のみ作成する。
// 競合した場合は既存の未完了セッションを返す。
func (r *PostgresGameSessionRepo) CreateIfNoneOpen(ctx context.Context, session *model.SessionRecord) (*model.SessionRecord, bool, error) {
	created, err := scanSession(r.db.QueryRowContext(ctx,
		`INSERT INTO game_sessions (id, game_title, started_at, duration_minutes, completed)
		 VALUES ($1, $2, $3, $4, false)
		 ON CONFLICT (game_title) WHERE completed = false DO NOTHING
		 RETURNING `+selectSessionColumns,
		session.ID, session.GameTitle, session.StartedAt, session.DurationMinutes,
	))
	if err == nil {
		return created, true, nil
	}
	if err != sql.ErrNoRows {
		return nil, false, fmt.Errorf("failed to create session: %w", err)
	}

	existing, err := r.FindOpenByGameTitle(ctx, session.GameTitle)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		// 競合直後に別経路で完了された場合
		return nil, false, fmt.Errorf("failed to create session: open session for %q vanished during conflict", session.GameTitle)
	}
	return existing, false, nil
}

// Close はセッションを完了済みにする。既に完了済みの場合は何もせずfalseを返す。
func (r *PostgresGameSessionRepo) Close(ctx context.Context, id string, endedAt time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE game_sessions
		 SET completed = true, ended_at = $2
		 WHERE id = $1 AND completed = false`,
		id, endedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to close session: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}

// CloseStaleBefore はcutoffより前に開始された未完了セッションを一括で完了済みにする。
func (r *PostgresGameSessionRepo) CloseStaleBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE game_sessions
		 SET completed = true, ended_at = now()
		 WHERE completed = false AND started_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to close stale sessions: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected, nil
}

// compile-time interface check
var _ GameSessionRepository = (*PostgresGameSessionRepo)(nil)
