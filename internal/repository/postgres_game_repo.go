package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/arcadekiosk/internal/model"
)

// PostgresGameRepo はPostgreSQLを使用したゲームカタログリポジトリ。
type PostgresGameRepo struct {
	db *sql.DB
}

// NewPostgresGameRepo はPostgresGameRepoを生成する。
func NewPostgresGameRepo(db *sql.DB) *PostgresGameRepo {
	return &PostgresGameRepo{db: db}
}

// FindByTitle はタイトルでゲームを取得する。見つからない場合はnilを返す。
func (r *PostgresGameRepo) FindByTitle(ctx context.Context, title string) (*model.GameRef, error) {
	game := &model.GameRef{}
	var steamURL sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT title, launch_key, steam_url, timer_override_seconds, created_at
		 FROM games
		 WHERE title = $1`,
		title,
	).Scan(&game.Title, &game.LaunchKey, &steamURL, &game.TimerOverrideSeconds, &game.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find game: %w", err)
	}

	game.SteamURL = steamURL.String
	return game, nil
}

// List は全ゲームをタイトル順で返す。
func (r *PostgresGameRepo) List(ctx context.Context) ([]*model.GameRef, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT title, launch_key, steam_url, timer_override_seconds, created_at
		 FROM games
		 ORDER BY title`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}
	defer rows.Close()

	var games []*model.GameRef
	for rows.Next() {
		game := &model.GameRef{}
		var steamURL sql.NullString
		if err := rows.Scan(&game.Title, &game.LaunchKey, &steamURL, &game.TimerOverrideSeconds, &game.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan game: %w", err)
		}
		game.SteamURL = steamURL.String
		games = append(games, game)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate games: %w", err)
	}

	return games, nil
}

// compile-time interface check
var _ GameRepository = (*PostgresGameRepo)(nil)
