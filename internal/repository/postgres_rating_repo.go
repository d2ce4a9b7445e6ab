package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/arcadekiosk/internal/model"
)

// PostgresRatingRepo はPostgreSQLを使用した評価リポジトリ。
type PostgresRatingRepo struct {
	db *sql.DB
}

// NewPostgresRatingRepo はPostgresRatingRepoを生成する。
func NewPostgresRatingRepo(db *sql.DB) *PostgresRatingRepo {
	return &PostgresRatingRepo{db: db}
}

// Create は評価を作成する。範囲外の評価値はDBに送る前に拒否する。
func (r *PostgresRatingRepo) Create(ctx context.Context, rating *model.RatingRecord) error {
	if !model.IsValidRating(rating.Rating) {
		return model.ErrInvalidRating
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO game_ratings (id, game_title, rating, created_at)
		 VALUES ($1, $2, $3, $4)`,
		rating.ID, rating.GameTitle, rating.Rating, rating.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create rating: %w", err)
	}
	return nil
}

// compile-time interface check
var _ RatingRepository = (*PostgresRatingRepo)(nil)
