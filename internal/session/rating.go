package session

import (
	"context"

	"github.com/hitoshi/arcadekiosk/internal/model"
)

// SubmitRating は評価を送信する。1〜5以外の値はキューに投入する前に拒否するため、
// ストアに不正な評価が渡ることはない。
func (c *Controller) SubmitRating(ctx context.Context, rating int) error {
	if !model.IsValidRating(rating) {
		return model.ErrInvalidRating
	}
	return c.Post(ctx, SubmitRating{Rating: rating})
}

// SkipRating は評価入力を省略して待機状態に戻す。
func (c *Controller) SkipRating(ctx context.Context) error {
	return c.Post(ctx, SkipRating{})
}
