// Package reaper は異常終了などで閉じられなかったゲームセッションを
// 定期的に完了済みにするジョブを提供する。
package reaper

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultStaleAfter は未完了セッションを放置とみなすまでの経過時間。
const DefaultStaleAfter = 3 * time.Hour

// SessionCloser は期限切れセッションの一括完了インターフェース。
// repository.GameSessionRepository が満たす。
type SessionCloser interface {
	CloseStaleBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// StaleCounter は自動完了件数の記録先。
type StaleCounter interface {
	RecordStaleSessionsClosed(count int64)
}

// Job は放置されたセッションを完了済みにするジョブ。
// 対象がなくてもエラーにはならず、何度実行しても結果は変わらない。
type Job struct {
	sessions   SessionCloser
	counter    StaleCounter
	logger     *slog.Logger
	StaleAfter time.Duration
	now        func() time.Time
}

// NewJob は新しいJobを生成する。staleAfterが0以下の場合はDefaultStaleAfterを使用する。
func NewJob(sessions SessionCloser, counter StaleCounter, staleAfter time.Duration, logger *slog.Logger) *Job {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &Job{
		sessions:   sessions,
		counter:    counter,
		logger:     logger,
		StaleAfter: staleAfter,
		now:        time.Now,
	}
}

// RunOnce はStaleAfterより前に開始された未完了セッションを完了済みにし、件数を返す。
func (j *Job) RunOnce(ctx context.Context) (int64, error) {
	start := j.now()
	cutoff := start.Add(-j.StaleAfter)

	closed, err := j.sessions.CloseStaleBefore(ctx, cutoff)
	if err != nil {
		j.logger.Error("放置セッションの完了処理に失敗しました",
			slog.String("error", err.Error()),
			slog.Duration("stale_after", j.StaleAfter),
		)
		return 0, fmt.Errorf("放置セッションの完了処理に失敗: %w", err)
	}

	if closed > 0 && j.counter != nil {
		j.counter.RecordStaleSessionsClosed(closed)
	}

	j.logger.Info("放置セッションの完了処理が完了しました",
		slog.Int64("closed_count", closed),
		slog.Time("cutoff", cutoff),
		slog.Float64("duration_ms", float64(j.now().Sub(start).Milliseconds())),
	)
	return closed, nil
}

// Start はinterval間隔でRunOnceを繰り返す。起動直後にも1回実行する。
// コンテキストがキャンセルされるまで戻らない。
func (j *Job) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("セッション回収ジョブを開始しました",
		slog.Duration("interval", interval),
		slog.Duration("stale_after", j.StaleAfter),
	)

	// エラーはRunOnce内でログ出力済み
	_, _ = j.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("セッション回収ジョブを停止しました")
			return
		case <-ticker.C:
			_, _ = j.RunOnce(ctx)
		}
	}
}
