// Package cleanup は配信済みアウトボックスイベントの削除ジョブを提供する。
// 保持期間（デフォルト7日）を過ぎた配信済みイベントを日次バッチで削除する。
// 未配信のイベントは保持期間に関係なく残る。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Purger は配信済みイベントの削除を抽象化する。
type Purger interface {
	DeletePublishedBefore(ctx context.Context, before time.Time) (int64, error)
}

// CleanupJob は配信済みイベントの削除ジョブ。冪等に実行できる。
type CleanupJob struct {
	outbox        Purger
	logger        *slog.Logger
	now           func() time.Time
	RetentionDays int // 配信済みイベントの保持日数（デフォルト: 7）
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(outbox Purger, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		outbox:        outbox,
		logger:        logger,
		now:           time.Now,
		RetentionDays: 7,
	}
}

// Run はpublished_atがRetentionDays日前より古いイベントを削除する。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := j.now()
	cutoff := start.AddDate(0, 0, -j.RetentionDays)

	deleted, err := j.outbox.DeletePublishedBefore(ctx, cutoff)
	if err != nil {
		j.logger.Error("イベントクリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return fmt.Errorf("イベントクリーンアップの実行に失敗: %w", err)
	}

	j.logger.Info("イベントクリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deleted),
		slog.Int("retention_days", j.RetentionDays),
		slog.Time("cutoff", cutoff),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}
