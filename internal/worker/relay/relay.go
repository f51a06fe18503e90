// Package relay はアウトボックスに記録されたイベントをブローカーへ中継する。
// 状態変更と同じトランザクションで書かれたイベントを順に配信し、配信済みとして印を付ける。
package relay

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/BrieHudson/Capstone-1-Muse/internal/events"
	"github.com/BrieHudson/Capstone-1-Muse/internal/repository"
)

// Metrics は中継結果を記録する。
type Metrics interface {
	RecordOutboxPublished(count int)
	RecordOutboxFailure()
}

// Relay はアウトボックスの未配信イベントを配信する。
// 配信に失敗した場合は指数バックオフの間、次の実行をスキップする。
// 配信は少なくとも1回（at-least-once）で、受信側はイベントIDで重複を除く。
type Relay struct {
	outbox    repository.OutboxRepository
	publisher events.Publisher
	metrics   Metrics
	logger    *slog.Logger
	batchSize int
	now       func() time.Time

	mu                  sync.Mutex
	consecutiveFailures int
	retryAt             time.Time
}

// NewRelay はRelayの新しいインスタンスを生成する。
// batchSizeが0以下の場合はデフォルト値100を使用する。
func NewRelay(
	outbox repository.OutboxRepository,
	publisher events.Publisher,
	metrics Metrics,
	logger *slog.Logger,
	batchSize int,
) *Relay {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Relay{
		outbox:    outbox,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
		batchSize: batchSize,
		now:       time.Now,
	}
}

// RunOnce は未配信イベントを最大batchSize件配信する。
func (r *Relay) RunOnce(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if now := r.now(); now.Before(r.retryAt) {
		r.logger.Debug("バックオフ中のため配信をスキップします",
			slog.Time("retry_at", r.retryAt),
		)
		return nil
	}

	pending, err := r.outbox.ListPending(ctx, r.batchSize)
	if err != nil {
		return fmt.Errorf("未配信イベントの取得に失敗しました: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	if err := r.publisher.Publish(ctx, pending); err != nil {
		r.consecutiveFailures++
		delay := CalculateBackoff(r.consecutiveFailures)
		r.retryAt = r.now().Add(delay)
		r.metrics.RecordOutboxFailure()
		r.logger.Error("イベントの配信に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("event_count", len(pending)),
			slog.Int("consecutive_failures", r.consecutiveFailures),
			slog.Duration("backoff", delay),
		)
		return nil
	}
	r.consecutiveFailures = 0
	r.retryAt = time.Time{}

	ids := make([]int64, len(pending))
	for i, e := range pending {
		ids[i] = e.ID
	}
	if err := r.outbox.MarkPublished(ctx, ids, r.now()); err != nil {
		// 次回再配信されるが、受信側はイベントIDで重複を除ける
		return fmt.Errorf("配信済みの記録に失敗しました: %w", err)
	}

	r.metrics.RecordOutboxPublished(len(pending))
	r.logger.Info("イベントを配信しました",
		slog.Int("event_count", len(pending)),
		slog.Int64("first_id", ids[0]),
		slog.Int64("last_id", ids[len(ids)-1]),
	)
	return nil
}
