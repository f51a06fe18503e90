// Package worker はバックグラウンドジョブのスケジューリングを提供する。
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Job はスケジューラから実行されるジョブ。
type Job func(ctx context.Context) error

// Scheduler はcron式でジョブを定期実行する。
// 同じジョブの前回実行が終わっていない場合、その回はスキップされる。
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
func NewScheduler(logger *slog.Logger) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Add はジョブを登録する。specはcron式または "@every 10s" 形式。
func (s *Scheduler) Add(name, spec string, job Job) error {
	_, err := s.cron.AddFunc(spec, func() {
		start := time.Now()
		if err := job(s.ctx); err != nil {
			s.logger.Error("ジョブの実行に失敗しました",
				slog.String("job", name),
				slog.String("error", err.Error()),
			)
			return
		}
		s.logger.Debug("ジョブが完了しました",
			slog.String("job", name),
			slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
		)
	})
	if err != nil {
		return fmt.Errorf("invalid schedule for %s: %w", name, err)
	}
	s.logger.Info("ジョブを登録しました",
		slog.String("job", name),
		slog.String("schedule", spec),
	)
	return nil
}

// Run はctxがキャンセルされるまでジョブを実行する。
// 停止時は実行中のジョブにキャンセルを伝え、終了を待つ。
func (s *Scheduler) Run(ctx context.Context) {
	s.cron.Start()
	s.logger.Info("スケジューラを開始しました", slog.Int("jobs", len(s.cron.Entries())))

	<-ctx.Done()

	s.cancel()
	<-s.cron.Stop().Done()
	s.logger.Info("スケジューラを停止しました")
}
