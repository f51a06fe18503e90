package worker

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestLogger(w *syncBuffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func TestScheduler_Add_InvalidSpec(t *testing.T) {
	s := NewScheduler(newTestLogger(&syncBuffer{}))
	if err := s.Add("bad", "not a schedule", func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected error for invalid spec")
	}
}

func TestScheduler_RunsJobsUntilCanceled(t *testing.T) {
	var buf syncBuffer
	s := NewScheduler(newTestLogger(&buf))

	var runs atomic.Int32
	var sawCancel atomic.Bool
	if err := s.Add("counter", "@every 1s", func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.Add("failing", "@every 1s", func(ctx context.Context) error {
		go func() {
			<-ctx.Done()
			sawCancel.Store(true)
		}()
		return errors.New("boom")
	}); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2500*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	if runs.Load() < 1 {
		t.Errorf("job runs = %d, want at least 1", runs.Load())
	}
	if !strings.Contains(buf.String(), "boom") {
		t.Errorf("failing job error should be logged, got %s", buf.String())
	}
	time.Sleep(50 * time.Millisecond)
	if !sawCancel.Load() {
		t.Error("job context should be canceled after Run returns")
	}
}
