package cleanup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

type mockPurger struct {
	called  bool
	before  time.Time
	deleted int64
	err     error
}

func (m *mockPurger) DeletePublishedBefore(ctx context.Context, before time.Time) (int64, error) {
	m.called = true
	m.before = before
	return m.deleted, m.err
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

func TestNewCleanupJob_Defaults(t *testing.T) {
	var buf bytes.Buffer
	job := NewCleanupJob(&mockPurger{}, newTestLogger(&buf))

	if job == nil {
		t.Fatal("NewCleanupJob は nil を返してはならない")
	}
	if job.RetentionDays != 7 {
		t.Errorf("RetentionDays = %d, want 7", job.RetentionDays)
	}
}

func TestCleanupJob_Run_UsesRetentionCutoff(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockPurger{deleted: 12}
	job := NewCleanupJob(mock, newTestLogger(&buf))
	job.RetentionDays = 3

	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !mock.called {
		t.Fatal("DeletePublishedBefore が呼ばれていない")
	}
	if want := time.Date(2026, 5, 7, 12, 0, 0, 0, time.UTC); !mock.before.Equal(want) {
		t.Errorf("cutoff = %v, want %v", mock.before, want)
	}

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("log is not JSON: %v", err)
	}
	if entry["deleted_count"] != float64(12) {
		t.Errorf("deleted_count = %v, want 12", entry["deleted_count"])
	}
	if entry["retention_days"] != float64(3) {
		t.Errorf("retention_days = %v, want 3", entry["retention_days"])
	}
}

func TestCleanupJob_Run_Error(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockPurger{err: errors.New("connection refused")}
	job := NewCleanupJob(mock, newTestLogger(&buf))

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, mock.err) {
		t.Errorf("error should wrap cause: %v", err)
	}
	if !strings.Contains(buf.String(), "connection refused") {
		t.Errorf("error log missing cause: %s", buf.String())
	}
}

func TestCleanupJob_Run_Idempotent(t *testing.T) {
	var buf bytes.Buffer
	job := NewCleanupJob(&mockPurger{}, newTestLogger(&buf))

	for i := 0; i < 2; i++ {
		if err := job.Run(context.Background()); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
}
