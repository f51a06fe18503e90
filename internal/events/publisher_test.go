package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/BrieHudson/Capstone-1-Muse/internal/model"
)

type mockWriter struct {
	msgs     []kafka.Message
	writeErr error
	closed   bool
}

func (m *mockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	m.msgs = append(m.msgs, msgs...)
	return nil
}

func (m *mockWriter) Close() error {
	m.closed = true
	return nil
}

func sampleEvents() []model.Event {
	created := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	return []model.Event{
		{ID: 1, Type: model.EventPostLiked, ActorID: 3, SubjectID: 40, Payload: json.RawMessage(`{}`), CreatedAt: created},
		{ID: 2, Type: model.EventUserFollowed, ActorID: 3, SubjectID: 7, CreatedAt: created},
	}
}

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &mockWriter{}
	p := &KafkaPublisher{writer: w}

	if err := p.Publish(context.Background(), sampleEvents()); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(w.msgs) != 2 {
		t.Fatalf("messages = %d, want 2", len(w.msgs))
	}

	msg := w.msgs[0]
	if string(msg.Key) != "40" {
		t.Errorf("key = %q, want subject id", msg.Key)
	}
	if len(msg.Headers) != 1 || string(msg.Headers[0].Value) != "post.liked" {
		t.Errorf("headers = %v", msg.Headers)
	}

	var env Envelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		t.Fatalf("value is not JSON: %v", err)
	}
	if env.ID != 1 || env.Type != "post.liked" || env.ActorID != 3 || env.SubjectID != 40 {
		t.Errorf("envelope = %+v", env)
	}
}

func TestKafkaPublisher_EmptyBatch(t *testing.T) {
	w := &mockWriter{writeErr: errors.New("should not be called")}
	p := &KafkaPublisher{writer: w}
	if err := p.Publish(context.Background(), nil); err != nil {
		t.Errorf("Publish(nil) = %v", err)
	}
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	boom := errors.New("leader not available")
	p := &KafkaPublisher{writer: &mockWriter{writeErr: boom}}
	if err := p.Publish(context.Background(), sampleEvents()); !errors.Is(err, boom) {
		t.Errorf("error = %v, want wrapped %v", err, boom)
	}
}

func TestKafkaPublisher_Close(t *testing.T) {
	w := &mockWriter{}
	if err := (&KafkaPublisher{writer: w}).Close(); err != nil || !w.closed {
		t.Errorf("Close = %v, closed = %v", err, w.closed)
	}
}

func TestLogPublisher_Publish(t *testing.T) {
	var buf bytes.Buffer
	p := NewLogPublisher(slog.New(slog.NewJSONHandler(&buf, nil)))

	if err := p.Publish(context.Background(), sampleEvents()); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("log lines = %d, want 2", len(lines))
	}
	if !strings.Contains(lines[1], `"event_type":"user.followed"`) {
		t.Errorf("log line = %s", lines[1])
	}
}
