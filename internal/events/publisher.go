// Package events はアウトボックスのドメインイベントを外部へ配信する。
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/BrieHudson/Capstone-1-Muse/internal/model"
)

// Publisher はイベントをまとめて配信する。
// 全件の配信に成功した場合のみnilを返す。
type Publisher interface {
	Publish(ctx context.Context, events []model.Event) error
	Close() error
}

// Envelope はKafkaに書き込むメッセージ本文。
type Envelope struct {
	ID        int64           `json:"id"`
	Type      string          `json:"type"`
	ActorID   int64           `json:"actor_id"`
	SubjectID int64           `json:"subject_id"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewEnvelope はイベントからメッセージ本文を組み立てる。
func NewEnvelope(e model.Event) Envelope {
	return Envelope{
		ID:        e.ID,
		Type:      string(e.Type),
		ActorID:   e.ActorID,
		SubjectID: e.SubjectID,
		Payload:   e.Payload,
		CreatedAt: e.CreatedAt,
	}
}

// messageWriter はkafka.Writerのうち使用するメソッド。
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher はsegmentio/kafka-goでイベントを配信する。
// 同じ対象（投稿・ユーザー）のイベントが同じパーティションに入るよう、subject_idをキーにする。
type KafkaPublisher struct {
	writer messageWriter
}

// NewKafkaPublisher はKafkaPublisherを生成する。
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			BatchTimeout:           50 * time.Millisecond,
			AllowAutoTopicCreation: true,
		},
	}
}

// Publish はイベントをKafkaに書き込む。
func (p *KafkaPublisher) Publish(ctx context.Context, events []model.Event) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(events))
	for _, e := range events {
		body, err := json.Marshal(NewEnvelope(e))
		if err != nil {
			return fmt.Errorf("failed to marshal event %d: %w", e.ID, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(strconv.FormatInt(e.SubjectID, 10)),
			Value: body,
			Time:  e.CreatedAt,
			Headers: []kafka.Header{
				{Key: "event_type", Value: []byte(e.Type)},
			},
		})
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("Kafkaへの書き込みに失敗しました: %w", err)
	}
	return nil
}

// Close はWriterを閉じる。
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// LogPublisher はKafkaが未設定の環境でイベントをログに出力する。
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher はLogPublisherを生成する。
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// Publish はイベントをINFOレベルで出力する。
func (p *LogPublisher) Publish(ctx context.Context, events []model.Event) error {
	for _, e := range events {
		p.logger.InfoContext(ctx, "domain event",
			slog.Int64("event_id", e.ID),
			slog.String("event_type", string(e.Type)),
			slog.Int64("actor_id", e.ActorID),
			slog.Int64("subject_id", e.SubjectID),
		)
	}
	return nil
}

// Close は何もしない。
func (p *LogPublisher) Close() error { return nil }

// compile-time interface check
var (
	_ Publisher = (*KafkaPublisher)(nil)
	_ Publisher = (*LogPublisher)(nil)
)
