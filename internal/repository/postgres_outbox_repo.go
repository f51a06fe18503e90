package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/BrieHudson/Capstone-1-Muse/internal/model"
)

// PostgresOutboxRepo はPostgreSQLを使用したアウトボックスリポジトリ。
type PostgresOutboxRepo struct {
	db *sql.DB
}

// NewPostgresOutboxRepo はPostgresOutboxRepoを生成する。
func NewPostgresOutboxRepo(db *sql.DB) *PostgresOutboxRepo {
	return &PostgresOutboxRepo{db: db}
}

// appendEvent は呼び出し元のトランザクション内でイベントをアウトボックスに追記する。
func appendEvent(ctx context.Context, tx *sql.Tx, eventType model.EventType, actorID, subjectID int64, payload any) error {
	body := []byte("{}")
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal event payload: %w", err)
		}
		body = b
	}

	_, err := tx.ExecContext(ctx,
		`INSERT INTO outbox_events (event_type, actor_id, subject_id, payload)
		 VALUES ($1, $2, $3, $4)`,
		string(eventType), actorID, subjectID, body,
	)
	if err != nil {
		return fmt.Errorf("イベントの記録に失敗しました: %w", err)
	}
	return nil
}

// ListPending は未配信のイベントをID順にlimit件まで返す。
func (r *PostgresOutboxRepo) ListPending(ctx context.Context, limit int) ([]model.Event, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, event_type, actor_id, subject_id, payload, created_at
		 FROM outbox_events
		 WHERE published_at IS NULL
		 ORDER BY id
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("未配信イベントの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		var ev model.Event
		var eventType string
		var payload []byte
		if err := rows.Scan(&ev.ID, &eventType, &ev.ActorID, &ev.SubjectID, &payload, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("イベント行の読み取りに失敗しました: %w", err)
		}
		ev.Type = model.EventType(eventType)
		ev.Payload = json.RawMessage(payload)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("イベント一覧の走査に失敗しました: %w", err)
	}
	return events, nil
}

// MarkPublished はイベントを配信済みにする。
func (r *PostgresOutboxRepo) MarkPublished(ctx context.Context, ids []int64, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE outbox_events SET published_at = $1 WHERE id = ANY($2) AND published_at IS NULL`,
		at, pq.Array(ids),
	)
	if err != nil {
		return fmt.Errorf("イベントの配信済み更新に失敗しました: %w", err)
	}
	return nil
}

// DeletePublishedBefore はbefore以前に配信済みのイベントを削除し、削除件数を返す。
func (r *PostgresOutboxRepo) DeletePublishedBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM outbox_events WHERE published_at IS NOT NULL AND published_at < $1`,
		before,
	)
	if err != nil {
		return 0, fmt.Errorf("配信済みイベントの削除に失敗しました: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// compile-time interface check
var _ OutboxRepository = (*PostgresOutboxRepo)(nil)
