package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/BrieHudson/Capstone-1-Muse/internal/model"
)

// PostgresCommentRepo はPostgreSQLを使用したコメントリポジトリ。
type PostgresCommentRepo struct {
	db *sql.DB
}

// NewPostgresCommentRepo はPostgresCommentRepoを生成する。
func NewPostgresCommentRepo(db *sql.DB) *PostgresCommentRepo {
	return &PostgresCommentRepo{db: db}
}

// Create はコメントを作成し、投稿のcomment_countとイベントを同一トランザクションで更新する。
func (r *PostgresCommentRepo) Create(ctx context.Context, comment *model.Comment) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx,
		`INSERT INTO comments (content, user_id, post_id)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		comment.Content, comment.AuthorID, comment.PostID,
	).Scan(&comment.ID, &comment.CreatedAt)
	if err != nil {
		return fmt.Errorf("コメントの作成に失敗しました: %w", translateError(err))
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE posts SET comment_count = comment_count + 1 WHERE id = $1`, comment.PostID,
	); err != nil {
		return fmt.Errorf("コメント数の更新に失敗しました: %w", err)
	}
	payload := map[string]int64{"comment_id": comment.ID}
	if err := appendEvent(ctx, tx, model.EventCommentCreated, comment.AuthorID, comment.PostID, payload); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListByPost は投稿のコメントを (created_at ASC, id ASC) で返す。
func (r *PostgresCommentRepo) ListByPost(ctx context.Context, postID int64) ([]model.Comment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT c.id, c.post_id, c.user_id, u.username, c.content, c.created_at
		 FROM comments c
		 JOIN users u ON u.id = c.user_id
		 WHERE c.post_id = $1
		 ORDER BY c.created_at ASC, c.id ASC`,
		postID,
	)
	if err != nil {
		return nil, fmt.Errorf("コメント一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var comments []model.Comment
	for rows.Next() {
		var c model.Comment
		if err := rows.Scan(&c.ID, &c.PostID, &c.AuthorID, &c.AuthorUsername, &c.Content, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("コメント行の読み取りに失敗しました: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("コメント一覧の走査に失敗しました: %w", err)
	}
	return comments, nil
}

// OnPostDeleted は投稿削除トランザクション内でその投稿へのコメントを削除する。
func (r *PostgresCommentRepo) OnPostDeleted(ctx context.Context, tx *sql.Tx, postID int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM comments WHERE post_id = $1`, postID); err != nil {
		return fmt.Errorf("投稿に紐づくコメントの削除に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var (
	_ CommentRepository = (*PostgresCommentRepo)(nil)
	_ PostCascade       = (*PostgresCommentRepo)(nil)
)
