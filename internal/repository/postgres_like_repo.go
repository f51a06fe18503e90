package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/BrieHudson/Capstone-1-Muse/internal/model"
)

// PostgresLikeRepo はPostgreSQLを使用したいいねリポジトリ。
// UNIQUE(user_id, post_id)制約を利用したINSERT ON CONFLICTで重複を防ぐ。
type PostgresLikeRepo struct {
	db *sql.DB
}

// NewPostgresLikeRepo はPostgresLikeRepoを生成する。
func NewPostgresLikeRepo(db *sql.DB) *PostgresLikeRepo {
	return &PostgresLikeRepo{db: db}
}

// Create はいいねを作成し、投稿のlike_countとイベントを同一トランザクションで更新する。
func (r *PostgresLikeRepo) Create(ctx context.Context, userID, postID int64) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`INSERT INTO likes (user_id, post_id)
		 VALUES ($1, $2)
		 ON CONFLICT (user_id, post_id) DO NOTHING`,
		userID, postID,
	)
	if err != nil {
		return false, fmt.Errorf("いいねの作成に失敗しました: %w", translateError(err))
	}
	inserted, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if inserted == 0 {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE posts SET like_count = like_count + 1 WHERE id = $1`, postID,
	); err != nil {
		return false, fmt.Errorf("いいね数の更新に失敗しました: %w", err)
	}
	if err := appendEvent(ctx, tx, model.EventPostLiked, userID, postID, nil); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return true, nil
}

// Delete はいいねを削除する。存在しなかった場合はfalseを返す。
func (r *PostgresLikeRepo) Delete(ctx context.Context, userID, postID int64) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`DELETE FROM likes WHERE user_id = $1 AND post_id = $2`, userID, postID)
	if err != nil {
		return false, fmt.Errorf("いいねの削除に失敗しました: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if deleted == 0 {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE posts SET like_count = GREATEST(like_count - 1, 0) WHERE id = $1`, postID,
	); err != nil {
		return false, fmt.Errorf("いいね数の更新に失敗しました: %w", err)
	}
	if err := appendEvent(ctx, tx, model.EventPostUnliked, userID, postID, nil); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return true, nil
}

// Exists はuserIDがpostIDにいいねしているかを返す。
func (r *PostgresLikeRepo) Exists(ctx context.Context, userID, postID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM likes WHERE user_id = $1 AND post_id = $2)`,
		userID, postID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("いいね状態の確認に失敗しました: %w", err)
	}
	return exists, nil
}

// LikedPostIDs はpostIDsのうちuserIDがいいねしている投稿IDの集合を返す。
func (r *PostgresLikeRepo) LikedPostIDs(ctx context.Context, userID int64, postIDs []int64) (map[int64]bool, error) {
	liked := make(map[int64]bool)
	if len(postIDs) == 0 {
		return liked, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT post_id FROM likes WHERE user_id = $1 AND post_id = ANY($2)`,
		userID, pq.Array(postIDs),
	)
	if err != nil {
		return nil, fmt.Errorf("いいね済み投稿の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("いいね行の読み取りに失敗しました: %w", err)
		}
		liked[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("いいね一覧の走査に失敗しました: %w", err)
	}
	return liked, nil
}

// CountByUser はユーザーがいいねした投稿数を返す。
func (r *PostgresLikeRepo) CountByUser(ctx context.Context, userID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM likes WHERE user_id = $1`, userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("いいね数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// OnPostDeleted は投稿削除トランザクション内でその投稿へのいいねを削除する。
func (r *PostgresLikeRepo) OnPostDeleted(ctx context.Context, tx *sql.Tx, postID int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM likes WHERE post_id = $1`, postID); err != nil {
		return fmt.Errorf("投稿に紐づくいいねの削除に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var (
	_ LikeRepository = (*PostgresLikeRepo)(nil)
	_ PostCascade    = (*PostgresLikeRepo)(nil)
)
