package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/BrieHudson/Capstone-1-Muse/internal/model"
)

// PostgresFollowRepo はPostgreSQLを使用したフォロー関係リポジトリ。
// 重複はUNIQUE(follower_id, followed_id)制約で防ぎ、競合した側にはfalseを返す。
type PostgresFollowRepo struct {
	db *sql.DB
}

// NewPostgresFollowRepo はPostgresFollowRepoを生成する。
func NewPostgresFollowRepo(db *sql.DB) *PostgresFollowRepo {
	return &PostgresFollowRepo{db: db}
}

// Create はフォロー関係を作成し、カウンタとイベントを同一トランザクションで更新する。
func (r *PostgresFollowRepo) Create(ctx context.Context, followerID, followedID int64) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`INSERT INTO followers (follower_id, followed_id)
		 VALUES ($1, $2)
		 ON CONFLICT (follower_id, followed_id) DO NOTHING`,
		followerID, followedID,
	)
	if err != nil {
		return false, fmt.Errorf("フォローの作成に失敗しました: %w", translateError(err))
	}
	inserted, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if inserted == 0 {
		return false, nil
	}

	if err := adjustFollowCounts(ctx, tx, followerID, followedID, 1); err != nil {
		return false, err
	}
	if err := appendEvent(ctx, tx, model.EventUserFollowed, followerID, followedID, nil); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return true, nil
}

// Delete はフォロー関係を削除する。存在しなかった場合はfalseを返す。
func (r *PostgresFollowRepo) Delete(ctx context.Context, followerID, followedID int64) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`DELETE FROM followers WHERE follower_id = $1 AND followed_id = $2`,
		followerID, followedID,
	)
	if err != nil {
		return false, fmt.Errorf("フォローの削除に失敗しました: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if deleted == 0 {
		return false, nil
	}

	if err := adjustFollowCounts(ctx, tx, followerID, followedID, -1); err != nil {
		return false, err
	}
	if err := appendEvent(ctx, tx, model.EventUserUnfollowed, followerID, followedID, nil); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return true, nil
}

// adjustFollowCounts はfollowerのfollowing_countとfollowedのfollower_countをdeltaだけ増減する。
// 2行を1文で更新し、行ロックの取得順を固定する。
func adjustFollowCounts(ctx context.Context, tx *sql.Tx, followerID, followedID int64, delta int) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE users SET
		   following_count = following_count + CASE WHEN id = $1 THEN $3 ELSE 0 END,
		   follower_count  = follower_count  + CASE WHEN id = $2 THEN $3 ELSE 0 END
		 WHERE id IN ($1, $2)`,
		followerID, followedID, delta,
	)
	if err != nil {
		return fmt.Errorf("フォロー数の更新に失敗しました: %w", err)
	}
	return nil
}

// Exists はfollowerがfollowedをフォローしているかを返す。
func (r *PostgresFollowRepo) Exists(ctx context.Context, followerID, followedID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM followers WHERE follower_id = $1 AND followed_id = $2)`,
		followerID, followedID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("フォロー状態の確認に失敗しました: %w", err)
	}
	return exists, nil
}

// FollowedIDs はuserIDがフォローしているユーザーIDをすべて返す。
func (r *PostgresFollowRepo) FollowedIDs(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT followed_id FROM followers WHERE follower_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("フォロー中ユーザーの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("フォロー行の読み取りに失敗しました: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("フォロー一覧の走査に失敗しました: %w", err)
	}
	return ids, nil
}

// ListFollowers はuserIDのフォロワーを新しい順に返す。
func (r *PostgresFollowRepo) ListFollowers(ctx context.Context, userID int64, cursor model.Cursor, limit int) ([]model.FollowListEntry, error) {
	return r.list(ctx, "f.follower_id", "f.followed_id", userID, cursor, limit)
}

// ListFollowing はuserIDがフォローしているユーザーを新しい順に返す。
func (r *PostgresFollowRepo) ListFollowing(ctx context.Context, userID int64, cursor model.Cursor, limit int) ([]model.FollowListEntry, error) {
	return r.list(ctx, "f.followed_id", "f.follower_id", userID, cursor, limit)
}

// list はフォロー関係の片側を (timestamp DESC, id DESC) のキーセットで取得する。
// joinCol は結果に含めるユーザー側、filterCol はuserIDで絞り込む側の列。
func (r *PostgresFollowRepo) list(
	ctx context.Context,
	joinCol, filterCol string,
	userID int64,
	cursor model.Cursor,
	limit int,
) ([]model.FollowListEntry, error) {
	query := fmt.Sprintf(`
		SELECT f.id, u.id, u.username, f."timestamp"
		FROM followers f
		JOIN users u ON u.id = %s
		WHERE %s = $1`, joinCol, filterCol)

	args := []interface{}{userID}
	argIndex := 2

	if !cursor.IsZero() {
		query += fmt.Sprintf(` AND (f."timestamp", f.id) < ($%d, $%d)`, argIndex, argIndex+1)
		args = append(args, cursor.Time, cursor.ID)
		argIndex += 2
	}

	query += fmt.Sprintf(` ORDER BY f."timestamp" DESC, f.id DESC LIMIT $%d`, argIndex)
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("フォロー一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var entries []model.FollowListEntry
	for rows.Next() {
		var e model.FollowListEntry
		if err := rows.Scan(&e.EdgeID, &e.UserID, &e.Username, &e.FollowedAt); err != nil {
			return nil, fmt.Errorf("フォロー行の読み取りに失敗しました: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("フォロー一覧の走査に失敗しました: %w", err)
	}
	return entries, nil
}

// compile-time interface check
var _ FollowRepository = (*PostgresFollowRepo)(nil)
