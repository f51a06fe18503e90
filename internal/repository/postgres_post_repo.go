package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/BrieHudson/Capstone-1-Muse/internal/model"
)

const postColumns = `p.id, p.user_id, u.username, p.spotify_id, p.spotify_name, p.artist_name,
		       p.item_type, p.caption, p.like_count, p.comment_count, p."timestamp"`

// PostgresPostRepo はPostgreSQLを使用した投稿リポジトリ。
type PostgresPostRepo struct {
	db       *sql.DB
	cascades []PostCascade
}

// NewPostgresPostRepo はPostgresPostRepoを生成する。
// cascadesは投稿削除トランザクション内で順に実行される。
func NewPostgresPostRepo(db *sql.DB, cascades ...PostCascade) *PostgresPostRepo {
	return &PostgresPostRepo{db: db, cascades: cascades}
}

func scanPost(row interface{ Scan(...any) error }) (*model.Post, error) {
	p := &model.Post{}
	var artist, caption sql.NullString
	var itemType string
	err := row.Scan(&p.ID, &p.AuthorID, &p.AuthorUsername, &p.ExternalItemID, &p.ExternalItemName,
		&artist, &itemType, &caption, &p.LikeCount, &p.CommentCount, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	p.ArtistName = nullStringValue(artist)
	p.Caption = nullStringValue(caption)
	p.ItemType = model.ItemType(itemType)
	return p, nil
}

// Create は投稿を作成し、採番されたIDと作成日時をpostに設定する。
func (r *PostgresPostRepo) Create(ctx context.Context, post *model.Post) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx,
		`INSERT INTO posts (user_id, spotify_id, spotify_name, artist_name, item_type, caption)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, "timestamp"`,
		post.AuthorID, post.ExternalItemID, post.ExternalItemName,
		nullString(post.ArtistName), string(post.ItemType), nullString(post.Caption),
	).Scan(&post.ID, &post.CreatedAt)
	if err != nil {
		return fmt.Errorf("投稿の作成に失敗しました: %w", translateError(err))
	}

	payload := map[string]string{"item_id": post.ExternalItemID, "item_type": string(post.ItemType)}
	if err := appendEvent(ctx, tx, model.EventPostCreated, post.AuthorID, post.ID, payload); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// FindByID は指定IDの投稿を取得する。見つからない場合はnilを返す。
func (r *PostgresPostRepo) FindByID(ctx context.Context, id int64) (*model.Post, error) {
	p, err := scanPost(r.db.QueryRowContext(ctx,
		`SELECT `+postColumns+`
		 FROM posts p JOIN users u ON u.id = p.user_id
		 WHERE p.id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("投稿の取得に失敗しました: %w", err)
	}
	return p, nil
}

// ListByAuthors は指定ユーザー群の投稿を (timestamp DESC, id DESC) で返す。
// cursorがゼロ値の場合は先頭から取得する。
func (r *PostgresPostRepo) ListByAuthors(ctx context.Context, authorIDs []int64, cursor model.Cursor, limit int) ([]model.Post, error) {
	if len(authorIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT ` + postColumns + `
		FROM posts p
		JOIN users u ON u.id = p.user_id
		WHERE p.user_id = ANY($1)`
	args := []interface{}{pq.Array(authorIDs)}

	return r.queryPage(ctx, query, args, cursor, limit)
}

// ListLikedBy はuserIDがいいねした投稿を (timestamp DESC, id DESC) で返す。
func (r *PostgresPostRepo) ListLikedBy(ctx context.Context, userID int64, cursor model.Cursor, limit int) ([]model.Post, error) {
	query := `
		SELECT ` + postColumns + `
		FROM likes l
		JOIN posts p ON p.id = l.post_id
		JOIN users u ON u.id = p.user_id
		WHERE l.user_id = $1`
	args := []interface{}{userID}

	return r.queryPage(ctx, query, args, cursor, limit)
}

// queryPage はベースクエリにキーセット条件と並び順を付与して実行する。
func (r *PostgresPostRepo) queryPage(
	ctx context.Context,
	query string,
	args []interface{},
	cursor model.Cursor,
	limit int,
) ([]model.Post, error) {
	argIndex := len(args) + 1

	if !cursor.IsZero() {
		query += fmt.Sprintf(` AND (p."timestamp", p.id) < ($%d, $%d)`, argIndex, argIndex+1)
		args = append(args, cursor.Time, cursor.ID)
		argIndex += 2
	}

	query += fmt.Sprintf(` ORDER BY p."timestamp" DESC, p.id DESC LIMIT $%d`, argIndex)
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("投稿一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var posts []model.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("投稿行の読み取りに失敗しました: %w", err)
		}
		posts = append(posts, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("投稿一覧の走査に失敗しました: %w", err)
	}
	return posts, nil
}

// CountByAuthor はユーザーの投稿数を返す。
func (r *PostgresPostRepo) CountByAuthor(ctx context.Context, authorID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM posts WHERE user_id = $1`, authorID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("投稿数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// Delete は投稿と従属データを単一トランザクションで削除する。
// 投稿行をFOR UPDATEでロックしてから従属データを削除するため、
// 削除中の投稿に並行して作成されたいいねやコメントは外部キー違反となり残らない。
func (r *PostgresPostRepo) Delete(ctx context.Context, postID, actorID int64) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var lockedID int64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM posts WHERE id = $1 FOR UPDATE`, postID,
	).Scan(&lockedID)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("投稿のロックに失敗しました: %w", err)
	}

	for _, c := range r.cascades {
		if err := c.OnPostDeleted(ctx, tx, postID); err != nil {
			return false, err
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, postID); err != nil {
		return false, fmt.Errorf("投稿の削除に失敗しました: %w", err)
	}
	if err := appendEvent(ctx, tx, model.EventPostDeleted, actorID, postID, nil); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return true, nil
}

// compile-time interface check
var _ PostRepository = (*PostgresPostRepo)(nil)
