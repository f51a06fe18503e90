// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/BrieHudson/Capstone-1-Muse/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// Create はユーザーを作成し、採番されたIDと作成日時をuserに設定する。
	// username / email の一意制約違反はErrDuplicate（制約名付き）を返す。
	Create(ctx context.Context, user *model.User) error

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.User, error)

	// FindByUsername はユーザー名でユーザーを取得する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// ExistsByUsername はユーザー名が使用済みかを返す。
	ExistsByUsername(ctx context.Context, username string) (bool, error)

	// ExistsByEmail はメールアドレスが登録済みかを返す。
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	// SearchByUsername はユーザー名の部分一致（大文字小文字を区別しない）で検索する。
	SearchByUsername(ctx context.Context, query string, limit int) ([]model.User, error)

	// UpdatePasswordHash はパスワードハッシュを更新する。
	UpdatePasswordHash(ctx context.Context, id int64, hash string) error
}

// FollowRepository はフォロー関係の永続化インターフェース。
type FollowRepository interface {
	// Create はフォロー関係を作成し、カウンタとイベントを同一トランザクションで更新する。
	// 既に存在する場合はfalseを返す。followedが存在しない場合はErrReferenceNotFoundを返す。
	Create(ctx context.Context, followerID, followedID int64) (bool, error)

	// Delete はフォロー関係を削除する。存在しなかった場合はfalseを返す。
	Delete(ctx context.Context, followerID, followedID int64) (bool, error)

	// Exists はfollowerがfollowedをフォローしているかを返す。
	Exists(ctx context.Context, followerID, followedID int64) (bool, error)

	// FollowedIDs はuserIDがフォローしているユーザーIDをすべて返す。
	FollowedIDs(ctx context.Context, userID int64) ([]int64, error)

	// ListFollowers はuserIDのフォロワーを新しい順に返す。
	ListFollowers(ctx context.Context, userID int64, cursor model.Cursor, limit int) ([]model.FollowListEntry, error)

	// ListFollowing はuserIDがフォローしているユーザーを新しい順に返す。
	ListFollowing(ctx context.Context, userID int64, cursor model.Cursor, limit int) ([]model.FollowListEntry, error)
}

// PostRepository は投稿データの永続化インターフェース。
type PostRepository interface {
	// Create は投稿を作成し、採番されたIDと作成日時をpostに設定する。
	Create(ctx context.Context, post *model.Post) error

	// FindByID は指定IDの投稿を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Post, error)

	// ListByAuthors は指定ユーザー群の投稿を (timestamp DESC, id DESC) で返す。
	// cursorがゼロ値の場合は先頭から取得する。
	ListByAuthors(ctx context.Context, authorIDs []int64, cursor model.Cursor, limit int) ([]model.Post, error)

	// ListLikedBy はuserIDがいいねした投稿を (timestamp DESC, id DESC) で返す。
	ListLikedBy(ctx context.Context, userID int64, cursor model.Cursor, limit int) ([]model.Post, error)

	// CountByAuthor はユーザーの投稿数を返す。
	CountByAuthor(ctx context.Context, authorID int64) (int, error)

	// Delete は投稿と従属データ（いいね、コメント）を単一トランザクションで削除する。
	// 投稿が存在しなかった場合はfalseを返す。
	Delete(ctx context.Context, postID, actorID int64) (bool, error)
}

// LikeRepository はいいねの永続化インターフェース。
type LikeRepository interface {
	// Create はいいねを作成する。既に存在する場合はfalseを返す。
	// 投稿が存在しない場合はErrReferenceNotFoundを返す。
	Create(ctx context.Context, userID, postID int64) (bool, error)

	// Delete はいいねを削除する。存在しなかった場合はfalseを返す。
	Delete(ctx context.Context, userID, postID int64) (bool, error)

	// Exists はuserIDがpostIDにいいねしているかを返す。
	Exists(ctx context.Context, userID, postID int64) (bool, error)

	// LikedPostIDs はpostIDsのうちuserIDがいいねしている投稿IDの集合を返す。
	LikedPostIDs(ctx context.Context, userID int64, postIDs []int64) (map[int64]bool, error)

	// CountByUser はユーザーがいいねした投稿数を返す。
	CountByUser(ctx context.Context, userID int64) (int, error)
}

// CommentRepository はコメントの永続化インターフェース。
type CommentRepository interface {
	// Create はコメントを作成し、採番されたIDと作成日時をcommentに設定する。
	// 投稿が存在しない場合はErrReferenceNotFoundを返す。
	Create(ctx context.Context, comment *model.Comment) error

	// ListByPost は投稿のコメントを古い順に返す。
	ListByPost(ctx context.Context, postID int64) ([]model.Comment, error)
}

// PostCascade は投稿削除トランザクション内で従属データを削除するフック。
type PostCascade interface {
	OnPostDeleted(ctx context.Context, tx *sql.Tx, postID int64) error
}

// OutboxRepository はアウトボックスイベントの永続化インターフェース。
type OutboxRepository interface {
	// ListPending は未配信のイベントをID順にlimit件まで返す。
	ListPending(ctx context.Context, limit int) ([]model.Event, error)

	// MarkPublished はイベントを配信済みにする。
	MarkPublished(ctx context.Context, ids []int64, at time.Time) error

	// DeletePublishedBefore はbefore以前に配信済みのイベントを削除し、削除件数を返す。
	DeletePublishedBefore(ctx context.Context, before time.Time) (int64, error)
}

