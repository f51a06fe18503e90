// Package model はドメインモデルを定義する。
package model

import "time"

// MaxCaptionLength はキャプションの最大文字数（rune単位）。
const MaxCaptionLength = 280

// MaxCommentLength はコメントの最大文字数（rune単位）。
const MaxCommentLength = 1000

// Post はユーザーが外部カタログのアイテムを共有した投稿を表す。
// ExternalItemID / ExternalItemName は投稿時点のスナップショットで、
// 外部カタログ側の変更には追従しない。
type Post struct {
	ID               int64
	AuthorID         int64
	AuthorUsername   string
	ExternalItemID   string
	ExternalItemName string
	ArtistName       string
	ItemType         ItemType
	Caption          string
	LikeCount        int
	CommentCount     int
	CreatedAt        time.Time
}

// PostWithViewer は閲覧ユーザー視点の状態（いいね済みか）を付与した投稿。
type PostWithViewer struct {
	Post
	LikedByViewer bool
}

// Like はユーザーによる投稿へのいいねを表す。
// (UserID, PostID) の組は一意。
type Like struct {
	ID        int64
	UserID    int64
	PostID    int64
	CreatedAt time.Time
}

// Comment は投稿へのコメントを表す。
type Comment struct {
	ID             int64
	PostID         int64
	AuthorID       int64
	AuthorUsername string
	Content        string
	CreatedAt      time.Time
}
