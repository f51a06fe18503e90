// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// PasswordHash はAPIレスポンスに含めない。
type User struct {
	ID             int64
	Username       string
	Email          string
	PasswordHash   string
	FollowerCount  int
	FollowingCount int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// UserProfile はプロフィール画面向けにユーザーと集計値をまとめたもの。
type UserProfile struct {
	User
	PostCount  int
	LikedCount int
}

// FollowEdge はフォロー関係（follower -> followed）を表す。
type FollowEdge struct {
	ID         int64
	FollowerID int64
	FollowedID int64
	CreatedAt  time.Time
}

// FollowListEntry はフォロワー/フォロー中一覧の1行を表す。
// EdgeID と FollowedAt はページングのキーとして使う。
type FollowListEntry struct {
	EdgeID     int64
	UserID     int64
	Username   string
	FollowedAt time.Time
}
