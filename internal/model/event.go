// Package model はドメインモデルを定義する。
package model

import (
	"encoding/json"
	"time"
)

// EventType はアウトボックスに記録するドメインイベントの種別。
type EventType string

const (
	EventUserFollowed   EventType = "user.followed"
	EventUserUnfollowed EventType = "user.unfollowed"
	EventPostCreated    EventType = "post.created"
	EventPostDeleted    EventType = "post.deleted"
	EventPostLiked      EventType = "post.liked"
	EventPostUnliked    EventType = "post.unliked"
	EventCommentCreated EventType = "comment.created"
)

// Event はアウトボックスに記録されたドメインイベント。
// 状態変更と同一トランザクションで書き込まれ、ワーカーがKafkaへ中継する。
type Event struct {
	ID          int64
	Type        EventType
	ActorID     int64
	SubjectID   int64
	Payload     json.RawMessage
	CreatedAt   time.Time
	PublishedAt *time.Time
}
