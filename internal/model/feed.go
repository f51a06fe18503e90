// Package model はドメインモデルを定義する。
package model

import (
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"
)

// Cursor はキーセットページネーションの位置 (timestamp, id) を表す。
// 並び順は timestamp DESC, id DESC を前提とする。
type Cursor struct {
	Time time.Time
	ID   int64
}

// IsZero はカーソルが未指定（先頭から）かを判定する。
func (c Cursor) IsZero() bool {
	return c.Time.IsZero() && c.ID == 0
}

// Encode はカーソルをクライアントに渡す不透明な文字列に変換する。
func (c Cursor) Encode() string {
	raw := c.Time.UTC().Format(time.RFC3339Nano) + "|" + strconv.FormatInt(c.ID, 10)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// ErrMalformedCursor はカーソル文字列が解釈できない場合のエラー。
var ErrMalformedCursor = errors.New("malformed cursor")

// DecodeCursor はEncodeで生成した文字列をCursorに戻す。
// 空文字はゼロ値のCursorを返す。
func DecodeCursor(s string) (Cursor, error) {
	if s == "" {
		return Cursor{}, nil
	}
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return Cursor{}, ErrMalformedCursor
	}
	ts, idStr, ok := strings.Cut(string(b), "|")
	if !ok {
		return Cursor{}, ErrMalformedCursor
	}
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return Cursor{}, ErrMalformedCursor
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		return Cursor{}, ErrMalformedCursor
	}
	return Cursor{Time: t, ID: id}, nil
}

// FeedPage はフィードの1ページ分の結果を表す。
type FeedPage struct {
	Posts      []PostWithViewer
	NextCursor string
	HasMore    bool
}

// PostPage は投稿一覧の1ページ分の結果を表す。
type PostPage struct {
	Posts      []Post
	NextCursor string
	HasMore    bool
}

// FollowPage はフォロワー/フォロー中一覧の1ページ分の結果を表す。
type FollowPage struct {
	Users      []FollowListEntry
	NextCursor string
	HasMore    bool
}

// ClampLimit はページサイズを正規化する。0以下はdef、maxを超える値はmaxになる。
func ClampLimit(limit, def, max int) int {
	if limit <= 0 {
		limit = def
	}
	if limit > max {
		limit = max
	}
	return limit
}
