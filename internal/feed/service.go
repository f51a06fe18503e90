// Package feed は閲覧ユーザーのタイムライン（自分とフォロー中ユーザーの投稿）を組み立てる。
package feed

import (
	"context"
	"fmt"

	"github.com/samber/lo"

	"github.com/BrieHudson/Capstone-1-Muse/internal/model"
)

// FollowSource はユーザーがフォローしているユーザーIDを返す。
type FollowSource interface {
	FollowedIDs(ctx context.Context, userID int64) ([]int64, error)
}

// PostSource は指定ユーザー群の投稿を (timestamp DESC, id DESC) で返す。
type PostSource interface {
	ListByAuthors(ctx context.Context, authorIDs []int64, cursor model.Cursor, limit int) ([]model.Post, error)
}

// LikeSource は閲覧ユーザーがいいねしている投稿IDの集合を返す。
type LikeSource interface {
	LikedPostIDs(ctx context.Context, userID int64, postIDs []int64) (map[int64]bool, error)
}

// Limits はフィードのページサイズ設定。
type Limits struct {
	Default int
	Max     int
}

// Aggregator はフィードを組み立てる。
type Aggregator struct {
	follows FollowSource
	posts   PostSource
	likes   LikeSource
	limits  Limits
}

// NewAggregator はAggregatorの新しいインスタンスを生成する。
func NewAggregator(follows FollowSource, posts PostSource, likes LikeSource, limits Limits) *Aggregator {
	if limits.Max <= 0 {
		limits.Max = 100
	}
	if limits.Default <= 0 || limits.Default > limits.Max {
		limits.Default = min(20, limits.Max)
	}
	return &Aggregator{
		follows: follows,
		posts:   posts,
		likes:   likes,
		limits:  limits,
	}
}

// BuildFeed はuserIDと、userIDがフォローしているユーザーの投稿を新しい順に返す。
// 同時刻の投稿はIDの降順で並び、各投稿は1度だけ含まれる。
// cursorは前ページのNextCursorで、空文字なら先頭から取得する。
func (a *Aggregator) BuildFeed(ctx context.Context, userID int64, cursor string, limit int) (*model.FeedPage, error) {
	c, err := model.DecodeCursor(cursor)
	if err != nil {
		return nil, model.NewInvalidCursorError()
	}
	limit = model.ClampLimit(limit, a.limits.Default, a.limits.Max)

	followed, err := a.follows.FollowedIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("フォロー中ユーザーの取得に失敗しました: %w", err)
	}
	authors := lo.Uniq(append([]int64{userID}, followed...))

	// 次ページの有無を判定するため1件多く取得する
	posts, err := a.posts.ListByAuthors(ctx, authors, c, limit+1)
	if err != nil {
		return nil, fmt.Errorf("フィードの取得に失敗しました: %w", err)
	}

	page := &model.FeedPage{}
	if len(posts) > limit {
		posts = posts[:limit]
		page.HasMore = true
		last := posts[limit-1]
		page.NextCursor = model.Cursor{Time: last.CreatedAt, ID: last.ID}.Encode()
	}

	liked, err := a.likes.LikedPostIDs(ctx, userID, lo.Map(posts, func(p model.Post, _ int) int64 { return p.ID }))
	if err != nil {
		return nil, fmt.Errorf("いいね状態の取得に失敗しました: %w", err)
	}

	page.Posts = lo.Map(posts, func(p model.Post, _ int) model.PostWithViewer {
		return model.PostWithViewer{Post: p, LikedByViewer: liked[p.ID]}
	})
	return page, nil
}
