package handler

import (
	"context"
	"net/http"

	"github.com/BrieHudson/Capstone-1-Muse/internal/model"
)

// FeedServiceInterface はフィードハンドラーが必要とするサービスインターフェース。
type FeedServiceInterface interface {
	// BuildFeed は本人とフォロー中ユーザーの投稿を新しい順に返す。
	BuildFeed(ctx context.Context, userID int64, cursor string, limit int) (*model.FeedPage, error)
}

// FeedHandler はフィードのHTTPハンドラー。
type FeedHandler struct {
	service FeedServiceInterface
}

// NewFeedHandler はFeedHandlerを生成する。
func NewFeedHandler(service FeedServiceInterface) *FeedHandler {
	return &FeedHandler{service: service}
}

// GetFeed は認証済みユーザーのフィードを返す。
// GET /api/feed?cursor=&limit=
func (h *FeedHandler) GetFeed(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	cursor, limit := pageParams(r)

	page, err := h.service.BuildFeed(r.Context(), userID, cursor, limit)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	posts := make([]postResponse, len(page.Posts))
	for i := range page.Posts {
		p := toPostResponse(&page.Posts[i].Post)
		liked := page.Posts[i].LikedByViewer
		p.LikedByViewer = &liked
		posts[i] = p
	}
	writeJSON(w, http.StatusOK, postListResponse{
		Posts:      posts,
		NextCursor: page.NextCursor,
		HasMore:    page.HasMore,
	})
}
