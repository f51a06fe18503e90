package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/BrieHudson/Capstone-1-Muse/internal/middleware"
	"github.com/BrieHudson/Capstone-1-Muse/internal/model"
)

// maxRequestBodySize はJSONリクエストボディの上限（1MB）。
const maxRequestBodySize = 1 << 20

// --- レスポンス型 ---

// userResponse はユーザー情報のAPIレスポンス。メールアドレスとパスワードハッシュは含めない。
type userResponse struct {
	ID             int64     `json:"id"`
	Username       string    `json:"username"`
	FollowerCount  int       `json:"follower_count"`
	FollowingCount int       `json:"following_count"`
	CreatedAt      time.Time `json:"created_at"`
}

// meResponse は本人向けのユーザー情報。メールアドレスを含む。
type meResponse struct {
	userResponse
	Email string `json:"email"`
}

// profileResponse はプロフィールのAPIレスポンス。
type profileResponse struct {
	userResponse
	PostCount   int   `json:"post_count"`
	LikedCount  int   `json:"liked_count"`
	IsFollowing *bool `json:"is_following,omitempty"`
}

// sessionResponse はサインアップ・ログイン成功時のレスポンス。
type sessionResponse struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
	User      meResponse `json:"user"`
}

// postResponse は投稿のAPIレスポンス。
type postResponse struct {
	ID               int64     `json:"id"`
	AuthorID         int64     `json:"author_id"`
	AuthorUsername   string    `json:"author_username"`
	ExternalItemID   string    `json:"item_id"`
	ExternalItemName string    `json:"item_name"`
	ArtistName       string    `json:"artist_name,omitempty"`
	ItemType         string    `json:"item_type"`
	Caption          string    `json:"caption"`
	LikeCount        int       `json:"like_count"`
	CommentCount     int       `json:"comment_count"`
	LikedByViewer    *bool     `json:"liked_by_viewer,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// postListResponse は投稿一覧・フィードのAPIレスポンス。
type postListResponse struct {
	Posts      []postResponse `json:"posts"`
	NextCursor string         `json:"next_cursor,omitempty"`
	HasMore    bool           `json:"has_more"`
}

// followEntryResponse はフォロワー/フォロー中一覧の1件。
type followEntryResponse struct {
	UserID     int64     `json:"user_id"`
	Username   string    `json:"username"`
	FollowedAt time.Time `json:"followed_at"`
}

// followListResponse はフォロワー/フォロー中一覧のAPIレスポンス。
type followListResponse struct {
	Users      []followEntryResponse `json:"users"`
	NextCursor string                `json:"next_cursor,omitempty"`
	HasMore    bool                  `json:"has_more"`
}

// commentResponse はコメントのAPIレスポンス。
type commentResponse struct {
	ID             int64     `json:"id"`
	PostID         int64     `json:"post_id"`
	AuthorID       int64     `json:"author_id"`
	AuthorUsername string    `json:"author_username"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:             u.ID,
		Username:       u.Username,
		FollowerCount:  u.FollowerCount,
		FollowingCount: u.FollowingCount,
		CreatedAt:      u.CreatedAt,
	}
}

func toMeResponse(u *model.User) meResponse {
	return meResponse{userResponse: toUserResponse(u), Email: u.Email}
}

func toPostResponse(p *model.Post) postResponse {
	return postResponse{
		ID:               p.ID,
		AuthorID:         p.AuthorID,
		AuthorUsername:   p.AuthorUsername,
		ExternalItemID:   p.ExternalItemID,
		ExternalItemName: p.ExternalItemName,
		ArtistName:       p.ArtistName,
		ItemType:         string(p.ItemType),
		Caption:          p.Caption,
		LikeCount:        p.LikeCount,
		CommentCount:     p.CommentCount,
		CreatedAt:        p.CreatedAt,
	}
}

func toPostListResponse(page *model.PostPage) postListResponse {
	posts := make([]postResponse, len(page.Posts))
	for i := range page.Posts {
		posts[i] = toPostResponse(&page.Posts[i])
	}
	return postListResponse{Posts: posts, NextCursor: page.NextCursor, HasMore: page.HasMore}
}

func toFollowListResponse(page *model.FollowPage) followListResponse {
	users := make([]followEntryResponse, len(page.Users))
	for i, e := range page.Users {
		users[i] = followEntryResponse{UserID: e.UserID, Username: e.Username, FollowedAt: e.FollowedAt}
	}
	return followListResponse{Users: users, NextCursor: page.NextCursor, HasMore: page.HasMore}
}

func toCommentResponse(c *model.Comment) commentResponse {
	return commentResponse{
		ID:             c.ID,
		PostID:         c.PostID,
		AuthorID:       c.AuthorID,
		AuthorUsername: c.AuthorUsername,
		Content:        c.Content,
		CreatedAt:      c.CreatedAt,
	}
}

// --- リクエスト処理ヘルパー ---

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// decodeJSON はリクエストボディをvにデコードする。失敗時は400を書き込みfalseを返す。
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: model.CategoryValidation,
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return false
	}
	return true
}

// requireUserID は認証済みユーザーIDを返す。未認証の場合は401を書き込みfalseを返す。
func requireUserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return 0, false
	}
	return userID, true
}

// idParam はURLパラメータの正の整数IDを返す。不正な場合は404を書き込みfalseを返す。
func idParam(w http.ResponseWriter, r *http.Request, name string, notFound *model.APIError) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		middleware.WriteErrorResponse(w, http.StatusNotFound, notFound)
		return 0, false
	}
	return id, true
}

// pageParams はクエリパラメータからcursorとlimitを取り出す。
// limitが数値でない場合は0（デフォルト）として扱う。
func pageParams(r *http.Request) (string, int) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	return q.Get("cursor"), limit
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは詳細をログにのみ残す
	slog.Error("internal server error",
		slog.String("error", err.Error()),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("request_id", chimw.GetReqID(r.Context())),
	)
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorのカテゴリとコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Category {
	case model.CategoryValidation:
		return http.StatusBadRequest
	case model.CategoryConflict:
		return http.StatusConflict
	case model.CategoryNotFound:
		return http.StatusNotFound
	case model.CategoryForbidden:
		return http.StatusForbidden
	case model.CategoryAuth:
		return http.StatusUnauthorized
	case model.CategoryUpstream:
		if apiErr.Code == model.ErrCodeCatalogUnavailable {
			return http.StatusServiceUnavailable
		}
		return http.StatusBadGateway
	}
	if apiErr.Code == model.ErrCodeRateLimited {
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

// apiErrorCode はerrがAPIErrorの場合そのコードを返す。
func apiErrorCode(err error) string {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ""
}
