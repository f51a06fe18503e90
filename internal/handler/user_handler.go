package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/BrieHudson/Capstone-1-Muse/internal/model"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	Profile(ctx context.Context, userID int64) (*model.UserProfile, error)
	Search(ctx context.Context, query string, limit int) ([]model.User, error)
	ChangePassword(ctx context.Context, userID int64, current, next string) error
}

// GraphServiceInterface はフォロー関係の操作に必要なサービスインターフェース。
type GraphServiceInterface interface {
	Follow(ctx context.Context, followerID, followedID int64) error
	Unfollow(ctx context.Context, followerID, followedID int64) error
	IsFollowing(ctx context.Context, a, b int64) (bool, error)
	ListFollowers(ctx context.Context, userID int64, cursor string, limit int) (*model.FollowPage, error)
	ListFollowing(ctx context.Context, userID int64, cursor string, limit int) (*model.FollowPage, error)
}

// UserPostsServiceInterface はユーザーごとの投稿一覧に必要なサービスインターフェース。
type UserPostsServiceInterface interface {
	PostsByAuthor(ctx context.Context, authorID int64, cursor string, limit int) (*model.PostPage, error)
	LikedPosts(ctx context.Context, userID int64, cursor string, limit int) (*model.PostPage, error)
}

// InteractionRecorder はインタラクションの結果を記録する。
type InteractionRecorder interface {
	RecordInteraction(operation, result string)
}

// UserHandler はユーザー・フォロー関係のHTTPハンドラー。
type UserHandler struct {
	users   UserServiceInterface
	graph   GraphServiceInterface
	posts   UserPostsServiceInterface
	metrics InteractionRecorder
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(users UserServiceInterface, graph GraphServiceInterface, posts UserPostsServiceInterface, metrics InteractionRecorder) *UserHandler {
	return &UserHandler{
		users:   users,
		graph:   graph,
		posts:   posts,
		metrics: metrics,
	}
}

// Search はユーザー名でユーザーを検索する。
// GET /api/users/search?q=
func (h *UserHandler) Search(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	users, err := h.users.Search(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp := make([]userResponse, len(users))
	for i := range users {
		resp[i] = toUserResponse(&users[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": resp})
}

// Profile はユーザーのプロフィールを返す。閲覧者がフォローしているかも含める。
// GET /api/users/{id}
func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	userID, ok := idParam(w, r, "id", model.NewUserNotFoundError())
	if !ok {
		return
	}

	p, err := h.users.Profile(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp := profileResponse{
		userResponse: toUserResponse(&p.User),
		PostCount:    p.PostCount,
		LikedCount:   p.LikedCount,
	}
	if viewerID != userID {
		following, err := h.graph.IsFollowing(r.Context(), viewerID, userID)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		resp.IsFollowing = &following
	}
	writeJSON(w, http.StatusOK, resp)
}

// Followers はユーザーのフォロワー一覧を返す。
// GET /api/users/{id}/followers
func (h *UserHandler) Followers(w http.ResponseWriter, r *http.Request) {
	h.followList(w, r, h.graph.ListFollowers)
}

// Following はユーザーがフォローしているユーザー一覧を返す。
// GET /api/users/{id}/following
func (h *UserHandler) Following(w http.ResponseWriter, r *http.Request) {
	h.followList(w, r, h.graph.ListFollowing)
}

func (h *UserHandler) followList(w http.ResponseWriter, r *http.Request, list func(context.Context, int64, string, int) (*model.FollowPage, error)) {
	userID, ok := idParam(w, r, "id", model.NewUserNotFoundError())
	if !ok {
		return
	}
	cursor, limit := pageParams(r)

	page, err := list(r.Context(), userID, cursor, limit)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toFollowListResponse(page))
}

// Posts はユーザーの投稿一覧を返す。
// GET /api/users/{id}/posts
func (h *UserHandler) Posts(w http.ResponseWriter, r *http.Request) {
	h.postList(w, r, h.posts.PostsByAuthor)
}

// Likes はユーザーがいいねした投稿一覧を返す。
// GET /api/users/{id}/likes
func (h *UserHandler) Likes(w http.ResponseWriter, r *http.Request) {
	h.postList(w, r, h.posts.LikedPosts)
}

func (h *UserHandler) postList(w http.ResponseWriter, r *http.Request, list func(context.Context, int64, string, int) (*model.PostPage, error)) {
	userID, ok := idParam(w, r, "id", model.NewUserNotFoundError())
	if !ok {
		return
	}
	cursor, limit := pageParams(r)

	page, err := list(r.Context(), userID, cursor, limit)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPostListResponse(page))
}

// Follow はユーザーをフォローする。
// POST /api/users/{id}/follow
func (h *UserHandler) Follow(w http.ResponseWriter, r *http.Request) {
	h.followAction(w, r, "follow", h.graph.Follow)
}

// Unfollow はフォローを解除する。
// DELETE /api/users/{id}/follow
func (h *UserHandler) Unfollow(w http.ResponseWriter, r *http.Request) {
	h.followAction(w, r, "unfollow", h.graph.Unfollow)
}

func (h *UserHandler) followAction(w http.ResponseWriter, r *http.Request, op string, action func(context.Context, int64, int64) error) {
	viewerID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	targetID, ok := idParam(w, r, "id", model.NewUserNotFoundError())
	if !ok {
		return
	}

	err := action(r.Context(), viewerID, targetID)
	recordInteraction(h.metrics, op, err)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ChangePassword は本人のパスワードを変更する。
// PUT /api/users/me/password
func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	var req changePasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.users.ChangePassword(r.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// recordInteraction は操作の結果（成功なら "ok"、APIErrorならそのコード）を記録する。
func recordInteraction(m InteractionRecorder, op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
		if code := apiErrorCode(err); code != "" {
			result = code
		}
	}
	m.RecordInteraction(op, result)
}
