package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/BrieHudson/Capstone-1-Muse/internal/model"
	"github.com/BrieHudson/Capstone-1-Muse/internal/post"
)

// PostServiceInterface は投稿ハンドラーが必要とするサービスインターフェース。
type PostServiceInterface interface {
	CreatePost(ctx context.Context, in post.CreatePostInput) (*model.Post, error)
	PublishItem(ctx context.Context, authorID int64, itemID string, itemType model.ItemType, caption string) (*model.Post, error)
	GetPost(ctx context.Context, postID int64) (*model.Post, error)
	DeletePost(ctx context.Context, postID, requesterID int64) error
}

// InteractionServiceInterface はいいね・コメントに必要なサービスインターフェース。
type InteractionServiceInterface interface {
	Like(ctx context.Context, userID, postID int64) error
	Unlike(ctx context.Context, userID, postID int64) error
	HasLiked(ctx context.Context, userID, postID int64) (bool, error)
	AddComment(ctx context.Context, userID, postID int64, content string) (*model.Comment, error)
	CommentsForPost(ctx context.Context, postID int64) ([]model.Comment, error)
}

// PostHandler は投稿・いいね・コメントのHTTPハンドラー。
type PostHandler struct {
	posts        PostServiceInterface
	interactions InteractionServiceInterface
	metrics      InteractionRecorder
}

// NewPostHandler はPostHandlerを生成する。
func NewPostHandler(posts PostServiceInterface, interactions InteractionServiceInterface, metrics InteractionRecorder) *PostHandler {
	return &PostHandler{
		posts:        posts,
		interactions: interactions,
		metrics:      metrics,
	}
}

// createPostRequest は投稿作成リクエストのボディ。
// item_nameを省略した場合はサーバーが外部カタログから名前とアーティストを取得する。
type createPostRequest struct {
	ItemID     string `json:"item_id"`
	ItemType   string `json:"item_type"`
	ItemName   string `json:"item_name"`
	ArtistName string `json:"artist_name"`
	Caption    string `json:"caption"`
}

type addCommentRequest struct {
	Content string `json:"content"`
}

// Create は投稿を作成する。
// POST /api/posts
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	var req createPostRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var (
		p   *model.Post
		err error
	)
	if strings.TrimSpace(req.ItemName) != "" {
		p, err = h.posts.CreatePost(r.Context(), post.CreatePostInput{
			AuthorID:         userID,
			ExternalItemID:   req.ItemID,
			ExternalItemName: req.ItemName,
			ArtistName:       req.ArtistName,
			Caption:          req.Caption,
			ItemType:         model.ItemType(req.ItemType),
		})
	} else {
		p, err = h.posts.PublishItem(r.Context(), userID, req.ItemID, model.ItemType(req.ItemType), req.Caption)
	}
	recordInteraction(h.metrics, "post", err)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toPostResponse(p))
}

// Get は投稿を返す。閲覧者がいいね済みかも含める。
// GET /api/posts/{id}
func (h *PostHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	postID, ok := h.postID(w, r)
	if !ok {
		return
	}

	p, err := h.posts.GetPost(r.Context(), postID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	liked, err := h.interactions.HasLiked(r.Context(), userID, postID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp := toPostResponse(p)
	resp.LikedByViewer = &liked
	writeJSON(w, http.StatusOK, resp)
}

// Delete は投稿を削除する。投稿者本人のみ削除できる。
// DELETE /api/posts/{id}
func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	postID, ok := h.postID(w, r)
	if !ok {
		return
	}

	if err := h.posts.DeletePost(r.Context(), postID, userID); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Like は投稿にいいねする。
// POST /api/posts/{id}/like
func (h *PostHandler) Like(w http.ResponseWriter, r *http.Request) {
	h.likeAction(w, r, "like", h.interactions.Like)
}

// Unlike はいいねを取り消す。
// DELETE /api/posts/{id}/like
func (h *PostHandler) Unlike(w http.ResponseWriter, r *http.Request) {
	h.likeAction(w, r, "unlike", h.interactions.Unlike)
}

func (h *PostHandler) likeAction(w http.ResponseWriter, r *http.Request, op string, action func(context.Context, int64, int64) error) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	postID, ok := h.postID(w, r)
	if !ok {
		return
	}

	err := action(r.Context(), userID, postID)
	recordInteraction(h.metrics, op, err)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Comments は投稿のコメント一覧を古い順に返す。
// GET /api/posts/{id}/comments
func (h *PostHandler) Comments(w http.ResponseWriter, r *http.Request) {
	postID, ok := h.postID(w, r)
	if !ok {
		return
	}

	comments, err := h.interactions.CommentsForPost(r.Context(), postID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp := make([]commentResponse, len(comments))
	for i := range comments {
		resp[i] = toCommentResponse(&comments[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{"comments": resp})
}

// AddComment は投稿にコメントする。
// POST /api/posts/{id}/comments
func (h *PostHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	postID, ok := h.postID(w, r)
	if !ok {
		return
	}
	var req addCommentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	c, err := h.interactions.AddComment(r.Context(), userID, postID, req.Content)
	recordInteraction(h.metrics, "comment", err)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCommentResponse(c))
}

func (h *PostHandler) postID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	return idParam(w, r, "id", model.NewPostNotFoundError(0))
}
