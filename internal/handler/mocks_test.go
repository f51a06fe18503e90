package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/BrieHudson/Capstone-1-Muse/internal/auth"
	"github.com/BrieHudson/Capstone-1-Muse/internal/middleware"
	"github.com/BrieHudson/Capstone-1-Muse/internal/model"
	"github.com/BrieHudson/Capstone-1-Muse/internal/post"
	"github.com/BrieHudson/Capstone-1-Muse/internal/user"
)

// --- モック定義 ---

type mockAuthService struct {
	signupFn      func(ctx context.Context, in user.RegisterInput) (*auth.Session, error)
	loginFn       func(ctx context.Context, username, password string) (*auth.Session, error)
	currentUserFn func(ctx context.Context, userID int64) (*model.User, error)
}

func (m *mockAuthService) Signup(ctx context.Context, in user.RegisterInput) (*auth.Session, error) {
	return m.signupFn(ctx, in)
}

func (m *mockAuthService) Login(ctx context.Context, username, password string) (*auth.Session, error) {
	return m.loginFn(ctx, username, password)
}

func (m *mockAuthService) CurrentUser(ctx context.Context, userID int64) (*model.User, error) {
	return m.currentUserFn(ctx, userID)
}

type mockUserService struct {
	profileFn        func(ctx context.Context, userID int64) (*model.UserProfile, error)
	searchFn         func(ctx context.Context, query string, limit int) ([]model.User, error)
	changePasswordFn func(ctx context.Context, userID int64, current, next string) error
}

func (m *mockUserService) Profile(ctx context.Context, userID int64) (*model.UserProfile, error) {
	return m.profileFn(ctx, userID)
}

func (m *mockUserService) Search(ctx context.Context, query string, limit int) ([]model.User, error) {
	return m.searchFn(ctx, query, limit)
}

func (m *mockUserService) ChangePassword(ctx context.Context, userID int64, current, next string) error {
	return m.changePasswordFn(ctx, userID, current, next)
}

type mockGraphService struct {
	followFn        func(ctx context.Context, followerID, followedID int64) error
	unfollowFn      func(ctx context.Context, followerID, followedID int64) error
	isFollowingFn   func(ctx context.Context, a, b int64) (bool, error)
	listFollowersFn func(ctx context.Context, userID int64, cursor string, limit int) (*model.FollowPage, error)
	listFollowingFn func(ctx context.Context, userID int64, cursor string, limit int) (*model.FollowPage, error)
}

func (m *mockGraphService) Follow(ctx context.Context, followerID, followedID int64) error {
	return m.followFn(ctx, followerID, followedID)
}

func (m *mockGraphService) Unfollow(ctx context.Context, followerID, followedID int64) error {
	return m.unfollowFn(ctx, followerID, followedID)
}

func (m *mockGraphService) IsFollowing(ctx context.Context, a, b int64) (bool, error) {
	return m.isFollowingFn(ctx, a, b)
}

func (m *mockGraphService) ListFollowers(ctx context.Context, userID int64, cursor string, limit int) (*model.FollowPage, error) {
	return m.listFollowersFn(ctx, userID, cursor, limit)
}

func (m *mockGraphService) ListFollowing(ctx context.Context, userID int64, cursor string, limit int) (*model.FollowPage, error) {
	return m.listFollowingFn(ctx, userID, cursor, limit)
}

type mockPostService struct {
	createPostFn    func(ctx context.Context, in post.CreatePostInput) (*model.Post, error)
	publishItemFn   func(ctx context.Context, authorID int64, itemID string, itemType model.ItemType, caption string) (*model.Post, error)
	getPostFn       func(ctx context.Context, postID int64) (*model.Post, error)
	deletePostFn    func(ctx context.Context, postID, requesterID int64) error
	postsByAuthorFn func(ctx context.Context, authorID int64, cursor string, limit int) (*model.PostPage, error)
	likedPostsFn    func(ctx context.Context, userID int64, cursor string, limit int) (*model.PostPage, error)
}

func (m *mockPostService) CreatePost(ctx context.Context, in post.CreatePostInput) (*model.Post, error) {
	return m.createPostFn(ctx, in)
}

func (m *mockPostService) PublishItem(ctx context.Context, authorID int64, itemID string, itemType model.ItemType, caption string) (*model.Post, error) {
	return m.publishItemFn(ctx, authorID, itemID, itemType, caption)
}

func (m *mockPostService) GetPost(ctx context.Context, postID int64) (*model.Post, error) {
	return m.getPostFn(ctx, postID)
}

func (m *mockPostService) DeletePost(ctx context.Context, postID, requesterID int64) error {
	return m.deletePostFn(ctx, postID, requesterID)
}

func (m *mockPostService) PostsByAuthor(ctx context.Context, authorID int64, cursor string, limit int) (*model.PostPage, error) {
	return m.postsByAuthorFn(ctx, authorID, cursor, limit)
}

func (m *mockPostService) LikedPosts(ctx context.Context, userID int64, cursor string, limit int) (*model.PostPage, error) {
	return m.likedPostsFn(ctx, userID, cursor, limit)
}

type mockInteractionService struct {
	likeFn            func(ctx context.Context, userID, postID int64) error
	unlikeFn          func(ctx context.Context, userID, postID int64) error
	hasLikedFn        func(ctx context.Context, userID, postID int64) (bool, error)
	addCommentFn      func(ctx context.Context, userID, postID int64, content string) (*model.Comment, error)
	commentsForPostFn func(ctx context.Context, postID int64) ([]model.Comment, error)
}

func (m *mockInteractionService) Like(ctx context.Context, userID, postID int64) error {
	return m.likeFn(ctx, userID, postID)
}

func (m *mockInteractionService) Unlike(ctx context.Context, userID, postID int64) error {
	return m.unlikeFn(ctx, userID, postID)
}

func (m *mockInteractionService) HasLiked(ctx context.Context, userID, postID int64) (bool, error) {
	return m.hasLikedFn(ctx, userID, postID)
}

func (m *mockInteractionService) AddComment(ctx context.Context, userID, postID int64, content string) (*model.Comment, error) {
	return m.addCommentFn(ctx, userID, postID, content)
}

func (m *mockInteractionService) CommentsForPost(ctx context.Context, postID int64) ([]model.Comment, error) {
	return m.commentsForPostFn(ctx, postID)
}

type mockFeedService struct {
	buildFeedFn func(ctx context.Context, userID int64, cursor string, limit int) (*model.FeedPage, error)
}

func (m *mockFeedService) BuildFeed(ctx context.Context, userID int64, cursor string, limit int) (*model.FeedPage, error) {
	return m.buildFeedFn(ctx, userID, cursor, limit)
}

type mockCatalogService struct {
	searchFn    func(ctx context.Context, query, itemType string) (*model.SearchResult, error)
	fetchItemFn func(ctx context.Context, itemID string, itemType model.ItemType) (*model.CatalogItem, error)
}

func (m *mockCatalogService) Search(ctx context.Context, query, itemType string) (*model.SearchResult, error) {
	return m.searchFn(ctx, query, itemType)
}

func (m *mockCatalogService) FetchItem(ctx context.Context, itemID string, itemType model.ItemType) (*model.CatalogItem, error) {
	return m.fetchItemFn(ctx, itemID, itemType)
}

// mockVerifier は "token-<id>" 形式のトークンを受け付ける。
type mockVerifier struct{}

func (mockVerifier) VerifyToken(token string) (int64, error) {
	switch token {
	case "token-1":
		return 1, nil
	case "token-2":
		return 2, nil
	}
	return 0, model.NewUnauthorizedError()
}

type mockRecorder struct {
	calls []string
}

func (m *mockRecorder) RecordInteraction(operation, result string) {
	m.calls = append(m.calls, operation+":"+result)
}

type mockPinger struct{ err error }

func (m mockPinger) PingContext(ctx context.Context) error { return m.err }

// --- テストヘルパー ---

var testTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// testDeps はすべてのサービスがエラーを返すデフォルトのRouterDepsを返す。
// 各テストで必要なモック関数だけを差し替える。
type testDeps struct {
	auth        *mockAuthService
	users       *mockUserService
	graph       *mockGraphService
	posts       *mockPostService
	interaction *mockInteractionService
	feed        *mockFeedService
	catalog     *mockCatalogService
	recorder    *mockRecorder
	pinger      mockPinger
	limiter     *middleware.RateLimiterConfig
}

var errUnexpected = errors.New("unexpected call")

func newTestDeps() *testDeps {
	return &testDeps{
		auth: &mockAuthService{
			signupFn: func(context.Context, user.RegisterInput) (*auth.Session, error) { return nil, errUnexpected },
			loginFn:  func(context.Context, string, string) (*auth.Session, error) { return nil, errUnexpected },
			currentUserFn: func(ctx context.Context, id int64) (*model.User, error) {
				return &model.User{ID: id, Username: "alice", Email: "alice@example.com", CreatedAt: testTime}, nil
			},
		},
		users: &mockUserService{
			profileFn:        func(context.Context, int64) (*model.UserProfile, error) { return nil, errUnexpected },
			searchFn:         func(context.Context, string, int) ([]model.User, error) { return nil, errUnexpected },
			changePasswordFn: func(context.Context, int64, string, string) error { return errUnexpected },
		},
		graph: &mockGraphService{
			followFn:        func(context.Context, int64, int64) error { return errUnexpected },
			unfollowFn:      func(context.Context, int64, int64) error { return errUnexpected },
			isFollowingFn:   func(context.Context, int64, int64) (bool, error) { return false, errUnexpected },
			listFollowersFn: func(context.Context, int64, string, int) (*model.FollowPage, error) { return nil, errUnexpected },
			listFollowingFn: func(context.Context, int64, string, int) (*model.FollowPage, error) { return nil, errUnexpected },
		},
		posts: &mockPostService{
			createPostFn: func(context.Context, post.CreatePostInput) (*model.Post, error) { return nil, errUnexpected },
			publishItemFn: func(context.Context, int64, string, model.ItemType, string) (*model.Post, error) {
				return nil, errUnexpected
			},
			getPostFn:       func(context.Context, int64) (*model.Post, error) { return nil, errUnexpected },
			deletePostFn:    func(context.Context, int64, int64) error { return errUnexpected },
			postsByAuthorFn: func(context.Context, int64, string, int) (*model.PostPage, error) { return nil, errUnexpected },
			likedPostsFn:    func(context.Context, int64, string, int) (*model.PostPage, error) { return nil, errUnexpected },
		},
		interaction: &mockInteractionService{
			likeFn:     func(context.Context, int64, int64) error { return errUnexpected },
			unlikeFn:   func(context.Context, int64, int64) error { return errUnexpected },
			hasLikedFn: func(context.Context, int64, int64) (bool, error) { return false, errUnexpected },
			addCommentFn: func(context.Context, int64, int64, string) (*model.Comment, error) {
				return nil, errUnexpected
			},
			commentsForPostFn: func(context.Context, int64) ([]model.Comment, error) { return nil, errUnexpected },
		},
		feed: &mockFeedService{
			buildFeedFn: func(context.Context, int64, string, int) (*model.FeedPage, error) { return nil, errUnexpected },
		},
		catalog: &mockCatalogService{
			searchFn: func(context.Context, string, string) (*model.SearchResult, error) { return nil, errUnexpected },
			fetchItemFn: func(context.Context, string, model.ItemType) (*model.CatalogItem, error) {
				return nil, errUnexpected
			},
		},
		recorder: &mockRecorder{},
	}
}

func (d *testDeps) router(t *testing.T) http.Handler {
	t.Helper()
	cfg := middleware.DefaultRateLimiterConfig()
	if d.limiter != nil {
		cfg = *d.limiter
	}
	rl := middleware.NewRateLimiter(cfg)
	t.Cleanup(rl.Stop)

	return NewRouter(&RouterDeps{
		TokenVerifier:      mockVerifier{},
		CORSAllowedOrigin:  "http://localhost:3000",
		RateLimiter:        rl,
		Logger:             discardLogger(),
		HealthChecker:      d.pinger,
		AuthService:        d.auth,
		UserService:        d.users,
		GraphService:       d.graph,
		PostService:        d.posts,
		UserPostsService:   d.posts,
		InteractionService: d.interaction,
		FeedService:        d.feed,
		CatalogService:     d.catalog,
		Interactions:       d.recorder,
	})
}

// do はリクエストを実行する。tokenが空でなければBearerトークンを付与する。
func do(t *testing.T, h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

// assertError はステータスコードとエラーコードを検証する。
func assertError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("status = %d, want %d (body: %s)", w.Code, status, w.Body.String())
	}
	var body middleware.ErrorResponseBody
	decodeBody(t, w, &body)
	if body.Code != code {
		t.Errorf("code = %q, want %q", body.Code, code)
	}
}
