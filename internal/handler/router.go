package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/BrieHudson/Capstone-1-Muse/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	TokenVerifier     middleware.TokenVerifier
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	HTTPMetrics       middleware.HTTPMetrics

	// ヘルスチェック・メトリクス
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	// サービス
	AuthService        AuthServiceInterface
	UserService        UserServiceInterface
	GraphService       GraphServiceInterface
	PostService        PostServiceInterface
	UserPostsService   UserPostsServiceInterface
	InteractionService InteractionServiceInterface
	FeedService        FeedServiceInterface
	CatalogService     CatalogServiceInterface
	Interactions       InteractionRecorder
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Logging → Recovery → SecurityHeaders → CORS → Auth → RateLimit(General)
//
// フォロー・いいね・コメント・投稿にはさらにRateLimit(Interaction)を適用する。
// /health、/metrics、/auth/signup、/auth/login は認証不要。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.NewLoggingMiddleware(logger, deps.HTTPMetrics))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService)
	userHandler := NewUserHandler(deps.UserService, deps.GraphService, deps.UserPostsService, deps.Interactions)
	postHandler := NewPostHandler(deps.PostService, deps.InteractionService, deps.Interactions)
	feedHandler := NewFeedHandler(deps.FeedService)
	catalogHandler := NewCatalogHandler(deps.CatalogService)

	// --- 認証不要のルート ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}
	r.Post("/auth/signup", authHandler.Signup)
	r.Post("/auth/login", authHandler.Login)

	// --- 認証が必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.TokenVerifier))
		r.Use(deps.RateLimiter.GeneralMiddleware())
		interaction := deps.RateLimiter.InteractionMiddleware()

		r.Get("/auth/me", authHandler.Me)

		r.Route("/api/users", func(r chi.Router) {
			r.Get("/search", userHandler.Search)
			r.Put("/me/password", userHandler.ChangePassword)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", userHandler.Profile)
				r.Get("/followers", userHandler.Followers)
				r.Get("/following", userHandler.Following)
				r.Get("/posts", userHandler.Posts)
				r.Get("/likes", userHandler.Likes)
				r.With(interaction).Post("/follow", userHandler.Follow)
				r.With(interaction).Delete("/follow", userHandler.Unfollow)
			})
		})

		r.Get("/api/feed", feedHandler.GetFeed)

		r.Route("/api/posts", func(r chi.Router) {
			r.With(interaction).Post("/", postHandler.Create)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", postHandler.Get)
				r.Delete("/", postHandler.Delete)
				r.With(interaction).Post("/like", postHandler.Like)
				r.With(interaction).Delete("/like", postHandler.Unlike)
				r.Get("/comments", postHandler.Comments)
				r.With(interaction).Post("/comments", postHandler.AddComment)
			})
		})

		r.Route("/api/catalog", func(r chi.Router) {
			r.Get("/search", catalogHandler.Search)
			r.Get("/{type}/{id}", catalogHandler.GetItem)
		})
	})

	return r
}
