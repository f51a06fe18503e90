package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/BrieHudson/Capstone-1-Muse/internal/auth"
	"github.com/BrieHudson/Capstone-1-Muse/internal/cache"
	"github.com/BrieHudson/Capstone-1-Muse/internal/catalog"
	"github.com/BrieHudson/Capstone-1-Muse/internal/config"
	"github.com/BrieHudson/Capstone-1-Muse/internal/database"
	"github.com/BrieHudson/Capstone-1-Muse/internal/events"
	"github.com/BrieHudson/Capstone-1-Muse/internal/feed"
	"github.com/BrieHudson/Capstone-1-Muse/internal/graph"
	"github.com/BrieHudson/Capstone-1-Muse/internal/handler"
	"github.com/BrieHudson/Capstone-1-Muse/internal/interaction"
	"github.com/BrieHudson/Capstone-1-Muse/internal/logger"
	"github.com/BrieHudson/Capstone-1-Muse/internal/metrics"
	"github.com/BrieHudson/Capstone-1-Muse/internal/middleware"
	"github.com/BrieHudson/Capstone-1-Muse/internal/post"
	"github.com/BrieHudson/Capstone-1-Muse/internal/repository"
	"github.com/BrieHudson/Capstone-1-Muse/internal/security"
	"github.com/BrieHudson/Capstone-1-Muse/internal/seed"
	"github.com/BrieHudson/Capstone-1-Muse/internal/telemetry"
	"github.com/BrieHudson/Capstone-1-Muse/internal/user"
	"github.com/BrieHudson/Capstone-1-Muse/internal/worker"
	"github.com/BrieHudson/Capstone-1-Muse/internal/worker/cleanup"
	"github.com/BrieHudson/Capstone-1-Muse/internal/worker/relay"
)

// DB疎通確認のタイムアウト
const pingTimeout = 5 * time.Second

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップしてから環境変数を読み込む。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 設定読み込みのエラーもJSONで出せるよう、先にロガーを用意する
	logger.SetupDefault(w, os.Getenv("LOG_LEVEL"))

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandWorker:
		return runWorker(ctx, cfg)
	case CommandMigrate:
		return runMigrate(cfg, migrateDown(args))
	case CommandSeed:
		return runSeed(ctx, cfg)
	default:
		return runServe(ctx, cfg)
	}
}

// openDB はDBを開き、疎通を確認する。
func openDB(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := database.Open(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := database.Ping(ctx, db, pingTimeout); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("database connection established")
	return db, nil
}

// repositories はPostgreSQLリポジトリ一式。
type repositories struct {
	users    *repository.PostgresUserRepo
	follows  *repository.PostgresFollowRepo
	posts    *repository.PostgresPostRepo
	likes    *repository.PostgresLikeRepo
	comments *repository.PostgresCommentRepo
}

func newRepositories(db *sql.DB) *repositories {
	likes := repository.NewPostgresLikeRepo(db)
	comments := repository.NewPostgresCommentRepo(db)
	// 投稿削除時にいいね・コメントも同じトランザクションで削除する
	return &repositories{
		users:    repository.NewPostgresUserRepo(db),
		follows:  repository.NewPostgresFollowRepo(db),
		posts:    repository.NewPostgresPostRepo(db, likes, comments),
		likes:    likes,
		comments: comments,
	}
}

// runServe はAPIサーバーモードで起動する。
// ctxがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		Endpoint:    cfg.OTELEndpoint,
		ServiceName: cfg.OTELServiceName,
	})
	if err != nil {
		return err
	}
	defer func() {
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(c); err != nil {
			slog.Warn("failed to flush traces", slog.String("error", err.Error()))
		}
	}()

	db, err := openDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	repos := newRepositories(db)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)

	catalogClient, closeCatalog, err := newCatalogClient(ctx, cfg, collector)
	if err != nil {
		return err
	}
	defer closeCatalog()

	sanitizer := security.NewTextSanitizer()
	userService := user.NewService(repos.users, repos.posts, repos.likes, user.NewBcryptHasher(cfg.BcryptCost))
	authService := auth.NewService(userService, auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenMaxAge))
	graphService := graph.NewService(repos.follows, repos.users)
	interactionService := interaction.NewService(repos.likes, repos.comments, repos.posts, sanitizer)
	postService := post.NewService(repos.posts, repos.users, catalogClient, sanitizer)
	aggregator := feed.NewAggregator(repos.follows, repos.posts, repos.likes, feed.Limits{
		Default: cfg.FeedDefaultLimit,
		Max:     cfg.FeedMaxLimit,
	})

	rateLimiter := middleware.NewRateLimiter(
		middleware.RateLimiterConfigFromPerMinute(cfg.RateLimitGeneral, cfg.RateLimitInteraction),
	)
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		TokenVerifier:     authService,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Logger:            slog.Default(),
		HTTPMetrics:       collector,

		HealthChecker:  db,
		MetricsHandler: metrics.Handler(registry),

		AuthService:        authService,
		UserService:        userService,
		GraphService:       graphService,
		PostService:        postService,
		UserPostsService:   postService,
		InteractionService: interactionService,
		FeedService:        aggregator,
		CatalogService:     catalogClient,
		Interactions:       collector,
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      telemetry.WrapHandler(router, "muse.http"),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return serveUntilDone(ctx, server, "API server")
}

// newCatalogClient は外部カタログのクライアントを生成する。
// REDIS_ADDRが設定されている場合は取得したアイテムをRedisにキャッシュする。
func newCatalogClient(ctx context.Context, cfg *config.Config, collector *metrics.Collector) (*catalog.Client, func(), error) {
	guard := security.NewEndpointGuard()
	for _, endpoint := range []string{cfg.CatalogAccountsURL, cfg.CatalogAPIURL} {
		if err := guard.ValidateEndpoint(endpoint); err != nil {
			return nil, nil, fmt.Errorf("invalid catalog endpoint %q: %w", endpoint, err)
		}
	}

	httpClient := catalog.NewHTTPClient(guard, cfg.CatalogTimeout)
	tokens := catalog.NewTokenSource(httpClient, cfg.CatalogAccountsURL,
		cfg.CatalogClientID, cfg.CatalogClientSecret, collector, slog.Default())

	opts := []catalog.Option{
		catalog.WithMetrics(collector),
		catalog.WithLogger(slog.Default()),
	}
	closeFn := func() {}
	if cfg.RedisAddr != "" {
		rdb, err := cache.NewClient(ctx, cfg.RedisAddr)
		if err != nil {
			// キャッシュなしでも動作は継続できる
			slog.Warn("catalog cache disabled", slog.String("error", err.Error()))
		} else {
			opts = append(opts, catalog.WithCache(cache.NewRedisItemCache(rdb)))
			closeFn = func() { rdb.Close() }
			slog.Info("catalog cache enabled", slog.String("redis_addr", cfg.RedisAddr))
		}
	}

	client := catalog.NewClient(httpClient, tokens, catalog.Config{
		APIURL:      cfg.CatalogAPIURL,
		SearchLimit: cfg.CatalogSearchLimit,
		RateLimit:   cfg.CatalogRateLimit,
		CacheTTL:    cfg.CatalogItemCacheTTL,
	}, opts...)
	return client, closeFn, nil
}

// serveUntilDone はctxがキャンセルされるまでserverを動かし、その後シャットダウンする。
func serveUntilDone(ctx context.Context, server *http.Server, name string) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info(name+" starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("%s listen error: %w", name, err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down " + name + "...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("%s shutdown failed: %w", name, err)
	}
	slog.Info(name + " stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// アウトボックスの中継と配信済みイベントの削除をスケジューラで定期実行する。
func runWorker(ctx context.Context, cfg *config.Config) error {
	db, err := openDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	outbox := repository.NewPostgresOutboxRepo(db)

	var publisher events.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		slog.Info("publishing events to kafka",
			slog.Any("brokers", cfg.KafkaBrokers),
			slog.String("topic", cfg.KafkaTopic),
		)
	} else {
		publisher = events.NewLogPublisher(slog.Default())
		slog.Info("KAFKA_BROKERS is not set, events are written to the log")
	}
	defer publisher.Close()

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	eventRelay := relay.NewRelay(outbox, publisher, collector, slog.Default(), cfg.OutboxBatchSize)
	cleanupJob := cleanup.NewCleanupJob(outbox, slog.Default())
	if cfg.OutboxRetentionDays > 0 {
		cleanupJob.RetentionDays = cfg.OutboxRetentionDays
	}

	scheduler := worker.NewScheduler(slog.Default())
	if err := scheduler.Add("outbox-relay", cfg.OutboxRelaySchedule, eventRelay.RunOnce); err != nil {
		return err
	}
	if err := scheduler.Add("outbox-cleanup", "@daily", cleanupJob.Run); err != nil {
		return err
	}

	// 起動直後に1回削除を実行する
	if err := cleanupJob.Run(ctx); err != nil {
		slog.Error("cleanup job failed", slog.String("error", err.Error()))
	}

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           metrics.SetupMetricsRoute(registry),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := serveUntilDone(ctx, metricsServer, "worker metrics server"); err != nil {
			slog.Error("worker metrics server failed", slog.String("error", err.Error()))
		}
	}()

	scheduler.Run(ctx)
	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// downがtrueの場合は直近のマイグレーションを1つ戻す。
func runMigrate(cfg *config.Config, down bool) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
		slog.Bool("down", down),
	)

	run := database.RunMigrations
	if down {
		run = database.RollbackMigration
	}
	if err := run(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed")
	return nil
}

// runSeed は開発用のダミーデータを投入する。
// 外部カタログには接続せず、アイテムのスナップショットもダミーで生成する。
func runSeed(ctx context.Context, cfg *config.Config) error {
	db, err := openDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	repos := newRepositories(db)
	sanitizer := security.NewTextSanitizer()
	userService := user.NewService(repos.users, repos.posts, repos.likes, user.NewBcryptHasher(cfg.BcryptCost))

	seeder := seed.NewSeeder(
		userService,
		graph.NewService(repos.follows, repos.users),
		post.NewService(repos.posts, repos.users, nil, sanitizer),
		interaction.NewService(repos.likes, repos.comments, repos.posts, sanitizer),
		seed.DefaultConfig(),
	)
	if _, err := seeder.Run(ctx); err != nil {
		return fmt.Errorf("seed failed: %w", err)
	}
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
func runHealthcheck(port string) error {
	endpoint := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(endpoint)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}
	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
// パースできない場合は全体を伏せる。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
