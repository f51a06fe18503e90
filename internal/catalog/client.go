// Package catalog は外部音楽カタログ（Spotify Web API）との連携を提供する。
// アクセストークンの管理、楽曲・プレイリストの検索、アイテム詳細の取得を含む。
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/BrieHudson/Capstone-1-Muse/internal/model"
)

// 検索結果のデフォルト件数
const defaultSearchLimit = 10

// maxResponseSize はAPIレスポンスとして読み込む最大バイト数。
const maxResponseSize = 5 << 20

// errUpstreamNotFound はAPIが404を返したことを表す。
var errUpstreamNotFound = errors.New("catalog: not found")

// Metrics はカタログ通信のメトリクスを記録する。
type Metrics interface {
	RecordCatalogRequest(endpoint string, statusCode int, duration time.Duration)
	RecordCatalogTokenFetch(success bool)
	RecordCatalogCacheLookup(hit bool)
}

type nopMetrics struct{}

func (nopMetrics) RecordCatalogRequest(string, int, time.Duration) {}
func (nopMetrics) RecordCatalogTokenFetch(bool)                    {}
func (nopMetrics) RecordCatalogCacheLookup(bool)                   {}

// ItemCache は取得済みアイテムのキャッシュ。
type ItemCache interface {
	// Get はキャッシュ済みのアイテムを返す。存在しない場合はnilを返す。
	Get(ctx context.Context, itemType model.ItemType, itemID string) (*model.CatalogItem, error)
	Set(ctx context.Context, item *model.CatalogItem, ttl time.Duration) error
}

// Config はClientの設定。
type Config struct {
	APIURL      string
	SearchLimit int
	// RateLimit は1秒あたりの最大リクエスト数。0以下は無制限。
	RateLimit int
	CacheTTL  time.Duration
}

// Client は外部カタログAPIのクライアント。
// 401を受けた場合はトークンを破棄して1回だけ再試行する。それ以外の再試行は行わない。
type Client struct {
	httpClient *http.Client
	tokens     *TokenSource
	apiURL     string
	cfg        Config
	limiter    *rate.Limiter
	cache      ItemCache
	metrics    Metrics
	logger     *slog.Logger
}

// Option はClientの任意設定。
type Option func(*Client)

// WithCache はアイテムキャッシュを設定する。
func WithCache(cache ItemCache) Option {
	return func(c *Client) { c.cache = cache }
}

// WithMetrics はメトリクスの記録先を設定する。
func WithMetrics(m Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithLogger はロガーを設定する。
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient はClientを生成する。
func NewClient(httpClient *http.Client, tokens *TokenSource, cfg Config, opts ...Option) *Client {
	if cfg.SearchLimit <= 0 {
		cfg.SearchLimit = defaultSearchLimit
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimit)
	}

	c := &Client{
		httpClient: httpClient,
		tokens:     tokens,
		apiURL:     strings.TrimRight(cfg.APIURL, "/"),
		cfg:        cfg,
		limiter:    limiter,
		metrics:    nopMetrics{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type artistObject struct {
	Name string `json:"name"`
}

type trackObject struct {
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	Artists []artistObject `json:"artists"`
}

func (t *trackObject) toItem() model.CatalogItem {
	item := model.CatalogItem{ID: t.ID, Name: t.Name, Type: model.ItemTypeTrack}
	if len(t.Artists) > 0 {
		item.Artist = t.Artists[0].Name
	}
	return item
}

type playlistObject struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (p *playlistObject) toItem() model.CatalogItem {
	return model.CatalogItem{ID: p.ID, Name: p.Name, Type: model.ItemTypePlaylist}
}

// searchResponse は /v1/search のレスポンスのうち使用する部分。
// プレイリストのitemsにはnullが含まれることがある。
type searchResponse struct {
	Tracks *struct {
		Items []*trackObject `json:"items"`
	} `json:"tracks"`
	Playlists *struct {
		Items []*playlistObject `json:"items"`
	} `json:"playlists"`
}

// Search は楽曲・プレイリストを検索する。
// itemTypeは "track"、"playlist"、"track,playlist" のいずれかで、空の場合は両方を検索する。
func (c *Client) Search(ctx context.Context, query, itemType string) (*model.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, model.NewEmptyQueryError()
	}
	types, err := parseSearchTypes(itemType)
	if err != nil {
		return nil, err
	}

	params := url.Values{
		"q":     {query},
		"type":  {types},
		"limit": {strconv.Itoa(c.cfg.SearchLimit)},
	}
	var resp searchResponse
	if err := c.get(ctx, "search", "/v1/search", params, &resp); err != nil {
		if errors.Is(err, errUpstreamNotFound) {
			return nil, model.NewCatalogUnavailableError("search endpoint returned 404")
		}
		return nil, err
	}

	result := &model.SearchResult{
		Tracks:    []model.CatalogItem{},
		Playlists: []model.CatalogItem{},
	}
	if resp.Tracks != nil {
		for _, t := range resp.Tracks.Items {
			if t != nil && t.ID != "" {
				result.Tracks = append(result.Tracks, t.toItem())
			}
		}
	}
	if resp.Playlists != nil {
		for _, p := range resp.Playlists.Items {
			if p != nil && p.ID != "" {
				result.Playlists = append(result.Playlists, p.toItem())
			}
		}
	}
	return result, nil
}

// FetchItem はアイテムの詳細を取得する。存在しない場合はCATALOG_ITEM_NOT_FOUNDを返す。
func (c *Client) FetchItem(ctx context.Context, itemID string, itemType model.ItemType) (*model.CatalogItem, error) {
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return nil, model.NewMissingItemError()
	}
	if !itemType.Valid() {
		return nil, model.NewInvalidItemTypeError(string(itemType))
	}

	if cached := c.cached(ctx, itemType, itemID); cached != nil {
		return cached, nil
	}

	var item model.CatalogItem
	var err error
	switch itemType {
	case model.ItemTypeTrack:
		var t trackObject
		err = c.get(ctx, "track", "/v1/tracks/"+url.PathEscape(itemID), nil, &t)
		item = t.toItem()
	case model.ItemTypePlaylist:
		var p playlistObject
		err = c.get(ctx, "playlist", "/v1/playlists/"+url.PathEscape(itemID), nil, &p)
		item = p.toItem()
	}
	if err != nil {
		if errors.Is(err, errUpstreamNotFound) {
			return nil, model.NewCatalogItemNotFoundError(string(itemType), itemID)
		}
		return nil, err
	}
	if item.ID == "" {
		item.ID = itemID
	}

	if c.cache != nil && c.cfg.CacheTTL > 0 {
		if err := c.cache.Set(ctx, &item, c.cfg.CacheTTL); err != nil {
			c.logger.Warn("カタログアイテムのキャッシュ保存に失敗しました",
				slog.String("item_id", itemID),
				slog.String("error", err.Error()),
			)
		}
	}
	return &item, nil
}

// cached はキャッシュからアイテムを取得する。キャッシュの障害はミスとして扱う。
func (c *Client) cached(ctx context.Context, itemType model.ItemType, itemID string) *model.CatalogItem {
	if c.cache == nil {
		return nil
	}
	item, err := c.cache.Get(ctx, itemType, itemID)
	if err != nil {
		c.logger.Warn("カタログアイテムのキャッシュ取得に失敗しました",
			slog.String("item_id", itemID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	c.metrics.RecordCatalogCacheLookup(item != nil)
	return item
}

// get は認証付きGETリクエストを送信し、200の場合はoutにデコードする。
// 401の場合はトークンを破棄して1回だけ再試行する。
func (c *Client) get(ctx context.Context, endpoint, path string, params url.Values, out any) error {
	for attempt := 1; ; attempt++ {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return err
		}

		status, err := c.send(ctx, endpoint, path, params, token, out)
		if err != nil {
			return err
		}
		if status != http.StatusUnauthorized {
			return nil
		}

		c.tokens.Invalidate(token)
		if attempt >= 2 {
			return model.NewCatalogAuthFailedError("unauthorized after token refresh")
		}
		c.logger.Info("カタログAPIが401を返したためトークンを再取得します",
			slog.String("endpoint", endpoint),
		)
	}
}

func (c *Client) send(ctx context.Context, endpoint, path string, params url.Values, token string, out any) (int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, model.NewCatalogUnavailableError(fmt.Sprintf("rate limiter: %v", err))
	}

	reqURL := c.apiURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return 0, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			// 呼び出し元のキャンセルは上流の障害として扱わない
			return 0, ctx.Err()
		}
		c.metrics.RecordCatalogRequest(endpoint, 0, time.Since(start))
		c.logger.Error("カタログAPIの呼び出しに失敗しました",
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()),
		)
		return 0, model.NewCatalogUnavailableError(endpoint + " request failed")
	}
	defer resp.Body.Close()
	c.metrics.RecordCatalogRequest(endpoint, resp.StatusCode, time.Since(start))

	switch {
	case resp.StatusCode == http.StatusOK:
		if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(out); err != nil {
			c.logger.Error("カタログAPIのレスポンスのパースに失敗しました",
				slog.String("endpoint", endpoint),
				slog.String("error", err.Error()),
			)
			return resp.StatusCode, model.NewCatalogUnavailableError("malformed response")
		}
		return resp.StatusCode, nil
	case resp.StatusCode == http.StatusUnauthorized:
		return resp.StatusCode, nil
	case resp.StatusCode == http.StatusNotFound:
		return resp.StatusCode, errUpstreamNotFound
	case resp.StatusCode == http.StatusForbidden:
		return resp.StatusCode, model.NewCatalogAuthFailedError("forbidden")
	default:
		c.logger.Error("カタログAPIがエラーステータスを返しました",
			slog.String("endpoint", endpoint),
			slog.Int("http_status", resp.StatusCode),
		)
		return resp.StatusCode, model.NewCatalogUnavailableError(fmt.Sprintf("%s returned %d", endpoint, resp.StatusCode))
	}
}

// parseSearchTypes は検索種別を検証し、APIのtypeパラメータ形式で返す。
func parseSearchTypes(itemType string) (string, error) {
	itemType = strings.TrimSpace(itemType)
	if itemType == "" {
		return "track,playlist", nil
	}
	var types []string
	seen := map[model.ItemType]bool{}
	for _, part := range strings.Split(itemType, ",") {
		t := model.ItemType(strings.ToLower(strings.TrimSpace(part)))
		if !t.Valid() {
			return "", model.NewInvalidItemTypeError(itemType)
		}
		if !seen[t] {
			seen[t] = true
			types = append(types, string(t))
		}
	}
	return strings.Join(types, ","), nil
}

