package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/BrieHudson/Capstone-1-Muse/internal/model"
)

// tokenSkew は有効期限の直前に失効扱いにする余裕時間。
const tokenSkew = 30 * time.Second

// expires_inが返されなかった場合の有効期間。期限前の失効は401時の再取得で扱う。
const defaultTokenLifetime = time.Hour

// tokenResponse はclient credentialsフローのトークンレスポンス。
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// TokenSource はclient credentialsフローで取得したアクセストークンを保持する。
// 期限内のトークンは再利用し、同時に発生した再取得は1回のリクエストにまとめる。
type TokenSource struct {
	httpClient   *http.Client
	tokenURL     string
	clientID     string
	clientSecret string
	metrics      Metrics
	logger       *slog.Logger
	now          func() time.Time

	mu    sync.Mutex
	token *model.CatalogToken
	group singleflight.Group
}

// NewTokenSource はTokenSourceを生成する。accountsURLは末尾スラッシュなしのベースURL。
func NewTokenSource(httpClient *http.Client, accountsURL, clientID, clientSecret string, metrics Metrics, logger *slog.Logger) *TokenSource {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TokenSource{
		httpClient:   httpClient,
		tokenURL:     strings.TrimRight(accountsURL, "/") + "/api/token",
		clientID:     clientID,
		clientSecret: clientSecret,
		metrics:      metrics,
		logger:       logger,
		now:          time.Now,
	}
}

// Token は有効なアクセストークンを返す。未取得または期限切れの場合のみ再取得する。
func (s *TokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	tok := s.token
	s.mu.Unlock()
	if tok.Valid(s.now(), tokenSkew) {
		return tok.AccessToken, nil
	}

	// 交換は呼び出し元のキャンセルから切り離し、待機中の他の呼び出しを巻き込まない。
	// 所要時間はHTTPクライアントのタイムアウトで制限される。
	ch := s.group.DoChan("token", func() (any, error) {
		// 待機中に他の呼び出しが取得済みであれば再利用する
		s.mu.Lock()
		cur := s.token
		s.mu.Unlock()
		if cur.Valid(s.now(), tokenSkew) {
			return cur, nil
		}

		fresh, err := s.fetch(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.token = fresh
		s.mu.Unlock()
		return fresh, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(*model.CatalogToken).AccessToken, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Invalidate はキャッシュ中のトークンがstaleと一致する場合のみ破棄する。
// 別の呼び出しが既に更新したトークンは残す。
func (s *TokenSource) Invalidate(stale string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != nil && s.token.AccessToken == stale {
		s.token = nil
	}
}

func (s *TokenSource) fetch(ctx context.Context) (*model.CatalogToken, error) {
	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {s.clientID},
		"client_secret": {s.clientSecret},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.metrics.RecordCatalogTokenFetch(false)
		s.logger.Error("カタログのトークン取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, model.NewCatalogUnavailableError("token endpoint unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.metrics.RecordCatalogTokenFetch(false)
		// 応答本文にはクライアント情報が含まれ得るためステータスのみ記録する
		s.logger.Error("カタログのトークンエンドポイントがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
		)
		if resp.StatusCode >= 500 {
			return nil, model.NewCatalogUnavailableError(fmt.Sprintf("token endpoint returned %d", resp.StatusCode))
		}
		return nil, model.NewCatalogAuthFailedError(fmt.Sprintf("token endpoint returned %d", resp.StatusCode))
	}

	var body tokenResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil || body.AccessToken == "" {
		s.metrics.RecordCatalogTokenFetch(false)
		return nil, model.NewCatalogAuthFailedError("malformed token response")
	}

	s.metrics.RecordCatalogTokenFetch(true)
	s.logger.Debug("カタログのトークンを取得しました",
		slog.Int("expires_in", body.ExpiresIn),
	)
	lifetime := time.Duration(body.ExpiresIn) * time.Second
	if lifetime <= 0 {
		lifetime = defaultTokenLifetime
	}
	return &model.CatalogToken{
		AccessToken: body.AccessToken,
		ExpiresAt:   s.now().Add(lifetime),
	}, nil
}
