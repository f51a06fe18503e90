// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// HTTPミドルウェア、カタログクライアント、アウトボックス中継から利用する。
type MetricsCollector interface {
	RecordHTTPRequest(method, route string, statusCode int, duration time.Duration)
	RecordInteraction(operation, result string)
	RecordCatalogRequest(endpoint string, statusCode int, duration time.Duration)
	RecordCatalogTokenFetch(success bool)
	RecordCatalogCacheLookup(hit bool)
	RecordOutboxPublished(count int)
	RecordOutboxFailure()
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpRequests    *prometheus.CounterVec
	httpLatency     *prometheus.HistogramVec
	interactions    *prometheus.CounterVec
	catalogRequests *prometheus.CounterVec
	catalogLatency  *prometheus.HistogramVec
	tokenFetches    *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	outboxPublished prometheus.Counter
	outboxFailures  prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "muse_http_requests_total",
			Help: "ルート・ステータスコード別のHTTPリクエスト数",
		}, []string{"method", "route", "status_code"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "muse_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		interactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "muse_interactions_total",
			Help: "操作・結果別のインタラクション（フォロー、いいね、コメント、投稿）の数",
		}, []string{"operation", "result"}),
		catalogRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "muse_catalog_requests_total",
			Help: "外部カタログAPIへのリクエスト数",
		}, []string{"endpoint", "status_code"}),
		catalogLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "muse_catalog_request_duration_seconds",
			Help:    "外部カタログAPIのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		tokenFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "muse_catalog_token_fetch_total",
			Help: "アクセストークン取得の結果別の回数",
		}, []string{"result"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "muse_catalog_cache_lookups_total",
			Help: "カタログアイテムキャッシュの参照結果",
		}, []string{"result"}),
		outboxPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "muse_outbox_published_total",
			Help: "配信されたアウトボックスイベントの合計数",
		}),
		outboxFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "muse_outbox_failures_total",
			Help: "アウトボックス配信失敗の合計数",
		}),
	}

	reg.MustRegister(
		c.httpRequests,
		c.httpLatency,
		c.interactions,
		c.catalogRequests,
		c.catalogLatency,
		c.tokenFetches,
		c.cacheLookups,
		c.outboxPublished,
		c.outboxFailures,
	)

	return c
}

// RecordHTTPRequest はHTTPリクエストの結果と処理時間を記録する。
// routeにはchiのルートパターンを渡し、ラベルの種類が増えすぎないようにする。
func (c *Collector) RecordHTTPRequest(method, route string, statusCode int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	c.httpLatency.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordInteraction はインタラクションの操作と結果を記録する。
// resultは "ok" またはエラーコード（例: ALREADY_LIKED）。
func (c *Collector) RecordInteraction(operation, result string) {
	c.interactions.WithLabelValues(operation, result).Inc()
}

// RecordCatalogRequest は外部カタログAPIへのリクエストを記録する。
// statusCodeが0の場合はネットワークエラーを表す。
func (c *Collector) RecordCatalogRequest(endpoint string, statusCode int, duration time.Duration) {
	c.catalogRequests.WithLabelValues(endpoint, strconv.Itoa(statusCode)).Inc()
	c.catalogLatency.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordCatalogTokenFetch はトークン取得の成否を記録する。
func (c *Collector) RecordCatalogTokenFetch(success bool) {
	c.tokenFetches.WithLabelValues(resultLabel(success, "success", "failure")).Inc()
}

// RecordCatalogCacheLookup はキャッシュ参照のヒット・ミスを記録する。
func (c *Collector) RecordCatalogCacheLookup(hit bool) {
	c.cacheLookups.WithLabelValues(resultLabel(hit, "hit", "miss")).Inc()
}

// RecordOutboxPublished は配信したイベント数を記録する。
func (c *Collector) RecordOutboxPublished(count int) {
	c.outboxPublished.Add(float64(count))
}

// RecordOutboxFailure は配信失敗を記録する。
func (c *Collector) RecordOutboxFailure() {
	c.outboxFailures.Inc()
}

func resultLabel(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
