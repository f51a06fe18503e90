package catalog

import (
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/BrieHudson/Capstone-1-Muse/internal/security"
)

// NewHTTPClient はカタログ通信用のHTTPクライアントを生成する。
// 接続先の制限はguardに任せ、トランスポートをOpenTelemetryで計装する。
func NewHTTPClient(guard security.EndpointGuard, timeout time.Duration) *http.Client {
	client := guard.NewClient(timeout)
	client.Transport = otelhttp.NewTransport(client.Transport,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return "catalog " + r.Method + " " + r.URL.Path
		}),
	)
	return client
}
