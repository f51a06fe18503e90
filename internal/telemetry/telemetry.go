// Package telemetry はOpenTelemetryによる分散トレースの初期化を行う。
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// ShutdownFunc はバッファ済みのスパンを送出してエクスポーターを停止する。
type ShutdownFunc func(ctx context.Context) error

// Config はトレース送信の設定。
type Config struct {
	// Endpoint はOTLP/HTTPの送信先。空の場合トレースは無効になる。
	// "host:port" 形式の場合は平文HTTPで送信する。
	Endpoint    string
	ServiceName string
	// SampleRatio はルートスパンのサンプリング率（0〜1）。範囲外は1として扱う。
	SampleRatio float64
}

// Setup はグローバルなTracerProviderとプロパゲーターを設定する。
// Endpointが空の場合は何も設定せず、何もしないShutdownFuncを返す。
func Setup(ctx context.Context, cfg Config) (ShutdownFunc, error) {
	if cfg.Endpoint == "" {
		slog.Info("トレース送信は無効です（OTEL_EXPORTER_OTLP_ENDPOINT未設定）")
		return func(context.Context) error { return nil }, nil
	}

	var opts []otlptracehttp.Option
	if strings.Contains(cfg.Endpoint, "://") {
		opts = append(opts, otlptracehttp.WithEndpointURL(cfg.Endpoint))
	} else {
		opts = append(opts, otlptracehttp.WithEndpoint(cfg.Endpoint), otlptracehttp.WithInsecure())
	}
	exp, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("OTLPエクスポーターの生成に失敗しました: %w", err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceName),
	))
	if err != nil {
		return nil, fmt.Errorf("リソースの生成に失敗しました: %w", err)
	}

	ratio := cfg.SampleRatio
	if ratio <= 0 || ratio > 1 {
		ratio = 1
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))

	slog.Info("トレース送信を開始しました",
		slog.String("endpoint", cfg.Endpoint),
		slog.String("service", cfg.ServiceName),
	)
	return tp.Shutdown, nil
}

// WrapHandler はHTTPハンドラーをサーバースパンで計装する。
// グローバルなTracerProviderが未設定の場合、スパンは記録されない。
func WrapHandler(h http.Handler, operation string) http.Handler {
	return otelhttp.NewHandler(h, operation)
}
