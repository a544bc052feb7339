package api

import (
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/hitoshi/dailyq/internal/metrics"
)

// RequestIDHeader はAPIリクエストごとに付与するリクエストIDのヘッダ名。
const RequestIDHeader = "X-Request-Id"

// TransportConfig はAPIクライアントのRoundTripperチェーンの設定。
type TransportConfig struct {
	Base              http.RoundTripper // nilの場合はタイムアウト設定付きのhttp.Transport
	ConnectTimeout    time.Duration
	ReadTimeout       time.Duration
	RateLimit         float64 // req/sec。0以下で無制限
	RateBurst         int
	LogEndpointSuffix string
	Tokens            interface {
		AccessTokenSource
		TokenStore
	}
	Refresher TokenRefresher
	Logger    *slog.Logger
	Metrics   metrics.MetricsCollector
}

// NewTransport はAPI呼び出し用のRoundTripperチェーンを構築する。
// 外側から順に: エンドポイントログ(app) → トークン付与 → トークン更新 → HTTPキャッシュ(質問詳細のみ) →
// エンドポイントログ(network) → リクエストID → レート制限 → メトリクス → ベース。
func NewTransport(cfg TransportConfig) http.RoundTripper {
	base := cfg.Base
	if base == nil {
		base = newBaseTransport(cfg.ConnectTimeout, cfg.ReadTimeout)
	}
	m := cfg.Metrics
	if m == nil {
		m = metrics.Nop{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	var rt http.RoundTripper = &metricsTransport{next: base, metrics: m}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		rt = &rateLimitTransport{next: rt, limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)}
	}
	rt = &requestIDTransport{next: rt}
	rt = &endpointLogger{next: rt, name: "network", suffix: cfg.LogEndpointSuffix, logger: cfg.Logger}
	rt = newConditionalCache(rt, isQuestionDetail)
	rt = &refreshCoordinator{next: rt, store: cfg.Tokens, refresher: cfg.Refresher, logger: cfg.Logger, metrics: m}
	rt = &authDecorator{next: rt, tokens: cfg.Tokens}
	rt = &endpointLogger{next: rt, name: "app", suffix: cfg.LogEndpointSuffix, logger: cfg.Logger}
	return rt
}

func newBaseTransport(connectTimeout, readTimeout time.Duration) *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.DialContext = (&net.Dialer{
		Timeout:   connectTimeout,
		KeepAlive: 30 * time.Second,
	}).DialContext
	t.ResponseHeaderTimeout = readTimeout
	return t
}

// requestIDTransport はリクエストIDを付与する。呼び出し元が設定済みの場合はそれを使う。
type requestIDTransport struct {
	next http.RoundTripper
}

func (t *requestIDTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get(RequestIDHeader) == "" {
		req = req.Clone(req.Context())
		req.Header.Set(RequestIDHeader, uuid.New().String())
	}
	return t.next.RoundTrip(req)
}

// rateLimitTransport はAPIサーバーへの送信レートを制限する。
type rateLimitTransport struct {
	next    http.RoundTripper
	limiter *rate.Limiter
}

func (t *rateLimitTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.next.RoundTrip(req)
}

// metricsTransport はステータスコードとレイテンシを記録する。
type metricsTransport struct {
	next    http.RoundTripper
	metrics metrics.MetricsCollector
}

func (t *metricsTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.next.RoundTrip(req)
	t.metrics.RecordAPILatency(time.Since(start))
	if err == nil {
		t.metrics.RecordHTTPStatus(resp.StatusCode)
	}
	return resp, err
}
