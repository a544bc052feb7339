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
// APIクライアントとページング層から利用する。
type MetricsCollector interface {
	RecordHTTPStatus(statusCode int)
	RecordAPILatency(duration time.Duration)
	RecordTokenRefresh(success bool)
	RecordMediatorLoad(loadType string, result string)
	RecordItemsUpserted(count int)
}

// メディエーターのロード結果ラベル
const (
	ResultSuccess   = "success"
	ResultEndOfData = "end_of_data"
	ResultError     = "error"
)

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpStatus    *prometheus.CounterVec
	apiLatency    prometheus.Histogram
	tokenRefresh  *prometheus.CounterVec
	mediatorLoads *prometheus.CounterVec
	itemsUpserted prometheus.Counter
}

var _ MetricsCollector = (*Collector)(nil)

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dailyq_api_http_status_total",
			Help: "APIレスポンスのHTTPステータスコード別の件数",
		}, []string{"status_code"}),
		apiLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dailyq_api_latency_seconds",
			Help:    "API呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		tokenRefresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dailyq_token_refresh_total",
			Help: "トークン更新APIの呼び出し回数",
		}, []string{"result"}),
		mediatorLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dailyq_mediator_loads_total",
			Help: "リモートメディエーターのロード種別・結果別の件数",
		}, []string{"load_type", "result"}),
		itemsUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dailyq_items_upserted_total",
			Help: "ローカルキャッシュにアップサートされた件数",
		}),
	}

	reg.MustRegister(
		c.httpStatus,
		c.apiLatency,
		c.tokenRefresh,
		c.mediatorLoads,
		c.itemsUpserted,
	)

	return c
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordAPILatency はAPI呼び出しのレイテンシを記録する。
func (c *Collector) RecordAPILatency(duration time.Duration) {
	c.apiLatency.Observe(duration.Seconds())
}

// RecordTokenRefresh はトークン更新の成否を記録する。
func (c *Collector) RecordTokenRefresh(success bool) {
	result := ResultSuccess
	if !success {
		result = ResultError
	}
	c.tokenRefresh.WithLabelValues(result).Inc()
}

// RecordMediatorLoad はメディエーターのロード結果を記録する。
func (c *Collector) RecordMediatorLoad(loadType string, result string) {
	c.mediatorLoads.WithLabelValues(loadType, result).Inc()
}

// RecordItemsUpserted はアップサートされた件数を記録する。
func (c *Collector) RecordItemsUpserted(count int) {
	c.itemsUpserted.Add(float64(count))
}

// Nop は何も記録しないMetricsCollector。メトリクス不要な構成とテストで使う。
type Nop struct{}

func (Nop) RecordHTTPStatus(int)              {}
func (Nop) RecordAPILatency(time.Duration)    {}
func (Nop) RecordTokenRefresh(bool)           {}
func (Nop) RecordMediatorLoad(string, string) {}
func (Nop) RecordItemsUpserted(int)           {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
