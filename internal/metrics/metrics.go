// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ログイン結果のラベル値。
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 認証ハンドラーやアカウントサービス、HTTPミドルウェアから利用する。
type MetricsCollector interface {
	RecordLogin(strategy, result string)
	RecordSerializeFailure()
	RecordAccountCreated(provider string)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	login           *prometheus.CounterVec
	serializeFail   prometheus.Counter
	accountsCreated *prometheus.CounterVec
	httpStatus      *prometheus.CounterVec
	requestLatency  prometheus.Histogram
}

var _ MetricsCollector = (*Collector)(nil)

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		login: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "teamspace_login_total",
			Help: "認証ストラテジー別・結果別のログイン試行数",
		}, []string{"strategy", "result"}),
		serializeFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "teamspace_session_serialize_fail_total",
			Help: "セッションへのシリアライズ失敗の合計数",
		}),
		accountsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "teamspace_accounts_created_total",
			Help: "プロバイダー別の新規アカウント作成数",
		}, []string{"provider"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "teamspace_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "teamspace_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.login,
		c.serializeFail,
		c.accountsCreated,
		c.httpStatus,
		c.requestLatency,
	)

	return c
}

// RecordLogin はログイン試行を記録する。
func (c *Collector) RecordLogin(strategy, result string) {
	c.login.WithLabelValues(strategy, result).Inc()
}

// RecordSerializeFailure はセッションへのシリアライズ失敗を記録する。
func (c *Collector) RecordSerializeFailure() {
	c.serializeFail.Inc()
}

// RecordAccountCreated は新規アカウント作成を記録する。
func (c *Collector) RecordAccountCreated(provider string) {
	c.accountsCreated.WithLabelValues(provider).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はHTTPリクエストの処理時間を記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// NopCollector は何も記録しないMetricsCollector。
// メトリクスを必要としないテストやコマンドで使用する。
type NopCollector struct{}

func (NopCollector) RecordLogin(string, string) {}
func (NopCollector) RecordSerializeFailure() {}
func (NopCollector) RecordAccountCreated(string) {}
func (NopCollector) RecordHTTPStatus(int) {}
func (NopCollector) RecordRequestLatency(time.Duration) {}
