// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hitoshi/campus/internal/gate"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ゲート、フロー、サービス層から利用する。
type MetricsCollector interface {
	RecordGateTransition(from, to gate.State)
	RecordIgnoredNotification()
	RecordAuthOutcome(flow, outcome string)
	RecordProgramWrite(op string)
	RecordHTTPStatus(statusCode int)
	RecordNewsFetch(duration time.Duration, err error)
	SetActiveDevices(n int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	gateTransitions     *prometheus.CounterVec
	ignoredNotification prometheus.Counter
	authOutcomes        *prometheus.CounterVec
	programWrites       *prometheus.CounterVec
	httpStatus          *prometheus.CounterVec
	newsFetchLatency    prometheus.Histogram
	newsFetchFail       prometheus.Counter
	activeDevices       prometheus.Gauge
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		gateTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campus_gate_transitions_total",
			Help: "セッションゲートの状態遷移数",
		}, []string{"from", "to"}),
		ignoredNotification: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "campus_gate_ignored_notifications_total",
			Help: "抑止中に無視したセッション通知の合計数",
		}),
		authOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campus_auth_flow_total",
			Help: "認証フローの結果別の実行数",
		}, []string{"flow", "outcome"}),
		programWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campus_program_writes_total",
			Help: "カリキュラムの書き込み数",
		}, []string{"op"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campus_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		newsFetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "campus_news_fetch_latency_seconds",
			Help:    "お知らせフィード取得のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		newsFetchFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "campus_news_fetch_fail_total",
			Help: "お知らせフィード取得失敗の合計数",
		}),
		activeDevices: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "campus_active_devices",
			Help: "登録中の端末数",
		}),
	}

	reg.MustRegister(
		c.gateTransitions,
		c.ignoredNotification,
		c.authOutcomes,
		c.programWrites,
		c.httpStatus,
		c.newsFetchLatency,
		c.newsFetchFail,
		c.activeDevices,
	)

	return c
}

// RecordGateTransition はゲートの状態遷移を記録する。
func (c *Collector) RecordGateTransition(from, to gate.State) {
	c.gateTransitions.WithLabelValues(string(from), string(to)).Inc()
}

// RecordIgnoredNotification は抑止により無視した通知を記録する。
func (c *Collector) RecordIgnoredNotification() {
	c.ignoredNotification.Inc()
}

// RecordAuthOutcome は認証フローの結果を記録する。
func (c *Collector) RecordAuthOutcome(flow, outcome string) {
	c.authOutcomes.WithLabelValues(flow, outcome).Inc()
}

// RecordProgramWrite はカリキュラムの書き込みを記録する。
func (c *Collector) RecordProgramWrite(op string) {
	c.programWrites.WithLabelValues(op).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordNewsFetch はお知らせフィード取得のレイテンシと失敗を記録する。
func (c *Collector) RecordNewsFetch(duration time.Duration, err error) {
	c.newsFetchLatency.Observe(duration.Seconds())
	if err != nil {
		c.newsFetchFail.Inc()
	}
}

// SetActiveDevices は登録中の端末数を設定する。
func (c *Collector) SetActiveDevices(n int) {
	c.activeDevices.Set(float64(n))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop は何も記録しないMetricsCollector。
type Nop struct{}

func (Nop) RecordGateTransition(gate.State, gate.State) {}
func (Nop) RecordIgnoredNotification()                  {}
func (Nop) RecordAuthOutcome(string, string)            {}
func (Nop) RecordProgramWrite(string)                   {}
func (Nop) RecordHTTPStatus(int)                        {}
func (Nop) RecordNewsFetch(time.Duration, error)        {}
func (Nop) SetActiveDevices(int)                        {}
