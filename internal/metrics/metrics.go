// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ワーカーとコマンドルーターから利用する。
type MetricsCollector interface {
	RecordSweep(duration time.Duration)
	RecordSweepSkipped()
	RecordFetchFailure(reason string)
	RecordNotificationSent()
	RecordNotificationFailure()
	RecordCommand(kind string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	sweeps        prometheus.Counter
	sweepsSkipped prometheus.Counter
	sweepLatency  prometheus.Histogram
	fetchFail     *prometheus.CounterVec
	notifySent    prometheus.Counter
	notifyFail    prometheus.Counter
	commands      *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		sweeps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feedbell_sweeps_total",
			Help: "完了したスイープの合計数",
		}),
		sweepsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feedbell_sweeps_skipped_total",
			Help: "前回スイープ実行中のためスキップされたティックの合計数",
		}),
		sweepLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "feedbell_sweep_latency_seconds",
			Help:    "1スイープの所要時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		fetchFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feedbell_fetch_fail_total",
			Help: "フィードフェッチ失敗の合計数（原因別）",
		}, []string{"reason"}),
		notifySent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feedbell_notifications_sent_total",
			Help: "配信に成功した通知の合計数",
		}),
		notifyFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feedbell_notifications_fail_total",
			Help: "配信に失敗した通知の合計数",
		}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feedbell_commands_total",
			Help: "処理したコマンドの合計数（種別別）",
		}, []string{"kind"}),
	}

	reg.MustRegister(
		c.sweeps,
		c.sweepsSkipped,
		c.sweepLatency,
		c.fetchFail,
		c.notifySent,
		c.notifyFail,
		c.commands,
	)

	return c
}

// RecordSweep はスイープ1回の完了と所要時間を記録する。
func (c *Collector) RecordSweep(duration time.Duration) {
	c.sweeps.Inc()
	c.sweepLatency.Observe(duration.Seconds())
}

// RecordSweepSkipped はスイープ実行中に落とされたティックを記録する。
func (c *Collector) RecordSweepSkipped() {
	c.sweepsSkipped.Inc()
}

// RecordFetchFailure はフィードフェッチ失敗を原因別に記録する。
func (c *Collector) RecordFetchFailure(reason string) {
	c.fetchFail.WithLabelValues(reason).Inc()
}

// RecordNotificationSent は通知配信成功を記録する。
func (c *Collector) RecordNotificationSent() {
	c.notifySent.Inc()
}

// RecordNotificationFailure は通知配信失敗を記録する。
func (c *Collector) RecordNotificationFailure() {
	c.notifyFail.Inc()
}

// RecordCommand は処理したコマンドを種別別に記録する。
func (c *Collector) RecordCommand(kind string) {
	c.commands.WithLabelValues(kind).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
