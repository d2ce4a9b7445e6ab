// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// セッションコントローラーやワーカーから利用する。
type MetricsCollector interface {
	RecordSessionOpened(gameTitle string)
	RecordTermination(cause string)
	RecordTriggerIgnored(event string)
	RecordTransportFailure(op string)
	RecordFallback(op string, success bool)
	RecordStoreError(op string)
	RecordRating(rating int)
	SetRemainingSeconds(seconds int)
	RecordStaleSessionsClosed(count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	sessionsOpened     *prometheus.CounterVec
	terminations       *prometheus.CounterVec
	triggersIgnored    *prometheus.CounterVec
	transportFailures  *prometheus.CounterVec
	fallbacks          *prometheus.CounterVec
	storeErrors        *prometheus.CounterVec
	ratings            prometheus.Histogram
	remainingSeconds   prometheus.Gauge
	staleSessionsClose prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		sessionsOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arcadekiosk_sessions_opened_total",
			Help: "開始したプレイセッションの合計数",
		}, []string{"game_title"}),
		terminations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arcadekiosk_session_terminations_total",
			Help: "終了要因別のセッション終了数",
		}, []string{"cause"}),
		triggersIgnored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arcadekiosk_triggers_ignored_total",
			Help: "終了処理中のため無視されたトリガー数",
		}, []string{"event"}),
		transportFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arcadekiosk_launcher_failures_total",
			Help: "ランチャーへのコマンド送信失敗数",
		}, []string{"op"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arcadekiosk_fallback_invocations_total",
			Help: "フォールバック経路の実行数",
		}, []string{"op", "result"}),
		storeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arcadekiosk_store_errors_total",
			Help: "ストア操作の失敗数",
		}, []string{"op"}),
		ratings: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "arcadekiosk_ratings",
			Help:    "記録された評価値の分布",
			Buckets: []float64{1, 2, 3, 4, 5},
		}),
		remainingSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arcadekiosk_countdown_remaining_seconds",
			Help: "実行中セッションの残り秒数",
		}),
		staleSessionsClose: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arcadekiosk_stale_sessions_closed_total",
			Help: "放置セッションとして自動完了した数",
		}),
	}

	reg.MustRegister(
		c.sessionsOpened,
		c.terminations,
		c.triggersIgnored,
		c.transportFailures,
		c.fallbacks,
		c.storeErrors,
		c.ratings,
		c.remainingSeconds,
		c.staleSessionsClose,
	)

	return c
}

// RecordSessionOpened はセッション開始を記録する。
func (c *Collector) RecordSessionOpened(gameTitle string) {
	c.sessionsOpened.WithLabelValues(gameTitle).Inc()
}

// RecordTermination はセッション終了を要因別に記録する。
func (c *Collector) RecordTermination(cause string) {
	c.terminations.WithLabelValues(cause).Inc()
}

// RecordTriggerIgnored は無視されたトリガーを記録する。
func (c *Collector) RecordTriggerIgnored(event string) {
	c.triggersIgnored.WithLabelValues(event).Inc()
}

// RecordTransportFailure はランチャーへの送信失敗を記録する。
func (c *Collector) RecordTransportFailure(op string) {
	c.transportFailures.WithLabelValues(op).Inc()
}

// RecordFallback はフォールバック経路の実行結果を記録する。
func (c *Collector) RecordFallback(op string, success bool) {
	c.fallbacks.WithLabelValues(op, strconv.FormatBool(success)).Inc()
}

// RecordStoreError はストア操作の失敗を記録する。
func (c *Collector) RecordStoreError(op string) {
	c.storeErrors.WithLabelValues(op).Inc()
}

// RecordRating は評価値を記録する。
func (c *Collector) RecordRating(rating int) {
	c.ratings.Observe(float64(rating))
}

// SetRemainingSeconds は残り秒数を更新する。
func (c *Collector) SetRemainingSeconds(seconds int) {
	c.remainingSeconds.Set(float64(seconds))
}

// RecordStaleSessionsClosed は自動完了したセッション数を加算する。
func (c *Collector) RecordStaleSessionsClosed(count int64) {
	c.staleSessionsClose.Add(float64(count))
}

// NopCollector は何も記録しないMetricsCollector。
type NopCollector struct{}

func (NopCollector) RecordSessionOpened(string) {}
func (NopCollector) RecordTermination(string) {}
func (NopCollector) RecordTriggerIgnored(string) {}
func (NopCollector) RecordTransportFailure(string) {}
func (NopCollector) RecordFallback(string, bool) {}
func (NopCollector) RecordStoreError(string) {}
func (NopCollector) RecordRating(int) {}
func (NopCollector) SetRemainingSeconds(int) {}
func (NopCollector) RecordStaleSessionsClosed(int64) {}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = NopCollector{}
)

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
