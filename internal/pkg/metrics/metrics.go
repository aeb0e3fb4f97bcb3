// Package metrics は予約処理とHTTPのPrometheusメトリクス
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// 予約結果のラベル値
const (
	ResultSuccess      = "success"
	ResultReplayed     = "replayed"
	ResultInsufficient = "insufficient"
	ResultNotBookable  = "not_bookable"
	ResultConflict     = "conflict"
	ResultLockFailed   = "lock_failed"
	ResultError        = "error"
)

// キャンセル元のラベル値
const (
	SourceUser    = "user"
	SourceAdmin   = "admin"
	SourceExpired = "expired"
	SourceDeleted = "deleted"
)

var (
	httpBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	lockBuckets = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1}
)

// Metrics は登録済みのコレクタ一式
// nil レシーバのメソッド呼び出しは何もしない
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec   // method, path, status_code
	HTTPRequestDuration  *prometheus.HistogramVec // method, path
	HTTPRequestsInFlight prometheus.Gauge

	BookingsTotal             *prometheus.CounterVec // result
	BookingCancellationsTotal *prometheus.CounterVec // source
	TicketsReservedTotal      prometheus.Counter
	TicketsReleasedTotal      prometheus.Counter

	// operation: acquire/release, status: success/failed
	DistributedLockDuration *prometheus.HistogramVec
}

// New はデフォルトレジストリに登録する
// 同じプロセスで2回呼ぶと登録が重複して panic するため、テストでは NewWithRegistry を使う
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
	}
	counterVec := func(name, help string, labels ...string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, labels)
	}
	histogramVec := func(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
		return prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: name, Help: help, Buckets: buckets}, labels)
	}

	m := &Metrics{
		HTTPRequestsTotal: counterVec("http_requests_total",
			"Total number of HTTP requests", "method", "path", "status_code"),
		HTTPRequestDuration: histogramVec("http_request_duration_seconds",
			"HTTP request latency in seconds", httpBuckets, "method", "path"),
		HTTPRequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being served",
		}),
		BookingsTotal: counterVec("bookings_total",
			"Total number of booking attempts by result", "result"),
		BookingCancellationsTotal: counterVec("booking_cancellations_total",
			"Total number of cancelled bookings by source", "source"),
		TicketsReservedTotal: counter("tickets_reserved_total",
			"Total number of tickets taken from inventory"),
		TicketsReleasedTotal: counter("tickets_released_total",
			"Total number of tickets returned to inventory"),
		DistributedLockDuration: histogramVec("distributed_lock_duration_seconds",
			"Time spent on distributed lock operations", lockBuckets, "operation", "status"),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.BookingsTotal,
		m.BookingCancellationsTotal,
		m.TicketsReservedTotal,
		m.TicketsReleasedTotal,
		m.DistributedLockDuration,
	)
	return m
}

// ObserveHTTP は1リクエスト分の件数とレイテンシを記録する
// path はルート定義（/api/v1/bookings/:id など）を渡す
func (m *Metrics) ObserveHTTP(method, path string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

// RecordBooking は予約の試行結果を記録する
// 在庫を減らしたのは成功時だけなので、枚数は success のときだけ加算する
func (m *Metrics) RecordBooking(result string, tickets int) {
	if m == nil {
		return
	}
	m.BookingsTotal.WithLabelValues(result).Inc()
	if result == ResultSuccess && tickets > 0 {
		m.TicketsReservedTotal.Add(float64(tickets))
	}
}

// RecordRelease はキャンセル・削除による在庫の返却を記録する
// 削除はキャンセル件数に含めない
func (m *Metrics) RecordRelease(source string, tickets int) {
	if m == nil {
		return
	}
	if source != SourceDeleted {
		m.BookingCancellationsTotal.WithLabelValues(source).Inc()
	}
	if tickets > 0 {
		m.TicketsReleasedTotal.Add(float64(tickets))
	}
}

func (m *Metrics) ObserveLock(operation, status string, seconds float64) {
	if m == nil {
		return
	}
	m.DistributedLockDuration.WithLabelValues(operation, status).Observe(seconds)
}
