package observability

import (
	"fmt"
	"math"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type moduleMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	ledgerMetricsOnce sync.Once
	ledgerRegistry    *LedgerMetrics

	oracleMetricsOnce sync.Once
	oracleRegistry    *OracleMetrics
)

// ModuleMetrics returns the lazily-initialised module metrics registry used to
// record RPC module activity.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "launchpad",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Total JSON-RPC requests segmented by module and method.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "launchpad",
				Subsystem: "rpc",
				Name:      "errors_total",
				Help:      "Total JSON-RPC errors segmented by module, method, and error code.",
			}, []string{"module", "method", "code"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "launchpad",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "launchpad",
				Subsystem: "rpc",
				Name:      "throttles_total",
				Help:      "Count of requests rejected due to throttling policies.",
			}, []string{"module", "reason"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
			moduleRegistry.throttles,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of a module request. A zero code means the
// request succeeded; otherwise it is the JSON-RPC error code returned.
func (m *moduleMetrics) Observe(module, method string, code int, duration time.Duration) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if code != 0 {
		outcome = "error"
		m.errors.WithLabelValues(module, method, fmt.Sprintf("%d", code)).Inc()
	}
	m.requests.WithLabelValues(module, method, outcome).Inc()
	m.latency.WithLabelValues(module, method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter for the supplied module and
// reason. Reasons should be stable strings such as "rate_limit" so dashboards
// and alerts remain consistent.
func (m *moduleMetrics) RecordThrottle(module, reason string) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(module, reason).Inc()
}

// LedgerMetrics tracks transaction execution on the node.
type LedgerMetrics struct {
	applied *prometheus.CounterVec
	latency *prometheus.HistogramVec
	height  prometheus.Gauge
}

// Ledger returns the singleton metrics registry for transaction execution.
func Ledger() *LedgerMetrics {
	ledgerMetricsOnce.Do(func() {
		ledgerRegistry = &LedgerMetrics{
			applied: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "launchpad",
				Subsystem: "ledger",
				Name:      "transactions_total",
				Help:      "Count of executed transactions segmented by type and outcome.",
			}, []string{"type", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "launchpad",
				Subsystem: "ledger",
				Name:      "apply_duration_seconds",
				Help:      "Latency distribution for applying and committing a transaction.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"type"}),
			height: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "launchpad",
				Subsystem: "ledger",
				Name:      "height",
				Help:      "Number of committed state transitions.",
			}),
		}
		prometheus.MustRegister(
			ledgerRegistry.applied,
			ledgerRegistry.latency,
			ledgerRegistry.height,
		)
	})
	return ledgerRegistry
}

// Observe records the execution of a single transaction.
func (m *LedgerMetrics) Observe(txType string, height uint64, duration time.Duration, err error) {
	if m == nil {
		return
	}
	txType = strings.TrimSpace(txType)
	if txType == "" {
		txType = "unknown"
	}
	outcome := "success"
	if err != nil {
		outcome = "reverted"
	}
	m.applied.WithLabelValues(txType, outcome).Inc()
	m.latency.WithLabelValues(txType).Observe(duration.Seconds())
	m.height.Set(float64(height))
}

// OracleMetrics bundles collectors for price feed freshness.
type OracleMetrics struct {
	price     *prometheus.GaugeVec
	freshness *prometheus.GaugeVec
}

// Oracle returns the metrics registry for the price feed.
func Oracle() *OracleMetrics {
	oracleMetricsOnce.Do(func() {
		oracleRegistry = &OracleMetrics{
			price: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "launchpad",
				Subsystem: "oracle",
				Name:      "price_usd",
				Help:      "Latest USD price reported for a payment asset.",
			}, []string{"asset"}),
			freshness: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "launchpad",
				Subsystem: "oracle",
				Name:      "price_age_seconds",
				Help:      "Age in seconds of the latest reported price at the last purchase.",
			}, []string{"asset"}),
		}
		prometheus.MustRegister(oracleRegistry.price, oracleRegistry.freshness)
	})
	return oracleRegistry
}

// RecordPrice updates the price gauge with a 6-decimal USD amount.
func (m *OracleMetrics) RecordPrice(asset string, price *big.Int) {
	if m == nil {
		return
	}
	m.price.WithLabelValues(labelAsset(asset)).Set(scaleDown(price, 6))
}

// RecordFreshness records how stale the price was when it was last read.
func (m *OracleMetrics) RecordFreshness(asset string, age time.Duration) {
	if m == nil {
		return
	}
	m.freshness.WithLabelValues(labelAsset(asset)).Set(age.Seconds())
}

func labelAsset(asset string) string {
	trimmed := strings.TrimSpace(asset)
	if trimmed == "" {
		return "UNKNOWN"
	}
	return strings.ToUpper(trimmed)
}

// scaleDown converts a fixed-point integer into a float with the given number
// of decimals. Gauges only need approximate values.
func scaleDown(value *big.Int, decimals int) float64 {
	if value == nil {
		return 0
	}
	scale := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	floatVal, _ := new(big.Float).Quo(new(big.Float).SetInt(value), scale).Float64()
	// Guard against NaN/Inf when conversion fails.
	if math.IsNaN(floatVal) || math.IsInf(floatVal, 0) {
		return 0
	}
	return floatVal
}
