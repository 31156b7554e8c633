package metrics

import (
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type PresaleMetrics struct {
	purchases   *prometheus.CounterVec
	phaseSold   *prometheus.GaugeVec
	raisedUSD   prometheus.Gauge
	outstanding prometheus.Gauge
	paused      prometheus.Gauge
	referrals   prometheus.Counter
}

var (
	presaleOnce     sync.Once
	presaleRegistry *PresaleMetrics

	tokenUnit = new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
	usdUnit   = new(big.Float).SetInt(big.NewInt(1_000_000))
)

func Presale() *PresaleMetrics {
	presaleOnce.Do(func() {
		presaleRegistry = &PresaleMetrics{
			purchases: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "presale_purchases_total",
				Help: "Count of committed presale purchases by payment asset.",
			}, []string{"asset"}),
			phaseSold: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "presale_phase_tokens_sold",
				Help: "Whole tokens sold per presale phase.",
			}, []string{"phase"}),
			raisedUSD: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "presale_raised_usd",
				Help: "Total USD raised across all phases.",
			}),
			outstanding: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "presale_outstanding_tokens",
				Help: "Whole tokens sold or owed as referral rewards and not yet claimed.",
			}),
			paused: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "presale_paused",
				Help: "1 when the presale is emergency paused.",
			}),
			referrals: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "presale_referral_purchases_total",
				Help: "Count of purchases that credited a referrer.",
			}),
		}
		prometheus.MustRegister(
			presaleRegistry.purchases,
			presaleRegistry.phaseSold,
			presaleRegistry.raisedUSD,
			presaleRegistry.outstanding,
			presaleRegistry.paused,
			presaleRegistry.referrals,
		)
	})
	return presaleRegistry
}

func (m *PresaleMetrics) ObservePurchase(asset string, referred bool) {
	if m == nil {
		return
	}
	asset = strings.ToUpper(strings.TrimSpace(asset))
	if asset == "" {
		asset = "UNKNOWN"
	}
	m.purchases.WithLabelValues(asset).Inc()
	if referred {
		m.referrals.Inc()
	}
}

func (m *PresaleMetrics) SetPhaseSold(phase uint64, sold *big.Int) {
	if m == nil {
		return
	}
	m.phaseSold.WithLabelValues(fmt.Sprintf("%d", phase)).Set(ratio(sold, tokenUnit))
}

// SetTotals refreshes the sale-wide gauges from a stats snapshot.
func (m *PresaleMetrics) SetTotals(raisedUSD, outstanding *big.Int, paused bool) {
	if m == nil {
		return
	}
	m.raisedUSD.Set(ratio(raisedUSD, usdUnit))
	m.outstanding.Set(ratio(outstanding, tokenUnit))
	if paused {
		m.paused.Set(1)
		return
	}
	m.paused.Set(0)
}

func (m *PresaleMetrics) InitPhase(phase uint64) {
	if m == nil {
		return
	}
	m.phaseSold.WithLabelValues(fmt.Sprintf("%d", phase)).Set(0)
}

func ratio(value *big.Int, unit *big.Float) float64 {
	if value == nil {
		return 0
	}
	out, _ := new(big.Float).Quo(new(big.Float).SetInt(value), unit).Float64()
	return out
}
