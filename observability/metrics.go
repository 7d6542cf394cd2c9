package observability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const marketMeterName = "marketchain/market"

type rpcMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	rpcMetricsOnce sync.Once
	rpcRegistry    *rpcMetrics

	marketMetricsOnce sync.Once
	marketRegistry    *MarketplaceMetrics
)

// RPC returns the lazily-initialised registry used to record JSON-RPC
// activity.
func RPC() *rpcMetrics {
	rpcMetricsOnce.Do(func() {
		rpcRegistry = &rpcMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "marketchain",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Total JSON-RPC requests segmented by method and outcome.",
			}, []string{"method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "marketchain",
				Subsystem: "rpc",
				Name:      "errors_total",
				Help:      "Total JSON-RPC errors segmented by method and error code.",
			}, []string{"method", "code"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "marketchain",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "marketchain",
				Subsystem: "rpc",
				Name:      "throttles_total",
				Help:      "Count of requests rejected due to throttling policies.",
			}, []string{"reason"}),
		}
		prometheus.MustRegister(
			rpcRegistry.requests,
			rpcRegistry.errors,
			rpcRegistry.latency,
			rpcRegistry.throttles,
		)
	})
	return rpcRegistry
}

// Observe records the outcome of a JSON-RPC call. A zero code marks success.
func (m *rpcMetrics) Observe(method string, code int, duration time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if code != 0 {
		outcome = "error"
		m.errors.WithLabelValues(method, fmt.Sprintf("%d", code)).Inc()
	}
	m.requests.WithLabelValues(method, outcome).Inc()
	m.latency.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter. Reasons should be stable
// strings such as "rate_limit" so dashboards and alerts remain consistent.
func (m *rpcMetrics) RecordThrottle(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(reason).Inc()
}

// MarketplaceMetrics tracks transaction application and settlement volume.
// Counts are exported to Prometheus and, once a meter provider is installed,
// through OpenTelemetry as well.
type MarketplaceMetrics struct {
	transactions *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	volume       prometheus.Counter
	fees         prometheus.Counter
	rewards      prometheus.Counter
	listings     prometheus.Gauge

	txCounter         metric.Int64Counter
	settlementCounter metric.Int64Counter
	volumeCounter     metric.Float64Counter
	latencyHistogram  metric.Float64Histogram
}

// Marketplace returns the lazily-initialised marketplace metrics registry.
func Marketplace() *MarketplaceMetrics {
	marketMetricsOnce.Do(func() {
		marketRegistry = newMarketplaceMetrics(otel.GetMeterProvider())
		prometheus.MustRegister(
			marketRegistry.transactions,
			marketRegistry.duration,
			marketRegistry.volume,
			marketRegistry.fees,
			marketRegistry.rewards,
			marketRegistry.listings,
		)
	})
	return marketRegistry
}

func newMarketplaceMetrics(provider metric.MeterProvider) *MarketplaceMetrics {
	m := &MarketplaceMetrics{
		transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketchain",
			Subsystem: "state",
			Name:      "transactions_total",
			Help:      "Applied transactions segmented by type and outcome.",
		}, []string{"type", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "marketchain",
			Subsystem: "state",
			Name:      "transaction_duration_seconds",
			Help:      "Latency distribution for transaction application.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}, []string{"type"}),
		volume: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "marketchain",
			Subsystem: "market",
			Name:      "settled_volume_total",
			Help:      "Sum of prices paid by settled purchases.",
		}),
		fees: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "marketchain",
			Subsystem: "market",
			Name:      "fees_total",
			Help:      "Sum of fees routed to marketplace treasuries.",
		}),
		rewards: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "marketchain",
			Subsystem: "market",
			Name:      "rewards_total",
			Help:      "Sum of reward units minted to takers.",
		}),
		listings: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "marketchain",
			Subsystem: "market",
			Name:      "listings_active",
			Help:      "Listings created minus listings settled since start.",
		}),
	}
	m.initMeter(provider)
	return m
}

func (m *MarketplaceMetrics) initMeter(provider metric.MeterProvider) {
	if provider == nil {
		provider = noop.NewMeterProvider()
	}
	meter := provider.Meter(marketMeterName)
	txCounter, err := meter.Int64Counter("marketchain.state.transactions",
		metric.WithDescription("Applied and rejected transactions."))
	if err != nil {
		meter = noop.NewMeterProvider().Meter(marketMeterName)
		txCounter, _ = meter.Int64Counter("marketchain.state.transactions")
	}
	settlements, err := meter.Int64Counter("marketchain.market.settlements",
		metric.WithDescription("Completed purchases."))
	if err != nil {
		meter = noop.NewMeterProvider().Meter(marketMeterName)
		settlements, _ = meter.Int64Counter("marketchain.market.settlements")
	}
	volume, err := meter.Float64Counter("marketchain.market.settled_volume",
		metric.WithDescription("Sum of prices paid by settled purchases."))
	if err != nil {
		meter = noop.NewMeterProvider().Meter(marketMeterName)
		volume, _ = meter.Float64Counter("marketchain.market.settled_volume")
	}
	latency, err := meter.Float64Histogram("marketchain.state.transaction_duration_ms",
		metric.WithUnit("ms"))
	if err != nil {
		meter = noop.NewMeterProvider().Meter(marketMeterName)
		latency, _ = meter.Float64Histogram("marketchain.state.transaction_duration_ms")
	}
	m.txCounter = txCounter
	m.settlementCounter = settlements
	m.volumeCounter = volume
	m.latencyHistogram = latency
}

// ObserveTransaction records the outcome and latency of one transaction.
func (m *MarketplaceMetrics) ObserveTransaction(txType string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "applied"
	if err != nil {
		outcome = "rejected"
	}
	m.transactions.WithLabelValues(txType, outcome).Inc()
	m.duration.WithLabelValues(txType).Observe(duration.Seconds())
	attrs := metric.WithAttributes(attribute.String("type", txType), attribute.String("outcome", outcome))
	m.txCounter.Add(context.Background(), 1, attrs)
	m.latencyHistogram.Record(context.Background(), float64(duration.Microseconds())/1000, attrs)
}

// RecordListed increments the active listing gauge.
func (m *MarketplaceMetrics) RecordListed() {
	if m == nil {
		return
	}
	m.listings.Inc()
}

// RecordCancelled decrements the active listing gauge.
func (m *MarketplaceMetrics) RecordCancelled() {
	if m == nil {
		return
	}
	m.listings.Dec()
}

// RecordSettlement accounts a completed purchase.
func (m *MarketplaceMetrics) RecordSettlement(price, fee, reward uint64) {
	if m == nil {
		return
	}
	m.listings.Dec()
	m.volume.Add(float64(price))
	m.fees.Add(float64(fee))
	m.rewards.Add(float64(reward))
	m.settlementCounter.Add(context.Background(), 1)
	m.volumeCounter.Add(context.Background(), float64(price))
}
