// Package metrics exposes the service's Prometheus instrumentation. All
// collectors hang off an explicit registry owned by the caller; nothing
// registers against the global default.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the service collectors.
type Metrics struct {
	registry *prometheus.Registry

	// Payment amount distributions, in cents.
	PaymentAddedAmount      prometheus.Histogram
	PaymentAddedFeeAmount   prometheus.Histogram
	PaymentSettledAmount    prometheus.Histogram
	PaymentSettledFeeAmount prometheus.Histogram

	// RPC outcomes, labelled by method and result code.
	RPCRequests *prometheus.CounterVec

	// Sweeper outcomes.
	EscrowsExpired prometheus.Counter
	PayoutsSwept   prometheus.Counter
	PayoutsFailed  prometheus.Counter
}

// amountBuckets covers the payment range from one cent to the maximum
// payment in roughly exponential steps.
var amountBuckets = prometheus.ExponentialBuckets(1, 4, 14)

// New creates the collectors on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		PaymentAddedAmount: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "beancounter",
			Name:      "payment_added_amount",
			Help:      "Escrowed payment amounts in cents.",
			Buckets:   amountBuckets,
		}),
		PaymentAddedFeeAmount: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "beancounter",
			Name:      "payment_added_fee_amount",
			Help:      "Fees charged on escrowed payments, in cents.",
			Buckets:   amountBuckets,
		}),
		PaymentSettledAmount: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "beancounter",
			Name:      "payment_settled_amount",
			Help:      "Settled payment amounts in cents, net of fees.",
			Buckets:   amountBuckets,
		}),
		PaymentSettledFeeAmount: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "beancounter",
			Name:      "payment_settled_fee_amount",
			Help:      "Fees retained on settled payments, in cents.",
			Buckets:   amountBuckets,
		}),
		RPCRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "beancounter",
			Name:      "rpc_requests_total",
			Help:      "RPC requests by method and gRPC status code.",
		}, []string{"method", "code"}),
		EscrowsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "beancounter",
			Name:      "escrows_expired_total",
			Help:      "Escrowed payments refunded by the expiry sweep.",
		}),
		PayoutsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "beancounter",
			Name:      "payouts_swept_total",
			Help:      "Automatic payouts executed by the payout sweep.",
		}),
		PayoutsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "beancounter",
			Name:      "payouts_failed_total",
			Help:      "Automatic payouts that failed and were skipped.",
		}),
	}

	registry.MustRegister(
		m.PaymentAddedAmount,
		m.PaymentAddedFeeAmount,
		m.PaymentSettledAmount,
		m.PaymentSettledFeeAmount,
		m.RPCRequests,
		m.EscrowsExpired,
		m.PayoutsSwept,
		m.PayoutsFailed,
	)

	return m
}

// Registry returns the registry backing the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
