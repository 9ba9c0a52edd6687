// Package metrics registers the package-scope Prometheus instruments
// exercised across the order adapter, following the teacher's
// promauto.New*Vec package-var style and "trading_<subject>_<unit>" naming.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	OrdersProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trading_orders_processed_total",
			Help: "Total orders that completed the processing pipeline by outcome",
		},
		[]string{"symbol", "outcome"},
	)

	OrderProcessingLatencyMs = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trading_order_processing_latency_milliseconds",
			Help:    "Order processing pipeline latency in milliseconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 25, 50, 100, 250},
		},
		[]string{"symbol"},
	)

	ValidationErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trading_validation_errors_total",
			Help: "Total order requests rejected by the validator, by rule",
		},
		[]string{"rule"},
	)

	InstrumentErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trading_instrument_errors_total",
			Help: "Total order requests rejected by the instrument resolver",
		},
		[]string{"symbol"},
	)

	RiskRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trading_risk_rejections_total",
			Help: "Total order requests rejected by the risk engine, by reason",
		},
		[]string{"reason"},
	)

	FIXSessionState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "trading_fix_session_state",
			Help: "Current FIX session state (1=active for the labeled state, 0 otherwise)",
		},
		[]string{"session", "state"},
	)

	FIXSequenceOut = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "trading_fix_sequence_out",
			Help: "Current outbound FIX sequence number",
		},
		[]string{"session"},
	)

	FIXSequenceIn = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "trading_fix_sequence_in",
			Help: "Current inbound FIX sequence number",
		},
		[]string{"session"},
	)

	FIXMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trading_fix_messages_total",
			Help: "Total FIX messages by direction and message type",
		},
		[]string{"direction", "msg_type"},
	)

	CodecErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trading_fix_codec_errors_total",
			Help: "Total malformed inbound FIX messages",
		},
		[]string{"reason"},
	)

	IngressFramesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trading_ingress_frames_total",
			Help: "Total ingress frames received by outcome",
		},
		[]string{"outcome"},
	)

	OutstandingOrders = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "trading_outstanding_orders",
			Help: "Current number of non-terminal orders tracked by the gateway",
		},
	)
)

// Handler returns the HTTP handler for the /metrics scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
