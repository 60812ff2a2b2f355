package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	CodesIssuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otp_codes_issued_total",
			Help: "Total number of verification code issue attempts.",
		},
		[]string{"channel", "purpose", "result"},
	)

	VerificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otp_verifications_total",
			Help: "Total number of verification code submissions.",
		},
		[]string{"channel", "purpose", "result"},
	)

	DeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_messages_total",
			Help: "Total number of out-of-band messages handed to a transport.",
		},
		[]string{"channel", "provider", "result"},
	)

	DrawsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "draws_total",
			Help: "Total number of draw attempts.",
		},
		[]string{"result"},
	)

	PurgedCodesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "otp_codes_purged_total",
			Help: "Total number of stale verification codes removed by housekeeping.",
		},
	)
)

// MustRegister registers every collector with reg. Call once at startup.
func MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDurationSeconds,
		CodesIssuedTotal,
		VerificationsTotal,
		DeliveriesTotal,
		DrawsTotal,
		PurgedCodesTotal,
	)
}

// Result labels a counter with "ok" or the business reason, falling back to "error".
func Result(reason string, err error) string {
	switch {
	case reason != "":
		return reason
	case err != nil:
		return "error"
	default:
		return "ok"
	}
}
