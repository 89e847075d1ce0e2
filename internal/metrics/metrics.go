package metrics

import "github.com/prometheus/client_golang/prometheus"

// Outcome labels for RSVPSubmissions
const (
	OutcomeStored   = "stored"
	OutcomeLocal    = "local"
	OutcomeInvalid  = "invalid"
	OutcomeFailed   = "failed"
	ResponseUnknown = "unknown"
)

var (
	RSVPSubmissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "rsvp_submissions_total", Help: "RSVP form submissions"},
		[]string{"response", "outcome"},
	)
	GuestSnapshots = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "guest_snapshots_total", Help: "Guest list snapshots received"},
		[]string{"status"},
	)
	ConfirmedGuests = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "confirmed_guests", Help: "Guests in the latest snapshot"},
	)
	LiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "guest_list_live_connections", Help: "Open live guest list connections"},
	)
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests"},
		[]string{"route", "method", "status"},
	)
	ReqDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Request duration seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
)

// MustRegister adds every collector to the default registry
func MustRegister() {
	prometheus.MustRegister(RSVPSubmissions, GuestSnapshots, ConfirmedGuests, LiveConnections, RequestsTotal, ReqDuration)
}

// ObserveSnapshot records one guest list snapshot
func ObserveSnapshot(count int, err error) {
	if err != nil {
		GuestSnapshots.WithLabelValues("error").Inc()
		return
	}
	GuestSnapshots.WithLabelValues("ok").Inc()
	ConfirmedGuests.Set(float64(count))
}
