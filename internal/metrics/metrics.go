// Package metrics records Prometheus metrics for transfers.
//
// A nil *Metrics is valid and records nothing, so callers never need to
// check whether metrics are enabled.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/input-output-hk/catalyst-forge-libs/s3transfer/s3types"
)

// Metrics holds the transfer collectors.
type Metrics struct {
	partsTotal       *prometheus.CounterVec
	partAttempts     *prometheus.HistogramVec
	partDuration     *prometheus.HistogramVec
	bytesTransferred *prometheus.CounterVec
	transfersTotal   *prometheus.CounterVec
	transferDuration *prometheus.HistogramVec
	sessionsTotal    *prometheus.CounterVec
	activeParts      *prometheus.GaugeVec
}

// New registers the transfer collectors with reg.
//
// Returns nil if reg is nil.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}

	return &Metrics{
		partsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "s3transfer_parts_total",
				Help: "Total number of parts by direction and terminal status",
			},
			[]string{"direction", "status"},
		),
		partAttempts: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "s3transfer_part_attempts",
				Help:    "Attempts needed per part",
				Buckets: []float64{1, 2, 3, 5, 8, 11},
			},
			[]string{"direction"},
		),
		partDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "s3transfer_part_duration_milliseconds",
				Help: "Duration of a part transfer including retries in milliseconds",
				Buckets: []float64{
					50,     // 50ms
					250,    // 250ms
					1000,   // 1s
					5000,   // 5s - typical 5MB part
					15000,  // 15s
					60000,  // 1m - large parts
					300000, // 5m
				},
			},
			[]string{"direction"},
		),
		bytesTransferred: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "s3transfer_bytes_transferred_total",
				Help: "Total bytes moved by successful parts",
			},
			[]string{"direction"},
		),
		transfersTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "s3transfer_transfers_total",
				Help: "Total number of transfers by direction and outcome",
			},
			[]string{"direction", "outcome"},
		),
		transferDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "s3transfer_transfer_duration_seconds",
				Help:    "Duration of whole transfers in seconds",
				Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
			},
			[]string{"direction"},
		),
		sessionsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "s3transfer_multipart_sessions_total",
				Help: "Multipart sessions by terminal state",
			},
			[]string{"state"},
		),
		activeParts: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "s3transfer_active_parts",
				Help: "Parts currently being transferred",
			},
			[]string{"direction"},
		),
	}
}

// PartStarted marks a part as in flight.
func (m *Metrics) PartStarted(dir s3types.Direction) {
	if m == nil {
		return
	}
	m.activeParts.WithLabelValues(string(dir)).Inc()
}

// ObservePart records a finished part.
func (m *Metrics) ObservePart(dir s3types.Direction, res s3types.PartResult) {
	if m == nil {
		return
	}

	d := string(dir)
	m.activeParts.WithLabelValues(d).Dec()
	m.partsTotal.WithLabelValues(d, res.Status.String()).Inc()
	m.partAttempts.WithLabelValues(d).Observe(float64(res.Attempts))
	m.partDuration.WithLabelValues(d).Observe(float64(res.Duration.Milliseconds()))
	if res.Status == s3types.PartSucceeded {
		m.bytesTransferred.WithLabelValues(d).Add(float64(res.Bytes))
	}
}

// ObserveTransfer records a finished transfer.
func (m *Metrics) ObserveTransfer(dir s3types.Direction, err error, elapsed time.Duration) {
	if m == nil {
		return
	}

	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.transfersTotal.WithLabelValues(string(dir), outcome).Inc()
	m.transferDuration.WithLabelValues(string(dir)).Observe(elapsed.Seconds())
}

// ObserveSession records the terminal state of a multipart session.
func (m *Metrics) ObserveSession(state s3types.SessionState) {
	if m == nil {
		return
	}
	m.sessionsTotal.WithLabelValues(state.String()).Inc()
}
