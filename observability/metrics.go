package observability

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MandateMetrics tracks issue/validate/revoke call outcomes and latency.
type MandateMetrics struct {
	issued    *prometheus.CounterVec
	validated *prometheus.CounterVec
	revoked   *prometheus.CounterVec
	latency   *prometheus.HistogramVec
}

var (
	mandateMetricsOnce sync.Once
	mandateRegistry    *MandateMetrics

	ledgerMetricsOnce sync.Once
	ledgerRegistry    *LedgerMetrics

	merkleMetricsOnce sync.Once
	merkleRegistry    *MerkleMetrics
)

// Mandates returns the lazily-initialised mandate lifecycle metrics.
func Mandates() *MandateMetrics {
	mandateMetricsOnce.Do(func() {
		mandateRegistry = &MandateMetrics{
			issued: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "authority",
				Subsystem: "mandate",
				Name:      "issued_total",
				Help:      "Total mandate issue attempts segmented by outcome and denial reason.",
			}, []string{"outcome", "reason"}),
			validated: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "authority",
				Subsystem: "mandate",
				Name:      "validated_total",
				Help:      "Total validate calls segmented by decision and denial reason.",
			}, []string{"decision", "reason"}),
			revoked: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "authority",
				Subsystem: "mandate",
				Name:      "revoked_total",
				Help:      "Total mandate revocations segmented by whether cascade was requested.",
			}, []string{"cascade"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "authority",
				Subsystem: "mandate",
				Name:      "call_duration_seconds",
				Help:      "Latency distribution for mandate engine operations.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
		}
		prometheus.MustRegister(
			mandateRegistry.issued,
			mandateRegistry.validated,
			mandateRegistry.revoked,
			mandateRegistry.latency,
		)
	})
	return mandateRegistry
}

// RecordIssue records the outcome of one Issue call.
func (m *MandateMetrics) RecordIssue(allowed bool, reason string) {
	if m == nil {
		return
	}
	m.issued.WithLabelValues(outcomeLabel(allowed), reasonLabel(reason)).Inc()
}

// RecordValidate records the outcome of one Validate call.
func (m *MandateMetrics) RecordValidate(allowed bool, reason string) {
	if m == nil {
		return
	}
	m.validated.WithLabelValues(outcomeLabel(allowed), reasonLabel(reason)).Inc()
}

// RecordRevoke records one Revoke call.
func (m *MandateMetrics) RecordRevoke(cascade bool) {
	if m == nil {
		return
	}
	label := "false"
	if cascade {
		label = "true"
	}
	m.revoked.WithLabelValues(label).Inc()
}

// ObserveLatency records how long a named operation took.
func (m *MandateMetrics) ObserveLatency(operation string, d time.Duration) {
	if m == nil {
		return
	}
	m.latency.WithLabelValues(operationLabel(operation)).Observe(d.Seconds())
}

// LedgerMetrics tracks ledger append throughput and query activity.
type LedgerMetrics struct {
	appended   prometheus.Counter
	queried    *prometheus.CounterVec
	unbatched  prometheus.Gauge
}

// Ledger returns the lazily-initialised ledger metrics.
func Ledger() *LedgerMetrics {
	ledgerMetricsOnce.Do(func() {
		ledgerRegistry = &LedgerMetrics{
			appended: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "authority",
				Subsystem: "ledger",
				Name:      "events_appended_total",
				Help:      "Total ledger events appended.",
			}),
			queried: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "authority",
				Subsystem: "ledger",
				Name:      "queries_total",
				Help:      "Total query_events calls segmented by event type filter.",
			}, []string{"event_type"}),
			unbatched: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "authority",
				Subsystem: "ledger",
				Name:      "unbatched_events",
				Help:      "Number of ledger events not yet covered by a Merkle root.",
			}),
		}
		prometheus.MustRegister(ledgerRegistry.appended, ledgerRegistry.queried, ledgerRegistry.unbatched)
	})
	return ledgerRegistry
}

// RecordAppend increments the events-appended counter.
func (m *LedgerMetrics) RecordAppend() {
	if m == nil {
		return
	}
	m.appended.Inc()
}

// RecordQuery increments the query counter for the given event type filter.
func (m *LedgerMetrics) RecordQuery(eventType string) {
	if m == nil {
		return
	}
	m.queried.WithLabelValues(reasonLabel(eventType)).Inc()
}

// SetUnbatched updates the unbatched-events gauge.
func (m *LedgerMetrics) SetUnbatched(count int) {
	if m == nil {
		return
	}
	m.unbatched.Set(float64(count))
}

// MerkleMetrics tracks batch-building and verification activity.
type MerkleMetrics struct {
	batchesBuilt    *prometheus.CounterVec
	batchSize       prometheus.Histogram
	verifyFailures  *prometheus.CounterVec
	lastBatchAge    prometheus.Gauge
}

// Merkle returns the lazily-initialised Merkle batch/verify metrics.
func Merkle() *MerkleMetrics {
	merkleMetricsOnce.Do(func() {
		merkleRegistry = &MerkleMetrics{
			batchesBuilt: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "authority",
				Subsystem: "merkle",
				Name:      "batches_built_total",
				Help:      "Total Merkle batches committed, segmented by source.",
			}, []string{"source"}),
			batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "authority",
				Subsystem: "merkle",
				Name:      "batch_size_events",
				Help:      "Distribution of the number of events per committed batch.",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
			}),
			verifyFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "authority",
				Subsystem: "merkle",
				Name:      "verify_failures_total",
				Help:      "Total batch verification failures segmented by cause.",
			}, []string{"cause"}),
			lastBatchAge: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "authority",
				Subsystem: "merkle",
				Name:      "seconds_since_last_batch",
				Help:      "Seconds elapsed since the last batch was committed.",
			}),
		}
		prometheus.MustRegister(
			merkleRegistry.batchesBuilt,
			merkleRegistry.batchSize,
			merkleRegistry.verifyFailures,
			merkleRegistry.lastBatchAge,
		)
	})
	return merkleRegistry
}

// RecordBatch records a committed batch's source and size.
func (m *MerkleMetrics) RecordBatch(source string, eventCount int) {
	if m == nil {
		return
	}
	m.batchesBuilt.WithLabelValues(reasonLabel(source)).Inc()
	m.batchSize.Observe(float64(eventCount))
}

// RecordVerifyFailure increments the verification-failure counter.
func (m *MerkleMetrics) RecordVerifyFailure(cause string) {
	if m == nil {
		return
	}
	m.verifyFailures.WithLabelValues(reasonLabel(cause)).Inc()
}

// SetSecondsSinceLastBatch updates the staleness gauge.
func (m *MerkleMetrics) SetSecondsSinceLastBatch(d time.Duration) {
	if m == nil {
		return
	}
	m.lastBatchAge.Set(d.Seconds())
}

func outcomeLabel(allowed bool) string {
	if allowed {
		return "allowed"
	}
	return "denied"
}

func reasonLabel(reason string) string {
	trimmed := strings.TrimSpace(reason)
	if trimmed == "" {
		return "none"
	}
	return trimmed
}

func operationLabel(operation string) string {
	trimmed := strings.TrimSpace(operation)
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}
