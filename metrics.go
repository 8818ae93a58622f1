package kstate

import (
	"sync/atomic"
	"time"
)

// Metrics tracks subscription and transaction activity across every
// State and Transaction in the process. There is one process-wide
// instance, reachable via DefaultMetrics, updated automatically by
// State.Subscribe/Unsubscribe and Transaction.Start/Commit/Abort.
type Metrics struct {
	SubscribeOps   atomic.Uint64
	UnsubscribeOps atomic.Uint64

	TransactionsStarted    atomic.Uint64
	TransactionsCommitted  atomic.Uint64
	TransactionsConflicted atomic.Uint64 // commit attempted, rejected by the concurrency check
	TransactionsAborted    atomic.Uint64

	StartTime atomic.Int64 // UnixNano
}

// NewMetrics creates an empty Metrics, stamped with the current time as
// its start time.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

var defaultMetrics = NewMetrics()

// DefaultMetrics returns the process-wide Metrics instance that every
// State and Transaction reports into by default.
func DefaultMetrics() *Metrics {
	return defaultMetrics
}

// defaultObserver is where State and Transaction actually report their
// activity; it defaults to feeding defaultMetrics, so DefaultMetrics
// reflects every call out of the box. SetObserver lets a caller replace
// it process-wide: a package-level seam rather than a constructor
// option, since State and Transaction take no options struct.
var defaultObserver Observer = NewMetricsObserver(defaultMetrics)

// SetObserver replaces the process-wide Observer every State and
// Transaction reports into. Passing nil restores the default (feeding
// DefaultMetrics).
func SetObserver(o Observer) {
	if o == nil {
		o = NewMetricsObserver(defaultMetrics)
	}
	defaultObserver = o
}

// MetricsSnapshot is a point-in-time copy of Metrics, plus rates
// derived from it, safe to read without further synchronization.
type MetricsSnapshot struct {
	SubscribeOps           uint64
	UnsubscribeOps         uint64
	TransactionsStarted    uint64
	TransactionsCommitted  uint64
	TransactionsConflicted uint64
	TransactionsAborted    uint64

	UptimeNs uint64

	// ConflictRate is TransactionsConflicted / (TransactionsCommitted +
	// TransactionsConflicted), or 0 if no commit has been attempted.
	ConflictRate float64
}

// Snapshot takes a point-in-time copy of m's counters and derives rates
// from them.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		SubscribeOps:           m.SubscribeOps.Load(),
		UnsubscribeOps:         m.UnsubscribeOps.Load(),
		TransactionsStarted:    m.TransactionsStarted.Load(),
		TransactionsCommitted:  m.TransactionsCommitted.Load(),
		TransactionsConflicted: m.TransactionsConflicted.Load(),
		TransactionsAborted:    m.TransactionsAborted.Load(),
		UptimeNs:               uint64(time.Now().UnixNano() - m.StartTime.Load()),
	}

	attempts := snap.TransactionsCommitted + snap.TransactionsConflicted
	if attempts > 0 {
		snap.ConflictRate = float64(snap.TransactionsConflicted) / float64(attempts)
	}
	return snap
}

// Reset zeroes every counter and restamps the start time. Useful for
// tests that want a clean DefaultMetrics.
func (m *Metrics) Reset() {
	m.SubscribeOps.Store(0)
	m.UnsubscribeOps.Store(0)
	m.TransactionsStarted.Store(0)
	m.TransactionsCommitted.Store(0)
	m.TransactionsConflicted.Store(0)
	m.TransactionsAborted.Store(0)
	m.StartTime.Store(time.Now().UnixNano())
}

// Observer allows pluggable collection of kstate activity, independent
// of the atomic counters on Metrics.
type Observer interface {
	ObserveSubscribe(name string)
	ObserveUnsubscribe(name string)
	ObserveTransactionStart(name string)
	ObserveTransactionCommit(name string, conflicted bool)
	ObserveTransactionAbort(name string)
}

// NoOpObserver discards every observation.
type NoOpObserver struct{}

func (NoOpObserver) ObserveSubscribe(string)              {}
func (NoOpObserver) ObserveUnsubscribe(string)            {}
func (NoOpObserver) ObserveTransactionStart(string)       {}
func (NoOpObserver) ObserveTransactionCommit(string, bool) {}
func (NoOpObserver) ObserveTransactionAbort(string)       {}

// MetricsObserver implements Observer by feeding a Metrics instance.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver returns an Observer that records into m.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveSubscribe(string)        { o.metrics.SubscribeOps.Add(1) }
func (o *MetricsObserver) ObserveUnsubscribe(string)       { o.metrics.UnsubscribeOps.Add(1) }
func (o *MetricsObserver) ObserveTransactionStart(string)  { o.metrics.TransactionsStarted.Add(1) }

func (o *MetricsObserver) ObserveTransactionCommit(name string, conflicted bool) {
	if conflicted {
		o.metrics.TransactionsConflicted.Add(1)
	} else {
		o.metrics.TransactionsCommitted.Add(1)
	}
}

func (o *MetricsObserver) ObserveTransactionAbort(string) { o.metrics.TransactionsAborted.Add(1) }

// Compile-time interface checks.
var (
	_ Observer = (*MetricsObserver)(nil)
	_ Observer = NoOpObserver{}
)
