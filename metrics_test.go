package kstate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kynesim/kstate/internal/shm"
)

func TestMetricsInitialSnapshotIsZero(t *testing.T) {
	m := NewMetrics()
	snap := m.Snapshot()

	require.Zero(t, snap.SubscribeOps)
	require.Zero(t, snap.TransactionsStarted)
	require.Zero(t, snap.ConflictRate)
}

func TestMetricsConflictRate(t *testing.T) {
	m := NewMetrics()

	m.TransactionsCommitted.Add(3)
	m.TransactionsConflicted.Add(1)

	snap := m.Snapshot()
	require.InDelta(t, 1.0/4.0, snap.ConflictRate, 0.001)
}

func TestMetricsReset(t *testing.T) {
	m := NewMetrics()
	m.SubscribeOps.Add(5)
	m.TransactionsAborted.Add(2)

	m.Reset()
	snap := m.Snapshot()

	require.Zero(t, snap.SubscribeOps)
	require.Zero(t, snap.TransactionsAborted)
}

func TestMetricsObserverRecordsIntoMetrics(t *testing.T) {
	m := NewMetrics()
	obs := NewMetricsObserver(m)

	obs.ObserveSubscribe("/kstate.Fred.A")
	obs.ObserveUnsubscribe("/kstate.Fred.A")
	obs.ObserveTransactionStart("/kstate.Fred.A")
	obs.ObserveTransactionCommit("/kstate.Fred.A", false)
	obs.ObserveTransactionCommit("/kstate.Fred.A", true)
	obs.ObserveTransactionAbort("/kstate.Fred.A")

	snap := m.Snapshot()
	require.EqualValues(t, 1, snap.SubscribeOps)
	require.EqualValues(t, 1, snap.UnsubscribeOps)
	require.EqualValues(t, 1, snap.TransactionsStarted)
	require.EqualValues(t, 1, snap.TransactionsCommitted)
	require.EqualValues(t, 1, snap.TransactionsConflicted)
	require.EqualValues(t, 1, snap.TransactionsAborted)
}

func TestNoOpObserverDoesNothing(t *testing.T) {
	var obs Observer = NoOpObserver{}
	// Exercises every method purely for coverage of the no-op path; there
	// is nothing to assert beyond "it does not panic".
	obs.ObserveSubscribe("x")
	obs.ObserveUnsubscribe("x")
	obs.ObserveTransactionStart("x")
	obs.ObserveTransactionCommit("x", false)
	obs.ObserveTransactionAbort("x")
}

func TestDefaultMetricsTracksSubscribe(t *testing.T) {
	prev := shm.Default
	mapper := NewMockMapper()
	shm.Default = mapper
	defer func() { shm.Default = prev }()

	DefaultMetrics().Reset()

	s := NewState()
	defer s.Free()
	require.NoError(t, s.Subscribe("metrics.test", PermRead|PermWrite))

	snap := DefaultMetrics().Snapshot()
	require.EqualValues(t, 1, snap.SubscribeOps)
}

// spyObserver records which Observe* methods were called, without
// touching a Metrics instance at all.
type spyObserver struct {
	subscribed   []string
	unsubscribed []string
}

func (o *spyObserver) ObserveSubscribe(name string)   { o.subscribed = append(o.subscribed, name) }
func (o *spyObserver) ObserveUnsubscribe(name string)  { o.unsubscribed = append(o.unsubscribed, name) }
func (o *spyObserver) ObserveTransactionStart(string)  {}
func (o *spyObserver) ObserveTransactionCommit(string, bool) {}
func (o *spyObserver) ObserveTransactionAbort(string)  {}

func TestSetObserverReplacesDefault(t *testing.T) {
	prev := shm.Default
	shm.Default = NewMockMapper()
	defer func() { shm.Default = prev }()

	spy := &spyObserver{}
	SetObserver(spy)
	defer SetObserver(nil)

	s := NewState()
	defer s.Free()
	require.NoError(t, s.Subscribe("observer.test", PermRead|PermWrite))
	s.Unsubscribe()

	require.Equal(t, []string{"/kstate.observer.test"}, spy.subscribed)
	require.Equal(t, []string{"/kstate.observer.test"}, spy.unsubscribed)
}
