package kstate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kynesim/kstate/internal/shm"
)

// withMockMapper swaps shm.Default for mapper for the duration of the
// test and restores the previous adapter on cleanup.
func withMockMapper(t *testing.T, mapper *MockMapper) {
	t.Helper()
	prev := shm.Default
	shm.Default = mapper
	t.Cleanup(func() { shm.Default = prev })
}

func TestStateSubscribeCreatesAndReadsZeroedRegion(t *testing.T) {
	withMockMapper(t, NewMockMapper())

	s := NewState()
	defer s.Free()

	require.NoError(t, s.Subscribe("Fred.A", PermRead|PermWrite))
	require.True(t, s.IsSubscribed())
	require.Equal(t, "Fred.A", s.Name())
	require.Equal(t, PermRead|PermWrite, s.Permissions())
	require.NotZero(t, s.ID())

	for _, b := range s.Data() {
		require.Zero(t, b)
	}
}

func TestStateSubscribeWriteAloneIsNormalized(t *testing.T) {
	withMockMapper(t, NewMockMapper())

	s := NewState()
	defer s.Free()

	require.NoError(t, s.Subscribe("Fred.B", PermWrite))
	require.Equal(t, PermRead|PermWrite, s.Permissions())
}

func TestStateSubscribeReadOnlyToMissingNameFails(t *testing.T) {
	withMockMapper(t, NewMockMapper())

	s := NewState()
	err := s.Subscribe("Fred.C", PermRead)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrNotFound)
	require.False(t, s.IsSubscribed())
}

func TestStateSubscribeRejectsInvalidName(t *testing.T) {
	withMockMapper(t, NewMockMapper())

	s := NewState()
	err := s.Subscribe("bad name", PermRead|PermWrite)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestStateSubscribeTwiceFails(t *testing.T) {
	withMockMapper(t, NewMockMapper())

	s := NewState()
	defer s.Free()
	require.NoError(t, s.Subscribe("Fred.D", PermRead|PermWrite))

	err := s.Subscribe("Fred.E", PermRead|PermWrite)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrInvalidArgument)
	require.Equal(t, "Fred.D", s.Name(), "the original subscription must be untouched")
}

func TestStateTwoHandlesShareOneRegion(t *testing.T) {
	withMockMapper(t, NewMockMapper())

	writer := NewState()
	defer writer.Free()
	require.NoError(t, writer.Subscribe("Fred.F", PermRead|PermWrite))

	reader := NewState()
	defer reader.Free()
	require.NoError(t, reader.Subscribe("Fred.F", PermRead))

	// Mutate the writer's backing bytes directly (standing in for
	// another process committing a transaction) and confirm the reader
	// observes it, since both map the same shared region.
	writer.Data()[0] = 0x42
	require.Equal(t, byte(0x42), reader.Data()[0])
}

func TestStateUnsubscribeIsIdempotent(t *testing.T) {
	withMockMapper(t, NewMockMapper())

	s := NewState()
	require.NoError(t, s.Subscribe("Fred.G", PermRead|PermWrite))

	s.Unsubscribe()
	require.False(t, s.IsSubscribed())
	require.Empty(t, s.Name())
	require.Zero(t, s.ID())
	require.Nil(t, s.Data())

	s.Unsubscribe() // no-op, must not panic
}

func TestStateUnsubscribeUnlinksName(t *testing.T) {
	mapper := NewMockMapper()
	withMockMapper(t, mapper)

	s := NewState()
	require.NoError(t, s.Subscribe("Fred.H", PermRead|PermWrite))
	s.Unsubscribe()

	require.Equal(t, 1, mapper.UnlinkCalls)

	// Re-subscribing read-only now fails: the name was unlinked and
	// nothing has recreated it.
	s2 := NewState()
	err := s2.Subscribe("Fred.H", PermRead)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStateFreeOnNilIsNoOp(t *testing.T) {
	var s *State
	require.NotPanics(t, func() { s.Free() })
}

func TestStateIDsAreDistinctAcrossHandles(t *testing.T) {
	a := NewState()
	b := NewState()
	require.NotEqual(t, a.id, b.id)
}
