package kstate

import (
	"sync"
	"syscall"

	"github.com/kynesim/kstate/internal/shm"
)

// MockMapper is a test double for the shared-mapping adapter
// (shm.Adapter): it lets State/Transaction logic be exercised without a
// real shm-capable kernel, and exposes call counters and error injection
// for testing the partial-resource-cleanup paths on a failed Subscribe
// or Start.
//
// Unlike the real adapter, MockMapper cannot make writes actually trap
// when protection is downgraded to read-only — that guarantee is
// enforced by the MMU and is only meaningfully testable against the real
// adapter (see internal/shm/shm_test.go). MockMapper's Protect only
// records the call for introspection via WasProtected.
type MockMapper struct {
	mu sync.Mutex

	objects map[string]*mockObject
	nextFD  int
	openFDs map[int]*mockFD

	// Error injection: if set, the next matching call returns this
	// error instead of succeeding, then is cleared.
	NextOpenErr         error
	NextMapErr          error
	NextMapAnonymousErr error
	NextProtectErr      error

	// Call counters.
	OpenCalls      int
	MapCalls       int
	ProtectCalls   int
	UnmapCalls     int
	CloseCalls     int
	UnlinkCalls    int
	protectedMem   map[*byte]bool
}

type mockObject struct {
	data []byte
}

type mockFD struct {
	name  string
	write bool
}

// NewMockMapper creates an empty MockMapper with no pre-existing named
// objects.
func NewMockMapper() *MockMapper {
	return &MockMapper{
		objects:      make(map[string]*mockObject),
		openFDs:      make(map[int]*mockFD),
		protectedMem: make(map[*byte]bool),
	}
}

func (m *MockMapper) OpenOrCreate(name string, write bool, create bool, size int, mode uint32) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.OpenCalls++
	if m.NextOpenErr != nil {
		err := m.NextOpenErr
		m.NextOpenErr = nil
		return -1, false, err
	}

	obj, exists := m.objects[name]
	created := false
	if !exists {
		if !create {
			return -1, false, syscall.ENOENT
		}
		obj = &mockObject{data: make([]byte, size)}
		m.objects[name] = obj
		created = true
	}

	m.nextFD++
	fd := m.nextFD
	m.openFDs[fd] = &mockFD{name: name, write: write}
	return fd, created, nil
}

func (m *MockMapper) Size(fd int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.openFDs[fd]
	if !ok {
		return 0, ErrInvalidArgument
	}
	return len(m.objects[f.name].data), nil
}

func (m *MockMapper) Map(fd int, size int, prot int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.MapCalls++
	if m.NextMapErr != nil {
		err := m.NextMapErr
		m.NextMapErr = nil
		return nil, err
	}

	f, ok := m.openFDs[fd]
	if !ok {
		return nil, ErrInvalidArgument
	}
	obj := m.objects[f.name]
	if len(obj.data) < size {
		grown := make([]byte, size)
		copy(grown, obj.data)
		obj.data = grown
	}
	// Aliases the backing array so writes through one "mapping" are
	// visible through every other mapping of the same name, matching
	// MAP_SHARED semantics.
	return obj.data[:size], nil
}

func (m *MockMapper) MapAnonymous(size int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.NextMapAnonymousErr != nil {
		err := m.NextMapAnonymousErr
		m.NextMapAnonymousErr = nil
		return nil, err
	}
	return make([]byte, size), nil
}

func (m *MockMapper) Protect(mem []byte, prot int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ProtectCalls++
	if m.NextProtectErr != nil {
		err := m.NextProtectErr
		m.NextProtectErr = nil
		return err
	}
	if len(mem) > 0 {
		m.protectedMem[&mem[0]] = prot == shm.ProtRead
	}
	return nil
}

// WasProtected reports whether Protect was last called on mem with
// read-only protection. Returns false for memory Protect was never
// called on.
func (m *MockMapper) WasProtected(mem []byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(mem) == 0 {
		return false
	}
	return m.protectedMem[&mem[0]]
}

func (m *MockMapper) Unmap(mem []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UnmapCalls++
	return nil
}

func (m *MockMapper) Close(fd int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CloseCalls++
	delete(m.openFDs, fd)
	return nil
}

func (m *MockMapper) Unlink(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UnlinkCalls++
	delete(m.objects, name)
	return nil
}

// Compile-time interface check.
var _ shm.Adapter = (*MockMapper)(nil)
