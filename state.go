package kstate

import (
	"runtime"

	"github.com/kynesim/kstate/internal/constants"
	"github.com/kynesim/kstate/internal/logging"
	"github.com/kynesim/kstate/internal/shm"
)

// State is a process-local handle to a named, page-sized shared-memory
// region. A State is created unsubscribed; Subscribe maps the region
// (creating it if requested and it doesn't exist) read-only into the
// process, regardless of the permissions requested — direct reads
// through Data always come from a read-only mapping.
//
// A State is not safe for concurrent use by multiple goroutines; each
// goroutine or process should hold its own handle.
type State struct {
	id      uint64
	name    string // canonical name ("" when unsubscribed)
	perms   Perm
	mapping []byte
}

// NewState allocates an empty, unsubscribed State handle and assigns it
// a fresh, process-wide-unique id. It never fails.
func NewState() *State {
	return &State{id: allocStateID()}
}

// IsSubscribed reports whether s currently has a live mapping.
func (s *State) IsSubscribed() bool {
	return s != nil && s.name != ""
}

// Name returns the user-supplied (prefix-stripped) name s is subscribed
// to, or "" if s is not subscribed.
func (s *State) Name() string {
	if !s.IsSubscribed() {
		return ""
	}
	return userName(s.name)
}

// Permissions returns the permission bitmask s was subscribed with, or 0
// if s is not subscribed.
func (s *State) Permissions() Perm {
	if !s.IsSubscribed() {
		return 0
	}
	return s.perms
}

// ID returns s's identifier while subscribed, and 0 otherwise. The
// underlying id is assigned once at NewState and never changes — it
// persists internally across unsubscribe/subscribe cycles for identity
// purposes, but the accessor only ever reports it while bound.
func (s *State) ID() uint64 {
	if !s.IsSubscribed() {
		return 0
	}
	return s.id
}

// Data returns a read-only view of the state's current bytes, or nil if
// s is not subscribed. Writing through this slice is not merely
// discouraged: the underlying mapping is PROT_READ, so a write traps.
func (s *State) Data() []byte {
	if !s.IsSubscribed() {
		return nil
	}
	return s.mapping
}

// Subscribe creates (if perms includes Write and the object doesn't yet
// exist) or opens the shared-memory object canonically named after
// name, and maps it read-only into the process. perms must be a
// nonempty subset of {Read, Write}; Write alone is normalized to
// Read|Write. A read-only subscribe to a name that does not yet exist
// fails with ErrNotFound — creation requires Write.
//
// Subscribe fails with ErrInvalidArgument if s is already subscribed.
// On any failure partway through, all partial resources are released
// and s is left unsubscribed.
func (s *State) Subscribe(name string, perms Perm) error {
	if s == nil {
		return newError("subscribe", codeInvalidArgument, "nil State")
	}
	if s.IsSubscribed() {
		return newError("subscribe", codeInvalidArgument, "already subscribed")
	}
	if err := validateName(name); err != nil {
		return err
	}
	perms = normalizePerms(perms)
	if err := validatePerms(perms); err != nil {
		return err
	}

	canonical := canonicalName(name)
	write := perms&PermWrite != 0

	fd, created, err := shm.Default.OpenOrCreate(canonical, write, write, constants.PageSize, constants.CreateMode)
	if err != nil {
		return subscribeError(canonical, err)
	}

	mem, err := shm.Default.Map(fd, constants.PageSize, shm.ProtRead)
	if err != nil {
		shm.Default.Close(fd)
		if created {
			_ = shm.Default.Unlink(canonical)
		}
		return subscribeError(canonical, err)
	}
	// The mapping keeps the region referenced; the descriptor itself
	// isn't needed once mmap has taken a reference to the object.
	if cerr := shm.Default.Close(fd); cerr != nil {
		logging.Default().Warn("subscribe: close fd failed", "name", canonical, "err", cerr)
	}

	s.name = canonical
	s.perms = perms
	s.mapping = mem

	// Safety net, not a correctness mechanism: if the caller drops s
	// without calling Unsubscribe/Free, warn instead of silently
	// leaking the mapping and the shared-memory name.
	runtime.SetFinalizer(s, finalizeState)

	defaultObserver.ObserveSubscribe(canonical)
	logging.Default().Debug("subscribed", "name", canonical, "created", created, "perms", formatPermBits(perms))
	return nil
}

func subscribeError(canonical string, err error) error {
	return adapterError("subscribe", canonical, err)
}

// Unsubscribe unmaps the region, unlinks the shared-memory name, and
// clears s back to the unsubscribed state. It is idempotent (a no-op on
// an already-unsubscribed handle) and best-effort: adapter failures are
// logged, not returned, and s becomes unsubscribed unconditionally.
//
// kstate unlinks eagerly on every Unsubscribe: the name becomes
// single-use until a subsequent creating Subscribe recreates it.
// Existing mappings — including any Transaction already started against
// this name — remain valid until their own teardown.
func (s *State) Unsubscribe() {
	if !s.IsSubscribed() {
		return
	}
	runtime.SetFinalizer(s, nil)

	name := s.name
	if err := shm.Default.Unmap(s.mapping); err != nil {
		logging.Default().Warn("unsubscribe: unmap failed", "name", name, "err", err)
	}
	if err := shm.Default.Unlink(name); err != nil {
		logging.Default().Warn("unsubscribe: unlink failed", "name", name, "err", err)
	}

	s.name = ""
	s.perms = 0
	s.mapping = nil

	defaultObserver.ObserveUnsubscribe(name)
}

// Free releases s. It is idempotent on a nil or already-unsubscribed
// handle. If s is subscribed, Free first unsubscribes it.
//
// Go has no by-reference out-param; the caller is expected to drop its
// own reference to s after Free returns, the same way Transaction.Free
// works.
func (s *State) Free() {
	if s == nil {
		return
	}
	runtime.SetFinalizer(s, nil)
	s.Unsubscribe()
}

// finalizeState is the GC safety net for a subscribed State that was
// never explicitly freed. It only logs; it never touches shared state
// itself, since that would make cleanup timing depend on GC behavior.
func finalizeState(s *State) {
	if s.IsSubscribed() {
		logging.Default().Warn("State finalized while still subscribed", "name", s.name, "id", s.id)
	}
}
