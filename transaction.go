package kstate

import (
	"bytes"
	"runtime"

	"github.com/kynesim/kstate/internal/constants"
	"github.com/kynesim/kstate/internal/logging"
	"github.com/kynesim/kstate/internal/shm"
)

// Transaction is an optimistic-concurrency-control handle for mutating a
// State's shared bytes. Start takes a private, in-process snapshot and
// working copy; Commit succeeds only if the shared region is still
// byte-for-byte identical to the snapshot, in which case the working
// copy is written back. A conflicting Commit fails but leaves the
// transaction active, so callers can still Abort it.
//
// A writable Transaction opens its own read/write mapping of the region
// at Start, independent of the State it was started from; a read-only
// Transaction holds only its private copy. Either way, once started, a
// Transaction is unaffected by that State being unsubscribed or freed.
type Transaction struct {
	id     uint64
	name   string // canonical name, captured at Start
	perms  Perm
	active bool

	snapshot []byte // compare baseline, fixed at Start
	working  []byte // private anonymous mapping, read-only when tx holds no Write permission; returned by Data

	live []byte // this transaction's own PROT_READ|PROT_WRITE mapping; nil for a read-only transaction
}

// NewTransaction allocates an inactive Transaction handle and assigns it
// a fresh, process-wide-unique id. It never fails.
func NewTransaction() *Transaction {
	return &Transaction{id: allocTransactionID()}
}

// IsActive reports whether tx currently holds live resources — true
// from a successful Start until Commit succeeds, or Abort/Free is
// called.
func (tx *Transaction) IsActive() bool {
	return tx != nil && tx.active
}

// ID returns tx's identifier while active, and 0 otherwise.
func (tx *Transaction) ID() uint64 {
	if !tx.IsActive() {
		return 0
	}
	return tx.id
}

// Name returns the user-supplied name tx is operating on, or "" if tx
// is not active.
func (tx *Transaction) Name() string {
	if !tx.IsActive() {
		return ""
	}
	return userName(tx.name)
}

// Permissions returns the permission bitmask tx was started with, or 0
// if tx is not active.
func (tx *Transaction) Permissions() Perm {
	if !tx.IsActive() {
		return 0
	}
	return tx.perms
}

// Data returns tx's private working copy of the state's bytes. Callers
// mutate this slice directly; the mutation only becomes visible to
// other subscribers on a successful Commit. Returns nil if tx is not
// active.
func (tx *Transaction) Data() []byte {
	if !tx.IsActive() {
		return nil
	}
	return tx.working
}

// Start begins a transaction against s with the given permissions.
// perms must be a nonempty subset of s's own subscribed permissions;
// Write alone is normalized to Read|Write. Start takes an immediate
// snapshot of s's current bytes; nothing s does afterwards — including
// Unsubscribe — affects an already-started Transaction.
//
// Start fails with ErrInvalidArgument if tx is already active.
func (tx *Transaction) Start(s *State, perms Perm) error {
	if tx == nil {
		return newError("start", codeInvalidArgument, "nil Transaction")
	}
	if tx.active {
		return newError("start", codeInvalidArgument, "already active")
	}
	if !s.IsSubscribed() {
		return newError("start", codeInvalidArgument, "State is not subscribed")
	}

	perms = normalizePerms(perms)
	if err := validatePerms(perms); err != nil {
		return err
	}
	if perms&^s.Permissions() != 0 {
		e := newNamedError("start", s.name, codeInvalidArgument, "transaction permissions exceed the state's subscribed permissions")
		return e
	}

	snapshot := append([]byte(nil), s.Data()...)

	working, err := shm.Default.MapAnonymous(len(snapshot))
	if err != nil {
		return adapterError("start", s.name, err)
	}
	copy(working, snapshot)

	if perms&PermWrite == 0 {
		if err := shm.Default.Protect(working, shm.ProtRead); err != nil {
			shm.Default.Unmap(working)
			return adapterError("start", s.name, err)
		}
	}

	var live []byte
	if perms&PermWrite != 0 {
		mem, err := openWritableMapping(s.name)
		if err != nil {
			shm.Default.Unmap(working)
			return err
		}
		live = mem
	}

	tx.name = s.name
	tx.perms = perms
	tx.snapshot = snapshot
	tx.working = working
	tx.live = live
	tx.active = true

	runtime.SetFinalizer(tx, finalizeTransaction)

	defaultObserver.ObserveTransactionStart(tx.name)
	logging.Default().Debug("transaction started", "name", tx.name, "id", tx.id, "perms", formatPermBits(perms))
	return nil
}

// openWritableMapping opens the existing shared-memory object named
// canonical for read/write, independent of whatever mapping a State may
// hold for it.
func openWritableMapping(canonical string) ([]byte, error) {
	fd, _, err := shm.Default.OpenOrCreate(canonical, true, false, constants.PageSize, constants.CreateMode)
	if err != nil {
		return nil, adapterError("start", canonical, err)
	}

	mem, err := shm.Default.Map(fd, constants.PageSize, shm.ProtReadWrite)
	if err != nil {
		shm.Default.Close(fd)
		return nil, adapterError("start", canonical, err)
	}
	if cerr := shm.Default.Close(fd); cerr != nil {
		logging.Default().Warn("start: close fd failed", "name", canonical, "err", cerr)
	}
	return mem, nil
}

// Commit compares the shared region against tx's snapshot; if they
// still match byte-for-byte, tx's working copy is written into the
// shared region and Commit succeeds. Otherwise Commit fails with
// ErrConflict and tx remains active, so the caller can still Abort it
// or retry with a fresh Transaction. Both ErrConflict and ErrNotPermitted
// still map to -EPERM through Errno, but callers that want to
// distinguish "retry" from "give up" should use IsConflict rather than
// comparing Errno values.
//
// The compare and the copy are not atomic with respect to other
// committers: two transactions whose snapshots both still match can
// both pass the compare and both copy, leaving a mix of their bytes in
// the shared region. kstate takes no lock around this step.
//
// Commit fails with ErrNotPermitted if tx was not started with Write
// permission, and with ErrInvalidArgument if tx is not active.
func (tx *Transaction) Commit() error {
	if !tx.IsActive() {
		return newError("commit", codeInvalidArgument, "transaction is not active")
	}
	if tx.perms&PermWrite == 0 {
		return newNamedError("commit", tx.name, codeNotPermitted, "transaction does not hold write permission")
	}

	if !bytes.Equal(tx.live, tx.snapshot) {
		defaultObserver.ObserveTransactionCommit(tx.name, true)
		logging.Default().Debug("commit conflict", "name", tx.name, "id", tx.id)
		return newNamedError("commit", tx.name, codeConflict, "shared state changed since transaction start")
	}

	copy(tx.live, tx.working)
	copy(tx.snapshot, tx.working)

	name := tx.name
	tx.teardown()
	defaultObserver.ObserveTransactionCommit(name, false)
	logging.Default().Debug("committed", "name", name, "id", tx.id)
	return nil
}

// Abort discards tx's working copy without writing it back, and
// releases tx's resources. It succeeds after a failed Commit, but fails
// with ErrInvalidArgument on a transaction that is already inactive —
// never started, or already committed/aborted.
func (tx *Transaction) Abort() error {
	if !tx.IsActive() {
		return newError("abort", codeInvalidArgument, "transaction is not active")
	}
	id, name := tx.id, tx.name
	tx.teardown()
	defaultObserver.ObserveTransactionAbort(name)
	logging.Default().Debug("aborted", "id", id)
	return nil
}

// Free releases tx. It is idempotent on a nil or already-inactive
// handle — unlike Abort, it never reports an error for that case. If tx
// is active, Free aborts it.
func (tx *Transaction) Free() {
	if tx == nil {
		return
	}
	if tx.IsActive() {
		_ = tx.Abort()
	}
}

// teardown releases tx's live and working mappings, if any, and clears
// it back to the inactive state.
func (tx *Transaction) teardown() {
	runtime.SetFinalizer(tx, nil)
	if tx.live != nil {
		if err := shm.Default.Unmap(tx.live); err != nil {
			logging.Default().Warn("transaction teardown: unmap failed", "name", tx.name, "err", err)
		}
	}
	if tx.working != nil {
		if err := shm.Default.Unmap(tx.working); err != nil {
			logging.Default().Warn("transaction teardown: unmap working failed", "name", tx.name, "err", err)
		}
	}
	tx.name = ""
	tx.perms = 0
	tx.snapshot = nil
	tx.working = nil
	tx.live = nil
	tx.active = false
}

// finalizeTransaction is the GC safety net for an active Transaction
// that was never explicitly committed or aborted. It only logs.
func finalizeTransaction(tx *Transaction) {
	if tx.IsActive() {
		logging.Default().Warn("Transaction finalized while still active", "name", tx.name, "id", tx.id)
	}
}
