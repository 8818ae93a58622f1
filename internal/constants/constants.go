// Package constants holds package-scope defaults shared across kstate's
// internal packages.
package constants

// NamePrefix is prepended to every user-supplied state name before it is
// handed to the OS shared-memory namespace. It both namespaces the
// library within /dev/shm and is stripped back off when a name is
// reported to the caller.
const NamePrefix = "/kstate."

// MaxNameLength is the maximum length, in bytes, of a user-supplied
// (pre-prefix) state name. Chosen so the canonical name fits comfortably
// within typical shared-memory filename limits.
const MaxNameLength = 254

// Permission bits. READ alone is valid; WRITE alone is normalized to
// READ|WRITE by both Subscribe and Transaction.Start. Any bit outside
// this mask, or a zero value, is invalid.
const (
	PermRead  = 1 << 0
	PermWrite = 1 << 1

	PermMask = PermRead | PermWrite
)

// CreateMode is the POSIX file mode used when a subscribe call creates
// the backing shared-memory object. The original design used 0777
// (world read/write/execute); that is almost certainly too permissive for any
// real deployment, so kstate defaults to owner-only access instead (see
// DESIGN.md, Open Question 2). A future SubscribeOptions can override
// this per-call; no such override exists yet because nothing in this
// port needs one.
const CreateMode = 0600

// PageSize is the fixed size, in bytes, of every state's backing region.
// It is resolved once at package init from the host's actual page size
// (falling back to 4096 if the host can't report one, e.g. under a test
// double), not hard-coded, since kstate only promises "one page" and
// leaves the page size to the host.
var PageSize = resolvePageSize()
