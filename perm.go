package kstate

import "github.com/kynesim/kstate/internal/constants"

// Perm is a bitmask of permissions requested or held on a State or
// Transaction. Valid values are Read, Write, or Read|Write; Write alone
// is normalized to Read|Write wherever it is accepted.
type Perm uint

const (
	// PermRead grants read access.
	PermRead Perm = constants.PermRead
	// PermWrite grants write access. Requesting PermWrite alone is
	// normalized to PermRead|PermWrite.
	PermWrite Perm = constants.PermWrite

	// PermMask is the set of bits a valid Perm value may set.
	PermMask Perm = constants.PermMask
)
