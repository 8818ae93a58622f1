package kstate

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kynesim/kstate/internal/constants"
)

// validateName checks a user-supplied state name against the grammar:
// nonempty, at most MaxNameLength bytes, ASCII alphanumerics and dots
// only, no leading/trailing dot, no two consecutive dots.
func validateName(name string) error {
	if len(name) == 0 {
		return newError("validate_name", codeInvalidArgument, "name must not be empty")
	}
	if len(name) > constants.MaxNameLength {
		return newError("validate_name", codeInvalidArgument, fmt.Sprintf("name exceeds %d bytes", constants.MaxNameLength))
	}
	if name[0] == '.' || name[len(name)-1] == '.' {
		return newError("validate_name", codeInvalidArgument, "name must not start or end with '.'")
	}
	prevDot := false
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= '0' && c <= '9', c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z':
			prevDot = false
		case c == '.':
			if prevDot {
				return newError("validate_name", codeInvalidArgument, "name must not contain consecutive dots")
			}
			prevDot = true
		default:
			return newError("validate_name", codeInvalidArgument, fmt.Sprintf("name contains invalid character %q", c))
		}
	}
	return nil
}

// canonicalName prepends the library's namespace prefix to a validated
// user-supplied name.
func canonicalName(name string) string {
	return constants.NamePrefix + name
}

// userName strips the library's namespace prefix back off a canonical
// name, for reporting to the caller.
func userName(canonical string) string {
	return strings.TrimPrefix(canonical, constants.NamePrefix)
}

var uniqueNameCounter atomic.Uint64

// UniqueName builds a name of the form
// "<prefix><seconds><microseconds>.<pid>.<counter>", suitable for
// scratch/test states that don't need a human-chosen name. Uniqueness is
// only as good as wall-clock resolution plus the process-wide counter —
// sufficient for tests, not a cryptographic guarantee.
//
// If prefix is empty, the library's canonical prefix is used.
func UniqueName(prefix string) string {
	if prefix == "" {
		prefix = constants.NamePrefix
	}
	now := time.Now()
	counter := uniqueNameCounter.Add(1)
	return fmt.Sprintf("%s%d%d.%d.%d", prefix, now.Unix(), now.Nanosecond()/1000, os.Getpid(), counter)
}

// formatPermBits renders a permission bitmask as used by String().
func formatPermBits(perms Perm) string {
	switch {
	case perms&PermRead != 0 && perms&PermWrite != 0:
		return "read/write"
	case perms&PermRead != 0:
		return "read"
	case perms&PermWrite != 0:
		return "write"
	default:
		return "<no permissions>"
	}
}

// validatePerms checks a permission bitmask: nonzero,
// and a subset of {Read, Write}. WRITE alone is normalized to
// {Read, Write} by the caller, not here.
func validatePerms(perms Perm) error {
	if perms == 0 || perms&^PermMask != 0 {
		return newError("validate_perms", codeInvalidArgument, fmt.Sprintf("invalid permission bitmask %#x", uint(perms)))
	}
	return nil
}

// normalizePerms implements the rule that Write alone is normalized to
// Read|Write.
func normalizePerms(perms Perm) Perm {
	if perms == PermWrite {
		return PermRead | PermWrite
	}
	return perms
}
