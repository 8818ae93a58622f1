package constants

import (
	"golang.org/x/sys/unix"

	"github.com/kynesim/kstate/internal/config"
)

// resolvePageSize asks the kernel for its page size. Its result
// initializes the PageSize var (rather than a bare const) so tests can
// override PageSize to exercise boundary conditions without depending
// on the host's actual page size.
//
// config.PageSizeOverride (KSTATE_TEST_PAGE_SIZE) takes priority over
// the host value, so boundary-condition tests can force a small page
// size without needing a kernel that actually uses one.
func resolvePageSize() int {
	if n, ok := config.PageSizeOverride(); ok {
		return n
	}
	if sz := unix.Getpagesize(); sz > 0 {
		return sz
	}
	return 4096
}
