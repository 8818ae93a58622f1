// Package shm is the shared-mapping adapter: the only package in kstate
// that touches raw OS shared-memory primitives (open/create, truncate,
// mmap with protection flags, mprotect, munmap, unlink). Every other
// package in the module goes through the Adapter interface defined here
// instead of touching syscalls directly.
package shm

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/kynesim/kstate/internal/logging"
)

// Protection flags, re-exported so callers never import golang.org/x/sys
// directly.
const (
	ProtRead      = unix.PROT_READ
	ProtReadWrite = unix.PROT_READ | unix.PROT_WRITE
)

// Adapter is the shared-mapping adapter's interface. Real is the only
// production implementation; tests may substitute a fake that doesn't
// need a real shm-capable kernel for components that don't care about
// actual OS mapping behavior (see the root package's testing.go).
type Adapter interface {
	// OpenOrCreate opens the shared-memory object named by the
	// canonical name. If create is true and the object doesn't exist,
	// it is created with the given mode and truncated to size;
	// created reports whether this call created it. If create is
	// false and the object doesn't exist, OpenOrCreate returns
	// unix.ENOENT.
	OpenOrCreate(name string, write bool, create bool, size int, mode uint32) (fd int, created bool, err error)

	// Size returns the current size of the open shared-memory object.
	Size(fd int) (int, error)

	// Map maps the first size bytes of fd with the given protection.
	Map(fd int, size int, prot int) ([]byte, error)

	// Protect changes the protection of a previously mapped region in
	// place (used to downgrade a read-only transaction's working
	// buffer after it has been initialized from the live bytes).
	Protect(mem []byte, prot int) error

	// Unmap unmaps a previously mapped region.
	Unmap(mem []byte) error

	// MapAnonymous creates a private, anonymous read-write mapping of
	// size bytes not backed by any file descriptor (used for a
	// transaction's private snapshot-derived working buffer).
	MapAnonymous(size int) ([]byte, error)

	// Close closes a file descriptor returned by OpenOrCreate.
	Close(fd int) error

	// Unlink removes the shared-memory object's name from the
	// namespace. Existing mappings and file descriptors remain valid
	// until their own teardown; only future OpenOrCreate calls are
	// affected.
	Unlink(name string) error
}

// Real is the production Adapter, backed by golang.org/x/sys/unix.
//
// Linux implements POSIX shared memory as a tmpfs mounted at /dev/shm;
// glibc's shm_open is itself just open() against that path with the
// leading slash preserved and no further path segments allowed. kstate
// reproduces that directly with unix.Open rather than cgo-binding
// shm_open, so the adapter stays pure Go.
type Real struct{}

// shmPath maps a canonical kstate name (already prefixed, e.g.
// "/kstate.Fred.A") onto its backing path under /dev/shm.
func shmPath(name string) string {
	return "/dev/shm" + name
}

func (Real) OpenOrCreate(name string, write bool, create bool, size int, mode uint32) (int, bool, error) {
	flags := unix.O_CLOEXEC
	if write {
		flags |= unix.O_RDWR
	} else {
		flags |= unix.O_RDONLY
	}

	path := shmPath(name)
	created := false

	fd, err := unix.Open(path, flags, mode)
	if err != nil {
		if err != unix.ENOENT || !create {
			return -1, false, err
		}
		fd, err = unix.Open(path, flags|unix.O_CREAT|unix.O_EXCL, mode)
		if err != nil {
			if err == unix.EEXIST {
				// Lost a race with another creator; just open it.
				fd, err = unix.Open(path, flags, mode)
				if err != nil {
					return -1, false, err
				}
				return fd, false, nil
			}
			return -1, false, err
		}
		created = true
		if err := unix.Ftruncate(fd, int64(size)); err != nil {
			unix.Close(fd)
			return -1, false, err
		}
	}

	logging.Default().Debug("shm open", "path", path, "created", created, "write", write)
	return fd, created, nil
}

func (Real) Size(fd int) (int, error) {
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return 0, err
	}
	return int(st.Size), nil
}

func (Real) Map(fd int, size int, prot int) ([]byte, error) {
	mem, err := unix.Mmap(fd, 0, size, prot, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap: %w", err)
	}
	return mem, nil
}

func (Real) MapAnonymous(size int) ([]byte, error) {
	mem, err := unix.Mmap(-1, 0, size, ProtReadWrite, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("mmap anonymous: %w", err)
	}
	return mem, nil
}

func (Real) Protect(mem []byte, prot int) error {
	if len(mem) == 0 {
		return nil
	}
	return unix.Mprotect(mem, prot)
}

func (Real) Unmap(mem []byte) error {
	if len(mem) == 0 {
		return nil
	}
	return unix.Munmap(mem)
}

func (Real) Close(fd int) error {
	return unix.Close(fd)
}

func (Real) Unlink(name string) error {
	err := unix.Unlink(shmPath(name))
	if err != nil && err != unix.ENOENT {
		return err
	}
	return nil
}

// Default is the adapter used by the public kstate API. It is a package
// variable, not a hard-coded `Real{}` literal at every call site, so
// tests can swap it out process-wide when needed (see state_test.go).
var Default Adapter = Real{}
