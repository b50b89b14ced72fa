package vfs

import (
	"os"
	"syscall"

	"github.com/jacobsa/fuse"
)

// mapIOError maps a host os error to the FUSE errno spec.md §4.8
// assigns it, falling through to EIO for anything unrecognized.
func mapIOError(err error) error {
	switch {
	case err == nil:
		return nil
	case os.IsNotExist(err):
		return fuse.ENOENT
	case os.IsPermission(err):
		return syscall.EACCES
	case err == errNotEmpty:
		return syscall.ENOTEMPTY
	default:
		return fuse.EIO
	}
}
