// Package fsutil provides the host-filesystem safety helpers the
// scratch overlay needs: path-prefix containment checks and an atomic
// rename that falls back to copy+remove across device boundaries.
// Trimmed from golang-dep's internal/fs package, which carried a
// Windows build as well; strata's VFS only ever mounts on POSIX hosts.
// The cross-device fallback copy delegates to github.com/termie/go-shutil
// rather than a hand-rolled walk, the way the teacher's internal/fs used
// to do before switching to shutil for its own CopyDir.
package fsutil

import (
	"io"
	"os"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"github.com/termie/go-shutil"
)

// HasFilepathPrefix determines if path starts with prefix from the
// point of view of the filesystem, treating path components atomically
// so that /foo and /foobar are never considered to share a prefix.
func HasFilepathPrefix(path, prefix string) bool {
	path = strings.TrimSuffix(path, string(os.PathSeparator))
	prefix = strings.TrimSuffix(prefix, string(os.PathSeparator))
	if prefix == "" {
		return true
	}
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix+string(os.PathSeparator))
}

// RenameWithFallback attempts to rename a file or directory, falling
// back to copying in the event of a cross-device link error (EXDEV). If
// the fallback copy succeeds, src is still removed, emulating normal
// rename semantics.
func RenameWithFallback(src, dst string) error {
	if _, err := os.Stat(src); err != nil {
		return errors.Wrapf(err, "cannot stat %s", src)
	}

	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}

	terr, ok := err.(*os.LinkError)
	if !ok || terr.Err != syscall.EXDEV {
		return err
	}

	if dir, derr := IsDir(src); derr == nil && dir {
		if err := shutil.CopyTree(src, dst, nil); err != nil {
			return errors.Wrap(err, "copying directory failed")
		}
	} else {
		if err := shutil.CopyFile(src, dst, false); err != nil {
			return errors.Wrap(err, "copying file failed")
		}
	}
	return errors.Wrapf(os.RemoveAll(src), "cannot delete %s", src)
}

// IsDir reports whether name exists and is a directory.
func IsDir(name string) (bool, error) {
	fi, err := os.Stat(name)
	if err != nil {
		return false, err
	}
	return fi.IsDir(), nil
}

// IsNonEmptyDir reports whether name is a directory with at least one
// entry - used by rmdir's ENOTEMPTY check.
func IsNonEmptyDir(name string) (bool, error) {
	isDir, err := IsDir(name)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if !isDir {
		return false, nil
	}
	f, err := os.Open(name)
	if err != nil {
		return false, err
	}
	defer f.Close()
	_, err = f.Readdirnames(1)
	switch err {
	case io.EOF:
		return false, nil
	case nil:
		return true, nil
	default:
		return false, err
	}
}
