package vfs

import (
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/karrick/godirwalk"
	"github.com/pkg/errors"
	"github.com/theckman/go-flock"

	"github.com/strata-pm/strata/internal/fsutil"
)

// Scratch is the C9 copy-on-write overlay: a host directory tree
// mirroring the virtual path space, plus a whiteout set kept as a
// sidecar in memory rather than as tombstone files, so a lookup never
// needs to stat every host path to know whether it has been deleted.
type Scratch struct {
	root string
	lock *flock.Flock

	mu       sync.Mutex
	whiteout map[string]bool
}

// NewScratch creates a temporary directory named after runtimeID under
// the host temp root and locks it with a flock, so two mounts in the
// same process can never claim the same scratch directory.
func NewScratch(runtimeID string) (*Scratch, error) {
	root, err := ioutil.TempDir("", "strata-"+runtimeID+"-")
	if err != nil {
		return nil, errors.Wrap(err, "scratch: creating temp directory")
	}
	lk := flock.NewFlock(filepath.Join(root, ".lock"))
	ok, err := lk.TryLock()
	if err != nil {
		os.RemoveAll(root)
		return nil, errors.Wrap(err, "scratch: locking")
	}
	if !ok {
		os.RemoveAll(root)
		return nil, errors.New("scratch: directory already locked")
	}
	return &Scratch{root: root, lock: lk, whiteout: make(map[string]bool)}, nil
}

// hostPath maps a virtual path (always "/"-rooted) to its location
// under the scratch root, refusing to ever resolve outside root.
func (s *Scratch) hostPath(virtual string) (string, error) {
	clean := filepath.Join(s.root, filepath.Clean("/"+virtual))
	if !fsutil.HasFilepathPrefix(clean, s.root) {
		return "", errors.Errorf("scratch: path %q escapes scratch root", virtual)
	}
	return clean, nil
}

// IsWhiteout reports whether path has been deleted in the overlay.
func (s *Scratch) IsWhiteout(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.whiteout[path]
}

// SetWhiteout records path as deleted, even if no scratch file ever
// existed there - so a rebuilt scratch still hides the base entry.
func (s *Scratch) SetWhiteout(path string) {
	s.mu.Lock()
	s.whiteout[path] = true
	delete(s.whiteout, "/") // guard against accidental root whiteout
	s.mu.Unlock()
}

// ClearWhiteout un-whiteouts path, called by create per spec.md §4.8.
func (s *Scratch) ClearWhiteout(path string) {
	s.mu.Lock()
	delete(s.whiteout, path)
	s.mu.Unlock()
}

// Stat stats the scratch-resident file at path.
func (s *Scratch) Stat(path string) (os.FileInfo, error) {
	hp, err := s.hostPath(path)
	if err != nil {
		return nil, err
	}
	return os.Lstat(hp)
}

// Exists reports whether path already has a scratch-resident entry.
func (s *Scratch) Exists(path string) bool {
	_, err := s.Stat(path)
	return err == nil
}

// Create makes a zero-length file at path with mode, clearing any
// whiteout, per spec.md §4.8 create.
func (s *Scratch) Create(path string, mode os.FileMode) (*os.File, error) {
	hp, err := s.hostPath(path)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(hp), 0755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(hp, os.O_CREATE|os.O_RDWR|os.O_EXCL, mode)
	if err != nil {
		return nil, err
	}
	s.ClearWhiteout(path)
	return f, nil
}

// Open opens the scratch-resident file at path with the given POSIX
// open flags.
func (s *Scratch) Open(path string, flags int) (*os.File, error) {
	hp, err := s.hostPath(path)
	if err != nil {
		return nil, err
	}
	return os.OpenFile(hp, flags, 0)
}

// Mkdir creates a scratch directory at path.
func (s *Scratch) Mkdir(path string, mode os.FileMode) error {
	hp, err := s.hostPath(path)
	if err != nil {
		return err
	}
	if err := os.Mkdir(hp, mode); err != nil {
		return err
	}
	s.ClearWhiteout(path)
	return nil
}

// Rmdir removes an empty scratch directory, refusing with an error the
// caller maps to ENOTEMPTY if it is not empty.
func (s *Scratch) Rmdir(path string) error {
	hp, err := s.hostPath(path)
	if err != nil {
		return err
	}
	nonEmpty, err := fsutil.IsNonEmptyDir(hp)
	if err != nil {
		return err
	}
	if nonEmpty {
		return errNotEmpty
	}
	if err := os.Remove(hp); err != nil {
		return err
	}
	s.SetWhiteout(path)
	return nil
}

// Unlink removes the scratch file at path, if any, and always records
// a whiteout so the base manifest entry of the same name stays hidden.
func (s *Scratch) Unlink(path string) error {
	hp, err := s.hostPath(path)
	if err != nil {
		return err
	}
	if err := os.Remove(hp); err != nil && !os.IsNotExist(err) {
		return err
	}
	s.SetWhiteout(path)
	return nil
}

// Rename atomically moves the host file from src to dst, recording a
// whiteout at src and clearing any whiteout at dst. Whiteouts are keyed
// by virtual path, so the one at src also hides any base-manifest entry
// at src.
func (s *Scratch) Rename(src, dst string) error {
	hsrc, err := s.hostPath(src)
	if err != nil {
		return err
	}
	hdst, err := s.hostPath(dst)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(hdst), 0755); err != nil {
		return err
	}
	if err := fsutil.RenameWithFallback(hsrc, hdst); err != nil {
		return err
	}
	s.SetWhiteout(src)
	s.ClearWhiteout(dst)
	return nil
}

// CopyUp renders a base blob's content into the scratch tree at path,
// preserving mode, ready for open(O_RDWR). The payload is first written
// to a temp file in the scratch root and then moved into place so a
// concurrent reader never observes a partially written copy-up.
func (s *Scratch) CopyUp(path string, mode os.FileMode, content io.Reader) (*os.File, error) {
	hp, err := s.hostPath(path)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(hp), 0755); err != nil {
		return nil, err
	}

	tmp, err := ioutil.TempFile(s.root, "copyup-")
	if err != nil {
		return nil, err
	}
	tmpPath := tmp.Name()
	if _, err := io.Copy(tmp, content); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, err
	}
	if err := os.Chmod(tmpPath, mode); err != nil {
		os.Remove(tmpPath)
		return nil, err
	}
	if err := fsutil.RenameWithFallback(tmpPath, hp); err != nil {
		os.Remove(tmpPath)
		return nil, err
	}

	s.ClearWhiteout(path)
	return os.OpenFile(hp, os.O_RDWR, 0)
}

// Teardown removes the entire scratch tree and releases its lock,
// guaranteed to run on every mount-exit path. godirwalk collects the
// tree's nodes in one fast pass (lstat-free on most platforms); they
// are then removed deepest-first so directories are always empty by
// the time their own Remove runs.
func (s *Scratch) Teardown() error {
	defer s.lock.Unlock()

	var paths []string
	err := godirwalk.Walk(s.root, &godirwalk.Options{
		Unsorted: true,
		Callback: func(osPathname string, _ *godirwalk.Dirent) error {
			paths = append(paths, osPathname)
			return nil
		},
	})
	if err != nil {
		// Best-effort cleanup even if the walk itself failed partway.
		return os.RemoveAll(s.root)
	}

	sort.Sort(sort.Reverse(sort.StringSlice(paths)))
	for _, p := range paths {
		if p == s.root {
			continue
		}
		os.Remove(p)
	}
	return os.Remove(s.root)
}

var errNotEmpty = errors.New("scratch: directory not empty")
