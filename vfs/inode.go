// Package vfs mounts a solved Manifest as a read-write FUSE filesystem:
// reads are served straight from the repository list, writes fault into
// a scratch overlay directory. Grounded on distri's internal/fuse
// package (github.com/jacobsa/fuse/fuseops, fuseutil), generalized from
// a read-only squashfs union to a read-write manifest-plus-scratch
// overlay.
package vfs

import (
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jacobsa/fuse/fuseops"

	"github.com/strata-pm/strata"
)

// RootInode is always the manifest root, per spec.
const RootInode = fuseops.InodeID(1)

// never is used for attribute/entry expiration timestamps on base
// entries: the manifest is immutable for the life of a mount, so the
// kernel can cache those attributes indefinitely.
var never = time.Now().Add(365 * 24 * time.Hour)

// HandleKind distinguishes the four Handle variants of spec.md §3/§4.8.
type HandleKind int

const (
	HandleBlobFile HandleKind = iota
	HandleBlobStream
	HandleScratchFile
	HandleTree
)

// Handle is the open-file/open-dir table entry. Exactly the field group
// matching Kind is populated.
type Handle struct {
	// swapMu guards Kind and the payload fields below against the
	// concurrent copy-up promotion a first WriteFile against a
	// base-backed handle performs; ordinary reads only need RLock.
	swapMu sync.RWMutex

	Kind HandleKind

	// BlobFile: a seekable host-backed reader over a repository payload
	// (a filesystem-backed repository opened its blob directly).
	BlobFile io.ReadSeekCloser

	// BlobStream: a non-seekable async reader; StreamPos and StreamMu
	// serialize sequential reads per spec.md §4.8/§5.
	BlobStream readCloser
	StreamPos  int64
	StreamMu   sync.Mutex

	// ScratchFile: the open host file backing a scratch inode, or a
	// base handle that has been promoted by copy-up.
	ScratchFile *os.File

	// Tree: the inode being read as a directory.
	Tree fuseops.InodeID

	// virtualPath and mode are retained on base-blob handles so a
	// later WriteFile can perform copy-up without re-deriving the
	// path from the inode table.
	virtualPath string
	mode        os.FileMode
}

type readCloser interface {
	Read(p []byte) (int, error)
	Close() error
}

// entryRef pins a base ManifestEntry to the virtual path it was found
// at, since a ManifestEntry on its own does not know its own path.
type entryRef struct {
	path  string
	entry *strata.ManifestEntry
}

const shardCount = 16

func shardFor(id fuseops.InodeID) int { return int(id % shardCount) }

// Table is the C7 inode/handle table: two monotonic id counters and the
// four maps spec.md §4.7 names, sharded across shardCount buckets each
// guarded by its own mutex so lookups under load do not serialize on a
// single global lock.
type Table struct {
	nextInode  uint64 // atomic
	nextHandle uint64 // atomic

	// baseShards maps a base inode to the manifest entry and virtual
	// path it was allocated for.
	baseShards [shardCount]struct {
		mu      sync.RWMutex
		entries map[fuseops.InodeID]entryRef
	}

	// scratchShards map a virtual path to the scratch inode allocated
	// for it (scratch-created or copied-up files), and back.
	scratchShards [shardCount]struct {
		mu   sync.RWMutex
		byID map[fuseops.InodeID]string
		byPath map[string]fuseops.InodeID
	}

	handles struct {
		mu sync.Mutex
		m  map[fuseops.HandleID]*Handle
	}

	basePath struct {
		mu sync.Mutex
		m  map[string]fuseops.InodeID
	}
}

// NewTable builds an empty Table with inode 1 reserved for the root.
func NewTable() *Table {
	t := &Table{nextInode: uint64(RootInode), nextHandle: 0}
	for i := range t.baseShards {
		t.baseShards[i].entries = make(map[fuseops.InodeID]entryRef)
	}
	for i := range t.scratchShards {
		t.scratchShards[i].byID = make(map[fuseops.InodeID]string)
		t.scratchShards[i].byPath = make(map[string]fuseops.InodeID)
	}
	t.handles.m = make(map[fuseops.HandleID]*Handle)
	t.basePath.m = make(map[string]fuseops.InodeID)
	return t
}

// allocInode returns a fresh inode id; inodes are never recycled within
// a mount's lifetime.
func (t *Table) allocInode() fuseops.InodeID {
	return fuseops.InodeID(atomic.AddUint64(&t.nextInode, 1))
}

// allocHandle returns a fresh handle id; 0 is never issued.
func (t *Table) allocHandle() fuseops.HandleID {
	return fuseops.HandleID(atomic.AddUint64(&t.nextHandle, 1))
}

// BindBase records that inode ino is the base manifest entry e found at
// path, allocating a fresh inode if ino is the zero value.
func (t *Table) BindBase(ino fuseops.InodeID, path string, e *strata.ManifestEntry) fuseops.InodeID {
	if ino == 0 {
		ino = t.allocInode()
	}
	s := &t.baseShards[shardFor(ino)]
	s.mu.Lock()
	s.entries[ino] = entryRef{path: path, entry: e}
	s.mu.Unlock()
	return ino
}

// Base looks up the base manifest entry bound to ino.
func (t *Table) Base(ino fuseops.InodeID) (string, *strata.ManifestEntry, bool) {
	s := &t.baseShards[shardFor(ino)]
	s.mu.RLock()
	defer s.mu.RUnlock()
	ref, ok := s.entries[ino]
	return ref.path, ref.entry, ok
}

// GetOrCreateBase returns the stable base inode for path, minting one
// on first lookup and reusing it on every subsequent lookup - the
// kernel relies on a path always resolving to the same inode until it
// is forgotten.
func (t *Table) GetOrCreateBase(path string, e *strata.ManifestEntry) fuseops.InodeID {
	t.basePath.mu.Lock()
	defer t.basePath.mu.Unlock()
	if ino, ok := t.basePath.m[path]; ok {
		return ino
	}
	ino := t.BindBase(0, path, e)
	t.basePath.m[path] = ino
	return ino
}

// BaseInodeForPath finds the base inode bound to path, if any - used to
// answer readdir's ".." entry by finding the inode for a parent path.
func (t *Table) BaseInodeForPath(path string) (fuseops.InodeID, bool) {
	t.basePath.mu.Lock()
	defer t.basePath.mu.Unlock()
	ino, ok := t.basePath.m[path]
	return ino, ok
}

// BindScratch records a freshly allocated or copied-up scratch inode at
// path, allocating a new inode id and returning it.
func (t *Table) BindScratch(path string) fuseops.InodeID {
	ino := t.allocInode()
	s := &t.scratchShards[shardFor(ino)]
	s.mu.Lock()
	s.byID[ino] = path
	s.byPath[path] = ino
	s.mu.Unlock()
	return ino
}

// ScratchPath returns the virtual path a scratch inode was bound to.
func (t *Table) ScratchPath(ino fuseops.InodeID) (string, bool) {
	s := &t.scratchShards[shardFor(ino)]
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byID[ino]
	return p, ok
}

// ScratchInode returns the inode bound to a scratch path, if any.
func (t *Table) ScratchInode(path string) (fuseops.InodeID, bool) {
	for i := range t.scratchShards {
		s := &t.scratchShards[i]
		s.mu.RLock()
		ino, ok := s.byPath[path]
		s.mu.RUnlock()
		if ok {
			return ino, true
		}
	}
	return 0, false
}

// UnbindScratch removes the scratch binding for path (used by rename's
// source side and by teardown), returning the inode it had, if any.
func (t *Table) UnbindScratch(path string) (fuseops.InodeID, bool) {
	for i := range t.scratchShards {
		s := &t.scratchShards[i]
		s.mu.Lock()
		ino, ok := s.byPath[path]
		if ok {
			delete(s.byPath, path)
			delete(s.byID, ino)
		}
		s.mu.Unlock()
		if ok {
			return ino, true
		}
	}
	return 0, false
}

// RebindScratch moves a scratch inode's recorded path, for rename.
func (t *Table) RebindScratch(ino fuseops.InodeID, newPath string) {
	s := &t.scratchShards[shardFor(ino)]
	s.mu.Lock()
	if old, ok := s.byID[ino]; ok {
		delete(s.byPath, old)
	}
	s.byID[ino] = newPath
	s.byPath[newPath] = ino
	s.mu.Unlock()
}

// NewHandle allocates and records a Handle, returning its id.
func (t *Table) NewHandle(h *Handle) fuseops.HandleID {
	t.handles.mu.Lock()
	defer t.handles.mu.Unlock()
	id := t.allocHandle()
	t.handles.m[id] = h
	return id
}

// GetHandle looks up a previously allocated handle.
func (t *Table) GetHandle(id fuseops.HandleID) (*Handle, bool) {
	t.handles.mu.Lock()
	defer t.handles.mu.Unlock()
	h, ok := t.handles.m[id]
	return h, ok
}

// ReleaseHandle frees a handle id; handles are freed on close, unlike
// inodes.
func (t *Table) ReleaseHandle(id fuseops.HandleID) (*Handle, bool) {
	t.handles.mu.Lock()
	defer t.handles.mu.Unlock()
	h, ok := t.handles.m[id]
	delete(t.handles.m, id)
	return h, ok
}

// synthesizeAttributes builds the InodeAttributes for a base manifest
// entry, per spec.md §4.8 getattr: directory size is its child count,
// nlink is 2 plus the number of child directories, blob nlink is 1, and
// all time fields default to mountTime.
func synthesizeAttributes(e *strata.ManifestEntry, mountTime time.Time) fuseops.InodeAttributes {
	attr := fuseops.InodeAttributes{
		Atime: mountTime,
		Mtime: mountTime,
		Ctime: mountTime,
	}
	switch e.Kind {
	case strata.EntryTree:
		attr.Size = uint64(len(e.Children))
		nlink := uint32(2)
		for _, c := range e.Children {
			if c.Kind == strata.EntryTree {
				nlink++
			}
		}
		attr.Nlink = nlink
		attr.Mode = os.ModeDir | 0755
	case strata.EntrySymlink:
		attr.Size = uint64(e.Size)
		attr.Nlink = 1
		attr.Mode = os.ModeSymlink | 0777
	default: // EntryBlob
		attr.Size = uint64(e.Size)
		attr.Nlink = 1
		mode := os.FileMode(e.Mode)
		if mode == 0 {
			mode = 0644
		}
		attr.Mode = mode
	}
	return attr
}

// hostAttributes mirrors a scratch host file's os.FileInfo into
// InodeAttributes, per spec.md §4.8 getattr for scratch inodes.
func hostAttributes(fi os.FileInfo) fuseops.InodeAttributes {
	return fuseops.InodeAttributes{
		Size:  uint64(fi.Size()),
		Nlink: 1,
		Mode:  fi.Mode(),
		Atime: fi.ModTime(),
		Mtime: fi.ModTime(),
		Ctime: fi.ModTime(),
	}
}
