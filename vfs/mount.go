package vfs

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"
	"github.com/pkg/errors"

	"github.com/strata-pm/strata"
)

// Mount is the mounted filesystem's state: the manifest it serves
// reads from, the repository list reads fall through to for blob
// payloads, the scratch overlay writes fault into, and the inode/handle
// table. It implements fuseutil.FileSystem.
type Mount struct {
	manifest  *strata.Manifest
	repos     []strata.Repository
	scratch   *Scratch
	table     *Table
	mountTime time.Time
}

// NewMount builds a Mount ready to be wrapped by fuseutil.NewFileSystemServer.
func NewMount(manifest *strata.Manifest, repos []strata.Repository, runtimeID string) (*Mount, error) {
	scratch, err := NewScratch(runtimeID)
	if err != nil {
		return nil, err
	}
	m := &Mount{
		manifest:  manifest,
		repos:     repos,
		scratch:   scratch,
		table:     NewTable(),
		mountTime: time.Now(),
	}
	m.table.BindBase(RootInode, "/", manifest.Root)
	m.table.basePath.m["/"] = RootInode
	return m, nil
}

// Serve mounts m at mountpoint and returns a join function that blocks
// until the mount is unmounted, tearing the scratch overlay down on
// every exit path. Grounded on distri's internal/fuse Mount(), adapted
// to a read-write filesystem.
func Serve(ctx context.Context, mountpoint string, m *Mount) (join func(context.Context) error, err error) {
	server := fuseutil.NewFileSystemServer(m)
	mfs, err := fuse.Mount(mountpoint, server, &fuse.MountConfig{
		FSName:   "strata",
		ReadOnly: false,
	})
	if err != nil {
		return nil, errors.Wrap(err, "vfs: fuse.Mount")
	}
	join = func(ctx context.Context) error {
		defer m.scratch.Teardown()
		return mfs.Join(ctx)
	}
	return join, nil
}

func joinVirtual(parent, name string) string {
	if parent == "/" {
		return "/" + name
	}
	return parent + "/" + name
}

func parentOf(virtual string) string {
	if virtual == "/" {
		return "/"
	}
	p := path.Dir(virtual)
	return p
}

func splitComponents(virtual string) []string {
	trimmed := strings.Trim(virtual, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// lookupBase walks the manifest from the root along virtual, skipping
// EntryMask entries (which hide whatever a lower layer would otherwise
// resolve to at that name - there is no lower layer here, so a mask
// simply behaves as absent).
func (m *Mount) lookupBase(virtual string) (*strata.ManifestEntry, bool) {
	entry, ok := m.manifest.Lookup(splitComponents(virtual)...)
	if !ok || entry.Kind == strata.EntryMask {
		return nil, false
	}
	return entry, true
}

// pathForInode returns the virtual path bound to ino, whether it came
// from the scratch overlay or the base manifest.
func (m *Mount) pathForInode(ino fuseops.InodeID) (string, bool) {
	if ino == RootInode {
		return "/", true
	}
	if p, ok := m.table.ScratchPath(ino); ok {
		return p, true
	}
	if p, _, ok := m.table.Base(ino); ok {
		return p, true
	}
	return "", false
}
