package vfs

import (
	"context"
	stderrors "errors"
	"io"
	"os"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"
	"github.com/pkg/errors"

	"github.com/strata-pm/strata"
)

// resolve answers the C8 lookup operation for a virtual path: a
// whiteout is ENOENT regardless of what the base manifest holds; a
// scratch-resident entry shadows the base manifest; otherwise the base
// manifest is consulted. Shared by LookUpInode, GetInodeAttributes, and
// readdir's ".." resolution.
func (m *Mount) resolve(virtual string) (fuseops.InodeID, fuseops.InodeAttributes, error) {
	if virtual == "/" {
		return RootInode, synthesizeAttributes(m.manifest.Root, m.mountTime), nil
	}
	if m.scratch.IsWhiteout(virtual) {
		return 0, fuseops.InodeAttributes{}, fuse.ENOENT
	}
	if fi, err := m.scratch.Stat(virtual); err == nil {
		ino, ok := m.table.ScratchInode(virtual)
		if !ok {
			ino = m.table.BindScratch(virtual)
		}
		return ino, hostAttributes(fi), nil
	}
	entry, ok := m.lookupBase(virtual)
	if !ok {
		return 0, fuseops.InodeAttributes{}, fuse.ENOENT
	}
	return m.table.GetOrCreateBase(virtual, entry), synthesizeAttributes(entry, m.mountTime), nil
}

func (m *Mount) expirationFor(ino fuseops.InodeID) time.Time {
	if _, ok := m.table.ScratchPath(ino); ok {
		return time.Now().Add(scratchExpiration)
	}
	return never
}

const scratchExpiration = time.Second

func (m *Mount) StatFS(ctx context.Context, op *fuseops.StatFSOp) error {
	var blocks, files uint64
	var walk func(e *strata.ManifestEntry)
	walk = func(e *strata.ManifestEntry) {
		if e == nil {
			return
		}
		switch e.Kind {
		case strata.EntryTree:
			for _, c := range e.Children {
				walk(c)
			}
		case strata.EntryBlob, strata.EntrySymlink:
			blocks += uint64(e.Size+4095) / 4096
			files++
		}
	}
	walk(m.manifest.Root)
	op.BlockSize = 4096
	op.Blocks = blocks
	op.BlocksFree = 0
	op.BlocksAvailable = 0
	op.IoSize = 65536
	op.Inodes = files
	op.InodesFree = 0
	return nil
}

func (m *Mount) LookUpInode(ctx context.Context, op *fuseops.LookUpInodeOp) error {
	ppath, ok := m.pathForInode(op.Parent)
	if !ok {
		return fuse.EIO
	}
	virtual := joinVirtual(ppath, op.Name)
	ino, attr, err := m.resolve(virtual)
	if err != nil {
		return err
	}
	exp := m.expirationFor(ino)
	op.Entry = fuseops.ChildInodeEntry{
		Child:                ino,
		Attributes:           attr,
		AttributesExpiration: exp,
		EntryExpiration:      exp,
	}
	return nil
}

func (m *Mount) GetInodeAttributes(ctx context.Context, op *fuseops.GetInodeAttributesOp) error {
	path, ok := m.pathForInode(op.Inode)
	if !ok {
		return fuse.ENOENT
	}
	_, attr, err := m.resolve(path)
	if err != nil {
		return err
	}
	op.Attributes = attr
	op.AttributesExpiration = m.expirationFor(op.Inode)
	return nil
}

// SetInodeAttributes implements spec.md §4.8 setattr: size changes are
// only honored on scratch inodes (this is also how O_TRUNC on open
// reaches the filesystem - the kernel resolves a truncating open into a
// setattr call); a mode change on a base inode is reflected back in the
// returned attributes without mutating the read-only store. Uid and gid
// changes are not applied to any inode.
func (m *Mount) SetInodeAttributes(ctx context.Context, op *fuseops.SetInodeAttributesOp) error {
	path, ok := m.pathForInode(op.Inode)
	if !ok {
		return fuse.ENOENT
	}

	if scratchPath, ok := m.table.ScratchPath(op.Inode); ok {
		hp, err := m.scratch.hostPath(scratchPath)
		if err != nil {
			return fuse.EIO
		}
		if op.Size != nil {
			if err := os.Truncate(hp, int64(*op.Size)); err != nil {
				return mapIOError(err)
			}
		}
		if op.Mode != nil {
			if err := os.Chmod(hp, *op.Mode); err != nil {
				return mapIOError(err)
			}
		}
		fi, err := os.Lstat(hp)
		if err != nil {
			return mapIOError(err)
		}
		op.Attributes = hostAttributes(fi)
		op.AttributesExpiration = m.expirationFor(op.Inode)
		return nil
	}

	entry, ok := m.lookupBase(path)
	if !ok {
		return fuse.ENOENT
	}
	if op.Size != nil {
		return fuse.EROFS
	}
	attr := synthesizeAttributes(entry, m.mountTime)
	if op.Mode != nil {
		attr.Mode = *op.Mode
	}
	op.Attributes = attr
	op.AttributesExpiration = never
	return nil
}

func (m *Mount) ForgetInode(ctx context.Context, op *fuseops.ForgetInodeOp) error {
	// Inodes are never recycled within a mount's lifetime (spec.md
	// §4.7); forgetting is purely advisory bookkeeping the kernel uses
	// to bound its own cache, so there is nothing for the table to do.
	return nil
}

func (m *Mount) OpenDir(ctx context.Context, op *fuseops.OpenDirOp) error {
	path, ok := m.pathForInode(op.Inode)
	if !ok {
		return fuse.ENOENT
	}
	op.Handle = m.table.NewHandle(&Handle{Kind: HandleTree, Tree: op.Inode, virtualPath: path})
	return nil
}

func (m *Mount) ReleaseDirHandle(ctx context.Context, op *fuseops.ReleaseDirHandleOp) error {
	m.table.ReleaseHandle(op.Handle)
	return nil
}

// ReadDir implements spec.md §4.8 readdir: "." and ".." at offsets 0
// and 1, then scratch children (skipping whiteouts), then base-manifest
// children in name order, not already emitted and not whited out. Mask
// entries are skipped.
func (m *Mount) ReadDir(ctx context.Context, op *fuseops.ReadDirOp) error {
	h, ok := m.table.GetHandle(op.Handle)
	if !ok || h.Kind != HandleTree {
		return syscall.EBADF
	}
	virtual := h.virtualPath

	parentInode := RootInode
	if virtual != "/" {
		ppath := parentOf(virtual)
		if ino, ok := m.table.BaseInodeForPath(ppath); ok {
			parentInode = ino
		} else if ino, ok := m.table.ScratchInode(ppath); ok {
			parentInode = ino
		}
	}

	entries := []fuseutil.Dirent{
		{Offset: 1, Inode: op.Inode, Name: ".", Type: fuseutil.DT_Directory},
		{Offset: 2, Inode: parentInode, Name: "..", Type: fuseutil.DT_Directory},
	}

	seen := map[string]bool{".": true, "..": true}

	scratchDir, err := m.scratch.hostPath(virtual)
	if err == nil {
		if fis, err := os.ReadDir(scratchDir); err == nil {
			for _, fi := range fis {
				name := fi.Name()
				if name == ".lock" {
					continue
				}
				childPath := joinVirtual(virtual, name)
				if m.scratch.IsWhiteout(childPath) {
					continue
				}
				seen[name] = true
				typ := fuseutil.DT_File
				if fi.IsDir() {
					typ = fuseutil.DT_Directory
				}
				ino, ok := m.table.ScratchInode(childPath)
				if !ok {
					ino = m.table.BindScratch(childPath)
				}
				entries = append(entries, fuseutil.Dirent{
					Offset: fuseops.DirOffset(len(entries) + 1),
					Inode:  ino,
					Name:   name,
					Type:   typ,
				})
			}
		}
	}

	if base, ok := m.lookupBase(virtual); ok && base.Kind == strata.EntryTree {
		names := make([]string, 0, len(base.Children))
		for name := range base.Children {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			child := base.Children[name]
			if seen[name] || child.Kind == strata.EntryMask {
				continue
			}
			if m.scratch.IsWhiteout(joinVirtual(virtual, name)) {
				continue
			}
			typ := fuseutil.DT_File
			if child.Kind == strata.EntryTree {
				typ = fuseutil.DT_Directory
			} else if child.Kind == strata.EntrySymlink {
				typ = fuseutil.DT_Link
			}
			ino := m.table.GetOrCreateBase(joinVirtual(virtual, name), child)
			entries = append(entries, fuseutil.Dirent{
				Offset: fuseops.DirOffset(len(entries) + 1),
				Inode:  ino,
				Name:   name,
				Type:   typ,
			})
		}
	}

	if int(op.Offset) > len(entries) {
		return fuse.EIO
	}
	for _, e := range entries[op.Offset:] {
		n := fuseutil.WriteDirent(op.Dst[op.BytesRead:], e)
		if n == 0 {
			break
		}
		op.BytesRead += n
	}
	return nil
}

func (m *Mount) ReadSymlink(ctx context.Context, op *fuseops.ReadSymlinkOp) error {
	path, ok := m.pathForInode(op.Inode)
	if !ok {
		return fuse.ENOENT
	}
	entry, ok := m.lookupBase(path)
	if !ok || entry.Kind != strata.EntrySymlink {
		return fuse.EINVAL
	}
	content, closer, err := m.openBlobContent(ctx, entry)
	if err != nil {
		return err
	}
	defer closer.Close()
	data, err := io.ReadAll(content)
	if err != nil {
		return fuse.EIO
	}
	op.Target = string(data)
	return nil
}

// openBlobContent tries each repository in order for entry's digest,
// per spec.md §4.8 readlink/open, falling through on TryNextRepo.
func (m *Mount) openBlobContent(ctx context.Context, entry *strata.ManifestEntry) (io.Reader, io.Closer, error) {
	for _, repo := range m.repos {
		payload, err := repo.OpenPayload(ctx, entry.Digest)
		if err != nil {
			var rerr *strata.RepoError
			if stderrors.As(err, &rerr) && rerr.TryNextRepo {
				continue
			}
			return nil, nil, fuse.EIO
		}
		if payload.Seekable != nil {
			return payload.Seekable, payload.Seekable, nil
		}
		return payload.Stream, payload.Stream, nil
	}
	return nil, nil, fuse.ENOENT
}

func (m *Mount) OpenFile(ctx context.Context, op *fuseops.OpenFileOp) error {
	path, ok := m.pathForInode(op.Inode)
	if !ok {
		return fuse.ENOENT
	}

	if scratchPath, ok := m.table.ScratchPath(op.Inode); ok {
		hp, err := m.scratch.hostPath(scratchPath)
		if err != nil {
			return fuse.EIO
		}
		f, err := os.OpenFile(hp, os.O_RDWR, 0)
		if err != nil {
			f, err = os.OpenFile(hp, os.O_RDONLY, 0)
		}
		if err != nil {
			return mapIOError(err)
		}
		op.Handle = m.table.NewHandle(&Handle{Kind: HandleScratchFile, ScratchFile: f, virtualPath: path})
		return nil
	}

	entry, ok := m.lookupBase(path)
	if !ok || entry.Kind == strata.EntryTree {
		return fuse.EISDIR
	}
	mode := os.FileMode(entry.Mode)
	if mode == 0 {
		mode = 0644
	}
	content, _, err := m.openBlobContent(ctx, entry)
	if err != nil {
		return err
	}
	if seekable, ok := content.(io.ReadSeekCloser); ok {
		op.Handle = m.table.NewHandle(&Handle{
			Kind:        HandleBlobFile,
			BlobFile:    seekable,
			virtualPath: path,
			mode:        mode,
		})
		return nil
	}
	op.Handle = m.table.NewHandle(&Handle{
		Kind:        HandleBlobStream,
		BlobStream:  content.(readCloser),
		virtualPath: path,
		mode:        mode,
	})
	return nil
}

func (m *Mount) ReleaseFileHandle(ctx context.Context, op *fuseops.ReleaseFileHandleOp) error {
	h, ok := m.table.ReleaseHandle(op.Handle)
	if !ok {
		return nil
	}
	h.swapMu.Lock()
	defer h.swapMu.Unlock()
	switch h.Kind {
	case HandleScratchFile:
		h.ScratchFile.Close()
	case HandleBlobFile:
		h.BlobFile.Close()
	case HandleBlobStream:
		h.BlobStream.Close()
	}
	return nil
}

// ReadFile implements spec.md §4.8 read: seekable handles read at the
// offset with ReadAt when the payload supports it, and otherwise seek
// and read while holding the handle's StreamMu; streaming handles
// require offset to
// match the current stream position, hold the stream mutex, and
// advance the position atomically.
func (m *Mount) ReadFile(ctx context.Context, op *fuseops.ReadFileOp) error {
	h, ok := m.table.GetHandle(op.Handle)
	if !ok {
		return syscall.EBADF
	}
	h.swapMu.RLock()
	defer h.swapMu.RUnlock()

	switch h.Kind {
	case HandleScratchFile:
		n, err := h.ScratchFile.ReadAt(op.Dst, op.Offset)
		op.BytesRead = n
		if err == io.EOF {
			return nil
		}
		return mapIOError(err)
	case HandleBlobFile:
		if ra, ok := h.BlobFile.(io.ReaderAt); ok {
			read, err := ra.ReadAt(op.Dst, op.Offset)
			op.BytesRead = read
			if err == io.EOF {
				return nil
			}
			return mapIOError(err)
		}
		h.StreamMu.Lock()
		defer h.StreamMu.Unlock()
		if _, err := h.BlobFile.Seek(op.Offset, io.SeekStart); err != nil {
			return fuse.EIO
		}
		read, err := io.ReadFull(h.BlobFile, op.Dst)
		op.BytesRead = read
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil
		}
		return mapIOError(err)
	case HandleBlobStream:
		h.StreamMu.Lock()
		defer h.StreamMu.Unlock()
		if op.Offset != h.StreamPos {
			return fuse.EINVAL
		}
		n, err := h.BlobStream.Read(op.Dst)
		op.BytesRead = n
		h.StreamPos += int64(n)
		if err == io.EOF {
			return nil
		}
		return mapIOError(err)
	default:
		return syscall.EISDIR
	}
}

// WriteFile implements spec.md §4.8 write: only scratch handles accept
// writes. A base-blob handle opened for read is promoted to a scratch
// handle on its first write, performing the copy-up spec.md §4.8 open
// describes as happening at open(O_WRONLY|O_RDWR) time; deferring it to
// here sidesteps needing open(2) flags the FUSE binding does not always
// surface faithfully, while producing the same observable behavior.
func (m *Mount) WriteFile(ctx context.Context, op *fuseops.WriteFileOp) error {
	h, ok := m.table.GetHandle(op.Handle)
	if !ok {
		return syscall.EBADF
	}

	h.swapMu.RLock()
	kind := h.Kind
	h.swapMu.RUnlock()

	if kind == HandleBlobFile || kind == HandleBlobStream {
		if err := m.copyUpHandle(ctx, h); err != nil {
			return mapIOError(err)
		}
	} else if kind == HandleTree {
		return syscall.EISDIR
	} else if kind != HandleScratchFile {
		return fuse.EROFS
	}

	h.swapMu.RLock()
	defer h.swapMu.RUnlock()
	if h.Kind != HandleScratchFile {
		return fuse.EROFS
	}
	_, err := h.ScratchFile.WriteAt(op.Data, op.Offset)
	return mapIOError(err)
}

var copyUpMu sync.Mutex

// copyUpHandle renders the base blob backing h to the scratch tree and
// swaps h in place to a scratch handle. Concurrent copy-up attempts for
// the same path (spec.md §5's "copy-up is not transactional" note) are
// resolved by a post-copy check under copyUpMu: the loser closes its
// own render and reopens the winner's file instead.
func (m *Mount) copyUpHandle(ctx context.Context, h *Handle) error {
	h.swapMu.Lock()
	defer h.swapMu.Unlock()
	if h.Kind == HandleScratchFile {
		return nil
	}

	path := h.virtualPath
	if ino, ok := m.table.ScratchInode(path); ok {
		f, err := m.scratch.Open(path, os.O_RDWR)
		if err != nil {
			return err
		}
		m.closeSource(h)
		h.Kind = HandleScratchFile
		h.ScratchFile = f
		_ = ino
		return nil
	}

	entry, ok := m.lookupBase(path)
	if !ok {
		return errors.New("vfs: copy-up: base entry vanished")
	}
	content, closer, err := m.openBlobContent(ctx, entry)
	if err != nil {
		return err
	}
	rendered, err := m.scratch.CopyUp(path, h.mode, content)
	closer.Close()
	if err != nil {
		return err
	}

	copyUpMu.Lock()
	ino, already := m.table.ScratchInode(path)
	if !already {
		ino = m.table.BindScratch(path)
	}
	copyUpMu.Unlock()

	if already {
		rendered.Close()
		f, err := m.scratch.Open(path, os.O_RDWR)
		if err != nil {
			return err
		}
		h.ScratchFile = f
	} else {
		h.ScratchFile = rendered
	}
	_ = ino
	m.closeSource(h)
	h.Kind = HandleScratchFile
	return nil
}

func (m *Mount) closeSource(h *Handle) {
	switch h.Kind {
	case HandleBlobFile:
		h.BlobFile.Close()
	case HandleBlobStream:
		h.BlobStream.Close()
	}
}

// CreateFile implements spec.md §4.8 create: un-whiteout if necessary,
// create a zero-length scratch file, and return a read-write handle.
func (m *Mount) CreateFile(ctx context.Context, op *fuseops.CreateFileOp) error {
	ppath, ok := m.pathForInode(op.Parent)
	if !ok {
		return fuse.ENOENT
	}
	virtual := joinVirtual(ppath, op.Name)
	m.scratch.ClearWhiteout(virtual)

	f, err := m.scratch.Create(virtual, op.Mode)
	if err != nil {
		return mapIOError(err)
	}
	ino := m.table.BindScratch(virtual)
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return fuse.EIO
	}
	attr := hostAttributes(fi)
	op.Entry = fuseops.ChildInodeEntry{
		Child:                ino,
		Attributes:           attr,
		AttributesExpiration: time.Now().Add(scratchExpiration),
		EntryExpiration:      time.Now().Add(scratchExpiration),
	}
	op.Handle = m.table.NewHandle(&Handle{Kind: HandleScratchFile, ScratchFile: f, virtualPath: virtual})
	return nil
}

func (m *Mount) MkDir(ctx context.Context, op *fuseops.MkDirOp) error {
	ppath, ok := m.pathForInode(op.Parent)
	if !ok {
		return fuse.ENOENT
	}
	virtual := joinVirtual(ppath, op.Name)
	if err := m.scratch.Mkdir(virtual, op.Mode); err != nil {
		return mapIOError(err)
	}
	ino := m.table.BindScratch(virtual)
	fi, err := m.scratch.Stat(virtual)
	if err != nil {
		return fuse.EIO
	}
	op.Entry = fuseops.ChildInodeEntry{
		Child:                ino,
		Attributes:           hostAttributes(fi),
		AttributesExpiration: time.Now().Add(scratchExpiration),
		EntryExpiration:      time.Now().Add(scratchExpiration),
	}
	return nil
}

func (m *Mount) RmDir(ctx context.Context, op *fuseops.RmDirOp) error {
	ppath, ok := m.pathForInode(op.Parent)
	if !ok {
		return fuse.ENOENT
	}
	virtual := joinVirtual(ppath, op.Name)
	if err := m.scratch.Rmdir(virtual); err != nil {
		return mapIOError(err)
	}
	m.table.UnbindScratch(virtual)
	return nil
}

func (m *Mount) Unlink(ctx context.Context, op *fuseops.UnlinkOp) error {
	ppath, ok := m.pathForInode(op.Parent)
	if !ok {
		return fuse.ENOENT
	}
	virtual := joinVirtual(ppath, op.Name)
	if err := m.scratch.Unlink(virtual); err != nil {
		return mapIOError(err)
	}
	m.table.UnbindScratch(virtual)
	return nil
}

// Rename implements spec.md §4.8 rename: transplants the scratch entry
// and updates inode<->path maps. See DESIGN.md for the resolution of
// the rename-across-directories open question (spec.md §9): a source
// that exists only in the base manifest is not copied up by rename, so
// it continues to appear at its old path afterward, and no whiteout is
// recorded for it.
func (m *Mount) Rename(ctx context.Context, op *fuseops.RenameOp) error {
	oldParent, ok := m.pathForInode(op.OldParent)
	if !ok {
		return fuse.ENOENT
	}
	newParent, ok := m.pathForInode(op.NewParent)
	if !ok {
		return fuse.ENOENT
	}
	src := joinVirtual(oldParent, op.OldName)
	dst := joinVirtual(newParent, op.NewName)

	if !m.scratch.Exists(src) {
		return fuse.ENOENT
	}
	if err := m.scratch.Rename(src, dst); err != nil {
		return mapIOError(err)
	}
	if ino, ok := m.table.UnbindScratch(src); ok {
		m.table.RebindScratch(ino, dst)
	}
	return nil
}

func (m *Mount) MkNode(ctx context.Context, op *fuseops.MkNodeOp) error {
	return fuse.ENOSYS
}

func (m *Mount) CreateSymlink(ctx context.Context, op *fuseops.CreateSymlinkOp) error {
	return fuse.ENOSYS
}

func (m *Mount) CreateLink(ctx context.Context, op *fuseops.CreateLinkOp) error {
	return fuse.ENOSYS
}

func (m *Mount) SyncFile(ctx context.Context, op *fuseops.SyncFileOp) error {
	h, ok := m.table.GetHandle(op.Handle)
	if !ok || h.Kind != HandleScratchFile {
		return nil
	}
	return mapIOError(h.ScratchFile.Sync())
}

func (m *Mount) FlushFile(ctx context.Context, op *fuseops.FlushFileOp) error {
	return nil
}

func (m *Mount) RemoveXattr(ctx context.Context, op *fuseops.RemoveXattrOp) error {
	return fuse.ENOSYS
}

func (m *Mount) GetXattr(ctx context.Context, op *fuseops.GetXattrOp) error {
	return fuse.ENOSYS
}

func (m *Mount) ListXattr(ctx context.Context, op *fuseops.ListXattrOp) error {
	return fuse.ENOSYS
}

func (m *Mount) SetXattr(ctx context.Context, op *fuseops.SetXattrOp) error {
	return fuse.ENOSYS
}

func (m *Mount) Fallocate(ctx context.Context, op *fuseops.FallocateOp) error {
	return fuse.ENOSYS
}

func (m *Mount) Destroy() {}
