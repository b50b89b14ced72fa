package vfs

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseops"

	"github.com/strata-pm/strata"
)

type memBlob struct {
	*bytes.Reader
}

func (memBlob) Close() error { return nil }

// blobStore is a minimal strata.Repository serving in-memory blobs by
// digest; every other method reports unsupported.
type blobStore struct {
	blobs map[string][]byte
}

func (s *blobStore) Name() string { return "mem" }
func (s *blobStore) ListPackages(ctx context.Context) ([]string, error)  { return nil, nil }
func (s *blobStore) ListVersions(ctx context.Context, pkg string) ([]strata.Version, error) {
	return nil, nil
}
func (s *blobStore) ListBuilds(ctx context.Context, pkg string, v strata.Version) ([]strata.BuildID, error) {
	return nil, nil
}
func (s *blobStore) ReadRecipe(ctx context.Context, pkg string, v strata.Version) (strata.Recipe, error) {
	return nil, &strata.RepoError{Repo: "mem", Err: io.EOF}
}
func (s *blobStore) ReadSpec(ctx context.Context, id strata.BuildID) (strata.Spec, error) {
	return strata.Spec{}, &strata.RepoError{Repo: "mem", Err: io.EOF}
}
func (s *blobStore) ListComponents(ctx context.Context, id strata.BuildID) ([]string, error) {
	return nil, nil
}
func (s *blobStore) Publish(ctx context.Context, spec strata.Spec, payload io.Reader, recipe *strata.Recipe) error {
	return &strata.RepoError{Repo: "mem", Err: io.EOF}
}
func (s *blobStore) OpenPayload(ctx context.Context, digest string) (strata.Payload, error) {
	data, ok := s.blobs[digest]
	if !ok {
		return strata.Payload{}, &strata.RepoError{Repo: "mem", Err: io.EOF, TryNextRepo: true}
	}
	return strata.Payload{Size: int64(len(data)), Seekable: memBlob{bytes.NewReader(data)}}, nil
}

func newDispatchMount(t *testing.T, blobs map[string][]byte) *Mount {
	t.Helper()
	manifest := &strata.Manifest{Root: &strata.ManifestEntry{
		Kind: strata.EntryTree,
		Children: map[string]*strata.ManifestEntry{
			"foo": {Kind: strata.EntryBlob, Digest: "abc", Size: int64(len(blobs["abc"])), Mode: 0644},
		},
	}}
	m, err := NewMount(manifest, []strata.Repository{&blobStore{blobs: blobs}}, t.Name())
	if err != nil {
		t.Fatalf("NewMount: %v", err)
	}
	t.Cleanup(func() { m.scratch.Teardown() })
	return m
}

func TestLookUpInodeResolvesChild(t *testing.T) {
	m := newDispatchMount(t, map[string][]byte{"abc": []byte("hello")})
	op := &fuseops.LookUpInodeOp{Parent: RootInode, Name: "foo"}
	if err := m.LookUpInode(context.Background(), op); err != nil {
		t.Fatalf("LookUpInode: %v", err)
	}
	if op.Entry.Attributes.Size != 5 {
		t.Errorf("expected size 5, got %d", op.Entry.Attributes.Size)
	}
}

func TestLookUpInodeMissingReturnsENOENT(t *testing.T) {
	m := newDispatchMount(t, nil)
	op := &fuseops.LookUpInodeOp{Parent: RootInode, Name: "missing"}
	if err := m.LookUpInode(context.Background(), op); err != fuse.ENOENT {
		t.Errorf("expected ENOENT, got %v", err)
	}
}

func TestOpenFileReadFileServesBaseBlob(t *testing.T) {
	m := newDispatchMount(t, map[string][]byte{"abc": []byte("hello world")})
	lookup := &fuseops.LookUpInodeOp{Parent: RootInode, Name: "foo"}
	if err := m.LookUpInode(context.Background(), lookup); err != nil {
		t.Fatalf("LookUpInode: %v", err)
	}

	open := &fuseops.OpenFileOp{Inode: lookup.Entry.Child}
	if err := m.OpenFile(context.Background(), open); err != nil {
		t.Fatalf("OpenFile: %v", err)
	}

	read := &fuseops.ReadFileOp{Handle: open.Handle, Offset: 0, Dst: make([]byte, 11)}
	if err := m.ReadFile(context.Background(), read); err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(read.Dst[:read.BytesRead]) != "hello world" {
		t.Errorf("expected %q, got %q", "hello world", read.Dst[:read.BytesRead])
	}
}

func TestCreateFileThenWriteThenRead(t *testing.T) {
	m := newDispatchMount(t, nil)
	create := &fuseops.CreateFileOp{Parent: RootInode, Name: "new.txt", Mode: 0644}
	if err := m.CreateFile(context.Background(), create); err != nil {
		t.Fatalf("CreateFile: %v", err)
	}

	write := &fuseops.WriteFileOp{Handle: create.Handle, Data: []byte("payload"), Offset: 0}
	if err := m.WriteFile(context.Background(), write); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	read := &fuseops.ReadFileOp{Handle: create.Handle, Offset: 0, Dst: make([]byte, 7)}
	if err := m.ReadFile(context.Background(), read); err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(read.Dst[:read.BytesRead]) != "payload" {
		t.Errorf("expected %q, got %q", "payload", read.Dst[:read.BytesRead])
	}
}

func TestWriteFileCopiesUpBaseBlobOnFirstWrite(t *testing.T) {
	m := newDispatchMount(t, map[string][]byte{"abc": []byte("hello world")})
	lookup := &fuseops.LookUpInodeOp{Parent: RootInode, Name: "foo"}
	if err := m.LookUpInode(context.Background(), lookup); err != nil {
		t.Fatalf("LookUpInode: %v", err)
	}
	open := &fuseops.OpenFileOp{Inode: lookup.Entry.Child}
	if err := m.OpenFile(context.Background(), open); err != nil {
		t.Fatalf("OpenFile: %v", err)
	}

	write := &fuseops.WriteFileOp{Handle: open.Handle, Data: []byte("X"), Offset: 0}
	if err := m.WriteFile(context.Background(), write); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	read := &fuseops.ReadFileOp{Handle: open.Handle, Offset: 0, Dst: make([]byte, 11)}
	if err := m.ReadFile(context.Background(), read); err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(read.Dst[:read.BytesRead]) != "Xello world" {
		t.Errorf("expected the copy-up to preserve untouched bytes, got %q", read.Dst[:read.BytesRead])
	}
}

func TestMkDirRmDir(t *testing.T) {
	m := newDispatchMount(t, nil)
	mk := &fuseops.MkDirOp{Parent: RootInode, Name: "sub", Mode: 0755}
	if err := m.MkDir(context.Background(), mk); err != nil {
		t.Fatalf("MkDir: %v", err)
	}

	rm := &fuseops.RmDirOp{Parent: RootInode, Name: "sub"}
	if err := m.RmDir(context.Background(), rm); err != nil {
		t.Fatalf("RmDir: %v", err)
	}

	lookup := &fuseops.LookUpInodeOp{Parent: RootInode, Name: "sub"}
	if err := m.LookUpInode(context.Background(), lookup); err != fuse.ENOENT {
		t.Errorf("expected ENOENT after RmDir, got %v", err)
	}
}

func TestUnlinkRemovesScratchFile(t *testing.T) {
	m := newDispatchMount(t, nil)
	create := &fuseops.CreateFileOp{Parent: RootInode, Name: "doomed", Mode: 0644}
	if err := m.CreateFile(context.Background(), create); err != nil {
		t.Fatalf("CreateFile: %v", err)
	}

	unlink := &fuseops.UnlinkOp{Parent: RootInode, Name: "doomed"}
	if err := m.Unlink(context.Background(), unlink); err != nil {
		t.Fatalf("Unlink: %v", err)
	}

	lookup := &fuseops.LookUpInodeOp{Parent: RootInode, Name: "doomed"}
	if err := m.LookUpInode(context.Background(), lookup); err != fuse.ENOENT {
		t.Errorf("expected ENOENT after Unlink, got %v", err)
	}
}

func TestRenameMovesScratchEntry(t *testing.T) {
	m := newDispatchMount(t, nil)
	create := &fuseops.CreateFileOp{Parent: RootInode, Name: "old", Mode: 0644}
	if err := m.CreateFile(context.Background(), create); err != nil {
		t.Fatalf("CreateFile: %v", err)
	}

	rename := &fuseops.RenameOp{OldParent: RootInode, OldName: "old", NewParent: RootInode, NewName: "new"}
	if err := m.Rename(context.Background(), rename); err != nil {
		t.Fatalf("Rename: %v", err)
	}

	if err := m.LookUpInode(context.Background(), &fuseops.LookUpInodeOp{Parent: RootInode, Name: "old"}); err != fuse.ENOENT {
		t.Errorf("expected ENOENT at the old name, got %v", err)
	}
	if err := m.LookUpInode(context.Background(), &fuseops.LookUpInodeOp{Parent: RootInode, Name: "new"}); err != nil {
		t.Errorf("expected the new name to resolve, got %v", err)
	}
}

func TestReadDirListsBaseAndScratchChildren(t *testing.T) {
	m := newDispatchMount(t, map[string][]byte{"abc": []byte("hi")})
	create := &fuseops.CreateFileOp{Parent: RootInode, Name: "extra", Mode: 0644}
	if err := m.CreateFile(context.Background(), create); err != nil {
		t.Fatalf("CreateFile: %v", err)
	}

	open := &fuseops.OpenDirOp{Inode: RootInode}
	if err := m.OpenDir(context.Background(), open); err != nil {
		t.Fatalf("OpenDir: %v", err)
	}
	read := &fuseops.ReadDirOp{Handle: open.Handle, Inode: RootInode, Offset: 0, Dst: make([]byte, 4096)}
	if err := m.ReadDir(context.Background(), read); err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if read.BytesRead == 0 {
		t.Errorf("expected ReadDir to write some entries")
	}
}

func TestSetInodeAttributesTruncatesScratchFile(t *testing.T) {
	m := newDispatchMount(t, nil)
	create := &fuseops.CreateFileOp{Parent: RootInode, Name: "sized", Mode: 0644}
	if err := m.CreateFile(context.Background(), create); err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	write := &fuseops.WriteFileOp{Handle: create.Handle, Data: []byte("0123456789"), Offset: 0}
	if err := m.WriteFile(context.Background(), write); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	var size uint64 = 4
	setattr := &fuseops.SetInodeAttributesOp{Inode: create.Entry.Child, Size: &size}
	if err := m.SetInodeAttributes(context.Background(), setattr); err != nil {
		t.Fatalf("SetInodeAttributes: %v", err)
	}
	if setattr.Attributes.Size != 4 {
		t.Errorf("expected the truncated size to be reflected, got %d", setattr.Attributes.Size)
	}
}

func TestSetInodeAttributesRejectsSizeOnBaseInode(t *testing.T) {
	m := newDispatchMount(t, map[string][]byte{"abc": []byte("hello")})
	lookup := &fuseops.LookUpInodeOp{Parent: RootInode, Name: "foo"}
	if err := m.LookUpInode(context.Background(), lookup); err != nil {
		t.Fatalf("LookUpInode: %v", err)
	}
	var size uint64 = 0
	setattr := &fuseops.SetInodeAttributesOp{Inode: lookup.Entry.Child, Size: &size}
	if err := m.SetInodeAttributes(context.Background(), setattr); err != fuse.EROFS {
		t.Errorf("expected EROFS truncating a base inode, got %v", err)
	}
}

func TestUnsupportedOpsReportENOSYS(t *testing.T) {
	m := newDispatchMount(t, nil)
	if err := m.MkNode(context.Background(), &fuseops.MkNodeOp{}); err != fuse.ENOSYS {
		t.Errorf("MkNode: expected ENOSYS, got %v", err)
	}
	if err := m.CreateSymlink(context.Background(), &fuseops.CreateSymlinkOp{}); err != fuse.ENOSYS {
		t.Errorf("CreateSymlink: expected ENOSYS, got %v", err)
	}
	if err := m.CreateLink(context.Background(), &fuseops.CreateLinkOp{}); err != fuse.ENOSYS {
		t.Errorf("CreateLink: expected ENOSYS, got %v", err)
	}
	if err := m.GetXattr(context.Background(), &fuseops.GetXattrOp{}); err != fuse.ENOSYS {
		t.Errorf("GetXattr: expected ENOSYS, got %v", err)
	}
}

func TestStatFSCountsBlobs(t *testing.T) {
	m := newDispatchMount(t, map[string][]byte{"abc": []byte("hello")})
	op := &fuseops.StatFSOp{}
	if err := m.StatFS(context.Background(), op); err != nil {
		t.Fatalf("StatFS: %v", err)
	}
	if op.Inodes != 1 {
		t.Errorf("expected 1 file inode, got %d", op.Inodes)
	}
}
