package strata

import (
	"context"
	"io"
)

// Repository is the external package store consumed by both the
// solver and the VFS. Its errors may carry TryNextRepo, which both
// callers honor by advancing to the next repository in a configured
// list rather than failing outright - mirroring the teacher's
// SourceManager boundary, generalized from version-control sources to
// an opaque content-addressed store.
type Repository interface {
	// Name identifies the repository for diagnostics and as the
	// BuildID.Repository field of builds it produces.
	Name() string

	// ListPackages returns every package name the repository knows of.
	ListPackages(ctx context.Context) ([]string, error)

	// ListVersions returns every version the repository has published
	// for pkg, in no particular order; callers sort as needed.
	ListVersions(ctx context.Context, pkg string) ([]Version, error)

	// ListBuilds returns every BuildID published for pkg at v.
	ListBuilds(ctx context.Context, pkg string, v Version) ([]BuildID, error)

	// ReadRecipe reads the source recipe for a version id, for
	// packages resolved as DigestSource builds.
	ReadRecipe(ctx context.Context, pkg string, v Version) (Recipe, error)

	// ReadSpec reads the package Spec for a build id.
	ReadSpec(ctx context.Context, id BuildID) (Spec, error)

	// OpenPayload opens the content-addressed blob named by digest.
	// Exactly one of the returned ReadSeekCloser or Stream is non-nil,
	// at the repository's discretion; size is the blob's byte length.
	OpenPayload(ctx context.Context, digest string) (Payload, error)

	// ListComponents returns the component names declared by the
	// build's Spec; a convenience over ReadSpec for callers that only
	// need names.
	ListComponents(ctx context.Context, id BuildID) ([]string, error)

	// Publish writes a spec, its payload, and optionally the recipe it
	// was built from. Used by source-build synthesis and by tests;
	// production solves never call it.
	Publish(ctx context.Context, spec Spec, payload io.Reader, recipe *Recipe) error
}

// Payload is the result of OpenPayload: exactly one of Seekable or
// Stream is set.
type Payload struct {
	Size     int64
	Seekable io.ReadSeekCloser
	Stream   io.ReadCloser
}

// RepoError wraps a Repository failure with the try-next-repo signal
// the solver and VFS both honor when walking a repository list.
type RepoError struct {
	Repo        string
	Err         error
	TryNextRepo bool
}

func (e *RepoError) Error() string {
	return e.Repo + ": " + e.Err.Error()
}

func (e *RepoError) Unwrap() error { return e.Err }

// OptionConstraint restricts the values an option may take: an
// enumerated choice set, or "inherit from" another option (so a
// dependent option's default tracks its parent unless overridden).
type OptionConstraint struct {
	Choices  []string
	Inherits string
}

// OptionSpec declares one build option a Recipe accepts: its name,
// default value, and constraint.
type OptionSpec struct {
	Name       string
	Default    string
	Constraint OptionConstraint
}

// Recipe is the external source-build description consumed by the
// solver only when a request resolves to a DigestSource build: its
// declared options, the runtime requirements implied by a resolved
// option map, and a way to synthesize the binary Spec a completed
// build environment produces.
type Recipe interface {
	// Options lists every option this recipe accepts, with defaults
	// and constraints.
	Options() []OptionSpec

	// RequirementsFor returns the PkgRequests implied once opts is
	// resolved - e.g. a toolchain choice pulling in a different
	// compiler package.
	RequirementsFor(opts map[string]string) ([]PkgRequest, error)

	// Synthesize produces the binary Spec a build run with the given
	// resolved option map and build environment (package name to
	// resolved BuildID) would produce, without actually invoking the
	// build.
	Synthesize(opts map[string]string, env map[string]BuildID) (Spec, error)
}

// EntryKind distinguishes the four Manifest entry variants.
type EntryKind int

const (
	EntryTree EntryKind = iota
	EntryBlob
	EntrySymlink
	EntryMask
)

// ManifestEntry is one named node of a Manifest tree: a subtree, a
// content-addressed blob (optionally marked as a symlink target), or a
// mask hiding whatever the same path would otherwise resolve to
// beneath a lower layer.
//
// The VFS takes ownership of the root entry handed to it and never
// mutates it; all writes fault into the scratch overlay instead.
type ManifestEntry struct {
	Name string
	Kind EntryKind

	// Children holds the tree variant's contents, keyed by name.
	Children map[string]*ManifestEntry

	// Digest, Mode, and Size hold the blob/symlink variants' payload
	// reference and metadata. For EntrySymlink, Digest names a blob
	// whose content is the link target text.
	Digest string
	Mode   uint32
	Size   int64
}

// Manifest is the solved build set rendered as a single tree of named
// entries, each referencing a content-addressed blob by digest.
type Manifest struct {
	Root *ManifestEntry
}

// Lookup walks path components under m.Root, returning the entry found
// there, or ok=false if any component is absent or not a tree.
func (m Manifest) Lookup(components ...string) (entry *ManifestEntry, ok bool) {
	cur := m.Root
	for _, c := range components {
		if cur == nil || cur.Kind != EntryTree {
			return nil, false
		}
		next, found := cur.Children[c]
		if !found {
			return nil, false
		}
		cur = next
	}
	return cur, cur != nil
}
