// Package repo provides a local directory-backed strata.Repository,
// used by cmd/strata to drive the solver and VFS against a concrete
// store. The content-addressed blob store itself is out of scope for
// this module, so the on-disk layout here is deliberately minimal: it
// exists to give the CLI something real to point at, not to model a
// production package store.
//
// A repository directory looks like:
//
//	<root>/<package>/<version>/spec.json   - a manifest-format spec
//	<root>/.blobs/<digest>                 - content-addressed payloads
package repo

import (
	"context"
	"encoding/json"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"

	"github.com/strata-pm/strata"
)

// Dir is a strata.Repository backed by a directory tree of JSON specs
// and flat payload blobs.
type Dir struct {
	name string
	root string
}

// Open returns a Dir repository named name, rooted at dir. The
// directory need not exist yet; ListPackages simply reports none.
func Open(name, dir string) *Dir {
	return &Dir{name: name, root: dir}
}

func (d *Dir) Name() string { return d.name }

// specFile is the on-disk shape of one build's spec.json: a
// deliberately flattened encoding of strata.Spec that avoids needing a
// general VersionRange JSON codec. Requirements may only pin an exact
// version or leave it open ("any").
type specFile struct {
	DigestKind string            `json:"digest_kind"` // "source" or "opaque"; any other value reads as "opaque"
	Digest     string            `json:"digest,omitempty"`
	Options    map[string]string `json:"options,omitempty"`
	Requirements []reqFile       `json:"requirements,omitempty"`
	Components []compFile        `json:"components"`
	Deprecated bool              `json:"deprecated,omitempty"`
}

type reqFile struct {
	Package string `json:"package"`
	Version string `json:"version,omitempty"` // exact pin, empty means any
}

type compFile struct {
	Name     string   `json:"name"`
	Embeds   []string `json:"embeds,omitempty"`
	Requires []reqFile `json:"requires,omitempty"`
	Uses     []string `json:"uses,omitempty"`
}

func (d *Dir) pkgDir(pkg string) string { return filepath.Join(d.root, pkg) }

func (d *Dir) ListPackages(ctx context.Context) ([]string, error) {
	entries, err := ioutil.ReadDir(d.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, d.wrap(err, false)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() && e.Name() != ".blobs" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func (d *Dir) ListVersions(ctx context.Context, pkg string) ([]strata.Version, error) {
	entries, err := ioutil.ReadDir(d.pkgDir(pkg))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, d.wrap(err, false)
	}
	var out []strata.Version
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		v, err := strata.ParseVersion(e.Name())
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

func (d *Dir) ListBuilds(ctx context.Context, pkg string, v strata.Version) ([]strata.BuildID, error) {
	sf, err := d.readSpecFile(pkg, v)
	if err != nil {
		return nil, err
	}
	return []strata.BuildID{d.buildID(pkg, v, sf)}, nil
}

func (d *Dir) ReadRecipe(ctx context.Context, pkg string, v strata.Version) (strata.Recipe, error) {
	return nil, &strata.RepoError{Repo: d.name, Err: errors.New("dir repository: source recipes are not supported"), TryNextRepo: true}
}

func (d *Dir) ReadSpec(ctx context.Context, id strata.BuildID) (strata.Spec, error) {
	sf, err := d.readSpecFile(id.Name, id.Version)
	if err != nil {
		return strata.Spec{}, err
	}
	return d.toSpec(id.Name, id.Version, sf)
}

func (d *Dir) ListComponents(ctx context.Context, id strata.BuildID) ([]string, error) {
	spec, err := d.ReadSpec(ctx, id)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(spec.Components))
	for i, c := range spec.Components {
		names[i] = c.Name
	}
	return names, nil
}

func (d *Dir) OpenPayload(ctx context.Context, digest string) (strata.Payload, error) {
	path := filepath.Join(d.root, ".blobs", digest)
	fi, err := os.Stat(path)
	if err != nil {
		return strata.Payload{}, d.wrap(err, true)
	}
	f, err := os.Open(path)
	if err != nil {
		return strata.Payload{}, d.wrap(err, true)
	}
	return strata.Payload{Size: fi.Size(), Seekable: f}, nil
}

func (d *Dir) Publish(ctx context.Context, spec strata.Spec, payload io.Reader, recipe *strata.Recipe) error {
	return &strata.RepoError{Repo: d.name, Err: errors.New("dir repository: publish not supported"), TryNextRepo: false}
}

func (d *Dir) readSpecFile(pkg string, v strata.Version) (specFile, error) {
	path := filepath.Join(d.root, pkg, v.String(), "spec.json")
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return specFile{}, d.wrap(err, true)
	}
	var sf specFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return specFile{}, &strata.RepoError{Repo: d.name, Err: errors.Wrapf(err, "parsing %s", path), TryNextRepo: false}
	}
	return sf, nil
}

func (d *Dir) buildID(pkg string, v strata.Version, sf specFile) strata.BuildID {
	var digest strata.Digest
	switch sf.DigestKind {
	case "source":
		digest = strata.SourceDigest()
	default:
		digest = strata.OpaqueDigest(sf.Digest)
	}
	return strata.BuildID{Repository: d.name, Name: pkg, Version: v, Digest: digest}
}

func (d *Dir) toSpec(pkg string, v strata.Version, sf specFile) (strata.Spec, error) {
	reqs := make([]strata.PkgRequest, len(sf.Requirements))
	for i, r := range sf.Requirements {
		reqs[i] = toPkgRequest(r)
	}
	comps := make([]strata.Component, len(sf.Components))
	for i, c := range sf.Components {
		creqs := make([]strata.PkgRequest, len(c.Requires))
		for j, r := range c.Requires {
			creqs[j] = toPkgRequest(r)
		}
		comps[i] = strata.Component{Name: c.Name, Embeds: c.Embeds, Requires: creqs, Uses: c.Uses}
	}
	return strata.Spec{
		ID:           d.buildID(pkg, v, sf),
		Options:      sf.Options,
		Requirements: reqs,
		Components:   comps,
		Deprecated:   sf.Deprecated,
	}, nil
}

func toPkgRequest(r reqFile) strata.PkgRequest {
	rng := strata.Any()
	if r.Version != "" {
		if v, err := strata.ParseVersion(r.Version); err == nil {
			rng = strata.Equal(v)
		}
	}
	return strata.PkgRequest{Package: r.Package, Range: rng, Inclusion: strata.Always}
}

// wrap turns a host filesystem error into a RepoError, treating a
// missing file as try-next-repo (another repository in the list may
// carry this package) and anything else as a hard failure.
func (d *Dir) wrap(err error, tryNext bool) error {
	return &strata.RepoError{Repo: d.name, Err: err, TryNextRepo: tryNext && os.IsNotExist(err)}
}
