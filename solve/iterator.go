package solve

import (
	"context"
	"sort"

	"github.com/strata-pm/strata"
)

// Candidate is one build the PackageIterator offers the engine: the
// repository it came from and its resolved Spec.
type Candidate struct {
	Repository string
	Spec       strata.Spec
}

// PackageIterator yields candidate builds for a single merged
// PkgRequest, in priority order, across however many repositories are
// configured. It mirrors the teacher's versionQueue, generalized from
// one version list to a build-key-sorted merge across repositories so
// a later repository's build never outranks an earlier one's at the
// same version.
type PackageIterator interface {
	// Next returns the next candidate, or ok=false when the iterator
	// is exhausted. Advance must be called between calls to Next to
	// record why the previous candidate was rejected, the same
	// discipline versionQueue.advance enforces.
	Next(ctx context.Context) (Candidate, bool, error)

	// Advance records the failure (nil if the candidate is simply
	// being skipped without trying it) that eliminates the
	// most-recently-returned candidate, moving the iterator forward.
	Advance(fail error)
}

// repoList is the ordered sequence of repositories a Solver searches;
// earlier entries take priority at equal build key.
type repoList []strata.Repository

// buildKey orders candidates for a single package: version descending
// (newest first, matching users' general preference for recent
// releases), then repository position ascending (earlier-configured
// repository wins ties), then build digest string for determinism.
func buildKey(repos repoList, a, b Candidate) bool {
	if c := a.Spec.ID.Version.Compare(b.Spec.ID.Version); c != 0 {
		return c > 0
	}
	ai, bi := repoIndex(repos, a.Repository), repoIndex(repos, b.Repository)
	if ai != bi {
		return ai < bi
	}
	return a.Spec.ID.Digest.String() < b.Spec.ID.Digest.String()
}

func repoIndex(repos repoList, name string) int {
	for i, r := range repos {
		if r.Name() == name {
			return i
		}
	}
	return len(repos)
}

// repoIterator is the concrete PackageIterator built by the Solver: it
// loads every repository's builds for a package matching req.Range
// once, sorts them by buildKey, and walks the sorted list.
type repoIterator struct {
	req  strata.PkgRequest
	pre  strata.PrereleasePolicy
	list []Candidate
	pos  int
	fails []failure
}

type failure struct {
	candidate Candidate
	err       error
}

// NewRepoIterator loads and sorts every candidate build across repos
// satisfying req, honoring req.BuildID when pinned (collapsing the
// iterator to that single build) and req.Prerelease otherwise.
func NewRepoIterator(ctx context.Context, repos repoList, req strata.PkgRequest) (PackageIterator, error) {
	it := &repoIterator{req: req}

	if req.BuildID != nil {
		for _, r := range repos {
			if r.Name() != req.BuildID.Repository {
				continue
			}
			spec, err := r.ReadSpec(ctx, *req.BuildID)
			if err != nil {
				return nil, err
			}
			it.list = []Candidate{{Repository: r.Name(), Spec: spec}}
			return it, nil
		}
		return it, nil
	}

	for _, r := range repos {
		versions, err := r.ListVersions(ctx, req.Package)
		if err != nil {
			return nil, err
		}
		for _, v := range versions {
			if v.HasPrerelease() && req.Prerelease == strata.RejectPrerelease {
				if c := req.Range.IsApplicable(v); !c.OK || !isExplicitPin(req.Range) {
					continue
				}
			}
			if c := req.Range.IsApplicable(v); !c.OK {
				continue
			}
			builds, err := r.ListBuilds(ctx, req.Package, v)
			if err != nil {
				return nil, err
			}
			for _, b := range builds {
				spec, err := r.ReadSpec(ctx, b)
				if err != nil {
					return nil, err
				}
				if spec.Deprecated {
					continue
				}
				it.list = append(it.list, Candidate{Repository: r.Name(), Spec: spec})
			}
		}
	}

	sort.SliceStable(it.list, func(i, j int) bool { return buildKey(repos, it.list[i], it.list[j]) })
	return it, nil
}

// isExplicitPin reports whether r names a single version exactly,
// meaning a pre-release request for that precise version should be
// honored even under RejectPrerelease.
func isExplicitPin(r strata.VersionRange) bool {
	lo, hasLo := r.GreaterOrEqualTo()
	hi, hasHi := r.LessThan()
	return hasLo && hasHi && lo.Equal(hi)
}

func (it *repoIterator) Next(ctx context.Context) (Candidate, bool, error) {
	if it.pos >= len(it.list) {
		return Candidate{}, false, nil
	}
	return it.list[it.pos], true, nil
}

func (it *repoIterator) Advance(fail error) {
	if it.pos >= len(it.list) {
		return
	}
	it.fails = append(it.fails, failure{candidate: it.list[it.pos], err: fail})
	it.pos++
}
