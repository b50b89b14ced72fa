package strata

import "fmt"

// InclusionPolicy governs whether a PkgRequest can introduce a package
// that is not already present in the state.
type InclusionPolicy int

const (
	// Always admits the package whether or not it is already resolved.
	Always InclusionPolicy = iota
	// IfAlreadyPresent only applies the request's constraints when some
	// other requester has already pulled the package in; on its own it
	// never causes a new package to enter the state.
	IfAlreadyPresent
)

func (p InclusionPolicy) String() string {
	if p == IfAlreadyPresent {
		return "if-already-present"
	}
	return "always"
}

// PrereleasePolicy governs whether a PkgRequest's range may match a
// pre-release version when a non-pre-release candidate is available.
type PrereleasePolicy int

const (
	// RejectPrerelease excludes pre-release candidates unless the range
	// itself names one explicitly (e.g. via Equal).
	RejectPrerelease PrereleasePolicy = iota
	// AllowPrerelease admits pre-release candidates on equal footing
	// with release candidates.
	AllowPrerelease
)

// PkgRequest asks the solver to resolve a package: its name, the
// components required of it, the version range it must satisfy, an
// optional pinned build id, and the policies governing how liberally
// it may be satisfied.
//
// Requesters is the provenance list - the package names (or the
// sentinel root requester) that contributed this request - carried so
// a solve failure can report who asked for the offending constraint.
type PkgRequest struct {
	Package    string
	Components []string
	Range      VersionRange
	BuildID    *BuildID
	Inclusion  InclusionPolicy
	Prerelease PrereleasePolicy
	Requesters []string
}

func (r PkgRequest) String() string {
	return fmt.Sprintf("%s%s[%s]", r.Package, r.Range, componentsKey(r.Components))
}

func componentsKey(cs []string) string {
	if len(cs) == 0 {
		return "run"
	}
	s := cs[0]
	for _, c := range cs[1:] {
		s += "," + c
	}
	return s
}

// WithRequester returns a copy of r with name appended to Requesters,
// unless it is already present.
func (r PkgRequest) WithRequester(name string) PkgRequest {
	for _, existing := range r.Requesters {
		if existing == name {
			return r
		}
	}
	out := r
	out.Requesters = append(append([]string{}, r.Requesters...), name)
	return out
}

// VarValue is a variable request's payload: either a pinned literal or
// the "inherit from the build environment" sentinel.
type VarValue struct {
	Pinned  string
	FromEnv bool
}

// VarRequest asks the solver to resolve a build-time variable, pinned
// to a literal value or deferred to whatever the eventual build
// environment supplies. Package, if non-empty, namespaces the variable
// to a single package's options rather than the global environment.
type VarRequest struct {
	Package string
	Name    string
	Value   VarValue
}

func (r VarRequest) String() string {
	key := r.Name
	if r.Package != "" {
		key = r.Package + "." + r.Name
	}
	if r.Value.FromEnv {
		return key + "=$env"
	}
	return key + "=" + r.Value.Pinned
}

// RequestKind distinguishes the two Request variants for type switches
// that need to dispatch without a full type assertion.
type RequestKind int

const (
	RequestKindPkg RequestKind = iota
	RequestKindVar
)

// Request is the closed sum type over PkgRequest and VarRequest. Both
// satisfy it; Kind lets callers branch without a type assertion, and a
// type switch or assertion recovers the typed form, mirroring how the
// teacher's Change variants each carry one payload under a common
// dispatchable shape.
type Request interface {
	fmt.Stringer
	Kind() RequestKind
}

func (r PkgRequest) Kind() RequestKind { return RequestKindPkg }
func (r VarRequest) Kind() RequestKind { return RequestKindVar }

// mergeKey identifies the PkgRequest bucket a given request merges
// into: same package name, same component set, same build id pin.
func (r PkgRequest) mergeKey() string {
	key := r.Package + "|" + componentsKey(r.Components)
	if r.BuildID != nil {
		key += "|" + r.BuildID.String()
	}
	return key
}

// MergeRequests intersects the VersionRanges of same-package,
// same-component, same-build-id PkgRequests into a single merged
// request per bucket, unioning their component sets and requester
// lists, and passes VarRequests through keyed by (package, name) with
// the last value win. It returns an error naming the bucket whose
// ranges intersect to the empty set.
func MergeRequests(reqs []Request) ([]Request, error) {
	var pkgOrder []string
	pkgs := make(map[string]PkgRequest)
	var varOrder []string
	vars := make(map[string]VarRequest)

	for _, req := range reqs {
		switch r := req.(type) {
		case PkgRequest:
			key := r.mergeKey()
			existing, ok := pkgs[key]
			if !ok {
				pkgs[key] = r
				pkgOrder = append(pkgOrder, key)
				continue
			}
			merged, c := existing.Range.Intersects(r.Range)
			if !c.OK {
				return nil, fmt.Errorf("strata: conflicting requests for %s: %s", r.Package, c.Reason)
			}
			existing.Range = merged
			existing.Components = unionStrings(existing.Components, r.Components)
			existing.Requesters = unionStrings(existing.Requesters, r.Requesters)
			if existing.Inclusion == IfAlreadyPresent && r.Inclusion == Always {
				existing.Inclusion = Always
			}
			pkgs[key] = existing
		case VarRequest:
			key := r.Package + "|" + r.Name
			if _, ok := vars[key]; !ok {
				varOrder = append(varOrder, key)
			}
			vars[key] = r
		}
	}

	out := make([]Request, 0, len(pkgOrder)+len(varOrder))
	for _, k := range pkgOrder {
		out = append(out, pkgs[k])
	}
	for _, k := range varOrder {
		out = append(out, vars[k])
	}
	return out, nil
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]bool, len(a))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range a {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, s := range b {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
