package solve

import (
	"fmt"

	"github.com/strata-pm/strata"
)

// Validator is one link of the candidate-acceptance chain: given the
// state a candidate would be added to, the merged request it is meant
// to satisfy, and the candidate itself, it returns a Compatibility
// verdict attributing any rejection to this specific clause.
//
// This mirrors the teacher's checkProject chain of checkAtomAllowable
// / checkRequiredPackagesExist / checkDepsConstraintsAllowable /
// checkDepsDisallowsSelected / checkIdentMatches, generalized from
// per-dependency constraint checks to the domain's own validator
// vocabulary.
type Validator func(s *State, req strata.PkgRequest, cand Candidate) strata.Compatibility

// BinaryOnly rejects source-digest candidates when binaryOnly is set,
// the first clause in the chain so a source build is never even
// version-checked when the caller has disabled source synthesis.
func BinaryOnly(binaryOnly bool) Validator {
	return func(s *State, req strata.PkgRequest, cand Candidate) strata.Compatibility {
		if binaryOnly && cand.Spec.ID.Digest.Kind == strata.DigestSource {
			return strata.Incompatible("%s is a source build but binary-only solving is enabled", cand.Spec.ID)
		}
		return strata.Compatible
	}
}

// VersionApplicable checks the candidate's version against req.Range.
func VersionApplicable(s *State, req strata.PkgRequest, cand Candidate) strata.Compatibility {
	return req.Range.IsApplicable(cand.Spec.ID.Version)
}

// VarRequirements checks that none of the state's pinned var requests
// for this package conflict with an option the candidate would
// require to have a different value.
func VarRequirements(s *State, req strata.PkgRequest, cand Candidate) strata.Compatibility {
	for _, vr := range s.VarRequests {
		if vr.Package != "" && vr.Package != req.Package {
			continue
		}
		if vr.Value.FromEnv {
			continue
		}
		if existing, ok := cand.Spec.Options[vr.Name]; ok && existing != vr.Value.Pinned {
			return strata.Incompatible("%s requires option %s=%s but %s pins %s=%s", cand.Spec.ID, vr.Name, existing, req.Package, vr.Name, vr.Value.Pinned)
		}
	}
	return strata.Compatible
}

// OptionCompatibility checks the candidate's resolved options against
// any options the state has already pinned.
func OptionCompatibility(s *State, req strata.PkgRequest, cand Candidate) strata.Compatibility {
	for k, v := range s.Options {
		if existing, ok := cand.Spec.Options[k]; ok && existing != v {
			return strata.Incompatible("%s option %s=%s conflicts with state option %s=%s", cand.Spec.ID, k, existing, k, v)
		}
	}
	return strata.Compatible
}

// PackageRequirements checks that the candidate's own declared
// Requirements are, at minimum, not already known to be unsatisfiable
// against other requests already outstanding for the same packages.
func PackageRequirements(s *State, req strata.PkgRequest, cand Candidate) strata.Compatibility {
	for _, own := range cand.Spec.Requirements {
		for _, other := range s.PkgRequests {
			if other.Package != own.Package {
				continue
			}
			if _, c := own.Range.Intersects(other.Range); !c.OK {
				return strata.Incompatible("%s requires %s but %s", cand.Spec.ID, own.Range, c.Reason)
			}
		}
	}
	return strata.Compatible
}

// ComponentsAvailable checks that every component req.Components names
// is actually declared on the candidate's Spec.
func ComponentsAvailable(s *State, req strata.PkgRequest, cand Candidate) strata.Compatibility {
	for _, name := range req.Components {
		if _, ok := cand.Spec.ComponentNamed(name); !ok {
			return strata.Incompatible("%s declares no component %q", cand.Spec.ID, name)
		}
	}
	return strata.Compatible
}

// EmbeddedConflict checks that an embedded candidate's declared parent
// is consistent with any other embedding of the same child already in
// the state. Non-embedded candidates always pass; State.Resolved holds
// one build per package name.
func EmbeddedConflict(s *State, req strata.PkgRequest, cand Candidate) strata.Compatibility {
	if cand.Spec.ID.Digest.Kind != strata.DigestEmbedded {
		return strata.Compatible
	}
	parent := cand.Spec.ID.Digest.Parent
	for _, r := range s.Resolved {
		if r.Spec.ID.Digest.Kind != strata.DigestEmbedded {
			continue
		}
		if r.Spec.ID.Name != cand.Spec.ID.Name {
			continue
		}
		if !r.Spec.ID.Digest.Parent.Equal(*parent) {
			return strata.Incompatible("%s already embedded under a different parent", cand.Spec.ID)
		}
	}
	return strata.Compatible
}

// Deprecation rejects a deprecated spec unless it is the only candidate
// already explicitly pinned by BuildID, the chain's final clause.
func Deprecation(s *State, req strata.PkgRequest, cand Candidate) strata.Compatibility {
	if cand.Spec.Deprecated && req.BuildID == nil {
		return strata.Incompatible("%s is deprecated", cand.Spec.ID)
	}
	return strata.Compatible
}

// DefaultChain is the validator chain run, in order, over every
// candidate: binary-only, version applicability, var requirements,
// option compatibility, package requirements, components availability,
// embedded-conflict detection, deprecation.
func DefaultChain(binaryOnly bool) []Validator {
	return []Validator{
		BinaryOnly(binaryOnly),
		VersionApplicable,
		VarRequirements,
		OptionCompatibility,
		PackageRequirements,
		ComponentsAvailable,
		EmbeddedConflict,
		Deprecation,
	}
}

// RunChain runs chain over cand in order, returning the first
// incompatible verdict encountered, or Compatible if all pass.
func RunChain(chain []Validator, s *State, req strata.PkgRequest, cand Candidate) strata.Compatibility {
	for _, v := range chain {
		if c := v(s, req, cand); !c.OK {
			return c
		}
	}
	return strata.Compatible
}

// candidateError adapts a rejected Compatibility into an error for the
// iterator's Advance bookkeeping.
func candidateError(c strata.Compatibility) error {
	return fmt.Errorf("%s", c.Reason)
}
