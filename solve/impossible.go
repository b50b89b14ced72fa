package solve

import (
	"github.com/strata-pm/strata"
)

// ImpossibleChecker is the optional C4 lookahead: given a candidate
// about to be accepted and the full set of currently unresolved
// requests, it decides whether the candidate's own Requirements would
// make some other request unsatisfiable, so the engine can reject the
// branch before expanding it rather than discovering the conflict
// several decisions later.
//
// It is deliberately a shallow one-hop propagation, not full unit
// propagation a la CDCL - each of cand's Requirements is intersected
// against every other outstanding PkgRequest naming the same package,
// and against the version already resolved for that package.
// Enabling it trades extra per-candidate work for fewer backtracks;
// disabling it (the EnableImpossibleCheck knob, threaded from Solver)
// falls back to discovering the same conflicts later via the
// validator chain.
type ImpossibleChecker struct {
	enabled bool
}

// NewImpossibleChecker builds a checker; enabled mirrors the CLI's
// impossible-check toggle.
func NewImpossibleChecker(enabled bool) *ImpossibleChecker {
	return &ImpossibleChecker{enabled: enabled}
}

// Check reports whether accepting cand into s would render some other
// outstanding request unsatisfiable, given the merged set of all
// pending PkgRequests pending. When disabled it always reports
// possible.
func (c *ImpossibleChecker) Check(s *State, pending []strata.PkgRequest, cand Candidate) strata.Compatibility {
	if !c.enabled {
		return strata.Compatible
	}

	for _, own := range cand.Spec.Requirements {
		for _, other := range pending {
			if other.Package != own.Package {
				continue
			}
			if _, verdict := own.Range.Intersects(other.Range); !verdict.OK {
				return strata.Incompatible(
					"accepting %s would require %s %s, unsatisfiable against outstanding %s (%s)",
					cand.Spec.ID, own.Package, own.Range, other.Range, verdict.Reason)
			}
		}
		if resolved, ok := s.Resolved[own.Package]; ok {
			if verdict := own.Range.IsApplicable(resolved.Spec.ID.Version); !verdict.OK {
				return strata.Incompatible(
					"accepting %s would require %s %s, already resolved at %s",
					cand.Spec.ID, own.Package, own.Range, resolved.Spec.ID.Version)
			}
		}
	}
	return strata.Compatible
}

func (c *ImpossibleChecker) String() string {
	if c.enabled {
		return "impossible-check: enabled"
	}
	return "impossible-check: disabled"
}
