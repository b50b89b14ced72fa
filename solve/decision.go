package solve

import (
	"fmt"

	"github.com/strata-pm/strata"
)

// ChangeKind distinguishes the six closed Change variants a Decision
// may carry.
type ChangeKind int

const (
	ChangeRequestPackage ChangeKind = iota
	ChangeRequestVar
	ChangeSetOptions
	ChangeSetPackage
	ChangeSetPackageBuild
	ChangeStepBack
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeRequestPackage:
		return "request-package"
	case ChangeRequestVar:
		return "request-var"
	case ChangeSetOptions:
		return "set-options"
	case ChangeSetPackage:
		return "set-package"
	case ChangeSetPackageBuild:
		return "set-package-build"
	case ChangeStepBack:
		return "step-back"
	default:
		return "unknown"
	}
}

// Change is one atomic mutation a Decision applies to a State. Exactly
// the fields relevant to Kind are populated; this mirrors the
// teacher's Change sum type, collapsed into one struct rather than an
// interface hierarchy since every variant here is a plain data carrier
// with no behavior of its own.
type Change struct {
	Kind ChangeKind

	// ChangeRequestPackage, ChangeRequestVar
	PkgRequest strata.PkgRequest
	VarRequest strata.VarRequest

	// ChangeSetOptions
	Options map[string]string

	// ChangeSetPackage, ChangeSetPackageBuild
	Package    string
	Spec       strata.Spec
	Repository string
}

func (c Change) String() string {
	switch c.Kind {
	case ChangeRequestPackage:
		return "+pkg " + c.PkgRequest.String()
	case ChangeRequestVar:
		return "+var " + c.VarRequest.String()
	case ChangeSetOptions:
		return fmt.Sprintf("set-options %v", c.Options)
	case ChangeSetPackage, ChangeSetPackageBuild:
		return fmt.Sprintf("%s=%s", c.Package, c.Spec.ID)
	default:
		return "step-back"
	}
}

// Decision is an ordered list of Changes applied atomically to a base
// State to produce a derived State.
type Decision struct {
	Changes []Change
}

func (d Decision) String() string {
	s := ""
	for i, c := range d.Changes {
		if i > 0 {
			s += "; "
		}
		s += c.String()
	}
	return s
}

// Apply derives a new State from base by running d's Changes in
// order. It never mutates base.
func Apply(base *State, d Decision) (*State, error) {
	s := base.clone()
	s.Depth = base.Depth + 1
	s.idCached = false

	for _, c := range d.Changes {
		switch c.Kind {
		case ChangeRequestPackage:
			s.PkgRequests = append(append([]strata.PkgRequest{}, s.PkgRequests...), c.PkgRequest)
		case ChangeRequestVar:
			s.VarRequests = append(append([]strata.VarRequest{}, s.VarRequests...), c.VarRequest)
		case ChangeSetOptions:
			for k, v := range c.Options {
				s.Options[k] = v
			}
		case ChangeSetPackage, ChangeSetPackageBuild:
			if _, already := s.Resolved[c.Package]; !already {
				s.order = append(s.order, c.Package)
			}
			s.Resolved[c.Package] = Resolved{
				Spec:       c.Spec,
				Repository: c.Repository,
				ParentID:   base.ID(),
			}
		case ChangeStepBack:
			// StepBack carries no payload; it signals the runtime to
			// pop to the nearest unexpanded sibling rather than mutate
			// state directly. Applying it to a state is a no-op beyond
			// the depth bump already recorded above.
		default:
			return nil, fmt.Errorf("solve: unknown change kind %d", c.Kind)
		}
	}
	return s, nil
}
