// Package solve implements the backtracking search that turns a set of
// package and variable requests into a consistent set of builds. It
// consumes the request, build, and repository shapes declared by
// package strata and produces a graph of immutable states connected by
// decisions, in the style of the teacher's vsolver/gps solver core.
package solve

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/strata-pm/strata"
)

// Resolved is one package the solver has committed to: the Spec it
// chose, the repository it came from, and the id of the state in
// which it was first set.
type Resolved struct {
	Spec       strata.Spec
	Repository string
	ParentID   uint64
}

// State is an immutable, structurally shared solver state: the
// ordered pkg requests still outstanding, the var requests seen so
// far, the packages resolved so far (insertion order preserved), the
// option values pinned so far, and a monotonically increasing depth
// counter. The trace formatter indents by Depth; Solve backtracks by
// popping a stack of frames and does not order states by Depth.
//
// Every field is read-only after construction; Apply never mutates
// its receiver, only returns a new State sharing the parts a Decision
// left untouched. This mirrors gps's bestiary of bimodal, immutable
// states built by copy-on-decision rather than copy-on-write.
type State struct {
	PkgRequests  []strata.PkgRequest
	VarRequests  []strata.VarRequest
	Resolved     map[string]Resolved
	Options      map[string]string
	order        []string // insertion order of Resolved's keys
	Depth        int

	id       uint64
	idCached bool
}

// NewRootState builds the depth-0 state from an initial request set.
// The requests are not yet merged; the caller (typically the Solver)
// runs strata.MergeRequests first so duplicate requesters collapse
// into one queue entry apiece.
func NewRootState(pkgReqs []strata.PkgRequest, varReqs []strata.VarRequest) *State {
	return &State{
		PkgRequests: pkgReqs,
		VarRequests: varReqs,
		Resolved:    make(map[string]Resolved),
		Options:     make(map[string]string),
	}
}

// ID returns the stable structural hash identifying s: a digest over
// (pkg requests, var requests, resolved packages, options). It is
// computed lazily and cached, since most states are visited once.
func (s *State) ID() uint64 {
	if s.idCached {
		return s.id
	}
	h := sha256.New()

	pkgs := append([]strata.PkgRequest{}, s.PkgRequests...)
	sort.Slice(pkgs, func(i, j int) bool { return pkgs[i].String() < pkgs[j].String() })
	for _, p := range pkgs {
		fmt.Fprintf(h, "pkg:%s\n", p)
	}

	vars := append([]strata.VarRequest{}, s.VarRequests...)
	sort.Slice(vars, func(i, j int) bool { return vars[i].String() < vars[j].String() })
	for _, v := range vars {
		fmt.Fprintf(h, "var:%s\n", v)
	}

	names := make([]string, 0, len(s.Resolved))
	for n := range s.Resolved {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		r := s.Resolved[n]
		fmt.Fprintf(h, "pkgresolved:%s=%s@%s\n", n, r.Repository, r.Spec.ID)
	}

	optNames := make([]string, 0, len(s.Options))
	for n := range s.Options {
		optNames = append(optNames, n)
	}
	sort.Strings(optNames)
	for _, n := range optNames {
		fmt.Fprintf(h, "opt:%s=%s\n", n, s.Options[n])
	}

	sum := h.Sum(nil)
	s.id = binary.BigEndian.Uint64(sum[:8])
	s.idCached = true
	return s.id
}

// ResolvedInOrder returns the resolved packages in the order they were
// first set, for deterministic manifest rendering and diagnostics.
func (s *State) ResolvedInOrder() []Resolved {
	out := make([]Resolved, 0, len(s.order))
	for _, n := range s.order {
		out = append(out, s.Resolved[n])
	}
	return out
}

// clone returns a shallow copy of s suitable as the base for Apply: the
// maps are new but share no backing array with s's, while PkgRequests
// and VarRequests slices are shared verbatim until a Change replaces
// them outright.
func (s *State) clone() *State {
	resolved := make(map[string]Resolved, len(s.Resolved))
	for k, v := range s.Resolved {
		resolved[k] = v
	}
	options := make(map[string]string, len(s.Options))
	for k, v := range s.Options {
		options[k] = v
	}
	return &State{
		PkgRequests: s.PkgRequests,
		VarRequests: s.VarRequests,
		Resolved:    resolved,
		Options:     options,
		order:       append([]string{}, s.order...),
		Depth:       s.Depth,
	}
}
