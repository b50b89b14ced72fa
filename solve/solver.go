package solve

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/pkg/errors"

	"github.com/strata-pm/strata"
)

// Solver drives the backtracking search: it owns the repository list,
// the validator chain, and the optional impossible-request checker,
// and exposes Solve as the single entry point, mirroring the
// teacher's solver.Solve()/solve() split between the public result
// assembly and the internal SAT loop.
type Solver struct {
	Repos       []strata.Repository
	Chain       []Validator
	Impossible  *ImpossibleChecker
	MaxAttempts int
}

// New builds a Solver with the default validator chain and impossible
// checker toggle.
func New(repos []strata.Repository, binaryOnly, enableImpossibleCheck bool) *Solver {
	return &Solver{
		Repos:       repos,
		Chain:       DefaultChain(binaryOnly),
		Impossible:  NewImpossibleChecker(enableImpossibleCheck),
		MaxAttempts: 100000,
	}
}

// Solution is the terminal state of a successful solve: the graph (for
// tracing and Runtime streaming) and the final state's resolved
// packages.
type Solution struct {
	Graph    *Graph
	Final    *State
	Attempts int
}

// frame is one level of the backtracking stack: the node it is
// expanding, the request it is currently trying to satisfy, and the
// iterator walking that request's candidates. Frames below the top of
// the stack keep their Iterator paused exactly where it was left,
// which is what lets a backtrack resume mid-iteration instead of
// restarting the request from scratch.
type frame struct {
	node *Node
	req  strata.PkgRequest
	iter PackageIterator
}

// Solve runs the backtracking search to completion: success, a fatal
// error, or SolveFailed when every branch is exhausted.
func (s *Solver) Solve(ctx context.Context, pkgReqs []strata.PkgRequest, varReqs []strata.VarRequest) (*Solution, error) {
	merged, err := mergeAll(pkgReqs)
	if err != nil {
		return nil, &InitialRequestsContainImpossibleError{Reason: err.Error()}
	}

	root := NewRootState(merged, varReqs)
	g := NewGraph(root)
	diag := NewDiagnostics()

	stack := []*frame{{node: g.Root()}}
	attempts := 0

	for {
		if err := ctx.Err(); err != nil {
			return nil, &InterruptedError{Cause: err}
		}
		attempts++
		if attempts > s.MaxAttempts {
			return nil, diag.Failure(g, fmt.Errorf("solve: exceeded %d attempts", s.MaxAttempts))
		}

		top := stack[len(stack)-1]

		req, ok := nextUnresolvedRequest(top.node.State)
		if !ok {
			return &Solution{Graph: g, Final: top.node.State, Attempts: attempts}, nil
		}

		if top.iter == nil {
			iter, err := NewRepoIterator(ctx, top.node.State.repoNames(s.Repos, req), req)
			if err != nil {
				if isTryNextRepo(err) {
					iter = emptyIterator{}
				} else {
					return nil, errors.Wrapf(err, "solve: listing candidates for %s", req.Package)
				}
			}
			top.req = req
			top.iter = iter
			top.node.Iterator = iter
		}

		cand, has, err := top.iter.Next(ctx)
		if err != nil {
			return nil, errors.Wrapf(err, "solve: iterating candidates for %s", top.req.Package)
		}
		if !has {
			if len(req.Requesters) > 0 {
				diag.RecordStepBack(top.req, "no more candidates")
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return nil, diag.Failure(g, &SolveFailedError{})
			}
			continue
		}

		verdict := RunChain(s.Chain, top.node.State, top.req, cand)
		if verdict.OK {
			pending := pendingRequests(top.node.State, top.req)
			verdict = s.Impossible.Check(top.node.State, pending, cand)
		}
		if !verdict.OK {
			diag.RecordRejection(top.req, cand, verdict)
			top.iter.Advance(candidateError(verdict))
			continue
		}

		decision := Decision{Changes: []Change{{
			Kind:       ChangeSetPackage,
			Package:    top.req.Package,
			Spec:       cand.Spec,
			Repository: cand.Repository,
		}}}
		for _, own := range cand.Spec.Requirements {
			decision.Changes = append(decision.Changes, Change{Kind: ChangeRequestPackage, PkgRequest: own.WithRequester(top.req.Package)})
		}
		derived, err := Apply(top.node.State, decision)
		if err != nil {
			return nil, errors.Wrap(err, "solve: applying decision")
		}

		child, err := g.AddSuccessor(top.node, derived, decision)
		if err != nil {
			// Branch already attempted: treat like any other rejected
			// candidate and move on within this frame.
			top.iter.Advance(err)
			continue
		}

		stack = append(stack, &frame{node: child})
	}
}

func mergeAll(pkgReqs []strata.PkgRequest) ([]strata.PkgRequest, error) {
	reqs := make([]strata.Request, len(pkgReqs))
	for i, r := range pkgReqs {
		reqs[i] = r
	}
	merged, err := strata.MergeRequests(reqs)
	if err != nil {
		return nil, err
	}
	out := make([]strata.PkgRequest, 0, len(merged))
	for _, r := range merged {
		if pr, ok := r.(strata.PkgRequest); ok {
			out = append(out, pr)
		}
	}
	return out, nil
}

// nextUnresolvedRequest returns the first PkgRequest, in declaration
// order, whose package is not yet in s.Resolved, skipping
// IfAlreadyPresent requests for packages nothing else has pulled in.
func nextUnresolvedRequest(s *State) (strata.PkgRequest, bool) {
	for _, req := range s.PkgRequests {
		if _, done := s.Resolved[req.Package]; done {
			continue
		}
		if req.Inclusion == strata.IfAlreadyPresent {
			continue
		}
		return req, true
	}
	return strata.PkgRequest{}, false
}

// pendingRequests returns every outstanding PkgRequest other than
// current, for the impossible checker's one-hop lookahead.
func pendingRequests(s *State, current strata.PkgRequest) []strata.PkgRequest {
	out := make([]strata.PkgRequest, 0, len(s.PkgRequests))
	for _, req := range s.PkgRequests {
		if req.Package == current.Package {
			continue
		}
		if _, done := s.Resolved[req.Package]; done {
			continue
		}
		out = append(out, req)
	}
	return out
}

// repoNames returns the configured repos, a method on State purely for
// call-site ergonomics in Solve above; it always returns all of them,
// since repository scoping per-request is not part of this model.
func (s *State) repoNames(repos []strata.Repository, req strata.PkgRequest) []strata.Repository {
	return repos
}

func isTryNextRepo(err error) bool {
	var re *strata.RepoError
	return stderrors.As(err, &re) && re.TryNextRepo
}

type emptyIterator struct{}

func (emptyIterator) Next(context.Context) (Candidate, bool, error) { return Candidate{}, false, nil }
func (emptyIterator) Advance(error)                                 {}
