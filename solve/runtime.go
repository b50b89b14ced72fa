package solve

import (
	"context"

	"github.com/strata-pm/strata"
)

// Event is one (node, decision) pair the Runtime streams: State is the
// node reached, Decision is how it was reached from its immediate
// predecessor.
type Event struct {
	State    *State
	Decision Decision
}

// Runtime wraps a Solver to report the decisions of a solve as a
// stream of events, so a caller can log each step (the CLI's verbosity
// flag) without the engine itself knowing about logging. The stream is
// produced after the search ends, not while it runs. It mirrors the teacher's trace callbacks
// (logVisit/logSelect/logSolve), generalized from direct logger calls
// into a channel a caller drains however it likes.
type Runtime struct {
	solver *Solver
}

// NewRuntime wraps solver for streaming use.
func NewRuntime(solver *Solver) *Runtime { return &Runtime{solver: solver} }

// Stream runs solver.Solve to completion, then sends one Event per
// decision on the path from the root to the solution's final state.
// Decisions on abandoned branches are not sent, and a failed solve
// sends none. The final Solution or error is sent on done exactly
// once; both channels are closed when Stream's goroutine finishes.
//
// Stream wraps Solve rather than instrumenting it directly, replaying
// the solution's path afterwards, so Solve itself stays free of any
// observability concern: the teacher's solver carries its own trace
// fields inline, but here the ambient logging is threaded on the
// outside, in the style of a middleware wrapping the core loop.
func (rt *Runtime) Stream(ctx context.Context, pkgReqs []strata.PkgRequest, varReqs []strata.VarRequest) (events <-chan Event, done <-chan Result) {
	evCh := make(chan Event)
	doneCh := make(chan Result, 1)

	recorder := &recordingSolver{Solver: rt.solver, events: evCh}

	go func() {
		defer close(evCh)
		sol, err := recorder.solve(ctx, pkgReqs, varReqs)
		doneCh <- Result{Solution: sol, Err: err}
		close(doneCh)
	}()

	return evCh, doneCh
}

// Result is the terminal value sent on a Runtime.Stream's done
// channel.
type Result struct {
	Solution *Solution
	Err      error
}

// recordingSolver runs Solver.Solve and, on success, replays the
// solution's decisions from the root state, emitting an Event to events
// for each state reached along the way. Kept as a thin
// adapter rather than threading a callback through Solve itself, so
// Solve's signature stays the simple (Solution, error) shape most
// callers want.
type recordingSolver struct {
	*Solver
	events chan<- Event
}

func (r *recordingSolver) solve(ctx context.Context, pkgReqs []strata.PkgRequest, varReqs []strata.VarRequest) (*Solution, error) {
	sol, err := r.Solver.Solve(ctx, pkgReqs, varReqs)
	if sol != nil {
		state := sol.Graph.Root().State
		for _, decision := range sol.Graph.PathFromRoot(sol.Final.ID()) {
			next, applyErr := Apply(state, decision)
			if applyErr != nil {
				return sol, err
			}
			state = next
			select {
			case r.events <- Event{State: state, Decision: decision}:
			case <-ctx.Done():
				return sol, err
			}
		}
	}
	return sol, err
}
