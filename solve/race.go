package solve

import (
	"context"

	"github.com/sdboyer/constext"
	"github.com/strata-pm/strata"
	"golang.org/x/sync/errgroup"
)

// Strategy is one configuration of a Solver to race against its
// siblings: a name for diagnostics and the Solver itself.
type Strategy struct {
	Name   string
	Solver *Solver
}

// Race runs every strategy concurrently against the same request set
// and returns the first successful Solution, canceling the rest. If
// every strategy fails, Race returns the error from whichever strategy
// finished last (all having failed, the result is deterministic only
// in that it is always one of the recorded failures).
//
// Race merges the caller's context with a cancellation scope private
// to the race via constext.Cons, the way the teacher's gps fork merges
// a caller deadline with its own solver-local cancellation without
// either party's Done channel shadowing the other's.
func Race(ctx context.Context, strategies []Strategy, pkgReqs []strata.PkgRequest, varReqs []strata.VarRequest) (*Solution, string, error) {
	raceCtx, cancelRace := context.WithCancel(context.Background())
	defer cancelRace()

	merged, cancelMerge := constext.Cons(ctx, raceCtx)
	defer cancelMerge()

	type outcome struct {
		name string
		sol  *Solution
		err  error
	}
	results := make(chan outcome, len(strategies))

	g, gctx := errgroup.WithContext(merged)
	for _, strat := range strategies {
		strat := strat
		g.Go(func() error {
			sol, err := strat.Solver.Solve(gctx, pkgReqs, varReqs)
			results <- outcome{name: strat.Name, sol: sol, err: err}
			if err == nil {
				cancelRace()
			}
			return nil
		})
	}

	go func() {
		g.Wait()
		close(results)
	}()

	var lastErr error
	var lastName string
	for out := range results {
		if out.err == nil {
			return out.sol, out.name, nil
		}
		lastErr, lastName = out.err, out.name
	}
	return nil, lastName, lastErr
}
