// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/pkg/errors"

	"github.com/strata-pm/strata"
	stratalog "github.com/strata-pm/strata/log"
	"github.com/strata-pm/strata/solve"
)

const solveShortHelp = `Resolve a set of packages`
const solveLongHelp = `
Resolve the named packages and their dependencies against the
configured repositories, printing the resulting build set.
`

type solveCommand struct{}

func (cmd *solveCommand) Name() string              { return "solve" }
func (cmd *solveCommand) Args() string              { return "<package>..." }
func (cmd *solveCommand) ShortHelp() string          { return solveShortHelp }
func (cmd *solveCommand) LongHelp() string           { return solveLongHelp }
func (cmd *solveCommand) Hidden() bool               { return false }
func (cmd *solveCommand) Register(fs *flag.FlagSet) {}

func (cmd *solveCommand) Run(ctx *Ctx, args []string) error {
	sol, err := runSolve(ctx, pkgRequestsFromArgs(args))
	if err != nil {
		return err
	}
	for _, r := range sol.Final.ResolvedInOrder() {
		fmt.Fprintf(ctx.Loggers.Out.Writer(), "%s\n", r.Spec.ID)
	}
	return nil
}

// pkgRequestsFromArgs turns bare package names into root PkgRequests,
// the CLI's only request shape (it exposes no range/component syntax;
// a user wanting finer control edits strata.toml instead).
func pkgRequestsFromArgs(args []string) []strata.PkgRequest {
	reqs := make([]strata.PkgRequest, len(args))
	for i, name := range args {
		reqs[i] = strata.PkgRequest{
			Package:    name,
			Range:      strata.Any(),
			Inclusion:  strata.Always,
			Requesters: []string{"cli"},
		}
	}
	return reqs
}

// interruptContext derives a context canceled on SIGINT, per spec.md
// §5's process-wide cancellation flag.
func interruptContext() (context.Context, func()) {
	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		if _, ok := <-sig; ok {
			cancel()
		}
	}()
	return ctx, func() { signal.Stop(sig); cancel() }
}

// runSolve resolves pkgReqs against ctx's configured repositories and
// toggles, choosing between a single solve (optionally traced when -v
// is set) and a multi-strategy race per -race.
func runSolve(ctx *Ctx, pkgReqs []strata.PkgRequest) (*solve.Solution, error) {
	if len(pkgReqs) == 0 {
		return nil, errors.New("solve: at least one package name is required")
	}
	if len(ctx.Repos()) == 0 {
		return nil, errors.New("solve: no repositories configured (see -config)")
	}

	runCtx, done := interruptContext()
	defer done()

	primary := solve.New(ctx.Repos(), ctx.Config.BinaryOnly, ctx.Config.Impossible)

	if ctx.Config.Race {
		sol, name, err := raceStrategies(runCtx, ctx, primary, pkgReqs)
		ctx.Loggers.Vlogf("solve: winning strategy %q", name)
		return sol, err
	}

	if ctx.Loggers.Verbose {
		return streamSolve(runCtx, ctx, primary, pkgReqs)
	}
	return primary.Solve(runCtx, pkgReqs, nil)
}

// streamSolve drains a Runtime.Stream through a Formatter so -v prints
// one line per decision on the solution's path, then the final result.
func streamSolve(ctx context.Context, cliCtx *Ctx, s *solve.Solver, pkgReqs []strata.PkgRequest) (*solve.Solution, error) {
	rt := solve.NewRuntime(s)
	formatter := solve.NewFormatter(stratalog.New(cliCtx.Loggers.Out.Writer()))

	events, done := rt.Stream(ctx, pkgReqs, nil)
	for ev := range events {
		formatter.LogSelect(ev)
	}
	res := <-done
	formatter.LogSolve(res)
	return res.Solution, res.Err
}

// raceStrategies runs primary against a variant that only differs in
// its impossible-check toggle. Per spec.md §4.6, the variant's failure
// carries no diagnostic value on its own - only primary's failure is
// ever surfaced to the caller.
func raceStrategies(ctx context.Context, cliCtx *Ctx, primary *solve.Solver, pkgReqs []strata.PkgRequest) (*solve.Solution, string, error) {
	variant := solve.New(cliCtx.Repos(), cliCtx.Config.BinaryOnly, !cliCtx.Config.Impossible)
	strategies := []solve.Strategy{
		{Name: "primary", Solver: primary},
		{Name: "impossible-check-toggled", Solver: variant},
	}
	sol, name, err := solve.Race(ctx, strategies, pkgReqs, nil)
	if err != nil && name != "primary" {
		sol, err = primary.Solve(ctx, pkgReqs, nil)
		name = "primary"
	}
	return sol, name, err
}
