// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/pkg/errors"

	"github.com/strata-pm/strata/vfs"
)

const buildShortHelp = `Resolve packages and mount the result`
const buildLongHelp = `
Resolve the named packages, render the result as a manifest, and mount
it read-write at -mount until interrupted.
`

type buildCommand struct {
	mountpoint string
}

func (cmd *buildCommand) Name() string      { return "build" }
func (cmd *buildCommand) Args() string      { return "<package>..." }
func (cmd *buildCommand) ShortHelp() string { return buildShortHelp }
func (cmd *buildCommand) LongHelp() string  { return buildLongHelp }
func (cmd *buildCommand) Hidden() bool      { return false }

func (cmd *buildCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&cmd.mountpoint, "mount", "", "directory to mount the solved manifest at (required)")
}

func (cmd *buildCommand) Run(ctx *Ctx, args []string) error {
	if cmd.mountpoint == "" {
		return errors.New("build: -mount is required")
	}

	sol, err := runSolve(ctx, pkgRequestsFromArgs(args))
	if err != nil {
		return err
	}

	bgCtx := context.Background()
	manifest, err := buildManifest(bgCtx, ctx.Repos(), sol, ctx.Loggers)
	if err != nil {
		return errors.Wrap(err, "build: rendering manifest")
	}

	mount, err := vfs.NewMount(manifest, ctx.Repos(), fmt.Sprintf("%d", os.Getpid()))
	if err != nil {
		return errors.Wrap(err, "build: preparing mount")
	}

	runCtx, done := interruptContext()
	defer done()

	join, err := vfs.Serve(runCtx, cmd.mountpoint, mount)
	if err != nil {
		return errors.Wrapf(err, "build: mounting at %s", cmd.mountpoint)
	}

	ctx.Loggers.Out.Printf("mounted %d packages at %s\n", len(sol.Final.ResolvedInOrder()), cmd.mountpoint)
	return join(runCtx)
}
