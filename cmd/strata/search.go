// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/pkg/errors"

	"github.com/strata-pm/strata/internal/pkgindex"
)

const searchShortHelp = `Search package names by prefix`
const searchLongHelp = `
Build a prefix index over every configured repository's package names
and print those beginning with the given prefix.
`

type searchCommand struct{}

func (cmd *searchCommand) Name() string              { return "search" }
func (cmd *searchCommand) Args() string              { return "<prefix>" }
func (cmd *searchCommand) ShortHelp() string          { return searchShortHelp }
func (cmd *searchCommand) LongHelp() string           { return searchLongHelp }
func (cmd *searchCommand) Hidden() bool               { return false }
func (cmd *searchCommand) Register(fs *flag.FlagSet) {}

func (cmd *searchCommand) Run(ctx *Ctx, args []string) error {
	if len(args) != 1 {
		return errors.New("search: exactly one prefix is required")
	}
	if len(ctx.Repos()) == 0 {
		return errors.New("search: no repositories configured (see -config)")
	}

	bgCtx := context.Background()
	ix := pkgindex.New()
	for _, r := range ctx.Repos() {
		names, err := r.ListPackages(bgCtx)
		if err != nil {
			ctx.Loggers.Vlogf("search: %s: %v", r.Name(), err)
			continue
		}
		for _, n := range names {
			ix.Insert(n, r.Name())
		}
	}

	for _, m := range ix.Prefix(args[0]) {
		fmt.Fprintf(ctx.Loggers.Out.Writer(), "%s\t%s\n", m.Name, m.Data)
	}
	return nil
}
