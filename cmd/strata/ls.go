// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/pkg/errors"
)

const lsShortHelp = `List known packages and versions`
const lsLongHelp = `
List every package the configured repositories know of. With a
package name argument, list its known versions instead.
`

type lsCommand struct{}

func (cmd *lsCommand) Name() string              { return "ls" }
func (cmd *lsCommand) Args() string              { return "[package]" }
func (cmd *lsCommand) ShortHelp() string          { return lsShortHelp }
func (cmd *lsCommand) LongHelp() string           { return lsLongHelp }
func (cmd *lsCommand) Hidden() bool               { return false }
func (cmd *lsCommand) Register(fs *flag.FlagSet) {}

func (cmd *lsCommand) Run(ctx *Ctx, args []string) error {
	if len(ctx.Repos()) == 0 {
		return errors.New("ls: no repositories configured (see -config)")
	}
	bgCtx := context.Background()
	w := tabwriter.NewWriter(ctx.Loggers.Out.Writer(), 0, 4, 2, ' ', 0)
	defer w.Flush()

	if len(args) == 1 {
		return cmd.listVersions(bgCtx, ctx, w, args[0])
	}
	return cmd.listPackages(bgCtx, ctx, w)
}

func (cmd *lsCommand) listPackages(ctx context.Context, cliCtx *Ctx, w *tabwriter.Writer) error {
	seen := map[string]string{}
	for _, r := range cliCtx.Repos() {
		names, err := r.ListPackages(ctx)
		if err != nil {
			cliCtx.Loggers.Vlogf("ls: %s: %v", r.Name(), err)
			continue
		}
		for _, n := range names {
			if _, ok := seen[n]; !ok {
				seen[n] = r.Name()
			}
		}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintf(w, "%s\t%s\n", n, seen[n])
	}
	return nil
}

func (cmd *lsCommand) listVersions(ctx context.Context, cliCtx *Ctx, w *tabwriter.Writer, pkg string) error {
	for _, r := range cliCtx.Repos() {
		versions, err := r.ListVersions(ctx, pkg)
		if err != nil {
			cliCtx.Loggers.Vlogf("ls: %s: %v", r.Name(), err)
			continue
		}
		sort.Slice(versions, func(i, j int) bool { return versions[i].Compare(versions[j]) > 0 })
		for _, v := range versions {
			fmt.Fprintf(w, "%s\t%s\n", v, r.Name())
		}
	}
	return nil
}
