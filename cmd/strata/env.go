// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"flag"
	"fmt"
	"sort"
)

const envShortHelp = `Print resolved build options`
const envLongHelp = `
Resolve the named packages and print the build options and global
variables the solve settled on, as shell-assignable KEY=VALUE lines.
`

type envCommand struct{}

func (cmd *envCommand) Name() string              { return "env" }
func (cmd *envCommand) Args() string              { return "<package>..." }
func (cmd *envCommand) ShortHelp() string          { return envShortHelp }
func (cmd *envCommand) LongHelp() string           { return envLongHelp }
func (cmd *envCommand) Hidden() bool               { return false }
func (cmd *envCommand) Register(fs *flag.FlagSet) {}

func (cmd *envCommand) Run(ctx *Ctx, args []string) error {
	sol, err := runSolve(ctx, pkgRequestsFromArgs(args))
	if err != nil {
		return err
	}

	var keys []string
	for k := range sol.Final.Options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(ctx.Loggers.Out.Writer(), "%s=%s\n", k, sol.Final.Options[k])
	}

	for _, r := range sol.Final.ResolvedInOrder() {
		var optKeys []string
		for k := range r.Spec.Options {
			optKeys = append(optKeys, k)
		}
		sort.Strings(optKeys)
		for _, k := range optKeys {
			fmt.Fprintf(ctx.Loggers.Out.Writer(), "%s_%s=%s\n", r.Spec.ID.Name, k, r.Spec.Options[k])
		}
	}
	return nil
}
