// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import "github.com/strata-pm/strata"

// Ctx is the per-invocation context threaded through every subcommand:
// loggers, the parsed config, and the global toggle flags spec.md §6
// lists (verbosity, multi-strategy race, impossible-check).
type Ctx struct {
	Loggers    *Loggers
	WorkingDir string
	Config     *Config
}

// Repos returns the repository list a command should solve or browse
// against.
func (c *Ctx) Repos() []strata.Repository { return c.Config.Repos }
