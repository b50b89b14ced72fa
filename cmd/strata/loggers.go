// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import "log"

// Loggers holds standard loggers and a verbosity flag, same shape as
// the teacher's cmd/dep Loggers, generalized with a Vlogf verbosity
// gate folded in from its separate internal/util package-global.
type Loggers struct {
	Out, Err *log.Logger
	Verbose  bool
}

// Vlogf writes to Out only when Verbose is set. The -v flag also makes
// runSolve stream a per-decision trace.
func (l *Loggers) Vlogf(format string, args ...interface{}) {
	if !l.Verbose {
		return
	}
	l.Out.Printf(format, args...)
}
