// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"testing"
)

func TestBuildRequiresMountFlag(t *testing.T) {
	var buf bytes.Buffer
	ctx := testCtx(&buf)
	cmd := &buildCommand{}
	if err := cmd.Run(ctx, []string{"foo"}); err == nil {
		t.Errorf("expected an error when -mount is not set")
	}
}
