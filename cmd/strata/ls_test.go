// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"context"
	"io"
	"log"
	"strings"
	"testing"

	"github.com/strata-pm/strata"
)

// listRepo is a minimal strata.Repository exposing only ListPackages
// and ListVersions, enough to exercise lsCommand.
type listRepo struct {
	name     string
	versions map[string][]strata.Version
}

func (r *listRepo) Name() string { return r.name }
func (r *listRepo) ListPackages(ctx context.Context) ([]string, error) {
	var out []string
	for pkg := range r.versions {
		out = append(out, pkg)
	}
	return out, nil
}
func (r *listRepo) ListVersions(ctx context.Context, pkg string) ([]strata.Version, error) {
	return r.versions[pkg], nil
}
func (r *listRepo) ListBuilds(ctx context.Context, pkg string, v strata.Version) ([]strata.BuildID, error) {
	return nil, nil
}
func (r *listRepo) ReadRecipe(ctx context.Context, pkg string, v strata.Version) (strata.Recipe, error) {
	return nil, &strata.RepoError{Repo: r.name, Err: errLsTest}
}
func (r *listRepo) ReadSpec(ctx context.Context, id strata.BuildID) (strata.Spec, error) {
	return strata.Spec{}, &strata.RepoError{Repo: r.name, Err: errLsTest}
}
func (r *listRepo) OpenPayload(ctx context.Context, digest string) (strata.Payload, error) {
	return strata.Payload{}, &strata.RepoError{Repo: r.name, Err: errLsTest}
}
func (r *listRepo) ListComponents(ctx context.Context, id strata.BuildID) ([]string, error) {
	return nil, nil
}
func (r *listRepo) Publish(ctx context.Context, spec strata.Spec, payload io.Reader, recipe *strata.Recipe) error {
	return &strata.RepoError{Repo: r.name, Err: errLsTest}
}

var errLsTest = lsTestError{}

type lsTestError struct{}

func (lsTestError) Error() string { return "unsupported" }

func testCtx(buf *bytes.Buffer, repos ...strata.Repository) *Ctx {
	return &Ctx{
		Loggers: &Loggers{Out: log.New(buf, "", 0), Err: log.New(io.Discard, "", 0)},
		Config:  &Config{Repos: repos},
	}
}

func TestLsListPackagesSortsAndDedupes(t *testing.T) {
	repo := &listRepo{name: "r1", versions: map[string][]strata.Version{
		"foo": {strata.MustParseVersion("1.0.0")},
		"bar": {strata.MustParseVersion("1.0.0")},
	}}
	var buf bytes.Buffer
	ctx := testCtx(&buf, repo)

	cmd := &lsCommand{}
	if err := cmd.Run(ctx, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	out := buf.String()
	if strings.Index(out, "bar") > strings.Index(out, "foo") {
		t.Errorf("expected bar before foo in sorted output, got:\n%s", out)
	}
}

func TestLsListVersionsSortsNewestFirst(t *testing.T) {
	repo := &listRepo{name: "r1", versions: map[string][]strata.Version{
		"foo": {strata.MustParseVersion("1.0.0"), strata.MustParseVersion("2.0.0")},
	}}
	var buf bytes.Buffer
	ctx := testCtx(&buf, repo)

	cmd := &lsCommand{}
	if err := cmd.Run(ctx, []string{"foo"}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	out := buf.String()
	if strings.Index(out, "2.0.0") > strings.Index(out, "1.0.0") {
		t.Errorf("expected 2.0.0 listed before 1.0.0, got:\n%s", out)
	}
}

func TestLsRequiresConfiguredRepositories(t *testing.T) {
	var buf bytes.Buffer
	ctx := testCtx(&buf)
	cmd := &lsCommand{}
	if err := cmd.Run(ctx, nil); err == nil {
		t.Errorf("expected an error with no repositories configured")
	}
}
