// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/strata-pm/strata"
)

// solveRepo is a minimal strata.Repository able to actually drive a
// solve, backing both env and solve command tests.
type solveRepo struct {
	name  string
	specs []strata.Spec
}

func (r *solveRepo) Name() string { return r.name }
func (r *solveRepo) ListPackages(ctx context.Context) ([]string, error) { return nil, nil }
func (r *solveRepo) ListVersions(ctx context.Context, pkg string) ([]strata.Version, error) {
	var out []strata.Version
	for _, s := range r.specs {
		if s.ID.Name == pkg {
			out = append(out, s.ID.Version)
		}
	}
	return out, nil
}
func (r *solveRepo) ListBuilds(ctx context.Context, pkg string, v strata.Version) ([]strata.BuildID, error) {
	var out []strata.BuildID
	for _, s := range r.specs {
		if s.ID.Name == pkg && s.ID.Version.Equal(v) {
			out = append(out, s.ID)
		}
	}
	return out, nil
}
func (r *solveRepo) ReadRecipe(ctx context.Context, pkg string, v strata.Version) (strata.Recipe, error) {
	return nil, &strata.RepoError{Repo: r.name, Err: errLsTest}
}
func (r *solveRepo) ReadSpec(ctx context.Context, id strata.BuildID) (strata.Spec, error) {
	for _, s := range r.specs {
		if s.ID.Equal(id) {
			return s, nil
		}
	}
	return strata.Spec{}, &strata.RepoError{Repo: r.name, Err: errLsTest, TryNextRepo: true}
}
func (r *solveRepo) OpenPayload(ctx context.Context, digest string) (strata.Payload, error) {
	return strata.Payload{}, &strata.RepoError{Repo: r.name, Err: errLsTest}
}
func (r *solveRepo) ListComponents(ctx context.Context, id strata.BuildID) ([]string, error) {
	spec, err := r.ReadSpec(ctx, id)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, c := range spec.Components {
		out = append(out, c.Name)
	}
	return out, nil
}
func (r *solveRepo) Publish(ctx context.Context, spec strata.Spec, payload io.Reader, recipe *strata.Recipe) error {
	return &strata.RepoError{Repo: r.name, Err: errLsTest}
}

func envTestCtx(buf *bytes.Buffer, specs ...strata.Spec) *Ctx {
	for i := range specs {
		specs[i].ID.Repository = "r1"
	}
	repo := &solveRepo{name: "r1", specs: specs}
	ctx := testCtx(buf, repo)
	return ctx
}

func TestEnvPrintsResolvedOptions(t *testing.T) {
	spec := strata.Spec{
		ID:         strata.BuildID{Name: "foo", Version: strata.MustParseVersion("1.0.0"), Digest: strata.OpaqueDigest("foo-1")},
		Options:    map[string]string{"toolchain": "gcc"},
		Components: []strata.Component{{Name: "run"}},
	}
	var buf bytes.Buffer
	ctx := envTestCtx(&buf, spec)

	cmd := &envCommand{}
	if err := cmd.Run(ctx, []string{"foo"}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "foo_toolchain=gcc") {
		t.Errorf("expected a per-package option line, got:\n%s", out)
	}
}

func TestSolveCommandPrintsResolvedBuildIDs(t *testing.T) {
	spec := strata.Spec{
		ID:         strata.BuildID{Name: "foo", Version: strata.MustParseVersion("1.0.0"), Digest: strata.OpaqueDigest("foo-1")},
		Components: []strata.Component{{Name: "run"}},
	}
	var buf bytes.Buffer
	ctx := envTestCtx(&buf, spec)

	cmd := &solveCommand{}
	if err := cmd.Run(ctx, []string{"foo"}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(buf.String(), "foo") {
		t.Errorf("expected the resolved build id printed, got:\n%s", buf.String())
	}
}

func TestRunSolveRequiresArgs(t *testing.T) {
	var buf bytes.Buffer
	ctx := envTestCtx(&buf)
	if _, err := runSolve(ctx, nil); err == nil {
		t.Errorf("expected an error with no package requests")
	}
}
