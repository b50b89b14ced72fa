package solve

import (
	"context"
	"testing"

	"github.com/strata-pm/strata"
)

func TestRuntimeStreamEmitsEventsThenResult(t *testing.T) {
	repo := newFakeRepo("r1", runSpec("foo", "1.0.0", false), runSpec("bar", "1.0.0", false))
	s := New([]strata.Repository{repo}, false, true)
	rt := NewRuntime(s)

	events, done := rt.Stream(context.Background(), []strata.PkgRequest{
		{Package: "foo", Range: strata.Any(), Components: []string{"run"}},
		{Package: "bar", Range: strata.Any(), Components: []string{"run"}},
	}, nil)

	var seen int
	for range events {
		seen++
	}
	if seen == 0 {
		t.Errorf("expected at least one Event on a successful multi-package solve")
	}

	res := <-done
	if res.Err != nil {
		t.Fatalf("Stream result: %v", res.Err)
	}
	if len(res.Solution.Final.ResolvedInOrder()) != 2 {
		t.Errorf("expected both packages resolved, got %v", res.Solution.Final.ResolvedInOrder())
	}
}

func TestRuntimeStreamReportsFailure(t *testing.T) {
	repo := newFakeRepo("r1", runSpec("foo", "1.0.0", false))
	s := New([]strata.Repository{repo}, false, true)
	rt := NewRuntime(s)

	events, done := rt.Stream(context.Background(), []strata.PkgRequest{
		{Package: "foo", Range: strata.GreaterOrEqual(strata.MustParseVersion("9.0.0")), Components: []string{"run"}},
	}, nil)

	for range events {
	}
	res := <-done
	if res.Err == nil {
		t.Errorf("expected Stream to report the underlying solve failure")
	}
}
