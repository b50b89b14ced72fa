package solve

import (
	"testing"

	"github.com/strata-pm/strata"
)

func TestStateIDStableAcrossRequestOrder(t *testing.T) {
	a := NewRootState([]strata.PkgRequest{
		{Package: "foo", Range: strata.Any()},
		{Package: "bar", Range: strata.Any()},
	}, nil)
	b := NewRootState([]strata.PkgRequest{
		{Package: "bar", Range: strata.Any()},
		{Package: "foo", Range: strata.Any()},
	}, nil)
	if a.ID() != b.ID() {
		t.Errorf("ID should not depend on request order")
	}
}

func TestStateIDChangesWithResolution(t *testing.T) {
	base := NewRootState([]strata.PkgRequest{{Package: "foo", Range: strata.Any()}}, nil)
	before := base.ID()

	spec := strata.Spec{ID: strata.BuildID{Name: "foo", Version: strata.MustParseVersion("1.0.0")}}
	next, err := Apply(base, Decision{Changes: []Change{{
		Kind: ChangeSetPackage, Package: "foo", Spec: spec, Repository: "r",
	}}})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if next.ID() == before {
		t.Errorf("resolving a package should change the state's structural id")
	}
}

func TestResolvedInOrderPreservesInsertionOrder(t *testing.T) {
	base := NewRootState(nil, nil)
	specFor := func(name string) strata.Spec {
		return strata.Spec{ID: strata.BuildID{Name: name, Version: strata.MustParseVersion("1.0.0")}}
	}
	s1, err := Apply(base, Decision{Changes: []Change{{Kind: ChangeSetPackage, Package: "b", Spec: specFor("b")}}})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	s2, err := Apply(s1, Decision{Changes: []Change{{Kind: ChangeSetPackage, Package: "a", Spec: specFor("a")}}})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	order := s2.ResolvedInOrder()
	if len(order) != 2 || order[0].Spec.ID.Name != "b" || order[1].Spec.ID.Name != "a" {
		t.Errorf("expected insertion order [b, a], got %v", order)
	}
}

func TestCloneDoesNotAliasMaps(t *testing.T) {
	base := NewRootState(nil, nil)
	spec := strata.Spec{ID: strata.BuildID{Name: "foo", Version: strata.MustParseVersion("1.0.0")}}
	derived, err := Apply(base, Decision{Changes: []Change{{Kind: ChangeSetPackage, Package: "foo", Spec: spec}}})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(base.Resolved) != 0 {
		t.Errorf("Apply must not mutate the base state, base.Resolved = %v", base.Resolved)
	}
	if len(derived.Resolved) != 1 {
		t.Errorf("expected one resolved package in the derived state")
	}
}
