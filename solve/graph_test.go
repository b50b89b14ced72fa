package solve

import "testing"

func TestNewGraphRootIsRetrievable(t *testing.T) {
	root := NewRootState(nil, nil)
	g := NewGraph(root)
	if g.Root().State != root {
		t.Fatalf("expected Root() to return the state NewGraph was built with")
	}
	if g.Size() != 1 {
		t.Errorf("expected a fresh graph to have exactly one node, got %d", g.Size())
	}
}

func TestAddSuccessorLinksBothDirections(t *testing.T) {
	root := NewRootState(nil, nil)
	g := NewGraph(root)

	spec := runSpec("foo", "1.0.0", false)
	derived, err := Apply(root, Decision{Changes: []Change{{Kind: ChangeSetPackage, Package: "foo", Spec: spec}}})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	to, err := g.AddSuccessor(g.Root(), derived, Decision{})
	if err != nil {
		t.Fatalf("AddSuccessor: %v", err)
	}
	if to.State != derived {
		t.Errorf("expected the returned node to wrap the derived state")
	}
	if len(g.Root().Successors) != 1 {
		t.Errorf("expected one successor edge from root, got %d", len(g.Root().Successors))
	}
	if len(to.Predecessors) != 1 {
		t.Errorf("expected one predecessor edge into the derived node, got %d", len(to.Predecessors))
	}
}

func TestAddSuccessorRejectsAlreadyAttemptedBranch(t *testing.T) {
	root := NewRootState(nil, nil)
	g := NewGraph(root)
	spec := runSpec("foo", "1.0.0", false)
	derived, err := Apply(root, Decision{Changes: []Change{{Kind: ChangeSetPackage, Package: "foo", Spec: spec}}})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if _, err := g.AddSuccessor(g.Root(), derived, Decision{}); err != nil {
		t.Fatalf("first AddSuccessor: %v", err)
	}
	if _, err := g.AddSuccessor(g.Root(), derived, Decision{}); err == nil {
		t.Errorf("expected a second attempt at the same branch to error")
	}
}

func TestPathFromRootReplaysInOrder(t *testing.T) {
	root := NewRootState(nil, nil)
	g := NewGraph(root)

	d1 := Decision{Changes: []Change{{Kind: ChangeSetPackage, Package: "foo", Spec: runSpec("foo", "1.0.0", false)}}}
	s1, err := Apply(root, d1)
	if err != nil {
		t.Fatalf("Apply d1: %v", err)
	}
	n1, err := g.AddSuccessor(g.Root(), s1, d1)
	if err != nil {
		t.Fatalf("AddSuccessor 1: %v", err)
	}

	d2 := Decision{Changes: []Change{{Kind: ChangeSetPackage, Package: "bar", Spec: runSpec("bar", "1.0.0", false)}}}
	s2, err := Apply(s1, d2)
	if err != nil {
		t.Fatalf("Apply d2: %v", err)
	}
	if _, err := g.AddSuccessor(n1, s2, d2); err != nil {
		t.Fatalf("AddSuccessor 2: %v", err)
	}

	path := g.PathFromRoot(s2.ID())
	if len(path) != 2 {
		t.Fatalf("expected a 2-decision path, got %d", len(path))
	}
	if path[0].Changes[0].Package != "foo" || path[1].Changes[0].Package != "bar" {
		t.Errorf("expected the path in application order foo, bar; got %v", path)
	}
}
