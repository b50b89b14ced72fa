package solve

import (
	"context"
	"errors"
	"testing"

	"github.com/strata-pm/strata"
)

func TestNewRepoIteratorSortsNewestFirst(t *testing.T) {
	repo := newFakeRepo("r1", runSpec("foo", "1.0.0", false), runSpec("foo", "2.0.0", false))
	it, err := NewRepoIterator(context.Background(), repoList{repo}, strata.PkgRequest{Package: "foo", Range: strata.Any()})
	if err != nil {
		t.Fatalf("NewRepoIterator: %v", err)
	}

	first, ok, err := it.Next(context.Background())
	if err != nil || !ok {
		t.Fatalf("Next: ok=%v err=%v", ok, err)
	}
	if first.Spec.ID.Version.String() != "2.0.0" {
		t.Errorf("expected the newest version first, got %s", first.Spec.ID.Version)
	}

	it.Advance(nil)
	second, ok, err := it.Next(context.Background())
	if err != nil || !ok {
		t.Fatalf("Next: ok=%v err=%v", ok, err)
	}
	if second.Spec.ID.Version.String() != "1.0.0" {
		t.Errorf("expected 1.0.0 second, got %s", second.Spec.ID.Version)
	}

	it.Advance(errors.New("rejected"))
	_, ok, err = it.Next(context.Background())
	if err != nil || ok {
		t.Errorf("expected the iterator to be exhausted, got ok=%v err=%v", ok, err)
	}
}

func TestNewRepoIteratorSkipsDeprecated(t *testing.T) {
	repo := newFakeRepo("r1", runSpec("foo", "1.0.0", true))
	it, err := NewRepoIterator(context.Background(), repoList{repo}, strata.PkgRequest{Package: "foo", Range: strata.Any()})
	if err != nil {
		t.Fatalf("NewRepoIterator: %v", err)
	}
	if _, ok, err := it.Next(context.Background()); ok || err != nil {
		t.Errorf("expected a deprecated-only repo to yield no candidates, got ok=%v err=%v", ok, err)
	}
}

func TestNewRepoIteratorHonorsPinnedBuildID(t *testing.T) {
	repo := newFakeRepo("r1", runSpec("foo", "1.0.0", false), runSpec("foo", "2.0.0", false))
	pin := strata.BuildID{Repository: "r1", Name: "foo", Version: strata.MustParseVersion("1.0.0"), Digest: strata.OpaqueDigest("foo-1.0.0")}
	it, err := NewRepoIterator(context.Background(), repoList{repo}, strata.PkgRequest{Package: "foo", BuildID: &pin})
	if err != nil {
		t.Fatalf("NewRepoIterator: %v", err)
	}
	cand, ok, err := it.Next(context.Background())
	if err != nil || !ok {
		t.Fatalf("Next: ok=%v err=%v", ok, err)
	}
	if cand.Spec.ID.Version.String() != "1.0.0" {
		t.Errorf("expected the pinned version 1.0.0, got %s", cand.Spec.ID.Version)
	}
	it.Advance(nil)
	if _, ok, _ := it.Next(context.Background()); ok {
		t.Errorf("expected a pinned iterator to yield exactly one candidate")
	}
}
