package solve

import (
	"context"
	"testing"

	"github.com/strata-pm/strata"
	"github.com/strata-pm/strata/internal/cache"
)

// countingRepo wraps a fakeRepo and counts ReadSpec calls, to verify
// CachedRepository actually avoids a second round-trip.
type countingRepo struct {
	*fakeRepo
	reads int
}

func (r *countingRepo) ReadSpec(ctx context.Context, id strata.BuildID) (strata.Spec, error) {
	r.reads++
	return r.fakeRepo.ReadSpec(ctx, id)
}

func TestCachedRepositoryAvoidsSecondReadSpec(t *testing.T) {
	c, err := cache.Open(t.TempDir())
	if err != nil {
		t.Fatalf("cache.Open: %v", err)
	}
	defer c.Close()

	spec := runSpec("foo", "1.0.0", false)
	base := &countingRepo{fakeRepo: newFakeRepo("r1", spec)}
	cached := NewCachedRepository(base, c)

	id := base.specs[0].ID
	if _, err := cached.ReadSpec(context.Background(), id); err != nil {
		t.Fatalf("ReadSpec (first): %v", err)
	}
	if _, err := cached.ReadSpec(context.Background(), id); err != nil {
		t.Fatalf("ReadSpec (second): %v", err)
	}
	if base.reads != 1 {
		t.Errorf("expected exactly one underlying ReadSpec call, got %d", base.reads)
	}
}

func TestCachedRepositoryRoundTripsComponentsAndRequirements(t *testing.T) {
	c, err := cache.Open(t.TempDir())
	if err != nil {
		t.Fatalf("cache.Open: %v", err)
	}
	defer c.Close()

	spec := runSpec("foo", "1.0.0", false)
	spec.Requirements = []strata.PkgRequest{{Package: "bar", Range: strata.GreaterOrEqual(strata.MustParseVersion("2.0.0"))}}
	spec.Components = []strata.Component{{Name: "run", Uses: []string{"lib"}}, {Name: "lib"}}
	base := &countingRepo{fakeRepo: newFakeRepo("r1", spec)}
	cached := NewCachedRepository(base, c)

	id := base.specs[0].ID
	got, err := cached.ReadSpec(context.Background(), id)
	if err != nil {
		t.Fatalf("ReadSpec: %v", err)
	}
	if len(got.Requirements) != 1 || got.Requirements[0].Package != "bar" {
		t.Errorf("expected requirement on bar to survive the cache round trip, got %v", got.Requirements)
	}
	if !got.Requirements[0].Range.IsApplicable(strata.MustParseVersion("3.0.0")).OK {
		t.Errorf("expected the cached requirement's range to still apply correctly")
	}
	if len(got.Components) != 2 {
		t.Errorf("expected both components to survive the cache round trip, got %v", got.Components)
	}
}
