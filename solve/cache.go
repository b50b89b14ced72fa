package solve

import (
	"context"
	"encoding/json"

	"github.com/strata-pm/strata"
	"github.com/strata-pm/strata/internal/cache"
)

// CachedRepository decorates a strata.Repository with a persistent
// spec cache, so repeated solves against the same repository skip
// ReadSpec round-trips for builds it has already seen. Everything but
// ReadSpec passes straight through.
type CachedRepository struct {
	strata.Repository
	cache *cache.Cache
}

// NewCachedRepository wraps repo with c.
func NewCachedRepository(repo strata.Repository, c *cache.Cache) *CachedRepository {
	return &CachedRepository{Repository: repo, cache: c}
}

func (r *CachedRepository) ReadSpec(ctx context.Context, id strata.BuildID) (strata.Spec, error) {
	const rank = 0 // specs are keyed by the full BuildID already; no version fan-out needed
	spec, ok, err := r.cache.Get(id, rank, decodeSpec)
	if err != nil {
		return strata.Spec{}, err
	}
	if ok {
		return spec, nil
	}

	spec, err = r.Repository.ReadSpec(ctx, id)
	if err != nil {
		return strata.Spec{}, err
	}
	if err := r.cache.Put(id, rank, spec, encodeSpec); err != nil {
		return strata.Spec{}, err
	}
	return spec, nil
}

// cachedSpec is the JSON-serializable mirror of strata.Spec used only
// for cache persistence; VersionRange is a closed interface with
// unexported variants, so each requirement's range travels as a
// strata.RangeJSON instead of being embedded directly.
type cachedSpec struct {
	ID           strata.BuildID
	Options      map[string]string
	Requirements []cachedRequest
	Components   []cachedComponent
	Deprecated   bool
}

type cachedComponent struct {
	Name     string
	Embeds   []string
	Requires []cachedRequest
	Uses     []string
}

type cachedRequest struct {
	Package    string
	Components []string
	Range      strata.RangeJSON
	BuildID    *strata.BuildID
	Inclusion  strata.InclusionPolicy
	Prerelease strata.PrereleasePolicy
	Requesters []string
}

func encodeRequest(r strata.PkgRequest) cachedRequest {
	return cachedRequest{
		Package:    r.Package,
		Components: r.Components,
		Range:      strata.EncodeRangeJSON(r.Range),
		BuildID:    r.BuildID,
		Inclusion:  r.Inclusion,
		Prerelease: r.Prerelease,
		Requesters: r.Requesters,
	}
}

func decodeRequest(r cachedRequest) (strata.PkgRequest, error) {
	rng, err := strata.DecodeRangeJSON(r.Range)
	if err != nil {
		return strata.PkgRequest{}, err
	}
	return strata.PkgRequest{
		Package:    r.Package,
		Components: r.Components,
		Range:      rng,
		BuildID:    r.BuildID,
		Inclusion:  r.Inclusion,
		Prerelease: r.Prerelease,
		Requesters: r.Requesters,
	}, nil
}

func encodeSpec(s strata.Spec) ([]byte, error) {
	cs := cachedSpec{
		ID:         s.ID,
		Options:    s.Options,
		Deprecated: s.Deprecated,
	}
	for _, r := range s.Requirements {
		cs.Requirements = append(cs.Requirements, encodeRequest(r))
	}
	for _, c := range s.Components {
		cc := cachedComponent{Name: c.Name, Embeds: c.Embeds, Uses: c.Uses}
		for _, r := range c.Requires {
			cc.Requires = append(cc.Requires, encodeRequest(r))
		}
		cs.Components = append(cs.Components, cc)
	}
	return json.Marshal(cs)
}

func decodeSpec(data []byte) (strata.Spec, error) {
	var cs cachedSpec
	if err := json.Unmarshal(data, &cs); err != nil {
		return strata.Spec{}, err
	}
	s := strata.Spec{
		ID:         cs.ID,
		Options:    cs.Options,
		Deprecated: cs.Deprecated,
	}
	for _, r := range cs.Requirements {
		req, err := decodeRequest(r)
		if err != nil {
			return strata.Spec{}, err
		}
		s.Requirements = append(s.Requirements, req)
	}
	for _, cc := range cs.Components {
		c := strata.Component{Name: cc.Name, Embeds: cc.Embeds, Uses: cc.Uses}
		for _, r := range cc.Requires {
			req, err := decodeRequest(r)
			if err != nil {
				return strata.Spec{}, err
			}
			c.Requires = append(c.Requires, req)
		}
		s.Components = append(s.Components, c)
	}
	return s, nil
}
