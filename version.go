package strata

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/Masterminds/semver"
)

// CompatRule is the three-level compatibility lattice a build may
// promise: None, carrying no guarantee; API, promising source
// compatibility; Binary, promising ABI compatibility. Binary implies
// API implies None.
type CompatRule int

const (
	CompatNone CompatRule = iota
	CompatAPI
	CompatBinary
)

func (r CompatRule) String() string {
	switch r {
	case CompatAPI:
		return "api"
	case CompatBinary:
		return "binary"
	default:
		return "none"
	}
}

// Satisfies reports whether r is at least as strong as min.
func (r CompatRule) Satisfies(min CompatRule) bool { return r >= min }

// ParseCompatRule parses the three textual spellings of CompatRule.
func ParseCompatRule(s string) (CompatRule, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return CompatNone, nil
	case "api":
		return CompatAPI, nil
	case "binary":
		return CompatBinary, nil
	default:
		return CompatNone, fmt.Errorf("strata: unknown compatibility rule %q", s)
	}
}

// Version is an ordered tuple of non-negative integers, an optional set
// of pre-release tags, and a mapping of post-release tag names to
// integers. Total order is lexicographic: the numeric tuple first,
// then pre-release presence (absent sorts after present - a release
// is greater than any of its pre-releases), then post-release tags
// compared numerically.
//
// Version wraps github.com/Masterminds/semver for the numeric-tuple
// comparisons and layers strata's own pre/post-release tag rules on
// top, the way the teacher's Constraint sum type layers on
// semver.Constraint.
type Version struct {
	sv   *semver.Version
	pre  []string          // pre-release tags, in declaration order
	post map[string]int64  // post-release tag -> value
	raw  string            // original input, for String()
}

// ParseVersion parses a version string of the form
// "<major>.<minor>.<patch>[-pre.N...][+name=N[.name=N...]]". Pre-release
// components are those github.com/Masterminds/semver already
// recognizes (the "-" suffix); post-release components use strata's
// own dot-separated "name=N" tags after "+" (a tag without "=N" has
// value 0), distinct from semver build metadata.
func ParseVersion(s string) (Version, error) {
	raw := s
	var post map[string]int64
	if i := strings.IndexByte(s, '+'); i >= 0 {
		post = make(map[string]int64)
		for _, tag := range strings.Split(s[i+1:], ".") {
			parts := strings.SplitN(tag, "=", 2)
			name := parts[0]
			var val int64
			if len(parts) == 2 {
				v, err := strconv.ParseInt(parts[1], 10, 64)
				if err != nil {
					return Version{}, fmt.Errorf("strata: bad post-release tag %q: %w", tag, err)
				}
				val = v
			}
			post[name] = val
		}
		s = s[:i]
	}

	sv, err := semver.NewVersion(s)
	if err != nil {
		return Version{}, fmt.Errorf("strata: invalid version %q: %w", raw, err)
	}

	var pre []string
	if p := sv.Prerelease(); p != "" {
		pre = strings.Split(p, ".")
	}

	return Version{sv: sv, pre: pre, post: post, raw: raw}, nil
}

// MustParseVersion is like ParseVersion but panics on error; intended
// for tests and static data.
func MustParseVersion(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

func (v Version) String() string {
	if v.raw != "" {
		return v.raw
	}
	return v.sv.String()
}

// IsZero reports whether v is the unparsed zero value.
func (v Version) IsZero() bool { return v.sv == nil }

// HasPrerelease reports whether v carries pre-release tags.
func (v Version) HasPrerelease() bool { return len(v.pre) > 0 }

// Compare orders v against o: -1, 0, or 1. Numeric tuple first, then
// pre-release (a version with pre-release tags sorts before the same
// numeric tuple without any), then post-release tags compared
// numerically key by key.
func (v Version) Compare(o Version) int {
	if c := v.sv.Compare(o.sv); c != 0 {
		return c
	}
	switch {
	case v.HasPrerelease() && !o.HasPrerelease():
		return -1
	case !v.HasPrerelease() && o.HasPrerelease():
		return 1
	case v.HasPrerelease() && o.HasPrerelease():
		if c := strings.Compare(strings.Join(v.pre, "."), strings.Join(o.pre, ".")); c != 0 {
			return c
		}
	}

	// Post-release tags: any key present in one but not the other is
	// treated as 0 for comparison purposes.
	keys := make(map[string]bool)
	for k := range v.post {
		keys[k] = true
	}
	for k := range o.post {
		keys[k] = true
	}
	for k := range keys {
		a, b := v.post[k], o.post[k]
		if a != b {
			if a < b {
				return -1
			}
			return 1
		}
	}
	return 0
}

// Equal reports whether v and o compare equal.
func (v Version) Equal(o Version) bool { return v.Compare(o) == 0 }

// MarshalJSON renders v as its canonical string form; Version's
// fields are all unexported, so the default struct marshaling would
// otherwise serialize to an empty object.
func (v Version) MarshalJSON() ([]byte, error) {
	if v.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(v.String())
}

// UnmarshalJSON parses the string form written by MarshalJSON.
func (v *Version) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*v = Version{}
		return nil
	}
	parsed, err := ParseVersion(s)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
