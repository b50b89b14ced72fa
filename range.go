package strata

import (
	"fmt"
	"sort"
	"strings"
)

// Compatibility is the structured verdict a VersionRange returns from
// IsApplicable and Contains, in place of a bare boolean, so a solver
// failure can be attributed to the clause that produced it.
type Compatibility struct {
	OK     bool
	Reason string
}

// Compatible is the affirmative Compatibility value.
var Compatible = Compatibility{OK: true}

// Incompatible builds a negative Compatibility carrying reason.
func Incompatible(reason string, args ...interface{}) Compatibility {
	return Compatibility{OK: false, Reason: fmt.Sprintf(reason, args...)}
}

func (c Compatibility) String() string {
	if c.OK {
		return "compatible"
	}
	return "incompatible: " + c.Reason
}

// VersionRange is a closed sum type over the range variants a
// requirement can express (any, none, the equality and inequality
// forms, the four bounds, ceiling, wildcard, tilde, compat and
// filter). Its method set mirrors the teacher's
// Constraint interface (Matches/MatchesAny/Intersect), renamed to the
// domain's own vocabulary and widened with GreaterOrEqualTo/LessThan
// bound accessors and a Compatibility-returning IsApplicable.
//
// The interface carries an unexported method so the variant set stays
// closed to this package.
type VersionRange interface {
	fmt.Stringer

	// IsApplicable reports whether v satisfies the range.
	IsApplicable(v Version) Compatibility

	// Contains reports whether every version accepted by other is also
	// accepted by r.
	Contains(other VersionRange) Compatibility

	// Intersects computes the intersection of r and other, restricted
	// to a single VersionRange, or reports incompatibility if the
	// result would be empty.
	Intersects(other VersionRange) (VersionRange, Compatibility)

	// GreaterOrEqualTo and LessThan expose the bounds a range reduces
	// to for the version-queue ordering in the solver; ok is false when
	// that side is unbounded. The LessThan bound is exclusive for "<"
	// and the ceiling-style ranges but inclusive for "<=", "=" and "==".
	GreaterOrEqualTo() (v Version, ok bool)
	LessThan() (v Version, ok bool)

	sealed()
}

// mustVersionf builds a plain major.minor.patch Version, used to
// compute the exclusive upper bound of ceiling/tilde/wildcard ranges.
func mustVersionf(format string, args ...interface{}) Version {
	return MustParseVersion(fmt.Sprintf(format, args...))
}

// Any matches every version.
func Any() VersionRange { return anyRange{} }

// None matches no version - the empty set, returned by a failed
// Intersects.
func None() VersionRange { return noneRange{} }

type anyRange struct{}

func (anyRange) String() string                                    { return "*" }
func (anyRange) IsApplicable(Version) Compatibility                { return Compatible }
func (anyRange) Contains(VersionRange) Compatibility                { return Compatible }
func (anyRange) Intersects(o VersionRange) (VersionRange, Compatibility) { return o, Compatible }
func (anyRange) GreaterOrEqualTo() (Version, bool)                  { return Version{}, false }
func (anyRange) LessThan() (Version, bool)                          { return Version{}, false }
func (anyRange) sealed()                                            {}

type noneRange struct{}

func (noneRange) String() string     { return "<none>" }
func (noneRange) IsApplicable(Version) Compatibility {
	return Incompatible("empty range matches nothing")
}
func (noneRange) Contains(VersionRange) Compatibility {
	return Incompatible("empty range contains nothing")
}
func (noneRange) Intersects(VersionRange) (VersionRange, Compatibility) {
	return noneRange{}, Incompatible("empty range")
}
func (noneRange) GreaterOrEqualTo() (Version, bool) { return Version{}, false }
func (noneRange) LessThan() (Version, bool)         { return Version{}, false }
func (noneRange) sealed()                           {}

// equalRange matches exactly one version, ignoring post-release tags.
type equalRange struct{ v Version }

// Equal builds a VersionRange matching exactly v's numeric tuple and
// pre-release tags, ignoring post-release tags.
func Equal(v Version) VersionRange { return equalRange{v} }

func (r equalRange) String() string { return "=" + r.v.String() }
func (r equalRange) IsApplicable(v Version) Compatibility {
	c := v
	c.post = nil
	base := r.v
	base.post = nil
	if base.Compare(c) == 0 {
		return Compatible
	}
	return Incompatible("%s != %s", v, r.v)
}
func (r equalRange) Contains(o VersionRange) Compatibility {
	oe, ok := o.(equalRange)
	if !ok {
		return Incompatible("%s cannot contain %s", r, o)
	}
	return r.IsApplicable(oe.v)
}
func (r equalRange) Intersects(o VersionRange) (VersionRange, Compatibility) {
	if c := o.IsApplicable(r.v); c.OK {
		return r, Compatible
	}
	return noneRange{}, Incompatible("%s does not intersect %s", r, o)
}
func (r equalRange) GreaterOrEqualTo() (Version, bool) { return r.v, true }
func (r equalRange) LessThan() (Version, bool)         { return r.v, true }
func (r equalRange) sealed()                           {}

// doubleEqualRange matches exactly one version, including post-release
// tags - the strictest possible range.
type doubleEqualRange struct{ v Version }

// DoubleEqual builds a VersionRange matching v exactly, post-release
// tags included.
func DoubleEqual(v Version) VersionRange { return doubleEqualRange{v} }

func (r doubleEqualRange) String() string { return "==" + r.v.String() }
func (r doubleEqualRange) IsApplicable(v Version) Compatibility {
	if r.v.Equal(v) {
		return Compatible
	}
	return Incompatible("%s !== %s", v, r.v)
}
func (r doubleEqualRange) Contains(o VersionRange) Compatibility {
	oe, ok := o.(doubleEqualRange)
	if !ok || !oe.v.Equal(r.v) {
		return Incompatible("%s cannot contain %s", r, o)
	}
	return Compatible
}
func (r doubleEqualRange) Intersects(o VersionRange) (VersionRange, Compatibility) {
	if c := o.IsApplicable(r.v); c.OK {
		return r, Compatible
	}
	return noneRange{}, Incompatible("%s does not intersect %s", r, o)
}
func (r doubleEqualRange) GreaterOrEqualTo() (Version, bool) { return r.v, true }
func (r doubleEqualRange) LessThan() (Version, bool)         { return r.v, true }
func (r doubleEqualRange) sealed()                           {}

// inequalRange matches everything but one version.
type inequalRange struct{ v Version }

// NotEqual builds a VersionRange excluding exactly v's numeric tuple
// and pre-release tags.
func NotEqual(v Version) VersionRange { return inequalRange{v} }

func (r inequalRange) String() string { return "!=" + r.v.String() }
func (r inequalRange) IsApplicable(v Version) Compatibility {
	if equalRange{r.v}.IsApplicable(v).OK {
		return Incompatible("%s == excluded %s", v, r.v)
	}
	return Compatible
}
func (r inequalRange) Contains(o VersionRange) Compatibility {
	switch oe := o.(type) {
	case inequalRange:
		if oe.v.Equal(r.v) {
			return Compatible
		}
	case equalRange, doubleEqualRange:
		if gv, _ := o.GreaterOrEqualTo(); !equalRange{r.v}.IsApplicable(gv).OK {
			return Compatible
		}
	}
	return Incompatible("%s cannot be shown to contain %s", r, o)
}
func (r inequalRange) Intersects(o VersionRange) (VersionRange, Compatibility) {
	return intersectGeneric(r, o)
}
func (r inequalRange) GreaterOrEqualTo() (Version, bool) { return Version{}, false }
func (r inequalRange) LessThan() (Version, bool)         { return Version{}, false }
func (r inequalRange) sealed()                           {}

// doubleNotEqualRange excludes one version including post-release tags.
type doubleNotEqualRange struct{ v Version }

// DoubleNotEqual builds a VersionRange excluding exactly v, post-release
// tags included.
func DoubleNotEqual(v Version) VersionRange { return doubleNotEqualRange{v} }

func (r doubleNotEqualRange) String() string { return "!==" + r.v.String() }
func (r doubleNotEqualRange) IsApplicable(v Version) Compatibility {
	if r.v.Equal(v) {
		return Incompatible("%s === excluded %s", v, r.v)
	}
	return Compatible
}
func (r doubleNotEqualRange) Contains(o VersionRange) Compatibility {
	return intersectsContains(r, o)
}
func (r doubleNotEqualRange) Intersects(o VersionRange) (VersionRange, Compatibility) {
	return intersectGeneric(r, o)
}
func (r doubleNotEqualRange) GreaterOrEqualTo() (Version, bool) { return Version{}, false }
func (r doubleNotEqualRange) LessThan() (Version, bool)         { return Version{}, false }
func (r doubleNotEqualRange) sealed()                           {}

// boundRange is the shared implementation for the four bound
// comparisons (<, <=, >, >=); kind selects which.
type boundKind int

const (
	boundLess boundKind = iota
	boundLessEqual
	boundGreater
	boundGreaterEqual
)

type boundRange struct {
	v    Version
	kind boundKind
}

// LessThanVersion, LessOrEqual, GreaterThan, and GreaterOrEqual build
// the four half-open/closed bound ranges.
func LessThanVersion(v Version) VersionRange { return boundRange{v, boundLess} }
func LessOrEqual(v Version) VersionRange     { return boundRange{v, boundLessEqual} }
func GreaterThan(v Version) VersionRange     { return boundRange{v, boundGreater} }
func GreaterOrEqual(v Version) VersionRange  { return boundRange{v, boundGreaterEqual} }

func (r boundRange) String() string {
	switch r.kind {
	case boundLess:
		return "<" + r.v.String()
	case boundLessEqual:
		return "<=" + r.v.String()
	case boundGreater:
		return ">" + r.v.String()
	default:
		return ">=" + r.v.String()
	}
}

func (r boundRange) IsApplicable(v Version) Compatibility {
	c := v.Compare(r.v)
	var ok bool
	switch r.kind {
	case boundLess:
		ok = c < 0
	case boundLessEqual:
		ok = c <= 0
	case boundGreater:
		ok = c > 0
	case boundGreaterEqual:
		ok = c >= 0
	}
	if ok {
		return Compatible
	}
	return Incompatible("%s does not satisfy %s", v, r)
}

// Contains compares two bounds of the same direction directly; any
// other pairing falls back to intersectsContains.
func (r boundRange) Contains(o VersionRange) Compatibility {
	lower := func(k boundKind) bool { return k == boundGreater || k == boundGreaterEqual }
	strict := func(k boundKind) bool { return k == boundGreater || k == boundLess }
	if ob, ok := o.(boundRange); ok && lower(r.kind) == lower(ob.kind) {
		c := ob.v.Compare(r.v)
		inside := (lower(r.kind) && c >= 0) || (!lower(r.kind) && c <= 0)
		if inside && (c != 0 || !strict(r.kind) || strict(ob.kind)) {
			return Compatible
		}
		return Incompatible("%s does not fully contain %s", r, o)
	}
	return intersectsContains(r, o)
}
func (r boundRange) Intersects(o VersionRange) (VersionRange, Compatibility) {
	return intersectGeneric(r, o)
}

func (r boundRange) GreaterOrEqualTo() (Version, bool) {
	if r.kind == boundGreater || r.kind == boundGreaterEqual {
		return r.v, true
	}
	return Version{}, false
}
func (r boundRange) LessThan() (Version, bool) {
	if r.kind == boundLess || r.kind == boundLessEqual {
		return r.v, true
	}
	return Version{}, false
}
func (r boundRange) sealed() {}

// semverRange is the major-increment ceiling variant (a caret range in
// semver parlance): accepts any version from base up to, but excluding,
// the next increment of its leftmost nonzero numeric component.
type semverRange struct{ base Version }

// SemverCeiling builds the "^" caret-style range anchored at base.
func SemverCeiling(base Version) VersionRange { return semverRange{base} }

func (r semverRange) String() string { return "^" + r.base.String() }
func (r semverRange) IsApplicable(v Version) Compatibility {
	lo, hi := r.bounds()
	if v.Compare(lo) >= 0 && v.Compare(hi) < 0 {
		return Compatible
	}
	return Incompatible("%s outside ceiling range %s", v, r)
}
func (r semverRange) bounds() (lo, hi Version) {
	lo = r.base
	major, minor := r.base.sv.Major(), r.base.sv.Minor()
	switch {
	case major != 0:
		hi = mustVersionf("%d.0.0", major+1)
	case minor != 0:
		hi = mustVersionf("0.%d.0", minor+1)
	default:
		hi = mustVersionf("0.0.%d", r.base.sv.Patch()+1)
	}
	return lo, hi
}
func (r semverRange) Contains(o VersionRange) Compatibility { return intersectsContains(r, o) }
func (r semverRange) Intersects(o VersionRange) (VersionRange, Compatibility) {
	return intersectGeneric(r, o)
}
func (r semverRange) GreaterOrEqualTo() (Version, bool) { return r.base, true }
func (r semverRange) LessThan() (Version, bool)         { _, hi := r.bounds(); return hi, true }
func (r semverRange) sealed()                           {}

// wildcardRange leaves exactly one trailing numeric slot free, e.g.
// "1.2.*" matching any patch release of 1.2.
type wildcardRange struct{ base Version }

// Wildcard builds a range that frees exactly one trailing numeric slot
// of base.
func Wildcard(base Version) VersionRange { return wildcardRange{base} }

func (r wildcardRange) String() string { return r.base.String() + ".*" }
func (r wildcardRange) IsApplicable(v Version) Compatibility {
	if v.sv.Major() == r.base.sv.Major() && v.sv.Minor() == r.base.sv.Minor() {
		return Compatible
	}
	return Incompatible("%s does not match wildcard %s", v, r)
}
func (r wildcardRange) Contains(o VersionRange) Compatibility { return intersectsContains(r, o) }
func (r wildcardRange) Intersects(o VersionRange) (VersionRange, Compatibility) {
	return intersectGeneric(r, o)
}
func (r wildcardRange) GreaterOrEqualTo() (Version, bool) { return r.base, true }
func (r wildcardRange) LessThan() (Version, bool) {
	return mustVersionf("%d.%d.0", r.base.sv.Major(), r.base.sv.Minor()+1), true
}
func (r wildcardRange) sealed() {}

// tildeRange (the "lowest-specified" variant) accepts any version equal
// to or greater than base whose components down to the last one
// explicitly specified in base match exactly - e.g. "~1.2" accepts
// 1.2.x for any x but not 1.3.0.
type tildeRange struct{ base Version }

// Tilde builds the lowest-specified range anchored at base.
func Tilde(base Version) VersionRange { return tildeRange{base} }

func (r tildeRange) String() string { return "~" + r.base.String() }
func (r tildeRange) IsApplicable(v Version) Compatibility {
	lo, hi := r.bounds()
	if v.Compare(lo) >= 0 && v.Compare(hi) < 0 {
		return Compatible
	}
	return Incompatible("%s outside tilde range %s", v, r)
}
func (r tildeRange) bounds() (lo, hi Version) {
	return r.base, mustVersionf("%d.%d.0", r.base.sv.Major(), r.base.sv.Minor()+1)
}
func (r tildeRange) Contains(o VersionRange) Compatibility { return intersectsContains(r, o) }
func (r tildeRange) Intersects(o VersionRange) (VersionRange, Compatibility) {
	return intersectGeneric(r, o)
}
func (r tildeRange) GreaterOrEqualTo() (Version, bool) { return r.base, true }
func (r tildeRange) LessThan() (Version, bool)         { _, hi := r.bounds(); return hi, true }
func (r tildeRange) sealed()                           {}

// compatRange is the compatibility-lattice variant: a base version plus
// a required minimum CompatRule. IsApplicable accepts the base and every
// later version; it sees only a Version, so the required rule is not
// checked against any build's declared CompatRule there. The rule is
// used by Contains, String and the JSON encoding.
type compatRange struct {
	base     Version
	required CompatRule
}

// CompatWith builds a range anchored at base, requiring at least
// required compatibility for admission. CompatRule comparisons are
// asymmetric in time: a later compat-range does not automatically
// subsume an earlier one, which is why Simplify never merges two
// distinct compatRanges outright.
func CompatWith(base Version, required CompatRule) VersionRange {
	return compatRange{base: base, required: required}
}

func (r compatRange) String() string {
	return fmt.Sprintf("compat(%s,%s)", r.base, r.required)
}
func (r compatRange) IsApplicable(v Version) Compatibility {
	if v.Compare(r.base) >= 0 {
		return Compatible
	}
	return Incompatible("%s predates compat base %s", v, r.base)
}

// Contains permits a binary-compat base to contain a double-equality of
// the same version, as a canonicalization aid for the common case of a
// pinned build being subsumed by its own compat range.
func (r compatRange) Contains(o VersionRange) Compatibility {
	if de, ok := o.(doubleEqualRange); ok && r.required == CompatBinary && de.v.Equal(r.base) {
		return Compatible
	}
	return intersectsContains(r, o)
}
func (r compatRange) Intersects(o VersionRange) (VersionRange, Compatibility) {
	return intersectGeneric(r, o)
}
func (r compatRange) GreaterOrEqualTo() (Version, bool) { return r.base, true }
func (r compatRange) LessThan() (Version, bool)         { return Version{}, false }
func (r compatRange) sealed()                           {}

// filterRange is a set of sub-ranges combined by intersection - the
// result of parsing a comma-separated range expression.
type filterRange struct{ parts []VersionRange }

// Filter builds the intersection of the given sub-ranges.
func Filter(parts ...VersionRange) VersionRange {
	if len(parts) == 1 {
		return parts[0]
	}
	return filterRange{parts}
}

func (r filterRange) String() string {
	ss := make([]string, len(r.parts))
	for i, p := range r.parts {
		ss[i] = p.String()
	}
	return strings.Join(ss, ",")
}

func (r filterRange) IsApplicable(v Version) Compatibility {
	for _, p := range r.parts {
		if c := p.IsApplicable(v); !c.OK {
			return c
		}
	}
	return Compatible
}
func (r filterRange) Contains(o VersionRange) Compatibility { return intersectsContains(r, o) }
func (r filterRange) Intersects(o VersionRange) (VersionRange, Compatibility) {
	return intersectGeneric(r, o)
}
func (r filterRange) GreaterOrEqualTo() (Version, bool) {
	var best Version
	found := false
	for _, p := range r.parts {
		if v, ok := p.GreaterOrEqualTo(); ok {
			if !found || v.Compare(best) > 0 {
				best, found = v, true
			}
		}
	}
	return best, found
}
func (r filterRange) LessThan() (Version, bool) {
	var best Version
	found := false
	for _, p := range r.parts {
		if v, ok := p.LessThan(); ok {
			if !found || v.Compare(best) < 0 {
				best, found = v, true
			}
		}
	}
	return best, found
}
func (r filterRange) sealed() {}

// IsEmptyFilter reports whether r is None, or a filter that, with its
// nested filterRanges flattened at every depth, has a None part: since
// a filter is an intersection, one empty part empties the whole. Parts
// that are each non-empty but disjoint (e.g. "<1.0.0" and ">=2.0.0")
// are not detected here.
func IsEmptyFilter(r VersionRange) bool {
	_, isNone := flatten(r).(noneRange)
	return isNone
}

// flatten inlines nested filterRanges and collapses any filter with a
// None part to None.
func flatten(r VersionRange) VersionRange {
	fr, ok := r.(filterRange)
	if !ok {
		return r
	}
	var flat []VersionRange
	for _, p := range fr.parts {
		switch inner := flatten(p).(type) {
		case noneRange:
			return noneRange{}
		case filterRange:
			flat = append(flat, inner.parts...)
		default:
			flat = append(flat, p)
		}
	}
	return filterRange{flat}
}

// intersectsContains is the fallback Contains implementation shared by
// variants without a cheaper structural check: a contains b iff their
// intersection equals b.
func intersectsContains(a, b VersionRange) Compatibility {
	inter, c := a.Intersects(b)
	if !c.OK {
		return c
	}
	if inter.String() == b.String() {
		return Compatible
	}
	return Incompatible("%s does not fully contain %s", a, b)
}

// intersectGeneric computes an intersection via bound comparison: it
// takes the tighter of the two lower bounds and the tighter of the two
// upper bounds and, where they meet or cross, probes the lower bound
// against both inputs (LessThan may be inclusive) before reporting the
// inputs as disjoint. An overlapping result is the Filter of both
// inputs, not reduced to the tighter bounds.
func intersectGeneric(a, b VersionRange) (VersionRange, Compatibility) {
	if _, ok := a.(noneRange); ok {
		return noneRange{}, Incompatible("%s is empty", a)
	}
	if _, ok := b.(noneRange); ok {
		return noneRange{}, Incompatible("%s is empty", b)
	}
	if _, ok := a.(anyRange); ok {
		return b, Compatible
	}
	if _, ok := b.(anyRange); ok {
		return a, Compatible
	}

	lo, hasLo := a.GreaterOrEqualTo()
	if lo2, ok := b.GreaterOrEqualTo(); ok && (!hasLo || lo2.Compare(lo) > 0) {
		lo, hasLo = lo2, true
	}
	hi, hasHi := a.LessThan()
	if hi2, ok := b.LessThan(); ok && (!hasHi || hi2.Compare(hi) < 0) {
		hi, hasHi = hi2, true
	}
	if hasLo && hasHi && lo.Compare(hi) >= 0 &&
		!(a.IsApplicable(lo).OK && b.IsApplicable(lo).OK) {
		return noneRange{}, Incompatible("%s and %s do not overlap", a, b)
	}

	f := filterRange{[]VersionRange{a, b}}
	return f, Compatible
}

// Simplify removes any range strictly contained by another member of
// ranges, except that two compatRanges are never merged into one
// another: the compat relation is asymmetric, so e.g. merging
// "compat(pkg@2019,binary)" into "compat(pkg@2020,binary)" would be
// unsound even though the latter's base is newer.
func Simplify(ranges []VersionRange) []VersionRange {
	keep := make([]bool, len(ranges))
	for i := range ranges {
		keep[i] = true
	}
	for i, a := range ranges {
		if !keep[i] {
			continue
		}
		for j, b := range ranges {
			if i == j || !keep[j] {
				continue
			}
			_, aIsCompat := a.(compatRange)
			_, bIsCompat := b.(compatRange)
			if aIsCompat && bIsCompat {
				continue
			}
			if a.Contains(b).OK {
				keep[j] = false
			}
		}
	}
	out := make([]VersionRange, 0, len(ranges))
	for i, r := range ranges {
		if keep[i] {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// RangeJSON is the serializable mirror of a VersionRange, used by
// callers (such as a persistent spec cache) that need to store a
// range outside the process. VersionRange's variants are otherwise
// unexported, so round-tripping through plain JSON marshaling would
// lose them; EncodeRangeJSON/DecodeRangeJSON make the conversion
// explicit instead.
type RangeJSON struct {
	Tag      string      `json:"tag"`
	Version  string      `json:"version,omitempty"`
	Required string      `json:"required,omitempty"`
	Parts    []RangeJSON `json:"parts,omitempty"`
}

// EncodeRangeJSON converts r to its serializable form.
func EncodeRangeJSON(r VersionRange) RangeJSON {
	switch v := r.(type) {
	case anyRange:
		return RangeJSON{Tag: "any"}
	case noneRange:
		return RangeJSON{Tag: "none"}
	case equalRange:
		return RangeJSON{Tag: "eq", Version: v.v.String()}
	case doubleEqualRange:
		return RangeJSON{Tag: "deq", Version: v.v.String()}
	case inequalRange:
		return RangeJSON{Tag: "ne", Version: v.v.String()}
	case doubleNotEqualRange:
		return RangeJSON{Tag: "dne", Version: v.v.String()}
	case boundRange:
		tag := map[boundKind]string{
			boundLess:         "lt",
			boundLessEqual:    "le",
			boundGreater:      "gt",
			boundGreaterEqual: "ge",
		}[v.kind]
		return RangeJSON{Tag: tag, Version: v.v.String()}
	case semverRange:
		return RangeJSON{Tag: "ceil", Version: v.base.String()}
	case wildcardRange:
		return RangeJSON{Tag: "wild", Version: v.base.String()}
	case tildeRange:
		return RangeJSON{Tag: "tilde", Version: v.base.String()}
	case compatRange:
		return RangeJSON{Tag: "compat", Version: v.base.String(), Required: v.required.String()}
	case filterRange:
		parts := make([]RangeJSON, len(v.parts))
		for i, p := range v.parts {
			parts[i] = EncodeRangeJSON(p)
		}
		return RangeJSON{Tag: "filter", Parts: parts}
	default:
		return RangeJSON{Tag: "any"}
	}
}

// DecodeRangeJSON reconstructs the VersionRange j describes.
func DecodeRangeJSON(j RangeJSON) (VersionRange, error) {
	parseBase := func() (Version, error) { return ParseVersion(j.Version) }

	switch j.Tag {
	case "any", "":
		return Any(), nil
	case "none":
		return None(), nil
	case "eq":
		v, err := parseBase()
		if err != nil {
			return nil, err
		}
		return Equal(v), nil
	case "deq":
		v, err := parseBase()
		if err != nil {
			return nil, err
		}
		return DoubleEqual(v), nil
	case "ne":
		v, err := parseBase()
		if err != nil {
			return nil, err
		}
		return NotEqual(v), nil
	case "dne":
		v, err := parseBase()
		if err != nil {
			return nil, err
		}
		return DoubleNotEqual(v), nil
	case "lt":
		v, err := parseBase()
		if err != nil {
			return nil, err
		}
		return LessThanVersion(v), nil
	case "le":
		v, err := parseBase()
		if err != nil {
			return nil, err
		}
		return LessOrEqual(v), nil
	case "gt":
		v, err := parseBase()
		if err != nil {
			return nil, err
		}
		return GreaterThan(v), nil
	case "ge":
		v, err := parseBase()
		if err != nil {
			return nil, err
		}
		return GreaterOrEqual(v), nil
	case "ceil":
		v, err := parseBase()
		if err != nil {
			return nil, err
		}
		return SemverCeiling(v), nil
	case "wild":
		v, err := parseBase()
		if err != nil {
			return nil, err
		}
		return Wildcard(v), nil
	case "tilde":
		v, err := parseBase()
		if err != nil {
			return nil, err
		}
		return Tilde(v), nil
	case "compat":
		v, err := parseBase()
		if err != nil {
			return nil, err
		}
		required, err := ParseCompatRule(j.Required)
		if err != nil {
			return nil, err
		}
		return CompatWith(v, required), nil
	case "filter":
		parts := make([]VersionRange, len(j.Parts))
		for i, p := range j.Parts {
			pv, err := DecodeRangeJSON(p)
			if err != nil {
				return nil, err
			}
			parts[i] = pv
		}
		return Filter(parts...), nil
	default:
		return nil, fmt.Errorf("strata: unknown range tag %q", j.Tag)
	}
}
