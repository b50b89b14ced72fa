package strata

import "testing"

func TestVersionCompareNumeric(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "1.0.0", 0},
		{"1.0.0", "1.0.1", -1},
		{"1.2.0", "1.1.9", 1},
		{"2.0.0", "1.9.9", 1},
	}
	for _, c := range cases {
		a, b := MustParseVersion(c.a), MustParseVersion(c.b)
		if got := a.Compare(b); got != c.want {
			t.Errorf("Compare(%s, %s) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestVersionPrereleaseSortsBeforeRelease(t *testing.T) {
	rel := MustParseVersion("1.0.0")
	pre := MustParseVersion("1.0.0-rc.1")
	if pre.Compare(rel) >= 0 {
		t.Errorf("%s should sort before %s", pre, rel)
	}
	if rel.Compare(pre) <= 0 {
		t.Errorf("%s should sort after %s", rel, pre)
	}
}

func TestVersionPostReleaseTagsCompareNumerically(t *testing.T) {
	v1 := MustParseVersion("1.0.0+build=1")
	v2 := MustParseVersion("1.0.0+build=2")
	if v1.Compare(v2) >= 0 {
		t.Errorf("%s should sort before %s", v1, v2)
	}
	if !v1.Equal(v1) {
		t.Errorf("%s should equal itself", v1)
	}
}

func TestVersionPostReleaseMissingKeyTreatedAsZero(t *testing.T) {
	withTag := MustParseVersion("1.0.0+build=1")
	withoutTag := MustParseVersion("1.0.0")
	if withoutTag.Compare(withTag) >= 0 {
		t.Errorf("%s (implicit build=0) should sort before %s", withoutTag, withTag)
	}
}

func TestParseVersionRejectsGarbage(t *testing.T) {
	if _, err := ParseVersion("not-a-version"); err == nil {
		t.Errorf("expected an error parsing a non-version string")
	}
}

func TestVersionRoundTripsThroughJSON(t *testing.T) {
	v := MustParseVersion("3.4.5-beta.2+meta=7")
	data, err := v.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	var got Version
	if err := got.UnmarshalJSON(data); err != nil {
		t.Fatalf("UnmarshalJSON: %v", err)
	}
	if !got.Equal(v) {
		t.Errorf("round trip: got %s, want %s", got, v)
	}
}

func TestZeroVersionMarshalsEmpty(t *testing.T) {
	var v Version
	data, err := v.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	if string(data) != `""` {
		t.Errorf("zero Version marshaled to %s, want empty string", data)
	}
}

func TestParseCompatRule(t *testing.T) {
	cases := map[string]CompatRule{
		"":       CompatNone,
		"none":   CompatNone,
		"api":    CompatAPI,
		"binary": CompatBinary,
		"API":    CompatAPI,
	}
	for in, want := range cases {
		got, err := ParseCompatRule(in)
		if err != nil {
			t.Errorf("ParseCompatRule(%q): %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseCompatRule(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := ParseCompatRule("bogus"); err == nil {
		t.Errorf("expected error for unknown compatibility rule")
	}
}

func TestCompatRuleSatisfies(t *testing.T) {
	if !CompatBinary.Satisfies(CompatAPI) {
		t.Errorf("binary compatibility should satisfy an api requirement")
	}
	if CompatAPI.Satisfies(CompatBinary) {
		t.Errorf("api compatibility should not satisfy a binary requirement")
	}
	if !CompatNone.Satisfies(CompatNone) {
		t.Errorf("none should satisfy none")
	}
}
