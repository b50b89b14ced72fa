package log

import (
	"bytes"
	"testing"
)

func TestLogfWritesFormatted(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf)
	l.Logf("%s=%d", "n", 7)
	if buf.String() != "n=7" {
		t.Errorf("Logf wrote %q, want %q", buf.String(), "n=7")
	}
}

func TestLoglnJoinsWithSpaces(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf)
	l.Logln("a", "b")
	if buf.String() != "a b\n" {
		t.Errorf("Logln wrote %q, want %q", buf.String(), "a b\n")
	}
}

func TestPrefixedWrapsEveryLine(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf)
	l.Prefixed("> ", "first\nsecond")
	want := "> first\n> second\n"
	if buf.String() != want {
		t.Errorf("Prefixed wrote %q, want %q", buf.String(), want)
	}
}

func TestPrefixedSingleLine(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf)
	l.Prefixed("| ", "%s select %s", "ok", "foo@1.0.0")
	want := "| ok select foo@1.0.0\n"
	if buf.String() != want {
		t.Errorf("Prefixed wrote %q, want %q", buf.String(), want)
	}
}
