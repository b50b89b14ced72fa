package solve

import (
	"strings"

	"github.com/strata-pm/strata/log"
)

// Formatter renders a Runtime's event stream as the indented,
// glyph-prefixed trace a verbose solve prints, grounded verbatim on
// the teacher fork's trace.go (tracePrefix, the success/fail glyphs,
// one log call per visited/selected/finished state).
type Formatter struct {
	out *log.Logger
}

const (
	successChar = "✓"
	failChar    = "✗"
	backChar    = "←"
)

// NewFormatter wraps out for trace output.
func NewFormatter(out *log.Logger) *Formatter {
	return &Formatter{out: out}
}

// LogSelect records one Event off a Runtime.Stream: decision was
// applied to reach state, moving the search one step deeper.
func (f *Formatter) LogSelect(ev Event) {
	prefix := depthPrefix(ev.State.Depth)
	f.out.Prefixed(prefix, "%s select %s", successChar, ev.Decision.String())
}

// LogSolve records the terminal outcome of a Runtime.Stream run.
func (f *Formatter) LogSolve(res Result) {
	if res.Err == nil {
		f.out.Logf("%s solved with %d packages in %d attempts\n",
			successChar, len(res.Solution.Final.order), res.Solution.Attempts)
		return
	}
	f.out.Logf("%s %v\n", failChar, res.Err)
}

func depthPrefix(depth int) string {
	return strings.Repeat("| ", depth)
}
