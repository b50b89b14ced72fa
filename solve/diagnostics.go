package solve

import (
	"fmt"
	"sort"
	"strings"

	"github.com/strata-pm/strata"
)

// errorEntry is one row of the "could not satisfy" frequency table:
// a textual key, how many times it occurred, and the union of
// requesters across every occurrence.
type errorEntry struct {
	Key        string
	Count      int
	Requesters map[string]bool
}

// Diagnostics accumulates the two frequency tables the engine
// maintains across a solve attempt: error messages keyed by a textual
// description, and problem packages - names that appeared in the
// requester chain of any StepBack. Solve renders both, sorted by
// descending count, only when it gives up (every branch exhausted, or
// MaxAttempts exceeded) through Failure; a successful or interrupted
// solve does not render them.
type Diagnostics struct {
	errors    map[string]*errorEntry
	errOrder  []string
	problems  map[string]int
	probOrder []string
}

// NewDiagnostics builds an empty Diagnostics accumulator.
func NewDiagnostics() *Diagnostics {
	return &Diagnostics{
		errors:   make(map[string]*errorEntry),
		problems: make(map[string]int),
	}
}

// RecordRejection records a candidate rejected by the validator chain
// or the impossible checker: the textual reason becomes an errors-table
// key, listed with the request's requesters. Only RecordStepBack adds
// problem packages.
func (d *Diagnostics) RecordRejection(req strata.PkgRequest, cand Candidate, verdict strata.Compatibility) {
	key := fmt.Sprintf("could not satisfy %s: %s", cand.Spec.ID, verdict.Reason)
	d.recordError(key, req.Requesters)
}

// RecordStepBack records that a request ran out of candidates
// entirely, forcing the engine to pop a frame.
func (d *Diagnostics) RecordStepBack(req strata.PkgRequest, reason string) {
	key := fmt.Sprintf("could not satisfy %s: %s", req.Package, reason)
	d.recordError(key, req.Requesters)
	d.recordProblems(req.Requesters)
}

func (d *Diagnostics) recordError(key string, requesters []string) {
	e, ok := d.errors[key]
	if !ok {
		e = &errorEntry{Key: key, Requesters: make(map[string]bool)}
		d.errors[key] = e
		d.errOrder = append(d.errOrder, key)
	}
	e.Count++
	for _, r := range requesters {
		e.Requesters[r] = true
	}
}

func (d *Diagnostics) recordProblems(requesters []string) {
	for _, r := range requesters {
		if _, seen := d.problems[r]; !seen {
			d.probOrder = append(d.probOrder, r)
		}
		d.problems[r]++
	}
}

// Failure wraps cause with the rendered frequency tables, as the error
// returned when a solve attempt is exhausted.
func (d *Diagnostics) Failure(g *Graph, cause error) error {
	return &DiagnosedFailure{Cause: cause, Graph: g, Report: d.Render()}
}

// Render produces the sorted, human-readable frequency tables: errors
// first (descending by count), then problem packages (descending by
// count).
func (d *Diagnostics) Render() string {
	var b strings.Builder

	errs := make([]*errorEntry, 0, len(d.errOrder))
	for _, k := range d.errOrder {
		errs = append(errs, d.errors[k])
	}
	sort.SliceStable(errs, func(i, j int) bool { return errs[i].Count > errs[j].Count })
	fmt.Fprintln(&b, "errors:")
	for _, e := range errs {
		fmt.Fprintf(&b, "  (%d) %s [requested by: %s]\n", e.Count, e.Key, strings.Join(sortedKeys(e.Requesters), ", "))
	}

	type problem struct {
		name  string
		count int
	}
	probs := make([]problem, 0, len(d.probOrder))
	for _, n := range d.probOrder {
		probs = append(probs, problem{n, d.problems[n]})
	}
	sort.SliceStable(probs, func(i, j int) bool { return probs[i].count > probs[j].count })
	fmt.Fprintln(&b, "problem packages:")
	for _, p := range probs {
		fmt.Fprintf(&b, "  (%d) %s\n", p.count, p.name)
	}

	return b.String()
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// DiagnosedFailure is the error returned from Solve when the diagnostic
// report should travel alongside the underlying cause.
type DiagnosedFailure struct {
	Cause  error
	Graph  *Graph
	Report string
}

func (f *DiagnosedFailure) Error() string {
	return f.Cause.Error() + "\n" + f.Report
}

func (f *DiagnosedFailure) Unwrap() error { return f.Cause }
