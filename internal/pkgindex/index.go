// Package pkgindex provides a prefix-searchable index over package
// names, built from the repository listings for the CLI's search
// subcommand.
package pkgindex

import "github.com/armon/go-radix"

// Index is a radix tree of package names to arbitrary payloads,
// supporting exact and longest-prefix lookups in O(k) on key length
// rather than a linear scan of every known package.
type Index struct {
	tree *radix.Tree
}

// New builds an empty Index.
func New() *Index {
	return &Index{tree: radix.New()}
}

// Insert adds name with payload data, overwriting any existing entry.
func (ix *Index) Insert(name string, data interface{}) {
	ix.tree.Insert(name, data)
}

// Get returns the exact entry for name, if present.
func (ix *Index) Get(name string) (interface{}, bool) {
	return ix.tree.Get(name)
}

// Prefix returns every (name, payload) pair whose name begins with
// prefix, in lexicographic order - the backing implementation for the
// CLI's `search` subcommand.
func (ix *Index) Prefix(prefix string) []Match {
	var out []Match
	ix.tree.WalkPrefix(prefix, func(name string, data interface{}) bool {
		out = append(out, Match{Name: name, Data: data})
		return false
	})
	return out
}

// LongestPrefix finds the longest key in the index that is a prefix of
// name, used to map a component or sub-path name back to the package
// that declares it.
func (ix *Index) LongestPrefix(name string) (Match, bool) {
	k, data, ok := ix.tree.LongestPrefix(name)
	if !ok {
		return Match{}, false
	}
	return Match{Name: k, Data: data}, true
}

// Len reports the number of entries in the index.
func (ix *Index) Len() int { return ix.tree.Len() }

// Match is one result of a Prefix or LongestPrefix query.
type Match struct {
	Name string
	Data interface{}
}
