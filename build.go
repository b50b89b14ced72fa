package strata

import "fmt"

// DigestKind distinguishes the three ways a Build's identity can be
// pinned beyond its package name and version.
type DigestKind int

const (
	// DigestSource identifies a build that must be synthesized from its
	// recipe rather than fetched pre-built.
	DigestSource DigestKind = iota
	// DigestEmbedded identifies a build that exists only bundled inside
	// a parent build, never independently.
	DigestEmbedded
	// DigestOpaque identifies an ordinary binary build, keyed by a
	// digest derived from its build options.
	DigestOpaque
)

func (k DigestKind) String() string {
	switch k {
	case DigestSource:
		return "source"
	case DigestEmbedded:
		return "embedded"
	case DigestOpaque:
		return "opaque"
	default:
		return "unknown"
	}
}

// Digest is the build-digest component of a BuildID. It is a small
// closed sum type selected by Kind: DigestSource carries no payload,
// DigestEmbedded sets Parent, and DigestOpaque sets Opaque.
type Digest struct {
	Kind DigestKind

	// Parent is set when Kind == DigestEmbedded: the BuildID of the
	// build this one is bundled inside.
	Parent *BuildID

	// Opaque is set when Kind == DigestOpaque: a digest string derived
	// from the build's resolved options.
	Opaque string
}

// SourceDigest returns the Digest for a build that must be compiled
// from source.
func SourceDigest() Digest { return Digest{Kind: DigestSource} }

// EmbeddedDigest returns the Digest for a build embedded inside parent.
func EmbeddedDigest(parent BuildID) Digest {
	return Digest{Kind: DigestEmbedded, Parent: &parent}
}

// OpaqueDigest returns the Digest for an ordinary binary build keyed by
// the given option-derived digest string.
func OpaqueDigest(digest string) Digest {
	return Digest{Kind: DigestOpaque, Opaque: digest}
}

func (d Digest) String() string {
	switch d.Kind {
	case DigestSource:
		return "src"
	case DigestEmbedded:
		return fmt.Sprintf("embedded(%s)", d.Parent)
	default:
		return d.Opaque
	}
}

// Equal reports whether two digests identify the same build content.
func (d Digest) Equal(o Digest) bool {
	if d.Kind != o.Kind {
		return false
	}
	switch d.Kind {
	case DigestEmbedded:
		if d.Parent == nil || o.Parent == nil {
			return d.Parent == o.Parent
		}
		return d.Parent.Equal(*o.Parent)
	case DigestOpaque:
		return d.Opaque == o.Opaque
	default:
		return true
	}
}

// BuildID identifies a specific build of a package: the repository it
// was found in, its package name, its resolved Version, and a Digest
// distinguishing builds that share name and version.
type BuildID struct {
	Repository string
	Name       string
	Version    Version
	Digest     Digest
}

func (b BuildID) String() string {
	return fmt.Sprintf("%s/%s@%s[%s]", b.Repository, b.Name, b.Version, b.Digest)
}

// Equal reports whether two BuildIDs identify the same build.
func (b BuildID) Equal(o BuildID) bool {
	return b.Repository == o.Repository &&
		b.Name == o.Name &&
		b.Version.Compare(o.Version) == 0 &&
		b.Digest.Equal(o.Digest)
}

// Component is a named subset of a build's filesystem - for example
// "run", "build", or "lib". A component may declare "uses" edges to
// other components of the same build; requesting a component pulls in
// everything it (transitively) uses.
type Component struct {
	Name string

	// Embeds lists packages bundled inside this component's portion of
	// the build's filesystem tree.
	Embeds []string

	// Requires lists explicit runtime requirements contributed only
	// when this component is selected.
	Requires []PkgRequest

	// Uses lists other component names, of the same build, that this
	// component depends on.
	Uses []string
}

// Spec is an immutable package description: its identity, declared
// build options, runtime requirements, its components, and whether it
// has been marked deprecated by its repository.
type Spec struct {
	ID BuildID

	// Options holds the resolved build-option values this spec was
	// produced with (e.g. a toolchain choice, a variant flag).
	Options map[string]string

	// Requirements are the runtime package requirements every install of
	// this spec needs, independent of which component is selected.
	Requirements []PkgRequest

	// Components is the set of named filesystem subsets this build
	// exposes; must include at least one ("run" is customary default).
	Components []Component

	Deprecated bool
}

// ComponentNamed returns the named component of the spec, if present.
func (s Spec) ComponentNamed(name string) (Component, bool) {
	for _, c := range s.Components {
		if c.Name == name {
			return c, true
		}
	}
	return Component{}, false
}

// ClosedComponents computes the closure of the requested component
// names under the "uses" relation, restricted to components actually
// declared on the spec. Unknown names are silently ignored; it is the
// caller's responsibility to have already validated availability.
func (s Spec) ClosedComponents(requested []string) map[string]bool {
	closed := make(map[string]bool, len(requested))
	var visit func(name string)
	visit = func(name string) {
		if closed[name] {
			return
		}
		c, ok := s.ComponentNamed(name)
		if !ok {
			return
		}
		closed[name] = true
		for _, u := range c.Uses {
			visit(u)
		}
	}
	for _, name := range requested {
		visit(name)
	}
	return closed
}
