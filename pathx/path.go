// Package pathx implements the dotted path addressing scheme used to wire
// node context fields to outputs, parameters, and historic/perception data.
// A Path is parsed once, at catalog-build time, and the catalog resolves
// the parsed form against the data dictionary; generated accessors and the
// observability routers carry the dotted string form.
package pathx

import (
	"fmt"
	"strings"
)

// SegmentKind distinguishes the three things a dotted path element can mean.
type SegmentKind int

const (
	// Field names a struct field or map key.
	Field SegmentKind = iota
	// OptionalUnwrap marks the preceding field as optional; navigation
	// short-circuits to "absent" if the value is missing.
	OptionalUnwrap
	// InstanceVariable expands to the owning cycler's instance name at
	// resolution time (spelled "$instance" in source paths).
	InstanceVariable
)

// Segment is one dotted element of a Path.
type Segment struct {
	Kind SegmentKind
	Name string // empty for OptionalUnwrap
}

// Path is an immutable, parsed dotted path such as "vision.balls?.closest".
type Path struct {
	raw      string
	Segments []Segment
}

// String returns the original dotted-path text the Path was parsed from.
func (p Path) String() string { return p.raw }

// HasOptional reports whether any segment is an optional-unwrap marker,
// which generated accessors use to decide between "reference to value" and
// "option of reference" navigation.
func (p Path) HasOptional() bool {
	for _, s := range p.Segments {
		if s.Kind == OptionalUnwrap {
			return true
		}
	}
	return false
}

// Parse splits a dotted path into segments. "?" suffixed on a segment marks
// it as an optional unwrap; a segment literally equal to "$instance" marks
// an instance-variable expansion.
//
// Examples:
//
//	"vision.balls" -> [Field("vision"), Field("balls")]
//	"vision.balls?.closest" -> [Field("vision"), Field("balls"), OptionalUnwrap, Field("closest")]
//	"$instance.odometry" -> [InstanceVariable, Field("odometry")]
func Parse(s string) (Path, error) {
	if strings.TrimSpace(s) == "" {
		return Path{}, fmt.Errorf("pathx: empty path")
	}

	parts := strings.Split(s, ".")
	segments := make([]Segment, 0, len(parts)+1)
	for _, part := range parts {
		if part == "" {
			return Path{}, fmt.Errorf("pathx: empty segment in path %q", s)
		}
		if part == "$instance" {
			segments = append(segments, Segment{Kind: InstanceVariable})
			continue
		}
		optional := strings.HasSuffix(part, "?")
		name := strings.TrimSuffix(part, "?")
		if name == "" {
			return Path{}, fmt.Errorf("pathx: dangling '?' in path %q", s)
		}
		segments = append(segments, Segment{Kind: Field, Name: name})
		if optional {
			segments = append(segments, Segment{Kind: OptionalUnwrap})
		}
	}

	return Path{raw: s, Segments: segments}, nil
}

// MustParse is Parse but panics on error; intended for constant paths
// declared in node descriptors at init time.
func MustParse(s string) Path {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}

// WithInstance substitutes every InstanceVariable segment with a literal
// Field segment carrying the given cycler instance name, and returns the
// resulting dotted string — the form the dictionary and routers key on.
func (p Path) WithInstance(instance string) string {
	var b strings.Builder
	first := true
	for _, s := range p.Segments {
		if s.Kind == OptionalUnwrap {
			b.WriteString("?")
			continue
		}
		if !first {
			b.WriteString(".")
		}
		first = false
		if s.Kind == InstanceVariable {
			b.WriteString(instance)
		} else {
			b.WriteString(s.Name)
		}
	}
	return b.String()
}

// FieldNames returns the Field-segment names in order, skipping
// OptionalUnwrap and InstanceVariable markers — the navigation keys an
// accessor walks through a concrete value tree.
func (p Path) FieldNames() []string {
	names := make([]string, 0, len(p.Segments))
	for _, s := range p.Segments {
		if s.Kind == Field {
			names = append(names, s.Name)
		}
	}
	return names
}
