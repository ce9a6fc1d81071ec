package statustree

import "strings"

// Scheme is the literal prefix every status URL carries.
const Scheme = "status://"

// Path is a parsed status URL: an ordered list of segments. A Path with zero
// segments identifies the root.
type Path struct {
	segments []string
}

// Root is the path identifying status://.
func Root() Path { return Path{} }

// ParsePath parses "status://a/b/c" (or "status://") into a Path. Segments
// must be non-empty and must not contain "/" (guaranteed by splitting on
// "/"). A "*" segment is only valid in wildcard queries; ParsePath accepts
// it syntactically and callers that require a concrete path reject it via
// HasWildcard.
func ParsePath(url string) (Path, error) {
	if !strings.HasPrefix(url, Scheme) {
		return Path{}, &BadPathError{Path: url, Reason: "missing status:// prefix"}
	}
	rest := strings.TrimPrefix(url, Scheme)
	if rest == "" {
		return Path{}, nil
	}
	if strings.HasPrefix(rest, "/") || strings.HasSuffix(rest, "/") {
		return Path{}, &BadPathError{Path: url, Reason: "empty segment"}
	}
	parts := strings.Split(rest, "/")
	for _, p := range parts {
		if p == "" {
			return Path{}, &BadPathError{Path: url, Reason: "empty segment"}
		}
	}
	return Path{segments: parts}, nil
}

// MustParsePath is ParsePath, panicking on error; for constants built from
// literals known at compile time.
func MustParsePath(url string) Path {
	p, err := ParsePath(url)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Path) Segments() []string { return append([]string(nil), p.segments...) }
func (p Path) Len() int           { return len(p.segments) }
func (p Path) IsRoot() bool       { return len(p.segments) == 0 }

// HasWildcard reports whether any segment is "*".
func (p Path) HasWildcard() bool {
	for _, s := range p.segments {
		if s == "*" {
			return true
		}
	}
	return false
}

// Child returns the path extended by one segment.
func (p Path) Child(name string) Path {
	return Path{segments: append(append([]string(nil), p.segments...), name)}
}

// Parent returns the path with its last segment removed, and true, unless p
// is already root.
func (p Path) Parent() (Path, bool) {
	if len(p.segments) == 0 {
		return Path{}, false
	}
	return Path{segments: p.segments[:len(p.segments)-1]}, true
}

// Ancestors returns every path from root down to and including p, in order
// (root first). Used to check expected_revision against "some ancestor on
// the root-to-target path".
func (p Path) Ancestors() []Path {
	out := make([]Path, 0, len(p.segments)+1)
	for i := 0; i <= len(p.segments); i++ {
		out = append(out, Path{segments: append([]string(nil), p.segments[:i]...)})
	}
	return out
}

// String renders the path back to "status://a/b/c" form.
func (p Path) String() string {
	if len(p.segments) == 0 {
		return Scheme
	}
	return Scheme + strings.Join(p.segments, "/")
}
