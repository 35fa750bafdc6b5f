package types

import "strings"

// Path records the location of a value within the root tree as an ordered
// sequence of field and index segments. Paths are used for error reporting
// and depth checks; they never travel on the wire.
type Path []Key

// Child returns a new path extended with the given segment. The receiver
// is not modified; the returned path owns its backing array.
func (p Path) Child(seg Key) Path {
	child := make(Path, len(p)+1)
	copy(child, p)
	child[len(p)] = seg
	return child
}

// Depth returns the number of segments in the path.
func (p Path) Depth() int { return len(p) }

// String renders the path in dotted form, e.g. "items[3].name".
func (p Path) String() string {
	if len(p) == 0 {
		return "<root>"
	}

	var b strings.Builder
	for i, seg := range p {
		if _, isIndex := seg.Index(); isIndex {
			b.WriteString(seg.String())
			continue
		}
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(seg.String())
	}
	return b.String()
}
