package ownership

import "strings"

// Path is the symbolic access expression `root(.field)*` used as the key
// for ownership and borrow maps (spec Glossary).
type Path string

// Parent returns the path one level up and the field name removed, or ""
// and false if path has no parent (it is already a root).
func (p Path) Parent() (Path, string, bool) {
	s := string(p)
	idx := strings.LastIndex(s, ".")
	if idx < 0 {
		return "", "", false
	}
	return Path(s[:idx]), s[idx+1:], true
}

// Root returns the root segment of the path.
func (p Path) Root() Path {
	s := string(p)
	if idx := strings.IndexByte(s, '.'); idx >= 0 {
		return Path(s[:idx])
	}
	return p
}

// IsAncestorOf reports whether p is a strict ancestor of other (other lies
// deeper under p; a path is not its own ancestor).
func (p Path) IsAncestorOf(other Path) bool {
	if p == other {
		return false
	}
	return strings.HasPrefix(string(other), string(p)+".")
}

// Segments splits the path into its dotted components.
func (p Path) Segments() []string {
	return strings.Split(string(p), ".")
}

// Join appends a field to a path.
func (p Path) Join(field string) Path {
	if p == "" {
		return Path(field)
	}
	return Path(string(p) + "." + field)
}
