package facet

import (
	"iter"
	"path"
	"strings"
)

// Normalize brings a path into the engine's canonical form: cleaned, with
// the empty string denoting the tree root. "/" is kept as the absolute root
// marker. Malformed input passes through path.Clean unchanged in meaning;
// validation is the caller's responsibility.
func Normalize(p string) string {
	if p == "" {
		return ""
	}
	p = path.Clean(p)
	if p == "." {
		return ""
	}
	return p
}

// Ancestors yields the ancestor chain of p ordered from the tree root to p
// itself, inclusive. The absolute root "/" yields only itself; "" and "."
// yield only the empty root marker; every other path, absolute or relative,
// starts with the empty root marker followed by each progressively longer
// prefix.
//
// The sequence is finite, lazy, and restartable. p is expected to already be
// in Normalize form.
func Ancestors(p string) iter.Seq[string] {
	return func(yield func(string) bool) {
		switch p {
		case "/":
			yield("/")
			return
		case "", ".":
			yield("")
			return
		}
		if !yield("") {
			return
		}
		parts := strings.Split(p, "/")
		first := 1
		if parts[0] == "" {
			// Absolute path: parts[0] is the empty segment before the
			// leading slash, already covered by the root marker.
			first = 2
		}
		for i := first; i < len(parts); i++ {
			if !yield(strings.Join(parts[:i], "/")) {
				return
			}
		}
		yield(p)
	}
}

// parentOf returns the direct ancestor of p within its Ancestors chain. The
// two root forms are their own parent.
func parentOf(p string) string {
	if p == "" || p == "/" {
		return p
	}
	i := strings.LastIndex(p, "/")
	if i <= 0 {
		return ""
	}
	return p[:i]
}
