// Package contenttype maps content classification tags to bitmask bits and
// defines the metadata key sets valid for each tag.
//
// Every indexed node carries a bitmask of the content types detected in it
// (for directories: accumulated from descendant files). A single bit is
// reserved per tag; the generic bit applies to every node that has not been
// specifically classified.
package contenttype

import (
	"errors"
	"fmt"
	"sort"
)

// Content type tags. Each tag maps to exactly one bit.
const (
	Generic = "generic"
	Text    = "text"
	HTML    = "html"
	Image   = "image"
	Audio   = "audio"
	Video   = "video"
)

// ErrUnknownType is returned for lookups of undefined tags. Undefined tags
// are a programming error and must fail loudly rather than silently match
// nothing.
var ErrUnknownType = errors.New("unknown content type")

// bits assigns one bit per tag. Bit positions are part of the stored format
// and must never be reassigned.
var bits = map[string]uint64{
	Generic: 1 << 0,
	Text:    1 << 1,
	HTML:    1 << 2,
	Image:   1 << 3,
	Audio:   1 << 4,
	Video:   1 << 5,
}

// keys lists the metadata field names valid for each tag. Fields outside a
// content type's key set are stripped before storage.
var keys = map[string][]string{
	Generic: {"title"},
	Text:    {"title", "description", "encoding"},
	HTML:    {"title", "description", "keywords", "main"},
	Image:   {"title", "description", "width", "height"},
	Audio:   {"title", "description", "artist", "album", "genre", "duration"},
	Video:   {"title", "description", "duration", "width", "height"},
}

// searchKeys is the subset of keys that text search matches against.
// Numeric fields (dimensions, durations) and encodings are excluded.
var searchKeys = map[string][]string{
	Generic: {"title"},
	Text:    {"title", "description"},
	HTML:    {"title", "description", "keywords"},
	Image:   {"title", "description"},
	Audio:   {"title", "description", "artist", "album", "genre"},
	Video:   {"title", "description"},
}

// All returns the defined tags in stable order.
func All() []string {
	tags := make([]string, 0, len(bits))
	for tag := range bits {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// ToBitmask unions the bits of the given tags into a single bitmask.
// Returns ErrUnknownType if any tag is not defined.
func ToBitmask(tags ...string) (uint64, error) {
	var mask uint64
	for _, tag := range tags {
		bit, ok := bits[tag]
		if !ok {
			return 0, fmt.Errorf("%w: %q", ErrUnknownType, tag)
		}
		mask |= bit
	}
	return mask, nil
}

// MustBitmask is like ToBitmask but panics on undefined tags. It is intended
// for package-level constants built from the tags defined above.
func MustBitmask(tags ...string) uint64 {
	mask, err := ToBitmask(tags...)
	if err != nil {
		panic(err)
	}
	return mask
}

// Keys returns the metadata field names valid for tag, or the union across
// all tags when tag is empty.
func Keys(tag string) ([]string, error) {
	return keyUnion(keys, tag)
}

// SearchKeys returns the searchable field names for tag, or the union across
// all tags when tag is empty.
func SearchKeys(tag string) ([]string, error) {
	return keyUnion(searchKeys, tag)
}

func keyUnion(m map[string][]string, tag string) ([]string, error) {
	if tag != "" {
		ks, ok := m[tag]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownType, tag)
		}
		return append([]string(nil), ks...), nil
	}
	seen := make(map[string]struct{})
	for _, ks := range m {
		for _, k := range ks {
			seen[k] = struct{}{}
		}
	}
	union := make([]string, 0, len(seen))
	for k := range seen {
		union = append(union, k)
	}
	sort.Strings(union)
	return union, nil
}

// Tags returns the tags whose bits are set in mask, in stable order.
func Tags(mask uint64) []string {
	var tags []string
	for _, tag := range All() {
		if mask&bits[tag] != 0 {
			tags = append(tags, tag)
		}
	}
	return tags
}

// KeysFor returns the union of valid field names across the tags set in
// mask, sorted. Bits with no defined tag contribute nothing.
func KeysFor(mask uint64) []string {
	seen := make(map[string]struct{})
	for _, tag := range Tags(mask) {
		for _, k := range keys[tag] {
			seen[k] = struct{}{}
		}
	}
	union := make([]string, 0, len(seen))
	for k := range seen {
		union = append(union, k)
	}
	sort.Strings(union)
	return union
}

// Contains reports whether stored includes every bit of wanted. This is the
// containment test used for query filtering and for the update short-circuit
// (skip the write when the stored mask is already a superset).
func Contains(stored, wanted uint64) bool {
	return stored&wanted == wanted
}
