// Package processor defines the pluggable per-file-type metadata extractors
// and the registry that resolves them by path.
//
// Each processor is named after the content type tag it detects and
// implements a fixed capability set: applicability test, entry-point test,
// metadata extraction (full or partial), and a cleanup hook invoked on
// removal. The registry replaces dynamic dispatch with an ordered list of
// classification predicates.
package processor

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/marmos91/facetfs/pkg/facet/contenttype"
	"github.com/marmos91/facetfs/pkg/fsal"
)

// NoLanguage tags language-independent metadata keys.
const NoLanguage = ""

// Fields accumulates extracted metadata as {language: {key: value}}.
// Processors for the same path share one accumulator, later writers win.
type Fields map[string]map[string]string

// Set stores value under (language, key).
func (f Fields) Set(language, key, value string) {
	section, ok := f[language]
	if !ok {
		section = make(map[string]string)
		f[language] = section
	}
	section[key] = value
}

// Get returns the value under (language, key), or "".
func (f Fields) Get(language, key string) string {
	return f[language][key]
}

// Processor is the capability set of one per-content-type extractor.
type Processor interface {
	// Name returns the content type tag this processor detects.
	Name() string

	// Matches reports whether the processor applies to path.
	Matches(path string) bool

	// IsEntryPoint reports whether path is the primary, representative
	// file for its directory's content.
	IsEntryPoint(path string) bool

	// Extract accumulates metadata for path into acc. When partial is
	// set a cheap, name-only pass runs; otherwise the processor may read
	// file content.
	Extract(ctx context.Context, path string, acc Fields, partial bool) error

	// Cleanup runs when path is removed from the index.
	Cleanup(ctx context.Context, path string) error
}

// Registry resolves processors by path or by content type name.
type Registry struct {
	procs []Processor
}

// NewRegistry creates a registry over the given processors. Order matters:
// ForPath returns matches in registration order.
func NewRegistry(procs ...Processor) *Registry {
	return &Registry{procs: procs}
}

// DefaultRegistry returns a registry with the standard processor set. The
// opener, when non-nil, lets full extraction read file content.
func DefaultRegistry(opener fsal.Opener) *Registry {
	return NewRegistry(
		&GenericProcessor{},
		&TextProcessor{opener: opener},
		&HTMLProcessor{opener: opener},
		&ImageProcessor{opener: opener},
		&AudioProcessor{},
		&VideoProcessor{},
	)
}

// ForPath returns every processor that applies to path, in registration
// order.
func (r *Registry) ForPath(path string) []Processor {
	var matched []Processor
	for _, p := range r.procs {
		if p.Matches(path) {
			matched = append(matched, p)
		}
	}
	return matched
}

// ByName returns the processor for the given content type tag.
func (r *Registry) ByName(name string) (Processor, error) {
	for _, p := range r.procs {
		if p.Name() == name {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", contenttype.ErrUnknownType, name)
}

// ext returns the lower-cased extension of p without the dot.
func ext(p string) string {
	return strings.TrimPrefix(strings.ToLower(path.Ext(p)), ".")
}

// titleFromName derives a human-readable title from the file name: the
// extension is dropped and separators become spaces.
func titleFromName(p string) string {
	name := path.Base(p)
	name = strings.TrimSuffix(name, path.Ext(name))
	name = strings.NewReplacer("_", " ", "-", " ").Replace(name)
	return strings.TrimSpace(name)
}
