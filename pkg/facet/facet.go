// Package facet implements the facets engine: a hierarchical metadata index
// over a file tree.
//
// For every observed path the engine stores a node (type plus an accumulated
// content-type bitmask) and a set of language-tagged key/value metadata
// fields. Writes materialize the full ancestor chain of a path, consulting
// the cache before falling back to batched store reads; reads degrade
// gracefully, serving immediately-computed partial data while scheduling a
// deep analysis in the background.
package facet

import (
	"github.com/marmos91/facetfs/pkg/facet/processor"
	"github.com/marmos91/facetfs/pkg/facet/store"
)

// EventEntryPointFound is published on the bus when a processor flags a file
// as the primary, representative entry of its directory. The payload is an
// EntryPoint.
const EventEntryPointFound = "entry_point_found"

// EntryPoint is the payload of EventEntryPointFound.
type EntryPoint struct {
	// Path of the detected entry-point file.
	Path string

	// ContentType is the tag of the processor that made the detection.
	ContentType string
}

// Meta is the read model: one node plus its metadata grouped as
// {language: {key: value}}. Produced only by reconstruction from store rows
// or by analysis; never stored directly.
type Meta struct {
	ID           int64
	ParentID     int64
	Path         string
	Type         store.NodeType
	ContentTypes uint64
	Metadata     processor.Fields
}

// Metrics receives engine-level observations. A nil Options.Metrics installs
// a no-op implementation; the prometheus-backed one lives in
// pkg/metrics/prometheus.
type Metrics interface {
	// CacheHit and CacheMiss count node-resolution cache lookups.
	CacheHit()
	CacheMiss()

	// NodeCreated counts nodes materialized in the store.
	NodeCreated()

	// AnalyzeBatch counts one analysis batch of the given size.
	AnalyzeBatch(partial bool, size int)

	// GetMiss counts paths a read found no stored record for.
	GetMiss(count int)

	// SearchQuery counts metadata searches.
	SearchQuery()
}

type nopMetrics struct{}

func (nopMetrics) CacheHit()              {}
func (nopMetrics) CacheMiss()             {}
func (nopMetrics) NodeCreated()           {}
func (nopMetrics) AnalyzeBatch(bool, int) {}
func (nopMetrics) GetMiss(int)            {}
func (nopMetrics) SearchQuery()           {}
