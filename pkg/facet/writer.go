package facet

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/marmos91/facetfs/internal/logger"
	"github.com/marmos91/facetfs/pkg/cache"
	"github.com/marmos91/facetfs/pkg/facet/contenttype"
	"github.com/marmos91/facetfs/pkg/facet/store"
)

const (
	// cachePrefix namespaces node entries in the shared cache.
	cachePrefix = "fs_"

	// cacheTTL bounds how long a resolved node is trusted without a store
	// read.
	cacheTTL = time.Hour
)

func cacheKey(path string) string { return cachePrefix + path }

// fsWriter materializes one target path in the store: it guarantees every
// ancestor node exists, creates the target if absent, and propagates the
// contributed content-type bits to the direct parent.
//
// Cache entries for a chain are populated contiguously from the root, so the
// walk stops at the first miss; everything past it is resolved from the
// store in one batched, parent-first read.
type fsWriter struct {
	path         string
	typ          store.NodeType
	contentTypes uint64

	store   store.Store
	cache   cache.Cache
	metrics Metrics
}

// cachedNode reads the node cached for path. Any cache failure reads as a
// miss so resolution degrades to store-only.
func (w *fsWriter) cachedNode(ctx context.Context, path string) (store.Node, bool) {
	raw, err := w.cache.Get(ctx, cacheKey(path))
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			logger.Warn("cache read failed, falling back to store", "path", path, "error", err)
		}
		w.metrics.CacheMiss()
		return store.Node{}, false
	}
	var node store.Node
	if err := json.Unmarshal(raw, &node); err != nil {
		logger.Warn("discarding corrupt cache entry", "path", path, "error", err)
		_ = w.cache.Delete(ctx, cacheKey(path))
		w.metrics.CacheMiss()
		return store.Node{}, false
	}
	w.metrics.CacheHit()
	return node, true
}

func (w *fsWriter) cacheNode(ctx context.Context, node store.Node) {
	raw, err := json.Marshal(node)
	if err != nil {
		return
	}
	if err := w.cache.Set(ctx, cacheKey(node.Path), raw, cacheTTL); err != nil {
		logger.Warn("cache write failed", "path", node.Path, "error", err)
	}
}

// merge widens node's stored mask in place when it does not already contain
// mask, and refreshes the cache entry. Returns the resulting node.
func (w *fsWriter) merge(ctx context.Context, node store.Node, mask uint64) (store.Node, error) {
	if contenttype.Contains(node.ContentTypes, mask) {
		return node, nil
	}
	if err := w.store.MergeContentTypes(ctx, node.Path, mask); err != nil {
		return store.Node{}, err
	}
	node.ContentTypes |= mask
	w.cacheNode(ctx, node)
	return node, nil
}

// write materializes the full ancestor chain of w.path and returns the
// resulting node for w.path.
//
// Absent entries are created in ancestor-to-descendant order as directories
// (the target keeps its own type), each threading parent_id from the
// previous step. The contributed bits land on the target itself and, for a
// file target, on its direct parent; other ancestors only ever get the
// generic bit.
func (w *fsWriter) write(ctx context.Context) (store.Node, error) {
	// A cached target whose mask already contains the contributed bits
	// needs no storage write at all.
	if node, ok := w.cachedNode(ctx, w.path); ok {
		if contenttype.Contains(node.ContentTypes, w.contentTypes) {
			return node, nil
		}
	}

	var chain []string
	for p := range Ancestors(w.path) {
		chain = append(chain, p)
	}

	known := make(map[string]store.Node, len(chain))
	resolved := 0
	for _, p := range chain {
		node, ok := w.cachedNode(ctx, p)
		if !ok {
			break
		}
		known[p] = node
		resolved++
	}

	if unresolved := chain[resolved:]; len(unresolved) > 0 {
		nodes, err := w.store.GetNodes(ctx, unresolved)
		if err != nil {
			return store.Node{}, err
		}
		for _, node := range nodes {
			known[node.Path] = node
			w.cacheNode(ctx, node)
		}
	}

	parent := parentOf(w.path)
	generic := contenttype.MustBitmask(contenttype.Generic)

	var prev store.Node
	created := make(map[string]bool, len(chain))
	for _, p := range chain {
		node, ok := known[p]
		if !ok {
			node = store.Node{
				ParentID:     prev.ID,
				Path:         p,
				Type:         store.TypeDirectory,
				ContentTypes: generic,
			}
			if p == w.path {
				node.Type = w.typ
			}
			if p == w.path || (p == parent && w.typ == store.TypeFile) {
				node.ContentTypes |= w.contentTypes
			}
			var err error
			node, err = w.store.UpsertNode(ctx, node)
			if err != nil {
				return store.Node{}, err
			}
			w.metrics.NodeCreated()
			w.cacheNode(ctx, node)
			created[p] = true
			known[p] = node
		}
		prev = node
	}

	// A pre-existing parent of a file target widens in place.
	if w.typ == store.TypeFile && parent != w.path && !created[parent] {
		if _, err := w.merge(ctx, known[parent], w.contentTypes); err != nil {
			return store.Node{}, err
		}
	}
	// A pre-existing target widens in place.
	if !created[w.path] {
		node, err := w.merge(ctx, known[w.path], w.contentTypes)
		if err != nil {
			return store.Node{}, err
		}
		known[w.path] = node
	}
	return known[w.path], nil
}

// update is the unsafe variant of write: it widens w.path's mask without
// resolving ancestors. Callers guarantee the node already exists.
func (w *fsWriter) update(ctx context.Context) (store.Node, error) {
	if node, ok := w.cachedNode(ctx, w.path); ok {
		return w.merge(ctx, node, w.contentTypes)
	}
	node, err := w.store.GetNode(ctx, w.path)
	if err != nil {
		return store.Node{}, err
	}
	w.cacheNode(ctx, node)
	return w.merge(ctx, node, w.contentTypes)
}
