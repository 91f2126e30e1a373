// Package memory provides an in-memory Store implementation.
//
// It backs unit tests and ephemeral single-process runs. All operations are
// individually atomic under a single RWMutex; WithTx offers no rollback.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/marmos91/facetfs/pkg/facet/store"
)

// MemoryStore is an in-memory implementation of store.Store.
type MemoryStore struct {
	mu     sync.RWMutex
	nodes  map[string]store.Node              // keyed by path
	meta   map[int64]map[string]map[string]string // fsID -> language -> key -> value
	nextID int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nodes:  make(map[string]store.Node),
		meta:   make(map[int64]map[string]map[string]string),
		nextID: 1,
	}
}

// GetNodes returns the stored nodes for paths, parents first.
func (s *MemoryStore) GetNodes(ctx context.Context, paths []string) ([]store.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var found []store.Node
	for _, path := range paths {
		if node, ok := s.nodes[path]; ok {
			found = append(found, node)
		}
	}
	sort.Slice(found, func(i, j int) bool {
		if len(found[i].Path) != len(found[j].Path) {
			return len(found[i].Path) < len(found[j].Path)
		}
		return found[i].Path < found[j].Path
	})
	return found, nil
}

// GetNode returns the node at path or store.ErrNotFound.
func (s *MemoryStore) GetNode(ctx context.Context, path string) (store.Node, error) {
	if err := ctx.Err(); err != nil {
		return store.Node{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	node, ok := s.nodes[path]
	if !ok {
		return store.Node{}, &store.StoreError{Op: "get", Path: path, Err: store.ErrNotFound}
	}
	return node, nil
}

// UpsertNode inserts or replaces the node keyed on its path.
func (s *MemoryStore) UpsertNode(ctx context.Context, node store.Node) (store.Node, error) {
	if err := ctx.Err(); err != nil {
		return store.Node{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.nodes[node.Path]; ok {
		// Keep the original ID; the path is the natural key.
		node.ID = existing.ID
	} else {
		node.ID = s.nextID
		s.nextID++
	}
	s.nodes[node.Path] = node
	return node, nil
}

// MergeContentTypes widens the node's bitmask in place.
func (s *MemoryStore) MergeContentTypes(ctx context.Context, path string, mask uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.nodes[path]
	if !ok {
		return &store.StoreError{Op: "merge", Path: path, Err: store.ErrNotFound}
	}
	node.ContentTypes |= mask
	s.nodes[path] = node
	return nil
}

// GetMeta returns joined rows for paths, ordered by path.
func (s *MemoryStore) GetMeta(ctx context.Context, paths []string, mask uint64) ([]store.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var nodes []store.Node
	for _, path := range paths {
		node, ok := s.nodes[path]
		if !ok {
			continue
		}
		if mask != 0 && node.ContentTypes&mask != mask {
			continue
		}
		nodes = append(nodes, node)
	}
	return s.rowsFor(nodes), nil
}

// GetChildren returns joined rows for the direct children of path.
func (s *MemoryStore) GetChildren(ctx context.Context, path string, mask uint64) ([]store.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	parent, ok := s.nodes[path]
	if !ok {
		return nil, nil
	}
	var nodes []store.Node
	for _, node := range s.nodes {
		if node.ParentID != parent.ID || node.Path == parent.Path {
			continue
		}
		if mask != 0 && node.ContentTypes&mask != mask {
			continue
		}
		nodes = append(nodes, node)
	}
	return s.rowsFor(nodes), nil
}

// Search scans meta entries for case-insensitive substring matches.
func (s *MemoryStore) Search(ctx context.Context, terms string, keys []string, language string, mask uint64) ([]store.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		wanted[k] = struct{}{}
	}
	needle := strings.ToLower(terms)

	var nodes []store.Node
	for _, node := range s.nodes {
		if mask != 0 && node.ContentTypes&mask != mask {
			continue
		}
		if s.matches(node.ID, wanted, needle, language) {
			nodes = append(nodes, node)
		}
	}
	return s.rowsFor(nodes), nil
}

func (s *MemoryStore) matches(fsID int64, keys map[string]struct{}, needle, language string) bool {
	for lang, section := range s.meta[fsID] {
		if language != "" && lang != language {
			continue
		}
		for key, value := range section {
			if _, ok := keys[key]; !ok {
				continue
			}
			if strings.Contains(strings.ToLower(value), needle) {
				return true
			}
		}
	}
	return false
}

// rowsFor flattens nodes plus their meta entries into sorted joined rows.
// Callers must hold at least the read lock.
func (s *MemoryStore) rowsFor(nodes []store.Node) []store.Row {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Path < nodes[j].Path })

	var rows []store.Row
	for _, node := range nodes {
		sections := s.meta[node.ID]
		if len(sections) == 0 {
			rows = append(rows, store.Row{Node: node})
			continue
		}
		langs := make([]string, 0, len(sections))
		for lang := range sections {
			langs = append(langs, lang)
		}
		sort.Strings(langs)
		for _, lang := range langs {
			section := sections[lang]
			keys := make([]string, 0, len(section))
			for key := range section {
				keys = append(keys, key)
			}
			sort.Strings(keys)
			for _, key := range keys {
				lang, key, value := lang, key, section[key]
				rows = append(rows, store.Row{
					Node:     node,
					Language: &lang,
					Key:      &key,
					Value:    &value,
				})
			}
		}
	}
	return rows
}

// UpsertMeta writes entries for fsID, replacing existing (language, key) pairs.
func (s *MemoryStore) UpsertMeta(ctx context.Context, fsID int64, entries []store.MetaEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sections, ok := s.meta[fsID]
	if !ok {
		sections = make(map[string]map[string]string)
		s.meta[fsID] = sections
	}
	for _, entry := range entries {
		section, ok := sections[entry.Language]
		if !ok {
			section = make(map[string]string)
			sections[entry.Language] = section
		}
		section[entry.Key] = entry.Value
	}
	return nil
}

// DeleteMeta removes meta entries owned by the nodes at paths.
func (s *MemoryStore) DeleteMeta(ctx context.Context, paths []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, path := range paths {
		if node, ok := s.nodes[path]; ok {
			delete(s.meta, node.ID)
		}
	}
	return nil
}

// DeleteNodes removes the fs rows at paths. No cascade.
func (s *MemoryStore) DeleteNodes(ctx context.Context, paths []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, path := range paths {
		delete(s.nodes, path)
	}
	return nil
}

// Clear deletes everything.
func (s *MemoryStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nodes = make(map[string]store.Node)
	s.meta = make(map[int64]map[string]map[string]string)
	return nil
}

// WithTx runs fn against the store itself. The memory store has no
// transactional isolation; individual operations are atomic.
func (s *MemoryStore) WithTx(ctx context.Context, fn func(ctx context.Context, st store.Store) error) error {
	return fn(ctx, s)
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error { return nil }

// NodeCount returns the number of stored fs rows. Test helper.
func (s *MemoryStore) NodeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}
