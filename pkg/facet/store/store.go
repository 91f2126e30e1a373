// Package store defines the persistence contract for the facets engine.
//
// The backing store keeps two tables: fs (one row per file-system path ever
// observed) and meta (sparse per-(node, language, key) values). Concrete
// implementations live in the postgres, sqlite, and memory subpackages.
package store

import (
	"context"
	"errors"
	"fmt"
)

// NodeType distinguishes file and directory nodes.
type NodeType int

const (
	TypeFile NodeType = iota
	TypeDirectory
)

func (t NodeType) String() string {
	switch t {
	case TypeFile:
		return "file"
	case TypeDirectory:
		return "directory"
	default:
		return fmt.Sprintf("NodeType(%d)", int(t))
	}
}

// Node is one row of the fs table.
//
// ParentID is a weak reference to the ancestor node's ID; 0 is the sentinel
// for the synthetic root when no ancestor row exists. Path is the normalized
// unique key; the empty string denotes the tree root. ContentTypes is a
// bitmask that only ever widens, except on a full clear.
type Node struct {
	ID           int64
	ParentID     int64
	Path         string
	Type         NodeType
	ContentTypes uint64
}

// MetaEntry is one language-tagged key/value pair belonging to a node.
// An empty Language marks a language-independent key.
type MetaEntry struct {
	Language string
	Key      string
	Value    string
}

// Row is one flat result row of a joined fs/meta read. Meta fields are nil
// for nodes that have no metadata (LEFT JOIN misses).
type Row struct {
	Node
	Language *string
	Key      *string
	Value    *string
}

// ErrNotFound is returned when a single-node lookup matches no row.
var ErrNotFound = errors.New("node not found")

// StoreError carries operation context for storage failures.
type StoreError struct {
	Op   string
	Path string
	Err  error
}

func (e *StoreError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("store: %s %q: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Store is the relational persistence contract the facets engine depends on.
//
// Implementations must support multi-value path filtering, bitwise AND
// containment filters on the content_types column, and an upsert keyed on
// the unique path column (which makes concurrent creation of the same
// ancestor idempotent and safe).
type Store interface {
	// GetNodes returns the fs rows for the given paths, ordered by
	// ascending path length so parents sort before their children.
	// Paths with no row are simply absent from the result.
	GetNodes(ctx context.Context, paths []string) ([]Node, error)

	// GetNode returns the fs row for a single path, or ErrNotFound.
	GetNode(ctx context.Context, path string) (Node, error)

	// UpsertNode inserts the node or, when a row with the same path already
	// exists, updates it in place. The returned node carries the assigned ID.
	UpsertNode(ctx context.Context, node Node) (Node, error)

	// MergeContentTypes widens the node's bitmask in place:
	// content_types = content_types | mask.
	MergeContentTypes(ctx context.Context, path string, mask uint64) error

	// GetMeta returns the joined fs/meta rows for the given paths, ordered
	// by path. Nodes without metadata yield one row with nil meta fields.
	// A non-zero mask restricts results to nodes whose content_types
	// contain every bit of mask.
	GetMeta(ctx context.Context, paths []string, mask uint64) ([]Row, error)

	// GetChildren returns the joined rows for the direct children of the
	// directory at path, ordered by path, optionally mask-filtered.
	GetChildren(ctx context.Context, path string, mask uint64) ([]Row, error)

	// Search returns the joined rows for nodes that have at least one meta
	// entry whose key is among keys and whose value contains terms
	// case-insensitively. Optional language and mask filters apply.
	// Results are ordered by path.
	Search(ctx context.Context, terms string, keys []string, language string, mask uint64) ([]Row, error)

	// UpsertMeta writes the entries for the node with the given ID,
	// replacing values of existing (language, key) pairs.
	UpsertMeta(ctx context.Context, fsID int64, entries []MetaEntry) error

	// DeleteMeta removes all meta entries owned by nodes at the given paths.
	DeleteMeta(ctx context.Context, paths []string) error

	// DeleteNodes removes the fs rows at the given paths. Directories are
	// not cascade-deleted; callers pass every path they want gone.
	DeleteNodes(ctx context.Context, paths []string) error

	// Clear deletes all meta entries and all fs rows.
	Clear(ctx context.Context) error

	// WithTx runs fn against a transactional view of the store. The wipe
	// performed by a full reindex runs under a single transaction so
	// readers never observe a half-rebuilt tree, to the extent the backend
	// provides isolation.
	WithTx(ctx context.Context, fn func(ctx context.Context, s Store) error) error

	// Close releases the underlying resources.
	Close() error
}
