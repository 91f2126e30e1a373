// Package fsal abstracts the file-system the facets engine scans.
//
// The engine only ever lists directories and opens files for metadata
// extraction; it never writes content. Implementations live in the local and
// s3 subpackages.
package fsal

import (
	"context"
	"errors"
	"io"
)

// ErrInvalidPath is returned when a listing target does not exist or is not
// a directory. Scans treat it as a warning and stop that subtree only.
var ErrInvalidPath = errors.New("invalid path")

// Entry describes one child of a listed directory.
type Entry struct {
	// RelPath is the entry's path relative to the lister's root, in the
	// same form the engine stores it (forward slashes).
	RelPath string

	// Size in bytes; zero for directories and backends that do not
	// report sizes.
	Size int64
}

// Listing is the result of listing one directory.
type Listing struct {
	Files []Entry
	Dirs  []Entry
}

// Lister lists the immediate children of a directory.
type Lister interface {
	// ListDir returns the files and subdirectories directly under path.
	// path uses the engine's normalized form ("" is the root).
	ListDir(ctx context.Context, path string) (*Listing, error)
}

// Opener reads file content for full metadata extraction. Listers that can
// serve content implement it; processors fall back to name-only extraction
// when the opener is unavailable.
type Opener interface {
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}
