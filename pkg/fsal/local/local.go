// Package local implements fsal over a local directory tree.
package local

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/marmos91/facetfs/pkg/fsal"
)

// Lister serves listings rooted at a base directory on the local disk.
type Lister struct {
	base string
}

// NewLister creates a lister rooted at base.
func NewLister(base string) *Lister {
	return &Lister{base: filepath.Clean(base)}
}

// abs maps an engine path ("" root, forward slashes) onto the local disk.
func (l *Lister) abs(p string) string {
	p = strings.TrimPrefix(p, "/")
	if p == "" || p == "." {
		return l.base
	}
	return filepath.Join(l.base, filepath.FromSlash(p))
}

// ListDir returns the immediate children of path.
func (l *Lister) ListDir(ctx context.Context, dir string) (*fsal.Listing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(l.abs(dir))
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", fsal.ErrInvalidPath, dir, err)
	}

	listing := &fsal.Listing{}
	for _, entry := range entries {
		rel := path.Join(normalized(dir), entry.Name())
		if entry.IsDir() {
			listing.Dirs = append(listing.Dirs, fsal.Entry{RelPath: rel})
			continue
		}
		var size int64
		if info, err := entry.Info(); err == nil {
			size = info.Size()
		}
		listing.Files = append(listing.Files, fsal.Entry{RelPath: rel, Size: size})
	}
	return listing, nil
}

// Open returns the file content at path.
func (l *Lister) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(l.abs(p))
	if err != nil {
		if _, ok := err.(*fs.PathError); ok {
			return nil, fmt.Errorf("%w: %q", fsal.ErrInvalidPath, p)
		}
		return nil, err
	}
	return f, nil
}

// normalized strips the root markers so joined child paths stay relative.
func normalized(dir string) string {
	if dir == "" || dir == "." || dir == "/" {
		return ""
	}
	return dir
}
