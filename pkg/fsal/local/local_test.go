package local

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/facetfs/pkg/fsal"
)

func newTestTree(t *testing.T) string {
	t.Helper()
	base := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(base, "docs"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(base, "a.txt"), []byte("hello"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(base, "docs", "guide.md"), []byte("# guide"), 0644))
	return base
}

func TestListDirRoot(t *testing.T) {
	l := NewLister(newTestTree(t))

	listing, err := l.ListDir(context.Background(), "")
	require.NoError(t, err)

	require.Len(t, listing.Files, 1)
	assert.Equal(t, "a.txt", listing.Files[0].RelPath)
	assert.Equal(t, int64(5), listing.Files[0].Size)

	require.Len(t, listing.Dirs, 1)
	assert.Equal(t, "docs", listing.Dirs[0].RelPath)
}

func TestListDirChildPathsStayRelative(t *testing.T) {
	l := NewLister(newTestTree(t))

	listing, err := l.ListDir(context.Background(), "docs")
	require.NoError(t, err)

	require.Len(t, listing.Files, 1)
	assert.Equal(t, "docs/guide.md", listing.Files[0].RelPath)
}

func TestListDirUnknownPath(t *testing.T) {
	l := NewLister(newTestTree(t))

	_, err := l.ListDir(context.Background(), "ghost")
	assert.ErrorIs(t, err, fsal.ErrInvalidPath)
}

func TestOpen(t *testing.T) {
	l := NewLister(newTestTree(t))

	rc, err := l.Open(context.Background(), "docs/guide.md")
	require.NoError(t, err)
	defer rc.Close()

	content, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "# guide", string(content))
}

func TestOpenUnknownPath(t *testing.T) {
	l := NewLister(newTestTree(t))

	_, err := l.Open(context.Background(), "ghost.txt")
	assert.ErrorIs(t, err, fsal.ErrInvalidPath)
}

func TestCancelledContext(t *testing.T) {
	l := NewLister(newTestTree(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := l.ListDir(ctx, "")
	assert.ErrorIs(t, err, context.Canceled)
}
