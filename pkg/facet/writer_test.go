package facet

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/facetfs/pkg/cache"
	cachemem "github.com/marmos91/facetfs/pkg/cache/memory"
	"github.com/marmos91/facetfs/pkg/facet/contenttype"
	"github.com/marmos91/facetfs/pkg/facet/store"
	storemem "github.com/marmos91/facetfs/pkg/facet/store/memory"
)

// ============================================================================
// Test helpers
// ============================================================================

// countingStore records write traffic to assert on short-circuits.
type countingStore struct {
	*storemem.MemoryStore
	upserts int
	merges  int
}

func (s *countingStore) UpsertNode(ctx context.Context, node store.Node) (store.Node, error) {
	s.upserts++
	return s.MemoryStore.UpsertNode(ctx, node)
}

func (s *countingStore) MergeContentTypes(ctx context.Context, path string, mask uint64) error {
	s.merges++
	return s.MemoryStore.MergeContentTypes(ctx, path, mask)
}

// failingCache errors on every operation.
type failingCache struct{}

var errCacheDown = errors.New("cache down")

func (failingCache) Get(context.Context, string) ([]byte, error) { return nil, errCacheDown }
func (failingCache) Set(context.Context, string, []byte, time.Duration) error {
	return errCacheDown
}
func (failingCache) Delete(context.Context, string) error       { return errCacheDown }
func (failingCache) DeletePrefix(context.Context, string) error { return errCacheDown }
func (failingCache) Close() error                               { return nil }

func newWriter(st store.Store, c cache.Cache, path string, typ store.NodeType, mask uint64) *fsWriter {
	return &fsWriter{
		path:         path,
		typ:          typ,
		contentTypes: mask,
		store:        st,
		cache:        c,
		metrics:      nopMetrics{},
	}
}

var (
	genericBit = contenttype.MustBitmask(contenttype.Generic)
	textBit    = contenttype.MustBitmask(contenttype.Text)
)

// ============================================================================
// write
// ============================================================================

func TestWriteMaterializesAncestorChain(t *testing.T) {
	ctx := context.Background()
	st := storemem.NewMemoryStore()
	w := newWriter(st, cachemem.NewMemoryCache(), "/a/b/c.txt", store.TypeFile, genericBit|textBit)

	node, err := w.write(ctx)
	require.NoError(t, err)
	assert.Equal(t, "/a/b/c.txt", node.Path)
	assert.Equal(t, store.TypeFile, node.Type)

	require.Equal(t, 4, st.NodeCount())

	root, err := st.GetNode(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, store.TypeDirectory, root.Type)
	assert.Equal(t, int64(0), root.ParentID)
	assert.Equal(t, genericBit, root.ContentTypes)

	a, err := st.GetNode(ctx, "/a")
	require.NoError(t, err)
	assert.Equal(t, root.ID, a.ParentID)
	assert.Equal(t, genericBit, a.ContentTypes, "only the direct parent receives file bits")

	b, err := st.GetNode(ctx, "/a/b")
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ParentID)
	assert.Equal(t, genericBit|textBit, b.ContentTypes)

	assert.Equal(t, b.ID, node.ParentID)
	assert.Equal(t, genericBit|textBit, node.ContentTypes)
}

func TestWriteWidensPreexistingParent(t *testing.T) {
	ctx := context.Background()
	st := storemem.NewMemoryStore()
	c := cachemem.NewMemoryCache()

	_, err := newWriter(st, c, "/a/b", store.TypeDirectory, genericBit).write(ctx)
	require.NoError(t, err)

	_, err = newWriter(st, c, "/a/b/c.txt", store.TypeFile, genericBit|textBit).write(ctx)
	require.NoError(t, err)

	parent, err := st.GetNode(ctx, "/a/b")
	require.NoError(t, err)
	assert.Equal(t, genericBit|textBit, parent.ContentTypes)
}

func TestWriteShortCircuitsOnCachedSuperset(t *testing.T) {
	ctx := context.Background()
	st := &countingStore{MemoryStore: storemem.NewMemoryStore()}
	c := cachemem.NewMemoryCache()

	_, err := newWriter(st, c, "/a/b/c.txt", store.TypeFile, genericBit|textBit).write(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, st.upserts)

	// Same bits again: the cached mask is already a superset, so the
	// second call touches storage not at all.
	_, err = newWriter(st, c, "/a/b/c.txt", store.TypeFile, genericBit|textBit).write(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, st.upserts)
	assert.Equal(t, 0, st.merges)
}

func TestWriteResolvesChainFromStoreOnColdCache(t *testing.T) {
	ctx := context.Background()
	st := &countingStore{MemoryStore: storemem.NewMemoryStore()}

	_, err := newWriter(st, cachemem.NewMemoryCache(), "/a/b/c.txt", store.TypeFile, genericBit|textBit).write(ctx)
	require.NoError(t, err)

	// Fresh cache: everything resolves through the batched store read; no
	// node is recreated, and the pre-existing target widens in place.
	before := st.upserts
	_, err = newWriter(st, cachemem.NewMemoryCache(), "/a/b/c.txt", store.TypeFile, genericBit|textBit).write(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, st.upserts)
	assert.Equal(t, 4, st.NodeCount())
}

func TestWriteDegradesWhenCacheUnavailable(t *testing.T) {
	ctx := context.Background()
	st := storemem.NewMemoryStore()

	node, err := newWriter(st, failingCache{}, "/a/b/c.txt", store.TypeFile, genericBit|textBit).write(ctx)
	require.NoError(t, err)
	assert.Equal(t, "/a/b/c.txt", node.Path)
	assert.Equal(t, 4, st.NodeCount())
}

func TestWriteRootTargets(t *testing.T) {
	ctx := context.Background()
	st := storemem.NewMemoryStore()
	c := cachemem.NewMemoryCache()

	node, err := newWriter(st, c, "", store.TypeDirectory, genericBit).write(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", node.Path)
	assert.Equal(t, 1, st.NodeCount())
}

// ============================================================================
// update
// ============================================================================

func TestUpdateWidensMask(t *testing.T) {
	ctx := context.Background()
	st := storemem.NewMemoryStore()
	c := cachemem.NewMemoryCache()

	_, err := newWriter(st, c, "/doc.txt", store.TypeFile, genericBit).write(ctx)
	require.NoError(t, err)

	node, err := newWriter(st, c, "/doc.txt", store.TypeFile, textBit).update(ctx)
	require.NoError(t, err)
	assert.Equal(t, genericBit|textBit, node.ContentTypes)

	stored, err := st.GetNode(ctx, "/doc.txt")
	require.NoError(t, err)
	assert.Equal(t, genericBit|textBit, stored.ContentTypes)
}

func TestUpdateIdempotentViaCache(t *testing.T) {
	ctx := context.Background()
	st := &countingStore{MemoryStore: storemem.NewMemoryStore()}
	c := cachemem.NewMemoryCache()

	_, err := newWriter(st, c, "/doc.txt", store.TypeFile, genericBit).write(ctx)
	require.NoError(t, err)

	first, err := newWriter(st, c, "/doc.txt", store.TypeFile, textBit).update(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.merges)

	second, err := newWriter(st, c, "/doc.txt", store.TypeFile, textBit).update(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.merges, "second update with the same bits performs no storage write")
	assert.Equal(t, first.ContentTypes, second.ContentTypes)
}

func TestUpdateMissingNodePropagates(t *testing.T) {
	ctx := context.Background()
	st := storemem.NewMemoryStore()

	_, err := newWriter(st, cachemem.NewMemoryCache(), "/ghost.txt", store.TypeFile, textBit).update(ctx)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
