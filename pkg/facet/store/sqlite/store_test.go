package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/facetfs/pkg/facet/store"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(&Config{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func mustUpsert(t *testing.T, s *SQLiteStore, node store.Node) store.Node {
	t.Helper()
	stored, err := s.UpsertNode(context.Background(), node)
	require.NoError(t, err)
	return stored
}

func TestUpsertNodeAssignsID(t *testing.T) {
	s := newTestStore(t)

	node := mustUpsert(t, s, store.Node{Path: "/a", Type: store.TypeDirectory, ContentTypes: 1})
	assert.NotZero(t, node.ID)
	assert.Equal(t, "/a", node.Path)
}

func TestUpsertNodeOnConflictMergesMask(t *testing.T) {
	s := newTestStore(t)

	first := mustUpsert(t, s, store.Node{Path: "/a", Type: store.TypeDirectory, ContentTypes: 1})
	second := mustUpsert(t, s, store.Node{Path: "/a", Type: store.TypeDirectory, ContentTypes: 2})

	assert.Equal(t, first.ID, second.ID, "the path is the natural key")
	assert.Equal(t, uint64(3), second.ContentTypes)
}

func TestGetNodesOrdersParentsFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustUpsert(t, s, store.Node{Path: "/a/b/c", ContentTypes: 1})
	mustUpsert(t, s, store.Node{Path: "", ContentTypes: 1})
	mustUpsert(t, s, store.Node{Path: "/a", ContentTypes: 1})

	nodes, err := s.GetNodes(ctx, []string{"/a/b/c", "/a", "", "/ghost"})
	require.NoError(t, err)
	require.Len(t, nodes, 3)
	assert.Equal(t, "", nodes[0].Path)
	assert.Equal(t, "/a", nodes[1].Path)
	assert.Equal(t, "/a/b/c", nodes[2].Path)
}

func TestGetNodeNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetNode(context.Background(), "/ghost")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestMergeContentTypes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustUpsert(t, s, store.Node{Path: "/a", ContentTypes: 1})
	require.NoError(t, s.MergeContentTypes(ctx, "/a", 4))

	node, err := s.GetNode(ctx, "/a")
	require.NoError(t, err)
	assert.Equal(t, uint64(5), node.ContentTypes)

	assert.ErrorIs(t, s.MergeContentTypes(ctx, "/ghost", 1), store.ErrNotFound)
}

func TestGetMetaJoinsAndFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	text := mustUpsert(t, s, store.Node{Path: "/doc.txt", Type: store.TypeFile, ContentTypes: 3})
	mustUpsert(t, s, store.Node{Path: "/bare.txt", Type: store.TypeFile, ContentTypes: 1})
	require.NoError(t, s.UpsertMeta(ctx, text.ID, []store.MetaEntry{
		{Language: "", Key: "title", Value: "Doc"},
		{Language: "en", Key: "description", Value: "a doc"},
	}))

	rows, err := s.GetMeta(ctx, []string{"/doc.txt", "/bare.txt"}, 0)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	// Ordered by path; the meta-less node yields one null-key row.
	assert.Equal(t, "/bare.txt", rows[0].Path)
	assert.Nil(t, rows[0].Key)
	assert.Equal(t, "/doc.txt", rows[1].Path)
	require.NotNil(t, rows[1].Key)

	// Mask containment filter drops the generic-only node.
	rows, err = s.GetMeta(ctx, []string{"/doc.txt", "/bare.txt"}, 2)
	require.NoError(t, err)
	for _, r := range rows {
		assert.Equal(t, "/doc.txt", r.Path)
	}
}

func TestUpsertMetaReplacesValues(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	node := mustUpsert(t, s, store.Node{Path: "/doc.txt", ContentTypes: 1})
	require.NoError(t, s.UpsertMeta(ctx, node.ID, []store.MetaEntry{{Key: "title", Value: "old"}}))
	require.NoError(t, s.UpsertMeta(ctx, node.ID, []store.MetaEntry{{Key: "title", Value: "new"}}))

	rows, err := s.GetMeta(ctx, []string{"/doc.txt"}, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].Value)
	assert.Equal(t, "new", *rows[0].Value)
}

func TestGetChildren(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	root := mustUpsert(t, s, store.Node{Path: "", Type: store.TypeDirectory, ContentTypes: 1})
	dir := mustUpsert(t, s, store.Node{Path: "/a", ParentID: root.ID, Type: store.TypeDirectory, ContentTypes: 1})
	mustUpsert(t, s, store.Node{Path: "/a/x.txt", ParentID: dir.ID, Type: store.TypeFile, ContentTypes: 3})
	mustUpsert(t, s, store.Node{Path: "/a/y.png", ParentID: dir.ID, Type: store.TypeFile, ContentTypes: 9})

	rows, err := s.GetChildren(ctx, "/a", 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "/a/x.txt", rows[0].Path)
	assert.Equal(t, "/a/y.png", rows[1].Path)

	rows, err = s.GetChildren(ctx, "/a", 8)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "/a/y.png", rows[0].Path)
}

func TestSearch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc := mustUpsert(t, s, store.Node{Path: "/doc.txt", Type: store.TypeFile, ContentTypes: 3})
	pic := mustUpsert(t, s, store.Node{Path: "/pic.png", Type: store.TypeFile, ContentTypes: 9})
	require.NoError(t, s.UpsertMeta(ctx, doc.ID, []store.MetaEntry{
		{Language: "en", Key: "title", Value: "Summer Report"},
	}))
	require.NoError(t, s.UpsertMeta(ctx, pic.ID, []store.MetaEntry{
		{Language: "", Key: "title", Value: "summer at the lake"},
	}))

	rows, err := s.Search(ctx, "SUMMER", []string{"title"}, "", 0)
	require.NoError(t, err)
	assert.Len(t, rows, 2, "matching is case-insensitive")

	rows, err = s.Search(ctx, "summer", []string{"title"}, "en", 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "/doc.txt", rows[0].Path)

	rows, err = s.Search(ctx, "summer", []string{"title"}, "", 8)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "/pic.png", rows[0].Path)

	rows, err = s.Search(ctx, "summer", []string{"description"}, "", 0)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestDeleteLeavesOtherRows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc := mustUpsert(t, s, store.Node{Path: "/a/doc.txt", Type: store.TypeFile, ContentTypes: 3})
	mustUpsert(t, s, store.Node{Path: "/a", Type: store.TypeDirectory, ContentTypes: 3})
	require.NoError(t, s.UpsertMeta(ctx, doc.ID, []store.MetaEntry{{Key: "title", Value: "doc"}}))

	require.NoError(t, s.DeleteMeta(ctx, []string{"/a/doc.txt"}))
	require.NoError(t, s.DeleteNodes(ctx, []string{"/a/doc.txt"}))

	_, err := s.GetNode(ctx, "/a/doc.txt")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.GetNode(ctx, "/a")
	assert.NoError(t, err)
}

func TestClear(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	node := mustUpsert(t, s, store.Node{Path: "/a", ContentTypes: 1})
	require.NoError(t, s.UpsertMeta(ctx, node.ID, []store.MetaEntry{{Key: "title", Value: "a"}}))

	require.NoError(t, s.Clear(ctx))

	nodes, err := s.GetNodes(ctx, []string{"/a"})
	require.NoError(t, err)
	assert.Empty(t, nodes)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustUpsert(t, s, store.Node{Path: "/keep", ContentTypes: 1})

	err := s.WithTx(ctx, func(ctx context.Context, st store.Store) error {
		if err := st.Clear(ctx); err != nil {
			return err
		}
		if _, err := st.UpsertNode(ctx, store.Node{Path: "/new", ContentTypes: 1}); err != nil {
			return err
		}
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	_, err = s.GetNode(ctx, "/keep")
	assert.NoError(t, err, "the wipe rolled back")
	_, err = s.GetNode(ctx, "/new")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
