package facet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/facetfs/pkg/facet/processor"
	"github.com/marmos91/facetfs/pkg/facet/store"
)

func strptr(s string) *string { return &s }

func TestReconstructGroupsConsecutivePaths(t *testing.T) {
	rows := []store.Row{
		{Node: store.Node{ID: 1, Path: "/a"}, Language: strptr(""), Key: strptr("title"), Value: strptr("A")},
		{Node: store.Node{ID: 1, Path: "/a"}, Language: strptr("en"), Key: strptr("description"), Value: strptr("about a")},
		{Node: store.Node{ID: 2, Path: "/b", ContentTypes: 3}},
	}

	metas := reconstruct(rows)
	require.Len(t, metas, 2)

	assert.Equal(t, "/a", metas[0].Path)
	assert.Equal(t, "A", metas[0].Metadata.Get(processor.NoLanguage, "title"))
	assert.Equal(t, "about a", metas[0].Metadata.Get("en", "description"))

	// Null-key row contributes node fields only.
	assert.Equal(t, "/b", metas[1].Path)
	assert.Equal(t, uint64(3), metas[1].ContentTypes)
	assert.Empty(t, metas[1].Metadata)
}

func TestReconstructPreservesInputOrder(t *testing.T) {
	rows := []store.Row{
		{Node: store.Node{ID: 2, Path: "/b"}},
		{Node: store.Node{ID: 1, Path: "/a"}},
	}

	metas := reconstruct(rows)
	require.Len(t, metas, 2)
	assert.Equal(t, "/b", metas[0].Path)
	assert.Equal(t, "/a", metas[1].Path)
}

func TestReconstructEmpty(t *testing.T) {
	assert.Empty(t, reconstruct(nil))
}
