package contenttype_test

import (
	"testing"

	"github.com/marmos91/facetfs/pkg/facet/contenttype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToBitmask_SingleTag(t *testing.T) {
	mask, err := contenttype.ToBitmask(contenttype.Generic)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), mask)
}

func TestToBitmask_UnionsTags(t *testing.T) {
	mask, err := contenttype.ToBitmask(contenttype.Text, contenttype.HTML)
	require.NoError(t, err)

	textBit, err := contenttype.ToBitmask(contenttype.Text)
	require.NoError(t, err)
	htmlBit, err := contenttype.ToBitmask(contenttype.HTML)
	require.NoError(t, err)

	assert.Equal(t, textBit|htmlBit, mask)
	assert.NotEqual(t, textBit, htmlBit)
}

func TestToBitmask_UnknownTagFailsLoudly(t *testing.T) {
	_, err := contenttype.ToBitmask("bogus")
	require.ErrorIs(t, err, contenttype.ErrUnknownType)
}

func TestToBitmask_DistinctBits(t *testing.T) {
	seen := make(map[uint64]string)
	for _, tag := range contenttype.All() {
		mask, err := contenttype.ToBitmask(tag)
		require.NoError(t, err)
		require.NotZero(t, mask)
		prev, dup := seen[mask]
		require.False(t, dup, "tags %q and %q share bit %d", prev, tag, mask)
		seen[mask] = tag
	}
}

func TestKeys_PerTag(t *testing.T) {
	ks, err := contenttype.Keys(contenttype.Audio)
	require.NoError(t, err)
	assert.Contains(t, ks, "artist")
	assert.NotContains(t, ks, "width")
}

func TestKeys_UnionAcrossTags(t *testing.T) {
	union, err := contenttype.Keys("")
	require.NoError(t, err)
	assert.Contains(t, union, "title")
	assert.Contains(t, union, "main")
	assert.Contains(t, union, "duration")
}

func TestKeys_UnknownTag(t *testing.T) {
	_, err := contenttype.Keys("bogus")
	require.ErrorIs(t, err, contenttype.ErrUnknownType)
}

func TestSearchKeys_ExcludesNumericFields(t *testing.T) {
	ks, err := contenttype.SearchKeys("")
	require.NoError(t, err)
	assert.Contains(t, ks, "title")
	assert.NotContains(t, ks, "width")
	assert.NotContains(t, ks, "duration")
	assert.NotContains(t, ks, "encoding")
}

func TestTags_RoundTripsBitmask(t *testing.T) {
	mask := contenttype.MustBitmask(contenttype.Generic, contenttype.Image)
	tags := contenttype.Tags(mask)

	assert.ElementsMatch(t, []string{contenttype.Generic, contenttype.Image}, tags)
	assert.Equal(t, mask, contenttype.MustBitmask(tags...))
}

func TestTags_ZeroMaskIsEmpty(t *testing.T) {
	assert.Empty(t, contenttype.Tags(0))
}

func TestKeysFor_UnionsSetBits(t *testing.T) {
	mask := contenttype.MustBitmask(contenttype.Generic, contenttype.Image)
	ks := contenttype.KeysFor(mask)

	assert.Contains(t, ks, "title")
	assert.Contains(t, ks, "width")
	assert.NotContains(t, ks, "artist")
}

func TestContains(t *testing.T) {
	stored := contenttype.MustBitmask(contenttype.Generic, contenttype.Text)
	assert.True(t, contenttype.Contains(stored, contenttype.MustBitmask(contenttype.Text)))
	assert.True(t, contenttype.Contains(stored, stored))
	assert.False(t, contenttype.Contains(stored, contenttype.MustBitmask(contenttype.Video)))
}
