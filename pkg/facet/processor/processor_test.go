package processor

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/facetfs/pkg/facet/contenttype"
)

// ============================================================================
// Test helpers
// ============================================================================

// stubOpener serves file content from an in-memory map.
type stubOpener struct {
	files map[string][]byte
}

func (o *stubOpener) Open(_ context.Context, path string) (io.ReadCloser, error) {
	content, ok := o.files[path]
	if !ok {
		return nil, errors.New("no such file")
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

// ============================================================================
// Registry
// ============================================================================

func TestRegistryForPath(t *testing.T) {
	reg := DefaultRegistry(nil)

	names := func(path string) []string {
		var out []string
		for _, p := range reg.ForPath(path) {
			out = append(out, p.Name())
		}
		return out
	}

	assert.Equal(t, []string{contenttype.Generic, contenttype.Text}, names("/docs/readme.md"))
	assert.Equal(t, []string{contenttype.Generic, contenttype.HTML}, names("/site/index.html"))
	assert.Equal(t, []string{contenttype.Generic, contenttype.Image}, names("/pics/cat.PNG"))
	assert.Equal(t, []string{contenttype.Generic, contenttype.Audio}, names("/music/track.mp3"))
	assert.Equal(t, []string{contenttype.Generic, contenttype.Video}, names("/clips/demo.mp4"))
	assert.Equal(t, []string{contenttype.Generic}, names("/bin/tool.exe"))
}

func TestRegistryByName(t *testing.T) {
	reg := DefaultRegistry(nil)

	p, err := reg.ByName(contenttype.HTML)
	require.NoError(t, err)
	assert.Equal(t, contenttype.HTML, p.Name())

	_, err = reg.ByName("spreadsheet")
	assert.ErrorIs(t, err, contenttype.ErrUnknownType)
}

// ============================================================================
// Name-derived fields
// ============================================================================

func TestTitleFromName(t *testing.T) {
	assert.Equal(t, "my summer trip", titleFromName("/photos/my_summer-trip.jpg"))
	assert.Equal(t, "notes", titleFromName("notes.txt"))
	assert.Equal(t, "archive.tar", titleFromName("/backups/archive.tar.gz"))
}

func TestGenericDoesNotOverwriteTitle(t *testing.T) {
	acc := Fields{}
	acc.Set(NoLanguage, "title", "Existing Title")

	require.NoError(t, (&GenericProcessor{}).Extract(context.Background(), "/a/b.bin", acc, false))
	assert.Equal(t, "Existing Title", acc.Get(NoLanguage, "title"))
}

// ============================================================================
// Text extraction
// ============================================================================

func TestTextExtractFull(t *testing.T) {
	opener := &stubOpener{files: map[string][]byte{
		"/docs/readme.md": []byte("\n\n# Getting Started\nbody text\n"),
	}}
	proc := &TextProcessor{opener: opener}

	acc := Fields{}
	require.NoError(t, proc.Extract(context.Background(), "/docs/readme.md", acc, false))

	assert.Equal(t, "# Getting Started", acc.Get(NoLanguage, "title"))
	assert.Equal(t, "utf-8", acc.Get(NoLanguage, "encoding"))
}

func TestTextExtractPartialSkipsContent(t *testing.T) {
	opener := &stubOpener{files: map[string][]byte{
		"/docs/readme.md": []byte("Heading\n"),
	}}
	proc := &TextProcessor{opener: opener}

	acc := Fields{}
	require.NoError(t, proc.Extract(context.Background(), "/docs/readme.md", acc, true))

	assert.Equal(t, "readme", acc.Get(NoLanguage, "title"))
	assert.Empty(t, acc.Get(NoLanguage, "encoding"))
}

func TestTextExtractUnreadableKeepsNameFields(t *testing.T) {
	proc := &TextProcessor{opener: &stubOpener{files: map[string][]byte{}}}

	acc := Fields{}
	require.NoError(t, proc.Extract(context.Background(), "/docs/missing.txt", acc, false))
	assert.Equal(t, "missing", acc.Get(NoLanguage, "title"))
}

// ============================================================================
// HTML extraction
// ============================================================================

func TestHTMLExtractFull(t *testing.T) {
	doc := `<!DOCTYPE html>
<html lang="en">
<head>
  <title>  Welcome
    Home  </title>
  <meta name="description" content="A friendly landing page">
  <meta name="keywords" content="home,landing">
</head>
<body></body>
</html>`
	opener := &stubOpener{files: map[string][]byte{"/site/index.html": []byte(doc)}}
	proc := &HTMLProcessor{opener: opener}

	acc := Fields{}
	require.NoError(t, proc.Extract(context.Background(), "/site/index.html", acc, false))

	assert.Equal(t, "Welcome Home", acc.Get("en", "title"))
	assert.Equal(t, "A friendly landing page", acc.Get("en", "description"))
	assert.Equal(t, "home,landing", acc.Get("en", "keywords"))
	assert.Equal(t, "index", acc.Get(NoLanguage, "title"))
}

func TestHTMLExtractNoLangAttribute(t *testing.T) {
	doc := `<html><head><title>Plain</title></head></html>`
	opener := &stubOpener{files: map[string][]byte{"/p.html": []byte(doc)}}
	proc := &HTMLProcessor{opener: opener}

	acc := Fields{}
	require.NoError(t, proc.Extract(context.Background(), "/p.html", acc, false))
	assert.Equal(t, "Plain", acc.Get(NoLanguage, "title"))
}

func TestHTMLEntryPoint(t *testing.T) {
	proc := &HTMLProcessor{}

	assert.True(t, proc.IsEntryPoint("/site/index.html"))
	assert.True(t, proc.IsEntryPoint("/site/INDEX.HTM"))
	assert.True(t, proc.IsEntryPoint("/site/main.html"))
	assert.False(t, proc.IsEntryPoint("/site/about.html"))
}

// ============================================================================
// Image extraction
// ============================================================================

func TestImageExtractDimensions(t *testing.T) {
	opener := &stubOpener{files: map[string][]byte{
		"/pics/cat.png": pngBytes(t, 32, 48),
	}}
	proc := &ImageProcessor{opener: opener}

	acc := Fields{}
	require.NoError(t, proc.Extract(context.Background(), "/pics/cat.png", acc, false))

	assert.Equal(t, "cat", acc.Get(NoLanguage, "title"))
	assert.Equal(t, "32", acc.Get(NoLanguage, "width"))
	assert.Equal(t, "48", acc.Get(NoLanguage, "height"))
}

func TestImageExtractCorruptHeader(t *testing.T) {
	opener := &stubOpener{files: map[string][]byte{
		"/pics/broken.png": []byte("not an image"),
	}}
	proc := &ImageProcessor{opener: opener}

	acc := Fields{}
	require.NoError(t, proc.Extract(context.Background(), "/pics/broken.png", acc, false))

	assert.Equal(t, "broken", acc.Get(NoLanguage, "title"))
	assert.Empty(t, acc.Get(NoLanguage, "width"))
}
