package processor

import (
	"context"
	"io"
	"path"
	"regexp"
	"strings"

	"github.com/marmos91/facetfs/internal/logger"
	"github.com/marmos91/facetfs/pkg/facet/contenttype"
	"github.com/marmos91/facetfs/pkg/fsal"
)

var htmlExtensions = map[string]struct{}{
	"html": {}, "htm": {}, "xhtml": {},
}

// entryPointNames are the file names that mark a directory's primary page.
var entryPointNames = map[string]struct{}{
	"index.html": {}, "index.htm": {}, "main.html": {},
}

// maxHTMLRead caps how much of a document is read for head parsing.
const maxHTMLRead = 128 * 1024

var (
	htmlTitleRe = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	htmlLangRe  = regexp.MustCompile(`(?is)<html[^>]*\slang=["']?([a-zA-Z-]+)`)
	htmlMetaRe  = regexp.MustCompile(`(?is)<meta[^>]*\sname=["'](description|keywords)["'][^>]*\scontent=["']([^"']*)["']`)
)

// HTMLProcessor classifies HTML documents and detects directory entry
// points. Full extraction parses the document head for title, description
// and keywords; a lang attribute on the root element tags the extracted
// fields with that language.
type HTMLProcessor struct {
	opener fsal.Opener
}

func (p *HTMLProcessor) Name() string { return contenttype.HTML }

func (p *HTMLProcessor) Matches(path string) bool {
	_, ok := htmlExtensions[ext(path)]
	return ok
}

func (p *HTMLProcessor) IsEntryPoint(pth string) bool {
	_, ok := entryPointNames[strings.ToLower(path.Base(pth))]
	return ok
}

func (p *HTMLProcessor) Extract(ctx context.Context, pth string, acc Fields, partial bool) error {
	acc.Set(NoLanguage, "title", titleFromName(pth))
	if partial || p.opener == nil {
		return nil
	}

	f, err := p.opener.Open(ctx, pth)
	if err != nil {
		logger.Warn("html extraction skipped", "path", pth, "error", err)
		return nil
	}
	defer f.Close()

	head, err := io.ReadAll(io.LimitReader(f, maxHTMLRead))
	if err != nil {
		return nil
	}
	doc := string(head)

	language := NoLanguage
	if m := htmlLangRe.FindStringSubmatch(doc); m != nil {
		language = strings.ToLower(m[1])
	}

	if m := htmlTitleRe.FindStringSubmatch(doc); m != nil {
		title := strings.TrimSpace(collapseWhitespace(m[1]))
		if title != "" {
			acc.Set(language, "title", title)
		}
	}
	for _, m := range htmlMetaRe.FindAllStringSubmatch(doc, -1) {
		name := strings.ToLower(m[1])
		content := strings.TrimSpace(m[2])
		if content != "" {
			acc.Set(language, name, content)
		}
	}
	return nil
}

func (p *HTMLProcessor) Cleanup(context.Context, string) error { return nil }

var whitespaceRe = regexp.MustCompile(`\s+`)

func collapseWhitespace(s string) string {
	return whitespaceRe.ReplaceAllString(s, " ")
}
