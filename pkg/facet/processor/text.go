package processor

import (
	"bufio"
	"context"
	"strings"
	"unicode/utf8"

	"github.com/marmos91/facetfs/internal/logger"
	"github.com/marmos91/facetfs/pkg/facet/contenttype"
	"github.com/marmos91/facetfs/pkg/fsal"
)

var textExtensions = map[string]struct{}{
	"txt": {}, "md": {}, "rst": {}, "csv": {}, "log": {},
}

// TextProcessor classifies plain-text files. Full extraction promotes the
// first non-empty line to the title and records the detected encoding.
type TextProcessor struct {
	opener fsal.Opener
}

func (p *TextProcessor) Name() string { return contenttype.Text }

func (p *TextProcessor) Matches(path string) bool {
	_, ok := textExtensions[ext(path)]
	return ok
}

func (p *TextProcessor) IsEntryPoint(string) bool { return false }

func (p *TextProcessor) Extract(ctx context.Context, path string, acc Fields, partial bool) error {
	acc.Set(NoLanguage, "title", titleFromName(path))
	if partial || p.opener == nil {
		return nil
	}

	f, err := p.opener.Open(ctx, path)
	if err != nil {
		// Content is unreadable; name-derived fields still stand.
		logger.Warn("text extraction skipped", "path", path, "error", err)
		return nil
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 64*1024)
	var firstLine string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			firstLine = line
			break
		}
	}
	if firstLine != "" {
		acc.Set(NoLanguage, "title", firstLine)
		if utf8.ValidString(firstLine) {
			acc.Set(NoLanguage, "encoding", "utf-8")
		}
	}
	return nil
}

func (p *TextProcessor) Cleanup(context.Context, string) error { return nil }
