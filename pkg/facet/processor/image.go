package processor

import (
	"context"
	"image"
	"strconv"

	// Registered for image.DecodeConfig.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/marmos91/facetfs/internal/logger"
	"github.com/marmos91/facetfs/pkg/facet/contenttype"
	"github.com/marmos91/facetfs/pkg/fsal"
)

var imageExtensions = map[string]struct{}{
	"png": {}, "jpg": {}, "jpeg": {}, "gif": {},
}

// ImageProcessor classifies raster images. Full extraction decodes only the
// image header to obtain dimensions.
type ImageProcessor struct {
	opener fsal.Opener
}

func (p *ImageProcessor) Name() string { return contenttype.Image }

func (p *ImageProcessor) Matches(path string) bool {
	_, ok := imageExtensions[ext(path)]
	return ok
}

func (p *ImageProcessor) IsEntryPoint(string) bool { return false }

func (p *ImageProcessor) Extract(ctx context.Context, path string, acc Fields, partial bool) error {
	acc.Set(NoLanguage, "title", titleFromName(path))
	if partial || p.opener == nil {
		return nil
	}

	f, err := p.opener.Open(ctx, path)
	if err != nil {
		logger.Warn("image extraction skipped", "path", path, "error", err)
		return nil
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		logger.Warn("image header unreadable", "path", path, "error", err)
		return nil
	}
	acc.Set(NoLanguage, "width", strconv.Itoa(cfg.Width))
	acc.Set(NoLanguage, "height", strconv.Itoa(cfg.Height))
	return nil
}

func (p *ImageProcessor) Cleanup(context.Context, string) error { return nil }
