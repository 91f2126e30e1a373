package processor

import (
	"context"

	"github.com/marmos91/facetfs/pkg/facet/contenttype"
)

// GenericProcessor applies to every path and supplies the name-derived
// title every node gets regardless of classification.
type GenericProcessor struct{}

func (p *GenericProcessor) Name() string { return contenttype.Generic }

func (p *GenericProcessor) Matches(string) bool { return true }

func (p *GenericProcessor) IsEntryPoint(string) bool { return false }

func (p *GenericProcessor) Extract(_ context.Context, path string, acc Fields, _ bool) error {
	if acc.Get(NoLanguage, "title") == "" {
		acc.Set(NoLanguage, "title", titleFromName(path))
	}
	return nil
}

func (p *GenericProcessor) Cleanup(context.Context, string) error { return nil }
