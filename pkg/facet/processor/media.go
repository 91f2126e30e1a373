package processor

import (
	"context"

	"github.com/marmos91/facetfs/pkg/facet/contenttype"
)

var audioExtensions = map[string]struct{}{
	"mp3": {}, "ogg": {}, "flac": {}, "wav": {}, "m4a": {},
}

var videoExtensions = map[string]struct{}{
	"mp4": {}, "mkv": {}, "webm": {}, "avi": {}, "mov": {},
}

// AudioProcessor classifies audio files. Extraction is name-only: container
// probing needs a media toolchain this index does not carry.
type AudioProcessor struct{}

func (p *AudioProcessor) Name() string { return contenttype.Audio }

func (p *AudioProcessor) Matches(path string) bool {
	_, ok := audioExtensions[ext(path)]
	return ok
}

func (p *AudioProcessor) IsEntryPoint(string) bool { return false }

func (p *AudioProcessor) Extract(_ context.Context, path string, acc Fields, _ bool) error {
	acc.Set(NoLanguage, "title", titleFromName(path))
	return nil
}

func (p *AudioProcessor) Cleanup(context.Context, string) error { return nil }

// VideoProcessor classifies video files. Name-only, like AudioProcessor.
type VideoProcessor struct{}

func (p *VideoProcessor) Name() string { return contenttype.Video }

func (p *VideoProcessor) Matches(path string) bool {
	_, ok := videoExtensions[ext(path)]
	return ok
}

func (p *VideoProcessor) IsEntryPoint(string) bool { return false }

func (p *VideoProcessor) Extract(_ context.Context, path string, acc Fields, _ bool) error {
	acc.Set(NoLanguage, "title", titleFromName(path))
	return nil
}

func (p *VideoProcessor) Cleanup(context.Context, string) error { return nil }
