package facet

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"maps"
	"path"
	"slices"
	"time"

	"github.com/marmos91/facetfs/internal/logger"
	"github.com/marmos91/facetfs/pkg/cache"
	cachemem "github.com/marmos91/facetfs/pkg/cache/memory"
	"github.com/marmos91/facetfs/pkg/events"
	"github.com/marmos91/facetfs/pkg/facet/contenttype"
	"github.com/marmos91/facetfs/pkg/facet/processor"
	"github.com/marmos91/facetfs/pkg/facet/store"
	"github.com/marmos91/facetfs/pkg/fsal"
	"github.com/marmos91/facetfs/pkg/tasks"
)

const (
	// analyzeBatchSize bounds how many paths one analysis unit covers.
	analyzeBatchSize = 10

	// storeBatchSize bounds multi-path store requests (IN-clause limit).
	storeBatchSize = 999
)

// Options configures a new Archive. Store, Lister, and Scheduler are
// required; the rest default to in-process implementations.
type Options struct {
	Store     store.Store
	Lister    fsal.Lister
	Scheduler tasks.Scheduler

	// Cache defaults to an in-memory TTL cache.
	Cache cache.Cache

	// Bus defaults to a fresh in-process bus.
	Bus events.Bus

	// Registry defaults to the standard processor set, reading content
	// through the lister when it can open files.
	Registry *processor.Registry

	// Metrics defaults to a no-op implementation.
	Metrics Metrics
}

// Archive is the facets engine facade: it orchestrates analyze, scan, get,
// search, save, and remove over the store, cache, task executor, file-system
// lister, and event bus.
type Archive struct {
	store     store.Store
	cache     cache.Cache
	bus       events.Bus
	scheduler tasks.Scheduler
	lister    fsal.Lister
	registry  *processor.Registry
	metrics   Metrics
}

// New wires an Archive and registers its entry-point handler on the bus.
func New(opts Options) (*Archive, error) {
	if opts.Store == nil {
		return nil, errors.New("facet: store is required")
	}
	if opts.Lister == nil {
		return nil, errors.New("facet: lister is required")
	}
	if opts.Scheduler == nil {
		return nil, errors.New("facet: scheduler is required")
	}

	a := &Archive{
		store:     opts.Store,
		cache:     opts.Cache,
		bus:       opts.Bus,
		scheduler: opts.Scheduler,
		lister:    opts.Lister,
		registry:  opts.Registry,
		metrics:   opts.Metrics,
	}
	if a.cache == nil {
		a.cache = cachemem.NewMemoryCache()
	}
	if a.bus == nil {
		a.bus = events.NewBus()
	}
	if a.registry == nil {
		opener, _ := opts.Lister.(fsal.Opener)
		a.registry = processor.DefaultRegistry(opener)
	}
	if a.metrics == nil {
		a.metrics = nopMetrics{}
	}

	a.bus.Subscribe(EventEntryPointFound, a.onEntryPoint)
	return a, nil
}

// writer builds an fsWriter bound to this archive's collaborators.
func (a *Archive) writer(p string, typ store.NodeType, mask uint64) *fsWriter {
	return &fsWriter{
		path:         p,
		typ:          typ,
		contentTypes: mask,
		store:        a.store,
		cache:        a.cache,
		metrics:      a.metrics,
	}
}

// withStore returns a shallow clone bound to s, used to run engine
// operations against a transactional store view.
func (a *Archive) withStore(s store.Store) *Archive {
	clone := *a
	clone.store = s
	return &clone
}

// onEntryPoint stamps the parent directory of a detected entry point with a
// language-independent "main" key and the detected classification bit. The
// save flows through the node materializer, so the parent node exists even
// if its directory was never scanned directly.
func (a *Archive) onEntryPoint(payload any) {
	ep, ok := payload.(EntryPoint)
	if !ok {
		return
	}
	mask, err := contenttype.ToBitmask(ep.ContentType)
	if err != nil {
		logger.Warn("entry point with undefined content type", "path", ep.Path, "content_type", ep.ContentType)
		return
	}
	fields := processor.Fields{}
	fields.Set(processor.NoLanguage, "main", path.Base(ep.Path))

	meta := &Meta{
		Path:         parentOf(Normalize(ep.Path)),
		Type:         store.TypeDirectory,
		ContentTypes: mask,
		Metadata:     fields,
	}
	if err := a.Save(context.Background(), meta); err != nil {
		logger.Warn("entry point stamping failed", "path", ep.Path, "error", err)
	}
}

// Analyze resolves every applicable processor for each path and accumulates
// the extracted metadata, keyed by path. Partial mode restricts processors
// to the cheap, name-only extraction pass. Entry-point detections publish
// EventEntryPointFound on the bus.
//
// Results are views only; nothing is persisted here.
func (a *Archive) Analyze(ctx context.Context, paths []string, partial bool) (map[string]*Meta, error) {
	result := make(map[string]*Meta, len(paths))
	for batch := range slices.Chunk(paths, analyzeBatchSize) {
		a.metrics.AnalyzeBatch(partial, len(batch))
		for _, p := range batch {
			p = Normalize(p)
			meta, err := a.analyzeOne(ctx, p, partial)
			if err != nil {
				return nil, err
			}
			result[p] = meta
		}
	}
	return result, nil
}

func (a *Archive) analyzeOne(ctx context.Context, p string, partial bool) (*Meta, error) {
	acc := processor.Fields{}
	var tags []string
	for _, proc := range a.registry.ForPath(p) {
		tags = append(tags, proc.Name())
		if proc.IsEntryPoint(p) {
			a.bus.Publish(EventEntryPointFound, EntryPoint{Path: p, ContentType: proc.Name()})
		}
		if err := proc.Extract(ctx, p, acc, partial); err != nil {
			logger.Warn("extraction failed", "path", p, "processor", proc.Name(), "error", err)
		}
	}
	mask, err := contenttype.ToBitmask(tags...)
	if err != nil {
		// Processor names are defined tags; reaching this is a bug in a
		// registered processor.
		return nil, fmt.Errorf("analyze %q: %w", p, err)
	}
	return &Meta{
		Path:         p,
		Type:         store.TypeFile,
		ContentTypes: mask,
		Metadata:     acc,
	}, nil
}

// AnalyzeAsync chunks paths and hands each batch to the executor. fn, when
// non-nil, receives each batch's result as it completes. The call returns
// immediately.
func (a *Archive) AnalyzeAsync(paths []string, partial bool, fn func(map[string]*Meta)) {
	for batch := range slices.Chunk(slices.Clone(paths), analyzeBatchSize) {
		a.scheduler.Schedule(func(ctx context.Context) {
			result, err := a.Analyze(ctx, batch, partial)
			if err != nil {
				logger.Warn("background analysis failed", "error", err)
				return
			}
			if fn != nil {
				fn(result)
			}
		}, tasks.Options{})
	}
}

// ScanOptions controls tree traversal.
type ScanOptions struct {
	// Partial restricts analysis to the cheap extraction pass.
	Partial bool

	// MaxDepth bounds recursion into subdirectories; zero means unbounded.
	// MaxDepth 1 analyzes only the root directory's immediate files.
	MaxDepth int

	// Delay is the per-sibling scheduling delay step used by ScanAsync to
	// rate-limit the traversal. Ignored by synchronous scans.
	Delay time.Duration
}

// Scan walks the tree under root depth-first and yields one metadata batch
// per directory level, lazily. A directory the lister cannot serve stops
// that subtree with a warning; already-yielded batches are unaffected.
func (a *Archive) Scan(ctx context.Context, root string, opts ScanOptions) iter.Seq2[map[string]*Meta, error] {
	return func(yield func(map[string]*Meta, error) bool) {
		a.scanInto(ctx, Normalize(root), opts, 0, yield)
	}
}

func (a *Archive) scanInto(ctx context.Context, dir string, opts ScanOptions, depth int, yield func(map[string]*Meta, error) bool) bool {
	listing, err := a.lister.ListDir(ctx, dir)
	if err != nil {
		logger.Warn("scan stopped for subtree", "path", dir, "error", err)
		return true
	}

	batch, err := a.Analyze(ctx, filePaths(listing), opts.Partial)
	if err != nil {
		return yield(nil, err)
	}
	if len(batch) > 0 && !yield(batch, nil) {
		return false
	}

	if opts.MaxDepth > 0 && depth+1 >= opts.MaxDepth {
		return true
	}
	for _, d := range listing.Dirs {
		if !a.scanInto(ctx, Normalize(d.RelPath), opts, depth+1, yield) {
			return false
		}
	}
	return true
}

// ScanAsync traverses the tree under root through the executor: the root
// level is scheduled immediately and every subdirectory becomes an
// independent deferred task, siblings spaced opts.Delay apart. fn, when
// non-nil, receives each level's batch.
func (a *Archive) ScanAsync(root string, opts ScanOptions, fn func(map[string]*Meta)) {
	a.scheduleScan(Normalize(root), opts, 0, 0, fn)
}

func (a *Archive) scheduleScan(dir string, opts ScanOptions, depth int, delay time.Duration, fn func(map[string]*Meta)) {
	a.scheduler.Schedule(func(ctx context.Context) {
		a.scanLevel(ctx, dir, opts, depth, fn)
	}, tasks.Options{Delay: delay})
}

func (a *Archive) scanLevel(ctx context.Context, dir string, opts ScanOptions, depth int, fn func(map[string]*Meta)) {
	listing, err := a.lister.ListDir(ctx, dir)
	if err != nil {
		logger.Warn("scan stopped for subtree", "path", dir, "error", err)
		return
	}

	batch, err := a.Analyze(ctx, filePaths(listing), opts.Partial)
	if err != nil {
		logger.Warn("scan analysis failed", "path", dir, "error", err)
		return
	}
	if fn != nil && len(batch) > 0 {
		fn(batch)
	}

	if opts.MaxDepth > 0 && depth+1 >= opts.MaxDepth {
		return
	}
	var delay time.Duration
	for _, d := range listing.Dirs {
		delay += opts.Delay
		a.scheduleScan(Normalize(d.RelPath), opts, depth+1, delay, fn)
	}
}

func filePaths(listing *fsal.Listing) []string {
	paths := make([]string, 0, len(listing.Files))
	for _, f := range listing.Files {
		paths = append(paths, f.RelPath)
	}
	return paths
}

// GetOptions controls the read-through path.
type GetOptions struct {
	// ContentType narrows results to nodes containing this tag's bit.
	ContentType string

	// Partial serves missing paths with an immediate cheap analysis while
	// scheduling a background full analyze-and-save.
	Partial bool

	// IgnoreMissing returns only what storage already has.
	IgnoreMissing bool
}

// Get is the read-through path: it fetches stored metadata views for paths
// in one batched, joined query and resolves the rest per GetOptions. Unless
// IgnoreMissing is set, the result has exactly one entry per requested path;
// freshness varies but the call never fails on missing data.
func (a *Archive) Get(ctx context.Context, paths []string, opts GetOptions) (map[string]*Meta, error) {
	var mask uint64
	if opts.ContentType != "" {
		var err error
		if mask, err = contenttype.ToBitmask(opts.ContentType); err != nil {
			return nil, err
		}
	}

	normalized := make([]string, 0, len(paths))
	for _, p := range paths {
		normalized = append(normalized, Normalize(p))
	}
	if opts.ContentType != "" {
		// Paths the requested processor cannot handle are dropped up
		// front; they are not misses to analyze and backfill.
		proc, err := a.registry.ByName(opts.ContentType)
		if err != nil {
			return nil, err
		}
		supported := normalized[:0]
		for _, p := range normalized {
			if proc.Matches(p) {
				supported = append(supported, p)
			}
		}
		normalized = supported
	}

	result := make(map[string]*Meta, len(normalized))
	for batch := range slices.Chunk(normalized, storeBatchSize) {
		rows, err := a.store.GetMeta(ctx, batch, mask)
		if err != nil {
			return nil, err
		}
		for _, m := range reconstruct(rows) {
			result[m.Path] = m
		}
	}
	if opts.IgnoreMissing {
		return result, nil
	}

	var missing []string
	for _, p := range normalized {
		if _, ok := result[p]; !ok {
			missing = append(missing, p)
		}
	}
	if len(missing) == 0 {
		return result, nil
	}
	a.metrics.GetMiss(len(missing))

	if opts.Partial {
		// The caller never blocks on the expensive path: serve a cheap
		// placeholder now, let the background task persist the real thing.
		backfill := slices.Clone(missing)
		a.scheduler.Schedule(func(ctx context.Context) {
			metas, err := a.Analyze(ctx, backfill, false)
			if err != nil {
				logger.Warn("backfill analysis failed", "error", err)
				return
			}
			if err := a.SaveAll(ctx, metas); err != nil {
				logger.Warn("backfill save failed", "error", err)
			}
		}, tasks.Options{})

		placeholders, err := a.Analyze(ctx, missing, true)
		if err != nil {
			return nil, err
		}
		maps.Copy(result, placeholders)
		return result, nil
	}

	metas, err := a.Analyze(ctx, missing, false)
	if err != nil {
		return nil, err
	}
	if err := a.SaveAll(ctx, metas); err != nil {
		return nil, err
	}
	// Re-read so the merged views carry assigned ids and cleaned metadata.
	for batch := range slices.Chunk(missing, storeBatchSize) {
		rows, err := a.store.GetMeta(ctx, batch, 0)
		if err != nil {
			return nil, err
		}
		for _, m := range reconstruct(rows) {
			result[m.Path] = m
		}
	}
	return result, nil
}

// Parent returns the metadata view of the directory itself. Unless
// forceRefresh is set an existing record is preferred; otherwise the
// directory's immediate files are partially analyzed, its bitmask recomputed
// as their union plus the generic bit, and the result persisted and re-read.
func (a *Archive) Parent(ctx context.Context, dir string, forceRefresh bool) (*Meta, error) {
	dir = Normalize(dir)
	if !forceRefresh {
		rows, err := a.store.GetMeta(ctx, []string{dir}, 0)
		if err != nil {
			return nil, err
		}
		if metas := reconstruct(rows); len(metas) > 0 {
			return metas[0], nil
		}
	}

	mask := contenttype.MustBitmask(contenttype.Generic)
	listing, err := a.lister.ListDir(ctx, dir)
	if err != nil {
		logger.Warn("parent scan stopped", "path", dir, "error", err)
	} else {
		batch, err := a.Analyze(ctx, filePaths(listing), true)
		if err != nil {
			return nil, err
		}
		for _, m := range batch {
			mask |= m.ContentTypes
		}
	}

	meta := &Meta{
		Path:         dir,
		Type:         store.TypeDirectory,
		ContentTypes: mask,
		Metadata:     processor.Fields{},
	}
	if err := a.Save(ctx, meta); err != nil {
		return nil, err
	}

	rows, err := a.store.GetMeta(ctx, []string{dir}, 0)
	if err != nil {
		return nil, err
	}
	metas := reconstruct(rows)
	if len(metas) == 0 {
		return nil, &store.StoreError{Op: "parent", Path: dir, Err: store.ErrNotFound}
	}
	return metas[0], nil
}

// Search returns metadata views for nodes with at least one entry whose key
// is valid for contentType (all searchable keys when empty) and whose value
// contains terms case-insensitively. language and contentType optionally
// narrow the match.
func (a *Archive) Search(ctx context.Context, terms, contentType, language string) ([]*Meta, error) {
	keys, err := contenttype.SearchKeys(contentType)
	if err != nil {
		return nil, err
	}
	var mask uint64
	if contentType != "" {
		mask = contenttype.MustBitmask(contentType)
	}

	a.metrics.SearchQuery()
	rows, err := a.store.Search(ctx, terms, keys, language, mask)
	if err != nil {
		return nil, err
	}
	return reconstruct(rows), nil
}

// Save materializes m's node (with every ancestor) and replaces its
// metadata with a cleaned copy: fields outside the content types' valid key
// sets are dropped before storage.
func (a *Archive) Save(ctx context.Context, m *Meta) error {
	p := Normalize(m.Path)
	mask := m.ContentTypes | contenttype.MustBitmask(contenttype.Generic)

	node, err := a.writer(p, m.Type, mask).write(ctx)
	if err != nil {
		return err
	}

	entries := cleanEntries(m.Metadata, mask)
	if len(entries) == 0 {
		return nil
	}
	return a.store.UpsertMeta(ctx, node.ID, entries)
}

// SaveAll applies Save to every entry of a path-keyed mapping, in path order.
func (a *Archive) SaveAll(ctx context.Context, metas map[string]*Meta) error {
	for _, p := range slices.Sorted(maps.Keys(metas)) {
		if err := a.Save(ctx, metas[p]); err != nil {
			return err
		}
	}
	return nil
}

// cleanEntries flattens fields into store entries, dropping keys outside
// the valid set for mask. Entries are ordered by (language, key) so writes
// are deterministic.
func cleanEntries(fields processor.Fields, mask uint64) []store.MetaEntry {
	valid := make(map[string]struct{})
	for _, k := range contenttype.KeysFor(mask) {
		valid[k] = struct{}{}
	}

	var entries []store.MetaEntry
	for _, language := range slices.Sorted(maps.Keys(fields)) {
		kv := fields[language]
		for _, key := range slices.Sorted(maps.Keys(kv)) {
			if _, ok := valid[key]; !ok {
				continue
			}
			entries = append(entries, store.MetaEntry{
				Language: language,
				Key:      key,
				Value:    kv[key],
			})
		}
	}
	return entries
}

// Remove runs each matching processor's cleanup hook per path, then deletes
// the paths' metadata and nodes in store-sized batches. Ancestor directories
// are never cascade-deleted.
func (a *Archive) Remove(ctx context.Context, paths []string) error {
	normalized := make([]string, 0, len(paths))
	for _, p := range paths {
		normalized = append(normalized, Normalize(p))
	}

	for _, p := range normalized {
		for _, proc := range a.registry.ForPath(p) {
			if err := proc.Cleanup(ctx, p); err != nil {
				logger.Warn("processor cleanup failed", "path", p, "processor", proc.Name(), "error", err)
			}
		}
	}

	for batch := range slices.Chunk(normalized, storeBatchSize) {
		if err := a.store.DeleteMeta(ctx, batch); err != nil {
			return err
		}
		if err := a.store.DeleteNodes(ctx, batch); err != nil {
			return err
		}
		for _, p := range batch {
			if err := a.cache.Delete(ctx, cacheKey(p)); err != nil {
				logger.Warn("cache invalidation failed", "path", p, "error", err)
			}
		}
	}
	return nil
}

// Clear deletes every node and metadata entry and invalidates the cache.
func (a *Archive) Clear(ctx context.Context) error {
	if err := a.store.Clear(ctx); err != nil {
		return err
	}
	a.invalidateCache(ctx)
	return nil
}

// Reindex wipes the index and rebuilds it with a full synchronous
// scan-and-save from root, all under a single store transaction so readers
// never observe a half-rebuilt tree.
func (a *Archive) Reindex(ctx context.Context, root string) error {
	err := a.store.WithTx(ctx, func(ctx context.Context, s store.Store) error {
		if err := s.Clear(ctx); err != nil {
			return err
		}
		tx := a.withStore(s)
		tx.invalidateCache(ctx)
		for batch, err := range tx.Scan(ctx, root, ScanOptions{}) {
			if err != nil {
				return err
			}
			if err := tx.SaveAll(ctx, batch); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		// Node entries cached during the failed rebuild are stale now.
		a.invalidateCache(ctx)
		return err
	}
	return nil
}

func (a *Archive) invalidateCache(ctx context.Context) {
	if err := a.cache.DeletePrefix(ctx, cachePrefix); err != nil {
		logger.Warn("cache invalidation failed", "error", err)
	}
}
