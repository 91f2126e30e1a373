// Package postgres implements the facets store on PostgreSQL via pgx.
//
// Node upserts are keyed on the unique path column (ON CONFLICT path), which
// makes concurrent creation of the same ancestor idempotent: a lost
// read-then-create race degrades to a bitwise OR of the two writers' masks.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/marmos91/facetfs/internal/logger"
	"github.com/marmos91/facetfs/pkg/facet/store"
)

// querier is the subset of pgx shared by a pool and an open transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore implements store.Store on a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
	q    querier // the pool, or an open transaction inside WithTx
}

// NewPostgresStore connects to PostgreSQL and optionally applies pending
// migrations when cfg.AutoMigrate is set.
func NewPostgresStore(ctx context.Context, cfg *Config) (*PostgresStore, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid postgres configuration: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	poolCfg.HealthCheckPeriod = cfg.HealthCheckPeriod

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if cfg.AutoMigrate {
		if err := runMigrations(ctx, cfg.ConnectionString()); err != nil {
			pool.Close()
			return nil, err
		}
	}

	logger.Info("connected to postgres store",
		"host", cfg.Host,
		"database", cfg.Database,
		"max_conns", cfg.MaxConns)
	return &PostgresStore{pool: pool, q: pool}, nil
}

const nodeColumns = "id, parent_id, path, type, content_types"

func scanNode(row pgx.Row) (store.Node, error) {
	var (
		node store.Node
		typ  int16
		mask int64
	)
	if err := row.Scan(&node.ID, &node.ParentID, &node.Path, &typ, &mask); err != nil {
		return store.Node{}, err
	}
	node.Type = store.NodeType(typ)
	node.ContentTypes = uint64(mask)
	return node, nil
}

// GetNodes returns the fs rows for paths, parents first.
func (s *PostgresStore) GetNodes(ctx context.Context, paths []string) ([]store.Node, error) {
	rows, err := s.q.Query(ctx, `
		SELECT `+nodeColumns+`
		FROM fs
		WHERE path = ANY($1)
		ORDER BY length(path), path
	`, paths)
	if err != nil {
		return nil, &store.StoreError{Op: "get nodes", Err: err}
	}
	defer rows.Close()

	var nodes []store.Node
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, &store.StoreError{Op: "get nodes", Err: err}
		}
		nodes = append(nodes, node)
	}
	if err := rows.Err(); err != nil {
		return nil, &store.StoreError{Op: "get nodes", Err: err}
	}
	return nodes, nil
}

// GetNode returns the fs row at path or store.ErrNotFound.
func (s *PostgresStore) GetNode(ctx context.Context, path string) (store.Node, error) {
	node, err := scanNode(s.q.QueryRow(ctx, `
		SELECT `+nodeColumns+`
		FROM fs
		WHERE path = $1
	`, path))
	if errors.Is(err, pgx.ErrNoRows) {
		return store.Node{}, &store.StoreError{Op: "get node", Path: path, Err: store.ErrNotFound}
	}
	if err != nil {
		return store.Node{}, &store.StoreError{Op: "get node", Path: path, Err: err}
	}
	return node, nil
}

// UpsertNode inserts the node keyed on its unique path. When a concurrent
// writer got there first the masks are merged instead; parent_id and type of
// the existing row win, since both writers resolved the same chain.
func (s *PostgresStore) UpsertNode(ctx context.Context, node store.Node) (store.Node, error) {
	stored, err := scanNode(s.q.QueryRow(ctx, `
		INSERT INTO fs (parent_id, path, type, content_types)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (path) DO UPDATE
		SET content_types = fs.content_types | EXCLUDED.content_types
		RETURNING `+nodeColumns,
		node.ParentID, node.Path, int16(node.Type), int64(node.ContentTypes)))
	if err != nil {
		return store.Node{}, &store.StoreError{Op: "upsert node", Path: node.Path, Err: err}
	}
	return stored, nil
}

// MergeContentTypes widens the node's bitmask in place.
func (s *PostgresStore) MergeContentTypes(ctx context.Context, path string, mask uint64) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE fs
		SET content_types = content_types | $2
		WHERE path = $1
	`, path, int64(mask))
	if err != nil {
		return &store.StoreError{Op: "merge content types", Path: path, Err: err}
	}
	if tag.RowsAffected() == 0 {
		return &store.StoreError{Op: "merge content types", Path: path, Err: store.ErrNotFound}
	}
	return nil
}

func (s *PostgresStore) queryRows(ctx context.Context, op, query string, args ...any) ([]store.Row, error) {
	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, &store.StoreError{Op: op, Err: err}
	}
	defer rows.Close()

	var out []store.Row
	for rows.Next() {
		var (
			r    store.Row
			typ  int16
			mask int64
		)
		if err := rows.Scan(&r.ID, &r.ParentID, &r.Path, &typ, &mask, &r.Language, &r.Key, &r.Value); err != nil {
			return nil, &store.StoreError{Op: op, Err: err}
		}
		r.Type = store.NodeType(typ)
		r.ContentTypes = uint64(mask)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, &store.StoreError{Op: op, Err: err}
	}
	return out, nil
}

const joinedColumns = `
	f.id, f.parent_id, f.path, f.type, f.content_types,
	m.language, m.key, m.value`

// GetMeta returns the joined fs/meta rows for paths, ordered by path.
func (s *PostgresStore) GetMeta(ctx context.Context, paths []string, mask uint64) ([]store.Row, error) {
	return s.queryRows(ctx, "get meta", `
		SELECT `+joinedColumns+`
		FROM fs f
		LEFT JOIN meta m ON m.fs_id = f.id
		WHERE f.path = ANY($1)
		  AND ($2::bigint = 0 OR f.content_types & $2 = $2)
		ORDER BY f.path, m.language, m.key
	`, paths, int64(mask))
}

// GetChildren returns the joined rows for the direct children of path.
func (s *PostgresStore) GetChildren(ctx context.Context, path string, mask uint64) ([]store.Row, error) {
	return s.queryRows(ctx, "get children", `
		SELECT `+joinedColumns+`
		FROM fs f
		LEFT JOIN meta m ON m.fs_id = f.id
		WHERE f.parent_id = (SELECT id FROM fs WHERE path = $1)
		  AND f.path <> $1
		  AND ($2::bigint = 0 OR f.content_types & $2 = $2)
		ORDER BY f.path, m.language, m.key
	`, path, int64(mask))
}

// Search returns the joined rows for nodes with at least one meta entry
// whose key is among keys and whose value contains terms, case-insensitively.
func (s *PostgresStore) Search(ctx context.Context, terms string, keys []string, language string, mask uint64) ([]store.Row, error) {
	return s.queryRows(ctx, "search", `
		SELECT `+joinedColumns+`
		FROM fs f
		LEFT JOIN meta m ON m.fs_id = f.id
		WHERE f.id IN (
			SELECT w.fs_id
			FROM meta w
			WHERE w.key = ANY($2)
			  AND w.value ILIKE '%' || $1 || '%'
			  AND ($3 = '' OR w.language = $3)
		)
		  AND ($4::bigint = 0 OR f.content_types & $4 = $4)
		ORDER BY f.path, m.language, m.key
	`, terms, keys, language, int64(mask))
}

// UpsertMeta writes entries for fsID, replacing existing (language, key)
// pairs in one batch round-trip.
func (s *PostgresStore) UpsertMeta(ctx context.Context, fsID int64, entries []store.MetaEntry) error {
	if len(entries) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, entry := range entries {
		batch.Queue(`
			INSERT INTO meta (fs_id, language, key, value)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (fs_id, language, key) DO UPDATE
			SET value = EXCLUDED.value
		`, fsID, entry.Language, entry.Key, entry.Value)
	}

	var results pgx.BatchResults
	switch q := s.q.(type) {
	case *pgxpool.Pool:
		results = q.SendBatch(ctx, batch)
	case pgx.Tx:
		results = q.SendBatch(ctx, batch)
	default:
		// Fall back to sequential execution for unknown queriers.
		for _, entry := range entries {
			if _, err := s.q.Exec(ctx, `
				INSERT INTO meta (fs_id, language, key, value)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (fs_id, language, key) DO UPDATE
				SET value = EXCLUDED.value
			`, fsID, entry.Language, entry.Key, entry.Value); err != nil {
				return &store.StoreError{Op: "upsert meta", Err: err}
			}
		}
		return nil
	}
	defer results.Close()

	for range entries {
		if _, err := results.Exec(); err != nil {
			return &store.StoreError{Op: "upsert meta", Err: err}
		}
	}
	return nil
}

// DeleteMeta removes the meta entries owned by the nodes at paths.
func (s *PostgresStore) DeleteMeta(ctx context.Context, paths []string) error {
	if _, err := s.q.Exec(ctx, `
		DELETE FROM meta
		WHERE fs_id IN (SELECT id FROM fs WHERE path = ANY($1))
	`, paths); err != nil {
		return &store.StoreError{Op: "delete meta", Err: err}
	}
	return nil
}

// DeleteNodes removes the fs rows at paths. No cascade over children.
func (s *PostgresStore) DeleteNodes(ctx context.Context, paths []string) error {
	if _, err := s.q.Exec(ctx, `
		DELETE FROM fs
		WHERE path = ANY($1)
	`, paths); err != nil {
		return &store.StoreError{Op: "delete nodes", Err: err}
	}
	return nil
}

// Clear deletes every meta entry and fs row.
func (s *PostgresStore) Clear(ctx context.Context) error {
	if _, err := s.q.Exec(ctx, `TRUNCATE meta, fs RESTART IDENTITY`); err != nil {
		return &store.StoreError{Op: "clear", Err: err}
	}
	return nil
}

// WithTx runs fn against a transactional view of the store.
func (s *PostgresStore) WithTx(ctx context.Context, fn func(ctx context.Context, st store.Store) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return &store.StoreError{Op: "begin", Err: err}
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &PostgresStore{pool: s.pool, q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return &store.StoreError{Op: "commit", Err: err}
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
