// Package sqlite implements the facets store on SQLite through GORM and the
// pure-Go glebarez driver.
//
// The schema is created with AutoMigrate; bitwise mask operations go through
// raw SQL since GORM has no expression for them.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/marmos91/facetfs/internal/logger"
	"github.com/marmos91/facetfs/pkg/facet/store"
)

// Config holds the configuration for the SQLite store.
type Config struct {
	// Path is the database file path; ":memory:" opens an ephemeral
	// in-memory database.
	Path string `mapstructure:"path" validate:"required" yaml:"path"`
}

// ApplyDefaults sets default values for unspecified fields.
func (c *Config) ApplyDefaults() {
	if c.Path == "" {
		configDir := os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			homeDir, _ := os.UserHomeDir()
			configDir = filepath.Join(homeDir, ".config")
		}
		c.Path = filepath.Join(configDir, "facetfs", "facets.db")
	}
}

type fsModel struct {
	ID           int64  `gorm:"column:id;primaryKey;autoIncrement"`
	ParentID     int64  `gorm:"column:parent_id;not null;default:0"`
	Path         string `gorm:"column:path;uniqueIndex;not null"`
	Type         int16  `gorm:"column:type;not null;default:0"`
	ContentTypes int64  `gorm:"column:content_types;not null;default:0"`
}

func (fsModel) TableName() string { return "fs" }

type metaModel struct {
	FsID     int64  `gorm:"column:fs_id;primaryKey;autoIncrement:false"`
	Language string `gorm:"column:language;primaryKey;default:''"`
	Key      string `gorm:"column:key;primaryKey"`
	Value    string `gorm:"column:value;not null"`
}

func (metaModel) TableName() string { return "meta" }

func (m fsModel) node() store.Node {
	return store.Node{
		ID:           m.ID,
		ParentID:     m.ParentID,
		Path:         m.Path,
		Type:         store.NodeType(m.Type),
		ContentTypes: uint64(m.ContentTypes),
	}
}

// SQLiteStore implements store.Store on a GORM-managed SQLite database.
type SQLiteStore struct {
	db *gorm.DB
}

// NewSQLiteStore opens (or creates) the database at cfg.Path and migrates
// the schema.
func NewSQLiteStore(cfg *Config) (*SQLiteStore, error) {
	cfg.ApplyDefaults()

	dsn := cfg.Path
	if dsn != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		// WAL keeps concurrent readers out of the single writer's way.
		dsn += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if err := db.AutoMigrate(&fsModel{}, &metaModel{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	logger.Info("opened sqlite store", "path", cfg.Path)
	return &SQLiteStore{db: db}, nil
}

// GetNodes returns the fs rows for paths, parents first.
func (s *SQLiteStore) GetNodes(ctx context.Context, paths []string) ([]store.Node, error) {
	var models []fsModel
	err := s.db.WithContext(ctx).
		Where("path IN ?", paths).
		Order("length(path), path").
		Find(&models).Error
	if err != nil {
		return nil, &store.StoreError{Op: "get nodes", Err: err}
	}

	nodes := make([]store.Node, 0, len(models))
	for _, m := range models {
		nodes = append(nodes, m.node())
	}
	return nodes, nil
}

// GetNode returns the fs row at path or store.ErrNotFound.
func (s *SQLiteStore) GetNode(ctx context.Context, path string) (store.Node, error) {
	var m fsModel
	err := s.db.WithContext(ctx).Where("path = ?", path).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.Node{}, &store.StoreError{Op: "get node", Path: path, Err: store.ErrNotFound}
	}
	if err != nil {
		return store.Node{}, &store.StoreError{Op: "get node", Path: path, Err: err}
	}
	return m.node(), nil
}

// UpsertNode inserts the node keyed on its unique path; a conflicting row
// keeps its identity and merges the masks.
func (s *SQLiteStore) UpsertNode(ctx context.Context, node store.Node) (store.Node, error) {
	err := s.db.WithContext(ctx).Exec(`
		INSERT INTO fs (parent_id, path, type, content_types)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (path) DO UPDATE
		SET content_types = fs.content_types | excluded.content_types
	`, node.ParentID, node.Path, int16(node.Type), int64(node.ContentTypes)).Error
	if err != nil {
		return store.Node{}, &store.StoreError{Op: "upsert node", Path: node.Path, Err: err}
	}
	return s.GetNode(ctx, node.Path)
}

// MergeContentTypes widens the node's bitmask in place.
func (s *SQLiteStore) MergeContentTypes(ctx context.Context, path string, mask uint64) error {
	result := s.db.WithContext(ctx).Exec(`
		UPDATE fs
		SET content_types = content_types | ?
		WHERE path = ?
	`, int64(mask), path)
	if result.Error != nil {
		return &store.StoreError{Op: "merge content types", Path: path, Err: result.Error}
	}
	if result.RowsAffected == 0 {
		return &store.StoreError{Op: "merge content types", Path: path, Err: store.ErrNotFound}
	}
	return nil
}

type joinedRow struct {
	ID           int64
	ParentID     int64
	Path         string
	Type         int16
	ContentTypes int64
	Language     *string
	Key          *string
	Value        *string
}

func (r joinedRow) row() store.Row {
	return store.Row{
		Node: store.Node{
			ID:           r.ID,
			ParentID:     r.ParentID,
			Path:         r.Path,
			Type:         store.NodeType(r.Type),
			ContentTypes: uint64(r.ContentTypes),
		},
		Language: r.Language,
		Key:      r.Key,
		Value:    r.Value,
	}
}

func (s *SQLiteStore) queryRows(ctx context.Context, op, query string, args ...any) ([]store.Row, error) {
	var joined []joinedRow
	if err := s.db.WithContext(ctx).Raw(query, args...).Scan(&joined).Error; err != nil {
		return nil, &store.StoreError{Op: op, Err: err}
	}

	rows := make([]store.Row, 0, len(joined))
	for _, r := range joined {
		rows = append(rows, r.row())
	}
	return rows, nil
}

const joinedColumns = `
	f.id, f.parent_id, f.path, f.type, f.content_types,
	m.language, m.key, m.value`

// GetMeta returns the joined fs/meta rows for paths, ordered by path.
func (s *SQLiteStore) GetMeta(ctx context.Context, paths []string, mask uint64) ([]store.Row, error) {
	m := int64(mask)
	return s.queryRows(ctx, "get meta", `
		SELECT `+joinedColumns+`
		FROM fs f
		LEFT JOIN meta m ON m.fs_id = f.id
		WHERE f.path IN ?
		  AND (? = 0 OR (f.content_types & ?) = ?)
		ORDER BY f.path, m.language, m.key
	`, paths, m, m, m)
}

// GetChildren returns the joined rows for the direct children of path.
func (s *SQLiteStore) GetChildren(ctx context.Context, path string, mask uint64) ([]store.Row, error) {
	m := int64(mask)
	return s.queryRows(ctx, "get children", `
		SELECT `+joinedColumns+`
		FROM fs f
		LEFT JOIN meta m ON m.fs_id = f.id
		WHERE f.parent_id = (SELECT id FROM fs WHERE path = ?)
		  AND f.path <> ?
		  AND (? = 0 OR (f.content_types & ?) = ?)
		ORDER BY f.path, m.language, m.key
	`, path, path, m, m, m)
}

// Search returns the joined rows for nodes with at least one meta entry
// whose key is among keys and whose value contains terms, case-insensitively.
func (s *SQLiteStore) Search(ctx context.Context, terms string, keys []string, language string, mask uint64) ([]store.Row, error) {
	m := int64(mask)
	needle := "%" + strings.ToLower(terms) + "%"
	return s.queryRows(ctx, "search", `
		SELECT `+joinedColumns+`
		FROM fs f
		LEFT JOIN meta m ON m.fs_id = f.id
		WHERE f.id IN (
			SELECT w.fs_id
			FROM meta w
			WHERE w.key IN ?
			  AND lower(w.value) LIKE ?
			  AND (? = '' OR w.language = ?)
		)
		  AND (? = 0 OR (f.content_types & ?) = ?)
		ORDER BY f.path, m.language, m.key
	`, keys, needle, language, language, m, m, m)
}

// UpsertMeta writes entries for fsID, replacing existing (language, key)
// pairs.
func (s *SQLiteStore) UpsertMeta(ctx context.Context, fsID int64, entries []store.MetaEntry) error {
	if len(entries) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, entry := range entries {
			err := tx.Exec(`
				INSERT INTO meta (fs_id, language, key, value)
				VALUES (?, ?, ?, ?)
				ON CONFLICT (fs_id, language, key) DO UPDATE
				SET value = excluded.value
			`, fsID, entry.Language, entry.Key, entry.Value).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return &store.StoreError{Op: "upsert meta", Err: err}
	}
	return nil
}

// DeleteMeta removes the meta entries owned by the nodes at paths.
func (s *SQLiteStore) DeleteMeta(ctx context.Context, paths []string) error {
	err := s.db.WithContext(ctx).Exec(`
		DELETE FROM meta
		WHERE fs_id IN (SELECT id FROM fs WHERE path IN ?)
	`, paths).Error
	if err != nil {
		return &store.StoreError{Op: "delete meta", Err: err}
	}
	return nil
}

// DeleteNodes removes the fs rows at paths. No cascade over children.
func (s *SQLiteStore) DeleteNodes(ctx context.Context, paths []string) error {
	err := s.db.WithContext(ctx).Exec(`DELETE FROM fs WHERE path IN ?`, paths).Error
	if err != nil {
		return &store.StoreError{Op: "delete nodes", Err: err}
	}
	return nil
}

// Clear deletes every meta entry and fs row.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(`DELETE FROM meta`).Error; err != nil {
			return err
		}
		return tx.Exec(`DELETE FROM fs`).Error
	})
	if err != nil {
		return &store.StoreError{Op: "clear", Err: err}
	}
	return nil
}

// WithTx runs fn against a transactional view of the store.
func (s *SQLiteStore) WithTx(ctx context.Context, fn func(ctx context.Context, st store.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, &SQLiteStore{db: tx})
	})
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
