package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Validate checks the configuration for structural problems.
//
// Struct tags cover the always-present sections; the backend sections are
// validated only when their type is selected, since an unused section is
// allowed to stay empty.
func Validate(cfg *Config) error {
	validate := validator.New()

	if err := validate.Struct(cfg); err != nil {
		return err
	}

	switch cfg.Store.Type {
	case "postgres":
		if err := cfg.Store.Postgres.Validate(); err != nil {
			return fmt.Errorf("store.postgres: %w", err)
		}
	case "sqlite":
		if cfg.Store.SQLite.Path == "" {
			return fmt.Errorf("store.sqlite: path is required")
		}
	}

	if cfg.Cache.Type == "badger" && cfg.Cache.Badger.Path == "" {
		return fmt.Errorf("cache.badger: path is required (in-memory badger has no persistence benefit over the memory cache)")
	}

	if cfg.Scanner.Backend == "s3" && cfg.Scanner.S3.Bucket == "" {
		return fmt.Errorf("scanner.s3: bucket is required")
	}

	return nil
}
