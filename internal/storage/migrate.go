package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	createMigrationsTableSQL = `CREATE TABLE IF NOT EXISTS schema_migrations (
        version    TEXT PRIMARY KEY,
        applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
    );`

	listAppliedSQL    = `SELECT version FROM schema_migrations;`
	insertAppliedSQL  = `INSERT INTO schema_migrations (version) VALUES ($1);`
	migrationFileGlob = "*.sql"
)

// Migrate applies pending *.sql files from dir in lexical order and
// returns the versions it applied.
func (s *Store) Migrate(ctx context.Context, dir string) ([]string, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	files, err := migrationFiles(dir)
	if err != nil {
		return nil, err
	}

	if _, err := pool.Exec(ctx, createMigrationsTableSQL); err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}

	rows, err := pool.Query(ctx, listAppliedSQL)
	if err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	applied := make(map[string]struct{})
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return nil, err
		}
		applied[v] = struct{}{}
	}
	rows.Close()
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	done := make([]string, 0)
	for _, file := range files {
		version := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
		if _, ok := applied[version]; ok {
			continue
		}

		body, err := os.ReadFile(file)
		if err != nil {
			return done, fmt.Errorf("read migration %s: %w", version, err)
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return done, fmt.Errorf("begin migration %s: %w", version, err)
		}
		if _, err := tx.Exec(ctx, string(body)); err != nil {
			_ = tx.Rollback(ctx)
			return done, fmt.Errorf("apply migration %s: %w", version, err)
		}
		if _, err := tx.Exec(ctx, insertAppliedSQL, version); err != nil {
			_ = tx.Rollback(ctx)
			return done, fmt.Errorf("record migration %s: %w", version, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return done, fmt.Errorf("commit migration %s: %w", version, err)
		}
		done = append(done, version)
	}
	return done, nil
}

func migrationFiles(dir string) ([]string, error) {
	if dir == "" {
		return nil, fmt.Errorf("migrations path is empty")
	}
	files, err := filepath.Glob(filepath.Join(dir, migrationFileGlob))
	if err != nil {
		return nil, fmt.Errorf("glob migrations: %w", err)
	}
	if len(files) == 0 {
		if _, statErr := os.Stat(dir); errors.Is(statErr, fs.ErrNotExist) {
			return nil, fmt.Errorf("migrations path %s does not exist", dir)
		}
	}
	sort.Strings(files)
	return files, nil
}
