package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const migrationsTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version    TEXT PRIMARY KEY,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Store holds the upload ledger connection pool.
type Store struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// New connects to PostgreSQL and checks the connection before returning.
func New(ctx context.Context, dsn string, logger *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	logger.Info("upload ledger connected")
	return &Store{db: pool, logger: logger}, nil
}

// Migrate applies the pending *.up.sql files of dir in lexical order. Each
// file runs in its own transaction together with its schema_migrations row,
// so a failed file leaves nothing behind and is retried on the next start.
func (s *Store) Migrate(ctx context.Context, dir string) error {
	pending, err := pendingMigrations(dir)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(ctx, migrationsTable); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	applied, err := s.AppliedMigrations(ctx)
	if err != nil {
		return err
	}

	for _, version := range pending {
		if slices.Contains(applied, version) {
			continue
		}
		sql, err := os.ReadFile(filepath.Join(dir, version+".up.sql"))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", version, err)
		}
		err = pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, string(sql)); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, version)
			return err
		})
		if err != nil {
			return fmt.Errorf("apply migration %s: %w", version, err)
		}
		s.logger.Info("migration applied", zap.String("version", version))
	}
	return nil
}

// AppliedMigrations lists recorded migration versions, oldest first.
func (s *Store) AppliedMigrations(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT version FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	versions, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan migrations: %w", err)
	}
	return versions, nil
}

func pendingMigrations(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}
	var versions []string
	for _, e := range entries {
		if name, ok := strings.CutSuffix(e.Name(), ".up.sql"); ok && !e.IsDir() {
			versions = append(versions, name)
		}
	}
	slices.Sort(versions)
	return versions, nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.db.Close()
}
