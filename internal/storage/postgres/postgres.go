// Package postgres implements the storage contracts over wbf/dbpg.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"time"

	"github.com/lib/pq"
	"github.com/wb-go/wbf/dbpg"

	"github.com/notofine/backend/internal/storage"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Open connects to the master (plus optional read replicas) and applies
// the embedded migrations.
func Open(ctx context.Context, masterDSN string, slaves []string) (*dbpg.DB, error) {
	opts := &dbpg.Options{
		MaxOpenConns:    50,
		MaxIdleConns:    10,
		ConnMaxLifetime: time.Hour,
	}
	db, err := dbpg.New(masterDSN, slaves, opts)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := runMigrations(ctx, db.Master); err != nil {
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return db, nil
}

// runMigrations executes the embedded SQL files in name order, each in
// its own transaction.
func runMigrations(ctx context.Context, db *sql.DB) error {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		raw, err := fs.ReadFile(migrationsFS, "migrations/"+e.Name())
		if err != nil {
			return err
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, string(raw)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %s: %w", e.Name(), err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

// isUniqueViolation reports whether err is a Postgres unique-constraint
// error (code 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pq.Error
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// notFound maps sql.ErrNoRows onto the storage sentinel.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	return err
}
