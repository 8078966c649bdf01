package registry

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/justyntemme/explorer/internal/debug"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// Store persists AppRecords in SQLite and republishes the full table to a
// Registry after every write.
type Store struct {
	conn     *sql.DB
	registry *Registry
}

// OpenStore opens (creating if needed) the database at dbPath.
func OpenStore(dbPath string, reg *Registry) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// One connection keeps :memory: databases alive and serialises writers.
	db.SetMaxOpenConns(1)

	// WAL lets another process (the CLI) write while a browser reads.
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec("PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000;"); err != nil {
		db.Close()
		return nil, err
	}

	query := `
	CREATE TABLE IF NOT EXISTS apps (
		package_id  TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		source_path TEXT NOT NULL,
		updated_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := db.Exec(query); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{conn: db, registry: reg}, nil
}

// List returns all records ordered by package id.
func (s *Store) List(ctx context.Context) ([]AppRecord, error) {
	rows, err := s.conn.QueryContext(ctx, "SELECT package_id, name, source_path FROM apps ORDER BY package_id ASC")
	if err != nil {
		return nil, fmt.Errorf("list apps: %w", err)
	}
	defer rows.Close()

	var apps []AppRecord
	for rows.Next() {
		var a AppRecord
		if err := rows.Scan(&a.PackageID, &a.Name, &a.SourcePath); err != nil {
			return nil, fmt.Errorf("scan app: %w", err)
		}
		apps = append(apps, a)
	}
	return apps, rows.Err()
}

// Put inserts or replaces a record.
func (s *Store) Put(ctx context.Context, app AppRecord) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO apps (package_id, name, source_path, updated_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(package_id) DO UPDATE SET name = excluded.name, source_path = excluded.source_path, updated_at = CURRENT_TIMESTAMP`,
		app.PackageID, app.Name, filepath.Clean(app.SourcePath))
	if err != nil {
		return fmt.Errorf("put app %s: %w", app.PackageID, err)
	}
	debug.Log(debug.STORE, "put %s -> %s", app.PackageID, app.SourcePath)
	return s.Refresh(ctx)
}

// Remove deletes a record; removing an unknown id is not an error.
func (s *Store) Remove(ctx context.Context, packageID string) error {
	if _, err := s.conn.ExecContext(ctx, "DELETE FROM apps WHERE package_id = ?", packageID); err != nil {
		return fmt.Errorf("remove app %s: %w", packageID, err)
	}
	debug.Log(debug.STORE, "removed %s", packageID)
	return s.Refresh(ctx)
}

// Refresh publishes the current table contents.
func (s *Store) Refresh(ctx context.Context) error {
	apps, err := s.List(ctx)
	if err != nil {
		return err
	}
	if s.registry != nil {
		s.registry.Publish(apps)
	}
	return nil
}

// Poll republishes whenever the table content changes, which picks up
// writes made by other processes. It returns when ctx is done.
func (s *Store) Poll(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last, err := s.List(ctx)
	if err != nil {
		debug.Warn(debug.STORE, "poll: %v", err)
	} else if s.registry != nil {
		s.registry.Publish(last)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			apps, err := s.List(ctx)
			if err != nil {
				if ctx.Err() == nil {
					debug.Warn(debug.STORE, "poll: %v", err)
				}
				continue
			}
			if slices.Equal(apps, last) {
				continue
			}
			last = apps
			debug.Log(debug.STORE, "poll: table changed, %d apps", len(apps))
			if s.registry != nil {
				s.registry.Publish(apps)
			}
		}
	}
}

// Close releases the database.
func (s *Store) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
