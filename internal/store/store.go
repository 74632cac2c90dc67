// Package store persists the browser and global seeds and per-host surface
// read totals in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"github.com/stupside/mirage/internal/notify"
	"github.com/stupside/mirage/internal/seed"
)

// Seed names.
const (
	SeedBrowser = "browser"
	SeedGlobal  = "global"
)

var ErrNotFound = errors.New("store: not found")

// Store wraps the SQLite connection.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path and runs migrations.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to store: %w", err)
	}

	s := &Store{db: db}
	if err := s.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating store: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the tables.
func (s *Store) Migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS seeds (
			name TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS surface_hits (
			host TEXT NOT NULL,
			surface TEXT NOT NULL,
			count INTEGER NOT NULL DEFAULT 0,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (host, surface)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_surface_hits_host ON surface_hits(host)`,
	}
	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nQuery: %s", err, m)
		}
	}
	return nil
}

// Seed returns a stored seed.
func (s *Store) Seed(ctx context.Context, name string) (uint64, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM seeds WHERE name = ?`, name).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("reading seed %q: %w", name, err)
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing seed %q: %w", name, err)
	}
	return v, nil
}

// EnsureSeed returns the stored seed, drawing and storing a new one on first
// use.
func (s *Store) EnsureSeed(ctx context.Context, name string) (uint64, error) {
	v, err := s.Seed(ctx, name)
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return 0, err
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO seeds (name, value) VALUES (?, ?)`,
		name, strconv.FormatUint(seed.Random(), 10),
	); err != nil {
		return 0, fmt.Errorf("storing seed %q: %w", name, err)
	}
	return s.Seed(ctx, name)
}

// ResetSeed replaces a seed with a fresh random value.
func (s *Store) ResetSeed(ctx context.Context, name string) (uint64, error) {
	v := seed.Random()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO seeds (name, value) VALUES (?, ?)
		 ON CONFLICT(name) DO UPDATE SET value = excluded.value, created_at = CURRENT_TIMESTAMP`,
		name, strconv.FormatUint(v, 10),
	); err != nil {
		return 0, fmt.Errorf("resetting seed %q: %w", name, err)
	}
	return v, nil
}

// AddHits adds per-surface read counts for a host.
func (s *Store) AddHits(ctx context.Context, host string, counts map[string]int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for surface, n := range counts {
		if n <= 0 {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO surface_hits (host, surface, count, updated_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT(host, surface) DO UPDATE SET count = count + excluded.count, updated_at = excluded.updated_at`,
			host, surface, n, now,
		); err != nil {
			return fmt.Errorf("adding hits for %s: %w", host, err)
		}
	}
	return tx.Commit()
}

// Hit is one stored total.
type Hit struct {
	Host      string    `yaml:"host" json:"host"`
	Surface   string    `yaml:"surface" json:"surface"`
	Count     int       `yaml:"count" json:"count"`
	UpdatedAt time.Time `yaml:"updated_at" json:"updated_at"`
}

// Hits lists stored totals, for one host or for all when host is empty.
func (s *Store) Hits(ctx context.Context, host string) ([]Hit, error) {
	query := `SELECT host, surface, count, updated_at FROM surface_hits`
	var args []any
	if host != "" {
		query += ` WHERE host = ?`
		args = append(args, host)
	}
	query += ` ORDER BY host, surface`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying hits: %w", err)
	}
	defer rows.Close()

	var out []Hit
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.Host, &h.Surface, &h.Count, &h.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning hit: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// Deliver records the delta of a notification report.
func (s *Store) Deliver(ctx context.Context, r notify.Report) error {
	if r.Host == "" || len(r.Delta) == 0 {
		return nil
	}
	return s.AddHits(ctx, r.Host, r.Delta)
}

var _ notify.Sink = (*Store)(nil)
