// Package sqlite provides a SQLite-backed XP store.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/kiliankoe/promptheist/internal/xp"
	"github.com/kiliankoe/promptheist/internal/xp/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store persists player XP in SQLite.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

var _ xp.Store = (*Store)(nil)

// Open opens a SQLite XP store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := migrate(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, now: time.Now}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// UpsertPlayer records a player, refreshing the display name when one is given.
func (s *Store) UpsertPlayer(ctx context.Context, wallet, displayName string) error {
	return s.add(ctx, wallet, 0, displayName)
}

// AddXP credits amount to a player, creating the row if needed.
func (s *Store) AddXP(ctx context.Context, wallet string, amount int, displayName string) error {
	return s.add(ctx, wallet, max(0, amount), displayName)
}

func (s *Store) add(ctx context.Context, wallet string, amount int, displayName string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w, err := xp.NormalizeWallet(wallet)
	if err != nil {
		return err
	}
	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO players (wallet, display_name, total_xp, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(wallet) DO UPDATE SET
		   display_name = CASE WHEN excluded.display_name <> '' THEN excluded.display_name ELSE players.display_name END,
		   total_xp = players.total_xp + excluded.total_xp,
		   updated_at = excluded.updated_at`,
		w, xp.CleanName(displayName), amount, s.now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("upsert player: %w", err)
	}
	return nil
}

// TopPlayers returns the highest XP players.
func (s *Store) TopPlayers(ctx context.Context, limit int) ([]xp.Player, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT wallet, display_name, total_xp, updated_at
		 FROM players
		 ORDER BY total_xp DESC, updated_at DESC
		 LIMIT ?`,
		xp.ClampLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("query players: %w", err)
	}
	defer rows.Close()

	var out []xp.Player
	for rows.Next() {
		var (
			p       xp.Player
			updated int64
		)
		if err := rows.Scan(&p.Wallet, &p.DisplayName, &p.TotalXP, &updated); err != nil {
			return nil, fmt.Errorf("scan player: %w", err)
		}
		p.UpdatedAt = time.UnixMilli(updated).UTC()
		out = append(out, p)
	}
	return out, rows.Err()
}

// migrate applies every embedded *.sql file once, in name order.
func migrate(sqlDB *sql.DB, migrationFS fs.FS) error {
	if _, err := sqlDB.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
    name TEXT PRIMARY KEY,
    applied_at INTEGER NOT NULL
)`); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}
	entries, err := fs.ReadDir(migrationFS, ".")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, file := range files {
		var n int
		if err := sqlDB.QueryRow(`SELECT COUNT(1) FROM schema_migrations WHERE name = ?`, file).Scan(&n); err != nil {
			return fmt.Errorf("check migration %s: %w", file, err)
		}
		if n > 0 {
			continue
		}
		content, err := fs.ReadFile(migrationFS, file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		tx, err := sqlDB.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", file, err)
		}
		if _, err := tx.Exec(upSection(string(content))); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", file, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations (name, applied_at) VALUES (?, ?)`, file, time.Now().UTC().UnixMilli()); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", file, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", file, err)
		}
	}
	return nil
}

func upSection(content string) string {
	const up, down = "-- +migrate Up", "-- +migrate Down"
	start := strings.Index(content, up)
	if start < 0 {
		return content
	}
	content = content[start+len(up):]
	if end := strings.Index(content, down); end >= 0 {
		content = content[:end]
	}
	return content
}
