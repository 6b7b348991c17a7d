package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLite stores each collection as one TEXT row in a local database file.
type SQLite struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLite opens a new connection to the SQLite database.
func NewSQLite(ctx context.Context, databasePath string, logger *slog.Logger) (*SQLite, error) {
	path := strings.TrimSpace(databasePath)
	if path == "" {
		return nil, fmt.Errorf("sqlite database path is empty")
	}
	dsn := path
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	dsn = fmt.Sprintf("%s%s_pragma=busy_timeout=10000&_pragma=journal_mode=WAL", dsn, sep)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLite{
		db:     db,
		logger: logger.With("component", "storage_sqlite"),
	}, nil
}

// Close releases the database connection.
func (s *SQLite) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping ensures the database is reachable.
func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// RunMigrations applies the files under sqlite/ in order.
func (s *SQLite) RunMigrations(ctx context.Context, filesystem fs.FS) error {
	files, err := migrationFiles(filesystem, "sqlite")
	if err != nil {
		return err
	}
	for _, name := range files {
		content, err := fs.ReadFile(filesystem, name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		s.logger.Debug("migration applied", "file", name)
	}
	return nil
}

func (s *SQLite) Read(ctx context.Context, c Collection, dest any) (bool, error) {
	const q = `SELECT body FROM collections WHERE name = ? LIMIT 1;`

	var body string
	if err := s.db.QueryRowContext(ctx, q, string(c)).Scan(&body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("read %s: %w", c, err)
	}
	if err := json.Unmarshal([]byte(body), dest); err != nil {
		return false, fmt.Errorf("decode %s: %w", c, err)
	}
	return true, nil
}

func (s *SQLite) WriteAll(ctx context.Context, c Collection, value any) error {
	const q = `
INSERT INTO collections (name, body, updated_at)
VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT (name) DO UPDATE SET
    body = excluded.body,
    updated_at = CURRENT_TIMESTAMP;
`
	body, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", c, err)
	}
	if _, err := s.db.ExecContext(ctx, q, string(c), string(body)); err != nil {
		return fmt.Errorf("write %s: %w", c, err)
	}
	return nil
}
