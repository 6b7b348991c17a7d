package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres stores each collection as one JSONB row.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
	schema string
}

// NewPostgres opens a new connection pool to the database with the desired search_path.
func NewPostgres(ctx context.Context, databaseURL, schema string, logger *slog.Logger) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	if cfg.ConnConfig.RuntimeParams == nil {
		cfg.ConnConfig.RuntimeParams = map[string]string{}
	}
	if schema != "" {
		cfg.ConnConfig.RuntimeParams["search_path"] = schema
	}
	cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	p := &Postgres{
		pool:   pool,
		logger: logger.With("component", "storage_postgres"),
		schema: schema,
	}

	if err := p.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return p, nil
}

// Close releases the connection pool.
func (p *Postgres) Close() error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}

// Ping ensures the database is reachable.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// RunMigrations applies the root-level SQL files of filesystem.
func (p *Postgres) RunMigrations(ctx context.Context, filesystem fs.FS) error {
	return ApplyMigrations(ctx, p.pool, filesystem)
}

func (p *Postgres) Read(ctx context.Context, c Collection, dest any) (bool, error) {
	const q = `SELECT body::text FROM collections WHERE name = $1;`

	var body string
	if err := p.pool.QueryRow(ctx, q, string(c)).Scan(&body); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("read %s: %w", c, err)
	}
	if err := json.Unmarshal([]byte(body), dest); err != nil {
		return false, fmt.Errorf("decode %s: %w", c, err)
	}
	return true, nil
}

func (p *Postgres) WriteAll(ctx context.Context, c Collection, value any) error {
	const q = `
INSERT INTO collections (name, body, updated_at)
VALUES ($1, $2::jsonb, NOW())
ON CONFLICT (name) DO UPDATE SET
    body = EXCLUDED.body,
    updated_at = NOW();
`
	body, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", c, err)
	}
	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, q, string(c), string(body)); err != nil {
			return fmt.Errorf("write %s: %w", c, err)
		}
		return nil
	})
}
