// Package postgres provides a Postgres-backed session store.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/codeecho/codeecho/internal/analysis"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for session rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// Store persists finished sessions in Postgres.
type Store struct {
	pool  pool
	table string
}

// New creates a Postgres-backed Store using the provided config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "sessions"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: p, table: table}, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(p pool, table string) (*Store, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "sessions"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Store{pool: p, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Create inserts a finished session row.
func (s *Store) Create(ctx context.Context, session analysis.Session) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("session store is not configured")
	}
	if session.ID == "" {
		return fmt.Errorf("session id is required")
	}
	recordJSON, err := json.Marshal(session.Record)
	if err != nil {
		return fmt.Errorf("marshal analysis record: %w", err)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	url,
	record,
	text_doc,
	json_doc,
	created_at
) VALUES ($1, $2, $3, $4, $5, $6)`, s.table)

	if _, err := s.pool.Exec(ctx, query,
		session.ID,
		session.Record.URL,
		recordJSON,
		session.TextDoc,
		session.JSONDoc,
		session.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// Get fetches a session by ID.
func (s *Store) Get(ctx context.Context, id string) (analysis.Session, error) {
	if s == nil || s.pool == nil {
		return analysis.Session{}, fmt.Errorf("session store is not configured")
	}
	query := fmt.Sprintf(`
SELECT id, record, text_doc, json_doc, created_at
FROM %s
WHERE id = $1`, s.table)

	var (
		session    analysis.Session
		recordJSON []byte
	)
	row := s.pool.QueryRow(ctx, query, id)
	if err := row.Scan(&session.ID, &recordJSON, &session.TextDoc, &session.JSONDoc, &session.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return analysis.Session{}, analysis.ErrSessionNotFound
		}
		return analysis.Session{}, fmt.Errorf("select session: %w", err)
	}
	if err := json.Unmarshal(recordJSON, &session.Record); err != nil {
		return analysis.Session{}, fmt.Errorf("unmarshal analysis record: %w", err)
	}
	return session, nil
}
