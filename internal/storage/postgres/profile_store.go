// Package postgres reads profile records directly from Postgres.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/profile-preview/internal/profile"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*(\.[a-zA-Z_][a-zA-Z0-9_]*)?$`)

// Config controls the Postgres connection pool used for profile lookups.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type rowQuerier interface {
	QueryRow(context.Context, string, ...any) pgx.Row
	Ping(context.Context) error
	Close()
}

// ProfileStore implements profile.Store against a Postgres table.
type ProfileStore struct {
	pool    rowQuerier
	table   string
	queries map[profile.Field]string
}

// NewProfileStore creates a pool-backed ProfileStore using cfg.
func NewProfileStore(ctx context.Context, cfg Config) (*ProfileStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("store.postgres.dsn is required")
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
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := NewProfileStoreWithPool(pool, cfg.Table)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// NewProfileStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewProfileStoreWithPool(pool rowQuerier, table string) (*ProfileStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "perfis"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	s := &ProfileStore{pool: pool, table: table, queries: make(map[profile.Field]string, 2)}
	// The field is never interpolated from input, only picked from this map.
	s.queries[profile.FieldID] = s.selectWhere("id")
	s.queries[profile.FieldSlug] = s.selectWhere("slug")
	return s, nil
}

func (s *ProfileStore) selectWhere(column string) string {
	cols := make([]string, len(profile.Columns))
	copy(cols, profile.Columns)
	cols[0] = "id::text"
	return fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s = $1 LIMIT 1",
		strings.Join(cols, ", "), s.table, column,
	)
}

// FindOne returns the row whose field equals key.Value.
func (s *ProfileStore) FindOne(ctx context.Context, key profile.Key) (profile.Record, error) {
	query, ok := s.queries[key.Field]
	if !ok {
		return profile.Record{}, fmt.Errorf("unsupported lookup field %q", key.Field)
	}

	var (
		rec    profile.Record
		status *string
	)
	err := s.pool.QueryRow(ctx, query, key.Value).Scan(
		&rec.ID,
		&rec.Slug,
		&rec.DisplayName,
		&rec.Bio,
		&rec.Photos,
		&rec.PhotoURL,
		&status,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return profile.Record{}, profile.ErrNotFound
		}
		return profile.Record{}, fmt.Errorf("query %s by %s: %w", s.table, key.Field, err)
	}
	if status != nil {
		rec.Status = profile.ParseStatus(*status)
	}
	return rec, nil
}

// Ping checks the pool can reach the database.
func (s *ProfileStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *ProfileStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}
