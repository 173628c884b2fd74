// Package sqlite serves profile records from a local SQLite file that mirrors
// the production profile table. It backs local development and demos.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/JakeFAU/profile-preview/internal/profile"
)

// ProfileStore implements profile.Store over database/sql.
type ProfileStore struct {
	conn *sql.DB
}

// New opens (creating if needed) the database at dbPath and ensures the
// profile table exists. ":memory:" gives a throwaway database.
func New(dbPath string) (*ProfileStore, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared across queries.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	s := &ProfileStore{conn: conn}
	if err := s.migrate(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}
	return s, nil
}

func (s *ProfileStore) migrate() error {
	_, err := s.conn.Exec(`
		CREATE TABLE IF NOT EXISTS perfis (
			id       TEXT PRIMARY KEY COLLATE NOCASE,
			slug     TEXT UNIQUE,
			nome     TEXT,
			bio      TEXT,
			fotos    TEXT,
			foto_url TEXT,
			status   TEXT
		);
	`)
	if err != nil {
		return fmt.Errorf("creating perfis table: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *ProfileStore) Close() error {
	return s.conn.Close()
}

// Ping checks the database is reachable.
func (s *ProfileStore) Ping(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}

// Upsert writes rec, replacing any row with the same id. Photos are stored as
// a JSON array.
func (s *ProfileStore) Upsert(ctx context.Context, rec profile.Record) error {
	var photos any
	if rec.Photos != nil {
		raw, err := json.Marshal(rec.Photos)
		if err != nil {
			return fmt.Errorf("sqlite: encoding photos: %w", err)
		}
		photos = string(raw)
	}
	var status any
	if rec.Status != "" {
		status = string(rec.Status)
	}
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO perfis (id, slug, nome, bio, fotos, foto_url, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			slug = excluded.slug,
			nome = excluded.nome,
			bio = excluded.bio,
			fotos = excluded.fotos,
			foto_url = excluded.foto_url,
			status = excluded.status`,
		rec.ID, rec.Slug, rec.DisplayName, rec.Bio, photos, rec.PhotoURL, status,
	)
	if err != nil {
		return fmt.Errorf("sqlite: upserting profile %s: %w", rec.ID, err)
	}
	return nil
}

// FindOne returns the row whose field equals key.Value.
func (s *ProfileStore) FindOne(ctx context.Context, key profile.Key) (profile.Record, error) {
	var column string
	switch key.Field {
	case profile.FieldID:
		column = "id"
	case profile.FieldSlug:
		column = "slug"
	default:
		return profile.Record{}, fmt.Errorf("sqlite: unsupported lookup field %q", key.Field)
	}

	var (
		rec                                 profile.Record
		slug, name, bio, photos, url, state sql.NullString
	)
	err := s.conn.QueryRowContext(ctx,
		`SELECT id, slug, nome, bio, fotos, foto_url, status
		 FROM perfis
		 WHERE `+column+` = ?
		 LIMIT 1`,
		key.Value,
	).Scan(&rec.ID, &slug, &name, &bio, &photos, &url, &state)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return profile.Record{}, profile.ErrNotFound
		}
		return profile.Record{}, fmt.Errorf("sqlite: getting profile by %s: %w", key.Field, err)
	}

	rec.Slug = nullable(slug)
	rec.DisplayName = nullable(name)
	rec.Bio = nullable(bio)
	rec.PhotoURL = nullable(url)
	if state.Valid {
		rec.Status = profile.ParseStatus(state.String)
	}
	if photos.Valid && photos.String != "" {
		if err := json.Unmarshal([]byte(photos.String), &rec.Photos); err != nil {
			return profile.Record{}, fmt.Errorf("sqlite: decoding photos of %s: %w", rec.ID, err)
		}
	}
	return rec, nil
}

func nullable(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}
