// Package memory serves profile records from process memory for development
// and tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/JakeFAU/profile-preview/internal/profile"
)

// ProfileStore is an in-memory profile.Store.
type ProfileStore struct {
	mu     sync.RWMutex
	byID   map[string]profile.Record
	bySlug map[string]string // slug -> id
}

// NewProfileStore creates a store holding recs.
func NewProfileStore(recs ...profile.Record) *ProfileStore {
	s := &ProfileStore{
		byID:   make(map[string]profile.Record),
		bySlug: make(map[string]string),
	}
	for _, rec := range recs {
		s.Put(rec)
	}
	return s
}

// Put inserts or replaces rec. Records are keyed by ID; ids compare
// case-insensitively like the uuid column they stand in for.
func (s *ProfileStore) Put(rec profile.Record) {
	id := strings.ToLower(rec.ID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.byID[id]; ok {
		if slug, ok := old.SlugValue(); ok {
			delete(s.bySlug, slug)
		}
	}
	s.byID[id] = rec
	if slug, ok := rec.SlugValue(); ok {
		s.bySlug[slug] = id
	}
}

// FindOne returns the record matching key or profile.ErrNotFound.
func (s *ProfileStore) FindOne(ctx context.Context, key profile.Key) (profile.Record, error) {
	if err := ctx.Err(); err != nil {
		return profile.Record{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var id string
	switch key.Field {
	case profile.FieldID:
		id = strings.ToLower(key.Value)
	case profile.FieldSlug:
		var ok bool
		if id, ok = s.bySlug[key.Value]; !ok {
			return profile.Record{}, profile.ErrNotFound
		}
	default:
		return profile.Record{}, fmt.Errorf("unsupported lookup field %q", key.Field)
	}
	rec, ok := s.byID[id]
	if !ok {
		return profile.Record{}, profile.ErrNotFound
	}
	return rec, nil
}

// Len reports how many records are held.
func (s *ProfileStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// LoadSeed reads a JSON array of profile rows, as exported from the
// profile table, from path.
func LoadSeed(path string) ([]profile.Record, error) {
	// #nosec G304 -- path comes from operator configuration.
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var recs []profile.Record
	if err := json.Unmarshal(raw, &recs); err != nil {
		return nil, fmt.Errorf("decode seed file %s: %w", path, err)
	}
	for i, rec := range recs {
		if strings.TrimSpace(rec.ID) == "" {
			return nil, fmt.Errorf("seed record %d: id is required", i)
		}
		recs[i].Status = profile.ParseStatus(string(rec.Status))
	}
	return recs, nil
}
