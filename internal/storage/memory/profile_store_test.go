package memory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/profile-preview/internal/profile"
)

const anaID = "0b6f1c9e-5a1d-4f7e-9a43-6f8f0f1b2c3d"

func TestProfileStoreFindOne(t *testing.T) {
	t.Parallel()

	s := NewProfileStore(profile.Record{ID: anaID, Slug: profile.StringPtr("ana-lima")})
	ctx := context.Background()

	rec, err := s.FindOne(ctx, profile.Key{Field: profile.FieldSlug, Value: "ana-lima"})
	require.NoError(t, err)
	assert.Equal(t, anaID, rec.ID)

	rec, err = s.FindOne(ctx, profile.Key{Field: profile.FieldID, Value: "0B6F1C9E-5A1D-4F7E-9A43-6F8F0F1B2C3D"})
	require.NoError(t, err)
	assert.Equal(t, anaID, rec.ID)

	_, err = s.FindOne(ctx, profile.Key{Field: profile.FieldSlug, Value: "missing"})
	assert.ErrorIs(t, err, profile.ErrNotFound)

	_, err = s.FindOne(ctx, profile.Key{Field: profile.FieldID, Value: "missing"})
	assert.ErrorIs(t, err, profile.ErrNotFound)

	_, err = s.FindOne(ctx, profile.Key{Field: "bio", Value: "x"})
	assert.Error(t, err)
}

func TestProfileStorePutReplacesSlug(t *testing.T) {
	t.Parallel()

	s := NewProfileStore(profile.Record{ID: anaID, Slug: profile.StringPtr("old")})
	s.Put(profile.Record{ID: anaID, Slug: profile.StringPtr("new")})

	_, err := s.FindOne(context.Background(), profile.Key{Field: profile.FieldSlug, Value: "old"})
	assert.ErrorIs(t, err, profile.ErrNotFound)
	_, err = s.FindOne(context.Background(), profile.Key{Field: profile.FieldSlug, Value: "new"})
	assert.NoError(t, err)
	assert.Equal(t, 1, s.Len())
}

func TestProfileStoreCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewProfileStore().FindOne(ctx, profile.Key{Field: profile.FieldID, Value: anaID})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadSeed(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "profiles.json")
	seed := `[
  {"id": "` + anaID + `", "slug": "ana-lima", "nome": "Ana Lima", "bio": "Hi", "fotos": ["https://x/1.jpg"], "status": "Approved"},
  {"id": "9c1d0a6e-0000-4000-8000-000000000001", "foto_url": "https://x/legacy.jpg", "status": "paused"}
]`
	require.NoError(t, os.WriteFile(path, []byte(seed), 0o600))

	recs, err := LoadSeed(path)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	name, ok := recs[0].NameValue()
	assert.True(t, ok)
	assert.Equal(t, "Ana Lima", name)
	assert.Equal(t, profile.StatusApproved, recs[0].Status)
	assert.Equal(t, []string{"https://x/1.jpg"}, recs[0].Photos)
	assert.Equal(t, profile.StatusPaused, recs[1].Status)
	_, ok = recs[1].SlugValue()
	assert.False(t, ok)
}

func TestLoadSeedErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, err := LoadSeed(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"id": 1}`), 0o600))
	_, err = LoadSeed(bad)
	assert.Error(t, err)

	noID := filepath.Join(dir, "noid.json")
	require.NoError(t, os.WriteFile(noID, []byte(`[{"slug": "x"}]`), 0o600))
	_, err = LoadSeed(noID)
	assert.Error(t, err)
}
