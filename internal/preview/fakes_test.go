package preview

import (
	"context"
	"sync"

	"github.com/JakeFAU/profile-preview/internal/profile"
)

// fakeStore serves records keyed by "field:value".
type fakeStore struct {
	mu      sync.Mutex
	records map[string]profile.Record
	err     error
	calls   []profile.Key
}

func newFakeStore(recs ...profile.Record) *fakeStore {
	s := &fakeStore{records: make(map[string]profile.Record)}
	for _, rec := range recs {
		s.records["id:"+rec.ID] = rec
		if slug, ok := rec.SlugValue(); ok {
			s.records["slug:"+slug] = rec
		}
	}
	return s
}

func (s *fakeStore) FindOne(_ context.Context, key profile.Key) (profile.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, key)
	if s.err != nil {
		return profile.Record{}, s.err
	}
	rec, ok := s.records[string(key.Field)+":"+key.Value]
	if !ok {
		return profile.Record{}, profile.ErrNotFound
	}
	return rec, nil
}

func (s *fakeStore) lastCall() profile.Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.calls) == 0 {
		return profile.Key{}
	}
	return s.calls[len(s.calls)-1]
}

// hangingStore never answers until release is closed, ignoring ctx.
type hangingStore struct {
	release chan struct{}
}

func (s *hangingStore) FindOne(_ context.Context, _ profile.Key) (profile.Record, error) {
	<-s.release
	return profile.Record{}, nil
}

// ctxStore blocks until its context ends and reports the context error.
type ctxStore struct{}

func (ctxStore) FindOne(ctx context.Context, _ profile.Key) (profile.Record, error) {
	<-ctx.Done()
	return profile.Record{}, ctx.Err()
}

type staticShell struct {
	html string
	err  error
}

func (s staticShell) Load(context.Context) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []byte(s.html), nil
}

func testSite() Site {
	return Site{
		BaseURL:            "https://profiles.example.com",
		Brand:              "EXAMPLE",
		DefaultName:        "Verified professional",
		DefaultDescription: "Verified professional on the largest directory.",
		DefaultImageURL:    "https://profiles.example.com/og-default.jpg",
		Locale:             "pt_BR",
	}
}

const approvedID = "0b6f1c9e-5a1d-4f7e-9a43-6f8f0f1b2c3d"

func approvedRecord() profile.Record {
	return profile.Record{
		ID:          approvedID,
		Slug:        profile.StringPtr("ana-lima"),
		DisplayName: profile.StringPtr("Ana Lima"),
		Bio:         profile.StringPtr("Professional in Sao Paulo."),
		Photos:      []string{"https://x/1.jpg"},
		Status:      profile.StatusApproved,
	}
}
