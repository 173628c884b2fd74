package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/profile-preview/internal/clock"
	"github.com/JakeFAU/profile-preview/internal/preview"
	"github.com/JakeFAU/profile-preview/internal/profile"
	pubmemory "github.com/JakeFAU/profile-preview/internal/publisher/memory"
	"github.com/JakeFAU/profile-preview/internal/storage/memory"
)

const (
	facebookUA = "facebookexternalhit/1.1 (+http://www.facebook.com/externalhit_uatext.php)"
	browserUA  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
	anaID      = "0b6f1c9e-5a1d-4f7e-9a43-6f8f0f1b2c3d"

	crawlerCache = "s-maxage=3600, stale-while-revalidate=86400"
	humanCache   = "s-maxage=300, stale-while-revalidate=600"
)

type shellString string

func (s shellString) Load(context.Context) ([]byte, error) { return []byte(s), nil }

type hangingStore struct{ release chan struct{} }

func (s *hangingStore) FindOne(context.Context, profile.Key) (profile.Record, error) {
	<-s.release
	return profile.Record{}, nil
}

type failingStore struct{ err error }

func (s failingStore) FindOne(context.Context, profile.Key) (profile.Record, error) {
	return profile.Record{}, s.err
}

func testSite() preview.Site {
	return preview.Site{
		BaseURL:            "https://profiles.example.com",
		Brand:              "EXAMPLE",
		DefaultName:        "Verified professional",
		DefaultDescription: "Verified professional on the largest directory.",
		DefaultImageURL:    "https://profiles.example.com/og-default.jpg",
		Locale:             "pt_BR",
	}
}

func approvedRecord() profile.Record {
	return profile.Record{
		ID:          anaID,
		Slug:        profile.StringPtr("ana-lima"),
		DisplayName: profile.StringPtr("Ana Lima"),
		Bio:         profile.StringPtr("Professional in Sao Paulo."),
		Photos:      []string{"https://x/1.jpg"},
		Status:      profile.StatusApproved,
	}
}

type serverOption func(*Options, *preview.Config)

func newTestServer(t *testing.T, store profile.Store, opts ...serverOption) *Server {
	t.Helper()
	pcfg := preview.Config{
		Site:         testSite(),
		Store:        store,
		Shell:        shellString(`<!doctype html><html lang="pt-BR"><head><title>App</title></head><body><div id="root"></div><script src="/assets/index.js"></script></body></html>`),
		FetchTimeout: time.Second,
	}
	o := Options{
		Cache:          CachePolicy{Crawler: crawlerCache, Human: humanCache},
		AllowedOrigins: []string{"https://profiles.example.com"},
		RequestTimeout: 5 * time.Second,
		Logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o, &pcfg)
	}
	o.Service = preview.NewService(pcfg)
	return NewServer(o)
}

func do(t *testing.T, s *Server, method, target string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestProfilePreview_CrawlerGetsMetaDocument(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, memory.NewProfileStore(approvedRecord()))
	rec := do(t, s, http.MethodGet, "/api/profile/ana-lima", map[string]string{"User-Agent": facebookUA})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, crawlerCache, rec.Header().Get("Cache-Control"))
	assert.Equal(t, "User-Agent", rec.Header().Get("Vary"))
	assert.NotEmpty(t, rec.Header().Get("ETag"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	body := rec.Body.String()
	assert.Contains(t, body, `<meta property="og:image" content="https://x/1.jpg" />`)
	assert.Contains(t, body, `<meta property="og:title" content="Ana Lima | EXAMPLE" />`)
	assert.Contains(t, body, `<meta http-equiv="refresh"`)
	assert.NotContains(t, body, `<div id="root"></div>`)
}

func TestProfilePreview_HumanGetsApplicationShell(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, memory.NewProfileStore(approvedRecord()))
	rec := do(t, s, http.MethodGet, "/api/profile/ana-lima", map[string]string{"User-Agent": browserUA})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, humanCache, rec.Header().Get("Cache-Control"))
	assert.Equal(t, "User-Agent", rec.Header().Get("Vary"))

	body := rec.Body.String()
	assert.Contains(t, body, `<div id="root"></div>`)
	assert.Contains(t, body, `<script src="/assets/index.js"></script>`)
	assert.Contains(t, body, "<title>Ana Lima | EXAMPLE</title>")
	assert.NotContains(t, body, "<title>App</title>")
	assert.NotContains(t, body, `http-equiv="refresh"`)
}

func TestProfilePreview_MissingProfileRendersDefaults(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, memory.NewProfileStore())
	rec := do(t, s, http.MethodGet, "/api/profile/does-not-exist", map[string]string{"User-Agent": facebookUA})

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<title>Verified professional | EXAMPLE</title>")
	assert.Contains(t, body, `<meta property="og:image" content="https://profiles.example.com/og-default.jpg" />`)
	assert.Contains(t, body, `<link rel="canonical" href="https://profiles.example.com/profile/does-not-exist" />`)
}

func TestProfilePreview_UpstreamTimeoutIsGeneric500(t *testing.T) {
	t.Parallel()

	store := &hangingStore{release: make(chan struct{})}
	t.Cleanup(func() { close(store.release) })
	s := newTestServer(t, store, func(_ *Options, c *preview.Config) {
		c.FetchTimeout = 20 * time.Millisecond
	})

	rec := do(t, s, http.MethodGet, "/api/profile/ana-lima", map[string]string{"User-Agent": facebookUA})

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "Internal Server Error", rec.Body.String())
}

func TestProfilePreview_StoreErrorDoesNotLeakDetails(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, failingStore{err: errors.New("pq: password authentication failed for user \"app\"")})
	rec := do(t, s, http.MethodGet, "/api/profile/ana-lima", map[string]string{"User-Agent": browserUA})

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal Server Error", rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestProfilePreview_LongBioIsTruncated(t *testing.T) {
	t.Parallel()

	rec := approvedRecord()
	rec.Bio = profile.StringPtr(strings.Repeat("a", 201))
	s := newTestServer(t, memory.NewProfileStore(rec))

	resp := do(t, s, http.MethodGet, "/api/profile/ana-lima", map[string]string{"User-Agent": facebookUA})

	require.Equal(t, http.StatusOK, resp.Code)
	want := `<meta name="description" content="` + strings.Repeat("a", 200) + `..." />`
	assert.Contains(t, resp.Body.String(), want)
}

func TestProfilePreview_InvalidIdentifiers(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, memory.NewProfileStore())
	for _, target := range []string{
		"/api/profile",
		"/api/profile/",
		"/og/profile/",
		"/api/profile/%20%20",
		"/api/profile/a%2Fb",
	} {
		rec := do(t, s, http.MethodGet, target, map[string]string{"User-Agent": facebookUA})
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.Equal(t, "Invalid profile identifier", rec.Body.String(), target)
		assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"), target)
	}
}

func TestProfilePreview_ByIDAndAlias(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, memory.NewProfileStore(approvedRecord()))

	byID := do(t, s, http.MethodGet, "/api/profile/"+anaID, map[string]string{"User-Agent": "Twitterbot/1.0"})
	require.Equal(t, http.StatusOK, byID.Code)
	assert.Contains(t, byID.Body.String(), `<meta name="twitter:title" content="Ana Lima | EXAMPLE" />`)

	alias := do(t, s, http.MethodGet, "/og/profile/ana-lima", map[string]string{"User-Agent": "Twitterbot/1.0"})
	require.Equal(t, http.StatusOK, alias.Code)
	assert.Equal(t, byID.Body.String(), alias.Body.String())
}

func TestProfilePreview_ConditionalRequest(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, memory.NewProfileStore(approvedRecord()))
	first := do(t, s, http.MethodGet, "/api/profile/ana-lima", map[string]string{"User-Agent": facebookUA})
	require.Equal(t, http.StatusOK, first.Code)
	etag := first.Header().Get("ETag")

	second := do(t, s, http.MethodGet, "/api/profile/ana-lima", map[string]string{
		"User-Agent":    facebookUA,
		"If-None-Match": `"stale", ` + etag,
	})
	assert.Equal(t, http.StatusNotModified, second.Code)
	assert.Empty(t, second.Body.String())
	assert.Equal(t, etag, second.Header().Get("ETag"))
	assert.Equal(t, crawlerCache, second.Header().Get("Cache-Control"))

	human := do(t, s, http.MethodGet, "/api/profile/ana-lima", map[string]string{
		"User-Agent":    browserUA,
		"If-None-Match": etag,
	})
	assert.Equal(t, http.StatusOK, human.Code, "human document has its own tag")
}

func TestProfilePreview_HeadRequest(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, memory.NewProfileStore(approvedRecord()))
	rec := do(t, s, http.MethodHead, "/api/profile/ana-lima", map[string]string{"User-Agent": facebookUA})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, crawlerCache, rec.Header().Get("Cache-Control"))
}

func TestProfilePreview_PublishesCrawlerHits(t *testing.T) {
	t.Parallel()

	pub := pubmemory.New()
	s := newTestServer(t, memory.NewProfileStore(approvedRecord()), func(o *Options, _ *preview.Config) {
		o.Publisher = pub
	})

	do(t, s, http.MethodGet, "/api/profile/ana-lima", map[string]string{"User-Agent": browserUA})
	do(t, s, http.MethodGet, "/api/profile/ana-lima", map[string]string{"User-Agent": "Slackbot-LinkExpanding 1.0"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Wait(ctx))

	msgs := pub.Messages()
	require.Len(t, msgs, 1, "only crawler responses are published")
	assert.Equal(t, ServedTopic, msgs[0].Topic)
	ev, ok := msgs[0].Payload.(preview.ServedEvent)
	require.True(t, ok)
	assert.Equal(t, "ana-lima", ev.Identifier)
	assert.Equal(t, "slug", ev.Field)
	assert.Equal(t, "Slackbot", ev.Bot)
	assert.True(t, ev.Found)
	assert.Equal(t, http.StatusOK, ev.Status)
}

type sequenceIDs struct{ n int }

func (g *sequenceIDs) NewID() (string, error) {
	g.n++
	return fmt.Sprintf("event-%d", g.n), nil
}

func TestProfilePreview_EventCarriesClockAndID(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	pub := pubmemory.New()
	s := newTestServer(t, memory.NewProfileStore(), func(o *Options, _ *preview.Config) {
		o.Publisher = pub
		o.Clock = clock.Fixed(at)
		o.IDs = &sequenceIDs{}
	})

	rec := do(t, s, http.MethodGet, "/og/profile/unknown", map[string]string{"User-Agent": facebookUA})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "event-1", rec.Header().Get("X-Request-ID"), "non-UUID generator output is still used for minted IDs")

	select {
	case <-pub.Published():
	case <-time.After(time.Second):
		t.Fatal("event not published")
	}
	ev := pub.Messages()[0].Payload.(preview.ServedEvent)
	assert.Equal(t, "event-2", ev.EventID)
	assert.Equal(t, at, ev.ServedAt)
	assert.False(t, ev.Found)
	assert.Equal(t, "facebookexternalhit", ev.Bot)
}

func TestProfileMeta_JSON(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, memory.NewProfileStore(approvedRecord()))
	rec := do(t, s, http.MethodGet, "/api/profile/ana-lima/meta", map[string]string{
		"Origin": "https://profiles.example.com",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "https://profiles.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, humanCache, rec.Header().Get("Cache-Control"))

	var got metaResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.True(t, got.Found)
	assert.Equal(t, "ana-lima", got.Identifier)
	assert.Equal(t, "Ana Lima | EXAMPLE", got.Meta.Title)
	assert.Equal(t, "https://x/1.jpg", got.Meta.ImageURL)
}

func TestProfileMeta_Preflight(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, memory.NewProfileStore())
	rec := do(t, s, http.MethodOptions, "/api/profile/ana-lima/meta", map[string]string{
		"Origin":                        "https://profiles.example.com",
		"Access-Control-Request-Method": http.MethodGet,
	})

	assert.Less(t, rec.Code, 300)
	assert.Equal(t, "https://profiles.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestProfileMeta_Errors(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, failingStore{err: errors.New("boom")})
	rec := do(t, s, http.MethodGet, "/api/profile/ana-lima/meta", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.NotContains(t, rec.Body.String(), "boom")

	rec = do(t, s, http.MethodGet, "/api/profile/%20/meta", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthAndReadiness(t *testing.T) {
	t.Parallel()

	healthy := newTestServer(t, memory.NewProfileStore())
	assert.Equal(t, http.StatusOK, do(t, healthy, http.MethodGet, "/healthz", nil).Code)
	assert.Equal(t, http.StatusOK, do(t, healthy, http.MethodGet, "/readyz", nil).Code)

	down := newTestServer(t, memory.NewProfileStore(), func(o *Options, _ *preview.Config) {
		o.Ready = func(context.Context) error { return errors.New("db down") }
	})
	assert.Equal(t, http.StatusServiceUnavailable, do(t, down, http.MethodGet, "/readyz", nil).Code)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, memory.NewProfileStore(approvedRecord()))
	do(t, s, http.MethodGet, "/api/profile/ana-lima", map[string]string{"User-Agent": facebookUA})

	rec := do(t, s, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "preview_renders_total")
	assert.Contains(t, rec.Body.String(), "preview_crawler_hits_total")
	assert.Contains(t, rec.Body.String(), `http_requests_total{audience="crawler",code="200",method="GET",route="/api/profile/{identifier}"}`)
}
