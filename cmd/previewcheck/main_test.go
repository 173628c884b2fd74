package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const fullPreview = `<!DOCTYPE html><html><head><title>Ana | EXAMPLE</title>
<meta property="og:type" content="profile" />
<meta property="og:url" content="https://profiles.example.com/profile/ana" />
<meta property="og:title" content="Ana | EXAMPLE" />
<meta property="og:description" content="Bio" />
<meta property="og:image" content="https://cdn.example.com/ana.jpg" />
<meta name="twitter:card" content="summary_large_image" />
<meta name="twitter:title" content="Ana | EXAMPLE" />
<meta name="twitter:image" content="https://cdn.example.com/ana.jpg" />
</head><body></body></html>`

func htmlServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("X-Seen-UA", r.UserAgent())
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestRunComplete(t *testing.T) {
	t.Parallel()

	ts := htmlServer(t, fullPreview)
	var stdout, stderr bytes.Buffer
	code := run([]string{"-ua", "twitter", ts.URL}, &stdout, &stderr)

	assert.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), "Twitterbot/1.0")
	assert.Contains(t, stdout.String(), "og:image")
	assert.Empty(t, stderr.String())
}

func TestRunMissingTags(t *testing.T) {
	t.Parallel()

	ts := htmlServer(t, strings.Replace(fullPreview, `<meta property="og:image" content="https://cdn.example.com/ana.jpg" />`, "", 1))
	var stdout, stderr bytes.Buffer
	code := run([]string{ts.URL}, &stdout, &stderr)

	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "missing required tags: og:image")
}

func TestRunUsage(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	assert.Equal(t, 2, run(nil, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "usage: previewcheck")
}
