// Package postgrest reads profile records through a PostgREST endpoint such
// as the one a hosted Supabase project exposes at /rest/v1.
package postgrest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"go.uber.org/zap"

	"github.com/JakeFAU/profile-preview/internal/profile"
)

const maxBodyBytes = 1 << 20

// Config describes the PostgREST endpoint.
type Config struct {
	// BaseURL is the project URL; "/rest/v1/<table>" is appended.
	BaseURL string
	// APIKey is sent as both the apikey header and a bearer token.
	APIKey string
	Table  string
	// Attempts bounds tries per lookup; values below 1 mean 2.
	Attempts uint
}

// HTTPError reports a non-200 answer from the endpoint.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("postgrest returned %d: %s", e.StatusCode, e.Body)
}

// ProfileStore implements profile.Store over HTTP.
type ProfileStore struct {
	client   *http.Client
	endpoint string
	apiKey   string
	attempts uint
	logger   *zap.Logger
}

// NewProfileStore validates cfg and returns a store. client may be nil.
func NewProfileStore(cfg Config, client *http.Client, logger *zap.Logger) (*ProfileStore, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("store.postgrest.url is required")
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("parse postgrest url: %w", err)
	}
	table := cfg.Table
	if table == "" {
		table = "perfis"
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	attempts := cfg.Attempts
	if attempts < 1 {
		attempts = 2
	}
	return &ProfileStore{
		client:   client,
		endpoint: base + "/rest/v1/" + url.PathEscape(table),
		apiKey:   cfg.APIKey,
		attempts: attempts,
		logger:   logger,
	}, nil
}

// FindOne issues GET <table>?<field>=eq.<value>&select=...&limit=1.
func (s *ProfileStore) FindOne(ctx context.Context, key profile.Key) (profile.Record, error) {
	if key.Field != profile.FieldID && key.Field != profile.FieldSlug {
		return profile.Record{}, fmt.Errorf("unsupported lookup field %q", key.Field)
	}
	q := url.Values{}
	q.Set(string(key.Field), "eq."+key.Value)
	q.Set("select", strings.Join(profile.Columns, ","))
	q.Set("limit", "1")
	target := s.endpoint + "?" + q.Encode()

	rows, err := retry.DoWithData(
		func() ([]profile.Record, error) {
			return s.get(ctx, target)
		},
		retry.Context(ctx),
		retry.Attempts(s.attempts),
		retry.Delay(100*time.Millisecond),
		retry.MaxJitter(50*time.Millisecond),
		retry.RetryIf(isRetryable),
		retry.OnRetry(func(n uint, err error) {
			s.logger.Debug("retrying profile lookup",
				zap.Uint("attempt", n+1),
				zap.String("field", string(key.Field)),
				zap.Error(err),
			)
		}),
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return profile.Record{}, fmt.Errorf("postgrest lookup by %s: %w", key.Field, ctxErr)
		}
		return profile.Record{}, fmt.Errorf("postgrest lookup by %s: %w", key.Field, err)
	}
	if len(rows) == 0 {
		return profile.Record{}, profile.ErrNotFound
	}
	rec := rows[0]
	rec.Status = profile.ParseStatus(string(rec.Status))
	return rec, nil
}

func (s *ProfileStore) get(ctx context.Context, target string) ([]profile.Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if s.apiKey != "" {
		req.Header.Set("apikey", s.apiKey)
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	var rows []profile.Record
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode rows: %w", err)
	}
	return rows, nil
}

// isRetryable keeps 4xx answers (except 429) and decode failures permanent.
func isRetryable(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		switch httpErr.StatusCode {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		default:
			return false
		}
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
