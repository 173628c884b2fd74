package preview

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JakeFAU/profile-preview/internal/metrics"
	"github.com/JakeFAU/profile-preview/internal/profile"
)

// DefaultFetchTimeout bounds a single profile store lookup.
const DefaultFetchTimeout = 8 * time.Second

// Fetcher performs one bounded-time lookup against a profile store.
type Fetcher struct {
	store   profile.Store
	timeout time.Duration
}

// NewFetcher wraps store with a lookup deadline. A non-positive timeout
// selects DefaultFetchTimeout.
func NewFetcher(store profile.Store, timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &Fetcher{store: store, timeout: timeout}
}

type lookupResult struct {
	rec profile.Record
	err error
}

// Fetch returns the record for key, or nil when the store has no such row.
// Errors wrap ErrUpstream, and ErrUpstreamTimeout when the deadline fired
// before the store answered. The store call is abandoned, not awaited, once
// the deadline passes.
func (f *Fetcher) Fetch(ctx context.Context, key profile.Key) (*profile.Record, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	done := make(chan lookupResult, 1)
	go func() {
		rec, err := f.store.FindOne(ctx, key)
		done <- lookupResult{rec: rec, err: err}
	}()

	select {
	case <-ctx.Done():
		metrics.ObserveFetch("timeout", time.Since(start))
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("fetch %s=%q: %w", key.Field, key.Value, ErrUpstreamTimeout)
		}
		return nil, fmt.Errorf("fetch %s=%q: %w: %w", key.Field, key.Value, ErrUpstream, ctx.Err())
	case res := <-done:
		switch {
		case res.err == nil:
			metrics.ObserveFetch("found", time.Since(start))
			rec := res.rec
			return &rec, nil
		case errors.Is(res.err, profile.ErrNotFound):
			metrics.ObserveFetch("not_found", time.Since(start))
			return nil, nil
		case errors.Is(res.err, context.DeadlineExceeded):
			metrics.ObserveFetch("timeout", time.Since(start))
			return nil, fmt.Errorf("fetch %s=%q: %w: %w", key.Field, key.Value, ErrUpstreamTimeout, res.err)
		default:
			metrics.ObserveFetch("error", time.Since(start))
			return nil, fmt.Errorf("fetch %s=%q: %w: %w", key.Field, key.Value, ErrUpstream, res.err)
		}
	}
}
