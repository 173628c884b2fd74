// Package main hosts the profile preview service entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes /api/profile/{identifier} (and the legacy /og/profile alias), a JSON
//     /meta variant for the SPA, plus health, readiness and metrics endpoints.
//   - Classification: the User-Agent is matched against a case-insensitive allow-list of link-preview crawlers.
//     Crawlers get a standalone tagged document with a redirect to the canonical page; everyone else gets the
//     application shell with the same tags injected into its head.
//   - Lookup: the path segment is resolved to an id or slug lookup and fetched from the configured profile store
//     (memory, Postgres via pgx, PostgREST over HTTP, or a local SQLite file) under a hard deadline. A miss renders
//     site defaults; a failure or timeout is a plain 500 that is never cached.
//   - Fanout: each crawler response publishes a compact preview.served event to Pub/Sub when a topic is configured.
//   - Configuration & plumbing: Viper populates config from env/files; zap provides structured logging; Prometheus
//     metrics are exported via the metrics middleware and /metrics handler.
//
// Operational notes:
//   - Caching: crawler and human responses carry separate s-maxage/stale-while-revalidate windows, a strong ETag and
//     Vary: User-Agent so shared caches keep the two variants apart.
//   - The shell is re-read from disk or GCS per human request so a new SPA build is picked up without a restart. A
//     missing shell degrades to a minimal document rather than failing.
//   - Shutdown: SIGINT/SIGTERM drains the HTTP server, waits for pending events and closes store/cloud clients.
//
// Quick checklist:
//   - Configure env vars: PREVIEW_SERVER_PORT, PREVIEW_SITE_BASE_URL, PREVIEW_SITE_BRAND, PREVIEW_STORE_BACKEND
//     with PREVIEW_STORE_POSTGRES_DSN or PREVIEW_STORE_POSTGREST_URL, PREVIEW_SHELL_PATH, and pubsub settings when
//     crawler hit events are wanted.
//   - Run locally: go run ./cmd/previewd -config config.example.yaml
//   - Check a deployment: go run ./cmd/previewcheck -ua whatsapp https://host/api/profile/some-slug
package main
