// Package api hosts the HTTP server, middleware, and handlers for profile
// link previews. Notable routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /api/profile/{identifier} (and the /og/profile alias) for the
//     audience-specific preview document.
//   - GET /api/profile/{identifier}/meta for the display fields as JSON.
package api
