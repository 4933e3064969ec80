// Package main hosts the website analysis service entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes health, metrics, analysis, and session endpoints. POST /v1/analyze runs
//     a full analysis synchronously and returns the stored session ID plus prompt previews; session endpoints serve
//     the stored documents and a zip archive of every artifact.
//   - Fetch pipeline: the composite fetcher renders pages headlessly through Chromedp first, then falls back to a
//     single Colly GET when rendering is unavailable or fails. Invalid URLs fail fast before any network activity.
//   - Signal extraction: internal/analyzer parses the fetched markup with goquery and derives design, functionality,
//     technical, and content signals plus a site-type classification. Extraction is deterministic for a given page.
//   - Generation: internal/orchestrator walks the configured backend chain (OpenAI- and Anthropic-style providers via
//     internal/llm) per section, falling back to a deterministic template synthesis when every backend fails, so a
//     run always yields all five sections.
//   - Persistence & fanout: sessions are stored in memory or Postgres, artifacts are uploaded to the configured
//     BlobStore (memory/GCS), and a compact Pub/Sub notification is published per completed analysis when enabled.
//   - Configuration & plumbing: Viper populates config from env/files; zap provides structured logging; Prometheus
//     metrics are exported via the metrics middleware and /metrics handler.
//
// Operational notes:
//   - Concurrency model: sections of one analysis generate concurrently via errgroup; headless fetches share a
//     semaphore inside the Chromedp fetcher. Shutdown is coordinated via context cancellation from main.
//   - Observability: zap logs carry session IDs and URLs at key transitions; Prometheus counters/histograms track
//     fetches, generation attempts, fallbacks, and HTTP activity. Tracing is not yet wired in.
//   - Run locally: go run ./cmd/codeecho -config config.yaml (or rely solely on CODEECHO_* env overrides, e.g.
//     CODEECHO_SERVER_PORT, CODEECHO_HEADLESS_ENABLED, CODEECHO_SESSIONS_STORE=postgres with a DSN).
package main
