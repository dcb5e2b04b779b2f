// Package services holds the dashboard's business logic between the HTTP
// handlers and the ingestion pipeline.
//
// DashboardService owns the current dataset snapshot. Load runs
// fetch, parse and aggregate once and swaps the result in under a lock, so
// every read serves a complete, precomputed snapshot. Overlapping loads are
// collapsed into one. A failed load leaves the previous snapshot in place and
// returns a LOAD error; before the first successful load every read returns
// ErrDatasetUnavailable.
//
// HealthService reports liveness, readiness (a snapshot is loaded) and
// version information.
package services
