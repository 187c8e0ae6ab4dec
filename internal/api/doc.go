// Package api defines wire-format types and converters for the HTTP API
// layer. It translates workflow sessions, stage reports, and typed errors into
// transport-friendly DTOs that the CLI and browser clients render without
// coupling to internal types.
//
// # Key Types
//
// Workflow: one session with its artefacts and lip-sync jobs.
//
// Job: one language's lip-sync job record.
//
// ErrorResponse: the JSON body for every failed request, built by FromError.
//
// DaemonStatus: daemon runtime information including stage health and
// binary dependencies.
//
// # Design Notes
//
// DTOs use camelCase JSON tags for JavaScript consumers. Language maps are
// keyed by ISO 639-1 code. Timestamps use RFC3339 with milliseconds and
// durations are reported both in seconds and as mm:ss.
package api
