// Package logging assembles structured slog loggers and formatting helpers used
// across dubline.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so stage code automatically
// tags log lines with workflow IDs, stages, target languages, and correlation
// IDs. The console handler renders those subject fields as a bracketed prefix.
// NewNop provides a discarding logger for tests and wiring code that cannot fail.
package logging
