// Package notifications delivers workflow events to ntfy.
//
// NewService returns a no-op implementation when no topic is configured, so
// callers never need to check whether notifications are enabled. Each event
// category (stage completions, lip-sync outcomes, errors) can be toggled in
// config.toml.
package notifications
