// Package store persists workflow state in SQLite.
//
// Workflows live in one row each; per-language translations, synthesized
// audio, and lip-sync job records live in child tables so the daemon can
// query non-terminal jobs directly when it resumes polling after a restart.
// Store implements state.Repository.
package store
