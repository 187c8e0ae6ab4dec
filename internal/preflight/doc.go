// Package preflight provides readiness checks for the external services and
// filesystem paths dubline depends on.
//
// The daemon runs RunAll once at startup and logs every failed check; the
// CLI "dubline status" command prints the same results. Each check is gated
// by configuration so unused backends are skipped.
package preflight
