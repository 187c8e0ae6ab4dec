// Package services defines shared utilities consumed by the workflow
// orchestrator, stage adapters, and external service clients.
//
// Key responsibilities:
//   - Context helpers that stamp workflow IDs, stage names, target languages,
//     and correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper so failures carry stage
//     and language context and classify consistently (precondition,
//     transport, quota, invalid response, job timeout, ...).
//
// Subpackages hold the HTTP clients for each external capability.
package services
