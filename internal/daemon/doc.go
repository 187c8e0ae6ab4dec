// Package daemon coordinates the long-running dubline process.
//
// It wires configuration, the workflow orchestrator, and object storage into
// a single lifecycle with flock-based locking to prevent multiple instances.
// On start it resumes polling for lip-sync jobs left pending by a previous
// run and serves the HTTP JSON API.
//
// Keep orchestration logic here: workflow stages live in internal/workflow
// while the daemon focuses on startup, shutdown, and the HTTP surface.
package daemon
