// Package stage defines the boundary contracts between the workflow
// orchestrator and the external services it drives, plus the concrete
// adapters that implement them on top of the service clients.
//
// Adapters never touch workflow state. They validate responses at the
// boundary so that the orchestrator only sees well-formed results or
// errors tagged with services markers.
package stage
