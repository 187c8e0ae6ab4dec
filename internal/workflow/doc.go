// Package workflow sequences the dubbing stages for one session.
//
// The Orchestrator checks each stage's preconditions against the stored
// WorkflowState, calls the stage adapters, and commits their output through
// state.Repository. Ingest, Transcribe and Translate are single calls that
// return typed errors. SynthesizeVoices and LipSync fan out one unit per
// language and fold failures into their reports, so one language never blocks
// or erases another. Lip-sync jobs are handed to a poller.Poller whose sink
// writes record transitions back under the same per-language lock the
// submission used.
package workflow
