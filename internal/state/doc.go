// Package state defines the workflow data model: WorkflowState, the per-language
// JobRecord for asynchronous lip-sync jobs, and the Repository contract the
// orchestrator reads and writes through.
//
// Repository.Update is an atomic read-modify-write. Implementations live here
// (MemoryRepository) and in the store packages (SQLite, redis).
package state
