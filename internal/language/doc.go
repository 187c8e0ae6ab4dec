// Package language normalizes the target-language identifiers that flow
// through a dubbing workflow.
//
// Callers hand in whatever the user typed ("hindi", "HIN", "hi-IN") and get
// back a canonical ISO 639-1 Code. Set keeps an ordered, de-duplicated
// collection of codes and offers the comparisons the orchestrator needs when
// it validates per-language stage output.
package language
