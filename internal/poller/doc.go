// Package poller drives asynchronous lip-sync jobs to a terminal state.
//
// Step is the pure transition function: given a record, the current time and
// one poll observation it returns the next record. PollOnce performs one
// service call and applies Step. Run repeats PollOnce with capped
// exponential backoff until the record is terminal, reporting every
// transition to a Sink.
//
// Poller owns background loops keyed by workflow and language. Loops run on
// the poller's own context so they outlive the request that started them;
// Cancel stops one loop and Shutdown stops them all.
package poller
