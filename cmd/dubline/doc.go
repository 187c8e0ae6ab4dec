// Package main hosts the dubline CLI.
//
// `dubline serve` runs the HTTP daemon. The remaining commands drive one
// workflow stage at a time against the configured store directly, which
// makes them useful for scripting and for recovering sessions without the
// daemon running.
package main
