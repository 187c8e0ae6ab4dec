// Package testsupport holds helpers shared by package tests: temp-dir backed
// configs, opened stores, and stub binaries on PATH.
package testsupport
