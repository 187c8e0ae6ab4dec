// Package ffprobe runs ffprobe and exposes the stream counts and duration
// the ingest stage needs.
package ffprobe
