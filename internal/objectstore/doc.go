// Package objectstore stores uploaded and generated media.
//
// S3 talks to any S3-compatible service (Cloudflare R2, MinIO, AWS) through
// minio-go and returns s3://bucket/key URIs, or public URLs when a public
// base URL is configured. Memory keeps objects in process for tests and
// single-node trials. Fetch and Resolve accept either a store URI or a
// plain http(s) URL so callers can mix uploaded and external media.
package objectstore
