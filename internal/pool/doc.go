// Package pool provides reusable read buffers for part workers.
//
// Download workers copy each ranged response body into the destination file
// through a bounded buffer. Buffers are pooled by size class so that many
// concurrent workers do not allocate a fresh chunk for every part.
package pool
