// Package ranged downloads one object into one local file with concurrent
// ranged GETs. Each part is written at its own offset in a file that is
// created at its final size before any worker starts.
package ranged
