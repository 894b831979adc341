// Package manager runs part transfers on a bounded worker pool.
//
// Parts are queued up front and pulled by a fixed number of workers. The pool
// always drains the whole queue: a failed part never stops the others, and
// the caller decides what to do once every result is in.
package manager
