package worker

import (
	"sync/atomic"

	"github.com/input-output-hk/catalyst-forge-libs/s3transfer/s3types"
)

// Progress aggregates bytes from concurrent workers into one tracker.
// A nil *Progress is valid and does nothing.
type Progress struct {
	tracker s3types.ProgressTracker
	total   int64
	done    atomic.Int64
}

// NewProgress returns nil when tracker is nil.
func NewProgress(tracker s3types.ProgressTracker, total int64) *Progress {
	if tracker == nil {
		return nil
	}
	return &Progress{tracker: tracker, total: total}
}

// Add records n more bytes; a negative n rolls back a failed attempt.
func (p *Progress) Add(n int64) {
	if p == nil || n == 0 {
		return
	}
	p.tracker.Update(p.done.Add(n), p.total)
}
