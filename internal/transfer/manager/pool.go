package manager

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/input-output-hk/catalyst-forge-libs/s3transfer/s3types"
)

// PartFunc transfers one part and reports its outcome.
type PartFunc func(ctx context.Context, part s3types.PartSpec) s3types.PartResult

type job struct {
	pos  int
	part s3types.PartSpec
}

// Run transfers every part on at most concurrency workers and blocks until all
// of them have a result. Results are returned in the order of parts.
//
// Parts still queued when ctx ends are reported as failed with the context
// error without calling fn.
func Run(ctx context.Context, concurrency int, parts []s3types.PartSpec, fn PartFunc) []s3types.PartResult {
	results := make([]s3types.PartResult, len(parts))
	if len(parts) == 0 {
		return results
	}

	workers := min(max(concurrency, 1), len(parts))

	queue := make(chan job, len(parts))
	for i, p := range parts {
		queue <- job{pos: i, part: p}
	}
	close(queue)

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for j := range queue {
				if err := ctx.Err(); err != nil {
					results[j.pos] = s3types.PartResult{
						Index:  j.part.Index,
						Status: s3types.PartFailed,
						Err:    err,
					}
					continue
				}

				start := time.Now()
				res := fn(ctx, j.part)
				res.Index = j.part.Index
				if res.Duration == 0 {
					res.Duration = time.Since(start)
				}
				results[j.pos] = res
			}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// Failed returns the results that did not succeed.
func Failed(results []s3types.PartResult) []s3types.PartResult {
	var failed []s3types.PartResult
	for _, r := range results {
		if r.Status != s3types.PartSucceeded {
			failed = append(failed, r)
		}
	}
	return failed
}

// Bytes sums the bytes of successful results.
func Bytes(results []s3types.PartResult) int64 {
	var n int64
	for _, r := range results {
		if r.Status == s3types.PartSucceeded {
			n += r.Bytes
		}
	}
	return n
}
