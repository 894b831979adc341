package worker

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/input-output-hk/catalyst-forge-libs/s3transfer/errors"
	"github.com/input-output-hk/catalyst-forge-libs/s3transfer/internal/metrics"
	"github.com/input-output-hk/catalyst-forge-libs/s3transfer/internal/s3api"
	"github.com/input-output-hk/catalyst-forge-libs/s3transfer/internal/transfer/retry"
	"github.com/input-output-hk/catalyst-forge-libs/s3transfer/s3types"
)

// Config is shared by every worker of one transfer.
type Config struct {
	Client s3api.S3API
	Bucket string
	Key    string

	Policy retry.Policy

	// IfMatch pins ranged GETs to one object version; empty sends no precondition
	IfMatch string

	// PartTimeout caps a single attempt; zero is unbounded
	PartTimeout time.Duration

	Logger   logrus.FieldLogger
	Metrics  *metrics.Metrics
	Progress *Progress
}

// DiscardLogger returns a logger that writes nowhere.
func DiscardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func (c *Config) logger() logrus.FieldLogger {
	if c.Logger == nil {
		return DiscardLogger()
	}
	return c.Logger
}

// attemptFunc performs one attempt and returns the bytes moved and, for uploads, the ETag.
type attemptFunc func(ctx context.Context, part s3types.PartSpec) (int64, string, error)

func (c *Config) run(
	ctx context.Context,
	dir s3types.Direction,
	part s3types.PartSpec,
	attempt attemptFunc,
) s3types.PartResult {
	log := c.logger().WithFields(logrus.Fields{
		"part":   part.Index,
		"offset": part.Offset,
		"bytes":  part.Length,
	})

	c.Metrics.PartStarted(dir)
	start := time.Now()

	var (
		moved int64
		etag  string
	)
	attempts, err := c.Policy.Do(ctx, func(ctx context.Context, _ int) error {
		actx, cancel := c.attemptContext(ctx)
		defer cancel()

		n, tag, err := attempt(actx, part)
		if err != nil {
			return c.attemptError(ctx, actx, err)
		}
		moved, etag = n, tag
		return nil
	}, func(err error, n int, wait time.Duration) {
		log.WithError(err).WithFields(logrus.Fields{
			"attempt": n,
			"wait":    wait,
		}).Warn("part attempt failed, retrying")
	})

	res := s3types.PartResult{
		Index:    part.Index,
		Bytes:    moved,
		Attempts: attempts,
		Duration: time.Since(start),
		ETag:     etag,
	}
	if err != nil {
		res.Status = s3types.PartFailed
		res.Err = &errors.PartError{Index: part.Index, Attempts: attempts, Err: err}
		log.WithError(err).WithField("attempt", attempts).Error("part failed")
	} else {
		res.Status = s3types.PartSucceeded
		log.WithFields(logrus.Fields{
			"attempt":  attempts,
			"duration": res.Duration,
		}).Debug("part transferred")
	}

	c.Metrics.ObservePart(dir, res)
	return res
}

func (c *Config) attemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.PartTimeout > 0 {
		return context.WithTimeout(ctx, c.PartTimeout)
	}
	return context.WithCancel(ctx)
}

// attemptError turns an expired per-attempt deadline into a retryable
// transfer error while the caller's context is still live.
func (c *Config) attemptError(ctx, actx context.Context, err error) error {
	if ctx.Err() == nil && stderrors.Is(actx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: attempt exceeded %s: %s", errors.ErrTransfer, c.PartTimeout, err.Error())
	}
	return err
}
