package ranged

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dustin/go-humanize"
	"github.com/go-git/go-billy/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/input-output-hk/catalyst-forge-libs/s3transfer/errors"
	"github.com/input-output-hk/catalyst-forge-libs/s3transfer/internal/metrics"
	"github.com/input-output-hk/catalyst-forge-libs/s3transfer/internal/s3api"
	"github.com/input-output-hk/catalyst-forge-libs/s3transfer/internal/transfer/manager"
	"github.com/input-output-hk/catalyst-forge-libs/s3transfer/internal/transfer/planner"
	"github.com/input-output-hk/catalyst-forge-libs/s3transfer/internal/transfer/retry"
	"github.com/input-output-hk/catalyst-forge-libs/s3transfer/internal/transfer/worker"
	"github.com/input-output-hk/catalyst-forge-libs/s3transfer/s3types"
)

// DefaultConcurrency is the number of ranged GETs in flight and the default part count.
const DefaultConcurrency = 10

// Config holds the dependencies shared by every download of a client.
type Config struct {
	Client s3api.S3API
	FS     billy.Filesystem
	Policy retry.Policy

	// Concurrency caps parts in flight; zero uses DefaultConcurrency
	Concurrency int

	// PartTimeout caps each part attempt; zero is unbounded
	PartTimeout time.Duration

	Logger  logrus.FieldLogger
	Metrics *metrics.Metrics
}

// Request describes one object download.
type Request struct {
	Bucket string
	Key    string

	// Path is the destination file on the configured filesystem
	Path string

	// Overwrite replaces an existing destination instead of failing
	Overwrite bool

	// Parts is the number of ranges; zero uses the concurrency
	Parts int

	// VerifySize checks the bytes written and re-reads the object's size and ETag
	VerifySize bool

	Progress s3types.ProgressTracker

	// TransferID is generated when empty
	TransferID string
}

// Coordinator downloads objects with positioned writes.
type Coordinator struct {
	cfg Config
}

// New creates a Coordinator.
func New(cfg Config) *Coordinator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Logger == nil {
		cfg.Logger = worker.DiscardLogger()
	}
	return &Coordinator{cfg: cfg}
}

// Download fetches req.Bucket/req.Key into req.Path.
//
// An existing destination is left untouched and ErrDestinationCollision is
// returned unless Overwrite is set. If any part fails the destination is
// removed, so a file at Path after a failed call is never a partial copy.
func (c *Coordinator) Download(ctx context.Context, req Request) (*s3types.DownloadResult, error) {
	start := time.Now()
	if req.TransferID == "" {
		req.TransferID = uuid.NewString()
	}
	log := c.cfg.Logger.WithFields(logrus.Fields{
		"transfer_id": req.TransferID,
		"bucket":      req.Bucket,
		"key":         req.Key,
		"path":        req.Path,
	})

	result, err := c.download(ctx, log, req)
	c.cfg.Metrics.ObserveTransfer(s3types.DirectionDownload, err, time.Since(start))
	if err != nil {
		if req.Progress != nil {
			req.Progress.Error(err)
		}
		log.WithError(err).Error("download failed")
		return nil, err
	}

	result.Duration = time.Since(start)
	if req.Progress != nil {
		req.Progress.Complete()
	}
	log.WithField("duration", result.Duration).Infof("Downloaded %s in %s (%s/s)",
		humanize.IBytes(uint64(result.Size)), result.Duration.Round(time.Millisecond),
		throughput(result.Size, result.Duration))
	return result, nil
}

func (c *Coordinator) download(ctx context.Context, log logrus.FieldLogger, req Request) (*s3types.DownloadResult, error) {
	head, err := c.cfg.Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(req.Bucket),
		Key:    aws.String(req.Key),
	})
	if err != nil {
		return nil, errors.NewObjectError("headObject", req.Bucket, req.Key, errors.FromAPI(err))
	}
	size := aws.ToInt64(head.ContentLength)

	numParts := req.Parts
	if numParts <= 0 {
		numParts = c.cfg.Concurrency
	}
	parts, err := planner.PlanRanges(size, numParts)
	if err != nil {
		return nil, errors.NewObjectError("download", req.Bucket, req.Key, err)
	}

	if err := c.prepare(req, size); err != nil {
		return nil, err
	}
	log.Infof("Downloading %s in %d parts", humanize.IBytes(uint64(size)), len(parts))

	dl := worker.NewDownloader(&worker.Config{
		Client:      c.cfg.Client,
		Bucket:      req.Bucket,
		Key:         req.Key,
		Policy:      c.cfg.Policy,
		IfMatch:     aws.ToString(head.ETag),
		PartTimeout: c.cfg.PartTimeout,
		Logger:      log,
		Metrics:     c.cfg.Metrics,
		Progress:    worker.NewProgress(req.Progress, size),
	}, c.cfg.FS, req.Path)
	results := manager.Run(ctx, c.cfg.Concurrency, parts, dl.Transfer)

	if failed := manager.Failed(results); len(failed) > 0 {
		errs := make([]error, 0, len(failed))
		for _, r := range failed {
			errs = append(errs, r.Err)
		}
		err := fmt.Errorf("%w: %d of %d parts failed: %w",
			errors.ErrTransfer, len(failed), len(parts), stderrors.Join(errs...))
		return nil, c.discard(log, req, err)
	}

	if req.VerifySize {
		if err := c.verify(ctx, req, head, manager.Bytes(results)); err != nil {
			return nil, c.discard(log, req, err)
		}
	}

	return &s3types.DownloadResult{
		Key:        req.Key,
		Size:       size,
		ETag:       aws.ToString(head.ETag),
		Path:       req.Path,
		Parts:      len(parts),
		TransferID: req.TransferID,
	}, nil
}

// prepare resolves a collision, creates the parent directory and
// preallocates the destination so workers can write at any offset.
func (c *Coordinator) prepare(req Request, size int64) error {
	fs := c.cfg.FS

	info, err := fs.Stat(req.Path)
	switch {
	case err == nil && info.IsDir():
		return errors.NewObjectError("download", req.Bucket, req.Key,
			fmt.Errorf("%w: %s is a directory", errors.ErrInvalidInput, req.Path))
	case err == nil && !req.Overwrite:
		return errors.NewObjectError("download", req.Bucket, req.Key,
			fmt.Errorf("%w: %s", errors.ErrDestinationCollision, req.Path))
	case err == nil:
		if err := fs.Remove(req.Path); err != nil {
			return errors.NewObjectError("download", req.Bucket, req.Key, fmt.Errorf("remove existing destination: %w", err))
		}
	case !os.IsNotExist(err):
		return errors.NewObjectError("download", req.Bucket, req.Key, fmt.Errorf("stat destination: %w", err))
	}

	if dir := filepath.Dir(req.Path); dir != "." && dir != "/" {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return errors.NewObjectError("download", req.Bucket, req.Key, fmt.Errorf("create directory: %w", err))
		}
	}

	f, err := fs.OpenFile(req.Path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.NewObjectError("download", req.Bucket, req.Key, fmt.Errorf("create destination: %w", err))
	}
	if err := f.Truncate(size); err != nil {
		_ = f.Close()
		_ = fs.Remove(req.Path)
		return errors.NewObjectError("download", req.Bucket, req.Key, fmt.Errorf("preallocate destination: %w", err))
	}
	if err := f.Close(); err != nil {
		_ = fs.Remove(req.Path)
		return errors.NewObjectError("download", req.Bucket, req.Key, fmt.Errorf("close destination: %w", err))
	}
	return nil
}

// verify checks that the workers wrote exactly the object's size and that the
// object still has the size and ETag it had when the download started. The
// second check catches a replacement on stores that ignore If-Match.
func (c *Coordinator) verify(ctx context.Context, req Request, head *s3.HeadObjectOutput, written int64) error {
	size := aws.ToInt64(head.ContentLength)
	if written != size {
		return errors.NewObjectError("verify", req.Bucket, req.Key,
			fmt.Errorf("%w: wrote %d bytes, object has %d", errors.ErrTransfer, written, size))
	}

	now, err := c.cfg.Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(req.Bucket),
		Key:    aws.String(req.Key),
	})
	if err != nil {
		return errors.NewObjectError("verify", req.Bucket, req.Key, errors.FromAPI(err))
	}
	if aws.ToInt64(now.ContentLength) != size || aws.ToString(now.ETag) != aws.ToString(head.ETag) {
		return errors.NewObjectError("verify", req.Bucket, req.Key,
			fmt.Errorf("%w: etag %s size %d, started at etag %s size %d", errors.ErrObjectChanged,
				aws.ToString(now.ETag), aws.ToInt64(now.ContentLength), aws.ToString(head.ETag), size))
	}
	return nil
}

// discard removes the destination after a failure and returns cause.
func (c *Coordinator) discard(log logrus.FieldLogger, req Request, cause error) error {
	if err := c.cfg.FS.Remove(req.Path); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("could not remove partial destination")
	}
	if _, ok := cause.(*errors.Error); ok {
		return cause
	}
	return errors.NewObjectError("download", req.Bucket, req.Key, cause)
}

func throughput(size int64, d time.Duration) string {
	if d <= 0 {
		return humanize.IBytes(uint64(size))
	}
	return humanize.IBytes(uint64(float64(size) / d.Seconds()))
}
