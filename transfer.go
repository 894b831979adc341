package s3transfer

import (
	"context"
	"path"
	"path/filepath"

	"github.com/input-output-hk/catalyst-forge-libs/s3transfer/errors"
	"github.com/input-output-hk/catalyst-forge-libs/s3transfer/internal/accel"
	"github.com/input-output-hk/catalyst-forge-libs/s3transfer/internal/transfer/multipart"
	"github.com/input-output-hk/catalyst-forge-libs/s3transfer/internal/transfer/ranged"
	"github.com/input-output-hk/catalyst-forge-libs/s3transfer/internal/transfer/retry"
	"github.com/input-output-hk/catalyst-forge-libs/s3transfer/internal/validation"
	"github.com/input-output-hk/catalyst-forge-libs/s3transfer/s3types"
)

// UploadFile uploads the file at localPath to bucket/key as a multipart session.
//
// The object is committed only when the store lists every planned part. Any
// other outcome aborts the session and returns an error matching
// ErrReconciliationMismatch that also carries each failed part.
func (c *Client) UploadFile(
	ctx context.Context,
	bucket, key, localPath string,
	opts ...s3types.UploadOption,
) (*s3types.UploadResult, error) {
	cfg := &s3types.UploadOptionConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	acl := c.cfg.ACL
	if cfg.ACL != nil {
		acl = *cfg.ACL
	}

	if err := validateUpload(bucket, key, localPath, cfg, acl); err != nil {
		return nil, err
	}

	ctx, cancel := c.transferContext(ctx)
	defer cancel()

	coordinator := multipart.New(multipart.Config{
		Client:      c.s3Client,
		FS:          c.filesystem(),
		Policy:      c.policy(cfg.MaxRetries),
		Concurrency: pick(cfg.Concurrency, c.cfg.UploadConcurrency),
		PartTimeout: c.cfg.PartTimeout,
		MinPartSize: pick(cfg.MinPartSize, c.cfg.MinPartSize),
		Logger:      c.logger,
		Metrics:     c.metrics,
	})

	return coordinator.Upload(ctx, multipart.Request{
		Bucket:       bucket,
		Key:          key,
		Path:         localPath,
		ContentType:  cfg.ContentType,
		Metadata:     cfg.Metadata,
		StorageClass: cfg.StorageClass,
		SSE:          cfg.SSE,
		ACL:          acl,
		Progress:     cfg.ProgressTracker,
	})
}

// DownloadFile downloads bucket/key to localPath with parallel ranged GETs.
//
// An existing file at localPath is an ErrDestinationCollision unless
// WithOverwrite is set. A failed download removes localPath.
func (c *Client) DownloadFile(
	ctx context.Context,
	bucket, key, localPath string,
	opts ...s3types.DownloadOption,
) (*s3types.DownloadResult, error) {
	cfg := &s3types.DownloadOptionConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	if err := validateDownload(bucket, key, cfg); err != nil {
		return nil, err
	}
	if localPath == "" {
		return nil, errors.NewObjectError("downloadFile", bucket, key, errors.ErrInvalidInput).
			WithMessage("destination path cannot be empty")
	}

	ctx, cancel := c.transferContext(ctx)
	defer cancel()

	coordinator := ranged.New(ranged.Config{
		Client:      c.s3Client,
		FS:          c.filesystem(),
		Policy:      c.policy(cfg.MaxRetries),
		Concurrency: pick(cfg.Concurrency, c.cfg.DownloadConcurrency),
		PartTimeout: c.cfg.PartTimeout,
		Logger:      c.logger,
		Metrics:     c.metrics,
	})

	return coordinator.Download(ctx, ranged.Request{
		Bucket:     bucket,
		Key:        key,
		Path:       localPath,
		Overwrite:  cfg.Overwrite,
		Parts:      cfg.Parts,
		VerifySize: cfg.VerifySize,
		Progress:   cfg.ProgressTracker,
	})
}

// DownloadAccelerated hands bucket/key to the external downloader (aria2c by
// default) through a signed URL and writes it to destDir/fileName. An empty
// fileName uses the base name of key.
func (c *Client) DownloadAccelerated(
	ctx context.Context,
	bucket, key, destDir, fileName string,
	opts ...s3types.AccelOption,
) (*s3types.DownloadResult, error) {
	cfg := accel.DefaultOptions()
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := validation.ValidateBucketName(bucket); err != nil {
		return nil, err
	}
	if err := validation.ValidateObjectKey(key); err != nil {
		return nil, err
	}
	if fileName == "" {
		fileName = path.Base(key)
	}
	if err := validation.ValidateFileName(fileName); err != nil {
		return nil, err
	}
	if c.presigner == nil {
		return nil, errors.NewObjectError("downloadAccelerated", bucket, key, errors.ErrInvalidInput).
			WithMessage("client cannot sign URLs")
	}

	ctx, cancel := c.transferContext(ctx)
	defer cancel()

	downloader := accel.New(c.presigner, c.runner, c.filesystem(), c.logger)
	return downloader.Download(ctx, accel.Request{
		Bucket:   bucket,
		Key:      key,
		DestDir:  filepath.Clean(destDir),
		FileName: fileName,
		Options:  cfg,
	})
}

func validateUpload(bucket, key, localPath string, cfg *s3types.UploadOptionConfig, acl s3types.ObjectACL) error {
	if err := validation.ValidateBucketName(bucket); err != nil {
		return err
	}
	if err := validation.ValidateObjectKey(key); err != nil {
		return err
	}
	if localPath == "" {
		return errors.NewObjectError("uploadFile", bucket, key, errors.ErrInvalidInput).
			WithMessage("source path cannot be empty")
	}
	if err := validation.ValidateMetadata(cfg.Metadata); err != nil {
		return err
	}
	if err := validation.ValidateContentType(cfg.ContentType); err != nil {
		return err
	}
	if err := validation.ValidateACL(acl); err != nil {
		return err
	}
	return validation.ValidateConcurrency(cfg.Concurrency)
}

func validateDownload(bucket, key string, cfg *s3types.DownloadOptionConfig) error {
	if err := validation.ValidateBucketName(bucket); err != nil {
		return err
	}
	if err := validation.ValidateObjectKey(key); err != nil {
		return err
	}
	if err := validation.ValidateParts(cfg.Parts); err != nil {
		return err
	}
	return validation.ValidateConcurrency(cfg.Concurrency)
}

func (c *Client) policy(override *int) retry.Policy {
	p := retry.Policy{
		MaxRetries: c.cfg.MaxRetries,
		BaseDelay:  c.cfg.RetryBaseDelay,
		MaxDelay:   c.cfg.RetryMaxDelay,
	}
	if override != nil {
		p.MaxRetries = *override
	}
	return p
}

func (c *Client) transferContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.TransferTimeout > 0 {
		return context.WithTimeout(ctx, c.cfg.TransferTimeout)
	}
	return context.WithCancel(ctx)
}

// pick returns v when it is set and def otherwise.
func pick[T int | int64](v, def T) T {
	if v > 0 {
		return v
	}
	return def
}
