package worker

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-git/go-billy/v5"

	"github.com/input-output-hk/catalyst-forge-libs/s3transfer/errors"
	"github.com/input-output-hk/catalyst-forge-libs/s3transfer/s3types"
)

// Uploader sends byte ranges of a local file as parts of one multipart session.
type Uploader struct {
	cfg      *Config
	fs       billy.Filesystem
	path     string
	uploadID string
}

// NewUploader creates an Uploader for the session uploadID.
// The session id is only read.
func NewUploader(cfg *Config, fs billy.Filesystem, path, uploadID string) *Uploader {
	return &Uploader{cfg: cfg, fs: fs, path: path, uploadID: uploadID}
}

// Transfer uploads one part with retries. The result carries the part's ETag.
func (u *Uploader) Transfer(ctx context.Context, part s3types.PartSpec) s3types.PartResult {
	return u.cfg.run(ctx, s3types.DirectionUpload, part, u.attempt)
}

func (u *Uploader) attempt(ctx context.Context, part s3types.PartSpec) (int64, string, error) {
	f, err := u.fs.Open(u.path)
	if err != nil {
		return 0, "", fmt.Errorf("open source: %w", err)
	}
	defer func() { _ = f.Close() }()

	// The section reader is seekable, so the SDK can rewind it for signing and checksums.
	body := io.NewSectionReader(f, part.Offset, part.Length)

	out, err := u.cfg.Client.UploadPart(ctx, &s3.UploadPartInput{
		Bucket:        aws.String(u.cfg.Bucket),
		Key:           aws.String(u.cfg.Key),
		UploadId:      aws.String(u.uploadID),
		PartNumber:    aws.Int32(int32(part.Index)),
		ContentLength: aws.Int64(part.Length),
		Body:          body,
	})
	if err != nil {
		return 0, "", errors.NewObjectError("uploadPart", u.cfg.Bucket, u.cfg.Key, errors.FromAPI(err))
	}

	u.cfg.Progress.Add(part.Length)
	return part.Length, aws.ToString(out.ETag), nil
}
