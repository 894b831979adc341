package worker

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-git/go-billy/v5"

	"github.com/input-output-hk/catalyst-forge-libs/s3transfer/errors"
	"github.com/input-output-hk/catalyst-forge-libs/s3transfer/internal/pool"
	"github.com/input-output-hk/catalyst-forge-libs/s3transfer/s3types"
)

// Downloader writes ranged GETs into a preallocated destination file.
type Downloader struct {
	cfg  *Config
	fs   billy.Filesystem
	path string
}

// NewDownloader creates a Downloader writing to path on fs.
// The file must already exist with its final size.
func NewDownloader(cfg *Config, fs billy.Filesystem, path string) *Downloader {
	return &Downloader{cfg: cfg, fs: fs, path: path}
}

// Transfer downloads one part with retries.
func (d *Downloader) Transfer(ctx context.Context, part s3types.PartSpec) s3types.PartResult {
	if part.Length == 0 {
		return s3types.PartResult{Index: part.Index, Status: s3types.PartSucceeded, Attempts: 0}
	}
	return d.cfg.run(ctx, s3types.DirectionDownload, part, d.attempt)
}

func (d *Downloader) attempt(ctx context.Context, part s3types.PartSpec) (int64, string, error) {
	in := &s3.GetObjectInput{
		Bucket: aws.String(d.cfg.Bucket),
		Key:    aws.String(d.cfg.Key),
		Range:  aws.String(part.HTTPRange()),
	}
	if d.cfg.IfMatch != "" {
		in.IfMatch = aws.String(d.cfg.IfMatch)
	}
	out, err := d.cfg.Client.GetObject(ctx, in)
	if err != nil {
		return 0, "", errors.NewObjectError("getObject", d.cfg.Bucket, d.cfg.Key, errors.FromAPI(err))
	}
	defer func() { _ = out.Body.Close() }()

	// Each attempt opens its own handle so no file cursor is shared between workers.
	f, err := d.fs.OpenFile(d.path, os.O_WRONLY, 0)
	if err != nil {
		return 0, "", fmt.Errorf("open destination: %w", err)
	}
	defer func() { _ = f.Close() }()

	w, err := positionedWriter(f, part.Offset)
	if err != nil {
		return 0, "", fmt.Errorf("seek destination to %d: %w", part.Offset, err)
	}

	written, err := d.copyRange(w, out.Body, part)
	if err != nil {
		d.cfg.Progress.Add(-written)
		return 0, "", err
	}
	return written, "", nil
}

// copyRange streams body into w in chunks of at most pool.ReadChunkSize bytes
// and checks that exactly part.Length bytes arrived.
func (d *Downloader) copyRange(w io.Writer, body io.Reader, part s3types.PartSpec) (int64, error) {
	buf := pool.GetBuffer(pool.ChunkSize(part.Length))
	defer pool.PutBuffer(buf)

	var written int64
	for {
		nr, rerr := body.Read(buf)
		if nr > 0 {
			if written+int64(nr) > part.Length {
				return written, fmt.Errorf("%w: range %s returned more than %d bytes",
					errors.ErrTransfer, part.HTTPRange(), part.Length)
			}
			nw, werr := w.Write(buf[:nr])
			written += int64(nw)
			d.cfg.Progress.Add(int64(nw))
			if werr != nil {
				return written, fmt.Errorf("write at offset %d: %w", part.Offset+written, werr)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return written, fmt.Errorf("%w: read body: %w", errors.ErrTransfer, rerr)
		}
	}

	if written != part.Length {
		return written, fmt.Errorf("%w: range %s returned %d of %d bytes",
			errors.ErrTransfer, part.HTTPRange(), written, part.Length)
	}
	return written, nil
}

// positionedWriter returns a writer starting at offset. Files that support
// WriteAt get an offset writer; others are seeked, which is safe because the
// handle belongs to a single attempt.
func positionedWriter(f billy.File, offset int64) (io.Writer, error) {
	if wa, ok := f.(io.WriterAt); ok {
		return io.NewOffsetWriter(wa, offset), nil
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, err
	}
	return f, nil
}
