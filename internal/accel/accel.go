// Package accel hands a download to the aria2c command-line downloader
// through a presigned GET URL. aria2c opens its own parallel connections, so
// none of the ranged-download machinery is involved.
package accel

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dustin/go-humanize"
	"github.com/go-git/go-billy/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/input-output-hk/catalyst-forge-libs/s3transfer/errors"
	"github.com/input-output-hk/catalyst-forge-libs/s3transfer/internal/executor"
	"github.com/input-output-hk/catalyst-forge-libs/s3transfer/internal/s3api"
	"github.com/input-output-hk/catalyst-forge-libs/s3transfer/s3types"
)

// Defaults for the downloader invocation.
const (
	DefaultBinary                 = "aria2c"
	DefaultExpires                = 1200 * time.Second
	DefaultSplit                  = 4
	DefaultMinSplitSize           = "100M"
	DefaultMaxConnectionPerServer = 4
)

// DefaultOptions returns the invocation used when no option overrides it.
func DefaultOptions() s3types.AccelOptionConfig {
	return s3types.AccelOptionConfig{
		Binary:                 DefaultBinary,
		Expires:                DefaultExpires,
		Split:                  DefaultSplit,
		MinSplitSize:           DefaultMinSplitSize,
		MaxConnectionPerServer: DefaultMaxConnectionPerServer,
	}
}

// Request describes one accelerated download.
type Request struct {
	Bucket  string
	Key     string
	DestDir string

	// FileName defaults to the base name of Key
	FileName string

	Options s3types.AccelOptionConfig

	// TransferID is generated when empty
	TransferID string
}

// Downloader presigns objects and runs the external downloader on them.
type Downloader struct {
	presigner s3api.Presigner
	runner    executor.Runner

	// fs must be backed by the disk the external process writes to
	fs     billy.Filesystem
	logger logrus.FieldLogger
}

// New creates a Downloader.
func New(presigner s3api.Presigner, runner executor.Runner, fs billy.Filesystem, logger logrus.FieldLogger) *Downloader {
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	return &Downloader{presigner: presigner, runner: runner, fs: fs, logger: logger}
}

// Download fetches req.Bucket/req.Key into req.DestDir. A non-zero exit of
// the downloader is returned as an error matching ErrExternalTool, and any
// file it left behind is removed.
func (d *Downloader) Download(ctx context.Context, req Request) (*s3types.DownloadResult, error) {
	start := time.Now()
	opts := withDefaults(req.Options)
	if req.FileName == "" {
		req.FileName = path.Base(req.Key)
	}
	if req.TransferID == "" {
		req.TransferID = uuid.NewString()
	}
	dest := filepath.Join(req.DestDir, req.FileName)

	log := d.logger.WithFields(logrus.Fields{
		"transfer_id": req.TransferID,
		"bucket":      req.Bucket,
		"key":         req.Key,
		"path":        dest,
	})

	if err := d.prepare(req, dest, opts.Overwrite); err != nil {
		return nil, err
	}

	signed, err := d.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(req.Bucket),
		Key:    aws.String(req.Key),
	}, s3.WithPresignExpires(opts.Expires))
	if err != nil {
		return nil, errors.NewObjectError("presignGetObject", req.Bucket, req.Key, errors.FromAPI(err))
	}

	log.Infof("Starting %s download of %s", opts.Binary, req.Key)
	runOpts := []executor.Option{executor.WithCombinedOutput()}
	if opts.Output != nil {
		runOpts = append(runOpts, executor.WithStdoutWriter(opts.Output), executor.WithStderrWriter(opts.Output))
	}
	result, err := d.runner.Run(ctx, opts.Binary, BuildArgs(req.DestDir, req.FileName, signed.URL, opts), runOpts...)
	if err != nil {
		d.cleanup(log, dest)
		if result != nil {
			log.WithField("exit_code", result.ExitCode).Debug(result.Output())
		}
		return nil, errors.NewObjectError("downloadAccelerated", req.Bucket, req.Key, err)
	}

	info, err := d.fs.Stat(dest)
	if err != nil {
		return nil, errors.NewObjectError("downloadAccelerated", req.Bucket, req.Key,
			fmt.Errorf("%w: %s exited cleanly but produced no file: %w", errors.ErrExternalTool, opts.Binary, err))
	}

	elapsed := time.Since(start)
	log.WithField("duration", elapsed).Infof("Finished %s download. Created %s (%s)",
		opts.Binary, dest, humanize.IBytes(uint64(info.Size())))

	return &s3types.DownloadResult{
		Key:        req.Key,
		Size:       info.Size(),
		Path:       dest,
		Parts:      opts.Split,
		Duration:   elapsed,
		TransferID: req.TransferID,
	}, nil
}

// BuildArgs returns the downloader arguments; the URL is always last.
func BuildArgs(dir, fileName, url string, opts s3types.AccelOptionConfig) []string {
	args := []string{
		"--dir=" + dir,
		"--out=" + fileName,
		"--split=" + strconv.Itoa(opts.Split),
		"--min-split-size=" + opts.MinSplitSize,
		"--max-connection-per-server=" + strconv.Itoa(opts.MaxConnectionPerServer),
		"--check-certificate=" + strconv.FormatBool(opts.CheckCertificate),
		"--file-allocation=none",
	}
	if opts.Proxy != "" {
		args = append(args, "--all-proxy="+opts.Proxy)
	}
	return append(args, url)
}

func (d *Downloader) prepare(req Request, dest string, overwrite bool) error {
	info, err := d.fs.Stat(dest)
	switch {
	case err == nil && info.IsDir():
		return errors.NewObjectError("downloadAccelerated", req.Bucket, req.Key,
			fmt.Errorf("%w: %s is a directory", errors.ErrInvalidInput, dest))
	case err == nil && !overwrite:
		return errors.NewObjectError("downloadAccelerated", req.Bucket, req.Key,
			fmt.Errorf("%w: %s", errors.ErrDestinationCollision, dest))
	case err == nil:
		if err := d.fs.Remove(dest); err != nil {
			return errors.NewObjectError("downloadAccelerated", req.Bucket, req.Key,
				fmt.Errorf("remove existing destination: %w", err))
		}
	case !os.IsNotExist(err):
		return errors.NewObjectError("downloadAccelerated", req.Bucket, req.Key,
			fmt.Errorf("stat destination: %w", err))
	}

	if err := d.fs.MkdirAll(req.DestDir, 0o755); err != nil {
		return errors.NewObjectError("downloadAccelerated", req.Bucket, req.Key,
			fmt.Errorf("create directory: %w", err))
	}
	return nil
}

// cleanup removes the partial file and aria2c's control file.
func (d *Downloader) cleanup(log logrus.FieldLogger, dest string) {
	for _, p := range []string{dest, dest + ".aria2"} {
		if err := d.fs.Remove(p); err != nil && !os.IsNotExist(err) {
			log.WithError(err).Warnf("could not remove %s", p)
		}
	}
}

func withDefaults(opts s3types.AccelOptionConfig) s3types.AccelOptionConfig {
	def := DefaultOptions()
	if opts.Binary == "" {
		opts.Binary = def.Binary
	}
	if opts.Expires <= 0 {
		opts.Expires = def.Expires
	}
	if opts.Split <= 0 {
		opts.Split = def.Split
	}
	if opts.MinSplitSize == "" {
		opts.MinSplitSize = def.MinSplitSize
	}
	if opts.MaxConnectionPerServer <= 0 {
		opts.MaxConnectionPerServer = def.MaxConnectionPerServer
	}
	return opts
}
