package cli

import (
	"path"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/input-output-hk/catalyst-forge-libs/s3transfer"
	"github.com/input-output-hk/catalyst-forge-libs/s3transfer/s3types"
)

func (a *app) downloadCommand() *cobra.Command {
	var (
		overwrite   bool
		parts       int
		accelerated bool
		verify      bool
	)

	cmd := &cobra.Command{
		Use:   "download <bucket> <remote_path> <dest_dir> [dest_filename]",
		Short: "Download an object with parallel ranged requests",
		Long: `Download s3://<bucket>/<remote_path> into <dest_dir>. The file is named
after the last element of <remote_path> unless [dest_filename] is given.

An existing file is never replaced without --overwrite. A failed download
leaves no file behind.

With --accelerated the object is fetched by aria2c through a signed URL
instead of the built-in ranged downloader.
Its console output is logged at --log-level debug.`,
		Example: `  s3transfer download my-bucket runs/2024-06-01/genome.bam /data
  s3transfer download --parts 32 --overwrite my-bucket backups/db.tar /restore db.tar
  s3transfer download --accelerated --proxy http://proxy:3128 my-bucket big.iso /tmp`,
		Args: rangeArgs(3, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			bucket, key, destDir := args[0], args[1], args[2]
			fileName := path.Base(key)
			if len(args) == 4 {
				fileName = args[3]
			}

			absDir, err := filepath.Abs(destDir)
			if err != nil {
				return a.finish(err, "download failed")
			}

			client, err := a.client(cmd.Context())
			if err != nil {
				return a.finish(err, "could not create client")
			}

			log := a.log.WithFields(logrus.Fields{"bucket": bucket, "key": key})

			var res *s3types.DownloadResult
			if accelerated {
				opts := []s3types.AccelOption{s3transfer.WithAccelOverwrite(overwrite)}
				if a.cfg.Proxy != "" {
					opts = append(opts, s3transfer.WithAccelProxy(a.cfg.Proxy))
				}
				if a.log.IsLevelEnabled(logrus.DebugLevel) {
					console := log.WithField("tool", "aria2c").WriterLevel(logrus.DebugLevel)
					defer func() { _ = console.Close() }()
					opts = append(opts, s3transfer.WithAccelOutput(console))
				}
				res, err = client.DownloadAccelerated(cmd.Context(), bucket, key, absDir, fileName, opts...)
			} else {
				res, err = client.DownloadFile(cmd.Context(), bucket, key, filepath.Join(absDir, fileName),
					s3transfer.WithOverwrite(overwrite),
					s3transfer.WithParts(parts),
					s3transfer.WithVerifySize(verify),
					s3transfer.WithDownloadProgress(newProgressLogger(log)),
				)
			}
			if err != nil {
				return a.finish(err, "download failed")
			}

			log.Infof("Downloaded %s to %s (%s)",
				humanize.IBytes(uint64(res.Size)), res.Path, res.Duration.Round(time.Millisecond))
			return a.finish(nil, "")
		},
	}

	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace an existing destination file")
	cmd.Flags().IntVar(&parts, "parts", 0, "number of ranged requests (default: concurrency)")
	cmd.Flags().BoolVar(&accelerated, "accelerated", false, "download with aria2c through a signed URL")
	cmd.Flags().BoolVar(&verify, "verify-size", true, "check the bytes written and that the object did not change")
	return cmd
}
