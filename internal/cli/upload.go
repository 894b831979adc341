package cli

import (
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/input-output-hk/catalyst-forge-libs/s3transfer"
	"github.com/input-output-hk/catalyst-forge-libs/s3transfer/s3types"
)

// objectKey places the base name of localPath under remotePath.
func objectKey(remotePath, localPath string) string {
	key := path.Join(remotePath, filepath.Base(localPath))
	return strings.TrimPrefix(key, "/")
}

func (a *app) uploadCommand() *cobra.Command {
	var contentType string

	cmd := &cobra.Command{
		Use:   "upload <bucket> <local_path> <remote_path>",
		Short: "Upload a file as a multipart upload",
		Long: `Upload a local file to <bucket> under <remote_path>/<basename of local_path>.

The file is split into parts sized for its length and uploaded in parallel.
If any part still fails after its retries the upload is aborted and no object
is created.`,
		Example: `  s3transfer upload my-bucket ./genome.bam runs/2024-06-01
  s3transfer upload --concurrency 16 --acl bucket-owner-full-control my-bucket ./db.tar backups`,
		Args: rangeArgs(3, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			bucket, localPath, remotePath := args[0], args[1], args[2]
			key := objectKey(remotePath, localPath)

			absPath, err := filepath.Abs(localPath)
			if err != nil {
				return a.finish(err, "upload failed")
			}

			client, err := a.client(cmd.Context())
			if err != nil {
				return a.finish(err, "could not create client")
			}

			log := a.log.WithFields(logrus.Fields{"bucket": bucket, "key": key})
			opts := []s3types.UploadOption{s3transfer.WithProgress(newProgressLogger(log))}
			if contentType != "" {
				opts = append(opts, s3transfer.WithContentType(contentType))
			}

			res, err := client.UploadFile(cmd.Context(), bucket, key, absPath, opts...)
			if err != nil {
				return a.finish(err, "upload failed")
			}

			log.Infof("Uploaded %s to s3://%s/%s in %d parts (%s)",
				humanize.IBytes(uint64(res.Size)), bucket, key, res.Parts, res.Duration.Round(time.Millisecond))
			return a.finish(nil, "")
		},
	}

	cmd.Flags().StringVar(&contentType, "content-type", "", "content type (detected from the file when empty)")
	cmd.Flags().String("acl", "private", "canned ACL applied after the upload commits (empty to skip)")
	return cmd
}
