// Package s3transfer moves large objects between local files and Amazon S3
// (or any S3-compatible store) in parallel byte-range parts.
//
// Uploads are split by a size-adaptive chunk planner and sent as a multipart
// session. The object becomes visible only after the store confirms every
// planned part; otherwise the session is aborted. Downloads are split into
// equal byte ranges that workers write straight into a preallocated file at
// their own offsets. A failed download never leaves a partial file behind.
//
// Each part is retried on its own with exponential backoff. A part that runs
// out of attempts does not stop the others: the transfer waits for every part
// and then either commits or cleans up.
//
// Example usage:
//
//	client, err := s3transfer.New(ctx,
//	    s3transfer.WithRegion("eu-central-1"),
//	    s3transfer.WithCredentials(accessKey, secretKey, ""),
//	)
//	if err != nil {
//	    return err
//	}
//
//	// Upload a file
//	result, err := client.UploadFile(ctx, "my-bucket", "backups/db.tar", "/var/backups/db.tar")
//	if err != nil {
//	    return err
//	}
//
//	// Download it again in 8 ranged parts
//	_, err = client.DownloadFile(ctx, "my-bucket", "backups/db.tar", "/tmp/db.tar",
//	    s3transfer.WithParts(8),
//	    s3transfer.WithOverwrite(true),
//	)
package s3transfer
