package s3transfer

import (
	"io"
	"maps"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/go-git/go-billy/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/input-output-hk/catalyst-forge-libs/s3transfer/internal/transfer/planner"
	"github.com/input-output-hk/catalyst-forge-libs/s3transfer/s3types"
)

// WithRegion sets the AWS region for S3 operations.
// If not specified, uses the region from the credential chain or DefaultRegion.
func WithRegion(region string) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.Region = region
	}
}

// WithEndpoint sets a custom S3 endpoint URL.
// This is useful for S3-compatible services or local testing with LocalStack.
func WithEndpoint(endpoint string) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.Endpoint = endpoint
	}
}

// WithForcePathStyle forces the use of path-style URLs instead of virtual-hosted style.
// This is required for S3-compatible services that don't support virtual hosting.
func WithForcePathStyle(forcePathStyle bool) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.ForcePathStyle = forcePathStyle
	}
}

// WithCredentials sets static credentials instead of the default chain.
func WithCredentials(accessKeyID, secretAccessKey, sessionToken string) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.AccessKeyID = accessKeyID
		c.SecretAccessKey = secretAccessKey
		c.SessionToken = sessionToken
	}
}

// WithProxy routes all store traffic through an HTTP(S) proxy.
func WithProxy(proxy string) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.Proxy = proxy
	}
}

// WithTimeout sets the HTTP timeout for a single request.
// Default is no timeout (0).
func WithTimeout(timeout time.Duration) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.Timeout = timeout
	}
}

// WithSDKRetryAttempts sets the attempts the AWS SDK makes per request,
// underneath the per-part retries.
func WithSDKRetryAttempts(attempts int) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.SDKRetryAttempts = attempts
	}
}

// WithMaxRetries sets how often a failed part is retried after its first attempt.
// Set to 0 to disable part retries.
func WithMaxRetries(maxRetries int) s3types.Option {
	return func(c *s3types.ClientConfig) {
		if maxRetries >= 0 {
			c.MaxRetries = maxRetries
		}
	}
}

// WithRetryDelay sets the initial and maximum backoff between part attempts.
func WithRetryDelay(base, maxDelay time.Duration) s3types.Option {
	return func(c *s3types.ClientConfig) {
		if base > 0 {
			c.RetryBaseDelay = base
		}
		if maxDelay > 0 {
			c.RetryMaxDelay = maxDelay
		}
	}
}

// WithUploadConcurrency sets the number of parts uploaded at once. Default is 40.
func WithUploadConcurrency(concurrency int) s3types.Option {
	return func(c *s3types.ClientConfig) {
		if concurrency > 0 {
			c.UploadConcurrency = concurrency
		}
	}
}

// WithDownloadConcurrency sets the number of ranged GETs in flight and the
// default part count of a download. Default is 10.
func WithDownloadConcurrency(concurrency int) s3types.Option {
	return func(c *s3types.ClientConfig) {
		if concurrency > 0 {
			c.DownloadConcurrency = concurrency
		}
	}
}

// WithPartTimeout caps every part attempt.
func WithPartTimeout(timeout time.Duration) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.PartTimeout = timeout
	}
}

// WithTransferTimeout caps a whole upload or download.
func WithTransferTimeout(timeout time.Duration) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.TransferTimeout = timeout
	}
}

// WithMinPartSize raises the upload part-size floor. Values below the S3
// minimum of 5 MiB are ignored.
func WithMinPartSize(size int64) s3types.Option {
	return func(c *s3types.ClientConfig) {
		if size >= planner.MinPartSize {
			c.MinPartSize = size
		}
	}
}

// WithACL sets the canned ACL applied to every uploaded object. Default is
// private; an empty ACL skips the call.
func WithACL(acl s3types.ObjectACL) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.ACL = acl
	}
}

// WithAWSConfig allows providing a custom AWS configuration.
// This overrides the default configuration loading behavior.
func WithAWSConfig(config *aws.Config) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.CustomAWSConfig = config
	}
}

// WithCustomHTTPClient allows providing a custom HTTP client.
// It takes precedence over WithProxy and WithTimeout.
func WithCustomHTTPClient(client *http.Client) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.CustomHTTPClient = client
	}
}

// WithFilesystem sets a custom filesystem implementation for local files.
// If not specified, defaults to the OS filesystem.
func WithFilesystem(filesystem billy.Filesystem) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.Filesystem = filesystem
	}
}

// WithLogger sets the logger. Passing nil disables logging.
func WithLogger(logger logrus.FieldLogger) s3types.Option {
	return func(c *s3types.ClientConfig) {
		if logger == nil {
			logger = discardLogger()
		}
		c.Logger = logger
	}
}

// WithRegisterer enables transfer metrics on the given registerer.
func WithRegisterer(reg prometheus.Registerer) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.Registerer = reg
	}
}

// WithContentType sets the content type for upload operations.
// When unset it is detected from the file.
func WithContentType(contentType string) s3types.UploadOption {
	return func(c *s3types.UploadOptionConfig) {
		c.ContentType = contentType
	}
}

// WithMetadata sets metadata for upload operations.
func WithMetadata(metadata map[string]string) s3types.UploadOption {
	return func(c *s3types.UploadOptionConfig) {
		if c.Metadata == nil {
			c.Metadata = make(map[string]string)
		}
		maps.Copy(c.Metadata, metadata)
	}
}

// WithStorageClass sets the storage class for upload operations.
func WithStorageClass(storageClass s3types.StorageClass) s3types.UploadOption {
	return func(c *s3types.UploadOptionConfig) {
		c.StorageClass = storageClass
	}
}

// WithServerSideEncryption sets server-side encryption configuration for upload operations.
func WithServerSideEncryption(sse *s3types.SSEConfig) s3types.UploadOption {
	return func(c *s3types.UploadOptionConfig) {
		c.SSE = sse
	}
}

// WithObjectACL overrides the client ACL for one upload.
func WithObjectACL(acl s3types.ObjectACL) s3types.UploadOption {
	return func(c *s3types.UploadOptionConfig) {
		c.ACL = &acl
	}
}

// WithProgress sets a progress tracker for upload operations.
func WithProgress(tracker s3types.ProgressTracker) s3types.UploadOption {
	return func(c *s3types.UploadOptionConfig) {
		c.ProgressTracker = tracker
	}
}

// WithUploadPartSize sets the part-size floor for this upload.
// This overrides the client-level default for this specific upload.
// Values below the S3 minimum of 5 MiB are ignored.
func WithUploadPartSize(partSize int64) s3types.UploadOption {
	return func(c *s3types.UploadOptionConfig) {
		if partSize >= planner.MinPartSize {
			c.MinPartSize = partSize
		}
	}
}

// WithUploadWorkers sets the number of parts in flight for this upload.
func WithUploadWorkers(concurrency int) s3types.UploadOption {
	return func(c *s3types.UploadOptionConfig) {
		if concurrency > 0 {
			c.Concurrency = concurrency
		}
	}
}

// WithUploadRetries overrides the part retry count for this upload.
func WithUploadRetries(maxRetries int) s3types.UploadOption {
	return func(c *s3types.UploadOptionConfig) {
		if maxRetries >= 0 {
			c.MaxRetries = &maxRetries
		}
	}
}

// WithOverwrite replaces an existing destination file instead of failing.
func WithOverwrite(overwrite bool) s3types.DownloadOption {
	return func(c *s3types.DownloadOptionConfig) {
		c.Overwrite = overwrite
	}
}

// WithParts sets the number of ranged requests for a download.
// Default is the download concurrency.
func WithParts(parts int) s3types.DownloadOption {
	return func(c *s3types.DownloadOptionConfig) {
		if parts > 0 {
			c.Parts = parts
		}
	}
}

// WithDownloadWorkers sets the number of ranged GETs in flight for this download.
func WithDownloadWorkers(concurrency int) s3types.DownloadOption {
	return func(c *s3types.DownloadOptionConfig) {
		if concurrency > 0 {
			c.Concurrency = concurrency
		}
	}
}

// WithDownloadProgress sets a progress tracker for download operations.
func WithDownloadProgress(tracker s3types.ProgressTracker) s3types.DownloadOption {
	return func(c *s3types.DownloadOptionConfig) {
		c.ProgressTracker = tracker
	}
}

// WithDownloadRetries overrides the part retry count for this download.
func WithDownloadRetries(maxRetries int) s3types.DownloadOption {
	return func(c *s3types.DownloadOptionConfig) {
		if maxRetries >= 0 {
			c.MaxRetries = &maxRetries
		}
	}
}

// WithVerifySize checks the bytes written against the object size and re-reads
// the object's size and ETag after the last part. A replaced object fails the
// download with ErrObjectChanged.
func WithVerifySize(verify bool) s3types.DownloadOption {
	return func(c *s3types.DownloadOptionConfig) {
		c.VerifySize = verify
	}
}

// WithAccelBinary sets the downloader executable. Default is "aria2c".
func WithAccelBinary(binary string) s3types.AccelOption {
	return func(c *s3types.AccelOptionConfig) {
		c.Binary = binary
	}
}

// WithAccelProxy passes a proxy to the downloader.
func WithAccelProxy(proxy string) s3types.AccelOption {
	return func(c *s3types.AccelOptionConfig) {
		c.Proxy = proxy
	}
}

// WithURLExpiry sets the lifetime of the signed URL. Default is 20 minutes.
func WithURLExpiry(expires time.Duration) s3types.AccelOption {
	return func(c *s3types.AccelOptionConfig) {
		if expires > 0 {
			c.Expires = expires
		}
	}
}

// WithSplit sets how the downloader splits the object: the number of
// connections, the smallest piece it will split off, and the connections
// per server.
func WithSplit(split int, minSplitSize string, maxConnectionPerServer int) s3types.AccelOption {
	return func(c *s3types.AccelOptionConfig) {
		if split > 0 {
			c.Split = split
		}
		if minSplitSize != "" {
			c.MinSplitSize = minSplitSize
		}
		if maxConnectionPerServer > 0 {
			c.MaxConnectionPerServer = maxConnectionPerServer
		}
	}
}

// WithCheckCertificate makes the downloader verify TLS certificates.
func WithCheckCertificate(check bool) s3types.AccelOption {
	return func(c *s3types.AccelOptionConfig) {
		c.CheckCertificate = check
	}
}

// WithAccelOverwrite replaces an existing destination file instead of failing.
func WithAccelOverwrite(overwrite bool) s3types.AccelOption {
	return func(c *s3types.AccelOptionConfig) {
		c.Overwrite = overwrite
	}
}

// WithAccelOutput streams the downloader's console output to w while it runs.
func WithAccelOutput(w io.Writer) s3types.AccelOption {
	return func(c *s3types.AccelOptionConfig) {
		c.Output = w
	}
}
