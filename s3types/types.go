// Package s3types provides shared type definitions for the transfer module.
package s3types

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/go-git/go-billy/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// StorageClass represents the S3 storage class for objects.
type StorageClass string

// Predefined S3 storage classes
const (
	// StorageClassStandard is the default S3 storage class
	StorageClassStandard StorageClass = "STANDARD"

	// StorageClassStandardIA provides infrequent access storage
	StorageClassStandardIA StorageClass = "STANDARD_IA"

	// StorageClassOneZoneIA provides one zone infrequent access storage
	StorageClassOneZoneIA StorageClass = "ONEZONE_IA"

	// StorageClassIntelligentTiering provides intelligent tiering storage
	StorageClassIntelligentTiering StorageClass = "INTELLIGENT_TIERING"

	// StorageClassGlacierIR provides Glacier Instant Retrieval storage
	StorageClassGlacierIR StorageClass = "GLACIER_IR"
)

// SSEType represents the server-side encryption type for objects.
type SSEType string

// Predefined server-side encryption types
const (
	// SSES3 uses S3-managed encryption keys
	SSES3 SSEType = "AES256"

	// SSEKMS uses AWS KMS-managed encryption keys
	SSEKMS SSEType = "aws:kms"
)

// SSEConfig contains server-side encryption configuration.
type SSEConfig struct {
	// Type is the encryption type
	Type SSEType

	// KMSKeyID is the KMS key ID (SSE-KMS only)
	KMSKeyID string
}

// ObjectACL represents the canned access control list applied after an upload commits.
type ObjectACL string

// Predefined object ACLs
const (
	// ACLPrivate grants private access (default)
	ACLPrivate ObjectACL = "private"

	// ACLPublicRead grants public read access
	ACLPublicRead ObjectACL = "public-read"

	// ACLAuthenticatedRead grants authenticated users read access
	ACLAuthenticatedRead ObjectACL = "authenticated-read"

	// ACLOwnerRead grants bucket owner read access
	ACLOwnerRead ObjectACL = "bucket-owner-read"

	// ACLOwnerFullControl grants bucket owner full control
	ACLOwnerFullControl ObjectACL = "bucket-owner-full-control"
)

// Direction is the direction of a transfer.
type Direction string

// Transfer directions
const (
	DirectionUpload   Direction = "upload"
	DirectionDownload Direction = "download"
)

// TransferJob describes one upload or download invocation.
type TransferJob struct {
	// ID identifies the transfer in logs
	ID string

	// Bucket is the S3 bucket
	Bucket string

	// Key is the S3 object key
	Key string

	// TotalSize is the object size in bytes
	TotalSize int64

	// PartCount is the number of planned parts
	PartCount int

	// Direction is upload or download
	Direction Direction
}

// PartSpec is one contiguous byte range of an object.
// Indexes are 1-based and contiguous; ranges never overlap.
type PartSpec struct {
	Index  int
	Offset int64
	Length int64
}

// End returns the inclusive last byte of the part.
func (p PartSpec) End() int64 {
	return p.Offset + p.Length - 1
}

// HTTPRange returns the HTTP Range header value for the part.
func (p PartSpec) HTTPRange() string {
	return fmt.Sprintf("bytes=%d-%d", p.Offset, p.End())
}

// PartStatus is the terminal status of a part.
type PartStatus int

// Part statuses
const (
	PartFailed PartStatus = iota
	PartSucceeded
)

// String implements fmt.Stringer.
func (s PartStatus) String() string {
	if s == PartSucceeded {
		return "succeeded"
	}
	return "failed"
}

// PartResult is the outcome of one part, written once by the worker that owns it.
type PartResult struct {
	Index    int
	Status   PartStatus
	Bytes    int64
	Attempts int
	Duration time.Duration

	// ETag is set for uploaded parts
	ETag string

	Err error
}

// SessionState is the state of a multipart upload session.
type SessionState int

// Session states
const (
	SessionInit SessionState = iota
	SessionPartsInFlight
	SessionCompleting
	SessionCompleted
	SessionAborting
	SessionAborted
)

var sessionStateNames = [...]string{
	SessionInit:          "init",
	SessionPartsInFlight: "parts_in_flight",
	SessionCompleting:    "completing",
	SessionCompleted:     "completed",
	SessionAborting:      "aborting",
	SessionAborted:       "aborted",
}

// String implements fmt.Stringer.
func (s SessionState) String() string {
	if int(s) < len(sessionStateNames) {
		return sessionStateNames[s]
	}
	return fmt.Sprintf("SessionState(%d)", int(s))
}

// Terminal reports whether the session has been finalised.
func (s SessionState) Terminal() bool {
	return s == SessionCompleted || s == SessionAborted
}

// MultipartSession is an open multipart upload owned by one coordinator.
// Workers only read ID; the coordinator mutates the rest after the join barrier.
type MultipartSession struct {
	ID     string
	Bucket string
	Key    string

	// UploadedParts maps part number to ETag as reported by the store
	UploadedParts map[int32]string

	State SessionState
}

// ProgressTracker defines the interface for tracking transfer progress.
// Update may be called from several workers at once; implementations must be safe for concurrent use.
type ProgressTracker interface {
	// Update is called with the cumulative bytes transferred
	Update(bytesTransferred, totalBytes int64)

	// Complete is called when the transfer completes successfully
	Complete()

	// Error is called when the transfer fails
	Error(err error)
}

// UploadResult contains the result of an upload operation.
type UploadResult struct {
	// Key is the S3 object key that was uploaded
	Key string

	// Size is the size of the uploaded object in bytes
	Size int64

	// ETag is the S3 entity tag for the committed object
	ETag string

	// VersionID is the version ID if versioning is enabled
	VersionID string

	// Parts is the number of parts committed
	Parts int

	// Duration is how long the upload took
	Duration time.Duration

	// TransferID identifies the transfer in logs
	TransferID string
}

// DownloadResult contains the result of a download operation.
type DownloadResult struct {
	// Key is the S3 object key that was downloaded
	Key string

	// Size is the size of the downloaded object in bytes
	Size int64

	// ETag is the S3 entity tag for the downloaded object
	ETag string

	// Path is the local destination path
	Path string

	// Parts is the number of ranged requests issued
	Parts int

	// Duration is how long the download took
	Duration time.Duration

	// TransferID identifies the transfer in logs
	TransferID string
}

// Configuration types for functional options

// ClientConfig holds configuration for the transfer client.
type ClientConfig struct {
	Region         string
	Endpoint       string
	ForcePathStyle bool

	// Static credentials; when AccessKeyID is empty the default chain is used
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string

	// Proxy is an HTTP(S) proxy URL for all store traffic
	Proxy string

	// Timeout is the HTTP client timeout for a single request
	Timeout time.Duration

	// SDKRetryAttempts overrides the SDK's own retry attempts when positive
	SDKRetryAttempts int

	// MaxRetries is the number of retries per part after the first attempt
	MaxRetries int

	// RetryBaseDelay is the initial backoff between part attempts
	RetryBaseDelay time.Duration

	// RetryMaxDelay caps the backoff between part attempts
	RetryMaxDelay time.Duration

	UploadConcurrency   int
	DownloadConcurrency int

	// PartTimeout caps each part attempt; zero is unbounded
	PartTimeout time.Duration

	// TransferTimeout caps a whole transfer; zero is unbounded
	TransferTimeout time.Duration

	// MinPartSize is the upload part-size floor
	MinPartSize int64

	// ACL is applied to an uploaded object after it commits; empty skips it
	ACL ObjectACL

	CustomAWSConfig  *aws.Config
	CustomHTTPClient *http.Client
	Filesystem       billy.Filesystem
	Logger           logrus.FieldLogger
	Registerer       prometheus.Registerer
}

// UploadOptionConfig holds configuration for upload operations via functional options.
type UploadOptionConfig struct {
	ContentType     string
	Metadata        map[string]string
	StorageClass    StorageClass
	SSE             *SSEConfig
	ACL             *ObjectACL
	ProgressTracker ProgressTracker
	MinPartSize     int64
	Concurrency     int
	MaxRetries      *int
}

// DownloadOptionConfig holds configuration for download operations via functional options.
type DownloadOptionConfig struct {
	// Overwrite removes an existing destination instead of failing
	Overwrite bool

	// Parts is the number of ranged requests; zero uses the concurrency
	Parts int

	Concurrency     int
	ProgressTracker ProgressTracker
	MaxRetries      *int

	// VerifySize checks the bytes written against the object size and that the
	// object's size and ETag did not change during the download
	VerifySize bool
}

// AccelOptionConfig holds configuration for the external accelerated downloader.
type AccelOptionConfig struct {
	// Binary is the downloader executable, "aria2c" by default
	Binary string

	// Proxy is passed to the downloader as --all-proxy
	Proxy string

	// Expires is the signed URL lifetime
	Expires time.Duration

	Split                  int
	MinSplitSize           string
	MaxConnectionPerServer int
	CheckCertificate       bool

	// Overwrite removes an existing destination instead of failing
	Overwrite bool

	// Output receives the downloader's stdout and stderr while it runs
	Output io.Writer
}

// Option configures the transfer client.
type Option func(*ClientConfig)

// UploadOption configures a single upload.
type UploadOption func(*UploadOptionConfig)

// DownloadOption configures a single download.
type DownloadOption func(*DownloadOptionConfig)

// AccelOption configures a single accelerated download.
type AccelOption func(*AccelOptionConfig)
