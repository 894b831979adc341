package s3transfer

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/sirupsen/logrus"

	"github.com/input-output-hk/catalyst-forge-libs/s3transfer/errors"
	"github.com/input-output-hk/catalyst-forge-libs/s3transfer/internal/executor"
	"github.com/input-output-hk/catalyst-forge-libs/s3transfer/internal/metrics"
	"github.com/input-output-hk/catalyst-forge-libs/s3transfer/internal/s3api"
	"github.com/input-output-hk/catalyst-forge-libs/s3transfer/internal/transfer/multipart"
	"github.com/input-output-hk/catalyst-forge-libs/s3transfer/internal/transfer/ranged"
	"github.com/input-output-hk/catalyst-forge-libs/s3transfer/internal/transfer/retry"
	"github.com/input-output-hk/catalyst-forge-libs/s3transfer/s3types"
)

// DefaultRegion is used when neither the options nor the environment name a region.
const DefaultRegion = "us-east-1"

// Client transfers objects between a filesystem and an S3 bucket.
// It is safe for concurrent use; each transfer gets its own worker pool.
type Client struct {
	// s3Client is shared by every part worker
	s3Client s3api.S3API

	// presigner signs GET URLs for accelerated downloads; nil when unavailable
	presigner s3api.Presigner

	// runner starts the external downloader
	runner executor.Runner

	cfg     s3types.ClientConfig
	logger  logrus.FieldLogger
	metrics *metrics.Metrics

	// mu protects fs
	mu sync.RWMutex
	fs billy.Filesystem
}

func defaultConfig() s3types.ClientConfig {
	return s3types.ClientConfig{
		MaxRetries:          retry.DefaultMaxRetries,
		RetryBaseDelay:      retry.DefaultBaseDelay,
		RetryMaxDelay:       retry.DefaultMaxDelay,
		UploadConcurrency:   multipart.DefaultConcurrency,
		DownloadConcurrency: ranged.DefaultConcurrency,
		ACL:                 s3types.ACLPrivate,
	}
}

// New creates a Client. Credentials come from WithCredentials when given and
// from the default AWS chain otherwise.
//
// Example:
//
//	client, err := s3transfer.New(ctx,
//	    s3transfer.WithRegion("us-west-2"),
//	    s3transfer.WithMaxRetries(3),
//	)
func New(ctx context.Context, opts ...s3types.Option) (*Client, error) {
	clientCfg := defaultConfig()
	for _, opt := range opts {
		opt(&clientCfg)
	}

	cfg, err := loadAWSConfig(ctx, &clientCfg)
	if err != nil {
		return nil, errors.NewError("client initialization", err)
	}

	var s3Opts []func(*s3.Options)
	if clientCfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}
	if clientCfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(clientCfg.Endpoint)
		})
	}

	s3Client := s3.NewFromConfig(cfg, s3Opts...)
	return newClient(s3Client, s3.NewPresignClient(s3Client), clientCfg), nil
}

// NewWithClient creates a Client around an existing S3API implementation.
// This is primarily used for testing with mocked clients. Accelerated
// downloads are available only when s3Client is an *s3.Client.
func NewWithClient(s3Client s3api.S3API, opts ...s3types.Option) *Client {
	clientCfg := defaultConfig()
	for _, opt := range opts {
		opt(&clientCfg)
	}

	var presigner s3api.Presigner
	if raw, ok := s3Client.(*s3.Client); ok {
		presigner = s3.NewPresignClient(raw)
	}
	return newClient(s3Client, presigner, clientCfg)
}

func newClient(s3Client s3api.S3API, presigner s3api.Presigner, cfg s3types.ClientConfig) *Client {
	filesystem := cfg.Filesystem
	if filesystem == nil {
		filesystem = osfs.New("/")
	}

	logger := cfg.Logger
	if logger == nil {
		l := logrus.New()
		l.SetOutput(os.Stderr)
		l.SetLevel(logrus.WarnLevel)
		logger = l
	}

	return &Client{
		s3Client:  s3Client,
		presigner: presigner,
		runner:    executor.New(),
		cfg:       cfg,
		logger:    logger,
		metrics:   metrics.New(cfg.Registerer),
		fs:        filesystem,
	}
}

func loadAWSConfig(ctx context.Context, c *s3types.ClientConfig) (aws.Config, error) {
	if c.CustomAWSConfig != nil {
		cfg := c.CustomAWSConfig.Copy()
		if c.Region != "" {
			cfg.Region = c.Region
		}
		return cfg, nil
	}

	var loadOpts []func(*config.LoadOptions) error
	if c.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(c.Region))
	}
	if c.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AccessKeyID, c.SecretAccessKey, c.SessionToken),
		))
	}
	if c.SDKRetryAttempts > 0 {
		loadOpts = append(loadOpts, config.WithRetryMaxAttempts(c.SDKRetryAttempts))
	}

	httpClient, err := buildHTTPClient(c)
	if err != nil {
		return aws.Config{}, err
	}
	if httpClient != nil {
		loadOpts = append(loadOpts, config.WithHTTPClient(httpClient))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return aws.Config{}, err
	}
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}
	return cfg, nil
}

// buildHTTPClient returns nil when the SDK default client will do.
func buildHTTPClient(c *s3types.ClientConfig) (aws.HTTPClient, error) {
	if c.CustomHTTPClient != nil {
		return c.CustomHTTPClient, nil
	}
	if c.Proxy == "" && c.Timeout <= 0 {
		return nil, nil
	}

	client := awshttp.NewBuildableClient()
	if c.Timeout > 0 {
		client = client.WithTimeout(c.Timeout)
	}
	if c.Proxy != "" {
		proxyURL, err := url.Parse(c.Proxy)
		if err != nil || proxyURL.Host == "" {
			return nil, errors.NewError("client initialization", errors.ErrInvalidInput).
				WithMessage("invalid proxy URL " + c.Proxy)
		}
		client = client.WithTransportOptions(func(tr *http.Transport) {
			tr.Proxy = http.ProxyURL(proxyURL)
		})
	}
	return client, nil
}

// SetFilesystem sets the filesystem used for local files.
func (c *Client) SetFilesystem(filesystem billy.Filesystem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fs = filesystem
}

func (c *Client) filesystem() billy.Filesystem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fs
}

// Close is a no-op that always returns nil. The client holds no resources
// of its own; connections belong to the SDK's HTTP transport. Close is kept
// so callers can treat the client like the other closable clients they defer.
func (c *Client) Close() error {
	return nil
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
