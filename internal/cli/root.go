// Package cli implements the s3transfer command line.
package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/input-output-hk/catalyst-forge-libs/s3transfer"
	"github.com/input-output-hk/catalyst-forge-libs/s3transfer/s3types"
)

// Exit codes.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

// Transferer is the part of the transfer client the commands use.
type Transferer interface {
	UploadFile(ctx context.Context, bucket, key, localPath string, opts ...s3types.UploadOption) (*s3types.UploadResult, error)
	DownloadFile(ctx context.Context, bucket, key, localPath string, opts ...s3types.DownloadOption) (*s3types.DownloadResult, error)
	DownloadAccelerated(ctx context.Context, bucket, key, destDir, fileName string, opts ...s3types.AccelOption) (*s3types.DownloadResult, error)
}

// ClientFactory creates the transfer client for one command run.
type ClientFactory func(ctx context.Context, opts ...s3types.Option) (Transferer, error)

// DefaultClientFactory builds a real S3 client.
func DefaultClientFactory(ctx context.Context, opts ...s3types.Option) (Transferer, error) {
	client, err := s3transfer.New(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// usageError marks bad invocations so they exit with ExitUsage.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

// loggedError marks failures that were already written to the log.
type loggedError struct {
	err error
}

func (e *loggedError) Error() string { return e.err.Error() }
func (e *loggedError) Unwrap() error { return e.err }

// app carries state shared by the commands of one invocation.
type app struct {
	newClient ClientFactory
	v         *viper.Viper
	stderr    io.Writer

	configFile string
	envFile    string

	cfg      *Config
	log      *logrus.Logger
	registry *prometheus.Registry
}

// NewRootCommand returns the s3transfer command tree.
func NewRootCommand(newClient ClientFactory, stderr io.Writer) *cobra.Command {
	a := &app{newClient: newClient, v: viper.New(), stderr: stderr}
	setDefaults(a.v)

	root := &cobra.Command{
		Use:   "s3transfer",
		Short: "Parallel chunked transfers to and from S3",
		Long: `s3transfer moves large files to and from S3 in parallel parts.

Uploads are sent as a multipart upload whose parts are retried on their own;
the object appears only if every part arrived. Downloads are split into byte
ranges written straight into the destination file.

Credentials are read from AWS_ACCESS_KEY and AWS_SECRET_ACCESS_KEY, from the
environment or a .env file. Every other flag can also be set as
S3TRANSFER_<FLAG> (dashes become underscores) or in a YAML config file.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) > 0 {
				return &usageError{err: fmt.Errorf("unknown command %q", args[0])}
			}
			return nil
		},
		RunE: func(*cobra.Command, []string) error {
			return &usageError{err: stderrors.New("missing command")}
		},
	}
	root.SetErr(stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	pf := root.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "YAML config file")
	pf.StringVar(&a.envFile, "env-file", ".env", "dotenv file with credentials")
	pf.String("region", "us-east-1", "AWS region")
	pf.String("endpoint", "", "custom S3 endpoint URL")
	pf.Bool("path-style", false, "use path-style addressing")
	pf.String("proxy", "", "HTTP(S) proxy for all store traffic")
	pf.Int("concurrency", 0, "parts in flight (default 40 for uploads, 10 for downloads)")
	pf.Int("max-retries", 10, "retries per part after the first attempt")
	pf.Duration("part-timeout", 0, "timeout for a single part attempt (0 = none)")
	pf.Duration("timeout", 0, "timeout for the whole transfer (0 = none)")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.String("log-format", "text", "log format (text or json)")
	pf.String("metrics-textfile", "", "write transfer metrics to this file in Prometheus text format")

	root.AddCommand(a.uploadCommand(), a.downloadCommand())
	root.CompletionOptions.DisableDefaultCmd = true
	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if !cmd.HasParent() {
		return nil
	}
	if err := loadDotEnv(a.envFile); err != nil {
		return err
	}

	cfg, err := loadConfig(a.v, cmd.Flags(), a.configFile)
	if err != nil {
		return err
	}

	log, err := newLogger(a.stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return &usageError{err: err}
	}
	a.log = log

	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	if cfg.MetricsTextfile != "" {
		a.registry = prometheus.NewRegistry()
	}
	return nil
}

// client builds the transfer client from the resolved configuration.
func (a *app) client(ctx context.Context) (Transferer, error) {
	opts := []s3types.Option{
		s3transfer.WithRegion(a.cfg.Region),
		s3transfer.WithCredentials(a.cfg.AccessKey, a.cfg.SecretKey, ""),
		s3transfer.WithForcePathStyle(a.cfg.PathStyle),
		s3transfer.WithMaxRetries(a.cfg.MaxRetries),
		s3transfer.WithPartTimeout(a.cfg.PartTimeout),
		s3transfer.WithTransferTimeout(a.cfg.Timeout),
		s3transfer.WithACL(s3types.ObjectACL(a.cfg.ACL)),
		s3transfer.WithLogger(a.log),
	}
	if a.cfg.Endpoint != "" {
		opts = append(opts, s3transfer.WithEndpoint(a.cfg.Endpoint))
	}
	if a.cfg.Proxy != "" {
		opts = append(opts, s3transfer.WithProxy(a.cfg.Proxy))
	}
	if a.cfg.Concurrency > 0 {
		opts = append(opts,
			s3transfer.WithUploadConcurrency(a.cfg.Concurrency),
			s3transfer.WithDownloadConcurrency(a.cfg.Concurrency),
		)
	}
	if a.registry != nil {
		opts = append(opts, s3transfer.WithRegisterer(a.registry))
	}
	return a.newClient(ctx, opts...)
}

// finish writes the metrics file, if one was requested, and logs a failed run.
// Metrics are written for failed runs too.
func (a *app) finish(err error, msg string) error {
	if a.registry != nil {
		if werr := prometheus.WriteToTextfile(a.cfg.MetricsTextfile, a.registry); werr != nil {
			a.log.WithError(werr).Warn("failed to write metrics")
		}
	}
	if err == nil {
		return nil
	}
	a.log.WithError(err).Error(msg)
	return &loggedError{err: err}
}

// rangeArgs is cobra.RangeArgs reporting a usage error.
func rangeArgs(lo, hi int) cobra.PositionalArgs {
	check := cobra.RangeArgs(lo, hi)
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return &usageError{err: err}
		}
		return nil
	}
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context, args []string, newClient ClientFactory, stderr io.Writer) int {
	root := NewRootCommand(newClient, stderr)
	root.SetArgs(args)

	cmd, err := root.ExecuteContextC(ctx)
	if err == nil {
		return ExitOK
	}

	var uerr *usageError
	if stderrors.As(err, &uerr) {
		fmt.Fprintf(stderr, "Error: %v\n\n", err)
		fmt.Fprint(stderr, cmd.UsageString())
		return ExitUsage
	}

	var lerr *loggedError
	if !stderrors.As(err, &lerr) {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return ExitFailure
}
