// Command s3transfer uploads and downloads large files to and from S3 in
// parallel parts.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/input-output-hk/catalyst-forge-libs/s3transfer/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Execute(ctx, os.Args[1:], cli.DefaultClientFactory, os.Stderr)
	stop()
	os.Exit(code)
}
