// Package executor runs external programs with output capture, output
// streaming and context cancellation. It backs the accelerated download path,
// which hands the transfer to a separate downloader process.
package executor

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/input-output-hk/catalyst-forge-libs/s3transfer/errors"
)

// Result holds the output of a finished process.
type Result struct {
	Stdout   string
	Stderr   string
	Combined string
	ExitCode int
}

// Output returns the combined output when captured, otherwise stderr then stdout.
func (r *Result) Output() string {
	if r.Combined != "" {
		return r.Combined
	}
	return strings.TrimSpace(r.Stderr + "\n" + r.Stdout)
}

// Runner runs a program to completion.
type Runner interface {
	Run(ctx context.Context, program string, args []string, opts ...Option) (*Result, error)
}

// Options configures command execution behavior
type Options struct {
	// CaptureCombined interleaves both streams into Result.Combined
	CaptureCombined bool

	// Extra writers receiving the process output as it is produced
	StdoutWriter io.Writer
	StderrWriter io.Writer
}

// Option is a function that modifies Options
type Option func(*Options)

// CommandRunner runs programs with os/exec.
type CommandRunner struct {
	options Options
}

var _ Runner = (*CommandRunner)(nil)

// New creates a CommandRunner whose defaults are opts.
func New(opts ...Option) *CommandRunner {
	r := &CommandRunner{}
	for _, opt := range opts {
		opt(&r.options)
	}
	return r
}

// Run executes program with args and waits for it. A missing program or a
// non-zero exit is returned as *errors.ToolError carrying the captured output;
// the Result is returned in both cases.
func (r *CommandRunner) Run(ctx context.Context, program string, args []string, opts ...Option) (*Result, error) {
	options := r.mergeOptions(opts...)

	path, err := exec.LookPath(program)
	if err != nil {
		result := &Result{ExitCode: -1}
		return result, &errors.ToolError{Tool: program, ExitCode: -1, Err: err}
	}

	cmd := exec.CommandContext(ctx, path, args...)
	stdout, stderr, combined := setupOutputCapture(cmd, &options)

	runErr := cmd.Run()
	result := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Combined: combined.String(),
	}

	var exitErr *exec.ExitError
	switch {
	case runErr == nil:
		return result, nil
	case stderrors.As(runErr, &exitErr):
		result.ExitCode = exitErr.ExitCode()
	default:
		result.ExitCode = -1
	}

	if ctx.Err() != nil {
		runErr = fmt.Errorf("%w: %w", ctx.Err(), runErr)
	}
	return result, &errors.ToolError{
		Tool:     program,
		ExitCode: result.ExitCode,
		Output:   result.Output(),
		Err:      runErr,
	}
}

// setupOutputCapture configures stdout and stderr writers for the command.
// Output is always captured so failures can report it.
func setupOutputCapture(cmd *exec.Cmd, options *Options) (*bytes.Buffer, *bytes.Buffer, *bytes.Buffer) {
	var stdoutBuf, stderrBuf, combinedBuf bytes.Buffer

	stdoutWriters := []io.Writer{&stdoutBuf}
	stderrWriters := []io.Writer{&stderrBuf}
	if options.CaptureCombined {
		combined := &lockedWriter{w: &combinedBuf}
		stdoutWriters = []io.Writer{combined}
		stderrWriters = []io.Writer{combined}
	}

	// exec copies each stream on its own goroutine, so a writer shared by
	// both streams must be serialized.
	outW, errW := options.StdoutWriter, options.StderrWriter
	if outW != nil && outW == errW {
		shared := &lockedWriter{w: outW}
		outW, errW = shared, shared
	}
	if outW != nil {
		stdoutWriters = append(stdoutWriters, outW)
	}
	if errW != nil {
		stderrWriters = append(stderrWriters, errW)
	}

	cmd.Stdout = io.MultiWriter(stdoutWriters...)
	cmd.Stderr = io.MultiWriter(stderrWriters...)

	return &stdoutBuf, &stderrBuf, &combinedBuf
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func (r *CommandRunner) mergeOptions(opts ...Option) Options {
	merged := r.options
	for _, opt := range opts {
		opt(&merged)
	}
	return merged
}

// WithCombinedOutput interleaves stdout and stderr into Result.Combined.
func WithCombinedOutput() Option {
	return func(o *Options) {
		o.CaptureCombined = true
	}
}

// WithStdoutWriter streams stdout to w in addition to capturing it.
func WithStdoutWriter(w io.Writer) Option {
	return func(o *Options) {
		o.StdoutWriter = w
	}
}

// WithStderrWriter streams stderr to w in addition to capturing it.
func WithStderrWriter(w io.Writer) Option {
	return func(o *Options) {
		o.StderrWriter = w
	}
}
