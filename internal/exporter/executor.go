package exporter

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"time"
)

// CommandRunner is the interface for running commands.
type CommandRunner interface {
	Run(ctx context.Context, dir, name string, args []string, stdin io.Reader) (stdout, stderr []byte, err error)
	Start(ctx context.Context, dir, name string, args []string, stdin io.Reader) (stdout, stderr io.ReadCloser, wait func() error, err error)
}

const (
	// defaultWaitDelay bounds how long Wait blocks on output pipes after the
	// process exited or was killed. Children of the facility may hold them.
	defaultWaitDelay = 5 * time.Second

	// maxLineSize is the longest stdout line Stream forwards.
	maxLineSize = 1 << 20
)

// ExecCommandRunner uses os/exec.
type ExecCommandRunner struct {
	// WaitDelay overrides defaultWaitDelay when positive.
	WaitDelay time.Duration
}

func (r ExecCommandRunner) command(ctx context.Context, dir, name string, args []string, stdin io.Reader) *exec.Cmd {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdin = stdin
	cmd.WaitDelay = defaultWaitDelay
	if r.WaitDelay > 0 {
		cmd.WaitDelay = r.WaitDelay
	}
	return cmd
}

// Run runs a command.
func (r ExecCommandRunner) Run(ctx context.Context, dir, name string, args []string, stdin io.Reader) (stdout, stderr []byte, err error) {
	cmd := r.command(ctx, dir, name, args, stdin)

	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	err = waitResult(name, cmd.Run())
	return outBuf.Bytes(), errBuf.Bytes(), err
}

// Start starts a command. The returned readers reach EOF once the command
// has been waited for, even if a child process still holds the pipes.
func (r ExecCommandRunner) Start(ctx context.Context, dir, name string, args []string, stdin io.Reader) (stdout, stderr io.ReadCloser, wait func() error, err error) {
	cmd := r.command(ctx, dir, name, args, stdin)

	stdoutR, stdoutW := io.Pipe()
	stderrR, stderrW := io.Pipe()
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	if err := cmd.Start(); err != nil {
		stdoutW.Close()
		stderrW.Close()
		return nil, nil, nil, err
	}

	var waitErr error
	exited := make(chan struct{})
	go func() {
		waitErr = waitResult(name, cmd.Wait())
		stdoutW.Close()
		stderrW.Close()
		close(exited)
	}()

	wait = func() error {
		<-exited
		return waitErr
	}

	return stdoutR, stderrR, wait, nil
}

// waitResult treats a clean exit whose pipes outlived WaitDelay as success.
func waitResult(name string, err error) error {
	if errors.Is(err, exec.ErrWaitDelay) {
		slog.Warn("Command exited but its output pipes stayed open", "command", name)
		return nil
	}
	return err
}

// Executor runs commands.
type Executor struct {
	runner     CommandRunner
	binaryPath string
	timeout    time.Duration
}

// NewExecutor creates an executor. binary may be a bare name looked up in
// PATH or a path to an executable.
func NewExecutor(binary string, timeout time.Duration) (*Executor, error) {
	binaryPath, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrBinaryNotFound, binary, err)
	}

	return &Executor{
		binaryPath: binaryPath,
		timeout:    timeout,
		runner:     ExecCommandRunner{},
	}, nil
}

// NewExecutorWithRunner creates an executor with a custom runner.
func NewExecutorWithRunner(binaryPath string, timeout time.Duration, runner CommandRunner) *Executor {
	return &Executor{
		binaryPath: binaryPath,
		timeout:    timeout,
		runner:     runner,
	}
}

// BinaryPath returns the resolved binary path.
func (e *Executor) BinaryPath() string {
	return e.binaryPath
}

// Execute runs the command in dir and returns output.
func (e *Executor) Execute(ctx context.Context, dir string, args []string, stdin io.Reader) (stdout, stderr []byte, err error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	return e.runner.Run(ctx, dir, e.binaryPath, args, stdin)
}

// Stream runs the command in dir and streams stdout line by line. Lines end
// at '\n' or at a bare '\r', so carriage-return progress bars arrive as
// separate chunks. Empty lines are dropped.
func (e *Executor) Stream(ctx context.Context, dir string, args []string, stdin io.Reader) (<-chan StreamChunk, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)

	stdout, stderr, wait, err := e.runner.Start(ctx, dir, e.binaryPath, args, stdin)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("exporter: executor: failed to start command: %w", err)
	}

	ch := make(chan StreamChunk, 32)

	go func() {
		defer close(ch)
		defer cancel()

		// Read stderr in background
		stderrBuf := new(bytes.Buffer)
		stderrDone := make(chan struct{})
		go func() {
			if _, err := io.Copy(stderrBuf, stderr); err != nil {
				slog.Error("Failed to read stderr", "error", err)
			}
			close(stderrDone)
		}()

		// finish keeps stdout drained so the command never blocks on a full
		// pipe, then collects its exit status.
		finish := func() error {
			go func() { _, _ = io.Copy(io.Discard, stdout) }()
			err := wait()
			<-stderrDone
			return err
		}

		// Stream stdout
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		scanner.Split(scanLines)
		for scanner.Scan() {
			if len(scanner.Bytes()) == 0 {
				continue
			}

			line := append(bytes.Clone(scanner.Bytes()), '\n')
			select {
			case <-ctx.Done():
				_ = finish()
				ch <- StreamChunk{Error: ctx.Err(), Done: true}
				return
			case ch <- StreamChunk{Data: line}:
			}
		}

		if err := scanner.Err(); err != nil {
			_ = finish()
			ch <- StreamChunk{Error: fmt.Errorf("exporter: executor: read stdout: %w", err), Done: true}
			return
		}

		err := finish()

		if err != nil {
			if s := stderrBuf.String(); s != "" {
				ch <- StreamChunk{Error: fmt.Errorf("%w: %s", err, s), Done: true}
			} else {
				ch <- StreamChunk{Error: err, Done: true}
			}
		} else {
			ch <- StreamChunk{Done: true}
		}
	}()

	return ch, nil
}

// scanLines is bufio.ScanLines that also ends a line at a bare '\r'.
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\n' {
			return i + 1, data[:i], nil
		}
		if i+1 < len(data) {
			if data[i+1] == '\n' {
				return i + 2, data[:i], nil
			}
			return i + 1, data[:i], nil
		}
		if atEOF {
			return i + 1, data[:i], nil
		}
		// A trailing '\r' may be the first half of "\r\n".
		return 0, nil, nil
	}

	if atEOF {
		return len(data), data, nil
	}

	return 0, nil, nil
}
