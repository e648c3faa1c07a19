package exporter

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) Run(ctx context.Context, dir, name string, args []string, stdin io.Reader) ([]byte, []byte, error) {
	a := m.Called(ctx, dir, name, args, stdin)
	stdout, _ := a.Get(0).([]byte)
	stderr, _ := a.Get(1).([]byte)
	return stdout, stderr, a.Error(2)
}

func (m *MockRunner) Start(ctx context.Context, dir, name string, args []string, stdin io.Reader) (io.ReadCloser, io.ReadCloser, func() error, error) {
	a := m.Called(ctx, dir, name, args, stdin)
	stdout, _ := a.Get(0).(io.ReadCloser)
	stderr, _ := a.Get(1).(io.ReadCloser)
	wait, _ := a.Get(2).(func() error)
	return stdout, stderr, wait, a.Error(3)
}

func pipe(s string) io.ReadCloser {
	return io.NopCloser(strings.NewReader(s))
}

func drain(t *testing.T, ch <-chan StreamChunk) (lines []string, last StreamChunk) {
	t.Helper()

	timeout := time.After(5 * time.Second)
	for {
		select {
		case chunk, ok := <-ch:
			if !ok {
				return lines, last
			}
			if chunk.Done {
				last = chunk
				continue
			}
			lines = append(lines, string(chunk.Data))
		case <-timeout:
			t.Fatal("stream did not finish")
		}
	}
}

// writeScript writes an executable shell script and returns its path.
func writeScript(t *testing.T, body string) string {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not executable on windows")
	}

	path := filepath.Join(t.TempDir(), "yolo")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func TestNewExecutor_BinaryNotFound(t *testing.T) {
	_, err := NewExecutor("edgeport-no-such-binary", time.Second)
	assert.ErrorIs(t, err, ErrBinaryNotFound)
}

func TestExecutor_Execute(t *testing.T) {
	runner := new(MockRunner)
	args := []string{"version"}
	runner.On("Run", mock.Anything, "/work", "/usr/bin/yolo", args, nil).
		Return([]byte("8.3.0\n"), []byte(nil), nil).Once()

	e := NewExecutorWithRunner("/usr/bin/yolo", time.Minute, runner)
	stdout, _, err := e.Execute(context.Background(), "/work", args, nil)

	require.NoError(t, err)
	assert.Equal(t, "8.3.0\n", string(stdout))
	assert.Equal(t, "/usr/bin/yolo", e.BinaryPath())
	runner.AssertExpectations(t)
}

func TestExecutor_Stream(t *testing.T) {
	runner := new(MockRunner)
	wait := func() error { return nil }
	runner.On("Start", mock.Anything, "/work", "yolo", []string{"export"}, nil).
		Return(pipe("Ultralytics 8.3.0\nexport success\n"), pipe(""), wait, nil).Once()

	e := NewExecutorWithRunner("yolo", time.Minute, runner)
	ch, err := e.Stream(context.Background(), "/work", []string{"export"}, nil)
	require.NoError(t, err)

	lines, last := drain(t, ch)
	assert.Equal(t, []string{"Ultralytics 8.3.0\n", "export success\n"}, lines)
	assert.True(t, last.Done)
	assert.NoError(t, last.Error)
	runner.AssertExpectations(t)
}

func TestExecutor_StreamFailureCarriesStderr(t *testing.T) {
	runner := new(MockRunner)
	wait := func() error { return errors.New("exit status 1") }
	runner.On("Start", mock.Anything, "", "yolo", []string{"export"}, nil).
		Return(pipe("starting\n"), pipe("ModuleNotFoundError: No module named 'tensorflow'"), wait, nil).Once()

	e := NewExecutorWithRunner("yolo", time.Minute, runner)
	ch, err := e.Stream(context.Background(), "", []string{"export"}, nil)
	require.NoError(t, err)

	_, last := drain(t, ch)
	require.Error(t, last.Error)
	assert.Contains(t, last.Error.Error(), "exit status 1")
	assert.Contains(t, last.Error.Error(), "tensorflow")
}

func TestExecutor_StreamStartFailure(t *testing.T) {
	runner := new(MockRunner)
	runner.On("Start", mock.Anything, "", "yolo", []string(nil), nil).
		Return(nil, nil, nil, errors.New("exec format error")).Once()

	e := NewExecutorWithRunner("yolo", time.Minute, runner)
	ch, err := e.Stream(context.Background(), "", nil, nil)

	assert.Nil(t, ch)
	assert.ErrorContains(t, err, "exec format error")
}

func TestExecutor_StreamSplitsCarriageReturns(t *testing.T) {
	runner := new(MockRunner)
	wait := func() error { return nil }
	runner.On("Start", mock.Anything, "", "yolo", []string{"export"}, nil).
		Return(pipe("25%\r50%\r\r100%\r\nexport success\n"), pipe(""), wait, nil).Once()

	e := NewExecutorWithRunner("yolo", time.Minute, runner)
	ch, err := e.Stream(context.Background(), "", []string{"export"}, nil)
	require.NoError(t, err)

	lines, last := drain(t, ch)
	assert.Equal(t, []string{"25%\n", "50%\n", "100%\n", "export success\n"}, lines)
	assert.NoError(t, last.Error)
}

func TestScanLines(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"newlines", "a\nb\n", []string{"a", "b"}},
		{"crlf", "a\r\nb", []string{"a", "b"}},
		{"bare carriage return", "a\rb\r", []string{"a", "b"}},
		{"empty lines", "\r\n\n", []string{"", ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scanner := bufio.NewScanner(strings.NewReader(tt.input))
			scanner.Split(scanLines)

			var got []string
			for scanner.Scan() {
				got = append(got, scanner.Text())
			}

			require.NoError(t, scanner.Err())
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExecutor_StreamLongLine(t *testing.T) {
	script := writeScript(t, "head -c 400000 /dev/zero | tr '\\000' x\necho")

	e, err := NewExecutor(script, time.Minute)
	require.NoError(t, err)

	ch, err := e.Stream(context.Background(), t.TempDir(), nil, nil)
	require.NoError(t, err)

	lines, last := drain(t, ch)
	require.Len(t, lines, 1)
	assert.Len(t, lines[0], 400001)
	assert.True(t, last.Done)
	assert.NoError(t, last.Error)
}

func TestExecutor_StreamOverlongLineDoesNotHang(t *testing.T) {
	script := writeScript(t, "head -c 2000000 /dev/zero | tr '\\000' x")

	e, err := NewExecutor(script, time.Minute)
	require.NoError(t, err)

	ch, err := e.Stream(context.Background(), t.TempDir(), nil, nil)
	require.NoError(t, err)

	// drain fails the test if the command is left blocked on stdout
	_, last := drain(t, ch)
	assert.ErrorIs(t, last.Error, bufio.ErrTooLong)
}

func TestExecutor_StreamOrphanedPipes(t *testing.T) {
	// The background sleep inherits stdout and stderr and outlives the script
	script := writeScript(t, "sleep 3 &\necho done")

	e := NewExecutorWithRunner(script, time.Minute, ExecCommandRunner{WaitDelay: 100 * time.Millisecond})

	start := time.Now()
	ch, err := e.Stream(context.Background(), t.TempDir(), nil, nil)
	require.NoError(t, err)

	lines, last := drain(t, ch)
	assert.Equal(t, []string{"done\n"}, lines)
	assert.NoError(t, last.Error)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestExecCommandRunner_Run(t *testing.T) {
	script := writeScript(t, "echo out\necho err >&2")

	stdout, stderr, err := ExecCommandRunner{}.Run(context.Background(), t.TempDir(), script, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "out\n", string(stdout))
	assert.Equal(t, "err\n", string(stderr))
}
