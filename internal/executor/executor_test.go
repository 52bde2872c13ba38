package executor_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wheresmyhair/Shell-Queue-Manager/internal/domain"
	"github.com/wheresmyhair/Shell-Queue-Manager/internal/executor"
)

// syncBuffer is a goroutine-safe sink: the executor writes output from the
// process's pipe goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/bash\n"+body), 0o755))
	return path
}

func TestRun_Success(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, "ok.sh", "echo hello\necho world >&2\n")

	task := domain.NewTask(path, false, "task-ok")
	sink := &syncBuffer{}
	res := executor.New(task, sink, nil).Run(context.Background())

	assert.Equal(t, 0, res.ExitCode)
	assert.Empty(t, res.Error)
	assert.False(t, res.Killed)
	assert.Equal(t, "task-ok", res.TaskID)
	assert.Contains(t, res.Output, "hello")
	assert.Contains(t, res.Output, "world", "stderr is merged into the combined output")
	assert.Equal(t, res.Output, sink.String(), "sink sees the same bytes as the result")

	// The log file lands next to the script, named after the task.
	wantLog := filepath.Join(dir, "task-ok.log")
	assert.Equal(t, wantLog, res.OutputFile)
	data, err := os.ReadFile(wantLog)
	require.NoError(t, err)
	assert.Equal(t, res.Output, string(data))
}

func TestRun_NonzeroExit(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, "fail.sh", "echo before failure\nexit 3\n")

	task := domain.NewTask(path, false, "task-fail")
	res := executor.New(task, nil, nil).Run(context.Background())

	assert.Equal(t, 3, res.ExitCode)
	assert.Empty(t, res.Error, "nonzero exit is not a launch error")
	assert.Contains(t, res.Output, "before failure")
}

func TestRun_MissingScript(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.sh")
	task := domain.NewTask(path, false, "task-missing")
	res := executor.New(task, nil, nil).Run(context.Background())

	assert.Equal(t, -1, res.ExitCode)
	assert.Contains(t, res.Error, path)
	assert.Empty(t, res.Output)
}

func TestRun_DirectoryPath(t *testing.T) {
	dir := t.TempDir()
	task := domain.NewTask(dir, false, "task-dir")
	res := executor.New(task, nil, nil).Run(context.Background())

	assert.Equal(t, -1, res.ExitCode)
	assert.NotEmpty(t, res.Error)
}

func TestRun_FixesPermissions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "noexec.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/bash\necho ran\n"), 0o644))

	task := domain.NewTask(path, false, "task-noexec")
	res := executor.New(task, nil, nil).Run(context.Background())

	assert.Equal(t, 0, res.ExitCode)
	assert.Contains(t, res.Output, "ran")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode().Perm()&0o111)
}

func TestTerminate_BeforeStart(t *testing.T) {
	task := domain.NewTask("/tmp/x.sh", false, "t")
	e := executor.New(task, nil, nil)
	assert.ErrorIs(t, e.Terminate(), executor.ErrNotStarted)
}

func TestTerminate_KillsRunningScript(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, "sleep.sh", "echo started\nsleep 30\necho never\n")

	task := domain.NewTask(path, false, "task-sleep")
	sink := &syncBuffer{}
	e := executor.New(task, sink, nil)

	resCh := make(chan *domain.Result, 1)
	go func() { resCh <- e.Run(context.Background()) }()

	// Wait for the first line so the signal lands mid-run, not mid-startup.
	require.Eventually(t, func() bool {
		return strings.Contains(sink.String(), "started")
	}, 5*time.Second, 20*time.Millisecond)
	require.NoError(t, e.Terminate())

	select {
	case res := <-resCh:
		assert.True(t, res.Killed)
		assert.NotEqual(t, 0, res.ExitCode)
		assert.Contains(t, res.Output, "started")
		assert.NotContains(t, res.Output, "never")
	case <-time.After(10 * time.Second):
		t.Fatal("terminated script did not exit in time")
	}
}
