// Package executor runs a single shell script to completion, capturing
// combined stdout+stderr incrementally into a caller-supplied sink and a
// per-task log file.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wheresmyhair/Shell-Queue-Manager/internal/domain"
)

// ErrNotStarted is returned by Terminate when no process is running.
var ErrNotStarted = errors.New("executor: no running process")

// shell is the interpreter scripts are spawned under.
const shell = "/bin/bash"

// Executor executes exactly one task. It is single-use: create one per run.
type Executor struct {
	task   *domain.Task
	sink   io.Writer
	logger *slog.Logger

	mu     sync.Mutex
	cmd    *exec.Cmd
	killed bool
}

// New creates an Executor for task. sink receives output bytes as they
// arrive and may be nil.
func New(task *domain.Task, sink io.Writer, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{task: task, sink: sink, logger: logger}
}

// Run executes the script and blocks until it terminates. No timeout is
// applied: scripts may run indefinitely. Per-task errors are captured in the
// result, never returned as Go errors; a launch failure is reported with
// ExitCode -1, distinct from a script that runs and exits nonzero.
func (e *Executor) Run(ctx context.Context) *domain.Result {
	_, span := otel.Tracer("executor").Start(ctx, "executor.run_script")
	defer span.End()
	span.SetAttributes(
		attribute.String("task.id", e.task.ID),
		attribute.String("task.script_path", e.task.ScriptPath),
	)

	res := &domain.Result{
		TaskID:     e.task.ID,
		ScriptPath: e.task.ScriptPath,
	}

	info, err := os.Stat(e.task.ScriptPath)
	if err != nil || info.IsDir() {
		res.ExitCode = -1
		res.Error = (&domain.ScriptNotFoundError{Path: e.task.ScriptPath}).Error()
		e.logger.Error("script not found", slog.String("script_path", e.task.ScriptPath))
		return res
	}

	// Best-effort repair: make the script executable if it is not.
	if info.Mode().Perm()&0o111 == 0 {
		e.logger.Warn("script is not executable, fixing permissions",
			slog.String("script_path", e.task.ScriptPath))
		if err := os.Chmod(e.task.ScriptPath, 0o755); err != nil {
			e.logger.Error("failed to make script executable", slog.String("error", err.Error()))
		}
	}

	// Output goes to the log file next to the script, the live sink and an
	// in-memory buffer for the final result, flushed as it arrives so a
	// crash mid-run still leaves partial output on disk.
	var buf bytes.Buffer
	writers := []io.Writer{&buf}

	logPath := filepath.Join(filepath.Dir(e.task.ScriptPath), e.task.ID+".log")
	logFile, err := os.Create(logPath)
	if err != nil {
		e.logger.Error("failed to create output file, capturing in memory only",
			slog.String("path", logPath), slog.String("error", err.Error()))
		logPath = ""
	} else {
		defer logFile.Close()
		writers = append(writers, logFile)
	}
	if e.sink != nil {
		writers = append(writers, e.sink)
	}

	cmd := exec.Command(shell, e.task.ScriptPath)
	// One shared writer for both streams; os/exec serializes writes when
	// Stdout and Stderr are the same value.
	out := io.MultiWriter(writers...)
	cmd.Stdout = out
	cmd.Stderr = out
	// Own process group, so Terminate reaches the script's children too.
	// Otherwise a child holding the output pipe keeps Wait blocked after
	// the interpreter dies.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	e.logger.Info("executing script",
		slog.String("task_id", e.task.ID),
		slog.String("script_path", e.task.ScriptPath),
	)

	e.mu.Lock()
	if err := cmd.Start(); err != nil {
		e.mu.Unlock()
		res.ExitCode = -1
		res.Error = fmt.Sprintf("failed to launch script: %v", err)
		span.RecordError(err)
		e.logger.Error("failed to launch script",
			slog.String("task_id", e.task.ID),
			slog.String("error", err.Error()),
		)
		return res
	}
	e.cmd = cmd
	e.mu.Unlock()

	waitErr := cmd.Wait()

	e.mu.Lock()
	res.Killed = e.killed
	e.mu.Unlock()

	res.Output = buf.String()
	res.OutputFile = logPath

	switch err := waitErr.(type) {
	case nil:
		res.ExitCode = 0
	case *exec.ExitError:
		res.ExitCode = err.ExitCode()
	default:
		res.ExitCode = -1
		res.Error = waitErr.Error()
	}
	return res
}

// Terminate sends SIGTERM to the running process group and marks the run as
// killed so its result classifies as Canceled rather than Failed. The run's
// read loop drains remaining output before Run returns.
func (e *Executor) Terminate() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cmd == nil || e.cmd.Process == nil {
		return ErrNotStarted
	}
	// Mark killed only once the signal was actually delivered. A process
	// that already exited (ESRCH) must keep its natural classification.
	if err := syscall.Kill(-e.cmd.Process.Pid, syscall.SIGTERM); err != nil {
		return err
	}
	e.killed = true
	return nil
}
