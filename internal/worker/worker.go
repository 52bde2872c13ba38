// Package worker implements the single consumer that pulls tasks from the
// queue store, drives the executor and commits terminal states. Exactly one
// loop goroutine executes tasks; submissions, status reads and aborts happen
// on caller goroutines through synchronized store and worker operations.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wheresmyhair/Shell-Queue-Manager/internal/domain"
	"github.com/wheresmyhair/Shell-Queue-Manager/internal/executor"
	"github.com/wheresmyhair/Shell-Queue-Manager/internal/notify"
	"github.com/wheresmyhair/Shell-Queue-Manager/internal/queue"
	"github.com/wheresmyhair/Shell-Queue-Manager/pkg/telemetry"
)

const (
	defaultPollInterval = 5 * time.Second
	stopJoinTimeout     = 5 * time.Second
	crashPause          = time.Second
)

// Hook is an optional callback invoked on task lifecycle events.
type Hook func(domain.TaskView)

// Worker is the single-threaded task consumer.
type Worker struct {
	store             *queue.Store
	notifier          notify.Notifier
	notifyOnFailure   bool
	queueLowThreshold int
	pollInterval      time.Duration
	onTaskStart       Hook
	onTaskComplete    Hook
	logger            *slog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	current *domain.Task
	exec    *executor.Executor

	// lastQueueSize is touched only by the loop goroutine; the low-queue
	// notification is edge-triggered on the crossing, never repeated while
	// the queue sits at the threshold.
	lastQueueSize int
}

// Option configures a Worker.
type Option func(*Worker)

func WithLogger(l *slog.Logger) Option        { return func(w *Worker) { w.logger = l } }
func WithNotifyOnFailure(on bool) Option      { return func(w *Worker) { w.notifyOnFailure = on } }
func WithQueueLowThreshold(n int) Option      { return func(w *Worker) { w.queueLowThreshold = n } }
func WithPollInterval(d time.Duration) Option { return func(w *Worker) { w.pollInterval = d } }
func WithTaskStartHook(h Hook) Option         { return func(w *Worker) { w.onTaskStart = h } }
func WithTaskCompleteHook(h Hook) Option      { return func(w *Worker) { w.onTaskComplete = h } }

// New constructs a Worker over the given store and notifier.
func New(store *queue.Store, notifier notify.Notifier, opts ...Option) *Worker {
	w := &Worker{
		store:             store,
		notifier:          notifier,
		notifyOnFailure:   true,
		queueLowThreshold: 1,
		pollInterval:      defaultPollInterval,
		logger:            slog.Default(),
	}
	if w.notifier == nil {
		w.notifier = notify.Nop{}
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start launches the consumer goroutine. Idempotent: a no-op when already
// running.
func (w *Worker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	go w.loop(w.stopCh, w.doneCh)
	w.logger.Info("worker started")
}

// Stop signals the loop to exit and waits up to a bounded join timeout. If
// the in-flight task does not yield in time the goroutine is left to finish
// on its own: shutdown is best-effort, not guaranteed instantaneous.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stopCh)
	done := w.doneCh
	w.mu.Unlock()

	select {
	case <-done:
		w.logger.Info("worker stopped")
	case <-time.After(stopJoinTimeout):
		w.logger.Warn("worker did not stop in time, detaching")
	}
}

// IsRunning reports whether the consumer goroutine is active.
func (w *Worker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Current returns a snapshot of the in-flight task, if any. The worker mutex
// only identifies the task; the view itself is taken under the store lock,
// which is what guards lifecycle fields, so the snapshot is never torn by a
// concurrent completion.
func (w *Worker) Current() (domain.TaskView, bool) {
	w.mu.Lock()
	task := w.current
	w.mu.Unlock()

	if task == nil {
		return domain.TaskView{}, false
	}
	view, err := w.store.Get(task.ID)
	if err != nil || view.Status.IsTerminal() {
		// Completed between the two locks; no longer in flight.
		return domain.TaskView{}, false
	}
	return view, true
}

// Abort cancels the task with the given ID. A pending task is removed from
// the queue immediately; the in-flight task is sent a termination signal and
// becomes Canceled only once the loop observes the process exit, so callers
// must poll status to see the terminal state. Returns false when the task is
// neither in flight nor pending.
func (w *Worker) Abort(taskID string) bool {
	w.mu.Lock()
	if w.current != nil && w.current.ID == taskID && w.exec != nil {
		exec := w.exec
		w.mu.Unlock()
		if err := exec.Terminate(); err != nil {
			w.logger.Warn("failed to terminate running task",
				slog.String("task_id", taskID), slog.String("error", err.Error()))
			return false
		}
		telemetry.TasksAborted.WithLabelValues("running").Inc()
		w.logger.Info("sent termination signal to running task", slog.String("task_id", taskID))
		return true
	}
	w.mu.Unlock()

	return w.store.RemoveByID(taskID)
}

// AbortByPath cancels every pending task whose script path matches, firing
// the aborted notification once per removed task, and terminates the
// in-flight task if its path matches too.
func (w *Worker) AbortByPath(scriptPath string) (runningAborted bool, queuedAborted int) {
	queuedAborted = w.store.RemoveByPath(scriptPath, func(view domain.TaskView) {
		if err := w.notifier.TaskAborted(view); err != nil {
			w.logger.Error("aborted notification failed",
				slog.String("task_id", view.TaskID), slog.String("error", err.Error()))
		}
	})

	w.mu.Lock()
	if w.current != nil && w.current.ScriptPath == scriptPath && w.exec != nil {
		exec := w.exec
		taskID := w.current.ID
		w.mu.Unlock()
		if err := exec.Terminate(); err != nil {
			w.logger.Warn("failed to terminate running task",
				slog.String("task_id", taskID), slog.String("error", err.Error()))
		} else {
			telemetry.TasksAborted.WithLabelValues("running").Inc()
			runningAborted = true
		}
		return runningAborted, queuedAborted
	}
	w.mu.Unlock()

	return runningAborted, queuedAborted
}

// LiveOutput returns the output captured so far for the running task. ok is
// false when nothing is running.
func (w *Worker) LiveOutput() (queue.LiveOutput, bool) {
	return w.store.LiveOutput()
}

func (w *Worker) loop(stopCh, doneCh chan struct{}) {
	defer close(doneCh)
	for {
		select {
		case <-stopCh:
			return
		default:
		}
		w.runOnce()
	}
}

// runOnce processes at most one task. A panic inside the body is logged and
// absorbed after a short pause (one bad task must not kill the scheduler),
// except for store invariant violations, which indicate an integration bug
// and crash the process.
func (w *Worker) runOnce() {
	defer func() {
		if r := recover(); r != nil {
			if _, fatal := r.(queue.InvariantViolation); fatal {
				panic(r)
			}
			w.logger.Error("worker loop panic", slog.Any("panic", r))
			time.Sleep(crashPause)
		}
	}()

	w.checkQueueState()

	task, ok := w.store.Next(w.pollInterval)
	if !ok {
		// Idle poll, not an error.
		return
	}

	w.execute(task)
}

// checkQueueState fires the queue-low notification on the transition from
// above-threshold to at-or-below-threshold.
func (w *Worker) checkQueueState() {
	size := w.store.Len()
	if w.lastQueueSize > w.queueLowThreshold && size <= w.queueLowThreshold {
		w.logger.Info("queue size reached low threshold", slog.Int("remaining", size))
		if err := w.notifier.QueueLow(size); err != nil {
			w.logger.Error("queue low notification failed", slog.String("error", err.Error()))
		}
	}
	w.lastQueueSize = size
}

func (w *Worker) execute(task *domain.Task) {
	ctx, span := otel.Tracer("worker").Start(context.Background(), "worker.execute_task")
	defer span.End()
	span.SetAttributes(
		attribute.String("task.id", task.ID),
		attribute.String("task.script_path", task.ScriptPath),
		attribute.Bool("task.priority", task.Priority),
	)

	log := w.logger.With(
		slog.String("task_id", task.ID),
		slog.String("script_path", task.ScriptPath),
	)

	exec := executor.New(task, w.store.LiveWriter(), w.logger)

	w.mu.Lock()
	w.current = task
	w.exec = exec
	w.mu.Unlock()
	w.store.SetLive(task)

	if w.onTaskStart != nil {
		w.onTaskStart(task.View())
	}

	start := time.Now()
	res := exec.Run(ctx)
	telemetry.WorkerTaskDurationSeconds.Observe(time.Since(start).Seconds())

	success := res.ExitCode == 0 && res.Error == ""

	// Failure notification is dispatched before the completion commit, so a
	// reader can never observe the Failed state before the notice went out.
	// A killed task is Canceled, not Failed, and gets no failure notice.
	if !success && !res.Killed && w.notifyOnFailure {
		log.Info("sending notification for failed task")
		if err := w.notifier.TaskFailed(*res); err != nil {
			log.Error("failure notification failed", slog.String("error", err.Error()))
		}
	}

	w.store.Complete(task.ID, res, success)

	switch {
	case res.Killed:
		span.SetStatus(codes.Error, "task canceled")
		log.Info("task canceled", slog.Int("exit_code", res.ExitCode))
		telemetry.WorkerTasksProcessed.WithLabelValues(string(domain.StatusCanceled)).Inc()
	case success:
		log.Info("task completed", slog.Int("exit_code", res.ExitCode))
		telemetry.WorkerTasksProcessed.WithLabelValues(string(domain.StatusCompleted)).Inc()
	default:
		span.SetStatus(codes.Error, "task failed")
		log.Error("task failed",
			slog.Int("exit_code", res.ExitCode),
			slog.String("error", res.Error),
		)
		telemetry.WorkerTasksProcessed.WithLabelValues(string(domain.StatusFailed)).Inc()
	}

	if w.onTaskComplete != nil {
		w.onTaskComplete(task.View())
	}

	w.store.ClearLive()
	w.mu.Lock()
	w.current = nil
	w.exec = nil
	w.mu.Unlock()
}
