// Package queue implements the priority-ordered pending queue plus the
// active and completed task maps. One mutex guards all store state,
// including the live-output buffer, so queue reads and output appends are
// mutually consistent without a second lock.
package queue

import (
	"bytes"
	"container/heap"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/wheresmyhair/Shell-Queue-Manager/internal/domain"
	"github.com/wheresmyhair/Shell-Queue-Manager/pkg/telemetry"
)

// InvariantViolation is the panic value raised when a store precondition is
// broken. It signals a programming error, never a user error, and must not
// be swallowed by the worker's crash recovery.
type InvariantViolation string

func (e InvariantViolation) Error() string { return string(e) }

// pendingItem pairs a task with its arrival sequence number. The sequence
// number, not a timestamp, breaks ties within a priority class so ordering
// is exact even for same-instant submissions.
type pendingItem struct {
	task *domain.Task
	seq  uint64
}

type pendingHeap []*pendingItem

func (h pendingHeap) Len() int { return len(h) }

func (h pendingHeap) Less(i, j int) bool {
	if h[i].task.Priority != h[j].task.Priority {
		return h[i].task.Priority
	}
	return h[i].seq < h[j].seq
}

func (h pendingHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *pendingHeap) Push(x any) { *h = append(*h, x.(*pendingItem)) }

func (h *pendingHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// QueueStatus is a mutually consistent snapshot of the store.
type QueueStatus struct {
	QueueSize      int               `json:"queue_size"`
	ActiveTasks    []domain.TaskView `json:"active_tasks"`
	TotalCompleted int               `json:"total_completed"`
}

// LiveOutput is the incremental combined output of the task currently
// marked live, plus its identity.
type LiveOutput struct {
	TaskID     string `json:"task_id"`
	ScriptPath string `json:"script_path"`
	Output     string `json:"output"`
}

const defaultMaxHistory = 1000

// Store owns the pending queue, the active and completed maps, the bounded
// submission history and the live-output buffer.
type Store struct {
	mu        sync.Mutex
	cond      *sync.Cond
	pending   pendingHeap
	active    map[string]*domain.Task
	completed map[string]*domain.Task

	// history holds task IDs in submission order, bounded to maxHistory.
	// Evicting an ID also evicts its completed-map entry.
	history    []string
	maxHistory int
	seq        uint64

	liveTask *domain.Task
	liveBuf  bytes.Buffer

	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

func WithMaxHistory(n int) Option      { return func(s *Store) { s.maxHistory = n } }
func WithLogger(l *slog.Logger) Option { return func(s *Store) { s.logger = l } }

// NewStore creates an empty Store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		active:     make(map[string]*domain.Task),
		completed:  make(map[string]*domain.Task),
		maxHistory: defaultMaxHistory,
		logger:     slog.Default(),
	}
	s.cond = sync.NewCond(&s.mu)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit inserts a task into the pending queue. Priority tasks precede all
// normal tasks; within a priority class ordering is strict FIFO. Never fails
// for a well-formed task.
func (s *Store) Submit(task *domain.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	heap.Push(&s.pending, &pendingItem{task: task, seq: s.seq})
	s.history = append(s.history, task.ID)

	if len(s.history) > s.maxHistory {
		oldID := s.history[0]
		s.history = s.history[1:]
		// A task still pending or active when evicted keeps existing but
		// drops out of the recent listing; only completed entries are freed.
		delete(s.completed, oldID)
	}

	telemetry.QueueDepth.Set(float64(s.pending.Len()))
	s.cond.Broadcast()
}

// Next removes the head of the pending queue, marks it running and moves it
// into the active map. If the queue is empty it blocks up to timeout and
// returns (nil, false); a non-positive timeout polls without blocking.
//
// Precondition: the active map must be empty. At most one task may ever be
// in flight, and calling Next while one is breaks the single-flight
// invariant. That is a programming error, so it panics rather than being
// absorbed.
func (s *Store) Next(timeout time.Duration) (*domain.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.active) != 0 {
		panic(InvariantViolation("queue: Next called while a task is still active"))
	}

	deadline := time.Now().Add(timeout)
	for s.pending.Len() == 0 {
		remaining := time.Until(deadline)
		if timeout <= 0 || remaining <= 0 {
			return nil, false
		}
		s.waitLocked(remaining)
	}

	item := heap.Pop(&s.pending).(*pendingItem)
	task := item.task
	task.Start()
	s.active[task.ID] = task

	telemetry.QueueDepth.Set(float64(s.pending.Len()))
	return task, true
}

// waitLocked waits on the store condition for at most d. The timer fires a
// broadcast so the wait cannot outlive the deadline.
func (s *Store) waitLocked(d time.Duration) {
	t := time.AfterFunc(d, s.cond.Broadcast)
	defer t.Stop()
	s.cond.Wait()
}

// Complete transitions an active task into its terminal state and moves it
// to the completed map. A result carrying the Killed flag classifies the
// task as Canceled regardless of exit code; otherwise success selects
// Completed or Failed. Unknown task IDs are ignored.
func (s *Store) Complete(taskID string, res *domain.Result, success bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.active[taskID]
	if !ok {
		return
	}
	if res != nil && res.Killed {
		task.Cancel(res)
	} else {
		task.Complete(res, success)
	}
	s.completed[taskID] = task
	delete(s.active, taskID)
}

// Get returns a snapshot of the task if it is active or completed.
// Tasks still waiting in the pending queue are not reachable here.
func (s *Store) Get(taskID string) (domain.TaskView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if task, ok := s.active[taskID]; ok {
		return task.View(), nil
	}
	if task, ok := s.completed[taskID]; ok {
		return task.View(), nil
	}
	return domain.TaskView{}, &domain.TaskNotFoundError{TaskID: taskID}
}

// Snapshot returns queue length, active task views and completed count,
// all taken under one critical section.
func (s *Store) Snapshot() QueueStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := QueueStatus{
		QueueSize:      s.pending.Len(),
		ActiveTasks:    make([]domain.TaskView, 0, len(s.active)),
		TotalCompleted: len(s.completed),
	}
	for _, task := range s.active {
		status.ActiveTasks = append(status.ActiveTasks, task.View())
	}
	return status
}

// Len returns the number of pending tasks.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending.Len()
}

// Recent returns snapshots of the most recently submitted tasks, newest
// first. Tasks evicted from history or still pending are skipped.
func (s *Store) Recent(limit int) []domain.TaskView {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.history
	if limit > 0 && len(ids) > limit {
		ids = ids[len(ids)-limit:]
	}

	views := make([]domain.TaskView, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		if task, ok := s.active[ids[i]]; ok {
			views = append(views, task.View())
		} else if task, ok := s.completed[ids[i]]; ok {
			views = append(views, task.View())
		}
	}
	return views
}

// ClearPending atomically drains the pending queue and returns the number
// of tasks dropped. Active and completed tasks are untouched.
func (s *Store) ClearPending() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := s.pending.Len()
	s.pending = nil
	telemetry.QueueDepth.Set(0)
	return count
}

// RemoveByID cancels a pending task. Returns false if the task is active
// (the store cannot interrupt a running process; that is the worker's job)
// or not pending at all.
func (s *Store) RemoveByID(taskID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.active[taskID]; ok {
		return false
	}

	for i, item := range s.pending {
		if item.task.ID == taskID {
			heap.Remove(&s.pending, i)
			s.cancelPendingLocked(item.task)
			telemetry.QueueDepth.Set(float64(s.pending.Len()))
			s.logger.Info("removed task from queue", slog.String("task_id", taskID))
			return true
		}
	}
	return false
}

// RemoveByPath cancels every pending task whose script path matches and
// returns the number removed. onRemoved, if non-nil, is invoked once per
// removed task after the scan completes, outside the store lock, so a slow
// observer cannot stall submitters. A running task with a matching path is
// not touched.
func (s *Store) RemoveByPath(scriptPath string, onRemoved func(domain.TaskView)) int {
	s.mu.Lock()
	var removed []domain.TaskView
	var kept pendingHeap
	for _, item := range s.pending {
		if item.task.ScriptPath == scriptPath {
			s.cancelPendingLocked(item.task)
			removed = append(removed, item.task.View())
			s.logger.Info("removed task from queue",
				slog.String("task_id", item.task.ID),
				slog.String("script_path", scriptPath),
			)
		} else {
			kept = append(kept, item)
		}
	}
	heap.Init(&kept)
	s.pending = kept
	telemetry.QueueDepth.Set(float64(s.pending.Len()))
	s.mu.Unlock()

	if onRemoved != nil {
		for _, view := range removed {
			onRemoved(view)
		}
	}
	return len(removed)
}

// cancelPendingLocked marks a never-started task canceled and files it under
// completed. The synthesized result keeps the "result present iff terminal"
// invariant.
func (s *Store) cancelPendingLocked(task *domain.Task) {
	task.Cancel(&domain.Result{
		TaskID:     task.ID,
		ScriptPath: task.ScriptPath,
		ExitCode:   -1,
		Killed:     true,
	})
	s.completed[task.ID] = task
	telemetry.TasksAborted.WithLabelValues("pending").Inc()
}

// SetLive marks a task as the one whose output the live buffer captures,
// resetting the buffer.
func (s *Store) SetLive(task *domain.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.liveTask = task
	s.liveBuf.Reset()
}

// ClearLive detaches the live buffer from its task. The buffered bytes stay
// readable until the next SetLive.
func (s *Store) ClearLive() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.liveTask = nil
}

// LiveOutput returns the buffered output and identity of the task currently
// marked live. ok is false when no task is live: an explicit "not found",
// not an empty-string success.
func (s *Store) LiveOutput() (LiveOutput, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.liveTask == nil {
		return LiveOutput{}, false
	}
	return LiveOutput{
		TaskID:     s.liveTask.ID,
		ScriptPath: s.liveTask.ScriptPath,
		Output:     s.liveBuf.String(),
	}, true
}

// LiveWriter returns a writer that appends to the live-output buffer under
// the store lock. Safe for the executor's streaming goroutines.
func (s *Store) LiveWriter() io.Writer {
	return liveWriter{s: s}
}

type liveWriter struct {
	s *Store
}

func (w liveWriter) Write(p []byte) (int, error) {
	w.s.mu.Lock()
	defer w.s.mu.Unlock()
	return w.s.liveBuf.Write(p)
}
