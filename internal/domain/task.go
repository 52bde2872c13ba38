package domain

import (
	"time"

	"github.com/google/uuid"
)

// Status represents the states a task can be in.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCanceled  Status = "canceled"
)

// IsTerminal returns true if no further state transitions are possible.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCanceled
}

// Result is the terminal outcome of one script execution.
//
// Killed records that termination was requested by the system, so an
// aborted script is distinguishable from one that exited nonzero on its
// own. The exit code alone never carries that intent.
type Result struct {
	TaskID     string `json:"task_id"`
	ScriptPath string `json:"script_path"`
	ExitCode   int    `json:"exit_code"`
	Output     string `json:"output,omitempty"`
	OutputFile string `json:"output_file,omitempty"`
	Error      string `json:"error,omitempty"`
	Killed     bool   `json:"killed,omitempty"`
}

// Task is the core domain entity: one submitted shell script with a lifecycle.
// Identity fields (ID, ScriptPath, Priority, CreatedAt) are immutable after
// creation; lifecycle fields are mutated only by the queue store under its lock.
type Task struct {
	ID          string
	ScriptPath  string
	Priority    bool
	Status      Status
	Result      *Result
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// NewTask creates a queued task. An empty taskID gets a generated UUID.
func NewTask(scriptPath string, priority bool, taskID string) *Task {
	if taskID == "" {
		taskID = uuid.New().String()
	}
	return &Task{
		ID:         taskID,
		ScriptPath: scriptPath,
		Priority:   priority,
		Status:     StatusQueued,
		CreatedAt:  time.Now().UTC(),
	}
}

// Start marks the task as running.
func (t *Task) Start() {
	now := time.Now().UTC()
	t.Status = StatusRunning
	t.StartedAt = &now
}

// Complete moves the task into Completed or Failed and attaches the result.
func (t *Task) Complete(res *Result, success bool) {
	now := time.Now().UTC()
	if success {
		t.Status = StatusCompleted
	} else {
		t.Status = StatusFailed
	}
	t.Result = res
	t.CompletedAt = &now
}

// Cancel moves the task into Canceled and attaches the result.
func (t *Task) Cancel(res *Result) {
	now := time.Now().UTC()
	t.Status = StatusCanceled
	t.Result = res
	t.CompletedAt = &now
}

// TaskView is the serialized form of a task exposed to callers.
type TaskView struct {
	TaskID      string     `json:"task_id"`
	ScriptPath  string     `json:"script_path"`
	Priority    bool       `json:"priority"`
	Status      Status     `json:"status"`
	Result      *Result    `json:"result,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	// ExecutionTime is CompletedAt-StartedAt in seconds, present only when
	// both timestamps are set.
	ExecutionTime *float64 `json:"execution_time,omitempty"`
}

// View returns a point-in-time snapshot of the task. The caller must hold
// whatever lock guards the task's lifecycle fields.
func (t *Task) View() TaskView {
	v := TaskView{
		TaskID:      t.ID,
		ScriptPath:  t.ScriptPath,
		Priority:    t.Priority,
		Status:      t.Status,
		Result:      t.Result,
		CreatedAt:   t.CreatedAt,
		StartedAt:   t.StartedAt,
		CompletedAt: t.CompletedAt,
	}
	if t.StartedAt != nil && t.CompletedAt != nil {
		secs := t.CompletedAt.Sub(*t.StartedAt).Seconds()
		v.ExecutionTime = &secs
	}
	return v
}
