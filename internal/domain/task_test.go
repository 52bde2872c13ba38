package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wheresmyhair/Shell-Queue-Manager/internal/domain"
)

func TestStatusConstants(t *testing.T) {
	tests := []struct {
		status domain.Status
		want   string
	}{
		{domain.StatusQueued, "queued"},
		{domain.StatusRunning, "running"},
		{domain.StatusCompleted, "completed"},
		{domain.StatusFailed, "failed"},
		{domain.StatusCanceled, "canceled"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, string(tt.status))
		})
	}
}

func TestIsTerminal(t *testing.T) {
	for _, s := range []domain.Status{domain.StatusCompleted, domain.StatusFailed, domain.StatusCanceled} {
		assert.True(t, s.IsTerminal(), "IsTerminal(%q)", s)
	}
	for _, s := range []domain.Status{domain.StatusQueued, domain.StatusRunning} {
		assert.False(t, s.IsTerminal(), "IsTerminal(%q)", s)
	}
}

func TestNewTask_GeneratesID(t *testing.T) {
	a := domain.NewTask("/tmp/a.sh", false, "")
	b := domain.NewTask("/tmp/a.sh", false, "")

	require.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID, "generated IDs must be unique")
	assert.Equal(t, domain.StatusQueued, a.Status)
	assert.False(t, a.CreatedAt.IsZero())
	assert.Nil(t, a.StartedAt)
	assert.Nil(t, a.CompletedAt)
	assert.Nil(t, a.Result)
}

func TestNewTask_KeepsCallerID(t *testing.T) {
	task := domain.NewTask("/tmp/a.sh", true, "my-task")
	assert.Equal(t, "my-task", task.ID)
	assert.True(t, task.Priority)
}

func TestTask_Lifecycle(t *testing.T) {
	task := domain.NewTask("/tmp/a.sh", false, "")

	task.Start()
	assert.Equal(t, domain.StatusRunning, task.Status)
	require.NotNil(t, task.StartedAt)
	assert.Nil(t, task.CompletedAt)

	res := &domain.Result{TaskID: task.ID, ExitCode: 0}
	task.Complete(res, true)
	assert.Equal(t, domain.StatusCompleted, task.Status)
	require.NotNil(t, task.CompletedAt)
	assert.Same(t, res, task.Result)
}

func TestTask_CompleteFailure(t *testing.T) {
	task := domain.NewTask("/tmp/a.sh", false, "")
	task.Start()
	task.Complete(&domain.Result{ExitCode: 1}, false)
	assert.Equal(t, domain.StatusFailed, task.Status)
}

func TestTask_Cancel(t *testing.T) {
	task := domain.NewTask("/tmp/a.sh", false, "")
	task.Cancel(&domain.Result{Killed: true, ExitCode: -1})
	assert.Equal(t, domain.StatusCanceled, task.Status)
	require.NotNil(t, task.CompletedAt)
	require.NotNil(t, task.Result)
	assert.True(t, task.Result.Killed)
}

func TestView_ExecutionTime(t *testing.T) {
	task := domain.NewTask("/tmp/a.sh", false, "")

	// Not started: no execution time.
	assert.Nil(t, task.View().ExecutionTime)

	// Started but not completed: still none.
	task.Start()
	assert.Nil(t, task.View().ExecutionTime)

	// Completed: exactly CompletedAt - StartedAt.
	started := time.Now().UTC().Add(-2 * time.Second)
	task.StartedAt = &started
	task.Complete(&domain.Result{ExitCode: 0}, true)

	view := task.View()
	require.NotNil(t, view.ExecutionTime)
	want := task.CompletedAt.Sub(*task.StartedAt).Seconds()
	assert.Equal(t, want, *view.ExecutionTime)
}

func TestView_CopiesIdentity(t *testing.T) {
	task := domain.NewTask("/tmp/b.sh", true, "id-1")
	view := task.View()

	assert.Equal(t, "id-1", view.TaskID)
	assert.Equal(t, "/tmp/b.sh", view.ScriptPath)
	assert.True(t, view.Priority)
	assert.Equal(t, domain.StatusQueued, view.Status)
}
