package queue_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wheresmyhair/Shell-Queue-Manager/internal/domain"
	"github.com/wheresmyhair/Shell-Queue-Manager/internal/queue"
)

// runThrough pops the head of the queue and completes it successfully,
// returning the task. Keeps the single-flight precondition satisfied between
// consecutive Next calls.
func runThrough(t *testing.T, s *queue.Store) *domain.Task {
	t.Helper()
	task, ok := s.Next(0)
	require.True(t, ok)
	s.Complete(task.ID, &domain.Result{TaskID: task.ID, ExitCode: 0}, true)
	return task
}

func TestStore_PriorityBeforeNormal(t *testing.T) {
	s := queue.NewStore()

	n1 := domain.NewTask("/tmp/n1.sh", false, "n1")
	n2 := domain.NewTask("/tmp/n2.sh", false, "n2")
	p1 := domain.NewTask("/tmp/p1.sh", true, "p1")

	s.Submit(n1)
	s.Submit(n2)
	s.Submit(p1)

	assert.Equal(t, "p1", runThrough(t, s).ID, "priority task must jump the line")
	assert.Equal(t, "n1", runThrough(t, s).ID)
	assert.Equal(t, "n2", runThrough(t, s).ID)
}

func TestStore_FIFOWithinClass(t *testing.T) {
	s := queue.NewStore()

	ids := []string{"a", "b", "c", "d"}
	for _, id := range ids {
		s.Submit(domain.NewTask("/tmp/"+id+".sh", true, id))
	}
	for _, want := range ids {
		assert.Equal(t, want, runThrough(t, s).ID)
	}
}

func TestStore_NextEmptyPoll(t *testing.T) {
	s := queue.NewStore()

	task, ok := s.Next(0)
	assert.Nil(t, task)
	assert.False(t, ok)
}

func TestStore_NextTimesOut(t *testing.T) {
	s := queue.NewStore()

	start := time.Now()
	task, ok := s.Next(30 * time.Millisecond)
	assert.Nil(t, task)
	assert.False(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestStore_NextWokenBySubmit(t *testing.T) {
	s := queue.NewStore()

	var wg sync.WaitGroup
	wg.Add(1)
	var got *domain.Task
	go func() {
		defer wg.Done()
		task, ok := s.Next(5 * time.Second)
		require.True(t, ok)
		got = task
	}()

	time.Sleep(20 * time.Millisecond)
	s.Submit(domain.NewTask("/tmp/wake.sh", false, "wake"))
	wg.Wait()

	require.NotNil(t, got)
	assert.Equal(t, "wake", got.ID)
	assert.Equal(t, domain.StatusRunning, got.Status)
}

func TestStore_NextPanicsWhileTaskActive(t *testing.T) {
	s := queue.NewStore()
	s.Submit(domain.NewTask("/tmp/a.sh", false, "a"))

	_, ok := s.Next(0)
	require.True(t, ok)

	assert.PanicsWithValue(t,
		queue.InvariantViolation("queue: Next called while a task is still active"),
		func() { s.Next(0) },
	)
}

func TestStore_CompleteClassification(t *testing.T) {
	tests := []struct {
		name    string
		res     *domain.Result
		success bool
		want    domain.Status
	}{
		{"success", &domain.Result{ExitCode: 0}, true, domain.StatusCompleted},
		{"nonzero exit", &domain.Result{ExitCode: 2}, false, domain.StatusFailed},
		{"killed wins over exit code", &domain.Result{ExitCode: 1, Killed: true}, false, domain.StatusCanceled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := queue.NewStore()
			s.Submit(domain.NewTask("/tmp/a.sh", false, "a"))
			task, ok := s.Next(0)
			require.True(t, ok)

			s.Complete(task.ID, tt.res, tt.success)

			view, err := s.Get(task.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, view.Status)
		})
	}
}

func TestStore_CompleteUnknownIDIgnored(t *testing.T) {
	s := queue.NewStore()
	assert.NotPanics(t, func() {
		s.Complete("nope", &domain.Result{}, true)
	})
}

func TestStore_GetPendingNotReachable(t *testing.T) {
	s := queue.NewStore()
	s.Submit(domain.NewTask("/tmp/a.sh", false, "a"))

	_, err := s.Get("a")
	var notFound *domain.TaskNotFoundError
	assert.True(t, errors.As(err, &notFound))
}

func TestStore_Snapshot(t *testing.T) {
	s := queue.NewStore()
	s.Submit(domain.NewTask("/tmp/a.sh", false, "a"))
	s.Submit(domain.NewTask("/tmp/b.sh", false, "b"))
	s.Submit(domain.NewTask("/tmp/c.sh", false, "c"))

	runThrough(t, s)
	active, ok := s.Next(0)
	require.True(t, ok)

	status := s.Snapshot()
	assert.Equal(t, 1, status.QueueSize)
	assert.Equal(t, 1, status.TotalCompleted)
	require.Len(t, status.ActiveTasks, 1)
	assert.Equal(t, active.ID, status.ActiveTasks[0].TaskID)
	assert.Equal(t, domain.StatusRunning, status.ActiveTasks[0].Status)
}

func TestStore_RecentNewestFirstAndBounded(t *testing.T) {
	s := queue.NewStore(queue.WithMaxHistory(2))

	for _, id := range []string{"old", "mid", "new"} {
		s.Submit(domain.NewTask("/tmp/"+id+".sh", false, id))
		runThrough(t, s)
	}

	views := s.Recent(0)
	require.Len(t, views, 2)
	assert.Equal(t, "new", views[0].TaskID)
	assert.Equal(t, "mid", views[1].TaskID)

	// Evicted from history means evicted from the completed map too.
	_, err := s.Get("old")
	assert.Error(t, err)
}

func TestStore_RecentLimit(t *testing.T) {
	s := queue.NewStore()
	for _, id := range []string{"a", "b", "c"} {
		s.Submit(domain.NewTask("/tmp/x.sh", false, id))
		runThrough(t, s)
	}

	views := s.Recent(2)
	require.Len(t, views, 2)
	assert.Equal(t, "c", views[0].TaskID)
	assert.Equal(t, "b", views[1].TaskID)
}

func TestStore_ClearPendingLeavesActive(t *testing.T) {
	s := queue.NewStore()
	s.Submit(domain.NewTask("/tmp/a.sh", false, "a"))
	s.Submit(domain.NewTask("/tmp/b.sh", false, "b"))
	s.Submit(domain.NewTask("/tmp/c.sh", false, "c"))

	active, ok := s.Next(0)
	require.True(t, ok)

	assert.Equal(t, 2, s.ClearPending())
	assert.Equal(t, 0, s.Len())

	// The running task is untouched and still completes normally.
	view, err := s.Get(active.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRunning, view.Status)

	s.Complete(active.ID, &domain.Result{ExitCode: 0}, true)
	view, err = s.Get(active.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, view.Status)
}

func TestStore_RemoveByID(t *testing.T) {
	s := queue.NewStore()
	s.Submit(domain.NewTask("/tmp/a.sh", false, "a"))
	s.Submit(domain.NewTask("/tmp/b.sh", false, "b"))

	active, ok := s.Next(0)
	require.True(t, ok)
	require.Equal(t, "a", active.ID)

	assert.False(t, s.RemoveByID("a"), "active task cannot be removed by the store")
	assert.False(t, s.RemoveByID("missing"))

	assert.True(t, s.RemoveByID("b"))
	assert.Equal(t, 0, s.Len())

	view, err := s.Get("b")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCanceled, view.Status)
}

func TestStore_RemoveByPath(t *testing.T) {
	s := queue.NewStore()
	s.Submit(domain.NewTask("/tmp/target.sh", false, "t1"))
	s.Submit(domain.NewTask("/tmp/other.sh", false, "o1"))
	s.Submit(domain.NewTask("/tmp/target.sh", true, "t2"))

	var seen []string
	removed := s.RemoveByPath("/tmp/target.sh", func(view domain.TaskView) {
		seen = append(seen, view.TaskID)
		assert.Equal(t, domain.StatusCanceled, view.Status)
	})

	assert.Equal(t, 2, removed)
	assert.ElementsMatch(t, []string{"t1", "t2"}, seen)
	assert.Equal(t, 1, s.Len())

	// The survivor is the non-matching task.
	task, ok := s.Next(0)
	require.True(t, ok)
	assert.Equal(t, "o1", task.ID)
}

func TestStore_RemoveByPathNoMatch(t *testing.T) {
	s := queue.NewStore()
	s.Submit(domain.NewTask("/tmp/a.sh", false, "a"))

	removed := s.RemoveByPath("/tmp/nope.sh", nil)
	assert.Equal(t, 0, removed)
	assert.Equal(t, 1, s.Len())
}

func TestStore_LiveOutput(t *testing.T) {
	s := queue.NewStore()

	_, ok := s.LiveOutput()
	assert.False(t, ok, "no live task yet")

	task := domain.NewTask("/tmp/live.sh", false, "live")
	s.SetLive(task)

	w := s.LiveWriter()
	_, err := w.Write([]byte("line 1\n"))
	require.NoError(t, err)
	_, err = w.Write([]byte("line 2\n"))
	require.NoError(t, err)

	out, ok := s.LiveOutput()
	require.True(t, ok)
	assert.Equal(t, "live", out.TaskID)
	assert.Equal(t, "/tmp/live.sh", out.ScriptPath)
	assert.Equal(t, "line 1\nline 2\n", out.Output)

	s.ClearLive()
	_, ok = s.LiveOutput()
	assert.False(t, ok)

	// A new live task starts with a fresh buffer.
	s.SetLive(domain.NewTask("/tmp/next.sh", false, "next"))
	out, ok = s.LiveOutput()
	require.True(t, ok)
	assert.Empty(t, out.Output)
}
