// Package notify delivers queue events to operators. The worker treats
// every call as fire-and-forget: a delivery failure is logged by the caller
// and never affects task state.
package notify

import "github.com/wheresmyhair/Shell-Queue-Manager/internal/domain"

// Notifier receives queue lifecycle events.
type Notifier interface {
	// QueueLow fires when the pending queue crosses down to the low-water mark.
	QueueLow(remaining int) error
	// TaskFailed fires after a script exits nonzero, before the failure is
	// committed to the store.
	TaskFailed(result domain.Result) error
	// TaskAborted fires once per task canceled by an abort request.
	TaskAborted(task domain.TaskView) error
}

// Nop is a Notifier that discards every event.
type Nop struct{}

func (Nop) QueueLow(int) error                { return nil }
func (Nop) TaskFailed(domain.Result) error    { return nil }
func (Nop) TaskAborted(domain.TaskView) error { return nil }
