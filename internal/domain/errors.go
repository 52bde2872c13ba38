package domain

import "fmt"

// TaskNotFoundError is returned when a task ID does not exist in the
// active or completed maps.
type TaskNotFoundError struct {
	TaskID string
}

func (e *TaskNotFoundError) Error() string {
	return fmt.Sprintf("task not found: %s", e.TaskID)
}

// ScriptNotFoundError is returned when a submitted script path does not
// point to a regular file.
type ScriptNotFoundError struct {
	Path string
}

func (e *ScriptNotFoundError) Error() string {
	return fmt.Sprintf("script not found: %s", e.Path)
}

// NoTaskRunningError is returned by live-output reads when the worker has
// no task in flight.
type NoTaskRunningError struct{}

func (e *NoTaskRunningError) Error() string {
	return "no task is currently running"
}
