package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wheresmyhair/Shell-Queue-Manager/internal/domain"
	"github.com/wheresmyhair/Shell-Queue-Manager/pkg/telemetry"
)

// SubmitRequest is the JSON body for POST /api/submit.
type SubmitRequest struct {
	ScriptPath string `json:"script_path"`
	Priority   bool   `json:"priority"`
	TaskID     string `json:"task_id,omitempty"`
}

// SubmitResponse is the 201 response body.
type SubmitResponse struct {
	Status   string `json:"status"`
	TaskID   string `json:"task_id"`
	Message  string `json:"message"`
	Position int    `json:"position"`
	Priority bool   `json:"priority"`
}

// QueueStatusResponse is the GET /api/status response body.
type QueueStatusResponse struct {
	QueueSize      int               `json:"queue_size"`
	ActiveTasks    []domain.TaskView `json:"active_tasks"`
	TotalCompleted int               `json:"total_completed"`
	WorkerRunning  bool              `json:"worker_running"`
}

// TaskListResponse is the GET /api/tasks/recent response body.
type TaskListResponse struct {
	Tasks []domain.TaskView `json:"tasks"`
	Count int               `json:"count"`
}

// LiveOutputResponse is the GET /api/live-output response body.
type LiveOutputResponse struct {
	Status     string `json:"status"`
	TaskID     string `json:"task_id"`
	ScriptPath string `json:"script_path"`
	Output     string `json:"output"`
}

// AbortResponse is the POST /api/tasks/abort/{id} response body.
type AbortResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Aborted bool   `json:"aborted"`
}

// AbortByPathRequest is the JSON body for POST /api/tasks/abort-by-path.
type AbortByPathRequest struct {
	ScriptPath string `json:"script_path"`
}

// AbortByPathResponse is its response body.
type AbortByPathResponse struct {
	Status         string `json:"status"`
	RunningAborted bool   `json:"running_aborted"`
	QueuedAborted  int    `json:"queued_aborted"`
}

// SubmitTask handles POST /api/submit. Admission errors (malformed body,
// nonexistent script) are rejected here, before a task is created.
func (s *Server) SubmitTask(w http.ResponseWriter, r *http.Request) {
	_, span := otel.Tracer("server").Start(r.Context(), "server.submit_task")
	defer span.End()

	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.ScriptPath) == "" {
		writeError(w, http.StatusBadRequest, "field 'script_path' is required")
		return
	}
	if info, err := os.Stat(req.ScriptPath); err != nil || info.IsDir() {
		writeError(w, http.StatusBadRequest, (&domain.ScriptNotFoundError{Path: req.ScriptPath}).Error())
		return
	}

	task := domain.NewTask(req.ScriptPath, req.Priority, req.TaskID)
	span.SetAttributes(
		attribute.String("task.id", task.ID),
		attribute.Bool("task.priority", task.Priority),
	)

	s.store.Submit(task)
	telemetry.TasksSubmitted.WithLabelValues(strconv.FormatBool(task.Priority)).Inc()

	// The worker is lazily started on first submission.
	if !s.worker.IsRunning() {
		s.worker.Start()
	}

	s.logger.Info("task submitted",
		slog.String("task_id", task.ID),
		slog.String("script_path", task.ScriptPath),
		slog.Bool("priority", task.Priority),
	)

	writeJSON(w, http.StatusCreated, SubmitResponse{
		Status:   "success",
		TaskID:   task.ID,
		Message:  "Task submitted successfully",
		Position: s.store.Len(),
		Priority: task.Priority,
	})
}

// GetQueueStatus handles GET /api/status.
func (s *Server) GetQueueStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.store.Snapshot()
	writeJSON(w, http.StatusOK, QueueStatusResponse{
		QueueSize:      snap.QueueSize,
		ActiveTasks:    snap.ActiveTasks,
		TotalCompleted: snap.TotalCompleted,
		WorkerRunning:  s.worker.IsRunning(),
	})
}

// GetTaskStatus handles GET /api/status/{id}.
func (s *Server) GetTaskStatus(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "id")
	if taskID == "" {
		writeError(w, http.StatusBadRequest, "task ID is required")
		return
	}

	view, err := s.store.Get(taskID)
	if err != nil {
		var notFound *domain.TaskNotFoundError
		if errors.As(err, &notFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.logger.Error("failed to get task", slog.String("task_id", taskID), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to retrieve task")
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// GetRecentTasks handles GET /api/tasks/recent.
func (s *Server) GetRecentTasks(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid 'limit' parameter")
			return
		}
		limit = n
	}

	tasks := s.store.Recent(limit)
	writeJSON(w, http.StatusOK, TaskListResponse{Tasks: tasks, Count: len(tasks)})
}

// ClearQueue handles POST /api/tasks/clear. The active task is unaffected.
func (s *Server) ClearQueue(w http.ResponseWriter, r *http.Request) {
	count := s.store.ClearPending()
	s.logger.Info("cleared pending queue", slog.Int("count", count))
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": "Cleared " + strconv.Itoa(count) + " tasks from queue",
		"count":   count,
	})
}

// GetLiveOutput handles GET /api/live-output. No running task is an explicit
// 404, not an empty success.
func (s *Server) GetLiveOutput(w http.ResponseWriter, r *http.Request) {
	live, ok := s.worker.LiveOutput()
	if !ok {
		writeError(w, http.StatusNotFound, (&domain.NoTaskRunningError{}).Error())
		return
	}

	writeJSON(w, http.StatusOK, LiveOutputResponse{
		Status:     "success",
		TaskID:     live.TaskID,
		ScriptPath: live.ScriptPath,
		Output:     live.Output,
	})
}

// AbortTask handles POST /api/tasks/abort/{id}. A 200 for a running task
// means the termination signal was sent; the task turns Canceled only once
// the worker observes the process exit.
func (s *Server) AbortTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "id")
	if taskID == "" {
		writeError(w, http.StatusBadRequest, "task ID is required")
		return
	}

	if !s.worker.Abort(taskID) {
		writeJSON(w, http.StatusNotFound, AbortResponse{
			Status:  "error",
			Message: "Task not found or not abortable: " + taskID,
			Aborted: false,
		})
		return
	}

	writeJSON(w, http.StatusOK, AbortResponse{
		Status:  "success",
		Message: "Abort requested for task " + taskID,
		Aborted: true,
	})
}

// AbortTasksByPath handles POST /api/tasks/abort-by-path.
func (s *Server) AbortTasksByPath(w http.ResponseWriter, r *http.Request) {
	var req AbortByPathRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.ScriptPath) == "" {
		writeError(w, http.StatusBadRequest, "field 'script_path' is required")
		return
	}

	running, queued := s.worker.AbortByPath(req.ScriptPath)
	s.logger.Info("abort by path",
		slog.String("script_path", req.ScriptPath),
		slog.Bool("running_aborted", running),
		slog.Int("queued_aborted", queued),
	)

	writeJSON(w, http.StatusOK, AbortByPathResponse{
		Status:         "success",
		RunningAborted: running,
		QueuedAborted:  queued,
	})
}

// Healthz handles GET /healthz.
func (s *Server) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz handles GET /readyz. Ready once the worker loop is up.
func (s *Server) Readyz(w http.ResponseWriter, r *http.Request) {
	if !s.worker.IsRunning() {
		writeError(w, http.StatusServiceUnavailable, "worker not running")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"status": "error", "message": msg})
}
