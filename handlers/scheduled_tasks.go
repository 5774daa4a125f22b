package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"filmlog/config"
	"filmlog/services/scheduler"
)

type taskScheduler interface {
	GetTaskStatus() []config.ScheduledTask
	RunTaskNow(taskID string) error
}

var _ taskScheduler = (*scheduler.Service)(nil)

// ScheduledTasksHandler handles scheduled tasks API endpoints
type ScheduledTasksHandler struct {
	configManager    *config.Manager
	schedulerService taskScheduler
}

// NewScheduledTasksHandler creates a new scheduled tasks handler
func NewScheduledTasksHandler(configManager *config.Manager, schedulerService taskScheduler) *ScheduledTasksHandler {
	return &ScheduledTasksHandler{
		configManager:    configManager,
		schedulerService: schedulerService,
	}
}

// ListTasks returns all scheduled tasks with current status
// GET /api/admin/scheduled-tasks
func (h *ScheduledTasksHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"tasks": h.schedulerService.GetTaskStatus(),
	})
}

// UpdateTask modifies the schedule of an existing task. The task type is fixed.
// PUT /api/admin/scheduled-tasks/{taskID}
func (h *ScheduledTasksHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	taskID := mux.Vars(r)["taskID"]

	var req struct {
		Name      string                        `json:"name"`
		Frequency config.ScheduledTaskFrequency `json:"frequency"`
		Config    map[string]string             `json:"config"`
		Enabled   *bool                         `json:"enabled"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if req.Frequency != "" && !req.Frequency.Valid() {
		writeError(w, http.StatusBadRequest, "Unknown frequency: "+string(req.Frequency))
		return
	}

	var updated config.ScheduledTask
	_, err := h.configManager.Update(func(settings *config.Settings) error {
		for i := range settings.ScheduledTasks.Tasks {
			t := &settings.ScheduledTasks.Tasks[i]
			if t.ID != taskID {
				continue
			}
			if req.Name != "" {
				t.Name = req.Name
			}
			if req.Frequency != "" {
				t.Frequency = req.Frequency
			}
			if req.Config != nil {
				t.Config = req.Config
			}
			if req.Enabled != nil {
				t.Enabled = *req.Enabled
			}
			updated = *t
			return nil
		}
		return scheduler.ErrTaskNotFound
	})
	if errors.Is(err, scheduler.ErrTaskNotFound) {
		writeError(w, http.StatusNotFound, "Task not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save settings: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"task":    updated,
	})
}

// RunTaskNow triggers immediate execution of a task
// POST /api/admin/scheduled-tasks/{taskID}/run
func (h *ScheduledTasksHandler) RunTaskNow(w http.ResponseWriter, r *http.Request) {
	err := h.schedulerService.RunTaskNow(mux.Vars(r)["taskID"])
	switch {
	case errors.Is(err, scheduler.ErrTaskNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, scheduler.ErrTaskAlreadyRunning):
		writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusAccepted, map[string]any{
			"success": true,
			"message": "Task execution started",
		})
	}
}
