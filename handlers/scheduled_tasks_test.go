package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/spf13/afero"

	"filmlog/config"
	"filmlog/handlers"
)

type fakeScheduler struct {
	mgr *config.Manager
}

func (f *fakeScheduler) GetTaskStatus() []config.ScheduledTask {
	s, _ := f.mgr.Load()
	return s.ScheduledTasks.Tasks
}

func (f *fakeScheduler) RunTaskNow(string) error { return nil }

func newTasksHandler(t *testing.T) (*handlers.ScheduledTasksHandler, *config.Manager) {
	t.Helper()
	mgr := config.NewManagerWithFs(afero.NewMemMapFs(), "/cfg/settings.json")
	if _, err := mgr.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	return handlers.NewScheduledTasksHandler(mgr, &fakeScheduler{mgr: mgr}), mgr
}

func storedTask(t *testing.T, mgr *config.Manager, id string) config.ScheduledTask {
	t.Helper()
	s, err := mgr.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	for _, task := range s.ScheduledTasks.Tasks {
		if task.ID == id {
			return task
		}
	}
	t.Fatalf("task %s missing", id)
	return config.ScheduledTask{}
}

func putTask(t *testing.T, h *handlers.ScheduledTasksHandler, id string, body any) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPut, "/api/admin/scheduled-tasks/"+id, jsonBody(t, body))
	req = mux.SetURLVars(req, map[string]string{"taskID": id})
	rec := httptest.NewRecorder()
	h.UpdateTask(rec, req)
	return rec
}

func TestUpdateTaskPersists(t *testing.T) {
	h, mgr := newTasksHandler(t)

	rec := putTask(t, h, "orphan-sweep", map[string]any{"frequency": "weekly", "enabled": false})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	task := storedTask(t, mgr, "orphan-sweep")
	if task.Frequency != config.ScheduledTaskFrequencyWeekly || task.Enabled {
		t.Fatalf("unexpected stored task %+v", task)
	}
}

func TestUpdateTaskRejectsUnknownFrequency(t *testing.T) {
	h, mgr := newTasksHandler(t)

	rec := putTask(t, h, "orphan-sweep", map[string]any{"frequency": "fortnightly"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if got := storedTask(t, mgr, "orphan-sweep").Frequency; got != config.ScheduledTaskFrequencyDaily {
		t.Fatalf("frequency changed to %q", got)
	}
}

func TestUpdateTaskUnknownID(t *testing.T) {
	h, _ := newTasksHandler(t)

	rec := putTask(t, h, "nope", map[string]any{"enabled": true})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
