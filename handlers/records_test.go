package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"

	"filmlog/handlers"
	"filmlog/models"
	"filmlog/services/metadata"
	"filmlog/services/records"
)

type fakeRecords struct {
	addErr    error
	addResult records.AddResult
	owner     string
	lastQuery string
	reordered []models.RecordPosition
}

func (f *fakeRecords) AddToList(_ context.Context, _ string, tmdbID int64, list models.ListID) (records.AddResult, error) {
	if f.addErr != nil {
		return records.AddResult{}, f.addErr
	}
	if !list.Valid() {
		return records.AddResult{}, records.ErrInvalidList
	}
	res := f.addResult
	res.MovieID = tmdbID
	return res, nil
}

func (f *fakeRecords) record(userID string, id int64) (models.Record, error) {
	if userID != f.owner {
		return models.Record{}, records.ErrNotFound
	}
	return models.Record{ID: id, UserID: userID, List: models.ListWatched}, nil
}

func (f *fakeRecords) Get(_ context.Context, userID string, id int64) (models.Record, error) {
	return f.record(userID, id)
}

func (f *fakeRecords) List(_ context.Context, userID string, list models.ListID, query string) ([]models.Record, error) {
	f.lastQuery = query
	return []models.Record{{ID: 1, UserID: userID, List: list}}, nil
}

func (f *fakeRecords) SetRating(_ context.Context, userID string, id int64, rating int) (models.Record, error) {
	if rating > models.MaxRating {
		return models.Record{}, records.ErrInvalidRating
	}
	rec, err := f.record(userID, id)
	rec.Rating = rating
	return rec, err
}

func (f *fakeRecords) SetComment(_ context.Context, userID string, id int64, comment string) (models.Record, error) {
	rec, err := f.record(userID, id)
	rec.Comment = comment
	return rec, err
}

func (f *fakeRecords) SetQualityFlags(_ context.Context, userID string, id int64, u models.QualityFlagsUpdate) (models.Record, error) {
	rec, err := f.record(userID, id)
	rec.Quality = u.Apply(rec.Quality)
	return rec, err
}

func (f *fakeRecords) Remove(_ context.Context, userID string, id int64) error {
	_, err := f.record(userID, id)
	return err
}

func (f *fakeRecords) Reorder(_ context.Context, _ string, p []models.RecordPosition) (int, error) {
	f.reordered = p
	return len(p), nil
}

func authed(req *http.Request, userID string) *http.Request {
	return req.WithContext(handlers.ContextWithUserID(req.Context(), userID))
}

func jsonBody(t *testing.T, v any) *bytes.Reader {
	t.Helper()
	payload, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return bytes.NewReader(payload)
}

func decodeMap(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestRecordsAdd(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		list       models.ListID
		wantCode   int
		wantStatus string
	}{
		{name: "created", list: models.ListWatched, wantCode: http.StatusOK, wantStatus: "ok"},
		{name: "unknown on provider", err: fmt.Errorf("fetch: %w", metadata.ErrNotFound), list: models.ListWatched, wantCode: http.StatusOK, wantStatus: "movie_not_found"},
		{name: "no imdb id", err: metadata.ErrNoCrossReference, list: models.ListWatched, wantCode: http.StatusOK, wantStatus: "movie_not_found"},
		{name: "rate limited", err: metadata.ErrRateLimited, list: models.ListWatched, wantCode: http.StatusServiceUnavailable, wantStatus: "rate_limited"},
		{name: "provider failure", err: metadata.ErrRequest, list: models.ListWatched, wantCode: http.StatusBadGateway, wantStatus: "provider_error"},
		{name: "bad list", list: models.ListID(9), wantCode: http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &fakeRecords{addErr: tc.err, addResult: records.AddResult{Outcome: records.OutcomeCreated}}
			h := handlers.NewRecordsHandler(svc)

			req := httptest.NewRequest(http.MethodPost, "/api/records", jsonBody(t, map[string]any{"tmdbId": 603, "list": tc.list}))
			rec := httptest.NewRecorder()
			h.Add(rec, authed(req, "u1"))

			if rec.Code != tc.wantCode {
				t.Fatalf("expected status %d, got %d (%s)", tc.wantCode, rec.Code, rec.Body.String())
			}
			if tc.wantStatus != "" {
				if got := decodeMap(t, rec)["status"]; got != tc.wantStatus {
					t.Fatalf("expected status field %q, got %v", tc.wantStatus, got)
				}
			}
		})
	}
}

func TestRecordsRequireAuthentication(t *testing.T) {
	h := handlers.NewRecordsHandler(&fakeRecords{})
	req := httptest.NewRequest(http.MethodPost, "/api/records", jsonBody(t, map[string]any{"tmdbId": 603, "list": 1}))
	rec := httptest.NewRecorder()
	h.Add(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRecordsForeignRecordLooksMissing(t *testing.T) {
	h := handlers.NewRecordsHandler(&fakeRecords{owner: "owner"})

	req := httptest.NewRequest(http.MethodPut, "/api/records/5/rating", jsonBody(t, map[string]int{"rating": 3}))
	req = mux.SetURLVars(authed(req, "intruder"), map[string]string{"recordID": "5"})
	rec := httptest.NewRecorder()
	h.SetRating(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/records/5", nil)
	req = mux.SetURLVars(authed(req, "intruder"), map[string]string{"recordID": "5"})
	rec = httptest.NewRecorder()
	h.Remove(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on remove, got %d", rec.Code)
	}
}

func TestRecordsUpdates(t *testing.T) {
	h := handlers.NewRecordsHandler(&fakeRecords{owner: "u1"})

	req := httptest.NewRequest(http.MethodPut, "/api/records/5/rating", jsonBody(t, map[string]int{"rating": 4}))
	req = mux.SetURLVars(authed(req, "u1"), map[string]string{"recordID": "5"})
	rec := httptest.NewRecorder()
	h.SetRating(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got models.Record
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Rating != 4 || got.ID != 5 {
		t.Fatalf("unexpected record: %+v", got)
	}

	req = httptest.NewRequest(http.MethodPut, "/api/records/5/rating", jsonBody(t, map[string]int{"rating": 9}))
	req = mux.SetURLVars(authed(req, "u1"), map[string]string{"recordID": "5"})
	rec = httptest.NewRecorder()
	h.SetRating(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for out of range rating, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPatch, "/api/records/5/quality", jsonBody(t, map[string]bool{"uhd4k": true}))
	req = mux.SetURLVars(authed(req, "u1"), map[string]string{"recordID": "5"})
	rec = httptest.NewRecorder()
	h.SetQuality(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for quality, got %d (%s)", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodPut, "/api/records/abc/comment", jsonBody(t, map[string]string{"comment": "x"}))
	req = mux.SetURLVars(authed(req, "u1"), map[string]string{"recordID": "abc"})
	rec = httptest.NewRecorder()
	h.SetComment(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad id, got %d", rec.Code)
	}
}

func TestRecordsListAndReorder(t *testing.T) {
	svc := &fakeRecords{owner: "u1"}
	h := handlers.NewRecordsHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/lists/to-watch?q=amelie", nil)
	req = mux.SetURLVars(authed(req, "u1"), map[string]string{"list": "to-watch"})
	rec := httptest.NewRecorder()
	h.List(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if svc.lastQuery != "amelie" {
		t.Fatalf("expected query to be forwarded, got %q", svc.lastQuery)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/lists/favourites", nil)
	req = mux.SetURLVars(authed(req, "u1"), map[string]string{"list": "favourites"})
	rec = httptest.NewRecorder()
	h.List(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown list, got %d", rec.Code)
	}

	body := []models.RecordPosition{{RecordID: 1, Position: 2}, {RecordID: 2, Position: 1}}
	req = httptest.NewRequest(http.MethodPut, "/api/records/order", jsonBody(t, body))
	rec = httptest.NewRecorder()
	h.Reorder(rec, authed(req, "u1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(svc.reordered) != 2 || svc.reordered[0].RecordID != 1 {
		t.Fatalf("unexpected positions: %+v", svc.reordered)
	}
	if got := decodeMap(t, rec)["updated"]; got != float64(2) {
		t.Fatalf("expected updated=2, got %v", got)
	}
}
