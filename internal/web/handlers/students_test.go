package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/database"
)

func TestStudentsHandler_Add(t *testing.T) {
	ts := newTestServices(t)
	ts.seedGuardian("g1", "Maria", []float32{0.1})

	h := NewStudentsHandler(ts.students, ts.log)
	rec := httptest.NewRecorder()
	h.Add(rec, jsonRequest(t, http.MethodPost, "/add_student", map[string]any{
		"name":          "Ana",
		"teacher_email": "teacher@school.example",
		"guardian_ids":  []string{"g1"},
	}))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp addStudentResponse
	decodeBody(t, rec, &resp)
	if resp.StudentID == "" || resp.Name != "Ana" || len(resp.GuardianIDs) != 1 {
		t.Errorf("unexpected response %+v", resp)
	}

	g, err := ts.store.GetGuardian(t.Context(), "g1")
	if err != nil {
		t.Fatalf("GetGuardian: %v", err)
	}
	if len(g.StudentIDs) != 1 || g.StudentIDs[0] != resp.StudentID {
		t.Errorf("expected guardian linked to %s, got %v", resp.StudentID, g.StudentIDs)
	}
}

func TestStudentsHandler_AddErrors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		status   int
		category string
	}{
		{name: "malformed json", body: `{"name":`, status: http.StatusBadRequest, category: "validation"},
		{name: "missing name", body: `{"teacher_email":"a@b.example"}`, status: http.StatusBadRequest, category: "validation"},
		{name: "bad email", body: `{"name":"Luis","teacher_email":"not-an-email"}`, status: http.StatusBadRequest, category: "validation"},
		{name: "duplicate name", body: `{"name":"ana"}`, status: http.StatusConflict, category: "conflict"},
		{name: "unknown guardian", body: `{"name":"Luis","guardian_ids":["ghost"]}`, status: http.StatusNotFound, category: "not_found"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTestServices(t)
			ts.store.AddStudent(database.Student{ID: "s1", Name: "Ana"})

			h := NewStudentsHandler(ts.students, ts.log)
			req := httptest.NewRequest(http.MethodPost, "/add_student", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			h.Add(rec, req)

			assertError(t, rec, tc.status, tc.category)
		})
	}
}

func TestStudentsHandler_List(t *testing.T) {
	ts := newTestServices(t)
	ts.store.AddStudent(database.Student{ID: "s1", Name: "Ana", GuardianIDs: []string{"g1"}})
	ts.store.AddStudent(database.Student{ID: "s2", Name: "Luis"})

	h := NewStudentsHandler(ts.students, ts.log)
	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/students", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var out []studentResponse
	decodeBody(t, rec, &out)
	if len(out) != 2 {
		t.Fatalf("expected 2 students, got %d", len(out))
	}
	for _, s := range out {
		if s.GuardianIDs == nil {
			t.Errorf("student %s: expected guardian_ids list, got null", s.ID)
		}
	}
}

func TestStudentsHandler_ListStoreFailure(t *testing.T) {
	ts := newTestServices(t)
	ts.store.ListStudentsError = errStore

	h := NewStudentsHandler(ts.students, ts.log)
	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/students", nil))

	assertError(t, rec, http.StatusInternalServerError, "store")
}
