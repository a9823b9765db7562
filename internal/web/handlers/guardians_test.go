package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/database"
)

func TestGuardiansHandler_Register(t *testing.T) {
	ts := newTestServices(t)
	ts.store.AddStudent(database.Student{ID: "s1", Name: "Ana"})
	ts.store.AddStudent(database.Student{ID: "s2", Name: "Luis"})
	ts.face("maria-face", 0.1, 0.2, 0.3)

	h := NewGuardiansHandler(ts.registrar, ts.students, ts.log)
	req := multipartRequest(t, "/register_guardian", map[string]string{
		"name":        "Maria",
		"student_ids": "s1, s2",
	}, "maria.jpg", []byte("maria-face"))
	rec := httptest.NewRecorder()

	h.Register(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp registerResponse
	decodeBody(t, rec, &resp)
	if resp.GuardianID == "" || resp.Name != "Maria" {
		t.Errorf("unexpected response %+v", resp)
	}
	if len(resp.StudentsAssociated) != 2 || resp.StudentsAssociated[0].ID != "s1" {
		t.Errorf("expected students [s1 s2], got %+v", resp.StudentsAssociated)
	}
	if resp.UnlinkedStudentIDs == nil || len(resp.UnlinkedStudentIDs) != 0 {
		t.Errorf("expected empty unlinked list, got %v", resp.UnlinkedStudentIDs)
	}

	s, err := ts.store.GetStudent(req.Context(), "s1")
	if err != nil {
		t.Fatalf("GetStudent: %v", err)
	}
	if len(s.GuardianIDs) != 1 || s.GuardianIDs[0] != resp.GuardianID {
		t.Errorf("expected student linked to %s, got %v", resp.GuardianID, s.GuardianIDs)
	}
}

func TestGuardiansHandler_RegisterErrors(t *testing.T) {
	tests := []struct {
		name     string
		fields   map[string]string
		filename string
		data     string
		status   int
		category string
	}{
		{
			name:     "missing image",
			fields:   map[string]string{"name": "Maria", "student_ids": "s1"},
			status:   http.StatusBadRequest,
			category: "validation",
		},
		{
			name:     "missing student ids field",
			fields:   map[string]string{"name": "Maria"},
			filename: "maria.jpg",
			data:     "maria-face",
			status:   http.StatusBadRequest,
			category: "validation",
		},
		{
			name:     "blank student ids",
			fields:   map[string]string{"name": "Maria", "student_ids": " , "},
			filename: "maria.jpg",
			data:     "maria-face",
			status:   http.StatusBadRequest,
			category: "validation",
		},
		{
			name:     "missing name",
			fields:   map[string]string{"student_ids": "s1"},
			filename: "maria.jpg",
			data:     "maria-face",
			status:   http.StatusBadRequest,
			category: "validation",
		},
		{
			name:     "disallowed extension",
			fields:   map[string]string{"name": "Maria", "student_ids": "s1"},
			filename: "maria.gif",
			data:     "maria-face",
			status:   http.StatusBadRequest,
			category: "validation",
		},
		{
			name:     "unknown student",
			fields:   map[string]string{"name": "Maria", "student_ids": "s1,ghost"},
			filename: "maria.jpg",
			data:     "maria-face",
			status:   http.StatusNotFound,
			category: "not_found",
		},
		{
			name:     "no face",
			fields:   map[string]string{"name": "Maria", "student_ids": "s1"},
			filename: "wall.jpg",
			data:     "blank-wall",
			status:   http.StatusBadRequest,
			category: "no_face",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTestServices(t)
			ts.store.AddStudent(database.Student{ID: "s1", Name: "Ana"})
			ts.face("maria-face", 0.1, 0.2, 0.3)

			h := NewGuardiansHandler(ts.registrar, ts.students, ts.log)
			rec := httptest.NewRecorder()
			h.Register(rec, multipartRequest(t, "/register_guardian", tc.fields, tc.filename, []byte(tc.data)))

			assertError(t, rec, tc.status, tc.category)
			if ts.store.GuardianCount() != 0 {
				t.Errorf("expected no guardian to be created, got %d", ts.store.GuardianCount())
			}
		})
	}
}

func TestGuardiansHandler_RegisterMissingIDs(t *testing.T) {
	ts := newTestServices(t)
	ts.store.AddStudent(database.Student{ID: "s1", Name: "Ana"})
	ts.face("maria-face", 0.1, 0.2, 0.3)

	h := NewGuardiansHandler(ts.registrar, ts.students, ts.log)
	rec := httptest.NewRecorder()
	h.Register(rec, multipartRequest(t, "/register_guardian", map[string]string{
		"name":        "Maria",
		"student_ids": "s1,s9,s8",
	}, "maria.jpg", []byte("maria-face")))

	var body errorBody
	decodeBody(t, rec, &body)
	if len(body.MissingIDs) != 2 || body.MissingIDs[0] != "s9" || body.MissingIDs[1] != "s8" {
		t.Errorf("expected missing ids [s9 s8], got %v", body.MissingIDs)
	}
}

func TestGuardiansHandler_RegisterStoreFailure(t *testing.T) {
	ts := newTestServices(t)
	ts.store.AddStudent(database.Student{ID: "s1", Name: "Ana"})
	ts.face("maria-face", 0.1, 0.2, 0.3)
	ts.store.InsertGuardianError = errStore

	h := NewGuardiansHandler(ts.registrar, ts.students, ts.log)
	rec := httptest.NewRecorder()
	h.Register(rec, multipartRequest(t, "/register_guardian", map[string]string{
		"name":        "Maria",
		"student_ids": "s1",
	}, "maria.jpg", []byte("maria-face")))

	assertError(t, rec, http.StatusInternalServerError, "store")
}

func TestGuardiansHandler_List(t *testing.T) {
	ts := newTestServices(t)
	ts.seedGuardian("g1", "Maria", []float32{0.1, 0.2}, "s1")
	ts.seedGuardian("g2", "Pedro", nil)

	h := NewGuardiansHandler(ts.registrar, ts.students, ts.log)
	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/guardians", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var out []guardianResponse
	decodeBody(t, rec, &out)
	if len(out) != 2 {
		t.Fatalf("expected 2 guardians, got %d", len(out))
	}
	byID := map[string]guardianResponse{}
	for _, g := range out {
		byID[g.ID] = g
	}
	if !byID["g1"].HasEmbedding || byID["g2"].HasEmbedding {
		t.Errorf("unexpected has_embedding flags: %+v", out)
	}
	if byID["g2"].StudentIDs == nil {
		t.Error("expected student_ids to be an empty list, not null")
	}
}

func TestGuardiansHandler_ListStoreFailure(t *testing.T) {
	ts := newTestServices(t)
	ts.store.ListGuardiansError = errStore

	h := NewGuardiansHandler(ts.registrar, ts.students, ts.log)
	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/guardians", nil))

	assertError(t, rec, http.StatusInternalServerError, "store")
}
