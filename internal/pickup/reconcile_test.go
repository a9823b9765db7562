package pickup

import (
	"context"
	"errors"
	"slices"
	"testing"
)

func TestReconcile_RepairsBothDirections(t *testing.T) {
	env := newTestEnv(t)
	// g1 lists s1 but s1 does not list g1
	env.addStudent("s1", "Ana", "")
	env.addGuardian("g1", "Carlos", env.clock, nil, "s1")
	// s2 lists g2 but g2 does not list s2
	env.addGuardian("g2", "Marta", env.clock, nil)
	env.addStudent("s2", "Luis", "", "g2")
	// dangling on both sides
	env.addGuardian("g3", "Pedro", env.clock, nil, "s-gone")
	env.addStudent("s3", "Eva", "", "g-gone")

	report, err := NewReconciler(env.deps()).Reconcile(context.Background())
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	wantRepaired := []Link{{GuardianID: "g1", StudentID: "s1"}, {GuardianID: "g2", StudentID: "s2"}}
	if !slices.Equal(report.Repaired, wantRepaired) {
		t.Errorf("repaired = %+v, want %+v", report.Repaired, wantRepaired)
	}
	if len(report.Dangling) != 2 {
		t.Errorf("expected 2 dangling links, got %+v", report.Dangling)
	}
	if report.GuardiansScanned != 3 || report.StudentsScanned != 3 {
		t.Errorf("unexpected scan counts %+v", report)
	}

	s1, _ := env.store.GetStudent(context.Background(), "s1")
	if !slices.Equal(s1.GuardianIDs, []string{"g1"}) {
		t.Errorf("s1 guardians = %v", s1.GuardianIDs)
	}
	g2, _ := env.store.GetGuardian(context.Background(), "g2")
	if !slices.Equal(g2.StudentIDs, []string{"s2"}) {
		t.Errorf("g2 students = %v", g2.StudentIDs)
	}
}

func TestReconcile_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	env.addStudent("s1", "Ana", "")
	env.addGuardian("g1", "Carlos", env.clock, nil, "s1")
	r := NewReconciler(env.deps())

	first, err := r.Reconcile(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	second, err := r.Reconcile(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if len(first.Repaired) != 1 {
		t.Errorf("first run should repair one link, got %d", len(first.Repaired))
	}
	if len(second.Repaired) != 0 {
		t.Errorf("second run should be a no-op, repaired %+v", second.Repaired)
	}
	s1, _ := env.store.GetStudent(context.Background(), "s1")
	if len(s1.GuardianIDs) != 1 {
		t.Errorf("back-reference duplicated: %v", s1.GuardianIDs)
	}
}

func TestReconcile_Failures(t *testing.T) {
	env := newTestEnv(t)
	env.addStudent("s1", "Ana", "")
	env.addGuardian("g1", "Carlos", env.clock, nil, "s1")
	env.store.AddGuardianToStudentError = errors.New("timeout")

	report, err := NewReconciler(env.deps()).Reconcile(context.Background())
	if err != nil {
		t.Fatalf("per-link failures must not abort: %v", err)
	}
	if len(report.Failed) != 1 || len(report.Repaired) != 0 {
		t.Errorf("unexpected report %+v", report)
	}

	env.store.ListGuardiansError = errors.New("down")
	if _, err := NewReconciler(env.deps()).Reconcile(context.Background()); err == nil {
		t.Error("listing failure should abort")
	}
}
