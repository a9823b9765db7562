package pickup

import (
	"context"
	"fmt"
	"slices"
)

// Link is one guardian/student reference.
type Link struct {
	GuardianID string `json:"guardian_id"`
	StudentID  string `json:"student_id"`
}

// ReconcileReport summarizes one Reconcile sweep.
type ReconcileReport struct {
	GuardiansScanned int
	StudentsScanned  int
	Repaired         []Link // back-references that were written
	Dangling         []Link // references to a guardian or student that does not exist
	Failed           []Link // repairs attempted and failed
}

// Reconciler repairs guardian/student links present on one side only.
type Reconciler struct {
	deps Deps
}

func NewReconciler(deps Deps) *Reconciler {
	return &Reconciler{deps: deps.withDefaults()}
}

// Reconcile scans every guardian and student and appends each missing
// back-reference. Appends are set-unique, so running it twice changes nothing
// the second time. Dangling references are reported and left alone.
func (r *Reconciler) Reconcile(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport
	log := r.deps.Log

	guardians, err := r.deps.Store.ListGuardians(ctx)
	if err != nil {
		return report, fmt.Errorf("list guardians: %w", err)
	}
	students, err := r.deps.Store.ListStudents(ctx)
	if err != nil {
		return report, fmt.Errorf("list students: %w", err)
	}
	report.GuardiansScanned = len(guardians)
	report.StudentsScanned = len(students)

	guardianStudents := make(map[string][]string, len(guardians))
	for _, g := range guardians {
		guardianStudents[g.ID] = g.StudentIDs
	}
	studentGuardians := make(map[string][]string, len(students))
	for _, s := range students {
		studentGuardians[s.ID] = s.GuardianIDs
	}

	for _, g := range guardians {
		for _, sid := range g.StudentIDs {
			link := Link{GuardianID: g.ID, StudentID: sid}
			back, ok := studentGuardians[sid]
			switch {
			case !ok:
				report.Dangling = append(report.Dangling, link)
			case !slices.Contains(back, g.ID):
				if err := r.deps.Store.AddGuardianToStudent(ctx, sid, g.ID); err != nil {
					log.Error("reconcile: failed to link student to guardian", "guardian_id", g.ID, "student_id", sid, "error", err)
					report.Failed = append(report.Failed, link)
					continue
				}
				studentGuardians[sid] = append(back, g.ID)
				report.Repaired = append(report.Repaired, link)
			}
		}
	}

	for _, s := range students {
		for _, gid := range s.GuardianIDs {
			link := Link{GuardianID: gid, StudentID: s.ID}
			back, ok := guardianStudents[gid]
			switch {
			case !ok:
				report.Dangling = append(report.Dangling, link)
			case !slices.Contains(back, s.ID):
				if err := r.deps.Store.AddStudentToGuardian(ctx, gid, s.ID); err != nil {
					log.Error("reconcile: failed to link guardian to student", "guardian_id", gid, "student_id", s.ID, "error", err)
					report.Failed = append(report.Failed, link)
					continue
				}
				guardianStudents[gid] = append(back, s.ID)
				report.Repaired = append(report.Repaired, link)
			}
		}
	}

	log.Info("reconcile finished",
		"guardians", report.GuardiansScanned,
		"students", report.StudentsScanned,
		"repaired", len(report.Repaired),
		"dangling", len(report.Dangling),
		"failed", len(report.Failed),
	)
	return report, nil
}
