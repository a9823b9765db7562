package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/config"
	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/pickup"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Repair guardian/student links recorded on one side only",
	Long: `Scan every guardian and student and write each missing back-reference.
A registration that could not link all of its students leaves the guardian
pointing at a student that does not point back; this command repairs that.
References to records that no longer exist are reported and left alone.

Examples:
  safekids reconcile
  safekids reconcile --json`,
	RunE: runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	reconcileCmd.Flags().Bool("json", false, "Output as JSON")
}

// ReconcileResult is the JSON output of the reconcile command.
type ReconcileResult struct {
	GuardiansScanned int           `json:"guardians_scanned"`
	StudentsScanned  int           `json:"students_scanned"`
	Repaired         []pickup.Link `json:"repaired"`
	Dangling         []pickup.Link `json:"dangling"`
	Failed           []pickup.Link `json:"failed"`
}

func runReconcile(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")
	cfg := config.Load()
	ctx := context.Background()

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	deps, err := openDeps(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer deps.Close()

	report, err := pickup.NewReconciler(deps.Deps).Reconcile(ctx)
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}

	if jsonOutput {
		return outputJSON(ReconcileResult{
			GuardiansScanned: report.GuardiansScanned,
			StudentsScanned:  report.StudentsScanned,
			Repaired:         nonNilLinks(report.Repaired),
			Dangling:         nonNilLinks(report.Dangling),
			Failed:           nonNilLinks(report.Failed),
		})
	}

	fmt.Printf("Scanned %d guardians and %d students\n", report.GuardiansScanned, report.StudentsScanned)
	fmt.Printf("Repaired: %d\n", len(report.Repaired))
	for _, l := range report.Repaired {
		fmt.Printf("  guardian %s <-> student %s\n", l.GuardianID, l.StudentID)
	}
	if len(report.Dangling) > 0 {
		fmt.Printf("Dangling: %d\n", len(report.Dangling))
		for _, l := range report.Dangling {
			fmt.Printf("  guardian %s <-> student %s\n", l.GuardianID, l.StudentID)
		}
	}
	if len(report.Failed) > 0 {
		return fmt.Errorf("%d links could not be repaired", len(report.Failed))
	}
	return nil
}

func nonNilLinks(links []pickup.Link) []pickup.Link {
	if links == nil {
		return []pickup.Link{}
	}
	return links
}
