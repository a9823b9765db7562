package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/config"
	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/pickup"
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Compute embeddings for guardians registered without one",
	Long: `Read the reference image of every guardian that has no stored embedding,
extract the face and store the result. Guardians whose image cannot be read
or has no detectable face are reported and skipped.

Examples:
  # List pending guardians only
  safekids backfill --dry-run

  # Backfill with 8 guardians in flight
  safekids backfill --concurrency 8`,
	RunE: runBackfill,
}

func init() {
	rootCmd.AddCommand(backfillCmd)

	backfillCmd.Flags().Bool("dry-run", false, "List pending guardians without extracting")
	backfillCmd.Flags().Int("concurrency", 0, "Guardians processed at once (defaults to FACE_WORKERS)")
	backfillCmd.Flags().Bool("json", false, "Output as JSON")
}

// BackfillResult is the JSON output of the backfill command.
type BackfillResult struct {
	Pending       int                      `json:"pending"`
	Updated       int                      `json:"updated"`
	Failures      []pickup.BackfillFailure `json:"failures"`
	DryRun        bool                     `json:"dry_run"`
	DurationMs    int64                    `json:"duration_ms"`
	DurationHuman string                   `json:"duration_human,omitempty"`
}

func runBackfill(cmd *cobra.Command, args []string) error {
	dryRun := mustGetBool(cmd, "dry-run")
	jsonOutput := mustGetBool(cmd, "json")
	cfg := config.Load()
	concurrency := mustGetInt(cmd, "concurrency")
	if concurrency <= 0 {
		concurrency = cfg.Face.Workers
	}
	ctx := context.Background()
	start := time.Now()

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

	backfiller := pickup.NewBackfiller(deps.Deps, concurrency)
	pending, err := backfiller.Pending(ctx)
	if err != nil {
		return err
	}

	if dryRun || len(pending) == 0 {
		if jsonOutput {
			return outputJSON(BackfillResult{Pending: len(pending), Failures: []pickup.BackfillFailure{}, DryRun: dryRun})
		}
		fmt.Printf("%d guardians without an embedding\n", len(pending))
		for _, g := range pending {
			fmt.Printf("  %s  %s  %s\n", g.ID, g.Name, g.ReferenceImagePath)
		}
		return nil
	}

	var progress func()
	if !jsonOutput {
		bar := progressbar.NewOptions(len(pending),
			progressbar.OptionSetDescription("Backfilling embeddings"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("guardians"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionFullWidth(),
		)
		defer bar.Finish()
		progress = func() { _ = bar.Add(1) }
	}

	report, err := backfiller.Backfill(ctx, progress)
	if err != nil {
		return fmt.Errorf("backfill: %w", err)
	}

	elapsed := time.Since(start)
	if jsonOutput {
		failures := report.Failures
		if failures == nil {
			failures = []pickup.BackfillFailure{}
		}
		return outputJSON(BackfillResult{
			Pending:       report.Pending,
			Updated:       report.Updated,
			Failures:      failures,
			DurationMs:    elapsed.Milliseconds(),
			DurationHuman: elapsed.Round(time.Millisecond).String(),
		})
	}

	fmt.Printf("\nUpdated %d of %d guardians in %s\n", report.Updated, report.Pending, elapsed.Round(time.Millisecond))
	for _, f := range report.Failures {
		fmt.Printf("  %s: %s\n", f.GuardianID, f.Reason)
	}
	return nil
}
