package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/config"
	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/database"
	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/pickup"
	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/report"
)

var exportCmd = &cobra.Command{
	Use:   "export-logs",
	Short: "Export pickup logs to an XLSX workbook",
	Long: `Write the pickup audit trail, joined with guardian and student names, to an
Excel workbook.

Examples:
  safekids export-logs -o pickups.xlsx
  safekids export-logs --student s-123 --since 2024-05-01T00:00:00Z`,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringP("output", "o", "", "Output file (defaults to pickup_logs_<timestamp>.xlsx)")
	exportCmd.Flags().String("guardian", "", "Only logs for this guardian id")
	exportCmd.Flags().String("student", "", "Only logs for this student id")
	exportCmd.Flags().String("since", "", "Only logs at or after this RFC 3339 timestamp")
	exportCmd.Flags().Int("limit", 0, "Maximum number of logs (default 100, capped at 10000)")
}

func runExport(cmd *cobra.Command, args []string) error {
	filter := database.PickupLogFilter{
		GuardianID: mustGetString(cmd, "guardian"),
		StudentID:  mustGetString(cmd, "student"),
		Limit:      mustGetInt(cmd, "limit"),
	}
	if s := mustGetString(cmd, "since"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("--since must be an RFC 3339 timestamp: %w", err)
		}
		filter.Since = t
	}
	output := mustGetString(cmd, "output")
	if output == "" {
		output = fmt.Sprintf("pickup_logs_%s.xlsx", time.Now().UTC().Format("20060102_150405"))
	}

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

	rows, err := pickup.NewStudentService(deps.Deps).PickupReport(ctx, filter)
	if err != nil {
		return err
	}

	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", output, err)
	}
	if err := report.WriteXLSX(f, rows); err != nil {
		f.Close()
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", output, err)
	}

	fmt.Printf("Wrote %d pickup logs to %s\n", len(rows), output)
	return nil
}
