package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/config"
	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/notify"
)

var watchCmd = &cobra.Command{
	Use:   "watch-notices",
	Short: "Print pickup notices as they are published",
	Long: `Subscribe to the notification channel and print every pickup notice until
interrupted. Requires NOTIFY_REDIS_URL.

Examples:
  safekids watch-notices
  safekids watch-notices --json`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().Bool("json", false, "Print each notice as a JSON line")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if cfg.Notify.RedisURL == "" {
		return fmt.Errorf("NOTIFY_REDIS_URL is not set")
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	n, err := notify.NewRedisNotifier(ctx, log, cfg.Notify.RedisURL, cfg.Notify.Channel)
	if err != nil {
		return err
	}
	defer n.Close()

	printNotice := noticePrinter(os.Stdout, mustGetBool(cmd, "json"))
	if err := n.Subscribe(ctx, printNotice); err != nil {
		return err
	}
	log.Info("watching pickup notices", "channel", cfg.Notify.Channel)

	<-ctx.Done()
	return nil
}

// noticePrinter renders notices either as JSON lines or as one readable line each.
func noticePrinter(w io.Writer, asJSON bool) func(notify.PickupNotice) {
	if asJSON {
		enc := json.NewEncoder(w)
		return func(p notify.PickupNotice) { _ = enc.Encode(p) }
	}
	return func(p notify.PickupNotice) {
		fmt.Fprintf(w, "%s  %s (%s) picked up by %s (%s)\n",
			p.Timestamp.UTC().Format(time.RFC3339), p.StudentName, p.StudentID, p.GuardianName, p.GuardianID)
	}
}
