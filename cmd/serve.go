package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/config"
	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/database"
	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/logger"
	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/notify"
	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/pickup"
	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the SafeKids HTTP API.
The API registers guardians and students, verifies guardians at pickup and
exposes the pickup audit trail.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (overrides WEB_HOST)")
	serveCmd.Flags().Bool("reconcile", true, "Repair one-sided guardian/student links before serving")
}

// initGuardianIndex loads the lookalike index from disk when it is still in
// sync with the gallery, and rebuilds it otherwise.
func initGuardianIndex(ctx context.Context, store database.Store, path string, log *logger.Logger) *database.GuardianIndex {
	gallery, err := store.ListGallery(ctx)
	if err != nil {
		log.Warn("failed to load gallery, lookalike warnings disabled", "error", err)
		return nil
	}
	idx := database.NewGuardianIndex()
	rebuilt, err := idx.LoadOrBuild(path, gallery)
	if err != nil {
		log.Warn("failed to persist rebuilt guardian index", "path", path, "error", err)
	}
	log.Info("guardian index ready", "guardians", idx.Len(), "rebuilt", rebuilt, "path", path)
	return idx
}

func openNotifier(ctx context.Context, cfg config.NotifyConfig, log *logger.Logger) notify.Notifier {
	if cfg.RedisURL == "" {
		return notify.NewLogNotifier(log)
	}
	n, err := notify.NewRedisNotifier(ctx, log, cfg.RedisURL, cfg.Channel)
	if err != nil {
		log.Warn("failed to connect notification bus, logging notices instead", "error", err)
		return notify.NewLogNotifier(log)
	}
	log.Info("publishing pickup notices", "channel", cfg.Channel)
	return n
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if port := mustGetInt(cmd, "port"); port > 0 {
		cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Web.Host = host
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := openDeps(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.Close(); err != nil {
			log.Error("failed to close dependencies", "error", err)
		}
	}()

	if mustGetBool(cmd, "reconcile") {
		report, err := pickup.NewReconciler(deps.Deps).Reconcile(ctx)
		if err != nil {
			log.Warn("startup reconcile failed", "error", err)
		} else if len(report.Repaired)+len(report.Failed) > 0 {
			log.Info("startup reconcile repaired links", "repaired", len(report.Repaired), "failed", len(report.Failed))
		}
	}

	deps.Index = initGuardianIndex(ctx, deps.Store, cfg.Face.IndexPath, log)
	deps.Notifier = openNotifier(ctx, cfg.Notify, log)
	defer deps.Notifier.Close()

	server := web.NewServer(cfg, web.Services{
		Registrar: pickup.NewRegistrar(deps.Deps),
		Verifier:  pickup.NewVerifier(deps.Deps),
		Students:  pickup.NewStudentService(deps.Deps),
		Store:     deps.Store,
	}, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("error during shutdown", "error", err)
	}
	if deps.Index != nil && cfg.Face.IndexPath != "" {
		if err := deps.Index.Save(cfg.Face.IndexPath); err != nil {
			log.Warn("failed to save guardian index", "path", cfg.Face.IndexPath, "error", err)
		} else {
			log.Info("guardian index saved", "path", cfg.Face.IndexPath)
		}
	}
	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("server stopped: %w", err)
	}
	return nil
}
