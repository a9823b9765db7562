package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/blobstore"
	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/config"
	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/database"
	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/facematch"
	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/faces"
	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/logger"
	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/pickup"

	// Store backends register their URL schemes in init.
	_ "github.com/Mikhaerys/SafeKids-Face-Recognition/internal/database/postgres"
	_ "github.com/Mikhaerys/SafeKids-Face-Recognition/internal/database/redisstore"
)

// runtimeDeps owns everything opened for a command and releases it in Close.
type runtimeDeps struct {
	pickup.Deps
	closers []func() error
}

func (d *runtimeDeps) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// openDeps connects the store, the blob store and the face extractor
// described by cfg. The caller must Close the result.
func openDeps(ctx context.Context, cfg *config.Config, log *logger.Logger) (*runtimeDeps, error) {
	d := &runtimeDeps{}
	d.Log = log

	store, err := database.Open(ctx, &cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	d.Store = store
	d.closers = append(d.closers, store.Close)

	blobs, err := openBlobs(ctx, cfg.Storage)
	if err != nil {
		d.Close()
		return nil, err
	}
	d.Blobs = blobs
	if c, ok := blobs.(interface{ Close() error }); ok {
		d.closers = append(d.closers, c.Close)
	}

	ext, err := faces.New(cfg.Face)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("failed to create face extractor: %w", err)
	}
	if c, ok := ext.(interface{ Close() error }); ok {
		d.closers = append(d.closers, c.Close)
	}
	d.Extractor = faces.NewPool(ext, cfg.Face.Workers)

	policy, err := facematch.PolicyByName(cfg.Face.Policy)
	if err != nil {
		d.Close()
		return nil, err
	}
	d.Policy = policy
	tolerance := cfg.Face.Tolerance
	d.Tolerance = &tolerance

	log.Info("dependencies ready",
		"storage", cfg.Storage.Backend,
		"face_backend", cfg.Face.Backend,
		"face_model", cfg.Face.Model,
		"tolerance", cfg.Face.Tolerance,
		"policy", policy.Name(),
		"workers", cfg.Face.Workers,
	)
	return d, nil
}

func openBlobs(ctx context.Context, cfg config.StorageConfig) (blobstore.Store, error) {
	switch cfg.Backend {
	case "local", "":
		s, err := blobstore.NewLocalStore(cfg.UploadDir)
		if err != nil {
			return nil, fmt.Errorf("failed to open upload folder: %w", err)
		}
		return s, nil
	case "gcs":
		s, err := blobstore.NewGCSStore(ctx, cfg.Bucket)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q (expected local or gcs)", cfg.Backend)
	}
}

// newLogger builds the process logger for LOG_MODE.
func newLogger(cfg *config.Config) (*logger.Logger, error) {
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return log, nil
}
