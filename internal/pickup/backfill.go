package pickup

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/database"
	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/faces"
)

// BackfillFailure records why one guardian could not be backfilled.
type BackfillFailure struct {
	GuardianID string `json:"guardian_id"`
	Reason     string `json:"reason"`
}

// BackfillReport summarizes one Backfill run.
type BackfillReport struct {
	Pending  int // guardians without an embedding at start
	Updated  int
	Failures []BackfillFailure
}

// Backfiller computes embeddings for guardians registered without one.
type Backfiller struct {
	deps    Deps
	workers int
}

// NewBackfiller processes up to workers guardians at once. The extractor in
// deps still bounds the extractions themselves when it is a faces.Pool.
func NewBackfiller(deps Deps, workers int) *Backfiller {
	return &Backfiller{deps: deps.withDefaults(), workers: max(1, workers)}
}

// Pending returns the guardians that have no embedding.
func (b *Backfiller) Pending(ctx context.Context) ([]database.Guardian, error) {
	guardians, err := b.deps.Store.ListGuardians(ctx)
	if err != nil {
		return nil, fmt.Errorf("list guardians: %w", err)
	}
	var pending []database.Guardian
	for _, g := range guardians {
		if !g.HasEmbedding() {
			pending = append(pending, g)
		}
	}
	return pending, nil
}

// Backfill reads each pending guardian's reference image, extracts its
// embedding and stores it. Per-guardian failures are collected in the report;
// only listing failures and cancellation abort the run. progress, when not
// nil, is called once per processed guardian.
func (b *Backfiller) Backfill(ctx context.Context, progress func()) (BackfillReport, error) {
	var report BackfillReport

	pending, err := b.Pending(ctx)
	if err != nil {
		return report, err
	}
	report.Pending = len(pending)

	var mu sync.Mutex
	record := func(id, reason string) {
		mu.Lock()
		defer mu.Unlock()
		if reason == "" {
			report.Updated++
		} else {
			report.Failures = append(report.Failures, BackfillFailure{GuardianID: id, Reason: reason})
		}
		if progress != nil {
			progress()
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for _, guardian := range pending {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			record(guardian.ID, b.backfillOne(gctx, guardian))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	b.deps.Log.Info("backfill finished", "pending", report.Pending, "updated", report.Updated, "failed", len(report.Failures))
	return report, nil
}

// backfillOne returns an empty reason on success.
func (b *Backfiller) backfillOne(ctx context.Context, guardian database.Guardian) string {
	log := b.deps.Log.With("guardian_id", guardian.ID, "path", guardian.ReferenceImagePath)

	data, err := b.deps.Blobs.Open(ctx, guardian.ReferenceImagePath)
	if err != nil {
		log.Warn("backfill: cannot read reference image", "error", err)
		return fmt.Sprintf("read reference image: %v", err)
	}

	res := b.deps.Extractor.Extract(ctx, data)
	if res.Kind != faces.Success {
		log.Warn("backfill: extraction failed", "result", res.Kind.String(), "error", res.Err)
		return res.Kind.String()
	}

	if err := b.deps.Store.SetGuardianEmbedding(ctx, guardian.ID, res.Embedding); err != nil {
		log.Error("backfill: failed to store embedding", "error", err)
		return fmt.Sprintf("store embedding: %v", err)
	}
	if b.deps.Index != nil {
		b.deps.Index.Add(guardian.ID, res.Embedding)
	}
	return ""
}
