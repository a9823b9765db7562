// Package pickup coordinates guardian registration, pickup verification and
// the student registry on top of a database.Store.
//
// Guardian and student records reference each other but the store offers no
// transaction across them. Registration writes the guardian first and then
// links each student; a link that fails is reported, not rolled back, and the
// Reconciler repairs it later. Uploaded files are the only thing compensated:
// a reference image is deleted whenever registration fails after storing it.
package pickup

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/blobstore"
	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/database"
	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/facematch"
	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/faces"
	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/logger"
	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/notify"
)

// Deps are the collaborators shared by the coordinators. Store, Blobs and
// Extractor are required; the rest have defaults.
type Deps struct {
	Store     database.Store
	Blobs     blobstore.Store
	Extractor faces.Extractor

	Index     *database.GuardianIndex   // lookalike warnings on registration, nil disables them
	Notifier  notify.Notifier           // defaults to a log notifier
	Policy    facematch.SelectionPolicy // defaults to FirstInGalleryOrder
	Tolerance *float64                  // nil or negative means facematch.DefaultTolerance; zero is exact match only
	Log       *logger.Logger
	Now       func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	if d.Notifier == nil {
		d.Notifier = notify.NewLogNotifier(d.Log)
	}
	if d.Policy == nil {
		d.Policy = facematch.FirstInGalleryOrder{}
	}
	if d.Tolerance == nil || *d.Tolerance < 0 || math.IsNaN(*d.Tolerance) {
		t := facematch.DefaultTolerance
		d.Tolerance = &t
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

// ParseIDs splits a comma separated id list, trimming blanks and dropping
// duplicates while keeping first-seen order.
func ParseIDs(s string) []string {
	return cleanIDs(strings.Split(s, ","))
}

func cleanIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// deleteBlob removes a stored file after a failed operation. Failures are
// logged only; the caller's error is what matters.
func deleteBlob(ctx context.Context, blobs blobstore.Store, log *logger.Logger, path string) {
	if err := blobs.Delete(context.WithoutCancel(ctx), path); err != nil {
		log.Error("failed to remove stored image", "path", path, "error", err)
		return
	}
	log.Info("removed stored image", "path", path)
}
