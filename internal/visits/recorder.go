package visits

import (
	"context"
	"log/slog"

	"github.com/rampantspark/sitecounter/internal/identity"
)

// Recorder persists visits on behalf of page handlers.
//
// Recording is best-effort: storage faults are logged and reported in the
// returned RecordResult, never returned as errors, so page delivery is not
// affected.
type Recorder struct {
	store    *Store
	observer Observer
	logger   *slog.Logger
}

// NewRecorder creates a new visit recorder.
//
// Parameters:
//   - store: the visit store
//   - observer: receives outcomes (nil disables)
//   - logger: structured logger instance
//
// Returns a new Recorder instance.
func NewRecorder(store *Store, observer Observer, logger *slog.Logger) *Recorder {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Recorder{
		store:    store,
		observer: observer,
		logger:   logger,
	}
}

// Record stores one visit for id on page.
//
// In cookie mode the result tells whether this is the identifier's first
// visit of the current calendar day. In network mode that check is skipped
// and only OK is meaningful.
//
// Parameters:
//   - ctx: context for cancellation and timeout control
//   - id: the resolved visitor identity
//   - page: the requested path ("" is stored as "/")
//
// Returns the outcome of the recording.
func (rec *Recorder) Record(ctx context.Context, id identity.Identity, page string) RecordResult {
	result := RecordResult{Visitor: id.Short()}
	mode := string(id.Mode)

	ins, err := rec.store.RecordVisit(ctx, NewVisit{
		VisitorID:  id.ID,
		Page:       page,
		CheckToday: id.Mode == identity.ModeCookie,
	})
	if err != nil {
		rec.observer.RecordFailed(mode)
		rec.logger.Error("Failed to record visit", "visitor", result.Visitor, "mode", mode, "error", err)
		result.Err = err
		return result
	}

	rec.observer.VisitRecorded(mode)
	result.OK = true
	if id.Mode == identity.ModeCookie {
		result.IsNewToday = !ins.SeenToday
	}
	return result
}
