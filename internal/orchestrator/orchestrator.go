// Package orchestrator coordinates fact extraction and the kb update that
// follows a journal write.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lucascarsonbrown/Inword/internal/extract"
	"github.com/lucascarsonbrown/Inword/internal/journal"
	"github.com/lucascarsonbrown/Inword/internal/kb"
	"github.com/lucascarsonbrown/Inword/internal/kbstore"
)

const (
	// RecentWindowDuration is the entry lookback, matching kb.RecentWindow.
	RecentWindowDuration = 30 * 24 * time.Hour

	// MaxEntriesPerExtraction caps how many entries one update reads.
	MaxEntriesPerExtraction = 50
)

// EntrySource supplies the journal material extraction works from.
// *journal.Store implements it.
type EntrySource interface {
	EntriesSince(ctx context.Context, userID string, since time.Time, limit int) ([]journal.Entry, error)
	ListGoals(ctx context.Context, userID string) ([]journal.Goal, error)
}

// Store supplies the current kb as prior context and persists a finished
// update. *kbstore.Client implements it.
type Store interface {
	Fetch(ctx context.Context) (*kbstore.Snapshot, error)
	SmartMergeSave(ctx context.Context, upd *kb.Update) (*kbstore.SaveResult, error)
}

// Orchestrator runs the three extraction calls and folds their output into
// the stored kb.
type Orchestrator struct {
	svc    extract.Service
	source EntrySource
	store  Store
}

// New creates an orchestrator.
func New(svc extract.Service, source EntrySource, store Store) *Orchestrator {
	return &Orchestrator{svc: svc, source: source, store: store}
}

// ExtractAll runs the three extraction calls in parallel and collects their
// proposals into one update. The general call is scoped to current, the
// entry that triggered the update (nil means the newest entry in the
// window); the state and goals calls read the whole window. Every call
// carries its stored kb section as prior context. A failed call only loses
// its own section; the others still land. Only errors loading the journal
// or the stored kb are returned.
func (o *Orchestrator) ExtractAll(ctx context.Context, userID string, current *journal.Entry) (*kb.Update, error) {
	since := time.Now().UTC().Add(-RecentWindowDuration)
	entries, err := o.source.EntriesSince(ctx, userID, since, MaxEntriesPerExtraction)
	if err != nil {
		return nil, fmt.Errorf("load recent entries: %w", err)
	}
	if len(entries) == 0 {
		log.Debug().Str("user_id", userID).Msg("No recent entries, nothing to extract")
		return &kb.Update{}, nil
	}

	goals, err := o.source.ListGoals(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load goals: %w", err)
	}

	snap, err := o.store.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("load current kb: %w", err)
	}

	if current == nil {
		// Manual refresh: the newest entry in the window stands in.
		current = &entries[0]
	}
	latest := extract.Entry{
		Content:    current.Content,
		MoodRating: current.MoodRating,
		CreatedAt:  current.CreatedAt,
	}

	material := make([]extract.Entry, len(entries))
	for i, e := range entries {
		material[i] = extract.Entry{
			Content:    e.Content,
			MoodRating: e.MoodRating,
			CreatedAt:  e.CreatedAt,
		}
	}
	refs := make([]extract.GoalRef, len(goals))
	for i, g := range goals {
		refs[i] = extract.GoalRef{ID: g.ID, Title: g.Title}
	}

	upd := &kb.Update{}
	var wg sync.WaitGroup
	errs := make([]error, 3)

	wg.Add(1)
	go func() {
		defer wg.Done()
		out, err := o.svc.ExtractGeneral(ctx, &extract.GeneralRequest{
			Entry:   latest,
			Current: snap.KB.General,
		})
		if err != nil {
			errs[0] = err
			return
		}
		upd.General = out
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		out, err := o.svc.ExtractRecentState(ctx, &extract.StateRequest{
			Entries: material,
			Window:  kb.RecentWindow,
			Current: snap.KB.StateRecent,
		})
		if err != nil {
			errs[1] = err
			return
		}
		upd.StateRecent = out
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if len(refs) == 0 {
			// Nothing to report progress on: reset the section to empty,
			// stamped now, without calling the service.
			upd.GoalsProgress = &kb.GoalsProgressSection{
				Goals:     make([]kb.GoalProgress, 0),
				UpdatedAt: time.Now().UTC(),
			}
			return
		}
		out, err := o.svc.ExtractGoalsProgress(ctx, &extract.GoalsRequest{
			Entries: material,
			Goals:   refs,
			Current: snap.KB.GoalsProgress,
		})
		if err != nil {
			errs[2] = err
			return
		}
		if out.UpdatedAt.IsZero() {
			out.UpdatedAt = time.Now().UTC()
		}
		upd.GoalsProgress = out
	}()

	wg.Wait()

	names := []string{kb.SectionGeneral, kb.SectionStateRecent, kb.SectionGoalsProgress}
	for i, err := range errs {
		if err != nil {
			log.Warn().Err(err).Str("user_id", userID).Str("section", names[i]).
				Msg("Extraction call failed, skipping section")
		}
	}
	return upd, nil
}

// UpdateResult reports one kb update run.
type UpdateResult struct {
	UserID   string
	Sections []string
	Version  int64
	Err      error
	Duration time.Duration
}

// RunUpdate extracts from recent entries and folds the result into the kb.
// The entry is the journal write that triggered the update; a manual
// refresh passes nil. An update with nothing to say is skipped without a
// save.
func (o *Orchestrator) RunUpdate(ctx context.Context, userID string, entry *journal.Entry) UpdateResult {
	start := time.Now()
	result := UpdateResult{UserID: userID}

	upd, err := o.ExtractAll(ctx, userID, entry)
	if err != nil {
		result.Err = err
		result.Duration = time.Since(start)
		return result
	}
	if upd.IsEmpty() {
		log.Info().Str("user_id", userID).Msg("KB update skipped, nothing extracted")
		result.Duration = time.Since(start)
		return result
	}

	result.Sections = upd.Sections()
	res, err := o.store.SmartMergeSave(ctx, upd)
	if err != nil {
		result.Err = err
	} else {
		result.Version = res.Version
	}
	result.Duration = time.Since(start)
	return result
}
