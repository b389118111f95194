// Package extract turns journal entries into proposed kb updates by calling
// the extraction service. Each request carries the material the user is
// journaling together with the current decrypted section as prior context,
// so the extractor extends what is stored rather than restating it. The
// service never sees the encrypted row or the user's key.
package extract

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lucascarsonbrown/Inword/internal/kb"
)

// ErrMalformedResponse is returned when the service reply cannot be used.
var ErrMalformedResponse = errors.New("malformed extraction response")

// Entry is the journal material sent for extraction.
type Entry struct {
	Content    string    `json:"content"`
	MoodRating *int      `json:"mood_rating,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// GoalRef names a goal the extractor may report progress on.
type GoalRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// GeneralRequest asks for additions to long-term stable facts read from the
// entry being journaled.
type GeneralRequest struct {
	Entry   Entry             `json:"entry"`
	Current kb.GeneralSection `json:"current"`
}

// StateRequest asks for a refreshed emotional snapshot over the window.
type StateRequest struct {
	Entries []Entry        `json:"entries"`
	Window  string         `json:"window"`
	Current kb.RecentState `json:"current"`
}

// GoalsRequest asks for per-goal progress read from the entries. Current
// holds the stored records; goals the entries give no new evidence for must
// come back with their current record carried forward.
type GoalsRequest struct {
	Entries []Entry                 `json:"entries"`
	Goals   []GoalRef               `json:"goals"`
	Current kb.GoalsProgressSection `json:"current"`
}

// Service produces kb section updates from journal entries. Each method is
// one independent extraction call; callers are expected to isolate failures
// per call rather than fail the whole batch.
type Service interface {
	// ExtractGeneral proposes updates to the general section.
	ExtractGeneral(ctx context.Context, req *GeneralRequest) (*kb.GeneralSection, error)

	// ExtractRecentState proposes a refreshed recent-state snapshot.
	ExtractRecentState(ctx context.Context, req *StateRequest) (*kb.RecentStateUpdate, error)

	// ExtractGoalsProgress proposes progress records for the given goals.
	ExtractGoalsProgress(ctx context.Context, req *GoalsRequest) (*kb.GoalsProgressSection, error)
}

// ValidateStateUpdate checks numeric bounds on a proposed state update.
func ValidateStateUpdate(u *kb.RecentStateUpdate) error {
	if u.MoodScoreAvg != nil && (*u.MoodScoreAvg < 1 || *u.MoodScoreAvg > 5) {
		return fmt.Errorf("%w: mood_score_avg %.2f out of range", ErrMalformedResponse, *u.MoodScoreAvg)
	}
	return nil
}

// ValidateGoalsProgress checks a proposed goals section: every record needs
// an id, ids may not repeat, and the numeric fields must be in range.
func ValidateGoalsProgress(g *kb.GoalsProgressSection) error {
	seen := make(map[string]bool, len(g.Goals))
	for _, goal := range g.Goals {
		if goal.GoalID == "" {
			return fmt.Errorf("%w: goal record without id", ErrMalformedResponse)
		}
		if seen[goal.GoalID] {
			return fmt.Errorf("%w: duplicate goal record %q", ErrMalformedResponse, goal.GoalID)
		}
		seen[goal.GoalID] = true
		if goal.PercentComplete < 0 || goal.PercentComplete > 100 {
			return fmt.Errorf("%w: percent_complete %d out of range", ErrMalformedResponse, goal.PercentComplete)
		}
		if goal.Momentum < 0 || goal.Momentum > 10 {
			return fmt.Errorf("%w: momentum %d out of range", ErrMalformedResponse, goal.Momentum)
		}
	}
	return nil
}
