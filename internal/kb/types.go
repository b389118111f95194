// Package kb defines the private knowledge base: the per-user document of
// AI-derived facts that Inword accumulates over time. A KB is three
// independently encrypted sections (long-term general facts, a rolling
// 30-day emotional snapshot, and per-goal progress). The package holds the
// section types, the two merge policies that reconcile updates into a KB,
// and the bounded compact-context projection used for prompt injection.
package kb

import (
	"time"
)

// RecentWindow is the fixed lookback window of the state_recent section.
const RecentWindow = "30d"

// Caps for the general section's list fields. When a merge pushes a list
// over its cap, the oldest entries are dropped first.
const (
	MaxListItems         = 10
	MaxRelationshipItems = 15
)

// Section names, used in error reporting and the update audit log.
const (
	SectionGeneral       = "general"
	SectionStateRecent   = "state_recent"
	SectionGoalsProgress = "goals_progress"
)

// PrivateKB is the complete decrypted knowledge base for one user.
type PrivateKB struct {
	General       GeneralSection       `json:"general"`
	StateRecent   RecentState          `json:"state_recent"`
	GoalsProgress GoalsProgressSection `json:"goals_progress"`
}

// GeneralSection holds long-term stable facts. Every field except the
// alias is a deduplicated, order-preserving list capped at MaxListItems
// (MaxRelationshipItems for relationships).
type GeneralSection struct {
	NameOrAlias        string   `json:"name_or_alias,omitempty"`
	Bio                []string `json:"bio,omitempty"`
	Relationships      []string `json:"relationships,omitempty"`
	WorkSchool         []string `json:"work_school,omitempty"`
	Routines           []string `json:"routines,omitempty"`
	Preferences        []string `json:"preferences,omitempty"`
	Values             []string `json:"values,omitempty"`
	TriggersBoundaries []string `json:"triggers_boundaries,omitempty"`
}

// RecentState is the rolling emotional snapshot over RecentWindow.
type RecentState struct {
	Window           string   `json:"window"`
	DominantEmotions []string `json:"dominant_emotions,omitempty"`
	// MoodScoreAvg is nil only when no rated entries exist in the
	// window; otherwise it is in [1,5].
	MoodScoreAvg      *float64 `json:"mood_score_avg,omitempty"`
	Highs             []string `json:"highs,omitempty"`
	Lows              []string `json:"lows,omitempty"`
	Stressors         []string `json:"stressors,omitempty"`
	ProtectiveFactors []string `json:"protective_factors,omitempty"`
	RedFlags          []string `json:"red_flags,omitempty"`
	SuggestedFocus    []string `json:"suggested_focus,omitempty"`
	YearSummary       string   `json:"year_summary,omitempty"`
}

// GoalsProgressSection tracks progress on the user's goals: at most one
// record per goal identifier. Whether an identifier matches a goal the
// user owns is the goal store's concern, not the KB's.
type GoalsProgressSection struct {
	Goals     []GoalProgress `json:"goals"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// GoalProgress is one goal's progress record.
type GoalProgress struct {
	GoalID          string   `json:"goal_id"`
	ProgressNotes   string   `json:"progress_notes,omitempty"`
	PercentComplete int      `json:"percent_complete"` // 0-100
	NextActions     []string `json:"next_actions,omitempty"`
	RisksBlockers   []string `json:"risks_blockers,omitempty"`
	Momentum        int      `json:"momentum"` // 0-10
}

// NewPrivateKB returns a KB of all-empty defaults. A user's KB has no
// existence of its own; it is created lazily with this shape on first read.
func NewPrivateKB() *PrivateKB {
	return &PrivateKB{
		StateRecent:   RecentState{Window: RecentWindow},
		GoalsProgress: GoalsProgressSection{Goals: make([]GoalProgress, 0)},
	}
}

// Update carries AI-proposed partial updates, one optional entry per
// section. A nil section means the extractor produced nothing for it and
// the current value is kept untouched.
type Update struct {
	General       *GeneralSection       `json:"general,omitempty"`
	StateRecent   *RecentStateUpdate    `json:"state_recent,omitempty"`
	GoalsProgress *GoalsProgressSection `json:"goals_progress,omitempty"`
}

// RecentStateUpdate mirrors RecentState with per-field presence: a nil
// field keeps the current value. It carries no Window or YearSummary. The
// window is a fixed literal and the year summary is maintained outside the
// extraction path, so no update may change either.
type RecentStateUpdate struct {
	DominantEmotions  []string `json:"dominant_emotions,omitempty"`
	MoodScoreAvg      *float64 `json:"mood_score_avg,omitempty"`
	Highs             []string `json:"highs,omitempty"`
	Lows              []string `json:"lows,omitempty"`
	Stressors         []string `json:"stressors,omitempty"`
	ProtectiveFactors []string `json:"protective_factors,omitempty"`
	RedFlags          []string `json:"red_flags,omitempty"`
	SuggestedFocus    []string `json:"suggested_focus,omitempty"`
}

// Sections lists the section names the update carries, in canonical order.
func (u *Update) Sections() []string {
	if u == nil {
		return nil
	}
	var names []string
	if u.General != nil {
		names = append(names, SectionGeneral)
	}
	if u.StateRecent != nil {
		names = append(names, SectionStateRecent)
	}
	if u.GoalsProgress != nil {
		names = append(names, SectionGoalsProgress)
	}
	return names
}

// IsEmpty reports whether the update carries no sections at all.
func (u *Update) IsEmpty() bool {
	return u == nil || (u.General == nil && u.StateRecent == nil && u.GoalsProgress == nil)
}
