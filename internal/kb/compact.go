package kb

import (
	"fmt"
	"strings"
)

// Bounds for the compact context projection.
const (
	MaxContextFacts      = 7
	MaxContextHighlights = 4
	MaxContextGoals      = 2
	MaxContextNextSteps  = 2
)

// CompactContext is the small bounded projection of a KB injected into
// chat prompts. It is derived fresh on every chat open and never persisted.
type CompactContext struct {
	GeneralFacts     []string      `json:"general_facts"`
	RecentHighlights []string      `json:"recent_highlights"`
	RelevantGoals    []CompactGoal `json:"relevant_goals"`
}

// CompactGoal summarizes one goal's progress for prompt injection.
type CompactGoal struct {
	Title           string   `json:"title"`
	PercentComplete int      `json:"percent_complete"`
	NextActions     []string `json:"next_actions"`
}

// GoalInfo names one live goal for compact-context resolution.
type GoalInfo struct {
	ID    string
	Title string
}

// BuildCompactContext projects a KB plus the user's live goals into a
// CompactContext. Deterministic, no I/O. Progress records whose goal
// identifier matches nothing in goals are dropped rather than shown as
// unknown.
func BuildCompactContext(k *PrivateKB, goals []GoalInfo) CompactContext {
	facts := make([]string, 0, MaxContextFacts)
	if alias := k.General.NameOrAlias; alias != "" {
		facts = append(facts, "Goes by: "+alias)
	}
	facts = append(facts, firstN(k.General.Bio, 3)...)
	facts = append(facts, firstN(k.General.Values, 2)...)
	facts = append(facts, firstN(k.General.Preferences, 2)...)
	if len(facts) > MaxContextFacts {
		facts = facts[:MaxContextFacts]
	}

	highlights := make([]string, 0, MaxContextHighlights)
	if emotions := firstN(k.StateRecent.DominantEmotions, 3); len(emotions) > 0 {
		highlights = append(highlights, "Recent emotions: "+strings.Join(emotions, ", "))
	}
	if avg := k.StateRecent.MoodScoreAvg; avg != nil {
		highlights = append(highlights, fmt.Sprintf("Average mood: %.1f/5", *avg))
	}
	highlights = append(highlights, firstN(k.StateRecent.Highs, 2)...)
	highlights = append(highlights, firstN(k.StateRecent.Stressors, 2)...)
	if len(highlights) > MaxContextHighlights {
		highlights = highlights[:MaxContextHighlights]
	}

	titleByID := make(map[string]string, len(goals))
	for _, g := range goals {
		titleByID[g.ID] = g.Title
	}
	records := k.GoalsProgress.Goals
	if len(records) > MaxContextGoals {
		records = records[:MaxContextGoals]
	}
	compactGoals := make([]CompactGoal, 0, len(records))
	for _, rec := range records {
		title, ok := titleByID[rec.GoalID]
		if !ok {
			continue
		}
		compactGoals = append(compactGoals, CompactGoal{
			Title:           title,
			PercentComplete: rec.PercentComplete,
			NextActions:     cloneStrings(firstN(rec.NextActions, MaxContextNextSteps)),
		})
	}

	return CompactContext{
		GeneralFacts:     facts,
		RecentHighlights: highlights,
		RelevantGoals:    compactGoals,
	}
}

func firstN(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[:n]
}
