package kb

// Two merge policies coexist and must not be confused. MergeOnConflict
// resolves a lost version race at save time and picks whole field values.
// ApplySmartMerge folds extractor output into the KB and unions list
// items. The general section follows different rules in each.

// MergeOnConflict reconciles a save that lost a version race. current is
// what the store holds now, incoming is the KB the caller intended to
// write. General fields take the incoming value when non-empty and fall
// back to current field by field. StateRecent and GoalsProgress take
// incoming wholesale: the most recently computed snapshot is freshest.
func MergeOnConflict(current, incoming *PrivateKB) *PrivateKB {
	return &PrivateKB{
		General: GeneralSection{
			NameOrAlias:        pickString(incoming.General.NameOrAlias, current.General.NameOrAlias),
			Bio:                pickList(incoming.General.Bio, current.General.Bio),
			Relationships:      pickList(incoming.General.Relationships, current.General.Relationships),
			WorkSchool:         pickList(incoming.General.WorkSchool, current.General.WorkSchool),
			Routines:           pickList(incoming.General.Routines, current.General.Routines),
			Preferences:        pickList(incoming.General.Preferences, current.General.Preferences),
			Values:             pickList(incoming.General.Values, current.General.Values),
			TriggersBoundaries: pickList(incoming.General.TriggersBoundaries, current.General.TriggersBoundaries),
		},
		StateRecent:   incoming.StateRecent,
		GoalsProgress: incoming.GoalsProgress,
	}
}

// ApplySmartMerge folds an extraction update into the current KB and
// returns the merged KB. Neither input is mutated.
//
// General list fields union current then incoming, dedupe by exact string
// match keeping the first occurrence, and when over cap keep the last N
// items so the oldest entries are evicted. StateRecent fields replace only
// when the update carries them; the window is forced to RecentWindow and
// the year summary always carries over from current. GoalsProgress
// replaces wholesale when present.
func ApplySmartMerge(current *PrivateKB, upd *Update) *PrivateKB {
	out := &PrivateKB{
		General:       current.General,
		StateRecent:   current.StateRecent,
		GoalsProgress: current.GoalsProgress,
	}
	out.StateRecent.Window = RecentWindow
	if upd == nil {
		return out
	}

	if g := upd.General; g != nil {
		if g.NameOrAlias != "" {
			out.General.NameOrAlias = g.NameOrAlias
		}
		out.General.Bio = mergeList(out.General.Bio, g.Bio, MaxListItems)
		out.General.Relationships = mergeList(out.General.Relationships, g.Relationships, MaxRelationshipItems)
		out.General.WorkSchool = mergeList(out.General.WorkSchool, g.WorkSchool, MaxListItems)
		out.General.Routines = mergeList(out.General.Routines, g.Routines, MaxListItems)
		out.General.Preferences = mergeList(out.General.Preferences, g.Preferences, MaxListItems)
		out.General.Values = mergeList(out.General.Values, g.Values, MaxListItems)
		out.General.TriggersBoundaries = mergeList(out.General.TriggersBoundaries, g.TriggersBoundaries, MaxListItems)
	}

	if s := upd.StateRecent; s != nil {
		if s.DominantEmotions != nil {
			out.StateRecent.DominantEmotions = cloneStrings(s.DominantEmotions)
		}
		if s.MoodScoreAvg != nil {
			v := *s.MoodScoreAvg
			out.StateRecent.MoodScoreAvg = &v
		}
		if s.Highs != nil {
			out.StateRecent.Highs = cloneStrings(s.Highs)
		}
		if s.Lows != nil {
			out.StateRecent.Lows = cloneStrings(s.Lows)
		}
		if s.Stressors != nil {
			out.StateRecent.Stressors = cloneStrings(s.Stressors)
		}
		if s.ProtectiveFactors != nil {
			out.StateRecent.ProtectiveFactors = cloneStrings(s.ProtectiveFactors)
		}
		if s.RedFlags != nil {
			out.StateRecent.RedFlags = cloneStrings(s.RedFlags)
		}
		if s.SuggestedFocus != nil {
			out.StateRecent.SuggestedFocus = cloneStrings(s.SuggestedFocus)
		}
	}

	if upd.GoalsProgress != nil {
		out.GoalsProgress = *upd.GoalsProgress
	}
	return out
}

// mergeList unions current then incoming, drops exact duplicates keeping
// the first occurrence, and keeps the last limit items when over.
func mergeList(current, incoming []string, limit int) []string {
	merged := make([]string, 0, len(current)+len(incoming))
	seen := make(map[string]struct{}, len(current)+len(incoming))
	for _, s := range current {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		merged = append(merged, s)
	}
	for _, s := range incoming {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		merged = append(merged, s)
	}
	if len(merged) > limit {
		merged = merged[len(merged)-limit:]
	}
	return merged
}

func pickString(incoming, current string) string {
	if incoming != "" {
		return incoming
	}
	return current
}

func pickList(incoming, current []string) []string {
	if len(incoming) > 0 {
		return cloneStrings(incoming)
	}
	return cloneStrings(current)
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}
