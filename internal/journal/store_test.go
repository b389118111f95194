package journal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucascarsonbrown/Inword/internal/data"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := data.NewDB(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db.DB())
}

func intPtr(v int) *int {
	return &v
}

func TestAddEntry(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entry, err := store.AddEntry(ctx, "user-1", "Slept well, went for a run.", intPtr(4))
	require.NoError(t, err)
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, "user-1", entry.UserID)
	require.NotNil(t, entry.MoodRating)
	assert.Equal(t, 4, *entry.MoodRating)
	assert.False(t, entry.CreatedAt.IsZero())

	entries, err := store.EntriesSince(ctx, "user-1", time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, entry.ID, entries[0].ID)
	assert.Equal(t, "Slept well, went for a run.", entries[0].Content)
	require.NotNil(t, entries[0].MoodRating)
	assert.Equal(t, 4, *entries[0].MoodRating)
}

func TestAddEntryValidation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	testCases := []struct {
		name    string
		content string
		mood    *int
		wantErr error
	}{
		{
			name:    "empty content",
			content: "",
			wantErr: ErrEmptyContent,
		},
		{
			name:    "mood too low",
			content: "fine",
			mood:    intPtr(0),
			wantErr: ErrInvalidMood,
		},
		{
			name:    "mood too high",
			content: "fine",
			mood:    intPtr(6),
			wantErr: ErrInvalidMood,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := store.AddEntry(ctx, "user-1", tc.content, tc.mood)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestAddEntryWithoutMood(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entry, err := store.AddEntry(ctx, "user-1", "No rating today.", nil)
	require.NoError(t, err)
	assert.Nil(t, entry.MoodRating)

	entries, err := store.EntriesSince(ctx, "user-1", time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].MoodRating)
}

func TestEntriesSinceWindow(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	old := time.Now().UTC().Add(-40 * 24 * time.Hour)
	_, err := store.db.ExecContext(ctx,
		`INSERT INTO journal_entries (id, user_id, content, mood_rating, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		"entry-old", "user-1", "old entry", nil, data.FormatTime(old))
	require.NoError(t, err)

	recent, err := store.AddEntry(ctx, "user-1", "recent entry", nil)
	require.NoError(t, err)

	since := time.Now().UTC().Add(-30 * 24 * time.Hour)
	entries, err := store.EntriesSince(ctx, "user-1", since, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, recent.ID, entries[0].ID)

	all, err := store.EntriesSince(ctx, "user-1", time.Time{}, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestEntriesSinceOrderAndLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.AddEntry(ctx, "user-1", "first", nil)
	require.NoError(t, err)
	second, err := store.AddEntry(ctx, "user-1", "second", nil)
	require.NoError(t, err)
	third, err := store.AddEntry(ctx, "user-1", "third", nil)
	require.NoError(t, err)

	entries, err := store.EntriesSince(ctx, "user-1", time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, third.ID, entries[0].ID)
	assert.Equal(t, second.ID, entries[1].ID)
	assert.Equal(t, first.ID, entries[2].ID)

	limited, err := store.EntriesSince(ctx, "user-1", time.Time{}, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, third.ID, limited[0].ID)
	assert.Equal(t, second.ID, limited[1].ID)
}

func TestEntriesScopedToUser(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.AddEntry(ctx, "user-1", "mine", nil)
	require.NoError(t, err)
	_, err = store.AddEntry(ctx, "user-2", "theirs", nil)
	require.NoError(t, err)

	entries, err := store.EntriesSince(ctx, "user-1", time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "mine", entries[0].Content)
}

func TestAddGoalAndList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	goal, err := store.AddGoal(ctx, "user-1", "Run a half marathon", "Train three times a week")
	require.NoError(t, err)
	assert.NotEmpty(t, goal.ID)
	assert.Equal(t, StatusActive, goal.Status)

	goals, err := store.ListGoals(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, goals, 1)
	assert.Equal(t, goal.ID, goals[0].ID)
	assert.Equal(t, "Run a half marathon", goals[0].Title)
	assert.Equal(t, "Train three times a week", goals[0].Detail)
	assert.Equal(t, StatusActive, goals[0].Status)
}

func TestAddGoalEmptyTitle(t *testing.T) {
	store := newTestStore(t)

	_, err := store.AddGoal(context.Background(), "user-1", "", "detail")
	assert.ErrorIs(t, err, ErrEmptyTitle)
}

func TestListGoalsExcludesArchived(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	keep, err := store.AddGoal(ctx, "user-1", "Keep", "")
	require.NoError(t, err)
	archived, err := store.AddGoal(ctx, "user-1", "Archive me", "")
	require.NoError(t, err)

	require.NoError(t, store.UpdateGoalStatus(ctx, "user-1", archived.ID, StatusArchived))

	goals, err := store.ListGoals(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, goals, 1)
	assert.Equal(t, keep.ID, goals[0].ID)
}

func TestUpdateGoalStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	goal, err := store.AddGoal(ctx, "user-1", "Meditate daily", "")
	require.NoError(t, err)

	require.NoError(t, store.UpdateGoalStatus(ctx, "user-1", goal.ID, StatusDone))

	goals, err := store.ListGoals(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, goals, 1)
	assert.Equal(t, StatusDone, goals[0].Status)
	assert.True(t, goals[0].UpdatedAt.After(goals[0].CreatedAt))
}

func TestUpdateGoalStatusErrors(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	goal, err := store.AddGoal(ctx, "user-1", "Sleep more", "")
	require.NoError(t, err)

	assert.ErrorIs(t, store.UpdateGoalStatus(ctx, "user-1", goal.ID, "snoozing"), ErrInvalidStatus)
	assert.ErrorIs(t, store.UpdateGoalStatus(ctx, "user-1", "missing-goal", StatusDone), ErrGoalNotFound)
	assert.ErrorIs(t, store.UpdateGoalStatus(ctx, "user-2", goal.ID, StatusDone), ErrGoalNotFound)
}
