// Package journal persists journal entries and goals in the local database.
//
// Entries and goals are plaintext rows; only the knowledge base derived from
// them is encrypted. Raw entry content never leaves the device.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"

	"github.com/lucascarsonbrown/Inword/internal/data"
)

var (
	// ErrEmptyContent is returned when an entry has no content.
	ErrEmptyContent = errors.New("journal entry content is empty")
	// ErrInvalidMood is returned when a mood rating falls outside 1-5.
	ErrInvalidMood = errors.New("mood rating must be between 1 and 5")
	// ErrEmptyTitle is returned when a goal has no title.
	ErrEmptyTitle = errors.New("goal title is empty")
	// ErrInvalidStatus is returned for an unknown goal status.
	ErrInvalidStatus = errors.New("invalid goal status")
	// ErrGoalNotFound is returned when a goal does not exist for the user.
	ErrGoalNotFound = errors.New("goal not found")
)

// Goal statuses. Archived goals are hidden from listings but kept for
// history.
const (
	StatusActive   = "active"
	StatusPaused   = "paused"
	StatusDone     = "done"
	StatusArchived = "archived"
)

// Entry is a single journal entry.
type Entry struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Content    string    `json:"content"`
	MoodRating *int      `json:"mood_rating,omitempty"` // 1-5, nil when not recorded
	CreatedAt  time.Time `json:"created_at"`
}

// Goal is a longer-term aim the user tracks alongside their entries.
type Goal struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Detail    string    `json:"detail,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store reads and writes journal entries and goals.
type Store struct {
	db      *sql.DB
	entropy *rand.Rand
}

// NewStore creates a journal store backed by db.
func NewStore(db *sql.DB) *Store {
	return &Store{
		db:      db,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// newEntryID returns a ULID so entry ids sort by creation time.
func (s *Store) newEntryID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

// AddEntry validates and stores a new journal entry.
func (s *Store) AddEntry(ctx context.Context, userID, content string, moodRating *int) (*Entry, error) {
	if content == "" {
		return nil, ErrEmptyContent
	}
	if moodRating != nil && (*moodRating < 1 || *moodRating > 5) {
		return nil, ErrInvalidMood
	}

	entry := &Entry{
		ID:         s.newEntryID(),
		UserID:     userID,
		Content:    content,
		MoodRating: moodRating,
		CreatedAt:  time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO journal_entries (id, user_id, content, mood_rating, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		entry.ID, entry.UserID, entry.Content, entry.MoodRating, data.FormatTime(entry.CreatedAt))
	if err != nil {
		return nil, fmt.Errorf("insert journal entry: %w", err)
	}

	log.Info().Str("user_id", userID).Str("entry_id", entry.ID).Msg("Journal entry added")
	return entry, nil
}

// EntriesSince returns the user's entries created at or after since, newest
// first. A positive limit caps the result.
func (s *Store) EntriesSince(ctx context.Context, userID string, since time.Time, limit int) ([]Entry, error) {
	query := `SELECT id, content, mood_rating, created_at FROM journal_entries
		WHERE user_id = ? AND created_at >= ?
		ORDER BY created_at DESC, id DESC`
	args := []any{userID, data.FormatTime(since)}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query journal entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e         Entry
			mood      sql.NullInt64
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.Content, &mood, &createdAt); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		e.UserID = userID
		if mood.Valid {
			rating := int(mood.Int64)
			e.MoodRating = &rating
		}
		if e.CreatedAt, err = data.ParseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parse entry timestamp: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// AddGoal creates a new goal in the active status.
func (s *Store) AddGoal(ctx context.Context, userID, title, detail string) (*Goal, error) {
	if title == "" {
		return nil, ErrEmptyTitle
	}

	now := time.Now().UTC()
	goal := &Goal{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		Detail:    detail,
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO goals (id, user_id, title, detail, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		goal.ID, goal.UserID, goal.Title, goal.Detail, goal.Status,
		data.FormatTime(goal.CreatedAt), data.FormatTime(goal.UpdatedAt))
	if err != nil {
		return nil, fmt.Errorf("insert goal: %w", err)
	}

	log.Info().Str("user_id", userID).Str("goal_id", goal.ID).Str("title", title).Msg("Goal added")
	return goal, nil
}

// ListGoals returns the user's goals, newest first, excluding archived ones.
func (s *Store) ListGoals(ctx context.Context, userID string) ([]Goal, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, detail, status, created_at, updated_at FROM goals
		WHERE user_id = ? AND status != ?
		ORDER BY created_at DESC, id DESC`,
		userID, StatusArchived)
	if err != nil {
		return nil, fmt.Errorf("query goals: %w", err)
	}
	defer rows.Close()

	var goals []Goal
	for rows.Next() {
		var (
			g         Goal
			detail    sql.NullString
			createdAt string
			updatedAt string
		)
		if err := rows.Scan(&g.ID, &g.Title, &detail, &g.Status, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		g.UserID = userID
		g.Detail = detail.String
		if g.CreatedAt, err = data.ParseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parse goal timestamp: %w", err)
		}
		if g.UpdatedAt, err = data.ParseTime(updatedAt); err != nil {
			return nil, fmt.Errorf("parse goal timestamp: %w", err)
		}
		goals = append(goals, g)
	}
	return goals, rows.Err()
}

// UpdateGoalStatus moves a goal to a new status.
func (s *Store) UpdateGoalStatus(ctx context.Context, userID, goalID, status string) error {
	switch status {
	case StatusActive, StatusPaused, StatusDone, StatusArchived:
	default:
		return ErrInvalidStatus
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE goals SET status = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		status, data.FormatTime(time.Now().UTC()), goalID, userID)
	if err != nil {
		return fmt.Errorf("update goal status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update goal status: %w", err)
	}
	if affected == 0 {
		return ErrGoalNotFound
	}

	log.Info().Str("user_id", userID).Str("goal_id", goalID).Str("status", status).Msg("Goal status updated")
	return nil
}
