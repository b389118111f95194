package kbstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lucascarsonbrown/Inword/internal/data"
)

// KBRow is the stored shape of a user's encrypted knowledge base. The three
// section columns hold opaque cipher blobs; a nil column means that section
// has never been written.
type KBRow struct {
	UserID              string
	GeneralCipher       *string
	StateRecentCipher   *string
	GoalsProgressCipher *string
	EncryptedKeyBackup  *string
	Version             int64
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Outcomes recorded in the update log.
const (
	OutcomeSaved  = "saved"
	OutcomeMerged = "merged"
	OutcomeFailed = "failed"
)

// UpdateLogEntry records one kb save attempt. Metadata only: section names,
// outcome, and version. No entry content or cipher material.
type UpdateLogEntry struct {
	ID        int64
	UserID    string
	Sections  []string
	Outcome   string
	Version   int64 // version after the attempt, 0 when it failed
	Detail    string
	CreatedAt time.Time
}

// SQLRowStore persists kb rows in the local database using the same row
// shape the sync server stores.
type SQLRowStore struct {
	db *sql.DB
}

// NewSQLRowStore creates a row store backed by db.
func NewSQLRowStore(db *sql.DB) *SQLRowStore {
	return &SQLRowStore{db: db}
}

// GetRow loads the user's kb row. Returns ErrRowNotFound when the user has
// never saved a kb.
func (s *SQLRowStore) GetRow(ctx context.Context, userID string) (*KBRow, error) {
	var (
		r         KBRow
		general   sql.NullString
		state     sql.NullString
		goals     sql.NullString
		keyBackup sql.NullString
		createdAt string
		updatedAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, general_cipher, state_recent_cipher, goals_progress_cipher,
		        encrypted_key_backup, version, created_at, updated_at
		 FROM kb_rows WHERE user_id = ?`, userID).
		Scan(&r.UserID, &general, &state, &goals, &keyBackup, &r.Version, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrRowNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query kb row: %w", err)
	}

	r.GeneralCipher = nullableString(general)
	r.StateRecentCipher = nullableString(state)
	r.GoalsProgressCipher = nullableString(goals)
	r.EncryptedKeyBackup = nullableString(keyBackup)
	if r.CreatedAt, err = data.ParseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse kb row timestamp: %w", err)
	}
	if r.UpdatedAt, err = data.ParseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse kb row timestamp: %w", err)
	}
	return &r, nil
}

// InsertRow creates the user's kb row at version 1. Returns ErrRowExists
// when another writer created the row first.
func (s *SQLRowStore) InsertRow(ctx context.Context, row *KBRow) error {
	now := data.FormatTime(time.Now().UTC())
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO kb_rows
		 (user_id, general_cipher, state_recent_cipher, goals_progress_cipher,
		  encrypted_key_backup, version, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, 1, ?, ?)
		 ON CONFLICT(user_id) DO NOTHING`,
		row.UserID, row.GeneralCipher, row.StateRecentCipher, row.GoalsProgressCipher,
		row.EncryptedKeyBackup, now, now)
	if err != nil {
		return fmt.Errorf("insert kb row: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert kb row: %w", err)
	}
	if affected == 0 {
		return ErrRowExists
	}
	row.Version = 1
	return nil
}

// UpdateRow writes the section ciphers if the stored version still equals
// expectedVersion, advancing the version by one. Returns ErrVersionMismatch
// when another writer got there first. The key backup column is not touched;
// use SetKeyBackup for that.
func (s *SQLRowStore) UpdateRow(ctx context.Context, row *KBRow, expectedVersion int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE kb_rows
		 SET general_cipher = ?, state_recent_cipher = ?, goals_progress_cipher = ?,
		     version = version + 1, updated_at = ?
		 WHERE user_id = ? AND version = ?`,
		row.GeneralCipher, row.StateRecentCipher, row.GoalsProgressCipher,
		data.FormatTime(time.Now().UTC()), row.UserID, expectedVersion)
	if err != nil {
		return fmt.Errorf("update kb row: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update kb row: %w", err)
	}
	if affected == 0 {
		return ErrVersionMismatch
	}
	row.Version = expectedVersion + 1
	return nil
}

// SetKeyBackup stores or clears the wrapped key copy on the user's row. The
// row version is left alone so key backup never races kb saves.
func (s *SQLRowStore) SetKeyBackup(ctx context.Context, userID string, wrapped *string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE kb_rows SET encrypted_key_backup = ?, updated_at = ? WHERE user_id = ?`,
		wrapped, data.FormatTime(time.Now().UTC()), userID)
	if err != nil {
		return fmt.Errorf("set kb key backup: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set kb key backup: %w", err)
	}
	if affected == 0 {
		return ErrRowNotFound
	}
	return nil
}

// AppendUpdateLog adds an audit record for a kb save attempt.
func (s *SQLRowStore) AppendUpdateLog(ctx context.Context, entry *UpdateLogEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kb_update_log (user_id, sections, outcome, version, detail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.UserID, strings.Join(entry.Sections, ","), entry.Outcome, entry.Version,
		entry.Detail, data.FormatTime(time.Now().UTC()))
	if err != nil {
		return fmt.Errorf("append kb update log: %w", err)
	}
	return nil
}

// RecentUpdates returns the user's latest update log entries, newest first.
func (s *SQLRowStore) RecentUpdates(ctx context.Context, userID string, limit int) ([]UpdateLogEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, sections, outcome, version, detail, created_at
		 FROM kb_update_log WHERE user_id = ? ORDER BY id DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query kb update log: %w", err)
	}
	defer rows.Close()

	var entries []UpdateLogEntry
	for rows.Next() {
		var (
			entry     UpdateLogEntry
			sections  string
			detail    sql.NullString
			createdAt string
		)
		if err := rows.Scan(&entry.ID, &sections, &entry.Outcome, &entry.Version, &detail, &createdAt); err != nil {
			return nil, fmt.Errorf("scan kb update log: %w", err)
		}
		entry.UserID = userID
		if sections != "" {
			entry.Sections = strings.Split(sections, ",")
		}
		entry.Detail = detail.String
		if entry.CreatedAt, err = data.ParseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parse kb update log timestamp: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func nullableString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
