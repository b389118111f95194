// Package kbstore reads and writes the user's encrypted knowledge base.
//
// The stored row holds one cipher blob per kb section plus an integer
// version used for optimistic concurrency. All encryption and decryption
// happens here on the client; storage only ever sees opaque blobs.
package kbstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/lucascarsonbrown/Inword/internal/kb"
	"github.com/lucascarsonbrown/Inword/internal/security"
)

// RowStore is the persistence surface the client needs. *SQLRowStore
// implements it against the local database; a sync-backed implementation
// can replace it without touching the client.
type RowStore interface {
	GetRow(ctx context.Context, userID string) (*KBRow, error)
	InsertRow(ctx context.Context, row *KBRow) error
	UpdateRow(ctx context.Context, row *KBRow, expectedVersion int64) error
	AppendUpdateLog(ctx context.Context, entry *UpdateLogEntry) error
}

// KeySource supplies the user's encryption key.
type KeySource interface {
	GetOrCreateKey() (string, error)
}

// UserFunc resolves the signed-in user id. It is consulted on every call so
// sign-in state can change between operations.
type UserFunc func() (string, error)

// Client is the high-level kb API: fetch, save with conflict handling, and
// smart-merge save for extraction updates.
type Client struct {
	rows        RowStore
	keys        KeySource
	currentUser UserFunc
}

// NewClient creates a kb client.
func NewClient(rows RowStore, keys KeySource, currentUser UserFunc) *Client {
	return &Client{rows: rows, keys: keys, currentUser: currentUser}
}

// Snapshot is a decrypted kb together with the storage version it was read
// at. Version 0 means the user has no stored row yet. Unreadable names the
// sections that failed to decrypt; their KB fields hold empty defaults.
type Snapshot struct {
	KB         *kb.PrivateKB
	Version    int64
	Unreadable []string
}

// SaveResult reports how a save ended.
type SaveResult struct {
	Version int64 // stored version after the save
	Merged  bool  // true when a version conflict forced a merge
}

// Fetch loads and decrypts the user's kb. A user with no stored row gets a
// fresh empty kb at version 0; that is a normal first run, not an error. A
// row with sections that cannot be decrypted returns the readable sections
// in the snapshot together with an ErrSectionUnreadable error; callers may
// display the partial kb but must not save over it.
func (c *Client) Fetch(ctx context.Context) (*Snapshot, error) {
	userID, err := c.userID()
	if err != nil {
		return nil, err
	}
	return c.fetchForUser(ctx, userID)
}

// Save encrypts and writes the kb, expecting storage to still be at
// baseVersion. Pass version 0 for a user with no stored row. On a version
// conflict the client re-fetches, merges the kb being saved over the stored
// one, and retries exactly once; a second conflict returns
// ErrVersionConflict.
func (c *Client) Save(ctx context.Context, toSave *kb.PrivateKB, baseVersion int64) (*SaveResult, error) {
	userID, err := c.userID()
	if err != nil {
		return nil, err
	}
	return c.saveForUser(ctx, userID, toSave, baseVersion)
}

// SmartMergeSave folds an extraction update into the stored kb. It always
// re-fetches first so the merge applies to the latest stored state, then
// saves at that version. Every attempt is recorded in the update log.
func (c *Client) SmartMergeSave(ctx context.Context, upd *kb.Update) (*SaveResult, error) {
	userID, err := c.userID()
	if err != nil {
		return nil, err
	}

	snap, err := c.fetchForUser(ctx, userID)
	if err != nil {
		c.logUpdate(ctx, userID, upd.Sections(), OutcomeFailed, 0, err.Error())
		return nil, err
	}

	merged := kb.ApplySmartMerge(snap.KB, upd)
	res, err := c.saveForUser(ctx, userID, merged, snap.Version)
	if err != nil {
		c.logUpdate(ctx, userID, upd.Sections(), OutcomeFailed, 0, err.Error())
		return nil, err
	}

	outcome := OutcomeSaved
	if res.Merged {
		outcome = OutcomeMerged
	}
	c.logUpdate(ctx, userID, upd.Sections(), outcome, res.Version, "")
	return res, nil
}

func (c *Client) userID() (string, error) {
	userID, err := c.currentUser()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotAuthenticated, err)
	}
	if userID == "" {
		return "", ErrNotAuthenticated
	}
	return userID, nil
}

func (c *Client) fetchForUser(ctx context.Context, userID string) (*Snapshot, error) {
	row, err := c.rows.GetRow(ctx, userID)
	if errors.Is(err, ErrRowNotFound) {
		log.Debug().Str("user_id", userID).Msg("No kb row yet, starting empty")
		return &Snapshot{KB: kb.NewPrivateKB(), Version: 0}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch kb: %w", err)
	}

	key, err := c.keys.GetOrCreateKey()
	if err != nil {
		return nil, fmt.Errorf("load kb key: %w", err)
	}
	return decryptRow(row, key)
}

func (c *Client) saveForUser(ctx context.Context, userID string, toSave *kb.PrivateKB, baseVersion int64) (*SaveResult, error) {
	key, err := c.keys.GetOrCreateKey()
	if err != nil {
		return nil, fmt.Errorf("load kb key: %w", err)
	}

	current := toSave
	version := baseVersion
	merged := false

	const maxRetries = 1
	for attempt := 0; ; attempt++ {
		row, err := encryptRow(userID, current, key)
		if err != nil {
			return nil, err
		}

		if version == 0 {
			err = c.rows.InsertRow(ctx, row)
		} else {
			err = c.rows.UpdateRow(ctx, row, version)
		}
		if err == nil {
			log.Info().Str("user_id", userID).Int64("version", row.Version).
				Bool("merged", merged).Msg("KB saved")
			return &SaveResult{Version: row.Version, Merged: merged}, nil
		}
		if !errors.Is(err, ErrVersionMismatch) && !errors.Is(err, ErrRowExists) {
			return nil, fmt.Errorf("save kb: %w", err)
		}
		if attempt >= maxRetries {
			return nil, ErrVersionConflict
		}

		// Lost the race. Read the winner's kb, merge ours over it, and
		// try once more at the winner's version.
		snap, err := c.fetchForUser(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("refetch for conflict merge: %w", err)
		}
		current = kb.MergeOnConflict(snap.KB, current)
		version = snap.Version
		merged = true
		log.Warn().Str("user_id", userID).Int64("version", version).
			Msg("KB version conflict, merging and retrying")
	}
}

func (c *Client) logUpdate(ctx context.Context, userID string, sections []string, outcome string, version int64, detail string) {
	entry := &UpdateLogEntry{
		UserID:   userID,
		Sections: sections,
		Outcome:  outcome,
		Version:  version,
		Detail:   detail,
	}
	if err := c.rows.AppendUpdateLog(ctx, entry); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("Failed to append kb update log")
	}
}

// decryptRow decrypts the row's sections in parallel into a fresh kb.
// Sections that were never written keep their empty defaults. When a
// section fails to decrypt or decode, the snapshot is still returned with
// the readable sections intact and the failed ones named in Unreadable,
// together with the joined failures.
func decryptRow(row *KBRow, key string) (*Snapshot, error) {
	out := kb.NewPrivateKB()
	jobs := []struct {
		name   string
		cipher *string
		apply  func(plain []byte) error
	}{
		{kb.SectionGeneral, row.GeneralCipher, func(plain []byte) error {
			return json.Unmarshal(plain, &out.General)
		}},
		{kb.SectionStateRecent, row.StateRecentCipher, func(plain []byte) error {
			return json.Unmarshal(plain, &out.StateRecent)
		}},
		{kb.SectionGoalsProgress, row.GoalsProgressCipher, func(plain []byte) error {
			return json.Unmarshal(plain, &out.GoalsProgress)
		}},
	}

	errs := make([]error, len(jobs))
	var wg sync.WaitGroup
	for i, job := range jobs {
		if job.cipher == nil || *job.cipher == "" {
			continue
		}
		wg.Add(1)
		go func(i int, name, blob string, apply func([]byte) error) {
			defer wg.Done()
			plain, err := security.Decrypt(blob, key)
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", name, ErrSectionUnreadable)
				return
			}
			if err := apply([]byte(plain)); err != nil {
				errs[i] = fmt.Errorf("%s: %w", name, ErrSectionUnreadable)
			}
		}(i, job.name, *job.cipher, job.apply)
	}
	wg.Wait()

	snap := &Snapshot{KB: out, Version: row.Version}
	for i, err := range errs {
		if err != nil {
			snap.Unreadable = append(snap.Unreadable, jobs[i].name)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return snap, fmt.Errorf("decrypt kb: %w", err)
	}
	return snap, nil
}

// encryptRow serializes and encrypts each kb section into a fresh row.
func encryptRow(userID string, in *kb.PrivateKB, key string) (*KBRow, error) {
	row := &KBRow{UserID: userID}
	sections := []struct {
		name  string
		value any
		into  **string
	}{
		{kb.SectionGeneral, in.General, &row.GeneralCipher},
		{kb.SectionStateRecent, in.StateRecent, &row.StateRecentCipher},
		{kb.SectionGoalsProgress, in.GoalsProgress, &row.GoalsProgressCipher},
	}
	for _, s := range sections {
		plain, err := json.Marshal(s.value)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", s.name, err)
		}
		blob, err := security.Encrypt(string(plain), key)
		if err != nil {
			return nil, fmt.Errorf("encrypt %s: %w", s.name, err)
		}
		*s.into = &blob
	}
	return row, nil
}
