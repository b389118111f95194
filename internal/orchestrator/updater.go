package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lucascarsonbrown/Inword/internal/journal"
)

// DefaultUpdateTimeout bounds one background update end to end.
const DefaultUpdateTimeout = 2 * time.Minute

// resultBuffer is how many unread results are held before new ones are
// dropped.
const resultBuffer = 16

// Updater runs kb updates in the background. A journal write triggers it and
// moves on; a failed update never fails the write that caused it. Outcomes
// are logged and offered on the Results channel for anyone listening.
type Updater struct {
	orch    *Orchestrator
	timeout time.Duration
	results chan UpdateResult

	mu     sync.Mutex
	wg     sync.WaitGroup
	closed bool
}

// NewUpdater creates an updater with the given per-update timeout.
func NewUpdater(orch *Orchestrator, timeout time.Duration) *Updater {
	if timeout <= 0 {
		timeout = DefaultUpdateTimeout
	}
	return &Updater{
		orch:    orch,
		timeout: timeout,
		results: make(chan UpdateResult, resultBuffer),
	}
}

// Results delivers update outcomes. The channel closes after Close has
// waited out all in-flight updates.
func (u *Updater) Results() <-chan UpdateResult {
	return u.results
}

// Trigger starts a background kb update for the user and returns
// immediately. The entry is the journal write that triggered it; a manual
// refresh passes nil. The update runs detached from the caller's lifetime,
// under its own timeout.
func (u *Updater) Trigger(userID string, entry *journal.Entry) {
	u.mu.Lock()
	if u.closed {
		u.mu.Unlock()
		log.Warn().Str("user_id", userID).Msg("KB updater closed, dropping trigger")
		return
	}
	u.wg.Add(1)
	u.mu.Unlock()

	go func() {
		defer u.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), u.timeout)
		defer cancel()

		result := u.orch.RunUpdate(ctx, userID, entry)
		if result.Err != nil {
			log.Error().Err(result.Err).Str("user_id", userID).
				Msg("Background kb update failed")
		} else {
			log.Info().Str("user_id", userID).Strs("sections", result.Sections).
				Int64("version", result.Version).Dur("duration", result.Duration).
				Msg("Background kb update finished")
		}

		select {
		case u.results <- result:
		default:
			log.Debug().Str("user_id", userID).Msg("KB update result dropped, channel full")
		}
	}()
}

// Close waits for in-flight updates to finish, then closes Results. Triggers
// arriving after Close are dropped.
func (u *Updater) Close() {
	u.mu.Lock()
	if u.closed {
		u.mu.Unlock()
		return
	}
	u.closed = true
	u.mu.Unlock()

	u.wg.Wait()
	close(u.results)
}
