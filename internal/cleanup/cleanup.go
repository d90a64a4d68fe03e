package cleanup

import (
	"context"
	"time"

	"trcinventory/internal/data"
	"trcinventory/internal/logger"
)

const (
	maxDeletionPerRun = 25 // Maximum snapshots to delete per run
)

// Sweeper finishes off snapshot creations that never completed on a backend without
// transactions. It works only from pending markers, so a finished snapshot is never
// touched, empty or not. Markers dated today are left for the creation still running.
type Sweeper struct {
	backend data.Backend
	loc     *time.Location
	now     func() time.Time
}

func NewSweeper(b data.Backend, loc *time.Location) *Sweeper {
	if loc == nil {
		loc = time.Local
	}
	return &Sweeper{backend: b, loc: loc, now: time.Now}
}

// Needed reports whether b can leave unfinished snapshots behind, which only happens on a
// backend without transactions.
func Needed(b data.Backend) bool {
	_, ok := b.(data.Transactor)
	return !ok
}

// StartCleanupRoutine runs the sweep once at startup and then every interval until ctx is done.
func (s *Sweeper) StartCleanupRoutine(ctx context.Context, interval time.Duration) {
	go func() {
		logger.LogInfo("Cleanup routine started - will sweep pending snapshots every %v", interval)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			s.runCleanup(ctx)

			select {
			case <-ctx.Done():
				logger.LogInfo("Cleanup routine stopped")
				return
			case <-ticker.C:
			}
		}
	}()
}

// runCleanup performs one sweep and logs the outcome
func (s *Sweeper) runCleanup(ctx context.Context) {
	removed, err := s.RunOnce(ctx)
	if err != nil {
		logger.LogError("Failed to sweep pending snapshots: %v", err)
		return
	}
	if removed == 0 {
		logger.LogDebug("Cleanup completed - no pending snapshots found")
	} else {
		logger.LogInfo("Cleanup completed - %d unfinished snapshots removed", removed)
	}
}

// RunOnce removes up to maxDeletionPerRun unfinished snapshots marked pending before today,
// then drops their markers.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	repo := data.NewInventoryRepository(s.backend)
	today := s.now().In(s.loc).Format(data.DateLayout)

	pending, err := repo.PendingBefore(ctx, today, maxDeletionPerRun)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, p := range pending {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if err := repo.DeleteSnapshot(ctx, p.GroupID); err != nil {
			return removed, err
		}
		if err := repo.ClearPending(ctx, p.GroupID); err != nil {
			return removed, err
		}
		logger.LogWarn("Removed unfinished snapshot %s dated %s", p.GroupID, p.Date)
		removed++
	}
	return removed, nil
}
