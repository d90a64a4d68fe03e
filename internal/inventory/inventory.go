package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"trcinventory/internal/data"
	"trcinventory/internal/logger"
)

// ErrSnapshotExists is returned when today's snapshot was already created.
var ErrSnapshotExists = errors.New("a snapshot for today already exists")

const compensationTimeout = 30 * time.Second

// Service manages daily inventory snapshots and their lines.
type Service struct {
	backend data.Backend
	loc     *time.Location
	now     func() time.Time
}

func NewService(b data.Backend, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{backend: b, loc: loc, now: time.Now}
}

// SetClock replaces the clock used to decide what "today" is.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Today is the current date in the configured time zone, YYYY-MM-DD.
func (s *Service) Today() string {
	return s.now().In(s.loc).Format(data.DateLayout)
}

func (s *Service) repo() *data.InventoryRepository {
	return data.NewInventoryRepository(s.backend)
}

// ListSnapshots returns every snapshot parent, newest first.
func (s *Service) ListSnapshots(ctx context.Context) ([]data.Snapshot, error) {
	return s.repo().ListSnapshots(ctx)
}

// SnapshotLines returns the lines of one snapshot ordered by id.
func (s *Service) SnapshotLines(ctx context.Context, group string) ([]data.InventoryLine, error) {
	repo := s.repo()
	if _, err := repo.SnapshotByGroup(ctx, group); err != nil {
		return nil, err
	}
	return repo.Lines(ctx, group)
}

// =============================================================================
// SNAPSHOT CREATION
// =============================================================================

// CreateSnapshot opens today's snapshot and seeds its lines from the previous snapshot's
// ending stock, or from the ingredient catalog when there is no previous snapshot. Nothing
// is written when today's snapshot already exists. On a backend without transactions the
// snapshot is marked pending until its lines are in, and a failure part way through is
// undone by deleting what was written.
func (s *Service) CreateSnapshot(ctx context.Context) (*data.SnapshotCreation, error) {
	today := s.Today()

	_, err := s.repo().SnapshotByDate(ctx, today)
	switch {
	case err == nil:
		return nil, fmt.Errorf("%w: %s", ErrSnapshotExists, today)
	case !errors.Is(err, data.ErrNotFound):
		return nil, err
	}

	group := uuid.NewString()
	_, transactional := s.backend.(data.Transactor)
	if !transactional {
		if err := s.repo().MarkPending(ctx, group, today); err != nil {
			return nil, err
		}
	}

	var created *data.SnapshotCreation
	_, err = data.Atomic(ctx, s.backend, func(ctx context.Context, b data.Backend) error {
		var err error
		created, err = s.create(ctx, b, today, group)
		if err != nil || transactional {
			return err
		}
		return data.NewInventoryRepository(b).ClearPending(ctx, group)
	})
	if err != nil {
		if !transactional {
			s.compensate(ctx, group)
		}
		if errors.Is(err, data.ErrConflict) {
			return nil, fmt.Errorf("%w: %s", ErrSnapshotExists, today)
		}
		return nil, fmt.Errorf("failed to create snapshot for %s: %w", today, err)
	}

	logger.LogInfo("Created snapshot %s for %s with %d lines seeded from %s",
		group, today, len(created.Lines), created.Seed)
	return created, nil
}

func (s *Service) create(ctx context.Context, b data.Backend, today, group string) (*data.SnapshotCreation, error) {
	repo := data.NewInventoryRepository(b)

	parent, err := repo.InsertSnapshot(ctx, data.Snapshot{Date: today, GroupID: group})
	if err != nil {
		return nil, err
	}
	result := &data.SnapshotCreation{Snapshot: *parent}

	var seed []data.InventoryLine
	prev, err := repo.PreviousSnapshot(ctx, group)
	switch {
	case err == nil:
		prevLines, err := repo.Lines(ctx, prev.GroupID)
		if err != nil {
			return nil, err
		}
		seed = CarryForward(prevLines, group)
		result.Seed = data.SeedPrevious
		result.SeededBy = prev.GroupID
	case errors.Is(err, data.ErrNotFound):
		catalog, err := data.NewIngredientRepository(b).List(ctx)
		if err != nil {
			return nil, err
		}
		seed = FromCatalog(catalog, group)
		result.Seed = data.SeedCatalog
	default:
		return nil, err
	}

	result.Lines, err = repo.InsertLines(ctx, seed)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// compensate removes a partially created snapshot. It runs even when the caller's context
// was cancelled. The pending marker is left for the sweep, which deletes the group again
// once any write still in flight has settled.
func (s *Service) compensate(ctx context.Context, group string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	if err := s.repo().DeleteSnapshot(ctx, group); err != nil {
		logger.LogError("Failed to roll back partial snapshot %s, left for the pending sweep: %v", group, err)
		return
	}
	logger.LogWarn("Rolled back partial snapshot %s", group)
}

// CarryForward seeds a new day from the previous one: each line keeps its item name and
// starts at the previous ending stock with zero usage.
func CarryForward(prev []data.InventoryLine, group string) []data.InventoryLine {
	lines := make([]data.InventoryLine, 0, len(prev))
	for _, p := range prev {
		lines = append(lines, data.InventoryLine{
			ItemName:       p.ItemName,
			BeginningStock: p.EndingStock,
			QtyUsed:        decimal.Zero,
			EndingStock:    decimal.Zero,
			GroupID:        group,
		})
	}
	return lines
}

// FromCatalog seeds a first day with one zeroed line per catalog entry.
func FromCatalog(catalog []data.Ingredient, group string) []data.InventoryLine {
	lines := make([]data.InventoryLine, 0, len(catalog))
	for _, c := range catalog {
		lines = append(lines, data.InventoryLine{
			ItemName:       c.Name,
			BeginningStock: decimal.Zero,
			QtyUsed:        decimal.Zero,
			EndingStock:    decimal.Zero,
			GroupID:        group,
		})
	}
	return lines
}

// =============================================================================
// LINE EDITING
// =============================================================================

// AddLine appends a placeholder line to an existing snapshot.
func (s *Service) AddLine(ctx context.Context, group string) (*data.InventoryLine, error) {
	repo := s.repo()
	if _, err := repo.SnapshotByGroup(ctx, group); err != nil {
		return nil, err
	}

	lines, err := repo.InsertLines(ctx, []data.InventoryLine{{
		ItemName:       data.PlaceholderItemName,
		BeginningStock: decimal.Zero,
		QtyUsed:        decimal.Zero,
		EndingStock:    decimal.Zero,
		GroupID:        group,
	}})
	if err != nil {
		return nil, err
	}
	return &lines[0], nil
}

// UpdateLine writes the item name and the three quantities of one line and returns what
// was written.
func (s *Service) UpdateLine(ctx context.Context, line data.InventoryLine) (*data.InventoryLine, error) {
	if line.ID <= 0 {
		return nil, fmt.Errorf("inventory line id is required")
	}
	if err := s.repo().UpdateLine(ctx, line); err != nil {
		return nil, err
	}
	return &line, nil
}
