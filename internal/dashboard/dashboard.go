package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"trcinventory/internal/data"
	"trcinventory/internal/logger"
)

// Dashboard slices, also the keys of Summary.Errors.
const (
	SliceSnapshots   = "snapshots"
	SliceIngredients = "ingredients"
	SliceCapitals    = "capitals"
	SliceLatest      = "latest_snapshot"
)

// Summary is the dashboard's counts. A nil count means that slice failed; the reason is in Errors.
type Summary struct {
	Snapshots      *int              `json:"snapshots"`
	Ingredients    *int              `json:"ingredients"`
	Capitals       *int              `json:"capitals"`
	LatestSnapshot *data.Snapshot    `json:"latest_snapshot,omitempty"`
	Errors         map[string]string `json:"errors,omitempty"`
	GeneratedAt    time.Time         `json:"generated_at"`
}

// Complete reports whether every slice loaded.
func (s Summary) Complete() bool {
	return len(s.Errors) == 0
}

type Service struct {
	inventory   *data.InventoryRepository
	ingredients *data.IngredientRepository
	pettycash   *data.PettyCashRepository
}

func NewService(b data.Backend) *Service {
	return &Service{
		inventory:   data.NewInventoryRepository(b),
		ingredients: data.NewIngredientRepository(b),
		pettycash:   data.NewPettyCashRepository(b),
	}
}

// Summary runs every count concurrently. Slices fail independently; one failure never
// discards or cancels the others.
func (s *Service) Summary(ctx context.Context) Summary {
	start := time.Now()
	sum := Summary{Errors: map[string]string{}}
	var mu sync.Mutex

	fail := func(slice string, err error) error {
		mu.Lock()
		sum.Errors[slice] = "unavailable"
		mu.Unlock()
		return fmt.Errorf("%s: %w", slice, err)
	}
	count := func(slice string, dst **int, fn func(context.Context) (int, error)) func() error {
		return func() error {
			n, err := fn(ctx)
			if err != nil {
				return fail(slice, err)
			}
			mu.Lock()
			*dst = &n
			mu.Unlock()
			return nil
		}
	}

	var g errgroup.Group
	g.Go(count(SliceSnapshots, &sum.Snapshots, s.inventory.CountSnapshots))
	g.Go(count(SliceIngredients, &sum.Ingredients, s.ingredients.Count))
	g.Go(count(SliceCapitals, &sum.Capitals, s.pettycash.CountCapitals))
	g.Go(func() error {
		latest, err := s.inventory.LatestSnapshot(ctx)
		if err != nil {
			if errors.Is(err, data.ErrNotFound) {
				return nil
			}
			return fail(SliceLatest, err)
		}
		mu.Lock()
		sum.LatestSnapshot = latest
		mu.Unlock()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.LogWarn("Dashboard loaded partially (%d slices failed), first error: %v", len(sum.Errors), err)
	}
	if len(sum.Errors) == 0 {
		sum.Errors = nil
	}
	sum.GeneratedAt = time.Now()
	logger.LogDebug("Dashboard summary generated in %v", time.Since(start))
	return sum
}
