package ingredients

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"trcinventory/internal/data"
	"trcinventory/internal/logger"
)

// Service manages the ingredient catalog. Entries are never deleted.
type Service struct {
	repo *data.IngredientRepository
}

func NewService(b data.Backend) *Service {
	return &Service{repo: data.NewIngredientRepository(b)}
}

// List returns the catalog ordered by id.
func (s *Service) List(ctx context.Context) ([]data.Ingredient, error) {
	return s.repo.List(ctx)
}

// Add inserts a placeholder entry and returns it with its generated id.
func (s *Service) Add(ctx context.Context) (*data.Ingredient, error) {
	item, err := s.repo.Insert(ctx, data.Ingredient{
		Name:  data.PlaceholderIngredient,
		Price: decimal.Zero,
	})
	if err != nil {
		return nil, err
	}
	logger.LogInfo("Added ingredient placeholder %d", item.ID)
	return item, nil
}

// Update writes all editable fields of one entry and returns what was written.
func (s *Service) Update(ctx context.Context, item data.Ingredient) (*data.Ingredient, error) {
	if item.ID <= 0 {
		return nil, fmt.Errorf("ingredient id is required")
	}
	if err := s.repo.Update(ctx, item); err != nil {
		return nil, err
	}
	return &item, nil
}
