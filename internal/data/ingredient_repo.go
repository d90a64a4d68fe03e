package data

import (
	"context"
	"fmt"
)

// =============================================================================
// INGREDIENT REPOSITORY
// =============================================================================

type IngredientRepository struct {
	b Backend
}

func NewIngredientRepository(b Backend) *IngredientRepository {
	return &IngredientRepository{b: b}
}

func (r *IngredientRepository) List(ctx context.Context) ([]Ingredient, error) {
	recs, err := r.b.Select(ctx, Query{
		Table: TableIngredients,
		Order: []Order{{Column: colID}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list ingredients: %w", err)
	}

	items := []Ingredient{}
	if err := Decode(recs, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *IngredientRepository) Count(ctx context.Context) (int, error) {
	return r.b.Count(ctx, TableIngredients)
}

func (r *IngredientRepository) Insert(ctx context.Context, item Ingredient) (*Ingredient, error) {
	recs, err := r.b.Insert(ctx, TableIngredients, ingredientFields(item))
	if err != nil {
		return nil, fmt.Errorf("failed to insert ingredient: %w", err)
	}

	var stored Ingredient
	if err := Decode(recs[0], &stored); err != nil {
		return nil, err
	}
	return &stored, nil
}

func (r *IngredientRepository) Update(ctx context.Context, item Ingredient) error {
	if err := r.b.Update(ctx, TableIngredients, item.ID, ingredientFields(item)); err != nil {
		return fmt.Errorf("failed to update ingredient %d: %w", item.ID, err)
	}
	return nil
}

func ingredientFields(item Ingredient) Record {
	return Record{
		colIngredientName: item.Name,
		colDescription:    item.Description,
		colSupplier:       item.Supplier,
		colPrice:          item.Price.String(),
	}
}
