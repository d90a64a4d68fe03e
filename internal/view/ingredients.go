package view

import (
	"context"
	"fmt"

	"trcinventory/internal/data"
)

type IngredientSource interface {
	Ingredients(ctx context.Context) ([]data.Ingredient, error)
	AddIngredient(ctx context.Context) (*data.Ingredient, error)
	UpdateIngredient(ctx context.Context, item data.Ingredient) (*data.Ingredient, error)
}

// IngredientsView is the catalog screen. There is no delete.
type IngredientsView struct {
	lifetime

	src   IngredientSource
	items []data.Ingredient
	edit  *rowEdit[data.Ingredient]
}

func NewIngredientsView(parent context.Context, src IngredientSource) *IngredientsView {
	v := &IngredientsView{src: src}
	v.init(parent)
	return v
}

func (v *IngredientsView) Mount() error {
	if err := v.begin(); err != nil {
		return err
	}
	items, err := v.src.Ingredients(v.ctx)
	return v.commit(err, func() {
		v.items = nonNil(items)
	})
}

// AddRow inserts a placeholder ingredient and appends the stored row.
func (v *IngredientsView) AddRow() (*data.Ingredient, error) {
	if err := v.begin(); err != nil {
		return nil, err
	}
	item, err := v.src.AddIngredient(v.ctx)
	err = v.commit(err, func() {
		v.items = append(v.items, *item)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (v *IngredientsView) BeginEdit(id int64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return ErrClosed
	}
	i := v.indexOf(id)
	if i < 0 {
		return fmt.Errorf("ingredient %d: %w", id, data.ErrNotFound)
	}
	v.edit = &rowEdit[data.Ingredient]{id: id, original: v.items[i], buffer: v.items[i]}
	return nil
}

func (v *IngredientsView) Buffer(change func(*data.Ingredient)) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.edit == nil {
		return ErrNotEditing
	}
	change(&v.edit.buffer)
	v.edit.buffer.ID = v.edit.id
	return nil
}

func (v *IngredientsView) Cancel() {
	v.mu.Lock()
	v.edit = nil
	v.mu.Unlock()
}

// Save merges the buffered row and writes it, rolling back if the write fails.
func (v *IngredientsView) Save() error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrClosed
	}
	if v.edit == nil {
		v.mu.Unlock()
		return ErrNotEditing
	}
	e := *v.edit
	v.edit = nil
	if i := v.indexOf(e.id); i >= 0 {
		v.items[i] = e.buffer
	}
	v.mu.Unlock()

	_, err := v.src.UpdateIngredient(v.ctx, e.buffer)

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return ErrClosed
	}
	if err != nil {
		if i := v.indexOf(e.id); i >= 0 {
			v.items[i] = e.original
		}
		return err
	}
	return nil
}

func (v *IngredientsView) indexOf(id int64) int {
	for i, it := range v.items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

func (v *IngredientsView) Items() []data.Ingredient {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]data.Ingredient{}, v.items...)
}
