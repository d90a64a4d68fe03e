package data

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PETTY CASH REPOSITORY
// =============================================================================

type PettyCashRepository struct {
	b Backend
}

func NewPettyCashRepository(b Backend) *PettyCashRepository {
	return &PettyCashRepository{b: b}
}

// ListCapitals returns capitals newest first.
func (r *PettyCashRepository) ListCapitals(ctx context.Context) ([]Capital, error) {
	return r.selectCapitals(ctx, Query{Table: TablePettyCapital, Order: newestFirst})
}

func (r *PettyCashRepository) CountCapitals(ctx context.Context) (int, error) {
	return r.b.Count(ctx, TablePettyCapital)
}

func (r *PettyCashRepository) CapitalByGroup(ctx context.Context, group string) (*Capital, error) {
	return r.capital(ctx, group, false)
}

// LockCapital reads a capital and, inside a transaction, holds its row until commit so
// balance recomputations for the same capital run one after another.
func (r *PettyCashRepository) LockCapital(ctx context.Context, group string) (*Capital, error) {
	return r.capital(ctx, group, true)
}

func (r *PettyCashRepository) capital(ctx context.Context, group string, lock bool) (*Capital, error) {
	caps, err := r.selectCapitals(ctx, Query{
		Table:   TablePettyCapital,
		Filters: []Filter{Eq(colPettyCashID, group)},
		Limit:   1,
		Lock:    lock,
	})
	if err != nil {
		return nil, err
	}
	if len(caps) == 0 {
		return nil, fmt.Errorf("capital %s: %w", group, ErrNotFound)
	}
	return &caps[0], nil
}

func (r *PettyCashRepository) InsertCapital(ctx context.Context, c Capital) (*Capital, error) {
	recs, err := r.b.Insert(ctx, TablePettyCapital, Record{
		colDate:        c.Date,
		colPettyCashID: c.GroupID,
		colDescription: c.Description,
		colAmount:      c.Amount.String(),
		colBalance:     c.Balance.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to insert capital: %w", err)
	}

	var stored Capital
	if err := Decode(recs[0], &stored); err != nil {
		return nil, err
	}
	return &stored, nil
}

func (r *PettyCashRepository) UpdateBalance(ctx context.Context, id int64, balance decimal.Decimal) error {
	if err := r.b.Update(ctx, TablePettyCapital, id, Record{colBalance: balance.String()}); err != nil {
		return fmt.Errorf("failed to update balance of capital %d: %w", id, err)
	}
	return nil
}

// Expenses returns the expenses of one capital, oldest date first.
func (r *PettyCashRepository) Expenses(ctx context.Context, group string) ([]Expense, error) {
	return r.selectExpenses(ctx, Query{
		Table:   TablePettyExpenses,
		Filters: []Filter{Eq(colPettyCashID, group)},
		Order:   []Order{{Column: colDate}, {Column: colID}},
	})
}

func (r *PettyCashRepository) ExpenseByID(ctx context.Context, id int64) (*Expense, error) {
	exps, err := r.selectExpenses(ctx, Query{
		Table:   TablePettyExpenses,
		Filters: []Filter{Eq(colID, id)},
	})
	if err != nil {
		return nil, err
	}
	if len(exps) == 0 {
		return nil, fmt.Errorf("expense %d: %w", id, ErrNotFound)
	}
	return &exps[0], nil
}

// SumExpenses totals the expenses drawn against one capital. It is a locking read, so
// inside a transaction it sees the latest committed expenses rather than an older snapshot.
func (r *PettyCashRepository) SumExpenses(ctx context.Context, group string) (decimal.Decimal, error) {
	exps, err := r.selectExpenses(ctx, Query{
		Table:   TablePettyExpenses,
		Columns: []string{colExpense},
		Filters: []Filter{Eq(colPettyCashID, group)},
		Lock:    true,
	})
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, e := range exps {
		total = total.Add(e.Amount)
	}
	return total, nil
}

func (r *PettyCashRepository) InsertExpense(ctx context.Context, e Expense) (*Expense, error) {
	recs, err := r.b.Insert(ctx, TablePettyExpenses, Record{
		colDate:        e.Date,
		colDescription: e.Description,
		colExpense:     e.Amount.String(),
		colPettyCashID: e.GroupID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to insert expense: %w", err)
	}

	var stored Expense
	if err := Decode(recs[0], &stored); err != nil {
		return nil, err
	}
	return &stored, nil
}

// UpdateExpense writes date, description and amount. The group is never moved.
func (r *PettyCashRepository) UpdateExpense(ctx context.Context, e Expense) error {
	err := r.b.Update(ctx, TablePettyExpenses, e.ID, Record{
		colDate:        e.Date,
		colDescription: e.Description,
		colExpense:     e.Amount.String(),
	})
	if err != nil {
		return fmt.Errorf("failed to update expense %d: %w", e.ID, err)
	}
	return nil
}

// DeleteExpense is used only to compensate a failed add on backends without transactions.
func (r *PettyCashRepository) DeleteExpense(ctx context.Context, id int64) error {
	if _, err := r.b.Delete(ctx, TablePettyExpenses, Eq(colID, id)); err != nil {
		return fmt.Errorf("failed to delete expense %d: %w", id, err)
	}
	return nil
}

func (r *PettyCashRepository) selectCapitals(ctx context.Context, q Query) ([]Capital, error) {
	recs, err := r.b.Select(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list capitals: %w", err)
	}
	caps := []Capital{}
	if err := Decode(recs, &caps); err != nil {
		return nil, err
	}
	return caps, nil
}

func (r *PettyCashRepository) selectExpenses(ctx context.Context, q Query) ([]Expense, error) {
	recs, err := r.b.Select(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	exps := []Expense{}
	if err := Decode(recs, &exps); err != nil {
		return nil, err
	}
	return exps, nil
}
