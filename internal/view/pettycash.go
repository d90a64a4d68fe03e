package view

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"trcinventory/internal/data"
	"trcinventory/internal/pettycash"
)

// PettyCashSource is the part of the API the petty-cash screen needs.
type PettyCashSource interface {
	Capitals(ctx context.Context) ([]data.Capital, error)
	CreateCapital(ctx context.Context, description string, amount decimal.Decimal) (*data.Capital, error)
	Expenses(ctx context.Context, group string) ([]data.Expense, error)
	AddExpense(ctx context.Context, group string, in pettycash.ExpenseInput) (*data.ExpenseResult, error)
	UpdateExpense(ctx context.Context, id int64, in pettycash.ExpenseInput) (*data.ExpenseResult, error)
}

// PettyCashView is the petty-cash screen: capitals (the latest one, or all of them with the
// history panel open), the expenses of the selected capital, and at most one expense being
// edited.
type PettyCashView struct {
	lifetime

	src PettyCashSource

	capitals    []data.Capital
	showHistory bool
	selected    *data.Capital
	expenses    []data.Expense
	edit        *rowEdit[data.Expense]
	gen         int
}

func NewPettyCashView(parent context.Context, src PettyCashSource) *PettyCashView {
	v := &PettyCashView{src: src}
	v.init(parent)
	return v
}

// Mount loads the capitals, newest first.
func (v *PettyCashView) Mount() error {
	if err := v.begin(); err != nil {
		return err
	}
	caps, err := v.src.Capitals(v.ctx)
	return v.commit(err, func() {
		v.capitals = nonNil(caps)
	})
}

// ToggleHistory opens or closes the history panel and returns the new setting.
func (v *PettyCashView) ToggleHistory() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.showHistory = !v.showHistory
	return v.showHistory
}

// VisibleCapitals is every capital with the history panel open, otherwise the latest one.
func (v *PettyCashView) VisibleCapitals() []data.Capital {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.showHistory && len(v.capitals) > 1 {
		return append([]data.Capital{}, v.capitals[:1]...)
	}
	return append([]data.Capital{}, v.capitals...)
}

// SelectCapital loads the expenses of one capital, oldest first.
func (v *PettyCashView) SelectCapital(group string) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrClosed
	}
	v.gen++
	gen := v.gen
	v.mu.Unlock()

	exps, err := v.src.Expenses(v.ctx, group)
	return v.commit(err, func() {
		if gen != v.gen {
			return
		}
		capital := data.Capital{GroupID: group}
		for _, c := range v.capitals {
			if c.GroupID == group {
				capital = c
				break
			}
		}
		v.selected = &capital
		v.expenses = nonNil(exps)
		v.edit = nil
	})
}

// CreateCapital records a new funding event and selects it.
func (v *PettyCashView) CreateCapital(description string, amount decimal.Decimal) (*data.Capital, error) {
	if err := v.begin(); err != nil {
		return nil, err
	}
	capital, err := v.src.CreateCapital(v.ctx, description, amount)
	err = v.commit(err, func() {
		v.capitals = append([]data.Capital{*capital}, v.capitals...)
		c := *capital
		v.gen++
		v.selected = &c
		v.expenses = []data.Expense{}
		v.edit = nil
	})
	if err != nil {
		return nil, err
	}
	return capital, nil
}

// AddExpense draws an expense against the selected capital and shows its new balance.
func (v *PettyCashView) AddExpense(in pettycash.ExpenseInput) (*data.ExpenseResult, error) {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return nil, ErrClosed
	}
	if v.selected == nil {
		v.mu.Unlock()
		return nil, ErrNoCapitalSelected
	}
	group, gen := v.selected.GroupID, v.gen
	v.mu.Unlock()

	result, err := v.src.AddExpense(v.ctx, group, in)
	err = v.commit(err, func() {
		v.applyCapital(result.Capital)
		if gen == v.gen {
			v.expenses = append(v.expenses, result.Expense)
		}
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// BeginEdit starts a buffered edit of one expense of the selected capital.
func (v *PettyCashView) BeginEdit(id int64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return ErrClosed
	}
	if v.selected == nil {
		return ErrNoCapitalSelected
	}
	i := v.indexOf(id)
	if i < 0 {
		return fmt.Errorf("expense %d: %w", id, data.ErrNotFound)
	}
	v.edit = &rowEdit[data.Expense]{id: id, original: v.expenses[i], buffer: v.expenses[i]}
	return nil
}

func (v *PettyCashView) Buffer(change func(*data.Expense)) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.edit == nil {
		return ErrNotEditing
	}
	change(&v.edit.buffer)
	v.edit.buffer.ID = v.edit.id
	return nil
}

func (v *PettyCashView) Cancel() {
	v.mu.Lock()
	v.edit = nil
	v.mu.Unlock()
}

// Save shows the buffered expense at once, writes it and takes the recomputed balance from
// the server. A failed write restores the expense.
func (v *PettyCashView) Save() error {
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
		v.expenses[i] = e.buffer
	}
	v.mu.Unlock()

	result, err := v.src.UpdateExpense(v.ctx, e.id, pettycash.ExpenseInput{
		Date:        e.buffer.Date,
		Description: e.buffer.Description,
		Amount:      e.buffer.Amount,
	})

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return ErrClosed
	}
	if err != nil {
		if i := v.indexOf(e.id); i >= 0 {
			v.expenses[i] = e.original
		}
		return err
	}
	v.applyCapital(result.Capital)
	return nil
}

// applyCapital replaces a capital's row wherever it is shown. Caller holds mu.
func (v *PettyCashView) applyCapital(c data.Capital) {
	for i := range v.capitals {
		if v.capitals[i].GroupID == c.GroupID {
			v.capitals[i] = c
		}
	}
	if v.selected != nil && v.selected.GroupID == c.GroupID {
		sel := c
		v.selected = &sel
	}
}

func (v *PettyCashView) indexOf(id int64) int {
	for i, e := range v.expenses {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func (v *PettyCashView) Capitals() []data.Capital {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]data.Capital{}, v.capitals...)
}

func (v *PettyCashView) Selected() (data.Capital, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.selected == nil {
		return data.Capital{}, false
	}
	return *v.selected, true
}

func (v *PettyCashView) Expenses() []data.Expense {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]data.Expense{}, v.expenses...)
}

func (v *PettyCashView) Editing() (data.Expense, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.edit == nil {
		return data.Expense{}, false
	}
	return v.edit.buffer, true
}
