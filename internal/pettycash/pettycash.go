package pettycash

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"trcinventory/internal/data"
	"trcinventory/internal/logger"
)

var (
	ErrInvalidAmount = errors.New("amount must be greater than zero")
	ErrInvalidDate   = errors.New("date must be YYYY-MM-DD")
)

const compensationTimeout = 30 * time.Second

// ExpenseInput is what staff enter for a new or edited expense. An empty Date means today.
type ExpenseInput struct {
	Date        string          `json:"date"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

// Service manages petty-cash capitals and the expenses drawn against them. A capital's
// balance is always its amount minus the sum of its expenses.
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

// SetClock replaces the clock used for default dates.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Service) Today() string {
	return s.now().In(s.loc).Format(data.DateLayout)
}

func (s *Service) repo() *data.PettyCashRepository {
	return data.NewPettyCashRepository(s.backend)
}

// ListCapitals returns capitals newest first.
func (s *Service) ListCapitals(ctx context.Context) ([]data.Capital, error) {
	return s.repo().ListCapitals(ctx)
}

// Expenses returns the expenses of one capital, oldest first.
func (s *Service) Expenses(ctx context.Context, group string) ([]data.Expense, error) {
	repo := s.repo()
	if _, err := repo.CapitalByGroup(ctx, group); err != nil {
		return nil, err
	}
	return repo.Expenses(ctx, group)
}

// CreateCapital records a new funding event dated today. Its balance starts at the amount.
func (s *Service) CreateCapital(ctx context.Context, description string, amount decimal.Decimal) (*data.Capital, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}

	capital, err := s.repo().InsertCapital(ctx, data.Capital{
		Date:        s.Today(),
		GroupID:     uuid.NewString(),
		Description: strings.TrimSpace(description),
		Amount:      amount,
		Balance:     amount,
	})
	if err != nil {
		return nil, err
	}
	logger.LogInfo("Created capital %s of %s", capital.GroupID, capital.Amount.StringFixed(2))
	return capital, nil
}

// AddExpense records an expense against an existing capital and recomputes its balance.
func (s *Service) AddExpense(ctx context.Context, group string, in ExpenseInput) (*data.ExpenseResult, error) {
	date, err := s.normalize(in)
	if err != nil {
		return nil, err
	}

	var result *data.ExpenseResult
	var inserted *data.Expense
	atomic, err := data.Atomic(ctx, s.backend, func(ctx context.Context, b data.Backend) error {
		repo := data.NewPettyCashRepository(b)
		capital, err := repo.LockCapital(ctx, group)
		if err != nil {
			return err
		}

		inserted, err = repo.InsertExpense(ctx, data.Expense{
			Date:        date,
			Description: strings.TrimSpace(in.Description),
			Amount:      in.Amount,
			GroupID:     group,
		})
		if err != nil {
			return err
		}

		updated, err := recompute(ctx, repo, *capital)
		if err != nil {
			return err
		}
		result = &data.ExpenseResult{Expense: *inserted, Capital: *updated}
		return nil
	})
	if err != nil {
		if !atomic && inserted != nil {
			s.compensate(ctx, func(ctx context.Context, repo *data.PettyCashRepository) error {
				return repo.DeleteExpense(ctx, inserted.ID)
			})
		}
		return nil, err
	}

	logger.LogInfo("Expense %d of %s added to %s, balance now %s",
		result.Expense.ID, result.Expense.Amount.StringFixed(2), group, result.Capital.Balance.StringFixed(2))
	return result, nil
}

// UpdateExpense rewrites one expense and recomputes its capital's balance.
func (s *Service) UpdateExpense(ctx context.Context, id int64, in ExpenseInput) (*data.ExpenseResult, error) {
	date, err := s.normalize(in)
	if err != nil {
		return nil, err
	}

	var result *data.ExpenseResult
	var before *data.Expense
	written := false
	atomic, err := data.Atomic(ctx, s.backend, func(ctx context.Context, b data.Backend) error {
		repo := data.NewPettyCashRepository(b)
		var err error
		before, err = repo.ExpenseByID(ctx, id)
		if err != nil {
			return err
		}
		capital, err := repo.LockCapital(ctx, before.GroupID)
		if err != nil {
			return err
		}

		after := data.Expense{
			ID:          id,
			Date:        date,
			Description: strings.TrimSpace(in.Description),
			Amount:      in.Amount,
			GroupID:     before.GroupID,
		}
		if err := repo.UpdateExpense(ctx, after); err != nil {
			return err
		}
		written = true

		updated, err := recompute(ctx, repo, *capital)
		if err != nil {
			return err
		}
		result = &data.ExpenseResult{Expense: after, Capital: *updated}
		return nil
	})
	if err != nil {
		if !atomic && written {
			s.compensate(ctx, func(ctx context.Context, repo *data.PettyCashRepository) error {
				return repo.UpdateExpense(ctx, *before)
			})
		}
		return nil, err
	}
	return result, nil
}

func (s *Service) normalize(in ExpenseInput) (string, error) {
	if !in.Amount.IsPositive() {
		return "", fmt.Errorf("%w: %s", ErrInvalidAmount, in.Amount)
	}
	date := strings.TrimSpace(in.Date)
	if date == "" {
		return s.Today(), nil
	}
	if _, err := time.Parse(data.DateLayout, date); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	return date, nil
}

// recompute sets balance = amount - sum(expenses) on the capital and returns it. The capital
// row must already be locked by the caller's transaction.
func recompute(ctx context.Context, repo *data.PettyCashRepository, capital data.Capital) (*data.Capital, error) {
	spent, err := repo.SumExpenses(ctx, capital.GroupID)
	if err != nil {
		return nil, err
	}
	capital.Balance = capital.Amount.Sub(spent)
	if err := repo.UpdateBalance(ctx, capital.ID, capital.Balance); err != nil {
		return nil, err
	}
	return &capital, nil
}

func (s *Service) compensate(ctx context.Context, undo func(context.Context, *data.PettyCashRepository) error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	if err := undo(ctx, s.repo()); err != nil {
		logger.LogError("Failed to undo partial petty-cash write: %v", err)
		return
	}
	logger.LogWarn("Undid partial petty-cash write")
}
