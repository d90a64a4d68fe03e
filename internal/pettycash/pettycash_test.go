package pettycash

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"trcinventory/internal/data"
)

func openBackend(t *testing.T) *data.SQLBackend {
	t.Helper()
	b, err := data.OpenSQLite(filepath.Join(t.TempDir(), "pettycash.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

func newService(b data.Backend) *Service {
	s := NewService(b, time.UTC)
	s.SetClock(func() time.Time { return time.Date(2025, 11, 1, 9, 0, 0, 0, time.UTC) })
	return s
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestCapitalAndExpenseBalance(t *testing.T) {
	ctx := context.Background()
	s := newService(openBackend(t))

	capital, err := s.CreateCapital(ctx, "Weekly float", dec("500"))
	if err != nil {
		t.Fatalf("CreateCapital failed: %v", err)
	}
	if !capital.Balance.Equal(dec("500")) || capital.Date != "2025-11-01" || capital.GroupID == "" {
		t.Errorf("Unexpected capital %+v", capital)
	}

	result, err := s.AddExpense(ctx, capital.GroupID, ExpenseInput{Description: "Ice", Amount: dec("120")})
	if err != nil {
		t.Fatalf("AddExpense failed: %v", err)
	}
	if !result.Capital.Balance.Equal(dec("380")) {
		t.Errorf("Expected balance 380, got %s", result.Capital.Balance)
	}
	if result.Expense.Date != "2025-11-01" {
		t.Errorf("Expected expense dated today, got %s", result.Expense.Date)
	}

	caps, _ := s.ListCapitals(ctx)
	if len(caps) != 1 || !caps[0].Balance.Equal(dec("380")) {
		t.Errorf("Expected stored balance 380, got %+v", caps)
	}

	t.Log("✅ Balance 500 - 120 = 380 passed")
}

func TestUpdateExpenseRecomputes(t *testing.T) {
	ctx := context.Background()
	s := newService(openBackend(t))

	capital, _ := s.CreateCapital(ctx, "Float", dec("500"))
	first, _ := s.AddExpense(ctx, capital.GroupID, ExpenseInput{Date: "2025-11-03", Description: "Cups", Amount: dec("100")})
	if _, err := s.AddExpense(ctx, capital.GroupID, ExpenseInput{Date: "2025-11-02", Description: "Lids", Amount: dec("50")}); err != nil {
		t.Fatalf("AddExpense failed: %v", err)
	}

	result, err := s.UpdateExpense(ctx, first.Expense.ID, ExpenseInput{Date: "2025-11-03", Description: "Cups", Amount: dec("25.50")})
	if err != nil {
		t.Fatalf("UpdateExpense failed: %v", err)
	}
	if !result.Capital.Balance.Equal(dec("424.5")) {
		t.Errorf("Expected balance 424.5, got %s", result.Capital.Balance)
	}

	exps, _ := s.Expenses(ctx, capital.GroupID)
	if len(exps) != 2 || exps[0].Description != "Lids" {
		t.Errorf("Expected expenses oldest first, got %+v", exps)
	}

	if _, err := s.UpdateExpense(ctx, 999, ExpenseInput{Amount: dec("1")}); !errors.Is(err, data.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestValidation(t *testing.T) {
	ctx := context.Background()
	s := newService(openBackend(t))

	if _, err := s.CreateCapital(ctx, "Nothing", decimal.Zero); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("Expected ErrInvalidAmount for zero capital, got %v", err)
	}
	if _, err := s.CreateCapital(ctx, "Debt", dec("-5")); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("Expected ErrInvalidAmount for negative capital, got %v", err)
	}

	capital, _ := s.CreateCapital(ctx, "Float", dec("100"))
	if _, err := s.AddExpense(ctx, capital.GroupID, ExpenseInput{Date: "01/11/2025", Amount: dec("1")}); !errors.Is(err, ErrInvalidDate) {
		t.Errorf("Expected ErrInvalidDate, got %v", err)
	}
	if _, err := s.AddExpense(ctx, "no-such-group", ExpenseInput{Amount: dec("1")}); !errors.Is(err, data.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown capital, got %v", err)
	}
}

// flakyBackend has no transactions and fails balance updates.
type flakyBackend struct {
	data.Backend
}

func (f *flakyBackend) Update(ctx context.Context, table string, id int64, fields data.Record) error {
	if table == data.TablePettyCapital {
		return errors.New("remote store unavailable")
	}
	return f.Backend.Update(ctx, table, id, fields)
}

func TestAddExpenseCompensates(t *testing.T) {
	ctx := context.Background()
	b := openBackend(t)
	capital, err := newService(b).CreateCapital(ctx, "Float", dec("500"))
	if err != nil {
		t.Fatalf("CreateCapital failed: %v", err)
	}

	s := newService(&flakyBackend{Backend: b})
	if _, err := s.AddExpense(ctx, capital.GroupID, ExpenseInput{Amount: dec("120")}); err == nil {
		t.Fatal("Expected AddExpense to fail")
	}

	exps, _ := newService(b).Expenses(ctx, capital.GroupID)
	if len(exps) != 0 {
		t.Errorf("Expected the orphaned expense to be removed, got %+v", exps)
	}
}

func TestHandlers(t *testing.T) {
	s := newService(openBackend(t))
	mux := http.NewServeMux()
	mux.HandleFunc("/api/petty-cash/capitals", s.CapitalsHandler)
	mux.HandleFunc("/api/petty-cash/capitals/{group}/expenses", s.ExpensesHandler)
	mux.HandleFunc("/api/petty-cash/expenses/{id}", s.ExpenseHandler)

	do := func(method, path, body string) int {
		req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := do(http.MethodPost, "/api/petty-cash/capitals", `{"description":"Float","amount":"0"}`); code != http.StatusBadRequest {
		t.Errorf("Expected 400 for zero amount, got %d", code)
	}
	if code := do(http.MethodPost, "/api/petty-cash/capitals", `{"description":"Float","amount":500}`); code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", code)
	}
	if code := do(http.MethodGet, "/api/petty-cash/capitals/unknown/expenses", ""); code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown capital, got %d", code)
	}
	if code := do(http.MethodPut, "/api/petty-cash/expenses/5", `{"amount":"3"}`); code != http.StatusNotFound {
		t.Errorf("Expected 404 for missing expense, got %d", code)
	}
}

// lockingBackend records which tables were read with row locks, inside transactions too.
type lockingBackend struct {
	data.Backend
	log *lockLog
}

type lockLog struct {
	mu     sync.Mutex
	tables []string
}

func (l lockingBackend) Select(ctx context.Context, q data.Query) ([]data.Record, error) {
	if q.Lock {
		l.log.mu.Lock()
		l.log.tables = append(l.log.tables, q.Table)
		l.log.mu.Unlock()
	}
	return l.Backend.Select(ctx, q)
}

func (l lockingBackend) WithTx(ctx context.Context, fn func(data.Backend) error) error {
	return l.Backend.(data.Transactor).WithTx(ctx, func(tx data.Backend) error {
		return fn(lockingBackend{Backend: tx, log: l.log})
	})
}

func TestBalanceRecomputeLocksCapital(t *testing.T) {
	ctx := context.Background()
	b := openBackend(t)
	capital, err := newService(b).CreateCapital(ctx, "Float", dec("500"))
	if err != nil {
		t.Fatalf("CreateCapital failed: %v", err)
	}

	log := &lockLog{}
	s := newService(lockingBackend{Backend: b, log: log})
	added, err := s.AddExpense(ctx, capital.GroupID, ExpenseInput{Amount: dec("120")})
	if err != nil {
		t.Fatalf("AddExpense failed: %v", err)
	}
	if _, err := s.UpdateExpense(ctx, added.Expense.ID, ExpenseInput{Amount: dec("100")}); err != nil {
		t.Fatalf("UpdateExpense failed: %v", err)
	}

	expected := []string{data.TablePettyCapital, data.TablePettyExpenses, data.TablePettyCapital, data.TablePettyExpenses}
	if len(log.tables) != len(expected) {
		t.Fatalf("Expected locking reads %v, got %v", expected, log.tables)
	}
	for i := range expected {
		if log.tables[i] != expected[i] {
			t.Errorf("Expected locking reads %v, got %v", expected, log.tables)
			break
		}
	}
}

func TestConcurrentExpensesKeepBalance(t *testing.T) {
	ctx := context.Background()
	s := newService(openBackend(t))
	capital, err := s.CreateCapital(ctx, "Float", dec("500"))
	if err != nil {
		t.Fatalf("CreateCapital failed: %v", err)
	}

	const workers = 10
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.AddExpense(ctx, capital.GroupID, ExpenseInput{Amount: dec("12.5")}); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("AddExpense failed: %v", err)
	}

	caps, err := s.ListCapitals(ctx)
	if err != nil || len(caps) != 1 {
		t.Fatalf("ListCapitals failed: %v %+v", err, caps)
	}
	if !caps[0].Balance.Equal(dec("375")) {
		t.Errorf("Expected balance 375 after %d expenses, got %s", workers, caps[0].Balance)
	}

	t.Log("✅ Concurrent expenses keep the balance")
}
