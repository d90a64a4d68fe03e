package view

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"trcinventory/internal/dashboard"
	"trcinventory/internal/data"
	"trcinventory/internal/inventory"
	"trcinventory/internal/pettycash"
)

var errBackend = errors.New("backend unavailable")

// fakeAPI is an in-memory stand-in for the HTTP client.
type fakeAPI struct {
	mu         sync.Mutex
	today      string
	snapshots  []data.Snapshot
	lines      map[string][]data.InventoryLine
	capitals   []data.Capital
	expenses   map[string][]data.Expense
	items      []data.Ingredient
	nextID     int64
	failWrites error
	linesCalls int
	creates    int
	hold       chan struct{} // when set, Lines waits for it or for ctx
}

func newFakeAPI(today string) *fakeAPI {
	return &fakeAPI{
		today:    today,
		lines:    map[string][]data.InventoryLine{},
		expenses: map[string][]data.Expense{},
	}
}

func (f *fakeAPI) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeAPI) Snapshots(ctx context.Context) ([]data.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]data.Snapshot{}, f.snapshots...), nil
}

func (f *fakeAPI) CreateSnapshot(ctx context.Context) (*data.SnapshotCreation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	for _, s := range f.snapshots {
		if s.Date == f.today {
			return nil, inventory.ErrSnapshotExists
		}
	}
	snap := data.Snapshot{ID: f.id(), Date: f.today, GroupID: fmt.Sprintf("g%d", f.nextID)}
	var lines []data.InventoryLine
	if len(f.snapshots) > 0 {
		lines = inventory.CarryForward(f.lines[f.snapshots[0].GroupID], snap.GroupID)
	} else {
		lines = inventory.FromCatalog(f.items, snap.GroupID)
	}
	for i := range lines {
		lines[i].ID = f.id()
	}
	f.snapshots = append([]data.Snapshot{snap}, f.snapshots...)
	f.lines[snap.GroupID] = lines
	return &data.SnapshotCreation{Snapshot: snap, Lines: lines, Seed: data.SeedCatalog}, nil
}

func (f *fakeAPI) Lines(ctx context.Context, group string) ([]data.InventoryLine, error) {
	f.mu.Lock()
	f.linesCalls++
	hold := f.hold
	f.mu.Unlock()

	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	lines, ok := f.lines[group]
	if !ok {
		return nil, data.ErrNotFound
	}
	return append([]data.InventoryLine{}, lines...), nil
}

func (f *fakeAPI) AddLine(ctx context.Context, group string) (*data.InventoryLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	line := data.InventoryLine{ID: f.id(), ItemName: data.PlaceholderItemName, GroupID: group}
	f.lines[group] = append(f.lines[group], line)
	return &line, nil
}

func (f *fakeAPI) UpdateLine(ctx context.Context, line data.InventoryLine) (*data.InventoryLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites != nil {
		return nil, f.failWrites
	}
	for g, lines := range f.lines {
		for i := range lines {
			if lines[i].ID == line.ID {
				line.GroupID = g
				lines[i] = line
				return &line, nil
			}
		}
	}
	return nil, data.ErrNotFound
}

func (f *fakeAPI) Capitals(ctx context.Context) ([]data.Capital, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]data.Capital{}, f.capitals...), nil
}

func (f *fakeAPI) CreateCapital(ctx context.Context, description string, amount decimal.Decimal) (*data.Capital, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := data.Capital{ID: f.id(), Date: f.today, Description: description, Amount: amount, Balance: amount}
	c.GroupID = fmt.Sprintf("c%d", c.ID)
	f.capitals = append([]data.Capital{c}, f.capitals...)
	return &c, nil
}

func (f *fakeAPI) Expenses(ctx context.Context, group string) ([]data.Expense, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]data.Expense{}, f.expenses[group]...), nil
}

func (f *fakeAPI) balance(group string) data.Capital {
	for i := range f.capitals {
		if f.capitals[i].GroupID == group {
			bal := f.capitals[i].Amount
			for _, e := range f.expenses[group] {
				bal = bal.Sub(e.Amount)
			}
			f.capitals[i].Balance = bal
			return f.capitals[i]
		}
	}
	return data.Capital{}
}

func (f *fakeAPI) AddExpense(ctx context.Context, group string, in pettycash.ExpenseInput) (*data.ExpenseResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites != nil {
		return nil, f.failWrites
	}
	e := data.Expense{ID: f.id(), Date: f.today, Description: in.Description, Amount: in.Amount, GroupID: group}
	f.expenses[group] = append(f.expenses[group], e)
	return &data.ExpenseResult{Expense: e, Capital: f.balance(group)}, nil
}

func (f *fakeAPI) UpdateExpense(ctx context.Context, id int64, in pettycash.ExpenseInput) (*data.ExpenseResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites != nil {
		return nil, f.failWrites
	}
	for g, exps := range f.expenses {
		for i := range exps {
			if exps[i].ID == id {
				exps[i].Description = in.Description
				exps[i].Amount = in.Amount
				return &data.ExpenseResult{Expense: exps[i], Capital: f.balance(g)}, nil
			}
		}
	}
	return nil, data.ErrNotFound
}

func (f *fakeAPI) Ingredients(ctx context.Context) ([]data.Ingredient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]data.Ingredient{}, f.items...), nil
}

func (f *fakeAPI) AddIngredient(ctx context.Context) (*data.Ingredient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item := data.Ingredient{ID: f.id(), Name: data.PlaceholderIngredient}
	f.items = append(f.items, item)
	return &item, nil
}

func (f *fakeAPI) UpdateIngredient(ctx context.Context, item data.Ingredient) (*data.Ingredient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites != nil {
		return nil, f.failWrites
	}
	for i := range f.items {
		if f.items[i].ID == item.ID {
			f.items[i] = item
			return &item, nil
		}
	}
	return nil, data.ErrNotFound
}

func (f *fakeAPI) Dashboard(ctx context.Context) (dashboard.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.snapshots)
	return dashboard.Summary{Snapshots: &n, Errors: map[string]string{dashboard.SliceCapitals: "unavailable"}}, nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newInventoryView(t *testing.T, api *fakeAPI) *InventoryView {
	t.Helper()
	v := NewInventoryView(context.Background(), api, time.UTC)
	v.now = func() time.Time { return time.Date(2025, 11, 1, 8, 0, 0, 0, time.UTC) }
	t.Cleanup(v.Close)
	return v
}

func TestInventoryViewStates(t *testing.T) {
	api := newFakeAPI("2025-11-01")
	api.items = []data.Ingredient{{ID: 1, Name: "Milk"}, {ID: 2, Name: "Sugar"}}
	api.nextID = 10
	v := newInventoryView(t, api)

	if v.State() != StateIdle {
		t.Fatalf("Expected idle, got %s", v.State())
	}
	if err := v.Mount(); err != nil {
		t.Fatalf("Mount failed: %v", err)
	}
	if v.State() != StateListLoaded || len(v.Snapshots()) != 0 {
		t.Fatalf("Expected empty loaded list, got %s with %d", v.State(), len(v.Snapshots()))
	}

	if _, err := v.AddLine(); !errors.Is(err, ErrNoSnapshotSelected) {
		t.Errorf("Expected ErrNoSnapshotSelected, got %v", err)
	}

	created, err := v.CreateSnapshot()
	if err != nil {
		t.Fatalf("CreateSnapshot failed: %v", err)
	}
	if v.State() != StateSnapshotSelected {
		t.Errorf("Expected snapshot-selected, got %s", v.State())
	}
	sel, ok := v.Selected()
	if !ok || sel.GroupID != created.Snapshot.GroupID || sel.Date != "2025-11-01" {
		t.Errorf("Expected the new snapshot selected, got %+v", sel)
	}
	if lines := v.Lines(); len(lines) != 2 || lines[0].ItemName != "Milk" || lines[1].ItemName != "Sugar" {
		t.Errorf("Unexpected lines: %+v", lines)
	}

	// Today is already in the list: refused before any call.
	if _, err := v.CreateSnapshot(); !errors.Is(err, inventory.ErrSnapshotExists) {
		t.Errorf("Expected ErrSnapshotExists, got %v", err)
	}
	if api.creates != 1 {
		t.Errorf("Expected one create call, got %d", api.creates)
	}

	line, err := v.AddLine()
	if err != nil {
		t.Fatalf("AddLine failed: %v", err)
	}
	if lines := v.Lines(); len(lines) != 3 || lines[2].ID != line.ID {
		t.Errorf("Expected placeholder appended, got %+v", lines)
	}

	t.Log("✅ Inventory view states passed")
}

func TestInventoryViewEdit(t *testing.T) {
	api := newFakeAPI("2025-11-01")
	api.snapshots = []data.Snapshot{{ID: 1, Date: "2025-10-31", GroupID: "g1"}}
	api.lines["g1"] = []data.InventoryLine{
		{ID: 5, ItemName: "Milk", EndingStock: dec("10"), GroupID: "g1"},
		{ID: 6, ItemName: "Sugar", EndingStock: dec("3"), GroupID: "g1"},
	}
	v := newInventoryView(t, api)
	if err := v.Mount(); err != nil {
		t.Fatalf("Mount failed: %v", err)
	}
	if err := v.Select("g1"); err != nil {
		t.Fatalf("Select failed: %v", err)
	}

	if err := v.BeginEdit(5); err != nil {
		t.Fatalf("BeginEdit failed: %v", err)
	}
	if v.State() != StateRowEditing {
		t.Errorf("Expected row-editing, got %s", v.State())
	}
	v.Buffer(func(l *data.InventoryLine) {
		l.QtyUsed = dec("4")
		l.EndingStock = dec("6")
	})
	// Nothing shown until saved.
	if v.Lines()[0].QtyUsed.Sign() != 0 {
		t.Error("Expected buffered change to stay hidden before Save")
	}

	calls := api.linesCalls
	if err := v.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got := v.Lines()
	if !got[0].QtyUsed.Equal(dec("4")) || !got[0].EndingStock.Equal(dec("6")) {
		t.Errorf("Expected edited values shown, got %+v", got[0])
	}
	if !got[1].EndingStock.Equal(dec("3")) {
		t.Errorf("Expected the other row untouched, got %+v", got[1])
	}
	if api.linesCalls != calls {
		t.Error("Expected no refetch after save")
	}
	if !api.lines["g1"][0].EndingStock.Equal(dec("6")) || !api.lines["g1"][1].EndingStock.Equal(dec("3")) {
		t.Errorf("Expected exactly the target row written, got %+v", api.lines["g1"])
	}

	// A failed write rolls the row back.
	api.failWrites = errBackend
	v.BeginEdit(6)
	v.Buffer(func(l *data.InventoryLine) { l.ItemName = "Brown Sugar" })
	if err := v.Save(); !errors.Is(err, errBackend) {
		t.Errorf("Expected backend error, got %v", err)
	}
	if name := v.Lines()[1].ItemName; name != "Sugar" {
		t.Errorf("Expected rollback to Sugar, got %s", name)
	}
	if v.State() != StateSnapshotSelected {
		t.Errorf("Expected snapshot-selected after save, got %s", v.State())
	}

	if err := v.Save(); !errors.Is(err, ErrNotEditing) {
		t.Errorf("Expected ErrNotEditing, got %v", err)
	}

	v.Deselect()
	if v.State() != StateListLoaded || len(v.Lines()) != 0 {
		t.Errorf("Expected back on the list, got %s", v.State())
	}

	t.Log("✅ Inventory buffered edit passed")
}

func TestViewCloseDiscardsLateResults(t *testing.T) {
	api := newFakeAPI("2025-11-01")
	api.snapshots = []data.Snapshot{{ID: 1, Date: "2025-10-31", GroupID: "g1"}}
	api.lines["g1"] = []data.InventoryLine{{ID: 5, ItemName: "Milk", GroupID: "g1"}}
	api.hold = make(chan struct{})

	v := NewInventoryView(context.Background(), api, time.UTC)
	if err := v.Mount(); err != nil {
		t.Fatalf("Mount failed: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- v.Select("g1") }()

	// Wait for the fetch to be in flight.
	for i := 0; i < 100; i++ {
		api.mu.Lock()
		n := api.linesCalls
		api.mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	v.Close()

	select {
	case err := <-done:
		if !errors.Is(err, ErrClosed) {
			t.Errorf("Expected ErrClosed, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Select did not return after Close")
	}
	if _, ok := v.Selected(); ok || len(v.Lines()) != 0 {
		t.Error("Expected no state change after Close")
	}
	if err := v.Mount(); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed from a closed view, got %v", err)
	}

	t.Log("✅ Close discards late results")
}

func TestPettyCashView(t *testing.T) {
	api := newFakeAPI("2025-11-01")
	v := NewPettyCashView(context.Background(), api)
	defer v.Close()

	if err := v.Mount(); err != nil {
		t.Fatalf("Mount failed: %v", err)
	}
	if _, err := v.AddExpense(pettycash.ExpenseInput{Amount: dec("10")}); !errors.Is(err, ErrNoCapitalSelected) {
		t.Errorf("Expected ErrNoCapitalSelected, got %v", err)
	}

	old, _ := v.CreateCapital("Last week", dec("200"))
	capital, err := v.CreateCapital("Weekly float", dec("500"))
	if err != nil {
		t.Fatalf("CreateCapital failed: %v", err)
	}
	if sel, _ := v.Selected(); sel.GroupID != capital.GroupID {
		t.Errorf("Expected new capital selected, got %+v", sel)
	}

	if vis := v.VisibleCapitals(); len(vis) != 1 || vis[0].GroupID != capital.GroupID {
		t.Errorf("Expected only the latest capital without history, got %+v", vis)
	}
	if !v.ToggleHistory() || len(v.VisibleCapitals()) != 2 {
		t.Error("Expected both capitals with history open")
	}

	result, err := v.AddExpense(pettycash.ExpenseInput{Description: "Milk", Amount: dec("120")})
	if err != nil {
		t.Fatalf("AddExpense failed: %v", err)
	}
	if !result.Capital.Balance.Equal(dec("380")) {
		t.Errorf("Expected balance 380, got %s", result.Capital.Balance)
	}
	if sel, _ := v.Selected(); !sel.Balance.Equal(dec("380")) {
		t.Errorf("Expected selected balance 380, got %s", sel.Balance)
	}
	if caps := v.Capitals(); !caps[0].Balance.Equal(dec("380")) {
		t.Errorf("Expected list balance 380, got %s", caps[0].Balance)
	}

	// Edit the expense, then fail an edit and check rollback.
	v.BeginEdit(result.Expense.ID)
	v.Buffer(func(e *data.Expense) { e.Amount = dec("100") })
	if err := v.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if sel, _ := v.Selected(); !sel.Balance.Equal(dec("400")) {
		t.Errorf("Expected balance 400 after edit, got %s", sel.Balance)
	}

	api.failWrites = errBackend
	v.BeginEdit(result.Expense.ID)
	v.Buffer(func(e *data.Expense) { e.Amount = dec("1") })
	if err := v.Save(); !errors.Is(err, errBackend) {
		t.Errorf("Expected backend error, got %v", err)
	}
	if exps := v.Expenses(); !exps[0].Amount.Equal(dec("100")) {
		t.Errorf("Expected rollback to 100, got %s", exps[0].Amount)
	}

	if err := v.SelectCapital(old.GroupID); err != nil {
		t.Fatalf("SelectCapital failed: %v", err)
	}
	if len(v.Expenses()) != 0 {
		t.Errorf("Expected no expenses on the old capital, got %d", len(v.Expenses()))
	}

	t.Log("✅ Petty cash view passed")
}

func TestIngredientsView(t *testing.T) {
	api := newFakeAPI("2025-11-01")
	api.items = []data.Ingredient{{ID: 1, Name: "Milk", Price: dec("1.20")}}
	api.nextID = 1
	v := NewIngredientsView(context.Background(), api)
	defer v.Close()

	if err := v.Mount(); err != nil {
		t.Fatalf("Mount failed: %v", err)
	}
	item, err := v.AddRow()
	if err != nil {
		t.Fatalf("AddRow failed: %v", err)
	}
	if item.ID != 2 || item.Name != data.PlaceholderIngredient || len(v.Items()) != 2 {
		t.Errorf("Unexpected placeholder: %+v", item)
	}

	v.BeginEdit(2)
	v.Buffer(func(i *data.Ingredient) { i.Name = "Sugar"; i.Price = dec("0.80") })
	if err := v.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if got := v.Items()[1]; got.Name != "Sugar" || !got.Price.Equal(dec("0.80")) {
		t.Errorf("Unexpected saved row: %+v", got)
	}

	api.failWrites = errBackend
	v.BeginEdit(1)
	v.Buffer(func(i *data.Ingredient) { i.Supplier = "Dairy Co" })
	if err := v.Save(); !errors.Is(err, errBackend) {
		t.Errorf("Expected backend error, got %v", err)
	}
	if got := v.Items()[0]; got.Supplier != "" {
		t.Errorf("Expected rollback, got %+v", got)
	}
	if err := v.BeginEdit(99); !errors.Is(err, data.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	t.Log("✅ Ingredients view passed")
}

func TestDashboardViewPartial(t *testing.T) {
	api := newFakeAPI("2025-11-01")
	v := NewDashboardView(context.Background(), api)
	defer v.Close()

	if _, ok := v.Summary(); ok {
		t.Error("Expected no summary before Mount")
	}
	if err := v.Mount(); err != nil {
		t.Fatalf("Mount failed: %v", err)
	}
	s, ok := v.Summary()
	if !ok || s.Snapshots == nil || *s.Snapshots != 0 || s.Complete() {
		t.Errorf("Expected a partial summary, got %+v", s)
	}

	t.Log("✅ Dashboard view passed")
}
