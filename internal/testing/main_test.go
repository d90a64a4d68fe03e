package testing

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"trcinventory/internal/auth"
	"trcinventory/internal/client"
	"trcinventory/internal/data"
	"trcinventory/internal/inventory"
	"trcinventory/internal/logger"
	"trcinventory/internal/pettycash"
	"trcinventory/internal/view"
)

var (
	// Test configuration flags
	runLoad     = flag.Bool("load", false, "Run load tests")
	testTimeout = flag.Duration("suite-timeout", 30*time.Second, "Test timeout duration")
)

func TestMain(m *testing.M) {
	flag.Parse()
	logger.SetLevel("ERROR") // Reduce noise during tests

	fmt.Println("🧪 Starting TRC Inventory Test Suite")
	fmt.Println("====================================")
	if *testTimeout > 0 {
		fmt.Printf("Test timeout: %v\n", *testTimeout)
	}

	exitCode := m.Run()

	fmt.Println("\n🏁 Test Suite Complete")
	fmt.Println("======================")

	os.Exit(exitCode)
}

// TestSystemIntegration drives the staff client the way the terminal does
func TestSystemIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode")
	}

	suite := NewTestSuite(t)
	_, err := suite.SeedCatalog(suite.GenerateTestCatalog())
	suite.AssertNoError(t, err)

	t.Run("FirstDayFromCatalog", func(t *testing.T) {
		testFirstDayFromCatalog(t, suite)
	})

	t.Run("NextDayCarryForward", func(t *testing.T) {
		testNextDayCarryForward(t, suite)
	})

	t.Run("PettyCashLedger", func(t *testing.T) {
		testPettyCashLedger(t, suite)
	})

	t.Run("ErrorRecovery", func(t *testing.T) {
		testErrorRecovery(t, suite)
	})
}

func testFirstDayFromCatalog(t *testing.T, suite *TestSuite) {
	start := time.Now()
	suite.SetToday("2025-11-01")
	c := suite.LoggedInClient(t)

	v := view.NewInventoryView(context.Background(), c, time.UTC)
	defer v.Close()
	suite.AssertNoError(t, v.Mount())

	created, err := v.CreateSnapshot()
	suite.AssertNoError(t, err)
	t.Logf("✓ Snapshot opened (Group: %s)", created.Snapshot.GroupID)

	if created.Seed != data.SeedCatalog {
		t.Errorf("Expected catalog seed, got %s", created.Seed)
	}
	lines := v.Lines()
	if len(lines) != 2 {
		t.Fatalf("Expected 2 lines, got %d", len(lines))
	}
	for i, name := range []string{"Milk", "Sugar"} {
		l := lines[i]
		if l.ItemName != name || !l.BeginningStock.IsZero() || !l.QtyUsed.IsZero() || !l.EndingStock.IsZero() {
			t.Errorf("Expected (%s, 0, 0, 0), got %+v", name, l)
		}
	}
	if n := suite.CountRows(t, data.TableSnapshots, data.Eq("date", "2025-11-01")); n != 1 {
		t.Errorf("Expected exactly one parent for 2025-11-01, got %d", n)
	}

	// Record the day's usage for Milk.
	suite.AssertNoError(t, v.BeginEdit(lines[0].ID))
	v.Buffer(func(l *data.InventoryLine) {
		l.QtyUsed = decimal.NewFromInt(5)
		l.EndingStock = decimal.NewFromInt(10)
	})
	suite.AssertNoError(t, v.Save())
	t.Logf("✓ Milk usage recorded")

	// A second creation the same day writes nothing.
	before := suite.CountRows(t, data.TableInventoryLines)
	if _, err := v.CreateSnapshot(); !errors.Is(err, inventory.ErrSnapshotExists) {
		t.Errorf("Expected ErrSnapshotExists, got %v", err)
	}
	if _, err := c.CreateSnapshot(context.Background()); !errors.Is(err, inventory.ErrSnapshotExists) {
		t.Errorf("Expected ErrSnapshotExists from the server, got %v", err)
	}
	if after := suite.CountRows(t, data.TableInventoryLines); after != before {
		t.Errorf("Expected no new lines, got %d -> %d", before, after)
	}

	t.Logf("✅ First day flow completed in %v", time.Since(start))
}

func testNextDayCarryForward(t *testing.T, suite *TestSuite) {
	suite.SetToday("2025-11-02")
	c := suite.LoggedInClient(t)

	v := view.NewInventoryView(context.Background(), c, time.UTC)
	defer v.Close()
	suite.AssertNoError(t, v.Mount())

	created, err := v.CreateSnapshot()
	suite.AssertNoError(t, err)
	if created.Seed != data.SeedPrevious {
		t.Errorf("Expected carry-forward seed, got %s", created.Seed)
	}

	lines := v.Lines()
	if len(lines) != 2 {
		t.Fatalf("Expected 2 carried lines, got %d", len(lines))
	}
	milk := lines[0]
	if milk.ItemName != "Milk" || !milk.BeginningStock.Equal(decimal.NewFromInt(10)) ||
		!milk.QtyUsed.IsZero() || !milk.EndingStock.IsZero() {
		t.Errorf("Expected (Milk, 10, 0, 0), got %+v", milk)
	}

	snaps := v.Snapshots()
	if len(snaps) != 2 || snaps[0].Date != "2025-11-02" {
		t.Errorf("Expected the new day first, got %+v", snaps)
	}

	t.Log("✅ Carry-forward flow completed")
}

func testPettyCashLedger(t *testing.T, suite *TestSuite) {
	c := suite.LoggedInClient(t)

	v := view.NewPettyCashView(context.Background(), c)
	defer v.Close()
	suite.AssertNoError(t, v.Mount())

	capital, err := v.CreateCapital("Weekly float", decimal.NewFromInt(500))
	suite.AssertNoError(t, err)
	t.Logf("✓ Capital created (Group: %s)", capital.GroupID)

	result, err := v.AddExpense(pettycash.ExpenseInput{Description: "Milk delivery", Amount: decimal.NewFromInt(120)})
	suite.AssertNoError(t, err)
	if !result.Capital.Balance.Equal(decimal.NewFromInt(380)) {
		t.Errorf("Expected balance 380, got %s", result.Capital.Balance)
	}

	// The stored parent agrees with what the view shows.
	stored, err := data.NewPettyCashRepository(suite.Backend).CapitalByGroup(context.Background(), capital.GroupID)
	suite.AssertNoError(t, err)
	if !stored.Balance.Equal(decimal.NewFromInt(380)) {
		t.Errorf("Expected stored balance 380, got %s", stored.Balance)
	}

	t.Log("✅ Petty cash ledger completed")
}

func testErrorRecovery(t *testing.T, suite *TestSuite) {
	ctx := context.Background()
	c := suite.NewClient()

	if _, err := c.Login(ctx, TestUsername, "wrong"); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Errorf("Expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := c.Login(ctx, "nobody", TestPassword); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Errorf("Expected ErrInvalidCredentials for unknown user, got %v", err)
	}

	_, err := c.Login(ctx, TestUsername, TestPassword)
	suite.AssertNoError(t, err)
	suite.AssertNoError(t, c.Logout(ctx))

	if _, err := c.Snapshots(ctx); !errors.Is(err, client.ErrUnauthenticated) {
		t.Errorf("Expected ErrUnauthenticated after logout, got %v", err)
	}

	t.Log("✅ Error recovery completed")
}

// TestLoadTesting runs concurrent operations against one server
func TestLoadTesting(t *testing.T) {
	if !*runLoad {
		t.Skip("Load tests disabled (use -load flag)")
	}

	suite := NewTestSuite(t)
	_, err := suite.SeedCatalog(suite.GenerateTestCatalog("large"))
	suite.AssertNoError(t, err)

	t.Run("ConcurrentSnapshotCreation", func(t *testing.T) {
		testConcurrentSnapshotCreation(t, suite, 10)
	})

	t.Run("ConcurrentExpenses", func(t *testing.T) {
		testConcurrentExpenses(t, suite, 20)
	})
}

func testConcurrentSnapshotCreation(t *testing.T, suite *TestSuite, workers int) {
	suite.SetToday("2025-12-01")
	c := suite.LoggedInClient(t)

	var wg sync.WaitGroup
	var mu sync.Mutex
	created, rejected := 0, 0
	var unexpected []error

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.CreateSnapshot(context.Background())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, inventory.ErrSnapshotExists):
				rejected++
			default:
				unexpected = append(unexpected, err)
			}
		}()
	}
	wg.Wait()

	if created != 1 || rejected != workers-1 {
		t.Errorf("Expected 1 created and %d rejected, got %d and %d (unexpected: %v)", workers-1, created, rejected, unexpected)
	}
	if n := suite.CountRows(t, data.TableSnapshots, data.Eq("date", "2025-12-01")); n != 1 {
		t.Errorf("Expected one parent row, got %d", n)
	}

	t.Logf("✅ %d concurrent creators, one snapshot", workers)
}

func testConcurrentExpenses(t *testing.T, suite *TestSuite, workers int) {
	ctx := context.Background()
	c := suite.LoggedInClient(t)

	capital, err := c.CreateCapital(ctx, "Load float", decimal.NewFromInt(1000))
	suite.AssertNoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.AddExpense(ctx, capital.GroupID, pettycash.ExpenseInput{
				Description: "Load expense", Amount: decimal.NewFromInt(10),
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		suite.AssertNoError(t, err)
	}

	stored, err := data.NewPettyCashRepository(suite.Backend).CapitalByGroup(ctx, capital.GroupID)
	suite.AssertNoError(t, err)
	want := decimal.NewFromInt(1000 - int64(workers)*10)
	if !stored.Balance.Equal(want) {
		t.Errorf("Expected balance %s after %d expenses, got %s", want, workers, stored.Balance)
	}

	t.Logf("✅ %d concurrent expenses, balance %s", workers, stored.Balance)
}

// Benchmark tests
func BenchmarkSnapshotCreation(b *testing.B) {
	suite := NewTestSuite(b)
	if _, err := suite.SeedCatalog(suite.GenerateTestCatalog("large")); err != nil {
		b.Fatal(err)
	}

	day := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		suite.SetToday(day.AddDate(0, 0, i).Format(data.DateLayout))
		if _, err := suite.App.Inventory.CreateSnapshot(context.Background()); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkCarryForward(b *testing.B) {
	prev := make([]data.InventoryLine, 200)
	for i := range prev {
		prev[i] = data.InventoryLine{ItemName: fmt.Sprintf("Item %d", i), EndingStock: decimal.NewFromInt(int64(i))}
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		inventory.CarryForward(prev, "bench")
	}
}
