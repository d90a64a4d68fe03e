package testing

import (
	"context"
	"errors"
	"testing"

	"trcinventory/internal/data"
	"trcinventory/internal/inventory"
)

func TestDatabaseOperations(t *testing.T) {
	suite := NewTestSuite(t)

	t.Run("UniqueSnapshotDate", func(t *testing.T) {
		testUniqueSnapshotDate(t, suite)
	})

	t.Run("ForeignKeys", func(t *testing.T) {
		testForeignKeys(t, suite)
	})
}

// The store refuses a second parent for a day even when the service's pre-check is bypassed.
func testUniqueSnapshotDate(t *testing.T, suite *TestSuite) {
	ctx := context.Background()
	repo := data.NewInventoryRepository(suite.Backend)

	_, err := repo.InsertSnapshot(ctx, data.Snapshot{Date: "2025-10-01", GroupID: "first"})
	suite.AssertNoError(t, err)

	_, err = repo.InsertSnapshot(ctx, data.Snapshot{Date: "2025-10-01", GroupID: "second"})
	if !errors.Is(err, data.ErrConflict) {
		t.Errorf("Expected ErrConflict, got %v", err)
	}

	suite.SetToday("2025-10-01")
	if _, err := suite.App.Inventory.CreateSnapshot(ctx); !errors.Is(err, inventory.ErrSnapshotExists) {
		t.Errorf("Expected ErrSnapshotExists, got %v", err)
	}

	t.Log("✅ Unique snapshot date passed")
}

func testForeignKeys(t *testing.T, suite *TestSuite) {
	ctx := context.Background()

	_, err := data.NewInventoryRepository(suite.Backend).InsertLines(ctx, []data.InventoryLine{
		{ItemName: "Orphan", GroupID: "no-such-group"},
	})
	if !errors.Is(err, data.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for a line without parent, got %v", err)
	}
	if n := suite.CountRows(t, data.TableInventoryLines, data.Eq("table_id", "no-such-group")); n != 0 {
		t.Errorf("Expected no orphan lines, got %d", n)
	}

	t.Log("✅ Foreign keys passed")
}
