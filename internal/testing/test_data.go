package testing

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"trcinventory/internal/data"
)

// TestIngredient is a catalog row used to seed the store.
type TestIngredient struct {
	Name     string
	Supplier string
	Price    string
}

// GenerateTestCatalog returns the catalog used by the seeding scenarios.
func (ts *TestSuite) GenerateTestCatalog(variations ...string) []TestIngredient {
	catalog := []TestIngredient{
		{Name: "Milk", Supplier: "Dairy Co", Price: "1.20"},
		{Name: "Sugar", Supplier: "Sweet Supply", Price: "0.80"},
	}

	for _, variation := range variations {
		switch variation {
		case "coffee":
			catalog = append(catalog, TestIngredient{Name: "Espresso Beans", Supplier: "Roastery", Price: "18.50"})
		case "large":
			for i := 1; i <= 20; i++ {
				catalog = append(catalog, TestIngredient{Name: fmt.Sprintf("Syrup %02d", i), Supplier: "Flavours Ltd", Price: "4.25"})
			}
		}
	}
	return catalog
}

// SeedCatalog writes the catalog straight to the store.
func (ts *TestSuite) SeedCatalog(catalog []TestIngredient) ([]data.Ingredient, error) {
	repo := data.NewIngredientRepository(ts.Backend)
	out := make([]data.Ingredient, 0, len(catalog))
	for _, c := range catalog {
		item, err := repo.Insert(context.Background(), data.Ingredient{
			Name:     c.Name,
			Supplier: c.Supplier,
			Price:    decimal.RequireFromString(c.Price),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to seed %s: %w", c.Name, err)
		}
		out = append(out, *item)
	}
	return out, nil
}
