package data

import (
	"github.com/shopspring/decimal"
)

// Table names of the hosted project.
const (
	TableCredentials      = "barista_users"
	TableSnapshots        = "list_inventory"
	TableInventoryLines   = "inventory"
	TableIngredients      = "ingredients"
	TablePettyCapital     = "petty_cash_capital"
	TablePettyExpenses    = "petty_cash"
	TablePendingSnapshots = "snapshot_pending"
	DateLayout            = "2006-01-02"
	PlaceholderItemName   = "New Item"
	PlaceholderIngredient = "New Ingredient"
)

// Column names. The historical spelling of beggining_stock is part of the hosted schema.
const (
	colID             = "id"
	colDate           = "date"
	colUsername       = "username"
	colPassword       = "password"
	colGroupID        = "table_id"
	colItemName       = "item_name"
	colBeginningStock = "beggining_stock"
	colQtyUsed        = "qty_used"
	colEndingStock    = "ending_stock"
	colIngredientName = "ingredients_name"
	colDescription    = "description"
	colSupplier       = "supplier"
	colPrice          = "price"
	colPettyCashID    = "petty_cash_id"
	colAmount         = "amount"
	colBalance        = "balance"
	colExpense        = "expense"
)

type Credential struct {
	ID       int64  `json:"id" db:"id"`
	Username string `json:"username" db:"username"`
	Password string `json:"-" db:"password"`
}

// Snapshot is one day's inventory parent row.
type Snapshot struct {
	ID      int64  `json:"id" db:"id"`
	Date    string `json:"date" db:"date"`
	GroupID string `json:"group_id" db:"table_id"`
}

// PendingSnapshot marks a snapshot whose creation has not finished.
type PendingSnapshot struct {
	ID      int64  `json:"id" db:"id"`
	Date    string `json:"date" db:"date"`
	GroupID string `json:"group_id" db:"table_id"`
}

// InventoryLine is one item's stock within a snapshot.
type InventoryLine struct {
	ID             int64           `json:"id" db:"id"`
	ItemName       string          `json:"item_name" db:"item_name"`
	BeginningStock decimal.Decimal `json:"beginning_stock" db:"beggining_stock"`
	QtyUsed        decimal.Decimal `json:"qty_used" db:"qty_used"`
	EndingStock    decimal.Decimal `json:"ending_stock" db:"ending_stock"`
	GroupID        string          `json:"group_id" db:"table_id"`
}

type Ingredient struct {
	ID          int64           `json:"id" db:"id"`
	Name        string          `json:"name" db:"ingredients_name"`
	Description string          `json:"description" db:"description"`
	Supplier    string          `json:"supplier" db:"supplier"`
	Price       decimal.Decimal `json:"price" db:"price"`
}

// Capital is a petty-cash funding event.
type Capital struct {
	ID          int64           `json:"id" db:"id"`
	Date        string          `json:"date" db:"date"`
	GroupID     string          `json:"group_id" db:"petty_cash_id"`
	Description string          `json:"description" db:"description"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	Balance     decimal.Decimal `json:"balance" db:"balance"`
}

// Expense is drawn against one Capital.
type Expense struct {
	ID          int64           `json:"id" db:"id"`
	Date        string          `json:"date" db:"date"`
	Description string          `json:"description" db:"description"`
	Amount      decimal.Decimal `json:"amount" db:"expense"`
	GroupID     string          `json:"group_id" db:"petty_cash_id"`
}

// SeedSource tells where a new snapshot's lines came from.
type SeedSource string

const (
	SeedPrevious SeedSource = "previous"
	SeedCatalog  SeedSource = "catalog"
)

// SnapshotCreation is the result of opening a new day.
type SnapshotCreation struct {
	Snapshot Snapshot        `json:"snapshot"`
	Lines    []InventoryLine `json:"lines"`
	Seed     SeedSource      `json:"seed"`
	SeededBy string          `json:"seeded_by,omitempty"` // group id of the previous snapshot
}

// ExpenseResult pairs a written expense with its capital's recomputed balance.
type ExpenseResult struct {
	Expense Expense `json:"expense"`
	Capital Capital `json:"capital"`
}
