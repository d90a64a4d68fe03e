package inventory

import (
	"github.com/shopspring/decimal"
)

// UpdateLineRequest is the body of PUT /api/inventory/lines/{id}.
type UpdateLineRequest struct {
	ItemName       string          `json:"item_name"`
	BeginningStock decimal.Decimal `json:"beginning_stock"`
	QtyUsed        decimal.Decimal `json:"qty_used"`
	EndingStock    decimal.Decimal `json:"ending_stock"`
}
