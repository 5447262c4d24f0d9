package products

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/grocerops/grocerops/internal/platform/backend"
)

// ErrInvalidAdjustment is returned for zero deltas or missing reasons.
var ErrInvalidAdjustment = errors.New("products: stock adjustment needs a non-zero delta and a reason")

// Product is a stock keeping unit as stored by the backend.
type Product struct {
	ID          string          `json:"_id"`
	Name        string          `json:"name"`
	SKU         string          `json:"sku"`
	Category    string          `json:"category"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int64           `json:"quantity"`
	Unit        string          `json:"unit,omitempty"`
	// Threshold is the low-stock level; zero means the configured default.
	Threshold  int64       `json:"threshold"`
	ExpiryDate *time.Time  `json:"expiryDate,omitempty"`
	Supplier   backend.Ref `json:"supplier"`
	CreatedAt  time.Time   `json:"createdAt"`
	UpdatedAt  time.Time   `json:"updatedAt"`
}

// InStock reports whether the product can be sold.
func (p Product) InStock() bool {
	return p.Quantity > 0
}

// Value is price times quantity on hand.
func (p Product) Value() decimal.Decimal {
	if p.Quantity <= 0 {
		return decimal.Zero
	}
	return p.Price.Mul(decimal.NewFromInt(p.Quantity))
}

// Input is the create/update payload.
type Input struct {
	Name        string          `json:"name" validate:"required,max=120"`
	SKU         string          `json:"sku" validate:"required,max=64"`
	Category    string          `json:"category" validate:"required,max=64"`
	Description string          `json:"description,omitempty" validate:"max=1000"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int64           `json:"quantity" validate:"gte=0"`
	Unit        string          `json:"unit,omitempty" validate:"max=16"`
	Threshold   int64           `json:"threshold" validate:"gte=0"`
	ExpiryDate  *time.Time      `json:"expiryDate,omitempty"`
	Supplier    string          `json:"supplier,omitempty"`
}

// Filter narrows the product list.
type Filter struct {
	Search   string
	Category string
	// StockOnly hides products that are out of stock.
	StockOnly bool
	Page      int
	PerPage   int
}

// StockAdjustment is the payload for PATCH /api/products/{id}/stock.
type StockAdjustment struct {
	Delta  int64  `json:"delta"`
	Reason string `json:"reason"`
}

// BulkResult is the backend summary of a CSV import.
type BulkResult struct {
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors"`
}
