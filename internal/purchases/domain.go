package purchases

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/grocerops/grocerops/internal/platform/backend"
)

var (
	// ErrEmptyCart is returned when a purchase has no lines.
	ErrEmptyCart = errors.New("purchases: cart is empty")
	// ErrInsufficientStock is returned when a line asks for more than is on hand.
	ErrInsufficientStock = errors.New("purchases: not enough stock")
)

// Purchase is a retailer or user purchase.
type Purchase struct {
	ID            string          `json:"_id"`
	Buyer         backend.Ref     `json:"buyer"`
	Items         []Item          `json:"items"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	Status        string          `json:"status"`
	PaymentStatus string          `json:"paymentStatus"`
	PaymentID     string          `json:"paymentId,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// Paid reports whether the payment was verified.
func (p Purchase) Paid() bool {
	return p.PaymentStatus == "paid" || p.PaymentStatus == "completed"
}

// Item is one purchased product.
type Item struct {
	Product  backend.Ref     `json:"product"`
	Name     string          `json:"name"`
	Quantity int64           `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// Total is price times quantity.
func (i Item) Total() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(i.Quantity))
}

// Line is one requested cart line.
type Line struct {
	Product  string          `json:"product"`
	Name     string          `json:"name,omitempty"`
	Quantity int64           `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// Cart is the payload for POST /api/purchases.
type Cart struct {
	Items       []Line          `json:"items"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
}
