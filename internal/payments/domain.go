package payments

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidAmount is returned for non-positive payment amounts.
	ErrInvalidAmount = errors.New("payments: amount must be positive")
	// ErrAlreadyPaid is returned when a paid purchase is checked out again.
	ErrAlreadyPaid = errors.New("payments: purchase already paid")
)

// Transaction statuses and types used for revenue.
const (
	StatusCompleted = "completed"
	StatusPending   = "pending"
	StatusFailed    = "failed"

	TypeSale    = "sale"
	TypeRefund  = "refund"
	TypeSalary  = "salary"
	TypeRestock = "restock"
)

// Order is the gateway order created for a purchase.
type Order struct {
	OrderID  string          `json:"orderId"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	KeyID    string          `json:"keyId,omitempty"`
	Receipt  string          `json:"receipt,omitempty"`
}

// Verification is the gateway callback the browser posts back.
type Verification struct {
	OrderID   string `json:"orderId" validate:"required"`
	PaymentID string `json:"paymentId" validate:"required"`
	Signature string `json:"signature" validate:"required"`
}

// Payment is one entry of the payment history.
type Payment struct {
	ID         string          `json:"_id"`
	OrderID    string          `json:"orderId"`
	PaymentID  string          `json:"paymentId"`
	PurchaseID string          `json:"purchaseId,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	Status     string          `json:"status"`
	Method     string          `json:"method,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// Transaction is one row of the admin ledger.
type Transaction struct {
	ID        string          `json:"_id"`
	Type      string          `json:"type"`
	Reference string          `json:"reference"`
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method"`
	Status    string          `json:"status"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Revenue reports whether the transaction counts towards income.
func (t Transaction) Revenue() bool {
	return t.Status == StatusCompleted && (t.Type == TypeSale || t.Type == "purchase" || t.Type == "payment")
}

// TransactionFilter narrows the ledger. Zero values match everything.
type TransactionFilter struct {
	Type   string
	Status string
	From   time.Time
	To     time.Time
}

// MonthTotal is revenue for one calendar month.
type MonthTotal struct {
	Month time.Time
	Total decimal.Decimal
}

// Label is the short month name used on charts.
func (m MonthTotal) Label() string {
	return m.Month.Format("Jan")
}
