package orders

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/grocerops/grocerops/internal/platform/backend"
	"github.com/grocerops/grocerops/internal/rbac"
)

// ErrInvalidTransition is returned when a role may not move an order to the
// requested status. No backend call is made in that case.
var ErrInvalidTransition = errors.New("orders: status transition not allowed")

// ErrEmptyOrder is returned for orders without line items.
var ErrEmptyOrder = errors.New("orders: add at least one item")

// Status is the lifecycle state of a restock order.
type Status string

// Order statuses.
const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// Statuses lists every status in lifecycle order.
func Statuses() []Status {
	return []Status{StatusPending, StatusApproved, StatusShipped, StatusDelivered, StatusRejected, StatusCancelled}
}

// Open reports whether goods on the order are still expected to arrive.
func (s Status) Open() bool {
	return s == StatusApproved || s == StatusShipped
}

// Final reports whether no further transitions exist.
func (s Status) Final() bool {
	return s == StatusDelivered || s == StatusRejected || s == StatusCancelled
}

// Item is one order line.
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

// Order is a restock order placed with a supplier.
type Order struct {
	ID           string          `json:"_id"`
	OrderNumber  string          `json:"orderNumber"`
	Supplier     backend.Ref     `json:"supplier"`
	CreatedBy    backend.Ref     `json:"createdBy"`
	Items        []Item          `json:"items"`
	TotalAmount  decimal.Decimal `json:"totalAmount"`
	Status       Status          `json:"status"`
	Notes        string          `json:"notes,omitempty"`
	ExpectedDate *time.Time      `json:"expectedDate,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// Reference is the order number, or the id for orders created without one.
func (o Order) Reference() string {
	if o.OrderNumber != "" {
		return o.OrderNumber
	}
	return o.ID
}

// ItemInput is one requested line on a new order.
type ItemInput struct {
	Product  string          `json:"product" validate:"required"`
	Name     string          `json:"name,omitempty"`
	Quantity int64           `json:"quantity" validate:"gt=0"`
	Price    decimal.Decimal `json:"price"`
}

// CreateInput is the payload for POST /api/orders.
type CreateInput struct {
	Supplier     string          `json:"supplier" validate:"required"`
	Items        []ItemInput     `json:"items" validate:"dive"`
	Notes        string          `json:"notes,omitempty" validate:"max=500"`
	ExpectedDate *time.Time      `json:"expectedDate,omitempty"`
	TotalAmount  decimal.Decimal `json:"totalAmount"`
}

// transitions lists, per role, the statuses reachable from each status.
var transitions = map[rbac.Role]map[Status][]Status{
	rbac.RoleSupplier: {
		StatusPending:  {StatusApproved, StatusRejected},
		StatusApproved: {StatusShipped},
		StatusShipped:  {StatusDelivered},
	},
	rbac.RoleAdmin: {
		StatusPending: {StatusCancelled},
		StatusShipped: {StatusDelivered},
	},
	rbac.RoleStaff: {
		StatusPending: {StatusCancelled},
		StatusShipped: {StatusDelivered},
	},
}

// NextStatuses returns the statuses role may move an order in from to.
func NextStatuses(role rbac.Role, from Status) []Status {
	return transitions[role][from]
}

// CanTransition reports whether role may move an order from one status to another.
func CanTransition(role rbac.Role, from, to Status) bool {
	for _, s := range NextStatuses(role, from) {
		if s == to {
			return true
		}
	}
	return false
}
