package orders

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/grocerops/grocerops/internal/platform/backend"
	"github.com/grocerops/grocerops/internal/rbac"
)

const basePath = "/api/orders"

// Service wraps the backend order endpoints and enforces the transition table.
type Service struct {
	api      backend.Caller
	validate *validator.Validate
}

// NewService constructs Service.
func NewService(api backend.Caller) *Service {
	return &Service{api: api, validate: validator.New()}
}

// List returns every order visible to admin and staff, newest first.
func (s *Service) List(ctx context.Context) ([]Order, error) {
	var items []Order
	if err := backend.Get(ctx, s.api, basePath, nil, &items); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	sortNewest(items)
	return items, nil
}

// ForSupplier returns the orders addressed to the signed-in supplier.
func (s *Service) ForSupplier(ctx context.Context) ([]Order, error) {
	var items []Order
	if err := backend.Get(ctx, s.api, basePath+"/supplier", nil, &items); err != nil {
		return nil, fmt.Errorf("list supplier orders: %w", err)
	}
	sortNewest(items)
	return items, nil
}

// Get fetches one order.
func (s *Service) Get(ctx context.Context, id string) (Order, error) {
	var o Order
	if err := backend.Get(ctx, s.api, backend.PathID(basePath, id), nil, &o); err != nil {
		return Order{}, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

// Create validates and places a restock order. The total is computed from the lines.
func (s *Service) Create(ctx context.Context, in CreateInput) (Order, error) {
	if len(in.Items) == 0 {
		return Order{}, ErrEmptyOrder
	}
	if err := s.validate.Struct(in); err != nil {
		return Order{}, err
	}
	total := decimal.Zero
	for _, item := range in.Items {
		total = total.Add(item.Price.Mul(decimal.NewFromInt(item.Quantity)))
	}
	in.TotalAmount = total
	var o Order
	if err := backend.Send(ctx, s.api, http.MethodPost, basePath, in, &o); err != nil {
		return Order{}, fmt.Errorf("create order: %w", err)
	}
	return o, nil
}

// UpdateStatus moves an order to status to when role is allowed to.
func (s *Service) UpdateStatus(ctx context.Context, role rbac.Role, id string, from, to Status) (Order, error) {
	if !CanTransition(role, from, to) {
		return Order{}, fmt.Errorf("%w: %s cannot move %s to %s", ErrInvalidTransition, role, from, to)
	}
	var o Order
	body := map[string]Status{"status": to}
	if err := backend.Send(ctx, s.api, http.MethodPatch, backend.PathID(basePath, id, "status"), body, &o); err != nil {
		return Order{}, fmt.Errorf("update order status: %w", err)
	}
	return o, nil
}

// Transition loads the order and applies UpdateStatus from its current status.
func (s *Service) Transition(ctx context.Context, role rbac.Role, id string, to Status) (Order, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return Order{}, err
	}
	return s.UpdateStatus(ctx, role, id, current.Status, to)
}

// Filter returns orders in one of statuses; no statuses means all orders.
func Filter(items []Order, statuses ...Status) []Order {
	if len(statuses) == 0 {
		return items
	}
	want := make(map[Status]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}
	out := make([]Order, 0, len(items))
	for _, o := range items {
		if want[o.Status] {
			out = append(out, o)
		}
	}
	return out
}

// CountByStatus tallies orders per status.
func CountByStatus(items []Order) map[Status]int {
	counts := make(map[Status]int, len(Statuses()))
	for _, st := range Statuses() {
		counts[st] = 0
	}
	for _, o := range items {
		counts[o.Status]++
	}
	return counts
}

func sortNewest(items []Order) {
	sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
}
