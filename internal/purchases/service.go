package purchases

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/grocerops/grocerops/internal/platform/backend"
	"github.com/grocerops/grocerops/internal/products"
)

const basePath = "/api/purchases"

// Service wraps the backend purchase endpoints.
type Service struct {
	api backend.Caller
}

// NewService constructs Service.
func NewService(api backend.Caller) *Service {
	return &Service{api: api}
}

// BuildCart prices requested quantities against the catalogue. Lines with a
// zero quantity are dropped.
func BuildCart(catalogue []products.Product, quantities map[string]int64) (Cart, error) {
	byID := make(map[string]products.Product, len(catalogue))
	for _, p := range catalogue {
		byID[p.ID] = p
	}
	ids := make([]string, 0, len(quantities))
	for id := range quantities {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	cart := Cart{TotalAmount: decimal.Zero}
	for _, id := range ids {
		qty := quantities[id]
		if qty <= 0 {
			continue
		}
		p, ok := byID[id]
		if !ok {
			return Cart{}, fmt.Errorf("%w: unknown product %s", ErrInsufficientStock, id)
		}
		if qty > p.Quantity {
			return Cart{}, fmt.Errorf("%w: only %d %s left", ErrInsufficientStock, max(p.Quantity, 0), p.Name)
		}
		cart.Items = append(cart.Items, Line{Product: p.ID, Name: p.Name, Quantity: qty, Price: p.Price})
		cart.TotalAmount = cart.TotalAmount.Add(p.Price.Mul(decimal.NewFromInt(qty)))
	}
	if len(cart.Items) == 0 {
		return Cart{}, ErrEmptyCart
	}
	return cart, nil
}

// Create submits a cart.
func (s *Service) Create(ctx context.Context, cart Cart) (Purchase, error) {
	if len(cart.Items) == 0 {
		return Purchase{}, ErrEmptyCart
	}
	var p Purchase
	if err := backend.Send(ctx, s.api, http.MethodPost, basePath, cart, &p); err != nil {
		return Purchase{}, fmt.Errorf("create purchase: %w", err)
	}
	return p, nil
}

// Mine lists the purchases of the signed-in buyer, newest first.
func (s *Service) Mine(ctx context.Context) ([]Purchase, error) {
	var items []Purchase
	if err := backend.Get(ctx, s.api, basePath+"/my", nil, &items); err != nil {
		return nil, fmt.Errorf("list my purchases: %w", err)
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	return items, nil
}

// Get fetches one of the buyer's purchases.
func (s *Service) Get(ctx context.Context, id string) (Purchase, error) {
	var p Purchase
	if err := backend.Get(ctx, s.api, backend.PathID(basePath, id), nil, &p); err != nil {
		return Purchase{}, fmt.Errorf("get purchase: %w", err)
	}
	return p, nil
}
