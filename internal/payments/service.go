package payments

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/grocerops/grocerops/internal/platform/backend"
	"github.com/grocerops/grocerops/internal/platform/export"
)

// Service wraps the payment and transaction endpoints.
type Service struct {
	api      backend.Caller
	validate *validator.Validate
}

// NewService constructs Service.
func NewService(api backend.Caller) *Service {
	return &Service{api: api, validate: validator.New()}
}

// CreateOrder opens a gateway order for a purchase.
func (s *Service) CreateOrder(ctx context.Context, purchaseID string, amount decimal.Decimal) (Order, error) {
	if !amount.IsPositive() {
		return Order{}, ErrInvalidAmount
	}
	body := map[string]any{"purchaseId": purchaseID, "amount": amount}
	var order Order
	if err := backend.Send(ctx, s.api, http.MethodPost, "/api/payments/create-order", body, &order); err != nil {
		return Order{}, fmt.Errorf("create payment order: %w", err)
	}
	return order, nil
}

// Verify confirms a gateway payment. The backend checks the signature.
func (s *Service) Verify(ctx context.Context, v Verification) (Payment, error) {
	if err := s.validate.Struct(v); err != nil {
		return Payment{}, err
	}
	var p Payment
	if err := backend.Send(ctx, s.api, http.MethodPost, "/api/payments/verify", v, &p); err != nil {
		return Payment{}, fmt.Errorf("verify payment: %w", err)
	}
	return p, nil
}

// History lists the caller's payments, newest first.
func (s *Service) History(ctx context.Context) ([]Payment, error) {
	var items []Payment
	if err := backend.Get(ctx, s.api, "/api/payments/history", nil, &items); err != nil {
		return nil, fmt.Errorf("payment history: %w", err)
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	return items, nil
}

// Transactions lists the ledger, newest first, filtered by f.
func (s *Service) Transactions(ctx context.Context, f TransactionFilter) ([]Transaction, error) {
	var items []Transaction
	if err := backend.Get(ctx, s.api, "/api/transactions", nil, &items); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return FilterTransactions(items, f), nil
}

// FilterTransactions applies f and sorts newest first.
func FilterTransactions(items []Transaction, f TransactionFilter) []Transaction {
	out := make([]Transaction, 0, len(items))
	for _, t := range items {
		if f.Type != "" && t.Type != f.Type {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if !f.From.IsZero() && t.CreatedAt.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && !t.CreatedAt.Before(f.To) {
			continue
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// Revenue sums completed sales.
func Revenue(items []Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, t := range items {
		if t.Revenue() {
			total = total.Add(t.Amount)
		}
	}
	return total
}

// RevenueByMonth buckets completed sales into the last months calendar
// months ending with the month of now, oldest first.
func RevenueByMonth(items []Transaction, months int, now time.Time) []MonthTotal {
	if months <= 0 {
		return nil
	}
	current := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	out := make([]MonthTotal, months)
	index := make(map[string]int, months)
	for i := range out {
		m := current.AddDate(0, i-months+1, 0)
		out[i] = MonthTotal{Month: m, Total: decimal.Zero}
		index[m.Format("2006-01")] = i
	}
	for _, t := range items {
		if !t.Revenue() {
			continue
		}
		if i, ok := index[t.CreatedAt.In(now.Location()).Format("2006-01")]; ok {
			out[i].Total = out[i].Total.Add(t.Amount)
		}
	}
	return out
}

// WriteTransactionsCSV writes the ledger export.
func WriteTransactionsCSV(w io.Writer, items []Transaction) error {
	header := []string{"date", "type", "reference", "amount", "method", "status"}
	records := make([][]string, 0, len(items))
	for _, t := range items {
		records = append(records, []string{
			export.FormatTime(t.CreatedAt),
			t.Type,
			t.Reference,
			t.Amount.StringFixed(2),
			t.Method,
			t.Status,
		})
	}
	return export.WriteCSV(w, header, records)
}
