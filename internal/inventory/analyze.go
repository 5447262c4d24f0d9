package inventory

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/grocerops/grocerops/internal/orders"
	"github.com/grocerops/grocerops/internal/products"
)

// Analyze reconciles products with restock orders and classifies stock.
// It is pure: the same inputs always give the same snapshot.
func Analyze(items []products.Product, orderList []orders.Order, now time.Time, rules Rules) Snapshot {
	snap := Snapshot{TakenAt: now, Counts: Counts{Value: decimal.Zero}}

	incoming := make(map[string]int64)
	for _, o := range orderList {
		if !o.Status.Open() {
			continue
		}
		snap.Counts.OpenOrders++
		for _, line := range o.Items {
			if line.Quantity > 0 {
				incoming[line.Product.ID] += line.Quantity
			}
		}
	}

	horizon := now.Add(rules.ExpiryWindow)
	for _, p := range items {
		threshold := p.Threshold
		if threshold <= 0 {
			threshold = rules.LowStockThreshold
		}
		item := Item{Product: p, Threshold: threshold, Incoming: incoming[p.ID], Status: StockOK}
		snap.Counts.Products++
		snap.Counts.Incoming += item.Incoming
		snap.Counts.Value = snap.Counts.Value.Add(p.Value())

		base := Alert{
			ProductID:   p.ID,
			ProductName: p.Name,
			SKU:         p.SKU,
			Quantity:    p.Quantity,
			Threshold:   threshold,
			Incoming:    item.Incoming,
			RaisedAt:    now,
		}
		switch {
		case p.Quantity <= 0:
			item.Status = StockOut
			snap.Counts.OutOfStock++
			snap.Alerts = append(snap.Alerts, newAlert(base, KindOutOfStock, SeverityCritical, fmt.Sprintf("%s is out of stock", p.Name)))
		case p.Quantity <= threshold:
			item.Status = StockLow
			snap.Counts.LowStock++
			snap.Alerts = append(snap.Alerts, newAlert(base, KindLowStock, SeverityWarning, fmt.Sprintf("%s is low on stock (%d left, threshold %d)", p.Name, p.Quantity, threshold)))
		default:
			snap.Counts.InStock++
		}

		// Expiry only matters while there is stock to discard.
		if p.ExpiryDate != nil && p.Quantity > 0 {
			base.ExpiryDate = p.ExpiryDate
			switch {
			case p.ExpiryDate.Before(now):
				snap.Counts.Expired++
				snap.Alerts = append(snap.Alerts, newAlert(base, KindExpired, SeverityCritical, fmt.Sprintf("%s expired on %s", p.Name, p.ExpiryDate.Format("02 Jan 2006"))))
			case !p.ExpiryDate.After(horizon):
				snap.Counts.ExpiringSoon++
				snap.Alerts = append(snap.Alerts, newAlert(base, KindExpiringSoon, SeverityWarning, fmt.Sprintf("%s expires on %s", p.Name, p.ExpiryDate.Format("02 Jan 2006"))))
			}
		}

		if item.Status != StockOK && item.Projected() <= threshold {
			suggested := 2*threshold - max(p.Quantity, 0) - item.Incoming
			if suggested > 0 {
				snap.Reorders = append(snap.Reorders, Reorder{
					ProductID:   p.ID,
					ProductName: p.Name,
					SKU:         p.SKU,
					Supplier:    p.Supplier,
					Quantity:    p.Quantity,
					Incoming:    item.Incoming,
					Threshold:   threshold,
					Suggested:   suggested,
				})
			}
		}
		snap.Items = append(snap.Items, item)
	}

	sort.SliceStable(snap.Alerts, func(i, j int) bool {
		a, b := snap.Alerts[i], snap.Alerts[j]
		if a.Severity.rank() != b.Severity.rank() {
			return a.Severity.rank() < b.Severity.rank()
		}
		if an, bn := strings.ToLower(a.ProductName), strings.ToLower(b.ProductName); an != bn {
			return an < bn
		}
		return a.Kind < b.Kind
	})
	sort.SliceStable(snap.Items, func(i, j int) bool {
		return strings.ToLower(snap.Items[i].Product.Name) < strings.ToLower(snap.Items[j].Product.Name)
	})
	sort.SliceStable(snap.Reorders, func(i, j int) bool {
		return snap.Reorders[i].Suggested > snap.Reorders[j].Suggested
	})
	return snap
}

func newAlert(base Alert, kind AlertKind, severity Severity, message string) Alert {
	base.Kind = kind
	base.Severity = severity
	base.Fingerprint = Fingerprint(kind, base.ProductID)
	base.Message = message
	return base
}

// Reconcile returns the alerts in current that were not raised in previous.
// A nil previous snapshot means every current alert is new.
func Reconcile(previous *Snapshot, current Snapshot) []Alert {
	seen := make(map[string]struct{})
	if previous != nil {
		for _, a := range previous.Alerts {
			seen[a.Fingerprint] = struct{}{}
		}
	}
	var raised []Alert
	for _, a := range current.Alerts {
		if _, ok := seen[a.Fingerprint]; !ok {
			raised = append(raised, a)
		}
	}
	return raised
}

// Fingerprints returns the fingerprints of every alert in the snapshot.
func (s Snapshot) Fingerprints() []string {
	out := make([]string, 0, len(s.Alerts))
	for _, a := range s.Alerts {
		out = append(out, a.Fingerprint)
	}
	return out
}
