package inventory

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/grocerops/grocerops/internal/orders"
	"github.com/grocerops/grocerops/internal/platform/backend"
	"github.com/grocerops/grocerops/internal/products"
)

var testNow = time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)

func day(offset int) *time.Time {
	t := testNow.AddDate(0, 0, offset)
	return &t
}

func testRules() Rules {
	return Rules{LowStockThreshold: 10, ExpiryWindow: 7 * 24 * time.Hour}
}

func fixtureProducts() []products.Product {
	return []products.Product{
		{ID: "milk", Name: "Milk", Quantity: 4, Price: decimal.RequireFromString("1.50"), ExpiryDate: day(3)},
		{ID: "eggs", Name: "Eggs", Quantity: 0, Price: decimal.RequireFromString("3.00")},
		{ID: "rice", Name: "Rice", Quantity: 50, Threshold: 20, Price: decimal.RequireFromString("2.00")},
		{ID: "yogurt", Name: "yogurt", Quantity: 12, Price: decimal.RequireFromString("0.80"), ExpiryDate: day(-1)},
		{ID: "bread", Name: "Bread", Quantity: 8, Threshold: 15, Price: decimal.RequireFromString("2.50")},
	}
}

func fixtureOrders() []orders.Order {
	return []orders.Order{
		{ID: "o1", Status: orders.StatusApproved, Items: []orders.Item{{Product: backend.Ref{ID: "eggs"}, Quantity: 6}}},
		{ID: "o2", Status: orders.StatusShipped, Items: []orders.Item{{Product: backend.Ref{ID: "bread"}, Quantity: 20}, {Product: backend.Ref{ID: "eggs"}, Quantity: 2}}},
		{ID: "o3", Status: orders.StatusPending, Items: []orders.Item{{Product: backend.Ref{ID: "milk"}, Quantity: 100}}},
		{ID: "o4", Status: orders.StatusDelivered, Items: []orders.Item{{Product: backend.Ref{ID: "milk"}, Quantity: 100}}},
	}
}

func itemByID(t *testing.T, snap Snapshot, id string) Item {
	t.Helper()
	for _, it := range snap.Items {
		if it.Product.ID == id {
			return it
		}
	}
	t.Fatalf("item %s not found", id)
	return Item{}
}

func TestAnalyzeIncomingCountsOnlyOpenOrders(t *testing.T) {
	snap := Analyze(fixtureProducts(), fixtureOrders(), testNow, testRules())
	require.Equal(t, int64(8), itemByID(t, snap, "eggs").Incoming)
	require.Equal(t, int64(20), itemByID(t, snap, "bread").Incoming)
	require.Equal(t, int64(0), itemByID(t, snap, "milk").Incoming)
	require.Equal(t, 2, snap.Counts.OpenOrders)
	require.Equal(t, int64(28), snap.Counts.Incoming)
}

func TestAnalyzeClassifiesAlerts(t *testing.T) {
	snap := Analyze(fixtureProducts(), fixtureOrders(), testNow, testRules())

	var got []string
	for _, a := range snap.Alerts {
		got = append(got, a.Fingerprint)
	}
	// critical first, then warnings, each ordered by product name
	require.Equal(t, []string{
		"out_of_stock:eggs",
		"expired:yogurt",
		"low_stock:bread",
		"expiring_soon:milk",
		"low_stock:milk",
	}, got)

	require.Equal(t, StockOut, itemByID(t, snap, "eggs").Status)
	require.Equal(t, StockLow, itemByID(t, snap, "milk").Status)
	require.Equal(t, StockOK, itemByID(t, snap, "rice").Status)
	require.Equal(t, int64(10), itemByID(t, snap, "milk").Threshold)
	require.Equal(t, int64(20), itemByID(t, snap, "rice").Threshold)

	require.Equal(t, 5, snap.Counts.Products)
	require.Equal(t, 1, snap.Counts.OutOfStock)
	require.Equal(t, 2, snap.Counts.LowStock)
	require.Equal(t, 2, snap.Counts.InStock)
	require.Equal(t, 1, snap.Counts.Expired)
	require.Equal(t, 1, snap.Counts.ExpiringSoon)
	// 4*1.50 + 50*2.00 + 12*0.80 + 8*2.50
	require.True(t, snap.Counts.Value.Equal(decimal.RequireFromString("135.60")), snap.Counts.Value.String())
}

func TestAnalyzeReorderSuggestions(t *testing.T) {
	snap := Analyze(fixtureProducts(), fixtureOrders(), testNow, testRules())

	suggested := map[string]int64{}
	for _, r := range snap.Reorders {
		suggested[r.ProductID] = r.Suggested
	}
	// eggs: 2*10 - 0 - 8; milk: 2*10 - 4 - 0; bread is covered by 20 incoming
	require.Equal(t, map[string]int64{"eggs": 12, "milk": 16}, suggested)
	require.Equal(t, "milk", snap.Reorders[0].ProductID)
}

func TestAnalyzeExpiryBoundaries(t *testing.T) {
	items := []products.Product{
		{ID: "edge", Name: "Edge", Quantity: 100, ExpiryDate: day(7)},
		{ID: "far", Name: "Far", Quantity: 100, ExpiryDate: day(8)},
		{ID: "gone", Name: "Gone", Quantity: 0, ExpiryDate: day(-3)},
	}
	snap := Analyze(items, nil, testNow, testRules())
	var kinds []string
	for _, a := range snap.Alerts {
		kinds = append(kinds, a.Fingerprint)
	}
	require.Equal(t, []string{"out_of_stock:gone", "expiring_soon:edge"}, kinds)
}

func TestAnalyzeEmpty(t *testing.T) {
	snap := Analyze(nil, nil, testNow, testRules())
	require.Empty(t, snap.Alerts)
	require.True(t, snap.Counts.Value.IsZero())
	require.Equal(t, map[AlertKind]int{KindOutOfStock: 0, KindLowStock: 0, KindExpired: 0, KindExpiringSoon: 0}, snap.AlertsByKind())
}

func TestReconcileReturnsOnlyNewAlerts(t *testing.T) {
	before := Analyze(fixtureProducts(), fixtureOrders(), testNow, testRules())
	require.Len(t, Reconcile(nil, before), len(before.Alerts))
	require.Empty(t, Reconcile(&before, before))

	changed := fixtureProducts()
	changed[2].Quantity = 0  // rice runs out
	changed[1].Quantity = 30 // eggs restocked
	after := Analyze(changed, fixtureOrders(), testNow.Add(time.Minute), testRules())

	raised := Reconcile(&before, after)
	require.Len(t, raised, 1)
	require.Equal(t, "out_of_stock:rice", raised[0].Fingerprint)
	require.Equal(t, SeverityCritical, raised[0].Severity)
	require.NotContains(t, after.Fingerprints(), "out_of_stock:eggs")
}
