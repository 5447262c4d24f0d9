package inventory

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/grocerops/grocerops/internal/platform/backend"
	"github.com/grocerops/grocerops/internal/products"
)

// ErrAlertNotFound is returned when acknowledging an unknown or already
// acknowledged alert.
var ErrAlertNotFound = errors.New("inventory: alert not found")

// ErrScanUnavailable is returned when no snapshot could be produced for the caller.
var ErrScanUnavailable = errors.New("inventory: snapshot unavailable")

// AlertKind classifies an alert.
type AlertKind string

// Alert kinds raised by Analyze.
const (
	KindOutOfStock   AlertKind = "out_of_stock"
	KindLowStock     AlertKind = "low_stock"
	KindExpired      AlertKind = "expired"
	KindExpiringSoon AlertKind = "expiring_soon"
)

// Kinds lists every alert kind.
func Kinds() []AlertKind {
	return []AlertKind{KindOutOfStock, KindLowStock, KindExpired, KindExpiringSoon}
}

// Severity orders alerts on the page.
type Severity string

// Severities.
const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
)

func (s Severity) rank() int {
	if s == SeverityCritical {
		return 0
	}
	return 1
}

// StockStatus is the stock classification of one product.
type StockStatus string

// Stock statuses.
const (
	StockOK  StockStatus = "in_stock"
	StockLow StockStatus = "low_stock"
	StockOut StockStatus = "out_of_stock"
)

// Rules configures the alerting thresholds.
type Rules struct {
	// LowStockThreshold applies to products without their own threshold.
	LowStockThreshold int64
	// ExpiryWindow is how far ahead expiring_soon looks.
	ExpiryWindow time.Duration
}

// Alert is one raised condition on one product.
type Alert struct {
	ID             int64      `json:"id,omitempty"`
	Fingerprint    string     `json:"fingerprint"`
	Kind           AlertKind  `json:"kind"`
	Severity       Severity   `json:"severity"`
	ProductID      string     `json:"productId"`
	ProductName    string     `json:"productName"`
	SKU            string     `json:"sku,omitempty"`
	Quantity       int64      `json:"quantity"`
	Threshold      int64      `json:"threshold"`
	Incoming       int64      `json:"incoming"`
	ExpiryDate     *time.Time `json:"expiryDate,omitempty"`
	Message        string     `json:"message"`
	RaisedAt       time.Time  `json:"raisedAt"`
	AcknowledgedAt *time.Time `json:"acknowledgedAt,omitempty"`
	AcknowledgedBy string     `json:"acknowledgedBy,omitempty"`
	ResolvedAt     *time.Time `json:"resolvedAt,omitempty"`
}

// Fingerprint identifies an alert condition across snapshots.
func Fingerprint(kind AlertKind, productID string) string {
	return string(kind) + ":" + productID
}

// Item is the reconciled view of one product.
type Item struct {
	Product   products.Product `json:"product"`
	Threshold int64            `json:"threshold"`
	Incoming  int64            `json:"incoming"`
	Status    StockStatus      `json:"status"`
}

// Projected is stock on hand plus stock on the way.
func (i Item) Projected() int64 {
	return max(i.Product.Quantity, 0) + i.Incoming
}

// Reorder is a suggested restock for a product that stays at or below its
// threshold even after open orders arrive.
type Reorder struct {
	ProductID   string      `json:"productId"`
	ProductName string      `json:"productName"`
	SKU         string      `json:"sku,omitempty"`
	Supplier    backend.Ref `json:"supplier"`
	Quantity    int64       `json:"quantity"`
	Incoming    int64       `json:"incoming"`
	Threshold   int64       `json:"threshold"`
	Suggested   int64       `json:"suggested"`
}

// Counts summarises a snapshot.
type Counts struct {
	Products     int             `json:"products"`
	InStock      int             `json:"inStock"`
	LowStock     int             `json:"lowStock"`
	OutOfStock   int             `json:"outOfStock"`
	Expired      int             `json:"expired"`
	ExpiringSoon int             `json:"expiringSoon"`
	OpenOrders   int             `json:"openOrders"`
	Incoming     int64           `json:"incoming"`
	Value        decimal.Decimal `json:"value"`
}

// Snapshot is one refetch of products and orders plus everything derived from it.
type Snapshot struct {
	TakenAt  time.Time `json:"takenAt"`
	Items    []Item    `json:"items"`
	Alerts   []Alert   `json:"alerts"`
	Reorders []Reorder `json:"reorders"`
	Counts   Counts    `json:"counts"`
}

// AlertsByKind tallies alerts per kind, including kinds with no alerts.
func (s Snapshot) AlertsByKind() map[AlertKind]int {
	out := make(map[AlertKind]int, len(Kinds()))
	for _, k := range Kinds() {
		out[k] = 0
	}
	for _, a := range s.Alerts {
		out[a.Kind]++
	}
	return out
}

// AlertFilter narrows the alert history.
type AlertFilter struct {
	OpenOnly bool
	Limit    int
}
