package inventory

import (
	"io"
	"strconv"

	"github.com/grocerops/grocerops/internal/platform/export"
)

// WriteCSV writes the reconciled stock position.
func WriteCSV(w io.Writer, items []Item) error {
	records := make([][]string, 0, len(items))
	for _, it := range items {
		expiry := ""
		if it.Product.ExpiryDate != nil {
			expiry = it.Product.ExpiryDate.Format("2006-01-02")
		}
		records = append(records, []string{
			it.Product.SKU,
			it.Product.Name,
			it.Product.Category,
			strconv.FormatInt(it.Product.Quantity, 10),
			strconv.FormatInt(it.Incoming, 10),
			strconv.FormatInt(it.Projected(), 10),
			strconv.FormatInt(it.Threshold, 10),
			string(it.Status),
			expiry,
			it.Product.Value().StringFixed(2),
		})
	}
	return export.WriteCSV(w, []string{"sku", "name", "category", "on_hand", "incoming", "projected", "threshold", "status", "expiry_date", "value"}, records)
}
