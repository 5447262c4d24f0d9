// Package export writes tabular downloads.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"time"
)

// WriteCSV serialises a header row followed by records.
func WriteCSV(w io.Writer, header []string, records [][]string) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, record := range records {
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// Attachment sets download headers for a CSV file named prefix-YYYYMMDD.csv.
func Attachment(w http.ResponseWriter, prefix string, now time.Time) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("%s-%s.csv", prefix, now.Format("20060102"))))
	w.Header().Set("Cache-Control", "no-store")
}

// FormatTime renders t for spreadsheets; zero times become empty cells.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
