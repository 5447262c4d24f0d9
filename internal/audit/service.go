package audit

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/grocerops/grocerops/internal/platform/export"
)

const (
	defaultPageSize = 25
	maxPageSize     = 100
)

// Store is the read port over audit_logs.
type Store interface {
	Window(ctx context.Context, f Filters, offset, limit int) ([]Entry, error)
	All(ctx context.Context, f Filters) ([]Entry, error)
}

// Service pages and exports the activity log.
type Service struct {
	store Store
}

// NewService constructs Service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Timeline loads one page. One extra row is fetched to detect a next page.
func (s *Service) Timeline(ctx context.Context, f Filters) (Result, error) {
	if s.store == nil {
		return Result{}, ErrUnavailable
	}
	pageSize := f.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	page := f.Page
	if page <= 0 {
		page = 1
	}
	entries, err := s.store.Window(ctx, f, (page-1)*pageSize, pageSize+1)
	if err != nil {
		return Result{}, fmt.Errorf("audit timeline: %w", err)
	}
	hasNext := len(entries) > pageSize
	if hasNext {
		entries = entries[:pageSize]
	}
	paging := Paging{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return Result{Entries: entries, Paging: paging}, nil
}

// Export writes every matching entry as CSV.
func (s *Service) Export(ctx context.Context, w io.Writer, f Filters) error {
	if s.store == nil {
		return ErrUnavailable
	}
	entries, err := s.store.All(ctx, f)
	if err != nil {
		return fmt.Errorf("audit export: %w", err)
	}
	return WriteCSV(w, entries)
}

// WriteCSV renders entries with their metadata flattened into key=value pairs.
func WriteCSV(w io.Writer, entries []Entry) error {
	records := make([][]string, 0, len(entries))
	for _, e := range entries {
		records = append(records, []string{
			export.FormatTime(e.At), e.ActorID, e.ActorRole, e.Action, e.Entity, e.EntityID, FormatMeta(e.Meta),
		})
	}
	return export.WriteCSV(w, []string{"occurred_at", "actor_id", "actor_role", "action", "entity", "entity_id", "meta"}, records)
}

// FormatMeta renders meta deterministically for display.
func FormatMeta(meta map[string]any) string {
	if len(meta) == 0 {
		return ""
	}
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+formatValue(meta[k]))
	}
	return strings.Join(parts, " ")
}

func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(val)
	}
}
