package audit

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	entries []Entry
	offset  int
	limit   int
}

func (m *memoryStore) Window(_ context.Context, _ Filters, offset, limit int) ([]Entry, error) {
	m.offset, m.limit = offset, limit
	if offset >= len(m.entries) {
		return nil, nil
	}
	end := offset + limit
	if end > len(m.entries) {
		end = len(m.entries)
	}
	return m.entries[offset:end], nil
}

func (m *memoryStore) All(_ context.Context, _ Filters) ([]Entry, error) {
	return m.entries, nil
}

func seedEntries(n int) []Entry {
	base := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)
	out := make([]Entry, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, Entry{ID: int64(n - i), At: base.Add(-time.Duration(i) * time.Minute), ActorID: "u1", ActorRole: "admin", Action: "product.update", Entity: "product", EntityID: "p1"})
	}
	return out
}

func TestTimelineDetectsNextPage(t *testing.T) {
	store := &memoryStore{entries: seedEntries(30)}
	svc := NewService(store)

	res, err := svc.Timeline(context.Background(), Filters{})
	require.NoError(t, err)
	require.Len(t, res.Entries, defaultPageSize)
	require.True(t, res.Paging.HasNext)
	require.Equal(t, 2, res.Paging.NextPage)
	require.Zero(t, res.Paging.PrevPage)
	require.Equal(t, defaultPageSize+1, store.limit)

	res, err = svc.Timeline(context.Background(), Filters{Page: 2})
	require.NoError(t, err)
	require.Len(t, res.Entries, 5)
	require.False(t, res.Paging.HasNext)
	require.Equal(t, 1, res.Paging.PrevPage)
	require.Equal(t, defaultPageSize, store.offset)
}

func TestTimelineCapsPageSize(t *testing.T) {
	store := &memoryStore{}
	_, err := NewService(store).Timeline(context.Background(), Filters{PageSize: 1000})
	require.NoError(t, err)
	require.Equal(t, maxPageSize+1, store.limit)
}

func TestTimelineWithoutStore(t *testing.T) {
	_, err := NewService(nil).Timeline(context.Background(), Filters{})
	require.ErrorIs(t, err, ErrUnavailable)
	require.ErrorIs(t, NewService(nil).Export(context.Background(), &bytes.Buffer{}, Filters{}), ErrUnavailable)
}

func TestExportFlattensMeta(t *testing.T) {
	store := &memoryStore{entries: []Entry{{
		At:        time.Date(2026, 5, 10, 9, 30, 0, 0, time.UTC),
		ActorID:   "u1",
		ActorRole: "admin",
		Action:    "order.status",
		Entity:    "order",
		EntityID:  "o9",
		Meta:      map[string]any{"to": "shipped", "from": "pending", "qty": float64(12)},
	}}}
	var buf bytes.Buffer
	require.NoError(t, NewService(store).Export(context.Background(), &buf, Filters{}))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, "occurred_at,actor_id,actor_role,action,entity,entity_id,meta", lines[0])
	require.Equal(t, "2026-05-10T09:30:00Z,u1,admin,order.status,order,o9,from=pending qty=12 to=shipped", lines[1])
}

func TestFormatMetaEmpty(t *testing.T) {
	require.Empty(t, FormatMeta(nil))
	require.Equal(t, "note=", FormatMeta(map[string]any{"note": nil}))
}
