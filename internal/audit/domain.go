// Package audit serves the activity log recorded in audit_logs.
package audit

import (
	"errors"
	"time"
)

// ErrUnavailable is returned when no database is configured.
var ErrUnavailable = errors.New("audit: activity log unavailable")

// Filters narrows the activity log.
type Filters struct {
	From     time.Time
	To       time.Time
	Actor    string
	Entity   string
	Action   string
	Page     int
	PageSize int
}

// Entry is one recorded operator action.
type Entry struct {
	ID        int64
	At        time.Time
	ActorID   string
	ActorRole string
	Action    string
	Entity    string
	EntityID  string
	Meta      map[string]any
}

// Paging carries window paging state for the page.
type Paging struct {
	Page     int
	PageSize int
	HasNext  bool
	PrevPage int
	NextPage int
}

// Result is one page of entries.
type Result struct {
	Entries []Entry
	Paging  Paging
}

// Details renders Meta as sorted key=value pairs.
func (e Entry) Details() string {
	return FormatMeta(e.Meta)
}
