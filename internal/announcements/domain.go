package announcements

import (
	"time"

	"github.com/grocerops/grocerops/internal/platform/backend"
	"github.com/grocerops/grocerops/internal/rbac"
)

// Audience values accepted by the backend.
const (
	AudienceAll      = "all"
	AudienceStaff    = "staff"
	AudienceSupplier = "supplier"
	AudienceRetailer = "retailer"
	AudienceUser     = "user"
)

// Audiences lists every audience in display order.
func Audiences() []string {
	return []string{AudienceAll, AudienceStaff, AudienceSupplier, AudienceRetailer, AudienceUser}
}

// Announcement is a message broadcast to one audience.
type Announcement struct {
	ID        string      `json:"_id"`
	Title     string      `json:"title"`
	Message   string      `json:"message"`
	Audience  string      `json:"audience"`
	Priority  string      `json:"priority"`
	CreatedBy backend.Ref `json:"createdBy"`
	CreatedAt time.Time   `json:"createdAt"`
}

// VisibleTo reports whether role may read the announcement. Admins see everything.
func (a Announcement) VisibleTo(role rbac.Role) bool {
	if role == rbac.RoleAdmin {
		return true
	}
	return a.Audience == "" || a.Audience == AudienceAll || a.Audience == string(role)
}

// Input is the create form.
type Input struct {
	Title    string `json:"title" validate:"required,max=200"`
	Message  string `json:"message" validate:"required,max=4000"`
	Audience string `json:"audience" validate:"required,oneof=all staff supplier retailer user"`
	Priority string `json:"priority" validate:"required,oneof=low normal high"`
}
