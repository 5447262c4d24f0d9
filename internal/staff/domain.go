package staff

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/grocerops/grocerops/internal/platform/backend"
)

// ErrInvalidDecision is returned for leave decisions other than approve or reject.
var ErrInvalidDecision = errors.New("staff: decision must be approved or rejected")

// Leave statuses.
const (
	LeavePending  = "pending"
	LeaveApproved = "approved"
	LeaveRejected = "rejected"
)

// LeaveTypes lists the leave kinds offered on the form.
func LeaveTypes() []string {
	return []string{"annual", "sick", "casual", "unpaid"}
}

// Leave is a staff leave request.
type Leave struct {
	ID        string      `json:"_id"`
	Staff     backend.Ref `json:"staff"`
	StaffName string      `json:"staffName"`
	Type      string      `json:"type"`
	From      time.Time   `json:"from"`
	To        time.Time   `json:"to"`
	Reason    string      `json:"reason"`
	Status    string      `json:"status"`
	CreatedAt time.Time   `json:"createdAt"`
}

// Name is the requester's display name.
func (l Leave) Name() string {
	if l.StaffName != "" {
		return l.StaffName
	}
	return l.Staff.Label()
}

// Days counts calendar days covered, both ends included.
func (l Leave) Days() int {
	if l.From.IsZero() || l.To.Before(l.From) {
		return 0
	}
	from := time.Date(l.From.Year(), l.From.Month(), l.From.Day(), 0, 0, 0, 0, time.UTC)
	to := time.Date(l.To.Year(), l.To.Month(), l.To.Day(), 0, 0, 0, 0, time.UTC)
	return int(to.Sub(from).Hours()/24) + 1
}

// Pending reports whether the request awaits a decision.
func (l Leave) Pending() bool {
	return l.Status == "" || l.Status == LeavePending
}

// LeaveInput is the leave application form.
type LeaveInput struct {
	Type   string    `json:"type" validate:"required,oneof=annual sick casual unpaid"`
	From   time.Time `json:"from" validate:"required"`
	To     time.Time `json:"to" validate:"required"`
	Reason string    `json:"reason" validate:"required,max=500"`
}

// Salary is one monthly salary record.
type Salary struct {
	ID        string          `json:"_id"`
	Staff     backend.Ref     `json:"staff"`
	StaffName string          `json:"staffName"`
	Month     string          `json:"month"`
	Amount    decimal.Decimal `json:"amount"`
	Status    string          `json:"status"`
	PaidAt    *time.Time      `json:"paidAt,omitempty"`
}

// Name is the payee's display name.
func (s Salary) Name() string {
	if s.StaffName != "" {
		return s.StaffName
	}
	return s.Staff.Label()
}

// SalaryInput records a salary payment.
type SalaryInput struct {
	Staff  string          `json:"staff" validate:"required"`
	Month  string          `json:"month" validate:"required,datetime=2006-01"`
	Amount decimal.Decimal `json:"amount"`
	Status string          `json:"status" validate:"required,oneof=paid pending"`
}
