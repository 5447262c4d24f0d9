package staff

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/grocerops/grocerops/internal/platform/backend"
)

const (
	leavePath  = "/api/leave"
	salaryPath = "/api/salary"
)

// Service wraps the leave and salary endpoints.
type Service struct {
	api      backend.Caller
	validate *validator.Validate
}

// NewService constructs Service.
func NewService(api backend.Caller) *Service {
	v := validator.New()
	v.RegisterStructValidation(validateLeave, LeaveInput{})
	v.RegisterStructValidation(validateSalary, SalaryInput{})
	return &Service{api: api, validate: v}
}

func validateLeave(sl validator.StructLevel) {
	in := sl.Current().Interface().(LeaveInput)
	if !in.From.IsZero() && !in.To.IsZero() && in.To.Before(in.From) {
		sl.ReportError(in.To, "To", "to", "gtefield", "From")
	}
}

func validateSalary(sl validator.StructLevel) {
	in := sl.Current().Interface().(SalaryInput)
	if !in.Amount.IsPositive() {
		sl.ReportError(in.Amount, "Amount", "amount", "gt", "0")
	}
}

// Apply submits a leave request for the signed-in staff member.
func (s *Service) Apply(ctx context.Context, in LeaveInput) (Leave, error) {
	if err := s.validate.Struct(in); err != nil {
		return Leave{}, err
	}
	var l Leave
	if err := backend.Send(ctx, s.api, http.MethodPost, leavePath, in, &l); err != nil {
		return Leave{}, fmt.Errorf("apply leave: %w", err)
	}
	return l, nil
}

// MyLeave lists the caller's leave requests, newest first.
func (s *Service) MyLeave(ctx context.Context) ([]Leave, error) {
	var items []Leave
	if err := backend.Get(ctx, s.api, leavePath+"/my", nil, &items); err != nil {
		return nil, fmt.Errorf("list my leave: %w", err)
	}
	sortLeave(items)
	return items, nil
}

// AllLeave lists every leave request, optionally restricted to one status.
func (s *Service) AllLeave(ctx context.Context, status string) ([]Leave, error) {
	var items []Leave
	if err := backend.Get(ctx, s.api, leavePath, nil, &items); err != nil {
		return nil, fmt.Errorf("list leave: %w", err)
	}
	if status != "" {
		filtered := items[:0]
		for _, l := range items {
			if l.Status == status || (status == LeavePending && l.Pending()) {
				filtered = append(filtered, l)
			}
		}
		items = filtered
	}
	sortLeave(items)
	return items, nil
}

// PendingLeave counts requests awaiting a decision.
func (s *Service) PendingLeave(ctx context.Context) (int, error) {
	items, err := s.AllLeave(ctx, LeavePending)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

// Decide approves or rejects a leave request.
func (s *Service) Decide(ctx context.Context, id, status string) (Leave, error) {
	if status != LeaveApproved && status != LeaveRejected {
		return Leave{}, ErrInvalidDecision
	}
	var l Leave
	err := backend.Send(ctx, s.api, http.MethodPatch, backend.PathID(leavePath, id), map[string]string{"status": status}, &l)
	if err != nil {
		return Leave{}, fmt.Errorf("decide leave: %w", err)
	}
	return l, nil
}

// Salaries lists every salary record, latest month first.
func (s *Service) Salaries(ctx context.Context) ([]Salary, error) {
	var items []Salary
	if err := backend.Get(ctx, s.api, salaryPath, nil, &items); err != nil {
		return nil, fmt.Errorf("list salaries: %w", err)
	}
	sortSalaries(items)
	return items, nil
}

// MySalary lists the caller's salary records, latest month first.
func (s *Service) MySalary(ctx context.Context) ([]Salary, error) {
	var items []Salary
	if err := backend.Get(ctx, s.api, salaryPath+"/my", nil, &items); err != nil {
		return nil, fmt.Errorf("list my salary: %w", err)
	}
	sortSalaries(items)
	return items, nil
}

// RecordSalary stores a salary payment.
func (s *Service) RecordSalary(ctx context.Context, in SalaryInput) (Salary, error) {
	if err := s.validate.Struct(in); err != nil {
		return Salary{}, err
	}
	var out Salary
	if err := backend.Send(ctx, s.api, http.MethodPost, salaryPath, in, &out); err != nil {
		return Salary{}, fmt.Errorf("record salary: %w", err)
	}
	return out, nil
}

// Payroll sums salary amounts per month.
func Payroll(items []Salary) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for _, s := range items {
		out[s.Month] = out[s.Month].Add(s.Amount)
	}
	return out
}

func sortLeave(items []Leave) {
	sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
}

func sortSalaries(items []Salary) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Month != items[j].Month {
			return items[i].Month > items[j].Month
		}
		return items[i].Name() < items[j].Name()
	})
}
