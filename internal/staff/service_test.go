package staff

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/grocerops/grocerops/internal/platform/backend"
	"github.com/grocerops/grocerops/internal/platform/backend/backendtest"
	"github.com/grocerops/grocerops/internal/shared"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestApplyValidatesDateOrderAndReason(t *testing.T) {
	fake := backendtest.New().Reply(http.MethodPost, leavePath, Leave{ID: "l1", Status: LeavePending})
	svc := NewService(fake)
	ctx := context.Background()

	_, err := svc.Apply(ctx, LeaveInput{Type: "annual", From: day("2026-10-20"), To: day("2026-10-18"), Reason: "trip"})
	require.Error(t, err)
	require.Equal(t, "Must not be before from", shared.FieldErrors(err)["to"])

	_, err = svc.Apply(ctx, LeaveInput{Type: "annual", From: day("2026-10-20"), To: day("2026-10-20")})
	require.Contains(t, shared.FieldErrors(err), "reason")
	require.Zero(t, fake.Called(http.MethodPost, leavePath))

	l, err := svc.Apply(ctx, LeaveInput{Type: "sick", From: day("2026-10-20"), To: day("2026-10-20"), Reason: "flu"})
	require.NoError(t, err)
	require.Equal(t, "l1", l.ID)
}

func TestLeaveDays(t *testing.T) {
	require.Equal(t, 3, Leave{From: day("2026-10-20"), To: day("2026-10-22")}.Days())
	require.Equal(t, 1, Leave{From: day("2026-10-20"), To: day("2026-10-20")}.Days())
	require.Equal(t, 0, Leave{From: day("2026-10-20"), To: day("2026-10-19")}.Days())
}

func TestAllLeaveFiltersAndSorts(t *testing.T) {
	fake := backendtest.New().Reply(http.MethodGet, leavePath, []Leave{
		{ID: "a", Status: LeaveApproved, CreatedAt: day("2026-10-01")},
		{ID: "b", Status: "", CreatedAt: day("2026-10-02")},
		{ID: "c", Status: LeavePending, CreatedAt: day("2026-10-03")},
	})
	svc := NewService(fake)

	pending, err := svc.AllLeave(context.Background(), LeavePending)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	require.Equal(t, "c", pending[0].ID)

	n, err := svc.PendingLeave(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestDecide(t *testing.T) {
	fake := backendtest.New().On(http.MethodPatch, leavePath+"/l1", func(req backend.Request) (any, error) {
		var body map[string]string
		require.NoError(t, backendtest.Body(req, &body))
		return Leave{ID: "l1", Status: body["status"]}, nil
	})
	svc := NewService(fake)

	_, err := svc.Decide(context.Background(), "l1", "maybe")
	require.ErrorIs(t, err, ErrInvalidDecision)

	l, err := svc.Decide(context.Background(), "l1", LeaveApproved)
	require.NoError(t, err)
	require.Equal(t, LeaveApproved, l.Status)
}

func TestRecordSalaryValidation(t *testing.T) {
	fake := backendtest.New().Reply(http.MethodPost, salaryPath, Salary{ID: "s1"})
	svc := NewService(fake)

	_, err := svc.RecordSalary(context.Background(), SalaryInput{Staff: "u1", Month: "2026-10", Status: "paid"})
	require.Contains(t, shared.FieldErrors(err), "amount")

	_, err = svc.RecordSalary(context.Background(), SalaryInput{Staff: "u1", Month: "October", Amount: decimal.NewFromInt(10), Status: "paid"})
	require.Contains(t, shared.FieldErrors(err), "month")

	s, err := svc.RecordSalary(context.Background(), SalaryInput{Staff: "u1", Month: "2026-10", Amount: decimal.NewFromInt(1500), Status: "paid"})
	require.NoError(t, err)
	require.Equal(t, "s1", s.ID)
}

func TestSalariesSortedAndPayroll(t *testing.T) {
	fake := backendtest.New().Reply(http.MethodGet, salaryPath, []Salary{
		{ID: "1", StaffName: "Bo", Month: "2026-09", Amount: decimal.NewFromInt(100)},
		{ID: "2", StaffName: "Al", Month: "2026-10", Amount: decimal.NewFromInt(200)},
		{ID: "3", StaffName: "Bo", Month: "2026-10", Amount: decimal.NewFromInt(50)},
	})
	items, err := NewService(fake).Salaries(context.Background())
	require.NoError(t, err)
	require.Equal(t, "2", items[0].ID)
	require.Equal(t, "3", items[1].ID)
	payroll := Payroll(items)
	require.True(t, payroll["2026-10"].Equal(decimal.NewFromInt(250)))
}
