package staff

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/grocerops/grocerops/internal/platform/backend"
	"github.com/grocerops/grocerops/internal/rbac"
	"github.com/grocerops/grocerops/internal/shared"
	"github.com/grocerops/grocerops/internal/users"
	"github.com/grocerops/grocerops/internal/view"
)

const dateLayout = "2006-01-02"

// Directory lists staff accounts for the salary form.
type Directory interface {
	List(ctx context.Context, role rbac.Role) ([]users.User, error)
}

// Handler serves leave and salary pages.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	pages     *view.Renderer
	rbac      rbac.Middleware
	directory Directory
	audit     shared.AuditRecorder
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service, pages *view.Renderer, rbac rbac.Middleware, directory Directory, audit shared.AuditRecorder) *Handler {
	return &Handler{logger: logger, service: service, pages: pages, rbac: rbac, directory: directory, audit: audit}
}

// MountRoutes registers leave and salary routes under /staff.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermLeaveApply))
		r.Get("/leave", h.myLeave)
		r.Post("/leave", h.applyLeave)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermLeaveApprove))
		r.Get("/leave/requests", h.leaveRequests)
		r.Post("/leave/{id}/decision", h.decideLeave)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermSalaryView))
		r.Get("/salary/me", h.mySalary)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermSalaryManage))
		r.Get("/salary", h.salaries)
		r.Post("/salary", h.recordSalary)
	})
}

type leaveForm struct {
	Type   string
	From   string
	To     string
	Reason string
}

func (h *Handler) myLeave(w http.ResponseWriter, r *http.Request) {
	today := time.Now().Format(dateLayout)
	h.renderMyLeave(w, r, leaveForm{Type: "annual", From: today, To: today}, map[string]string{}, http.StatusOK)
}

func (h *Handler) renderMyLeave(w http.ResponseWriter, r *http.Request, form leaveForm, errs map[string]string, status int) {
	items, err := h.service.MyLeave(r.Context())
	if err != nil {
		if h.pages.HandleExpired(w, r, err) {
			return
		}
		h.logger.Error("list my leave failed", slog.Any("error", err))
		errs["general"] = shared.UserSafeMessage(err)
	}
	h.pages.Page(w, r, status, "pages/staff/leave.html", "My leave", map[string]any{
		"Leave":  items,
		"Form":   form,
		"Types":  LeaveTypes(),
		"Errors": errs,
	})
}

func (h *Handler) applyLeave(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := leaveForm{
		Type:   r.PostFormValue("type"),
		From:   r.PostFormValue("from"),
		To:     r.PostFormValue("to"),
		Reason: strings.TrimSpace(r.PostFormValue("reason")),
	}
	errs := map[string]string{}
	in := LeaveInput{Type: form.Type, Reason: form.Reason}
	if from, err := time.Parse(dateLayout, form.From); err == nil {
		in.From = from
	} else if form.From != "" {
		errs["from"] = "Enter a valid date"
	}
	if to, err := time.Parse(dateLayout, form.To); err == nil {
		in.To = to
	} else if form.To != "" {
		errs["to"] = "Enter a valid date"
	}
	if len(errs) > 0 {
		h.renderMyLeave(w, r, form, errs, http.StatusBadRequest)
		return
	}
	leave, err := h.service.Apply(r.Context(), in)
	if err != nil {
		if h.pages.HandleExpired(w, r, err) {
			return
		}
		h.renderMyLeave(w, r, form, shared.FieldErrors(err), http.StatusBadRequest)
		return
	}
	h.logger.Info("leave requested", slog.String("leave_id", leave.ID), slog.Int("days", leave.Days()))
	h.pages.Redirect(w, r, "/staff/leave", "success", "Leave request submitted")
}

func (h *Handler) leaveRequests(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if _, ok := r.URL.Query()["status"]; !ok {
		status = LeavePending
	}
	errs := map[string]string{}
	items, err := h.service.AllLeave(r.Context(), status)
	if err != nil {
		if h.pages.HandleExpired(w, r, err) {
			return
		}
		h.logger.Error("list leave failed", slog.Any("error", err))
		errs["general"] = shared.UserSafeMessage(err)
	}
	h.pages.Page(w, r, http.StatusOK, "pages/staff/requests.html", "Leave requests", map[string]any{
		"Leave":    items,
		"Status":   status,
		"Statuses": []string{LeavePending, LeaveApproved, LeaveRejected},
		"Errors":   errs,
	})
}

func (h *Handler) decideLeave(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	id := chi.URLParam(r, "id")
	status := r.PostFormValue("status")
	if _, err := h.service.Decide(r.Context(), id, status); err != nil {
		switch {
		case errors.Is(err, ErrInvalidDecision):
			h.pages.Redirect(w, r, "/staff/leave/requests", "error", "Choose approve or reject")
		case errors.Is(err, backend.ErrConflict):
			h.pages.Redirect(w, r, "/staff/leave/requests", "warning", "This request was already decided")
		default:
			h.pages.Fail(w, r, err, "/staff/leave/requests")
		}
		return
	}
	if err := shared.RecordFromContext(r.Context(), h.audit, "leave."+status, "leave", id, nil); err != nil {
		h.logger.Warn("audit leave", slog.Any("error", err))
	}
	h.pages.Redirect(w, r, "/staff/leave/requests", "success", "Leave "+status)
}

func (h *Handler) mySalary(w http.ResponseWriter, r *http.Request) {
	errs := map[string]string{}
	items, err := h.service.MySalary(r.Context())
	if err != nil {
		if h.pages.HandleExpired(w, r, err) {
			return
		}
		h.logger.Error("list my salary failed", slog.Any("error", err))
		errs["general"] = shared.UserSafeMessage(err)
	}
	h.pages.Page(w, r, http.StatusOK, "pages/staff/salary_mine.html", "My salary", map[string]any{"Salaries": items, "Errors": errs})
}

type salaryForm struct {
	Staff  string
	Month  string
	Amount string
	Status string
}

func (h *Handler) salaries(w http.ResponseWriter, r *http.Request) {
	h.renderSalaries(w, r, salaryForm{Month: time.Now().Format("2006-01"), Status: "paid"}, map[string]string{}, http.StatusOK)
}

func (h *Handler) renderSalaries(w http.ResponseWriter, r *http.Request, form salaryForm, errs map[string]string, status int) {
	items, err := h.service.Salaries(r.Context())
	if err != nil {
		if h.pages.HandleExpired(w, r, err) {
			return
		}
		h.logger.Error("list salaries failed", slog.Any("error", err))
		errs["general"] = shared.UserSafeMessage(err)
	}
	var options []view.Option
	if h.directory != nil {
		staff, err := h.directory.List(r.Context(), rbac.RoleStaff)
		if err != nil {
			h.logger.Warn("list staff for salary form", slog.Any("error", err))
		}
		for _, u := range staff {
			options = append(options, view.Option{Value: u.ID, Label: u.DisplayName()})
		}
	}
	h.pages.Page(w, r, status, "pages/staff/salaries.html", "Salaries", map[string]any{
		"Salaries": items,
		"Payroll":  Payroll(items),
		"Form":     form,
		"Staff":    options,
		"Errors":   errs,
	})
}

func (h *Handler) recordSalary(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := salaryForm{
		Staff:  r.PostFormValue("staff"),
		Month:  r.PostFormValue("month"),
		Amount: strings.TrimSpace(r.PostFormValue("amount")),
		Status: r.PostFormValue("status"),
	}
	in := SalaryInput{Staff: form.Staff, Month: form.Month, Status: form.Status}
	if form.Amount != "" {
		amount, err := decimal.NewFromString(form.Amount)
		if err != nil {
			h.renderSalaries(w, r, form, map[string]string{"amount": "Enter a number"}, http.StatusBadRequest)
			return
		}
		in.Amount = amount
	}
	salary, err := h.service.RecordSalary(r.Context(), in)
	if err != nil {
		if h.pages.HandleExpired(w, r, err) {
			return
		}
		h.renderSalaries(w, r, form, shared.FieldErrors(err), http.StatusBadRequest)
		return
	}
	if err := shared.RecordFromContext(r.Context(), h.audit, "salary.record", "salary", salary.ID, map[string]any{"month": in.Month, "amount": in.Amount.String()}); err != nil {
		h.logger.Warn("audit salary", slog.Any("error", err))
	}
	h.pages.Redirect(w, r, "/staff/salary", "success", "Salary recorded")
}
