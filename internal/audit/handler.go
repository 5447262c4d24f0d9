package audit

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/grocerops/grocerops/internal/platform/export"
	"github.com/grocerops/grocerops/internal/rbac"
	"github.com/grocerops/grocerops/internal/shared"
	"github.com/grocerops/grocerops/internal/view"
)

const (
	defaultDateRange = 7 * 24 * time.Hour
	maxDateRange     = 90 * 24 * time.Hour
	exportRateLimit  = 10
)

// Handler serves /audit.
type Handler struct {
	logger  *slog.Logger
	service *Service
	pages   *view.Renderer
	rbac    rbac.Middleware
	now     func() time.Time
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service, pages *view.Renderer, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, pages: pages, rbac: rbac, now: time.Now}
}

// MountRoutes registers the activity log routes. Exports are rate limited per
// signed-in user because they scan the whole window.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.rbac.RequireAll(rbac.PermAuditView))
	r.Get("/", h.showTimeline)
	r.With(httprate.Limit(exportRateLimit, time.Minute, httprate.WithKeyFuncs(rateLimitKey))).
		Get("/export.csv", h.exportCSV)
}

func rateLimitKey(r *http.Request) (string, error) {
	if p, ok := shared.PrincipalFromContext(r.Context()); ok && p.ID != "" {
		return "user:" + p.ID, nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}

type timelinePageData struct {
	Filters filterForm
	Entries []Entry
	Paging  Paging
	Errors  map[string]string
}

type filterForm struct {
	From, To, Actor, Entity, Action string
}

func (h *Handler) showTimeline(w http.ResponseWriter, r *http.Request) {
	form, filters, errs := h.parseFilters(r)
	data := timelinePageData{Filters: form, Errors: errs}
	if len(errs) == 0 {
		res, err := h.service.Timeline(r.Context(), filters)
		if err != nil {
			h.logger.Error("load activity log", slog.Any("error", err))
			data.Errors["general"] = "The activity log could not be loaded"
		}
		data.Entries = res.Entries
		data.Paging = res.Paging
	}
	status := http.StatusOK
	if len(errs) > 0 {
		status = http.StatusBadRequest
	}
	h.pages.Page(w, r, status, "pages/audit/timeline.html", "Activity log", data)
}

func (h *Handler) exportCSV(w http.ResponseWriter, r *http.Request) {
	_, filters, errs := h.parseFilters(r)
	if len(errs) > 0 {
		h.pages.Redirect(w, r, "/audit", "error", "Fix the filters before exporting")
		return
	}
	export.Attachment(w, "activity", h.now())
	if err := h.service.Export(r.Context(), w, filters); err != nil {
		h.logger.Error("export activity log", slog.Any("error", err))
	}
}

// parseFilters defaults to the last seven days and caps the window at ninety.
func (h *Handler) parseFilters(r *http.Request) (filterForm, Filters, map[string]string) {
	q := r.URL.Query()
	errs := map[string]string{}
	form := filterForm{
		From:   strings.TrimSpace(q.Get("from")),
		To:     strings.TrimSpace(q.Get("to")),
		Actor:  strings.TrimSpace(q.Get("actor")),
		Entity: strings.TrimSpace(q.Get("entity")),
		Action: strings.TrimSpace(q.Get("action")),
	}
	if form.To == "" {
		form.To = h.now().UTC().Format("2006-01-02")
	}
	to, err := time.Parse("2006-01-02", form.To)
	if err != nil {
		errs["to"] = "Use the YYYY-MM-DD format"
	}
	if form.From == "" && err == nil {
		form.From = to.Add(-defaultDateRange).Format("2006-01-02")
	}
	from, err := time.Parse("2006-01-02", form.From)
	if err != nil {
		errs["from"] = "Use the YYYY-MM-DD format"
	}
	if len(errs) == 0 {
		switch {
		case from.After(to):
			errs["from"] = "Start date must be before the end date"
		case to.Sub(from) > maxDateRange:
			errs["from"] = "The range is limited to 90 days"
		}
	}
	page, _ := strconv.Atoi(q.Get("page"))
	return form, Filters{From: from, To: to, Actor: form.Actor, Entity: form.Entity, Action: form.Action, Page: page}, errs
}
