package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/grocerops/grocerops/internal/platform/export"
	"github.com/grocerops/grocerops/internal/platform/httpx"
	"github.com/grocerops/grocerops/internal/rbac"
	"github.com/grocerops/grocerops/internal/shared"
	"github.com/grocerops/grocerops/internal/view"
)

// Handler wires HTTP endpoints for the inventory manager.
type Handler struct {
	logger  *slog.Logger
	service *Service
	pages   *view.Renderer
	rbac    rbac.Middleware
	poll    time.Duration
	rescan  ScanRequester
	audit   shared.AuditRecorder
}

// ScanRequester queues an out-of-band inventory scan.
type ScanRequester func(ctx context.Context, reason string) error

// NewHandler constructs inventory handler. poll is the refresh interval of
// the alerts feed on the page.
func NewHandler(logger *slog.Logger, service *Service, pages *view.Renderer, rbac rbac.Middleware, poll time.Duration) *Handler {
	return &Handler{logger: logger, service: service, pages: pages, rbac: rbac, poll: poll}
}

// WithRescan routes manual rescans through a background queue instead of
// scanning inline.
func (h *Handler) WithRescan(fn ScanRequester) *Handler {
	h.rescan = fn
	return h
}

// WithAudit records acknowledgements and rescans in the activity log.
func (h *Handler) WithAudit(rec shared.AuditRecorder) *Handler {
	h.audit = rec
	return h
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermInventoryView))
		r.Get("/", h.showManager)
		r.Get("/alerts.json", h.alertsFeed)
		r.Get("/export.csv", h.exportCSV)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermAlertsAck))
		r.Post("/alerts/{id}/ack", h.acknowledge)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermInventoryEdit))
		r.Post("/rescan", h.requestRescan)
	})
}

type managerPageData struct {
	Snapshot    Snapshot
	Items       []Item
	Status      string
	Search      string
	History     []Alert
	PollSeconds int
	Errors      map[string]string
}

func (h *Handler) showManager(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	data := managerPageData{
		Status:      q.Get("status"),
		Search:      q.Get("q"),
		PollSeconds: int(h.poll / time.Second),
		Errors:      map[string]string{},
	}
	snap, err := h.service.Current(r.Context())
	if err != nil {
		if h.pages.HandleExpired(w, r, err) {
			return
		}
		h.logger.Error("inventory snapshot failed", slog.Any("error", err))
		data.Errors["general"] = shared.UserSafeMessage(err)
	}
	data.Snapshot = snap
	data.Items = filterItems(snap.Items, StockStatus(data.Status), data.Search)
	history, err := h.service.Alerts(r.Context(), AlertFilter{OpenOnly: true, Limit: 50})
	if err != nil {
		h.logger.Warn("inventory alert history", slog.Any("error", err))
	}
	data.History = history
	h.pages.Page(w, r, http.StatusOK, "pages/inventory/manager.html", "Inventory", data)
}

type alertsFeed struct {
	TakenAt time.Time `json:"takenAt"`
	Counts  Counts    `json:"counts"`
	Alerts  []Alert   `json:"alerts"`
	Open    []Alert   `json:"open"`
}

func (h *Handler) alertsFeed(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Current(r.Context())
	if err != nil {
		h.logger.Warn("inventory alerts feed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	feed := alertsFeed{TakenAt: snap.TakenAt, Counts: snap.Counts, Alerts: snap.Alerts, Open: []Alert{}}
	if feed.Alerts == nil {
		feed.Alerts = []Alert{}
	}
	if open, err := h.service.Alerts(r.Context(), AlertFilter{OpenOnly: true, Limit: 50}); err == nil {
		feed.Open = open
	}
	httpx.JSON(w, http.StatusOK, feed)
}

func (h *Handler) acknowledge(w http.ResponseWriter, r *http.Request) {
	wantsJSON := strings.Contains(r.Header.Get("Accept"), "application/json")
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		if wantsJSON {
			httpx.Problem(w, http.StatusBadRequest, "Invalid alert", "alert id must be numeric")
			return
		}
		h.pages.Redirect(w, r, "/inventory", "error", "Unknown alert")
		return
	}
	principal, _ := shared.PrincipalFromContext(r.Context())
	actor := principal.Email
	if actor == "" {
		actor = principal.ID
	}
	err = h.service.Acknowledge(r.Context(), id, actor)
	switch {
	case err == nil:
	case errors.Is(err, ErrAlertNotFound):
		if wantsJSON {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "alert is unknown or already acknowledged")
			return
		}
		h.pages.Redirect(w, r, "/inventory", "warning", "That alert was already acknowledged")
		return
	default:
		h.logger.Error("acknowledge alert", slog.Int64("id", id), slog.Any("error", err))
		if wantsJSON {
			httpx.RespondError(w, err)
			return
		}
		h.pages.Redirect(w, r, "/inventory", "error", shared.UserSafeMessage(err))
		return
	}
	h.record(r, "alert.acknowledge", "inventory_alert", strconv.FormatInt(id, 10), nil)
	if wantsJSON {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.pages.Redirect(w, r, "/inventory", "success", "Alert acknowledged")
}

func (h *Handler) requestRescan(w http.ResponseWriter, r *http.Request) {
	principal, _ := shared.PrincipalFromContext(r.Context())
	if h.rescan != nil {
		if err := h.rescan(r.Context(), "manual:"+principal.ID); err != nil {
			h.logger.Error("queue inventory rescan", slog.Any("error", err))
			h.pages.Redirect(w, r, "/inventory", "error", "Could not queue a rescan, try again shortly")
			return
		}
		h.record(r, "inventory.rescan", "inventory", "", map[string]any{"queued": true})
		h.pages.Redirect(w, r, "/inventory", "info", "Rescan queued, alerts will refresh shortly")
		return
	}
	res, err := h.service.Scan(r.Context())
	if err != nil {
		h.pages.Fail(w, r, err, "/inventory")
		return
	}
	h.record(r, "inventory.rescan", "inventory", "", map[string]any{"raised": len(res.Raised)})
	h.pages.Redirect(w, r, "/inventory", "success", fmt.Sprintf("Inventory rescanned, %d new alert(s)", len(res.Raised)))
}

func (h *Handler) record(r *http.Request, action, entity, id string, meta map[string]any) {
	if err := shared.RecordFromContext(r.Context(), h.audit, action, entity, id, meta); err != nil {
		h.logger.Warn("audit inventory", slog.Any("error", err))
	}
}

func (h *Handler) exportCSV(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Current(r.Context())
	if err != nil {
		h.pages.Fail(w, r, err, "/inventory")
		return
	}
	q := r.URL.Query()
	items := filterItems(snap.Items, StockStatus(q.Get("status")), q.Get("q"))
	export.Attachment(w, "inventory", snap.TakenAt)
	if err := WriteCSV(w, items); err != nil {
		h.logger.Error("export inventory", slog.Any("error", err))
	}
}

func filterItems(items []Item, status StockStatus, search string) []Item {
	search = strings.ToLower(strings.TrimSpace(search))
	if status == "" && search == "" {
		return items
	}
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if status != "" && it.Status != status {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(it.Product.Name), search) && !strings.Contains(strings.ToLower(it.Product.SKU), search) {
			continue
		}
		out = append(out, it)
	}
	return out
}
