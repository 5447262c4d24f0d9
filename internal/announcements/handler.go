package announcements

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/grocerops/grocerops/internal/rbac"
	"github.com/grocerops/grocerops/internal/shared"
	"github.com/grocerops/grocerops/internal/view"
)

// Handler serves the announcement board.
type Handler struct {
	logger  *slog.Logger
	service *Service
	pages   *view.Renderer
	rbac    rbac.Middleware
	audit   shared.AuditRecorder
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service, pages *view.Renderer, rbac rbac.Middleware, audit shared.AuditRecorder) *Handler {
	return &Handler{logger: logger, service: service, pages: pages, rbac: rbac, audit: audit}
}

// MountRoutes registers announcement routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.RequireAny(rbac.PermAnnouncementsView, rbac.PermAnnouncementsEdit)).Get("/", h.listAnnouncements)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermAnnouncementsEdit))
		r.Post("/", h.createAnnouncement)
		r.Post("/{id}/delete", h.deleteAnnouncement)
	})
}

func (h *Handler) listAnnouncements(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, Input{Audience: AudienceAll, Priority: "normal"}, map[string]string{}, http.StatusOK)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, form Input, errs map[string]string, status int) {
	principal, _ := shared.PrincipalFromContext(r.Context())
	items, err := h.service.Visible(r.Context(), rbac.Role(principal.Role), 0)
	if err != nil {
		if h.pages.HandleExpired(w, r, err) {
			return
		}
		h.logger.Error("list announcements failed", slog.Any("error", err))
		errs["general"] = shared.UserSafeMessage(err)
	}
	h.pages.Page(w, r, status, "pages/announcements/list.html", "Announcements", map[string]any{
		"Announcements": items,
		"Form":          form,
		"Errors":        errs,
		"Audiences":     Audiences(),
		"Priorities":    []string{"high", "normal", "low"},
	})
}

func (h *Handler) createAnnouncement(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	in := Input{
		Title:    strings.TrimSpace(r.PostFormValue("title")),
		Message:  strings.TrimSpace(r.PostFormValue("message")),
		Audience: r.PostFormValue("audience"),
		Priority: r.PostFormValue("priority"),
	}
	a, err := h.service.Create(r.Context(), in)
	if err != nil {
		if h.pages.HandleExpired(w, r, err) {
			return
		}
		h.render(w, r, in, shared.FieldErrors(err), http.StatusBadRequest)
		return
	}
	if err := shared.RecordFromContext(r.Context(), h.audit, "announcement.create", "announcement", a.ID, map[string]any{"audience": a.Audience}); err != nil {
		h.logger.Warn("audit announcement", slog.Any("error", err))
	}
	h.pages.Redirect(w, r, "/announcements", "success", "Announcement published")
}

func (h *Handler) deleteAnnouncement(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.pages.Fail(w, r, err, "/announcements")
		return
	}
	if err := shared.RecordFromContext(r.Context(), h.audit, "announcement.delete", "announcement", id, nil); err != nil {
		h.logger.Warn("audit announcement", slog.Any("error", err))
	}
	h.pages.Redirect(w, r, "/announcements", "success", "Announcement deleted")
}
