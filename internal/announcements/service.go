package announcements

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"

	"github.com/go-playground/validator/v10"

	"github.com/grocerops/grocerops/internal/platform/backend"
	"github.com/grocerops/grocerops/internal/rbac"
)

const basePath = "/api/announcements"

var priorityRank = map[string]int{"high": 0, "normal": 1, "low": 2}

// Service reads and writes announcements through the cache.
type Service struct {
	api      backend.Caller
	cache    *Cache
	logger   *slog.Logger
	validate *validator.Validate
}

// NewService constructs Service. cache may be nil.
func NewService(api backend.Caller, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{api: api, cache: cache, logger: logger, validate: validator.New()}
}

// List returns every announcement, high priority first then newest first.
func (s *Service) List(ctx context.Context) ([]Announcement, error) {
	items, ok, err := s.cache.Get(ctx)
	if err != nil {
		s.logger.Warn("read announcement cache", slog.Any("error", err))
	}
	if ok {
		return items, nil
	}
	if err := backend.Get(ctx, s.api, basePath, nil, &items); err != nil {
		return nil, fmt.Errorf("list announcements: %w", err)
	}
	sortAnnouncements(items)
	if err := s.cache.Set(ctx, items); err != nil {
		s.logger.Warn("write announcement cache", slog.Any("error", err))
	}
	return items, nil
}

// Visible returns the announcements role may read, capped at limit when limit > 0.
func (s *Service) Visible(ctx context.Context, role rbac.Role, limit int) ([]Announcement, error) {
	items, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Announcement, 0, len(items))
	for _, a := range items {
		if a.VisibleTo(role) {
			out = append(out, a)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Create publishes an announcement.
func (s *Service) Create(ctx context.Context, in Input) (Announcement, error) {
	if in.Priority == "" {
		in.Priority = "normal"
	}
	if err := s.validate.Struct(in); err != nil {
		return Announcement{}, err
	}
	var a Announcement
	if err := backend.Send(ctx, s.api, http.MethodPost, basePath, in, &a); err != nil {
		return Announcement{}, fmt.Errorf("create announcement: %w", err)
	}
	s.invalidate(ctx)
	return a, nil
}

// Delete removes an announcement.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := backend.Send(ctx, s.api, http.MethodDelete, backend.PathID(basePath, id), nil, nil); err != nil {
		return fmt.Errorf("delete announcement: %w", err)
	}
	s.invalidate(ctx)
	return nil
}

func (s *Service) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn("invalidate announcement cache", slog.Any("error", err))
	}
}

func sortAnnouncements(items []Announcement) {
	sort.SliceStable(items, func(i, j int) bool {
		ri, rj := rank(items[i].Priority), rank(items[j].Priority)
		if ri != rj {
			return ri < rj
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
}

func rank(priority string) int {
	if r, ok := priorityRank[priority]; ok {
		return r
	}
	return priorityRank["normal"]
}
