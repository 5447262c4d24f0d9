package suppliers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"

	"github.com/grocerops/grocerops/internal/platform/backend"
	"github.com/grocerops/grocerops/internal/platform/cache"
	"github.com/grocerops/grocerops/internal/view"
)

const (
	usersPath = "/api/users"
	cacheKey  = "grocerops:suppliers:last"
	roleName  = "supplier"
)

type cached struct {
	Suppliers []Supplier `json:"suppliers"`
	CachedAt  time.Time  `json:"cachedAt"`
}

// Service manages suppliers through the user endpoints and keeps the last
// successful list in Redis for use when the backend is down.
type Service struct {
	api      backend.Caller
	redis    redis.Cmdable
	logger   *slog.Logger
	validate *validator.Validate
	now      func() time.Time
}

// NewService constructs Service. client may be nil, which disables the fallback.
func NewService(api backend.Caller, client redis.Cmdable, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{api: api, redis: client, logger: logger, validate: validator.New(), now: time.Now}
}

// List fetches suppliers sorted by display name. When the backend fails with
// anything but an expired session and a cached list exists, the cached list is
// returned with Stale set.
func (s *Service) List(ctx context.Context) (Listing, error) {
	var items []Supplier
	err := backend.Get(ctx, s.api, usersPath, url.Values{"role": {roleName}}, &items)
	if err == nil {
		sort.SliceStable(items, func(i, j int) bool { return items[i].DisplayName() < items[j].DisplayName() })
		now := s.now()
		if s.redis != nil {
			if cerr := cache.SetJSON(ctx, s.redis, cacheKey, cached{Suppliers: items, CachedAt: now}, 0); cerr != nil {
				s.logger.Warn("cache suppliers", slog.Any("error", cerr))
			}
		}
		return Listing{Suppliers: items, CachedAt: now}, nil
	}
	err = fmt.Errorf("list suppliers: %w", err)
	if errors.Is(err, backend.ErrSessionExpired) || errors.Is(err, backend.ErrForbidden) || s.redis == nil {
		return Listing{}, err
	}
	var fallback cached
	if cerr := cache.GetJSON(ctx, s.redis, cacheKey, &fallback); cerr != nil {
		if !errors.Is(cerr, cache.ErrMiss) {
			s.logger.Warn("read supplier cache", slog.Any("error", cerr))
		}
		return Listing{}, err
	}
	s.logger.Warn("serving cached suppliers", slog.Time("cached_at", fallback.CachedAt), slog.Any("error", err))
	return Listing{Suppliers: fallback.Suppliers, Stale: true, CachedAt: fallback.CachedAt}, nil
}

// Options lists suppliers for select inputs. Failures yield an empty list.
func (s *Service) Options(ctx context.Context) []view.Option {
	listing, err := s.List(ctx)
	if err != nil {
		s.logger.Warn("supplier options", slog.Any("error", err))
		return nil
	}
	out := make([]view.Option, 0, len(listing.Suppliers))
	for _, sup := range listing.Suppliers {
		out = append(out, view.Option{Value: sup.ID, Label: sup.DisplayName()})
	}
	return out
}

// Get fetches one supplier.
func (s *Service) Get(ctx context.Context, id string) (Supplier, error) {
	var sup Supplier
	if err := backend.Get(ctx, s.api, backend.PathID(usersPath, id), nil, &sup); err != nil {
		return Supplier{}, fmt.Errorf("get supplier: %w", err)
	}
	if sup.Role != "" && sup.Role != roleName {
		return Supplier{}, ErrNotSupplier
	}
	return sup, nil
}

// Create registers a supplier account. A password is required.
func (s *Service) Create(ctx context.Context, in Input) (Supplier, error) {
	in.Role = roleName
	if err := s.validate.Struct(in); err != nil {
		return Supplier{}, err
	}
	if in.Password == "" {
		return Supplier{}, ErrPasswordRequired
	}
	var sup Supplier
	if err := backend.Send(ctx, s.api, http.MethodPost, usersPath, in, &sup); err != nil {
		return Supplier{}, fmt.Errorf("create supplier: %w", err)
	}
	s.forget(ctx)
	return sup, nil
}

// Update changes supplier details.
func (s *Service) Update(ctx context.Context, id string, in Input) (Supplier, error) {
	in.Role = roleName
	in.Password = ""
	if err := s.validate.Struct(in); err != nil {
		return Supplier{}, err
	}
	var sup Supplier
	if err := backend.Send(ctx, s.api, http.MethodPut, backend.PathID(usersPath, id), in, &sup); err != nil {
		return Supplier{}, fmt.Errorf("update supplier: %w", err)
	}
	s.forget(ctx)
	return sup, nil
}

// Delete removes a supplier account.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := backend.Send(ctx, s.api, http.MethodDelete, backend.PathID(usersPath, id), nil, nil); err != nil {
		return fmt.Errorf("delete supplier: %w", err)
	}
	s.forget(ctx)
	return nil
}

func (s *Service) forget(ctx context.Context) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, cacheKey).Err(); err != nil {
		s.logger.Warn("drop supplier cache", slog.Any("error", err))
	}
}
