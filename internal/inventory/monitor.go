package inventory

import (
	"context"
	"log/slog"
	"time"

	"github.com/grocerops/grocerops/internal/platform/backend"
)

// Monitor polls the backend on a fixed interval with a service token.
type Monitor struct {
	service  *Service
	interval time.Duration
	token    string
	logger   *slog.Logger
}

// NewMonitor constructs Monitor. An empty token disables it.
func NewMonitor(service *Service, interval time.Duration, token string, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Monitor{service: service, interval: interval, token: token, logger: logger}
}

// Enabled reports whether a service token is configured.
func (m *Monitor) Enabled() bool {
	return m.token != ""
}

// Run scans immediately and then on every tick until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	if !m.Enabled() {
		m.logger.Info("inventory monitor disabled, no service token configured")
		return
	}
	m.logger.Info("inventory monitor started", slog.Duration("interval", m.interval))
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	m.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("inventory monitor stopped")
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

func (m *Monitor) tick(ctx context.Context) {
	ctx, cancel := context.WithTimeout(backend.WithTokens(ctx, backend.StaticToken(m.token)), m.interval)
	defer cancel()
	res, err := m.service.Scan(ctx)
	if err != nil {
		m.logger.Error("inventory scan failed", slog.Any("error", err))
		return
	}
	if len(res.Raised) > 0 {
		m.logger.Warn("inventory alerts raised",
			slog.Int("raised", len(res.Raised)),
			slog.Int("recorded", res.Recorded),
			slog.Int("open", len(res.Snapshot.Alerts)))
	}
}
