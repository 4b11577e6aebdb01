package updater

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/GollyTicker/PluralSync/internal/fronting"
	"github.com/GollyTicker/PluralSync/internal/models"
)

// ConfigSource loads user configuration; satisfied by db.UserStore.
type ConfigSource interface {
	GetUserConfig(ctx context.Context, userID string) (models.UserConfigForUpdater, error)
	ListUserIDs(ctx context.Context) ([]string, error)
}

// Service ties the manager to the outside world: it starts and stops
// processors, keeps one Simply Plural socket subscription per running user
// and refreshes fronting snapshots on a timer as a fallback for missed
// socket events.
type Service struct {
	log     *slog.Logger
	users   ConfigSource
	manager *Manager
	sp      *fronting.SimplyPluralClient
	deps    ProcessorDeps

	refreshInterval time.Duration
	// limiter spaces out Simply Plural API calls across all users so a large
	// deployment doesn't burst the upstream on every tick
	limiter *rate.Limiter

	mu      sync.Mutex
	sockets map[string]context.CancelFunc
}

func NewService(log *slog.Logger, users ConfigSource, manager *Manager, sp *fronting.SimplyPluralClient, deps ProcessorDeps, refreshInterval time.Duration) *Service {
	return &Service{
		log:             log,
		users:           users,
		manager:         manager,
		sp:              sp,
		deps:            deps,
		refreshInterval: refreshInterval,
		limiter:         rate.NewLimiter(rate.Limit(5), 10),
		sockets:         make(map[string]context.CancelFunc),
	}
}

// StartUser fetches the user's current config, spawns their change processor
// and subscribes to their Simply Plural socket. Config changes only take
// effect through a restart, so each processor sees one consistent config.
func (s *Service) StartUser(ctx context.Context, userID string) error {
	cfg, err := s.users.GetUserConfig(ctx, userID)
	if err != nil {
		return fmt.Errorf("load user config: %w", err)
	}

	if err := s.manager.Start(cfg, s.deps); err != nil {
		return err
	}

	if cfg.SimplyPluralToken == "" {
		s.log.Info("simply_plural_token_missing", "user_id", userID)
		return nil
	}

	sockCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.sockets[userID] = cancel
	s.mu.Unlock()

	go s.runSocket(sockCtx, userID, cfg.SimplyPluralToken)

	// seed the processor so the platforms reflect reality before the first
	// socket event or refresh tick arrives
	go s.refreshUser(sockCtx, userID)

	return nil
}

// StopUser tears down the socket subscription and stops the processor.
func (s *Service) StopUser(userID string) error {
	s.mu.Lock()
	if cancel, ok := s.sockets[userID]; ok {
		cancel()
		delete(s.sockets, userID)
	}
	s.mu.Unlock()

	return s.manager.Stop(userID)
}

// RestartUser is the way config edits become live.
func (s *Service) RestartUser(ctx context.Context, userID string) error {
	if err := s.StopUser(userID); err != nil && err != ErrNotRunning {
		return err
	}
	return s.StartUser(ctx, userID)
}

// StartAll boots a processor for every known user; individual failures are
// logged so one broken account cannot block the rest of the boot.
func (s *Service) StartAll(ctx context.Context) error {
	ids, err := s.users.ListUserIDs(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	for _, id := range ids {
		if err := s.StartUser(ctx, id); err != nil {
			s.log.Error("updater_start_failed", "user_id", id, "error", err)
		}
	}

	s.log.Info("updaters_started", "count", len(s.manager.RunningUsers()))
	return nil
}

// StopAll cancels every socket and stops every processor; used at shutdown.
func (s *Service) StopAll() {
	s.mu.Lock()
	for id, cancel := range s.sockets {
		cancel()
		delete(s.sockets, id)
	}
	s.mu.Unlock()

	s.manager.StopAll()
}

// RunRefreshLoop polls Simply Plural for every running user at the configured
// interval. The coalescing channel absorbs overlap with socket-driven
// refreshes. Blocks until ctx is cancelled.
func (s *Service) RunRefreshLoop(ctx context.Context) {
	ticker := time.NewTicker(s.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, userID := range s.manager.RunningUsers() {
				if err := s.limiter.Wait(ctx); err != nil {
					return
				}
				s.refreshUser(ctx, userID)
			}
		}
	}
}

// refreshUser reads the latest fronting snapshot and hands it to the user's
// processor. The token is re-read from the store so a rotated token does not
// require a restart just for polling.
func (s *Service) refreshUser(ctx context.Context, userID string) {
	fetchCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cfg, err := s.users.GetUserConfig(fetchCtx, userID)
	if err != nil {
		s.log.Warn("refresh_config_load_failed", "user_id", userID, "error", err)
		return
	}
	if cfg.SimplyPluralToken == "" {
		return
	}

	snap, err := s.sp.FetchFronters(fetchCtx, cfg.SimplyPluralToken)
	if err != nil {
		s.log.Warn("fronters_fetch_failed", "user_id", userID, "error", err)
		return
	}

	if err := s.manager.Send(userID, snap); err != nil {
		s.log.Debug("fronters_send_skipped", "user_id", userID, "error", err)
	}
}

// runSocket keeps one socket subscription alive, reconnecting with a flat
// backoff until its context is cancelled.
func (s *Service) runSocket(ctx context.Context, userID, token string) {
	for {
		err := s.sp.Listen(ctx, token, func() {
			s.refreshUser(ctx, userID)
		})
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			s.log.Warn("simply_plural_socket_lost", "user_id", userID, "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(15 * time.Second):
		}
	}
}
