package updater

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/GollyTicker/PluralSync/internal/fronting"
	"github.com/GollyTicker/PluralSync/internal/models"
)

var (
	ErrAlreadyRunning = errors.New("updater already running for this user")
	ErrNotRunning     = errors.New("no updater running for this user")
)

// Manager is the process-wide registry of change processors. It maps each
// user to their coalescing channel (the control handle used to stop the
// processor) and the latest per-platform status map.
type Manager struct {
	log *slog.Logger

	mu    sync.RWMutex
	users map[string]*registration
}

type registration struct {
	channel  *fronting.Channel
	statuses map[models.Platform]models.UpdaterStatus
	done     chan struct{} // closed when the processor goroutine exits
}

func NewManager(log *slog.Logger) *Manager {
	return &Manager{
		log:   log,
		users: make(map[string]*registration),
	}
}

// Start spawns a change processor for the user. The config is owned by the
// spawned processor from here on. Fails with ErrAlreadyRunning when one
// exists: callers must stop before restarting.
func (m *Manager) Start(cfg models.UserConfigForUpdater, deps ProcessorDeps) error {
	m.mu.Lock()
	if _, exists := m.users[cfg.UserID]; exists {
		m.mu.Unlock()
		return ErrAlreadyRunning
	}

	reg := &registration{
		channel:  fronting.NewChannel(),
		statuses: make(map[models.Platform]models.UpdaterStatus),
		done:     make(chan struct{}),
	}
	m.users[cfg.UserID] = reg
	m.mu.Unlock()

	go func() {
		defer close(reg.done)
		runProcessor(cfg, m, deps, reg.channel)

		// still registered here means nobody called Stop: the processor
		// died on its own (should not happen outside shutdown races)
		m.mu.Lock()
		if current, ok := m.users[cfg.UserID]; ok && current == reg {
			delete(m.users, cfg.UserID)
			m.mu.Unlock()
			deps.Metrics.UnexpectedStop(cfg.UserID)
			m.log.Warn("updater_stopped_unexpectedly", "user_id", cfg.UserID)
			return
		}
		m.mu.Unlock()
	}()

	m.log.Info("updater_started", "user_id", cfg.UserID)
	return nil
}

// Stop closes the user's channel and removes the registration. The processor
// observes the closure at its next recv, so an in-flight cycle finishes
// first. Returns ErrNotRunning when nothing is registered; callers doing
// best-effort cleanup log and continue.
func (m *Manager) Stop(userID string) error {
	m.mu.Lock()
	reg, ok := m.users[userID]
	if !ok {
		m.mu.Unlock()
		return ErrNotRunning
	}
	delete(m.users, userID)
	m.mu.Unlock()

	reg.channel.Close()
	m.log.Info("updater_stopped", "user_id", userID)
	return nil
}

// Send pushes a snapshot into the user's channel, coalescing with any unread
// one. Sending to a stopped user is an ErrNotRunning, not a crash.
func (m *Manager) Send(userID string, snap fronting.Snapshot) error {
	m.mu.RLock()
	reg, ok := m.users[userID]
	m.mu.RUnlock()

	if !ok {
		return ErrNotRunning
	}
	reg.channel.Send(snap)
	return nil
}

// NotifyStatuses replaces the cached status map for the user. Whole-map
// replacement keyed by user: last write wins, no torn updates.
func (m *Manager) NotifyStatuses(userID string, statuses map[models.Platform]models.UpdaterStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()

	reg, ok := m.users[userID]
	if !ok {
		return // processor already stopped; stale statuses are dropped
	}
	reg.statuses = statuses
}

// Statuses returns a copy of the user's per-platform status map. It may be
// briefly stale relative to an in-flight cycle.
func (m *Manager) Statuses(userID string) (map[models.Platform]models.UpdaterStatus, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	reg, ok := m.users[userID]
	if !ok {
		return nil, false
	}
	out := make(map[models.Platform]models.UpdaterStatus, len(reg.statuses))
	for k, v := range reg.statuses {
		out[k] = v
	}
	return out, true
}

// RunningUsers lists users with an active processor.
func (m *Manager) RunningUsers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.users))
	for id := range m.users {
		ids = append(ids, id)
	}
	return ids
}

// Running reports whether a processor is registered for the user.
func (m *Manager) Running(userID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.users[userID]
	return ok
}

// StopAll stops every processor; used during shutdown.
func (m *Manager) StopAll() {
	m.mu.Lock()
	regs := m.users
	m.users = make(map[string]*registration)
	m.mu.Unlock()

	for _, reg := range regs {
		reg.channel.Close()
	}
}
