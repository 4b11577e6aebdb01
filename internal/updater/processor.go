package updater

import (
	"context"
	"log/slog"
	"time"

	"github.com/GollyTicker/PluralSync/internal/fronting"
	"github.com/GollyTicker/PluralSync/internal/history"
	"github.com/GollyTicker/PluralSync/internal/models"
)

// Adapter is the processor's view of one platform integration; satisfied by
// platforms.Updater. Setup and UpdateFrontingStatus are only called by the
// owning processor goroutine, so implementations need no locking.
type Adapter interface {
	Platform() models.Platform
	Enabled(cfg *models.UserConfigForUpdater) bool
	Setup(ctx context.Context, cfg *models.UserConfigForUpdater) error
	UpdateFrontingStatus(ctx context.Context, cfg *models.UserConfigForUpdater, snap fronting.Snapshot) error
	Status(cfg *models.UserConfigForUpdater) models.UpdaterStatus
}

// ProcessorDeps bundles everything a change processor needs beyond its
// config. NewAdapters builds a fresh adapter set per processor so session
// state never leaks across restarts.
type ProcessorDeps struct {
	Log         *slog.Logger
	History     history.Store
	Metrics     *Metrics
	NewAdapters func() []Adapter

	// AdapterTimeout bounds each Setup and UpdateFrontingStatus call so a
	// hung platform cannot stall the whole loop.
	AdapterTimeout time.Duration
}

// runProcessor is the per-user loop: set up adapters, then drain the
// coalescing channel until it closes, pushing each snapshot to every enabled
// platform. One failing platform never blocks the others.
func runProcessor(cfg models.UserConfigForUpdater, mgr *Manager, deps ProcessorDeps, ch *fronting.Channel) {
	log := deps.Log.With("user_id", cfg.UserID)
	log.Debug("change_processor_started")

	adapters := deps.NewAdapters()

	for _, a := range adapters {
		if !a.Enabled(&cfg) {
			continue
		}
		if err := withTimeout(deps.AdapterTimeout, func(ctx context.Context) error {
			return a.Setup(ctx, &cfg)
		}); err != nil {
			log.Warn("platform_setup_failed", "platform", a.Platform(), "error", err)
		}
	}
	mgr.NotifyStatuses(cfg.UserID, collectStatuses(adapters, &cfg))

	for {
		snap, ok := ch.Recv(context.Background())
		if !ok {
			break
		}

		deps.Metrics.CycleStarted(cfg.UserID)
		processSnapshot(log, &cfg, adapters, deps, snap)
		mgr.NotifyStatuses(cfg.UserID, collectStatuses(adapters, &cfg))
		deps.Metrics.CycleSucceeded(cfg.UserID)
	}

	log.Debug("change_processor_finished")
}

// processSnapshot applies one snapshot to every enabled adapter and records
// the resulting status line. Platform and history failures are logged, never
// fatal: the loop must survive any single bad cycle.
func processSnapshot(log *slog.Logger, cfg *models.UserConfigForUpdater, adapters []Adapter, deps ProcessorDeps, snap fronting.Snapshot) {
	for _, a := range adapters {
		if !a.Enabled(cfg) {
			continue
		}
		if err := withTimeout(deps.AdapterTimeout, func(ctx context.Context) error {
			return a.UpdateFrontingStatus(ctx, cfg, snap)
		}); err != nil {
			log.Warn("platform_update_failed", "platform", a.Platform(), "error", err)
		}
	}

	recordHistory(log, cfg, deps.History, snap)
}

func recordHistory(log *slog.Logger, cfg *models.UserConfigForUpdater, store history.Store, snap fronting.Snapshot) {
	text := fronting.FormatStatus(fronting.Format{
		Prefix:             cfg.StatusPrefix,
		StatusIfNoFronters: cfg.StatusNoFronts,
		TruncateNamesTo:    cfg.StatusTruncateNamesTo,
	}, snap)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := store.Append(ctx, cfg.UserID, text); err != nil {
		log.Error("history_append_failed", "error", err)
		return
	}
	if err := store.Prune(ctx, cfg.UserID, cfg.HistoryLimit, cfg.HistoryTruncateAfterDays); err != nil {
		log.Error("history_prune_failed", "error", err)
	}
}

func collectStatuses(adapters []Adapter, cfg *models.UserConfigForUpdater) map[models.Platform]models.UpdaterStatus {
	statuses := make(map[models.Platform]models.UpdaterStatus, len(adapters))
	for _, a := range adapters {
		statuses[a.Platform()] = a.Status(cfg)
	}
	return statuses
}

func withTimeout(d time.Duration, fn func(ctx context.Context) error) error {
	if d <= 0 {
		d = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return fn(ctx)
}
