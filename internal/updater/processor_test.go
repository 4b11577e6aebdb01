package updater

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/GollyTicker/PluralSync/internal/fronting"
	"github.com/GollyTicker/PluralSync/internal/history"
	"github.com/GollyTicker/PluralSync/internal/models"
)

func snapshotOf(names ...string) fronting.Snapshot {
	snap := fronting.Snapshot{ObservedAt: time.Now().UTC()}
	for _, n := range names {
		snap.Fronters = append(snap.Fronters, fronting.Fronter{Name: n})
	}
	return snap
}

func TestProcessorSetsUpEnabledAdaptersOnly(t *testing.T) {
	enabled := &fakeAdapter{platform: models.PlatformDiscord, enabled: true}
	disabled := &fakeAdapter{platform: models.PlatformVRChat, enabled: false}

	m := NewManager(testLogger())
	if err := m.Start(models.UserConfigForUpdater{UserID: "user-1"}, testDeps(enabled, disabled)); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer m.StopAll()

	waitUntil(t, "setup of enabled adapter", func() bool {
		enabled.mu.Lock()
		defer enabled.mu.Unlock()
		return enabled.setups == 1
	})

	disabled.mu.Lock()
	defer disabled.mu.Unlock()
	if disabled.setups != 0 {
		t.Fatalf("disabled adapter was set up %d times", disabled.setups)
	}
}

func TestProcessorPublishesStatusesAfterSetup(t *testing.T) {
	ok := &fakeAdapter{platform: models.PlatformDiscord, enabled: true}
	broken := &fakeAdapter{platform: models.PlatformVRChat, enabled: true, setupErr: errors.New("login rejected")}

	m := NewManager(testLogger())
	if err := m.Start(models.UserConfigForUpdater{UserID: "user-1"}, testDeps(ok, broken)); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer m.StopAll()

	waitUntil(t, "initial status publication", func() bool {
		statuses, found := m.Statuses("user-1")
		return found && len(statuses) == 2
	})

	statuses, _ := m.Statuses("user-1")
	if statuses[models.PlatformDiscord].Kind != models.StatusOk {
		t.Fatalf("discord status = %+v, want ok", statuses[models.PlatformDiscord])
	}
	if statuses[models.PlatformVRChat].Kind != models.StatusError {
		t.Fatalf("vrchat status = %+v, want error", statuses[models.PlatformVRChat])
	}
}

func TestFailingPlatformDoesNotBlockOthers(t *testing.T) {
	healthy := &fakeAdapter{platform: models.PlatformDiscord, enabled: true}
	failing := &fakeAdapter{platform: models.PlatformVRChat, enabled: true, updateErr: errors.New("api down")}

	store := history.NewMemoryStore()
	deps := testDeps(healthy, failing)
	deps.History = store

	m := NewManager(testLogger())
	cfg := models.UserConfigForUpdater{UserID: "user-1", HistoryLimit: 10}
	if err := m.Start(cfg, deps); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer m.StopAll()

	if err := m.Send("user-1", snapshotOf("Alice")); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	waitUntil(t, "update on healthy adapter", func() bool {
		return healthy.updateCount() == 1
	})
	waitUntil(t, "update attempt on failing adapter", func() bool {
		return failing.updateCount() == 1
	})

	// the cycle still completes: history is written and statuses reflect
	// the per-platform outcomes
	waitUntil(t, "history entry", func() bool {
		entries, err := store.ListRecent(context.Background(), "user-1", 10)
		return err == nil && len(entries) == 1
	})

	statuses, _ := m.Statuses("user-1")
	if statuses[models.PlatformDiscord].Kind != models.StatusOk {
		t.Fatalf("discord status = %+v, want ok", statuses[models.PlatformDiscord])
	}
	if statuses[models.PlatformVRChat].Kind != models.StatusError {
		t.Fatalf("vrchat status = %+v, want error", statuses[models.PlatformVRChat])
	}
}

func TestProcessorRecordsFormattedHistory(t *testing.T) {
	adapter := &fakeAdapter{platform: models.PlatformDiscord, enabled: true}
	store := history.NewMemoryStore()
	deps := testDeps(adapter)
	deps.History = store

	m := NewManager(testLogger())
	cfg := models.UserConfigForUpdater{
		UserID:       "user-1",
		StatusPrefix: "fronting: ",
		HistoryLimit: 10,
	}
	if err := m.Start(cfg, deps); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer m.StopAll()

	if err := m.Send("user-1", snapshotOf("Alice", "Bob")); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	waitUntil(t, "history entry", func() bool {
		entries, err := store.ListRecent(context.Background(), "user-1", 10)
		return err == nil && len(entries) == 1
	})

	entries, _ := store.ListRecent(context.Background(), "user-1", 10)
	if got, want := entries[0].StatusText, "fronting: Alice, Bob"; got != want {
		t.Fatalf("history text = %q, want %q", got, want)
	}
}

func TestIdenticalConsecutiveSnapshotsDeduplicated(t *testing.T) {
	adapter := &fakeAdapter{platform: models.PlatformDiscord, enabled: true}
	store := history.NewMemoryStore()
	deps := testDeps(adapter)
	deps.History = store

	m := NewManager(testLogger())
	cfg := models.UserConfigForUpdater{UserID: "user-1", HistoryLimit: 10}
	if err := m.Start(cfg, deps); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer m.StopAll()

	if err := m.Send("user-1", snapshotOf("Alice")); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	waitUntil(t, "first update", func() bool { return adapter.updateCount() == 1 })

	if err := m.Send("user-1", snapshotOf("Alice")); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	waitUntil(t, "second update", func() bool { return adapter.updateCount() == 2 })

	entries, err := store.ListRecent(context.Background(), "user-1", 10)
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d history entries, want 1 (identical status deduplicated)", len(entries))
	}
}

func TestFrontChangesFlowToAllPlatformsAndHistory(t *testing.T) {
	discord := &fakeAdapter{platform: models.PlatformDiscord, enabled: true}
	vrchat := &fakeAdapter{platform: models.PlatformVRChat, enabled: true}
	store := history.NewMemoryStore()
	deps := testDeps(discord, vrchat)
	deps.History = store

	m := NewManager(testLogger())
	cfg := models.UserConfigForUpdater{
		UserID:         "user-1",
		StatusNoFronts: "nobody fronting",
		HistoryLimit:   10,
	}
	if err := m.Start(cfg, deps); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer m.StopAll()

	if err := m.Send("user-1", snapshotOf("Alice")); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	waitUntil(t, "first cycle", func() bool {
		return discord.updateCount() == 1 && vrchat.updateCount() == 1
	})

	if err := m.Send("user-1", snapshotOf()); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	waitUntil(t, "second cycle", func() bool {
		return discord.updateCount() == 2 && vrchat.updateCount() == 2
	})

	waitUntil(t, "two history entries", func() bool {
		entries, err := store.ListRecent(context.Background(), "user-1", 10)
		return err == nil && len(entries) == 2
	})

	entries, _ := store.ListRecent(context.Background(), "user-1", 10)
	if entries[0].StatusText != "nobody fronting" {
		t.Fatalf("latest entry = %q, want the no-fronters text", entries[0].StatusText)
	}
	if entries[1].StatusText != "Alice" {
		t.Fatalf("older entry = %q, want %q", entries[1].StatusText, "Alice")
	}

	waitUntil(t, "ok statuses", func() bool {
		statuses, ok := m.Statuses("user-1")
		return ok &&
			statuses[models.PlatformDiscord].Kind == models.StatusOk &&
			statuses[models.PlatformVRChat].Kind == models.StatusOk
	})
}

func TestStopTerminatesProcessor(t *testing.T) {
	adapter := &fakeAdapter{platform: models.PlatformDiscord, enabled: true}

	m := NewManager(testLogger())
	if err := m.Start(models.UserConfigForUpdater{UserID: "user-1"}, testDeps(adapter)); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	m.mu.RLock()
	reg := m.users["user-1"]
	m.mu.RUnlock()

	if err := m.Stop("user-1"); err != nil {
		t.Fatalf("stop failed: %v", err)
	}

	select {
	case <-reg.done:
	case <-time.After(2 * time.Second):
		t.Fatal("processor goroutine did not exit after stop")
	}

	// a late snapshot on the orphaned channel must reach nobody
	reg.channel.Send(snapshotOf("Alice"))
	time.Sleep(50 * time.Millisecond)
	if adapter.updateCount() != 0 {
		t.Fatalf("adapter invoked %d times after stop", adapter.updateCount())
	}
}

func TestHistoryFailureDoesNotKillProcessor(t *testing.T) {
	adapter := &fakeAdapter{platform: models.PlatformDiscord, enabled: true}
	deps := testDeps(adapter)
	deps.History = failingStore{}

	m := NewManager(testLogger())
	if err := m.Start(models.UserConfigForUpdater{UserID: "user-1"}, deps); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer m.StopAll()

	for i := 0; i < 2; i++ {
		if err := m.Send("user-1", snapshotOf("Alice")); err != nil {
			t.Fatalf("send failed: %v", err)
		}
		waitUntil(t, "update delivery", func() bool { return adapter.updateCount() >= i+1 })
	}

	if !m.Running("user-1") {
		t.Fatal("processor died on a history failure")
	}
}

type failingStore struct{}

func (failingStore) Append(ctx context.Context, userID, statusText string) error {
	return errors.New("db unavailable")
}

func (failingStore) Prune(ctx context.Context, userID string, limit, truncateAfterDays int) error {
	return errors.New("db unavailable")
}

func (failingStore) ListRecent(ctx context.Context, userID string, limit int) ([]history.Entry, error) {
	return nil, errors.New("db unavailable")
}
