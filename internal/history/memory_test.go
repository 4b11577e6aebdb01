package history

import (
	"context"
	"testing"
	"time"
)

func TestAppend_DeduplicatesConsecutiveText(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if err := s.Append(ctx, "u1", "Fronting: Alice"); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if err := s.Append(ctx, "u1", "Fronting: Alice"); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	entries, err := s.ListRecent(ctx, "u1", 10)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry after duplicate append, got %d", len(entries))
	}

	if err := s.Append(ctx, "u1", "Fronting: Bob"); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	entries, _ = s.ListRecent(ctx, "u1", 10)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries after distinct append, got %d", len(entries))
	}
}

func TestAppend_DedupIsPerUser(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_ = s.Append(ctx, "u1", "same")
	_ = s.Append(ctx, "u2", "same")

	for _, user := range []string{"u1", "u2"} {
		entries, _ := s.ListRecent(ctx, user, 10)
		if len(entries) != 1 {
			t.Errorf("user %s: expected 1 entry, got %d", user, len(entries))
		}
	}
}

func TestPrune_CountAxisKeepsMostRecent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	s.SetClock(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	})

	for _, text := range []string{"a", "b", "c", "d", "e"} {
		if err := s.Append(ctx, "u1", text); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	if err := s.Prune(ctx, "u1", 3, 0); err != nil {
		t.Fatalf("prune failed: %v", err)
	}

	entries, _ := s.ListRecent(ctx, "u1", 10)
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	// descending by creation time
	want := []string{"e", "d", "c"}
	for i, e := range entries {
		if e.StatusText != want[i] {
			t.Errorf("entry %d: expected %q, got %q", i, want[i], e.StatusText)
		}
	}
}

func TestPrune_LimitZeroDisablesHistory(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_ = s.Append(ctx, "u1", "a")
	_ = s.Append(ctx, "u1", "b")

	if err := s.Prune(ctx, "u1", 0, 0); err != nil {
		t.Fatalf("prune failed: %v", err)
	}

	entries, _ := s.ListRecent(ctx, "u1", 10)
	if len(entries) != 0 {
		t.Errorf("limit=0 must delete everything, got %d entries", len(entries))
	}
}

func TestPrune_AgeAxisRemovesOldEntries(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	s.SetClock(func() time.Time { return now.AddDate(0, 0, -8) })
	_ = s.Append(ctx, "u1", "old")

	s.SetClock(func() time.Time { return now })
	_ = s.Append(ctx, "u1", "fresh")

	if err := s.Prune(ctx, "u1", 100, 7); err != nil {
		t.Fatalf("prune failed: %v", err)
	}

	entries, _ := s.ListRecent(ctx, "u1", 10)
	if len(entries) != 1 {
		t.Fatalf("expected only the fresh entry, got %d", len(entries))
	}
	if entries[0].StatusText != "fresh" {
		t.Errorf("expected fresh entry to survive, got %q", entries[0].StatusText)
	}
}

func TestPrune_AgeZeroDisablesAgeAxis(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return now.AddDate(0, 0, -30) })
	_ = s.Append(ctx, "u1", "ancient")

	if err := s.Prune(ctx, "u1", 100, 0); err != nil {
		t.Fatalf("prune failed: %v", err)
	}

	entries, _ := s.ListRecent(ctx, "u1", 10)
	if len(entries) != 1 {
		t.Errorf("days=0 must not delete by age, got %d entries", len(entries))
	}
}

func TestPrune_AxesCombineWithOr(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	// old entry: survives the count axis (only 2 entries) but not the age axis
	s.SetClock(func() time.Time { return now.AddDate(0, 0, -10) })
	_ = s.Append(ctx, "u1", "old")
	s.SetClock(func() time.Time { return now })
	_ = s.Append(ctx, "u1", "fresh")

	if err := s.Prune(ctx, "u1", 5, 7); err != nil {
		t.Fatalf("prune failed: %v", err)
	}

	entries, _ := s.ListRecent(ctx, "u1", 10)
	if len(entries) != 1 || entries[0].StatusText != "fresh" {
		t.Errorf("either axis alone must delete; got %+v", entries)
	}
}

func TestListRecent_CapsAtLimit(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	s.SetClock(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	})

	for _, text := range []string{"a", "b", "c"} {
		_ = s.Append(ctx, "u1", text)
	}

	entries, err := s.ListRecent(ctx, "u1", 2)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].StatusText != "c" || entries[1].StatusText != "b" {
		t.Errorf("expected [c b], got %+v", entries)
	}
}
