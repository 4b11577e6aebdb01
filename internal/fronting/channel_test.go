package fronting

import (
	"context"
	"testing"
	"time"
)

func snapOf(names ...string) Snapshot {
	fronters := make([]Fronter, 0, len(names))
	for _, n := range names {
		fronters = append(fronters, Fronter{MemberID: "id-" + n, Name: n})
	}
	return Snapshot{Fronters: fronters, ObservedAt: time.Now()}
}

func TestChannel_CoalescesToLatest(t *testing.T) {
	ch := NewChannel()

	ch.Send(snapOf("Alice"))
	ch.Send(snapOf("Bob"))
	ch.Send(snapOf("Carol"))

	snap, ok := ch.Recv(context.Background())
	if !ok {
		t.Fatal("expected a value")
	}
	if len(snap.Fronters) != 1 || snap.Fronters[0].Name != "Carol" {
		t.Errorf("expected only the latest snapshot, got %+v", snap.Fronters)
	}
}

func TestChannel_SendNeverBlocks(t *testing.T) {
	ch := NewChannel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10000; i++ {
			ch.Send(snapOf("A"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("send blocked with no consumer")
	}
}

func TestChannel_RecvBlocksUntilSend(t *testing.T) {
	ch := NewChannel()

	got := make(chan Snapshot, 1)
	go func() {
		snap, ok := ch.Recv(context.Background())
		if ok {
			got <- snap
		}
	}()

	// give the consumer time to park
	time.Sleep(20 * time.Millisecond)
	ch.Send(snapOf("Dana"))

	select {
	case snap := <-got:
		if snap.Fronters[0].Name != "Dana" {
			t.Errorf("expected Dana, got %+v", snap.Fronters)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("recv did not wake up after send")
	}
}

func TestChannel_CloseTerminatesConsumer(t *testing.T) {
	ch := NewChannel()

	done := make(chan bool, 1)
	go func() {
		_, ok := ch.Recv(context.Background())
		done <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	ch.Close()

	select {
	case ok := <-done:
		if ok {
			t.Error("expected ok=false after close")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("recv did not observe close")
	}
}

func TestChannel_CloseDeliversPendingValueFirst(t *testing.T) {
	ch := NewChannel()
	ch.Send(snapOf("Eve"))
	ch.Close()

	snap, ok := ch.Recv(context.Background())
	if !ok {
		t.Fatal("pending value must still be delivered after close")
	}
	if snap.Fronters[0].Name != "Eve" {
		t.Errorf("expected Eve, got %+v", snap.Fronters)
	}

	if _, ok := ch.Recv(context.Background()); ok {
		t.Error("expected ok=false once drained")
	}
}

func TestChannel_SendAfterCloseIsDropped(t *testing.T) {
	ch := NewChannel()
	ch.Close()
	ch.Send(snapOf("Frank"))

	if _, ok := ch.Recv(context.Background()); ok {
		t.Error("send after close must not deliver a value")
	}
}

func TestChannel_RecvHonorsContextCancel(t *testing.T) {
	ch := NewChannel()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan bool, 1)
	go func() {
		_, ok := ch.Recv(ctx)
		done <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case ok := <-done:
		if ok {
			t.Error("expected ok=false on context cancel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("recv ignored context cancellation")
	}
}
