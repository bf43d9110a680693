package sessions

import (
	"context"
	"testing"
	"time"
)

func TestReaperSchedule(t *testing.T) {
	store := NewStore(StoreConfig{})

	r, err := NewReaper(store, 0, nil)
	if err != nil {
		t.Fatalf("NewReaper: %v", err)
	}

	// The default interval is 30 seconds.
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if next := r.schedule.Next(base); !next.Equal(base.Add(30 * time.Second)) {
		t.Fatalf("schedule.Next = %v, want %v", next, base.Add(30*time.Second))
	}
}

func TestReaperReapsOnStart(t *testing.T) {
	store := NewStore(StoreConfig{TTL: time.Minute})
	now := testClock(store)

	if _, err := store.Create(); err != nil {
		t.Fatalf("Create: %v", err)
	}
	*now = now.Add(2 * time.Minute)

	r, err := NewReaper(store, time.Hour, nil)
	if err != nil {
		t.Fatalf("NewReaper: %v", err)
	}
	r.Start(context.Background())
	defer r.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for store.Count() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("expired session not reaped, count = %d", store.Count())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestReaperStartAndStopAreIdempotent(t *testing.T) {
	store := NewStore(StoreConfig{})
	r, err := NewReaper(store, time.Hour, nil)
	if err != nil {
		t.Fatalf("NewReaper: %v", err)
	}

	r.Stop() // before Start

	r.Start(context.Background())
	r.Start(context.Background())
	r.Stop()
	r.Stop()
}
