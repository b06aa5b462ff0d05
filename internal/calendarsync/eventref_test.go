package calendarsync_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/momentum-planner/internal/calendarsync"
)

func TestEventRef_ZeroValueIsNotSynced(t *testing.T) {
	t.Parallel()

	var ref calendarsync.EventRef
	if ref.IsSynced() {
		t.Fatalf("zero value must read as NotSynced")
	}
	if _, ok := ref.EventID(); ok {
		t.Fatalf("NotSynced must not carry an event id")
	}
	if ref != calendarsync.NotSynced() {
		t.Fatalf("zero value must equal NotSynced()")
	}
}

func TestEventRef_SyncedCarriesEventID(t *testing.T) {
	t.Parallel()

	ref := calendarsync.Synced("evt-42")
	if !ref.IsSynced() {
		t.Fatalf("expected Synced state")
	}
	id, ok := ref.EventID()
	if !ok || id != "evt-42" {
		t.Fatalf("expected event id evt-42, got %q ok=%v", id, ok)
	}
}

func TestEventRef_EmptyIDCollapsesToNotSynced(t *testing.T) {
	t.Parallel()

	if calendarsync.Synced("").IsSynced() {
		t.Fatalf("an empty id cannot represent a synced event")
	}
}

func TestCallbackAccessAdapter_DeliversOutcome(t *testing.T) {
	t.Parallel()

	adapter := calendarsync.NewCallbackAccessAdapter(func(cb calendarsync.AccessRequestCallback) {
		cb(true, nil)
	})
	granted, err := adapter.RequestAccess(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !granted {
		t.Fatalf("expected the grant to propagate")
	}

	wantErr := errors.New("platform failure")
	adapter = calendarsync.NewCallbackAccessAdapter(func(cb calendarsync.AccessRequestCallback) {
		cb(false, wantErr)
	})
	if _, err := adapter.RequestAccess(context.Background()); !errors.Is(err, wantErr) {
		t.Fatalf("expected the platform error, got %v", err)
	}
}

func TestCallbackAccessAdapter_HonorsContextCancellation(t *testing.T) {
	t.Parallel()

	adapter := calendarsync.NewCallbackAccessAdapter(func(calendarsync.AccessRequestCallback) {
		// Callback never fires: the prompt is never answered.
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := adapter.RequestAccess(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
}
