package calendarsync_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/momentum-planner/internal/calendarsync"
	"github.com/example/momentum-planner/internal/testfixtures"
)

const testCalendarTitle = "Momentum Planner"

var due = time.Date(2026, 6, 2, 14, 0, 0, 0, time.UTC)

func newOrchestrator(store *testfixtures.FakeCalendarStore, binder calendarsync.Binder) *calendarsync.Orchestrator {
	return calendarsync.NewOrchestrator(store, binder, testCalendarTitle, time.Second, nil)
}

func task(id string) calendarsync.Task {
	d := due
	return calendarsync.Task{
		ID:                id,
		Title:             "Write quarterly report",
		Notes:             "Draft, review, send",
		DueDate:           &d,
		EstimatedDuration: 90 * time.Minute,
	}
}

func TestSetupCalendar_CreatesCalendarWhenAbsent(t *testing.T) {
	t.Parallel()

	store := testfixtures.NewFakeCalendarStore()
	o := newOrchestrator(store, testfixtures.NewMemoryBinder())

	ok, err := o.SetupCalendar(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatalf("expected setup to succeed")
	}

	calendars, err := store.ListCalendars(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(calendars) != 1 || calendars[0].Title != testCalendarTitle {
		t.Fatalf("expected exactly one sync calendar, got %+v", calendars)
	}
}

func TestSetupCalendar_ReusesExistingCalendar(t *testing.T) {
	t.Parallel()

	store := testfixtures.NewFakeCalendarStore()
	existing := store.SeedCalendar(testCalendarTitle)
	o := newOrchestrator(store, testfixtures.NewMemoryBinder())

	if ok, err := o.SetupCalendar(context.Background()); err != nil || !ok {
		t.Fatalf("expected setup to succeed, got ok=%v err=%v", ok, err)
	}

	calendars, _ := store.ListCalendars(context.Background())
	if len(calendars) != 1 || calendars[0].ID != existing.ID {
		t.Fatalf("expected the existing calendar to be reused, got %+v", calendars)
	}
}

func TestSetupCalendar_IsIdempotentAfterSuccess(t *testing.T) {
	t.Parallel()

	store := testfixtures.NewFakeCalendarStore()
	o := newOrchestrator(store, testfixtures.NewMemoryBinder())

	for i := 0; i < 3; i++ {
		ok, err := o.SetupCalendar(context.Background())
		if err != nil || !ok {
			t.Fatalf("call %d: expected success, got ok=%v err=%v", i, ok, err)
		}
	}

	if got := store.AccessRequests(); got != 1 {
		t.Fatalf("expected exactly one access request, got %d", got)
	}
}

func TestSetupCalendar_DeniedReturnsFalseWithoutError(t *testing.T) {
	t.Parallel()

	store := testfixtures.NewFakeCalendarStore()
	store.Granted = false
	o := newOrchestrator(store, testfixtures.NewMemoryBinder())

	ok, err := o.SetupCalendar(context.Background())
	if err != nil {
		t.Fatalf("denial is not an error: %v", err)
	}
	if ok {
		t.Fatalf("expected setup to report failure on denial")
	}

	// Denial is cached: no second prompt.
	if ok, _ := o.SetupCalendar(context.Background()); ok {
		t.Fatalf("expected cached denial")
	}
	if got := store.AccessRequests(); got != 1 {
		t.Fatalf("expected exactly one access request, got %d", got)
	}
}

func TestSetupCalendar_ConcurrentCallersShareOnePrompt(t *testing.T) {
	t.Parallel()

	store := testfixtures.NewFakeCalendarStore()
	o := newOrchestrator(store, testfixtures.NewMemoryBinder())

	var wg sync.WaitGroup
	results := make([]bool, 8)
	for i := 0; i < len(results); i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := o.SetupCalendar(context.Background())
			if err != nil {
				t.Errorf("caller %d: unexpected error: %v", i, err)
			}
			results[i] = ok
		}(i)
	}
	wg.Wait()

	for i, ok := range results {
		if !ok {
			t.Fatalf("caller %d did not observe success", i)
		}
	}
	if got := store.AccessRequests(); got != 1 {
		t.Fatalf("expected a single shared access request, got %d", got)
	}
}

func TestSetupCalendar_UnansweredPromptCountsAsDenial(t *testing.T) {
	t.Parallel()

	store := testfixtures.NewFakeCalendarStore()
	store.HangAccess = true
	o := calendarsync.NewOrchestrator(store, testfixtures.NewMemoryBinder(), testCalendarTitle, 20*time.Millisecond, nil)

	ok, err := o.SetupCalendar(context.Background())
	if err != nil {
		t.Fatalf("prompt timeout must be treated as denial, got error: %v", err)
	}
	if ok {
		t.Fatalf("expected denial after prompt timeout")
	}
}

func TestSyncTask_FailsBeforeSetup(t *testing.T) {
	t.Parallel()

	o := newOrchestrator(testfixtures.NewFakeCalendarStore(), testfixtures.NewMemoryBinder())

	if err := o.SyncTask(context.Background(), task("t1")); !errors.Is(err, calendarsync.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestSyncTask_FailsWithAccessDeniedAfterDenial(t *testing.T) {
	t.Parallel()

	store := testfixtures.NewFakeCalendarStore()
	store.Granted = false
	o := newOrchestrator(store, testfixtures.NewMemoryBinder())

	if ok, _ := o.SetupCalendar(context.Background()); ok {
		t.Fatalf("expected denial")
	}
	if err := o.SyncTask(context.Background(), task("t1")); !errors.Is(err, calendarsync.ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}
}

func TestSyncTask_CreatesEventAndBindsReference(t *testing.T) {
	t.Parallel()

	store := testfixtures.NewFakeCalendarStore()
	binder := testfixtures.NewMemoryBinder()
	o := newOrchestrator(store, binder)
	mustSetup(t, o)

	tk := task("t1")
	if err := o.SyncTask(context.Background(), tk); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	eventID, bound := binder.Ref("t1").EventID()
	if !bound {
		t.Fatalf("expected the reference to transition to Synced")
	}
	event, ok := store.Event(eventID)
	if !ok {
		t.Fatalf("expected event %s to exist", eventID)
	}
	if !event.Start.Equal(due) || !event.End.Equal(due.Add(90*time.Minute)) {
		t.Fatalf("event span mismatch: start=%v end=%v", event.Start, event.End)
	}
	if event.Title != tk.Title || event.Notes != tk.Notes {
		t.Fatalf("event fields mismatch: %+v", event)
	}
}

func TestSyncTask_DefaultsDurationWhenNoEstimate(t *testing.T) {
	t.Parallel()

	store := testfixtures.NewFakeCalendarStore()
	binder := testfixtures.NewMemoryBinder()
	o := newOrchestrator(store, binder)
	mustSetup(t, o)

	tk := task("t1")
	tk.EstimatedDuration = 0
	if err := o.SyncTask(context.Background(), tk); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	eventID, _ := binder.Ref("t1").EventID()
	event, _ := store.Event(eventID)
	if got := event.End.Sub(event.Start); got != time.Hour {
		t.Fatalf("expected the default one hour span, got %v", got)
	}
}

func TestSyncTask_RejectsTaskWithoutDueDate(t *testing.T) {
	t.Parallel()

	o := newOrchestrator(testfixtures.NewFakeCalendarStore(), testfixtures.NewMemoryBinder())
	mustSetup(t, o)

	tk := task("t1")
	tk.DueDate = nil
	if err := o.SyncTask(context.Background(), tk); !errors.Is(err, calendarsync.ErrNoDueDate) {
		t.Fatalf("expected ErrNoDueDate, got %v", err)
	}
}

func TestSyncTask_SecondCallUpdatesInPlace(t *testing.T) {
	t.Parallel()

	store := testfixtures.NewFakeCalendarStore()
	binder := testfixtures.NewMemoryBinder()
	o := newOrchestrator(store, binder)
	mustSetup(t, o)

	tk := task("t1")
	if err := o.SyncTask(context.Background(), tk); err != nil {
		t.Fatalf("first sync: %v", err)
	}
	refAfterFirst := binder.Ref("t1")

	tk.Title = "Write quarterly report (revised)"
	if err := o.SyncTask(context.Background(), tk); err != nil {
		t.Fatalf("second sync: %v", err)
	}

	if store.EventCount() != 1 {
		t.Fatalf("expected exactly one event, got %d", store.EventCount())
	}
	if binder.Ref("t1") != refAfterFirst {
		t.Fatalf("reference must be unchanged on the second call")
	}
	eventID, _ := refAfterFirst.EventID()
	event, _ := store.Event(eventID)
	if event.Title != tk.Title {
		t.Fatalf("expected in-place update, got title %q", event.Title)
	}
}

func TestSyncTask_RecreatesExternallyDeletedEvent(t *testing.T) {
	t.Parallel()

	store := testfixtures.NewFakeCalendarStore()
	binder := testfixtures.NewMemoryBinder()
	o := newOrchestrator(store, binder)
	mustSetup(t, o)

	tk := task("t1")
	if err := o.SyncTask(context.Background(), tk); err != nil {
		t.Fatalf("first sync: %v", err)
	}
	firstID, _ := binder.Ref("t1").EventID()
	store.DropEvent(firstID)

	if err := o.SyncTask(context.Background(), tk); err != nil {
		t.Fatalf("resync after external delete: %v", err)
	}

	secondID, bound := binder.Ref("t1").EventID()
	if !bound || secondID == firstID {
		t.Fatalf("expected the reference to re-bind to a new event, got %q", secondID)
	}
	if store.EventCount() != 1 {
		t.Fatalf("expected exactly one event after recreate, got %d", store.EventCount())
	}
}

func TestSyncTask_ConcurrentCallsCreateOneEvent(t *testing.T) {
	t.Parallel()

	store := testfixtures.NewFakeCalendarStore()
	binder := testfixtures.NewMemoryBinder()
	o := newOrchestrator(store, binder)
	mustSetup(t, o)

	tk := task("t1")
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := o.SyncTask(context.Background(), tk); err != nil {
				t.Errorf("concurrent sync: %v", err)
			}
		}()
	}
	wg.Wait()

	if store.EventCount() != 1 {
		t.Fatalf("expected exactly one event after concurrent syncs, got %d", store.EventCount())
	}
}

func TestSyncTask_MissingCalendarSurfacesResourceNotFound(t *testing.T) {
	t.Parallel()

	store := testfixtures.NewFakeCalendarStore()
	o := newOrchestrator(store, testfixtures.NewMemoryBinder())
	mustSetup(t, o)

	calendars, _ := store.ListCalendars(context.Background())
	store.DropCalendar(calendars[0].ID)

	err := o.SyncTask(context.Background(), task("t1"))
	if !errors.Is(err, calendarsync.ErrResourceNotFound) {
		t.Fatalf("expected ErrResourceNotFound, got %v", err)
	}

	// The cached Ready state is invalidated; the caller re-runs setup.
	if err := o.SyncTask(context.Background(), task("t1")); !errors.Is(err, calendarsync.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured after invalidation, got %v", err)
	}
}

func TestSyncTask_WrapsStoreFailuresAsTransient(t *testing.T) {
	t.Parallel()

	store := testfixtures.NewFakeCalendarStore()
	o := newOrchestrator(store, testfixtures.NewMemoryBinder())
	mustSetup(t, o)

	store.CreateEventErr = errors.New("store offline")

	err := o.SyncTask(context.Background(), task("t1"))
	var transientErr *calendarsync.TransientError
	if !errors.As(err, &transientErr) {
		t.Fatalf("expected TransientError, got %v", err)
	}
}

func TestRemoveTask_DeletesEventAndUnbinds(t *testing.T) {
	t.Parallel()

	store := testfixtures.NewFakeCalendarStore()
	binder := testfixtures.NewMemoryBinder()
	o := newOrchestrator(store, binder)
	mustSetup(t, o)

	tk := task("t1")
	if err := o.SyncTask(context.Background(), tk); err != nil {
		t.Fatalf("sync: %v", err)
	}
	tk.EventRef = binder.Ref("t1")

	if err := o.RemoveTask(context.Background(), tk); err != nil {
		t.Fatalf("remove: %v", err)
	}

	if store.EventCount() != 0 {
		t.Fatalf("expected the event to be deleted")
	}
	if binder.Ref("t1").IsSynced() {
		t.Fatalf("expected the reference to return to NotSynced")
	}
}

func TestRemoveTask_MissingEventIsSuccess(t *testing.T) {
	t.Parallel()

	store := testfixtures.NewFakeCalendarStore()
	binder := testfixtures.NewMemoryBinder()
	o := newOrchestrator(store, binder)
	mustSetup(t, o)

	tk := task("t1")
	if err := o.SyncTask(context.Background(), tk); err != nil {
		t.Fatalf("sync: %v", err)
	}
	eventID, _ := binder.Ref("t1").EventID()
	store.DropEvent(eventID)

	if err := o.RemoveTask(context.Background(), tk); err != nil {
		t.Fatalf("delete of an absent event must succeed, got %v", err)
	}
	if binder.Ref("t1").IsSynced() {
		t.Fatalf("expected the reference to return to NotSynced")
	}
}

func TestRemoveTask_UnboundTaskIsNoOp(t *testing.T) {
	t.Parallel()

	store := testfixtures.NewFakeCalendarStore()
	o := newOrchestrator(store, testfixtures.NewMemoryBinder())

	// No setup needed: an unbound task has nothing to remove.
	if err := o.RemoveTask(context.Background(), task("t1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func mustSetup(t *testing.T, o *calendarsync.Orchestrator) {
	t.Helper()
	ok, err := o.SetupCalendar(context.Background())
	if err != nil || !ok {
		t.Fatalf("setup failed: ok=%v err=%v", ok, err)
	}
}
