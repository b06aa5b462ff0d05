package calendarsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/example/momentum-planner/internal/logging"
)

// Task is the narrow view of a task entity the orchestrator consumes. The
// orchestrator never mutates a task directly; the event reference is the one
// field it owns, persisted through the Binder.
type Task struct {
	ID                string
	Title             string
	Notes             string
	DueDate           *time.Time
	EstimatedDuration time.Duration
	EventRef          EventRef
}

// Binder reads and persists event-reference transitions against the task
// store. It is the only path from the orchestrator into task state.
type Binder interface {
	EventRef(ctx context.Context, taskID string) (EventRef, error)
	SaveEventRef(ctx context.Context, taskID string, ref EventRef) error
}

// Events without an estimate still need a nonzero span in the external store.
const defaultEventDuration = time.Hour

// defaultPromptTimeout bounds the permission-prompt suspension so a prompt
// that is never answered does not hang callers. Timeout counts as denial.
const defaultPromptTimeout = 90 * time.Second

type setupState int

const (
	stateUninitialized setupState = iota
	stateRequesting
	stateDenied
	stateReady
)

// Orchestrator keeps tasks idempotently in sync with a dedicated calendar in
// the external store. One instance is constructed at the composition root and
// shared; all methods are safe for concurrent use.
type Orchestrator struct {
	store         CalendarStore
	binder        Binder
	calendarTitle string
	promptTimeout time.Duration
	logger        *slog.Logger

	setupGroup singleflight.Group

	mu        sync.Mutex
	state     setupState
	calendar  Calendar
	taskLocks map[string]*sync.Mutex
}

// NewOrchestrator wires an orchestrator over the external store. The
// calendar titled calendarTitle is located or created on setup.
func NewOrchestrator(store CalendarStore, binder Binder, calendarTitle string, promptTimeout time.Duration, logger *slog.Logger) *Orchestrator {
	if promptTimeout <= 0 {
		promptTimeout = defaultPromptTimeout
	}
	return &Orchestrator{
		store:         store,
		binder:        binder,
		calendarTitle: calendarTitle,
		promptTimeout: promptTimeout,
		logger:        logger,
		taskLocks:     make(map[string]*sync.Mutex),
	}
}

// SetupCalendar requests the capability grant and provisions the dedicated
// sync calendar. The grant is requested at most once per process: concurrent
// callers share the single in-flight request, and the outcome (granted or
// denied) is cached. Returns true only when a usable calendar handle is
// cached; repeated calls after success return true immediately.
func (o *Orchestrator) SetupCalendar(ctx context.Context) (bool, error) {
	if o == nil || o.store == nil {
		return false, fmt.Errorf("calendarsync: orchestrator is not configured")
	}

	o.mu.Lock()
	switch o.state {
	case stateReady:
		o.mu.Unlock()
		return true, nil
	case stateDenied:
		o.mu.Unlock()
		return false, nil
	}
	o.mu.Unlock()

	result, err, _ := o.setupGroup.Do("setup", func() (any, error) {
		return o.runSetup(ctx)
	})
	if err != nil {
		return false, err
	}
	return result.(bool), nil
}

func (o *Orchestrator) runSetup(ctx context.Context) (bool, error) {
	logger := o.opLogger(ctx, "setup_calendar")

	o.mu.Lock()
	if o.state == stateReady {
		o.mu.Unlock()
		return true, nil
	}
	if o.state == stateDenied {
		o.mu.Unlock()
		return false, nil
	}
	o.state = stateRequesting
	o.mu.Unlock()

	promptCtx, cancel := context.WithTimeout(ctx, o.promptTimeout)
	defer cancel()

	granted, err := o.store.RequestAccess(promptCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			// An unanswered prompt counts as denial.
			granted = false
		} else {
			o.setState(stateUninitialized)
			return false, transient("access request", err)
		}
	}

	if !granted {
		o.setState(stateDenied)
		logger.Info("calendar access denied; operating local-only")
		return false, nil
	}

	calendar, err := o.ensureCalendar(ctx)
	if err != nil {
		o.setState(stateUninitialized)
		return false, err
	}

	o.mu.Lock()
	o.state = stateReady
	o.calendar = calendar
	o.mu.Unlock()

	logger.Info("sync calendar ready", "calendar_id", calendar.ID, "title", calendar.Title)
	return true, nil
}

// ensureCalendar locates the app-owned calendar by title, creating it when
// absent.
func (o *Orchestrator) ensureCalendar(ctx context.Context) (Calendar, error) {
	calendars, err := o.store.ListCalendars(ctx)
	if err != nil {
		return Calendar{}, transient("calendar list", err)
	}
	for _, calendar := range calendars {
		if calendar.Title == o.calendarTitle {
			return calendar, nil
		}
	}

	calendar, err := o.store.CreateCalendar(ctx, o.calendarTitle)
	if err != nil {
		return Calendar{}, transient("calendar create", err)
	}
	return calendar, nil
}

// SyncTask creates or updates the external event for a task and transitions
// its event reference through the Binder. Two consecutive calls with no
// intervening external mutation produce exactly one event and leave the
// reference unchanged on the second call.
func (o *Orchestrator) SyncTask(ctx context.Context, task Task) error {
	calendar, err := o.readyCalendar()
	if err != nil {
		return err
	}
	if task.DueDate == nil {
		return ErrNoDueDate
	}

	// Serialize the create-or-update branch per task so two concurrent
	// calls cannot race into creating two events.
	unlock := o.lockTask(task.ID)
	defer unlock()

	logger := o.opLogger(ctx, "sync_task").With("task_id", task.ID)
	draft := o.draftFor(task)

	// The caller's task copy may be stale; the persisted binding read under
	// the task lock is authoritative.
	ref, err := o.currentRef(ctx, task)
	if err != nil {
		return err
	}

	eventID, bound := ref.EventID()
	if !bound {
		return o.createAndBind(ctx, logger, calendar, task.ID, draft)
	}

	event, found, err := o.store.FindEvent(ctx, calendar.ID, eventID)
	if err != nil {
		return o.classify("event lookup", err)
	}
	if !found {
		// The event was deleted out-of-band; fall back to create-new and
		// re-bind the reference.
		logger.Info("external event missing; recreating", "event_id", eventID)
		return o.createAndBind(ctx, logger, calendar, task.ID, draft)
	}

	event.Title = draft.Title
	event.Start = draft.Start
	event.End = draft.End
	event.Notes = draft.Notes
	if err := o.store.UpdateEvent(ctx, event); err != nil {
		return o.classify("event update", err)
	}
	return nil
}

// RemoveTask deletes the external event for a task, treating an
// already-missing event as success, and unbinds the reference.
func (o *Orchestrator) RemoveTask(ctx context.Context, task Task) error {
	if o == nil || o.store == nil {
		return ErrNotConfigured
	}

	unlock := o.lockTask(task.ID)
	defer unlock()

	ref, err := o.currentRef(ctx, task)
	if err != nil {
		return err
	}
	eventID, bound := ref.EventID()
	if !bound {
		return nil
	}

	calendar, err := o.readyCalendar()
	if err != nil {
		return err
	}

	if err := o.store.DeleteEvent(ctx, calendar.ID, eventID); err != nil {
		return o.classify("event delete", err)
	}
	return o.bind(ctx, task.ID, NotSynced())
}

func (o *Orchestrator) createAndBind(ctx context.Context, logger *slog.Logger, calendar Calendar, taskID string, draft EventDraft) error {
	event, err := o.store.CreateEvent(ctx, calendar.ID, draft)
	if err != nil {
		return o.classify("event create", err)
	}
	if err := o.bind(ctx, taskID, Synced(event.ID)); err != nil {
		return err
	}
	logger.Info("event created", "event_id", event.ID)
	return nil
}

func (o *Orchestrator) currentRef(ctx context.Context, task Task) (EventRef, error) {
	if o.binder == nil {
		return task.EventRef, nil
	}
	ref, err := o.binder.EventRef(ctx, task.ID)
	if err != nil {
		return EventRef{}, fmt.Errorf("calendarsync: failed to load event reference for task %s: %w", task.ID, err)
	}
	return ref, nil
}

func (o *Orchestrator) bind(ctx context.Context, taskID string, ref EventRef) error {
	if o.binder == nil {
		return nil
	}
	if err := o.binder.SaveEventRef(ctx, taskID, ref); err != nil {
		return fmt.Errorf("calendarsync: failed to persist event reference for task %s: %w", taskID, err)
	}
	return nil
}

func (o *Orchestrator) draftFor(task Task) EventDraft {
	start := *task.DueDate
	duration := task.EstimatedDuration
	if duration <= 0 {
		duration = defaultEventDuration
	}
	return EventDraft{
		Title: task.Title,
		Start: start,
		End:   start.Add(duration),
		Notes: task.Notes,
	}
}

// readyCalendar returns the cached calendar handle, mapping setup state to
// the error taxonomy.
func (o *Orchestrator) readyCalendar() (Calendar, error) {
	if o == nil || o.store == nil {
		return Calendar{}, ErrNotConfigured
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	switch o.state {
	case stateReady:
		return o.calendar, nil
	case stateDenied:
		return Calendar{}, ErrAccessDenied
	default:
		return Calendar{}, ErrNotConfigured
	}
}

// classify maps a store failure onto the error taxonomy. A missing calendar
// invalidates the cached Ready state so the caller can re-run setup; the
// handle is only re-validated on the next operation, never polled.
func (o *Orchestrator) classify(op string, err error) error {
	if errors.Is(err, ErrResourceNotFound) {
		o.setState(stateUninitialized)
		return fmt.Errorf("calendarsync: %s: %w", op, ErrResourceNotFound)
	}
	return transient(op, err)
}

func (o *Orchestrator) setState(state setupState) {
	o.mu.Lock()
	o.state = state
	o.mu.Unlock()
}

func (o *Orchestrator) lockTask(taskID string) func() {
	o.mu.Lock()
	lock, ok := o.taskLocks[taskID]
	if !ok {
		lock = &sync.Mutex{}
		o.taskLocks[taskID] = lock
	}
	o.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

func (o *Orchestrator) opLogger(ctx context.Context, operation string) *slog.Logger {
	logger := logging.FromContext(ctx)
	if logger == nil {
		logger = o.logger
	}
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With("component", "calendarsync", "operation", operation)
}
