package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/example/momentum-planner/internal/application"
	"github.com/example/momentum-planner/internal/calendarsync"
	"github.com/example/momentum-planner/internal/calendarsync/google"
	"github.com/example/momentum-planner/internal/config"
	"github.com/example/momentum-planner/internal/logging"
	"github.com/example/momentum-planner/internal/persistence"
	"github.com/example/momentum-planner/internal/persistence/sqlite"
	"github.com/example/momentum-planner/internal/reconcile"
	"github.com/example/momentum-planner/internal/recurrence"
)

func main() {
	logger := logging.New(os.Stdout, slog.LevelInfo)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	pool, err := sqlite.Open(cfg.SQLiteDSN)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := pool.Close(); cerr != nil {
			logger.Error("failed to close database", "error", cerr)
		}
	}()

	if err := sqlite.Migrate(context.Background(), pool); err != nil {
		logger.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	taskRepo := sqlite.NewTaskRepository(pool)
	blockRepo := sqlite.NewTimeBlockRepository(pool)
	repeatRepo := sqlite.NewRepeatRepository(pool)
	snapshotRepo := sqlite.NewSnapshotRepository(pool)

	idGenerator := uuid.NewString
	now := time.Now

	binder := application.NewTaskBinder(taskRepo)

	var syncer application.CalendarSyncer
	var reconciler *reconcile.Reconciler
	if cfg.SyncEnabled {
		store, err := google.NewStore(ctx, cfg.GoogleCredentialsFile, cfg.GoogleTokenFile)
		if err != nil {
			logger.Error("failed to build calendar store", "error", err)
			os.Exit(1)
		}

		orchestrator := calendarsync.NewOrchestrator(store, binder, cfg.CalendarName, cfg.PermissionPromptTimeout, logger)
		granted, err := orchestrator.SetupCalendar(ctx)
		switch {
		case err != nil:
			logger.Warn("calendar setup failed, continuing without sync", "error", err)
		case !granted:
			logger.Warn("calendar access denied, continuing without sync")
		default:
			syncer = orchestrator
			calendar, err := findCalendar(ctx, store, cfg.CalendarName)
			if err != nil {
				logger.Warn("failed to locate planner calendar, reconciliation disabled", "error", err)
			} else {
				local := newSnapshotStore(snapshotRepo, now)
				remote := newCalendarRemoteStore(store, calendar.ID)
				reconciler = reconcile.NewReconciler(local, remote, time.Time{}, logger, now)
				if err := seedSnapshots(ctx, taskRepo, snapshotRepo, remote, now); err != nil {
					logger.Warn("failed to seed snapshot cache", "error", err)
				}
			}
		}
	}

	taskService := application.NewTaskService(taskRepo, syncer, logger, idGenerator, now)
	plannerService := application.NewPlannerService(taskRepo, blockRepo, repeatRepo, recurrence.NewEngine(time.UTC), logger, idGenerator, now)

	tasks, err := taskService.ListTasks(ctx)
	if err != nil {
		logger.Error("failed to list tasks", "error", err)
		os.Exit(1)
	}
	horizonStart := now()
	horizonEnd := horizonStart.AddDate(0, 0, cfg.PlanningHorizonDays)
	blocks, warnings, err := plannerService.ListBlocks(ctx, application.ListBlocksParams{
		StartsAfter: &horizonStart,
		EndsBefore:  &horizonEnd,
	})
	if err != nil {
		logger.Error("failed to list time blocks", "error", err)
		os.Exit(1)
	}
	logger.Info("planner ready",
		"tasks", len(tasks),
		"blocks", len(blocks),
		"overlap_warnings", len(warnings),
		"sync_enabled", syncer != nil,
	)

	if reconciler == nil {
		<-ctx.Done()
		logger.Info("shutting down")
		return
	}

	ticker := time.NewTicker(cfg.ReconcileInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return
		case <-ticker.C:
			if _, err := reconciler.Run(ctx); err != nil {
				logger.Error("reconciliation pass failed", "error", err)
			}
		}
	}
}

// findCalendar resolves the planner calendar by title after setup ensured it
// exists.
func findCalendar(ctx context.Context, store calendarsync.CalendarStore, title string) (calendarsync.Calendar, error) {
	calendars, err := store.ListCalendars(ctx)
	if err != nil {
		return calendarsync.Calendar{}, err
	}
	for _, calendar := range calendars {
		if calendar.Title == title {
			return calendar, nil
		}
	}
	return calendarsync.Calendar{}, errors.New("planner calendar not found")
}

// seedSnapshots primes the local snapshot cache with the remote state of
// every event-bound task so the first reconciliation pass has a baseline.
func seedSnapshots(ctx context.Context, tasks persistence.TaskRepository, snapshots persistence.SnapshotRepository, remote reconcile.RemoteStore, now func() time.Time) error {
	records, err := tasks.ListTasks(ctx)
	if err != nil {
		return err
	}
	for _, record := range records {
		if record.EventID == nil {
			continue
		}
		if _, err := snapshots.GetSnapshot(ctx, *record.EventID); err == nil {
			continue
		} else if !errors.Is(err, persistence.ErrNotFound) {
			return err
		}
		snapshot, err := remote.FetchRecord(ctx, *record.EventID)
		if err != nil {
			return err
		}
		if err := snapshots.SaveSnapshot(ctx, persistence.SyncSnapshot{
			RecordID:    snapshot.RecordID,
			ChangeToken: snapshot.ChangeToken,
			ModifiedAt:  snapshot.ModifiedAt,
			Deleted:     snapshot.Deleted,
			Fields:      snapshot.Fields,
			UpdatedAt:   now().UTC(),
		}); err != nil {
			return err
		}
	}
	return nil
}

// snapshotStore adapts the SQLite snapshot repository to the reconciler's
// local cache surface.
type snapshotStore struct {
	repo persistence.SnapshotRepository
	now  func() time.Time
}

func newSnapshotStore(repo persistence.SnapshotRepository, now func() time.Time) *snapshotStore {
	if now == nil {
		now = time.Now
	}
	return &snapshotStore{repo: repo, now: now}
}

func (s *snapshotStore) ListSnapshots(ctx context.Context) ([]reconcile.Snapshot, error) {
	records, err := s.repo.ListSnapshots(ctx)
	if err != nil {
		return nil, err
	}
	snapshots := make([]reconcile.Snapshot, 0, len(records))
	for _, record := range records {
		snapshots = append(snapshots, reconcile.Snapshot{
			RecordID:    record.RecordID,
			ChangeToken: record.ChangeToken,
			ModifiedAt:  record.ModifiedAt,
			Deleted:     record.Deleted,
			Fields:      record.Fields,
		})
	}
	return snapshots, nil
}

func (s *snapshotStore) SaveSnapshot(ctx context.Context, snapshot reconcile.Snapshot) error {
	return s.repo.SaveSnapshot(ctx, persistence.SyncSnapshot{
		RecordID:    snapshot.RecordID,
		ChangeToken: snapshot.ChangeToken,
		ModifiedAt:  snapshot.ModifiedAt,
		Deleted:     snapshot.Deleted,
		Fields:      snapshot.Fields,
		UpdatedAt:   s.now().UTC(),
	})
}

// calendarRemoteStore treats bound calendar events as the remote copies of
// synchronized records. Records are keyed by event ID; change tokens are
// derived from event content, so equal tokens mean identical events.
type calendarRemoteStore struct {
	store      calendarsync.CalendarStore
	calendarID string
}

func newCalendarRemoteStore(store calendarsync.CalendarStore, calendarID string) *calendarRemoteStore {
	return &calendarRemoteStore{store: store, calendarID: calendarID}
}

func (r *calendarRemoteStore) FetchRecord(ctx context.Context, id string) (reconcile.Snapshot, error) {
	event, found, err := r.store.FindEvent(ctx, r.calendarID, id)
	if err != nil {
		return reconcile.Snapshot{}, err
	}
	if !found {
		return reconcile.Snapshot{RecordID: id, Deleted: true}, nil
	}
	return eventSnapshot(id, event), nil
}

func (r *calendarRemoteStore) PushRecord(ctx context.Context, snapshot reconcile.Snapshot) (reconcile.PushResult, error) {
	if snapshot.Deleted {
		if err := r.store.DeleteEvent(ctx, r.calendarID, snapshot.RecordID); err != nil {
			return reconcile.PushResult{}, err
		}
		return reconcile.PushResult{Accepted: true, ChangeToken: snapshot.ChangeToken}, nil
	}

	event, err := snapshotEvent(snapshot, r.calendarID)
	if err != nil {
		return reconcile.PushResult{}, err
	}

	_, found, err := r.store.FindEvent(ctx, r.calendarID, snapshot.RecordID)
	if err != nil {
		return reconcile.PushResult{}, err
	}
	if found {
		if err := r.store.UpdateEvent(ctx, event); err != nil {
			return reconcile.PushResult{}, err
		}
		return reconcile.PushResult{Accepted: true, ChangeToken: eventToken(event)}, nil
	}

	created, err := r.store.CreateEvent(ctx, r.calendarID, calendarsync.EventDraft{
		Title: event.Title,
		Start: event.Start,
		End:   event.End,
		Notes: event.Notes,
	})
	if err != nil {
		return reconcile.PushResult{}, err
	}
	return reconcile.PushResult{Accepted: true, ChangeToken: eventToken(created)}, nil
}

func eventSnapshot(recordID string, event calendarsync.Event) reconcile.Snapshot {
	// Stores that report no modification instant fall back to the scheduled
	// end, which at least orders rescheduled copies of the same event.
	modifiedAt := event.Updated
	if modifiedAt.IsZero() {
		modifiedAt = event.End
	}
	return reconcile.Snapshot{
		RecordID:    recordID,
		ChangeToken: eventToken(event),
		ModifiedAt:  modifiedAt,
		Fields: map[string]string{
			"title": event.Title,
			"notes": event.Notes,
			"start": event.Start.UTC().Format(time.RFC3339),
			"end":   event.End.UTC().Format(time.RFC3339),
		},
	}
}

func snapshotEvent(snapshot reconcile.Snapshot, calendarID string) (calendarsync.Event, error) {
	start, err := time.Parse(time.RFC3339, snapshot.Fields["start"])
	if err != nil {
		return calendarsync.Event{}, err
	}
	end, err := time.Parse(time.RFC3339, snapshot.Fields["end"])
	if err != nil {
		return calendarsync.Event{}, err
	}
	return calendarsync.Event{
		ID:         snapshot.RecordID,
		CalendarID: calendarID,
		Title:      snapshot.Fields["title"],
		Start:      start,
		End:        end,
		Notes:      snapshot.Fields["notes"],
	}, nil
}

// eventToken derives a content token for an event. Two events with the same
// title, span, and notes carry the same token.
func eventToken(event calendarsync.Event) string {
	h := sha256.New()
	h.Write([]byte(event.Title))
	h.Write([]byte{0})
	h.Write([]byte(event.Notes))
	h.Write([]byte{0})
	h.Write([]byte(event.Start.UTC().Format(time.RFC3339)))
	h.Write([]byte{0})
	h.Write([]byte(event.End.UTC().Format(time.RFC3339)))
	return hex.EncodeToString(h.Sum(nil))[:16]
}
