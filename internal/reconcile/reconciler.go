package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/example/momentum-planner/internal/logging"
)

// LocalStore exposes the locally cached snapshots that a reconciliation pass
// compares against fresh remote state.
type LocalStore interface {
	ListSnapshots(ctx context.Context) ([]Snapshot, error)
	SaveSnapshot(ctx context.Context, snapshot Snapshot) error
}

// PushResult reports the outcome of pushing a record to the remote store.
type PushResult struct {
	Accepted    bool
	ChangeToken string
}

// RemoteStore is the capability surface consumed from the external record
// store during reconciliation.
type RemoteStore interface {
	FetchRecord(ctx context.Context, id string) (Snapshot, error)
	PushRecord(ctx context.Context, snapshot Snapshot) (PushResult, error)
}

// Summary captures what a single reconciliation pass did.
type Summary struct {
	Examined int
	Pushed   int
	Resolved int
	Failed   int
}

// Reconciler runs periodic reconciliation passes: each pass fetches the
// remote copy of every cached record, detects divergence, resolves it with
// the convergent policy, and pushes local-side winners back out. The
// reconciler performs no internal retries; a failed record is retried by the
// next pass.
type Reconciler struct {
	local    LocalStore
	remote   RemoteStore
	logger   *slog.Logger
	now      func() time.Time
	parallel int

	mu       sync.Mutex
	lastSync time.Time
}

// NewReconciler wires a reconciler over the two stores. The initial lastSync
// marks the last known consistent instant; zero means never synced.
func NewReconciler(local LocalStore, remote RemoteStore, lastSync time.Time, logger *slog.Logger, now func() time.Time) *Reconciler {
	if now == nil {
		now = time.Now
	}
	return &Reconciler{
		local:    local,
		remote:   remote,
		logger:   logger,
		now:      now,
		parallel: 4,
		lastSync: lastSync,
	}
}

// LastSync returns the instant of the last completed pass.
func (r *Reconciler) LastSync() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastSync
}

// Run executes one reconciliation pass. Individual record failures are
// counted and logged rather than aborting the pass; only a failure to
// enumerate the local cache fails the pass outright.
func (r *Reconciler) Run(ctx context.Context) (Summary, error) {
	if r == nil || r.local == nil || r.remote == nil {
		return Summary{}, fmt.Errorf("reconciler is not configured")
	}

	logger := r.passLogger(ctx)
	started := r.now()

	snapshots, err := r.local.ListSnapshots(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to list local snapshots: %w", err)
	}

	lastSync := r.LastSync()

	var mu sync.Mutex
	summary := Summary{Examined: len(snapshots)}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(r.parallel)

	for _, local := range snapshots {
		local := local
		group.Go(func() error {
			outcome, err := r.reconcileRecord(groupCtx, local, lastSync)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				summary.Failed++
				logger.Warn("record reconciliation failed", "record_id", local.RecordID, "error", err)
				return nil
			}
			if outcome.resolved {
				summary.Resolved++
			}
			if outcome.pushed {
				summary.Pushed++
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return summary, err
	}

	r.mu.Lock()
	r.lastSync = started
	r.mu.Unlock()

	logger.Info("reconciliation pass complete",
		"examined", summary.Examined,
		"pushed", summary.Pushed,
		"resolved", summary.Resolved,
		"failed", summary.Failed,
	)
	return summary, nil
}

type recordOutcome struct {
	resolved bool
	pushed   bool
}

func (r *Reconciler) reconcileRecord(ctx context.Context, local Snapshot, lastSync time.Time) (recordOutcome, error) {
	remote, err := r.remote.FetchRecord(ctx, local.RecordID)
	if err != nil {
		return recordOutcome{}, fmt.Errorf("fetch: %w", err)
	}

	conflict, diverged := Detect(local, remote, lastSync)
	if !diverged {
		// Tokens match: the remote did not move. Push local edits made since
		// the last pass, otherwise nothing to do.
		if !local.ModifiedAt.After(lastSync) {
			return recordOutcome{}, nil
		}
		pushed, err := r.pushAndSave(ctx, local)
		return recordOutcome{pushed: pushed}, err
	}

	resolved := Resolve(conflict)

	// When the remote copy won outright, adopting it locally is enough.
	if resolved.ChangeToken == remote.ChangeToken {
		if err := r.local.SaveSnapshot(ctx, remote); err != nil {
			return recordOutcome{}, fmt.Errorf("save: %w", err)
		}
		return recordOutcome{resolved: true}, nil
	}

	pushed, err := r.pushAndSave(ctx, resolved)
	return recordOutcome{resolved: true, pushed: pushed}, err
}

func (r *Reconciler) pushAndSave(ctx context.Context, snapshot Snapshot) (bool, error) {
	result, err := r.remote.PushRecord(ctx, snapshot)
	if err != nil {
		return false, fmt.Errorf("push: %w", err)
	}
	if !result.Accepted {
		return false, fmt.Errorf("push rejected for record %s", snapshot.RecordID)
	}

	snapshot.ChangeToken = result.ChangeToken
	if err := r.local.SaveSnapshot(ctx, snapshot); err != nil {
		return true, fmt.Errorf("save: %w", err)
	}
	return true, nil
}

func (r *Reconciler) passLogger(ctx context.Context) *slog.Logger {
	logger := logging.FromContext(ctx)
	if logger == nil {
		logger = r.logger
	}
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With("component", "reconciler")
}
