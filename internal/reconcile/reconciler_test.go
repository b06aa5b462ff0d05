package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type localStoreStub struct {
	mu        sync.Mutex
	snapshots []Snapshot
	saved     []Snapshot
	listErr   error
	saveErr   error
}

func (s *localStoreStub) ListSnapshots(ctx context.Context) ([]Snapshot, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Snapshot, len(s.snapshots))
	copy(out, s.snapshots)
	return out, nil
}

func (s *localStoreStub) SaveSnapshot(ctx context.Context, snapshot Snapshot) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, snapshot)
	return nil
}

type remoteStoreStub struct {
	mu       sync.Mutex
	records  map[string]Snapshot
	pushed   []Snapshot
	fetchErr error
	pushErr  error
	reject   bool
}

func (s *remoteStoreStub) FetchRecord(ctx context.Context, id string) (Snapshot, error) {
	if s.fetchErr != nil {
		return Snapshot{}, s.fetchErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[id]
	if !ok {
		return Snapshot{}, errors.New("remote: record not found")
	}
	return record, nil
}

func (s *remoteStoreStub) PushRecord(ctx context.Context, snapshot Snapshot) (PushResult, error) {
	if s.pushErr != nil {
		return PushResult{}, s.pushErr
	}
	if s.reject {
		return PushResult{Accepted: false}, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pushed = append(s.pushed, snapshot)
	return PushResult{Accepted: true, ChangeToken: snapshot.ChangeToken + "+1"}, nil
}

func TestReconciler_PushesLocalEditsWhenTokensMatch(t *testing.T) {
	t.Parallel()

	local := snapshot("tok-1", syncEpoch.Add(time.Minute), false)
	localStore := &localStoreStub{snapshots: []Snapshot{local}}
	remoteStore := &remoteStoreStub{records: map[string]Snapshot{
		"rec-1": snapshot("tok-1", syncEpoch, false),
	}}

	r := NewReconciler(localStore, remoteStore, syncEpoch, nil, func() time.Time { return syncEpoch.Add(2 * time.Minute) })

	summary, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Pushed != 1 || summary.Resolved != 0 || summary.Failed != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	if len(localStore.saved) != 1 {
		t.Fatalf("expected 1 saved snapshot, got %d", len(localStore.saved))
	}
	if got := localStore.saved[0].ChangeToken; got != "tok-1+1" {
		t.Fatalf("expected the fresh change token to be cached, got %s", got)
	}
}

func TestReconciler_SkipsUnchangedRecords(t *testing.T) {
	t.Parallel()

	local := snapshot("tok-1", syncEpoch.Add(-time.Hour), false)
	localStore := &localStoreStub{snapshots: []Snapshot{local}}
	remoteStore := &remoteStoreStub{records: map[string]Snapshot{
		"rec-1": snapshot("tok-1", syncEpoch.Add(-time.Hour), false),
	}}

	r := NewReconciler(localStore, remoteStore, syncEpoch, nil, nil)

	summary, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Pushed != 0 || len(remoteStore.pushed) != 0 {
		t.Fatalf("unchanged record must not be pushed: %+v", summary)
	}
}

func TestReconciler_AdoptsRemoteWinnerLocally(t *testing.T) {
	t.Parallel()

	local := snapshot("tok-local", syncEpoch, false)
	remote := snapshot("tok-remote", syncEpoch.Add(time.Hour), false)
	remote.Fields = map[string]string{"title": "remote wins"}

	localStore := &localStoreStub{snapshots: []Snapshot{local}}
	remoteStore := &remoteStoreStub{records: map[string]Snapshot{"rec-1": remote}}

	r := NewReconciler(localStore, remoteStore, syncEpoch.Add(-time.Hour), nil, nil)

	summary, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Resolved != 1 || summary.Pushed != 0 {
		t.Fatalf("remote winner must be adopted without a push: %+v", summary)
	}

	if len(localStore.saved) != 1 {
		t.Fatalf("expected 1 saved snapshot, got %d", len(localStore.saved))
	}
	if diff := cmp.Diff(remote, localStore.saved[0]); diff != "" {
		t.Fatalf("cached snapshot must match the remote winner (-want +got):\n%s", diff)
	}
}

func TestReconciler_PushesLocalWinner(t *testing.T) {
	t.Parallel()

	local := snapshot("tok-local", syncEpoch.Add(time.Hour), false)
	remote := snapshot("tok-remote", syncEpoch, false)

	localStore := &localStoreStub{snapshots: []Snapshot{local}}
	remoteStore := &remoteStoreStub{records: map[string]Snapshot{"rec-1": remote}}

	r := NewReconciler(localStore, remoteStore, syncEpoch.Add(-time.Hour), nil, nil)

	summary, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Resolved != 1 || summary.Pushed != 1 {
		t.Fatalf("local winner must be pushed: %+v", summary)
	}
	if len(remoteStore.pushed) != 1 || remoteStore.pushed[0].ChangeToken != "tok-local" {
		t.Fatalf("expected the local snapshot to be pushed, got %+v", remoteStore.pushed)
	}
}

func TestReconciler_CountsFailuresWithoutAbortingPass(t *testing.T) {
	t.Parallel()

	localStore := &localStoreStub{snapshots: []Snapshot{
		snapshot("tok-1", syncEpoch, false),
	}}
	remoteStore := &remoteStoreStub{fetchErr: errors.New("store unavailable")}

	r := NewReconciler(localStore, remoteStore, syncEpoch, nil, nil)

	summary, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("record failures must not fail the pass: %v", err)
	}
	if summary.Failed != 1 {
		t.Fatalf("expected 1 failed record, got %d", summary.Failed)
	}
}

func TestReconciler_ListFailureFailsPass(t *testing.T) {
	t.Parallel()

	localStore := &localStoreStub{listErr: errors.New("cache corrupt")}
	r := NewReconciler(localStore, &remoteStoreStub{}, syncEpoch, nil, nil)

	if _, err := r.Run(context.Background()); err == nil {
		t.Fatalf("expected an error when the local cache cannot be listed")
	}
}

func TestReconciler_AdvancesLastSyncAfterPass(t *testing.T) {
	t.Parallel()

	passTime := syncEpoch.Add(30 * time.Minute)
	r := NewReconciler(&localStoreStub{}, &remoteStoreStub{}, syncEpoch, nil, func() time.Time { return passTime })

	if _, err := r.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !r.LastSync().Equal(passTime) {
		t.Fatalf("expected lastSync %v, got %v", passTime, r.LastSync())
	}
}
