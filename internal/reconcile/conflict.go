package reconcile

import "time"

// Snapshot is a point-in-time copy of a synchronized record. Snapshots exist
// only for the duration of a reconciliation pass; the pass consumes them and
// writes a resolved outcome back to the local cache.
type Snapshot struct {
	RecordID    string
	ChangeToken string
	ModifiedAt  time.Time
	Deleted     bool
	Fields      map[string]string
}

// Kind classifies how the local and remote copies of a record diverged.
type Kind string

const (
	// KindBothModified indicates both copies changed since the last sync.
	KindBothModified Kind = "both_modified"
	// KindLocalDeletedRemoteModified indicates the local copy was deleted
	// while the remote copy was modified.
	KindLocalDeletedRemoteModified Kind = "local_deleted_remote_modified"
	// KindRemoteDeletedLocalModified indicates the remote copy was deleted
	// while the local copy was modified.
	KindRemoteDeletedLocalModified Kind = "remote_deleted_local_modified"
	// KindBothDeleted indicates both copies were deleted independently.
	KindBothDeleted Kind = "both_deleted"
)

// Conflict pairs the two divergent snapshots with their classification.
// Conflicts are consumed immediately by Resolve and never persisted.
type Conflict struct {
	Kind   Kind
	Local  Snapshot
	Remote Snapshot
}

// Detect compares two snapshots of the same record and reports whether they
// diverged. Change-token equality is authoritative: when the tokens match no
// conflict exists even if in-memory field values differ, because the local
// copy is simply stale and will be refreshed on the next fetch.
//
// Detect is a total function with no side effects and no dependence on the
// wall clock; lastSync is accepted for callers that track pass boundaries but
// does not influence classification.
func Detect(local, remote Snapshot, lastSync time.Time) (Conflict, bool) {
	_ = lastSync

	if local.ChangeToken == remote.ChangeToken {
		return Conflict{}, false
	}

	conflict := Conflict{Local: local, Remote: remote}
	switch {
	case local.Deleted && !remote.Deleted:
		conflict.Kind = KindLocalDeletedRemoteModified
	case !local.Deleted && remote.Deleted:
		conflict.Kind = KindRemoteDeletedLocalModified
	case local.Deleted && remote.Deleted:
		conflict.Kind = KindBothDeleted
	default:
		conflict.Kind = KindBothModified
	}
	return conflict, true
}

// Resolve picks the winning snapshot for a detected conflict. The policy is
// deterministic and convergent: every client resolving the same pair arrives
// at the same outcome without coordination.
//
//   - Deletion wins over a modification only when the deleting side is at
//     least as recent; an older deletion loses and the record is resurrected
//     from the newer modification.
//   - When both sides were modified, the later ModifiedAt wins. An exact tie
//     goes to the remote snapshot so all clients converge.
//   - When both sides were deleted the record stays deleted.
func Resolve(conflict Conflict) Snapshot {
	local, remote := conflict.Local, conflict.Remote

	switch conflict.Kind {
	case KindLocalDeletedRemoteModified:
		if !local.ModifiedAt.Before(remote.ModifiedAt) {
			return local
		}
		return remote
	case KindRemoteDeletedLocalModified:
		if !remote.ModifiedAt.Before(local.ModifiedAt) {
			return remote
		}
		return local
	case KindBothDeleted:
		return remote
	default:
		if local.ModifiedAt.After(remote.ModifiedAt) {
			return local
		}
		return remote
	}
}
