package calendarsync

// EventRef is the ownership link between a task and its external calendar
// event. It is a two-variant tagged value rather than an optional string so
// call sites handle both variants explicitly. The zero value is NotSynced.
type EventRef struct {
	synced bool
	id     string
}

// NotSynced returns the unbound variant.
func NotSynced() EventRef {
	return EventRef{}
}

// Synced returns a reference bound to the external event id. An empty id
// yields NotSynced.
func Synced(id string) EventRef {
	if id == "" {
		return EventRef{}
	}
	return EventRef{synced: true, id: id}
}

// IsSynced reports whether the reference is bound to an external event.
func (r EventRef) IsSynced() bool {
	return r.synced
}

// EventID returns the bound event id and whether one exists.
func (r EventRef) EventID() (string, bool) {
	if !r.synced {
		return "", false
	}
	return r.id, true
}

func (r EventRef) String() string {
	if !r.synced {
		return "not-synced"
	}
	return "synced:" + r.id
}
