package calendarsync

import (
	"context"
	"time"
)

// Calendar is a handle to a calendar in the external store.
type Calendar struct {
	ID    string
	Title string
}

// Event is a handle to an event in the external store. Updated is the
// store-reported modification instant; backends that do not report one leave
// it zero.
type Event struct {
	ID         string
	CalendarID string
	Title      string
	Start      time.Time
	End        time.Time
	Notes      string
	Updated    time.Time
}

// EventDraft carries the fields for a new event.
type EventDraft struct {
	Title string
	Start time.Time
	End   time.Time
	Notes string
}

// CalendarStore is the capability surface consumed from the external
// calendar store. RequestAccess may suspend on a user permission prompt;
// implementations must honor context cancellation. DeleteEvent against an
// already-absent event is success, not an error. Implementations signal a
// missing containing calendar with ErrResourceNotFound.
type CalendarStore interface {
	RequestAccess(ctx context.Context) (bool, error)
	ListCalendars(ctx context.Context) ([]Calendar, error)
	CreateCalendar(ctx context.Context, title string) (Calendar, error)
	CreateEvent(ctx context.Context, calendarID string, draft EventDraft) (Event, error)
	UpdateEvent(ctx context.Context, event Event) error
	DeleteEvent(ctx context.Context, calendarID, eventID string) error
	FindEvent(ctx context.Context, calendarID, eventID string) (Event, bool, error)
}

// AccessRequestCallback receives the outcome of a callback-style platform
// grant API.
type AccessRequestCallback func(granted bool, err error)

// CallbackAccessAdapter bridges a callback-based capability-request API onto
// the blocking RequestAccess shape. Platform bindings that only offer
// completion callbacks layer this adapter on top; everything else in the
// orchestrator sees the single asynchronous abstraction.
type CallbackAccessAdapter struct {
	request func(AccessRequestCallback)
}

// NewCallbackAccessAdapter wraps a callback-style grant function.
func NewCallbackAccessAdapter(request func(AccessRequestCallback)) *CallbackAccessAdapter {
	return &CallbackAccessAdapter{request: request}
}

// RequestAccess invokes the wrapped callback API and blocks until it
// completes or the context is done.
func (a *CallbackAccessAdapter) RequestAccess(ctx context.Context) (bool, error) {
	type outcome struct {
		granted bool
		err     error
	}

	done := make(chan outcome, 1)
	a.request(func(granted bool, err error) {
		done <- outcome{granted: granted, err: err}
	})

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case result := <-done:
		return result.granted, result.err
	}
}
