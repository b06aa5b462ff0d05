package testfixtures

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/example/momentum-planner/internal/calendarsync"
)

// FakeCalendarStore is an in-memory calendar store for tests. It honors the
// CalendarStore contract: deletes of absent events succeed, and operations
// against a missing calendar fail with calendarsync.ErrResourceNotFound.
type FakeCalendarStore struct {
	mu sync.Mutex

	// Granted controls the outcome of RequestAccess.
	Granted bool
	// AccessErr, when set, is returned by RequestAccess.
	AccessErr error
	// HangAccess simulates a permission prompt that is never answered;
	// RequestAccess blocks until the context is done.
	HangAccess bool

	// Now supplies the Updated stamp for created and updated events. Nil
	// means real time.
	Now func() time.Time

	accessRequests int
	nextID         int
	calendars      map[string]calendarsync.Calendar
	events         map[string]calendarsync.Event

	// Injected failures for individual operations.
	CreateEventErr error
	UpdateEventErr error
	FindEventErr   error
	DeleteEventErr error
	ListErr        error
}

// NewFakeCalendarStore returns a store that grants access by default.
func NewFakeCalendarStore() *FakeCalendarStore {
	return &FakeCalendarStore{
		Granted:   true,
		calendars: make(map[string]calendarsync.Calendar),
		events:    make(map[string]calendarsync.Event),
	}
}

// AccessRequests reports how many times RequestAccess was invoked.
func (s *FakeCalendarStore) AccessRequests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessRequests
}

// EventCount reports the number of events currently stored.
func (s *FakeCalendarStore) EventCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

// Event returns a stored event by id.
func (s *FakeCalendarStore) Event(id string) (calendarsync.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	event, ok := s.events[id]
	return event, ok
}

// DropEvent simulates an out-of-band deletion of an event.
func (s *FakeCalendarStore) DropEvent(id string) {
	s.mu.Lock()
	delete(s.events, id)
	s.mu.Unlock()
}

// DropCalendar simulates an out-of-band deletion of a calendar and its events.
func (s *FakeCalendarStore) DropCalendar(id string) {
	s.mu.Lock()
	delete(s.calendars, id)
	for eventID, event := range s.events {
		if event.CalendarID == id {
			delete(s.events, eventID)
		}
	}
	s.mu.Unlock()
}

// SeedCalendar registers an existing calendar.
func (s *FakeCalendarStore) SeedCalendar(title string) calendarsync.Calendar {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	calendar := calendarsync.Calendar{ID: fmt.Sprintf("cal-%d", s.nextID), Title: title}
	s.calendars[calendar.ID] = calendar
	return calendar
}

// RequestAccess implements calendarsync.CalendarStore.
func (s *FakeCalendarStore) RequestAccess(ctx context.Context) (bool, error) {
	s.mu.Lock()
	s.accessRequests++
	hang := s.HangAccess
	granted := s.Granted
	err := s.AccessErr
	s.mu.Unlock()

	if hang {
		<-ctx.Done()
		return false, ctx.Err()
	}
	if err != nil {
		return false, err
	}
	return granted, nil
}

// ListCalendars implements calendarsync.CalendarStore.
func (s *FakeCalendarStore) ListCalendars(ctx context.Context) ([]calendarsync.Calendar, error) {
	if s.ListErr != nil {
		return nil, s.ListErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	calendars := make([]calendarsync.Calendar, 0, len(s.calendars))
	for _, calendar := range s.calendars {
		calendars = append(calendars, calendar)
	}
	return calendars, nil
}

// CreateCalendar implements calendarsync.CalendarStore.
func (s *FakeCalendarStore) CreateCalendar(ctx context.Context, title string) (calendarsync.Calendar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	calendar := calendarsync.Calendar{ID: fmt.Sprintf("cal-%d", s.nextID), Title: title}
	s.calendars[calendar.ID] = calendar
	return calendar, nil
}

// CreateEvent implements calendarsync.CalendarStore.
func (s *FakeCalendarStore) CreateEvent(ctx context.Context, calendarID string, draft calendarsync.EventDraft) (calendarsync.Event, error) {
	if s.CreateEventErr != nil {
		return calendarsync.Event{}, s.CreateEventErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.calendars[calendarID]; !ok {
		return calendarsync.Event{}, calendarsync.ErrResourceNotFound
	}
	s.nextID++
	event := calendarsync.Event{
		ID:         fmt.Sprintf("evt-%d", s.nextID),
		CalendarID: calendarID,
		Title:      draft.Title,
		Start:      draft.Start,
		End:        draft.End,
		Notes:      draft.Notes,
		Updated:    s.stamp(),
	}
	s.events[event.ID] = event
	return event, nil
}

// UpdateEvent implements calendarsync.CalendarStore.
func (s *FakeCalendarStore) UpdateEvent(ctx context.Context, event calendarsync.Event) error {
	if s.UpdateEventErr != nil {
		return s.UpdateEventErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.calendars[event.CalendarID]; !ok {
		return calendarsync.ErrResourceNotFound
	}
	if _, ok := s.events[event.ID]; !ok {
		return fmt.Errorf("testfixtures: event %s does not exist", event.ID)
	}
	event.Updated = s.stamp()
	s.events[event.ID] = event
	return nil
}

// stamp returns the modification instant for a stored event. Callers hold the
// mutex.
func (s *FakeCalendarStore) stamp() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// DeleteEvent implements calendarsync.CalendarStore. Deleting an absent
// event succeeds.
func (s *FakeCalendarStore) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	if s.DeleteEventErr != nil {
		return s.DeleteEventErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.calendars[calendarID]; !ok {
		return calendarsync.ErrResourceNotFound
	}
	delete(s.events, eventID)
	return nil
}

// FindEvent implements calendarsync.CalendarStore.
func (s *FakeCalendarStore) FindEvent(ctx context.Context, calendarID, eventID string) (calendarsync.Event, bool, error) {
	if s.FindEventErr != nil {
		return calendarsync.Event{}, false, s.FindEventErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.calendars[calendarID]; !ok {
		return calendarsync.Event{}, false, calendarsync.ErrResourceNotFound
	}
	event, ok := s.events[eventID]
	if !ok || event.CalendarID != calendarID {
		return calendarsync.Event{}, false, nil
	}
	return event, true, nil
}

// MemoryBinder stores event references in memory for tests.
type MemoryBinder struct {
	mu      sync.Mutex
	refs    map[string]calendarsync.EventRef
	saves   int
	SaveErr error
	LoadErr error
}

// NewMemoryBinder returns an empty binder; unknown tasks read as NotSynced.
func NewMemoryBinder() *MemoryBinder {
	return &MemoryBinder{refs: make(map[string]calendarsync.EventRef)}
}

// EventRef implements calendarsync.Binder.
func (b *MemoryBinder) EventRef(ctx context.Context, taskID string) (calendarsync.EventRef, error) {
	if b.LoadErr != nil {
		return calendarsync.EventRef{}, b.LoadErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.refs[taskID], nil
}

// SaveEventRef implements calendarsync.Binder.
func (b *MemoryBinder) SaveEventRef(ctx context.Context, taskID string, ref calendarsync.EventRef) error {
	if b.SaveErr != nil {
		return b.SaveErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refs[taskID] = ref
	b.saves++
	return nil
}

// Ref returns the stored reference for a task.
func (b *MemoryBinder) Ref(taskID string) calendarsync.EventRef {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.refs[taskID]
}

// Saves reports how many reference transitions were persisted.
func (b *MemoryBinder) Saves() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.saves
}

// Set seeds a reference for a task.
func (b *MemoryBinder) Set(taskID string, ref calendarsync.EventRef) {
	b.mu.Lock()
	b.refs[taskID] = ref
	b.mu.Unlock()
}
