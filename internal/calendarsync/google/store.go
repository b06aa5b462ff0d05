// Package google implements the external calendar store against the Google
// Calendar API.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"golang.org/x/oauth2"
	googleauth "golang.org/x/oauth2/google"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/example/momentum-planner/internal/calendarsync"
)

// Store is a calendarsync.CalendarStore backed by the Google Calendar API.
// Credentials come from a downloaded OAuth client file plus a previously
// obtained token file; Store does not run the interactive consent flow
// itself.
type Store struct {
	service *calendar.Service
}

// NewStore builds a store from an OAuth client secrets file and a cached
// token file.
func NewStore(ctx context.Context, credentialsFile, tokenFile string) (*Store, error) {
	client, err := oauthClient(ctx, credentialsFile, tokenFile)
	if err != nil {
		return nil, err
	}
	service, err := calendar.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("google: failed to build calendar service: %w", err)
	}
	return &Store{service: service}, nil
}

// NewStoreWithService wraps an already-constructed calendar service. Used by
// tests and by callers that manage their own OAuth flow.
func NewStoreWithService(service *calendar.Service) *Store {
	return &Store{service: service}
}

func oauthClient(ctx context.Context, credentialsFile, tokenFile string) (*http.Client, error) {
	secrets, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("google: failed to read client secrets file %s: %w", credentialsFile, err)
	}
	config, err := googleauth.ConfigFromJSON(secrets, calendar.CalendarScope)
	if err != nil {
		return nil, fmt.Errorf("google: failed to parse client secrets: %w", err)
	}

	raw, err := os.ReadFile(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("google: failed to read token file %s: %w", tokenFile, err)
	}
	token := &oauth2.Token{}
	if err := json.Unmarshal(raw, token); err != nil {
		return nil, fmt.Errorf("google: failed to decode token file %s: %w", tokenFile, err)
	}

	return config.Client(ctx, token), nil
}

// RequestAccess probes the API with a minimal read. There is no interactive
// prompt on this backend: access is granted when the stored token is valid
// and refused when the API rejects it.
func (s *Store) RequestAccess(ctx context.Context) (bool, error) {
	_, err := s.service.CalendarList.List().MaxResults(1).Context(ctx).Do()
	if err == nil {
		return true, nil
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && (apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden) {
		return false, nil
	}
	return false, fmt.Errorf("google: access probe failed: %w", err)
}

// ListCalendars implements calendarsync.CalendarStore.
func (s *Store) ListCalendars(ctx context.Context) ([]calendarsync.Calendar, error) {
	var calendars []calendarsync.Calendar
	call := s.service.CalendarList.List().Context(ctx)
	err := call.Pages(ctx, func(page *calendar.CalendarList) error {
		for _, item := range page.Items {
			calendars = append(calendars, calendarsync.Calendar{ID: item.Id, Title: item.Summary})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("google: failed to list calendars: %w", err)
	}
	return calendars, nil
}

// CreateCalendar implements calendarsync.CalendarStore.
func (s *Store) CreateCalendar(ctx context.Context, title string) (calendarsync.Calendar, error) {
	created, err := s.service.Calendars.Insert(&calendar.Calendar{Summary: title}).Context(ctx).Do()
	if err != nil {
		return calendarsync.Calendar{}, fmt.Errorf("google: failed to create calendar: %w", err)
	}
	return calendarsync.Calendar{ID: created.Id, Title: created.Summary}, nil
}

// CreateEvent implements calendarsync.CalendarStore.
func (s *Store) CreateEvent(ctx context.Context, calendarID string, draft calendarsync.EventDraft) (calendarsync.Event, error) {
	created, err := s.service.Events.Insert(calendarID, toAPIEvent(draft)).Context(ctx).Do()
	if err != nil {
		if isGone(err) {
			return calendarsync.Event{}, fmt.Errorf("google: calendar %s: %w", calendarID, calendarsync.ErrResourceNotFound)
		}
		return calendarsync.Event{}, fmt.Errorf("google: failed to create event: %w", err)
	}
	return fromAPIEvent(calendarID, created)
}

// UpdateEvent implements calendarsync.CalendarStore.
func (s *Store) UpdateEvent(ctx context.Context, event calendarsync.Event) error {
	patch := toAPIEvent(calendarsync.EventDraft{
		Title: event.Title,
		Start: event.Start,
		End:   event.End,
		Notes: event.Notes,
	})
	_, err := s.service.Events.Update(event.CalendarID, event.ID, patch).Context(ctx).Do()
	if err != nil {
		if isGone(err) {
			return fmt.Errorf("google: event %s: %w", event.ID, calendarsync.ErrResourceNotFound)
		}
		return fmt.Errorf("google: failed to update event %s: %w", event.ID, err)
	}
	return nil
}

// DeleteEvent implements calendarsync.CalendarStore. The API answers 404 or
// 410 for an event that no longer exists; both count as success.
func (s *Store) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	err := s.service.Events.Delete(calendarID, eventID).Context(ctx).Do()
	if err != nil && !isGone(err) {
		return fmt.Errorf("google: failed to delete event %s: %w", eventID, err)
	}
	return nil
}

// FindEvent implements calendarsync.CalendarStore. An event deleted through
// the Google UI stays fetchable with status "cancelled" for a while; that
// also counts as absent.
func (s *Store) FindEvent(ctx context.Context, calendarID, eventID string) (calendarsync.Event, bool, error) {
	fetched, err := s.service.Events.Get(calendarID, eventID).Context(ctx).Do()
	if err != nil {
		if isGone(err) {
			return calendarsync.Event{}, false, nil
		}
		return calendarsync.Event{}, false, fmt.Errorf("google: failed to fetch event %s: %w", eventID, err)
	}
	if fetched.Status == "cancelled" {
		return calendarsync.Event{}, false, nil
	}
	event, err := fromAPIEvent(calendarID, fetched)
	if err != nil {
		return calendarsync.Event{}, false, err
	}
	return event, true, nil
}

func toAPIEvent(draft calendarsync.EventDraft) *calendar.Event {
	return &calendar.Event{
		Summary:     draft.Title,
		Description: draft.Notes,
		Start:       &calendar.EventDateTime{DateTime: draft.Start.Format(time.RFC3339)},
		End:         &calendar.EventDateTime{DateTime: draft.End.Format(time.RFC3339)},
	}
}

func fromAPIEvent(calendarID string, event *calendar.Event) (calendarsync.Event, error) {
	start, err := parseEventTime(event.Start)
	if err != nil {
		return calendarsync.Event{}, fmt.Errorf("google: event %s has malformed start: %w", event.Id, err)
	}
	end, err := parseEventTime(event.End)
	if err != nil {
		return calendarsync.Event{}, fmt.Errorf("google: event %s has malformed end: %w", event.Id, err)
	}
	// Updated is advisory; a missing or malformed value stays zero and
	// callers fall back.
	var updated time.Time
	if event.Updated != "" {
		if parsed, err := time.Parse(time.RFC3339, event.Updated); err == nil {
			updated = parsed
		}
	}
	return calendarsync.Event{
		ID:         event.Id,
		CalendarID: calendarID,
		Title:      event.Summary,
		Start:      start,
		End:        end,
		Notes:      event.Description,
		Updated:    updated,
	}, nil
}

func parseEventTime(edt *calendar.EventDateTime) (time.Time, error) {
	if edt == nil {
		return time.Time{}, errors.New("missing time")
	}
	if edt.DateTime != "" {
		return time.Parse(time.RFC3339, edt.DateTime)
	}
	// All-day events carry only a date.
	return time.Parse("2006-01-02", edt.Date)
}

func isGone(err error) bool {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone
}
