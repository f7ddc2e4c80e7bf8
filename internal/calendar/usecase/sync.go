package usecase

import (
	"context"
	"fmt"
	"time"

	meetingdomain "github.com/Chedidayeh/meeting-bot/internal/meeting/domain"
	meetingrepo "github.com/Chedidayeh/meeting-bot/internal/meeting/repository"
	userdomain "github.com/Chedidayeh/meeting-bot/internal/user/domain"
	"github.com/Chedidayeh/meeting-bot/pkg/apperrors"
	"github.com/Chedidayeh/meeting-bot/pkg/gcal"
	"github.com/Chedidayeh/meeting-bot/pkg/metrics"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

const (
	// RefreshLookahead is how close to expiry a token gets refreshed.
	RefreshLookahead = 10 * time.Minute
	// SyncWindow is how far ahead events are fetched.
	SyncWindow = 7 * 24 * time.Hour

	untitledMeeting = "Untitled Meeting"
)

// CalendarClient is the calendar provider contract.
type CalendarClient interface {
	RefreshToken(ctx context.Context, refreshToken string) (*oauth2.Token, error)
	ListEvents(ctx context.Context, accessToken string, timeMin, timeMax time.Time) ([]gcal.Event, error)
}

// UserStore is the slice of the user repository the sync engine touches.
type UserStore interface {
	FindCalendarConnected(ctx context.Context) ([]*userdomain.User, error)
	UpdateCalendarTokens(ctx context.Context, id, accessToken, refreshToken string, expiry time.Time) error
	DisconnectCalendar(ctx context.Context, id string) error
}

// MeetingStore is the slice of the meeting repository the sync engine touches.
type MeetingStore interface {
	Create(ctx context.Context, meeting *meetingdomain.Meeting) error
	FindByCalendarEventID(ctx context.Context, eventID string) (*meetingdomain.Meeting, error)
	FindCalendarMeetingsFrom(ctx context.Context, userID string, from time.Time) ([]*meetingdomain.Meeting, error)
	UpdateCalendarFields(ctx context.Context, id string, fields meetingrepo.CalendarFields) error
	Delete(ctx context.Context, ids ...string) error
}

// UserSyncResult counts what one user's sync changed.
type UserSyncResult struct {
	Refreshed    bool
	Disconnected bool
	Created      int
	Updated      int
	Deleted      int
	Skipped      int
}

// SyncReport aggregates one pass over all connected users.
type SyncReport struct {
	Users        int
	Synced       int
	Failed       int
	Disconnected int
}

type SyncEngine struct {
	calendar    CalendarClient
	users       UserStore
	meetings    MeetingStore
	metrics     *metrics.Metrics
	log         zerolog.Logger
	userTimeout time.Duration
}

func NewSyncEngine(calendar CalendarClient, users UserStore, meetings MeetingStore, m *metrics.Metrics, userTimeout time.Duration, log zerolog.Logger) *SyncEngine {
	return &SyncEngine{
		calendar:    calendar,
		users:       users,
		meetings:    meetings,
		metrics:     m,
		log:         log.With().Str("component", "calendar_sync").Logger(),
		userTimeout: userTimeout,
	}
}

// SyncAll syncs every connected user. A failing user is logged and skipped.
func (s *SyncEngine) SyncAll(ctx context.Context, now time.Time) SyncReport {
	var report SyncReport

	users, err := s.users.FindCalendarConnected(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to load calendar-connected users")
		return report
	}

	for _, user := range users {
		if !user.HasCalendarAccess() {
			continue
		}
		report.Users++

		userCtx, cancel := context.WithTimeout(ctx, s.userTimeout)
		result, err := s.SyncUser(userCtx, user, now)
		cancel()

		switch {
		case result.Disconnected:
			report.Disconnected++
			s.metrics.SyncUsersTotal.WithLabelValues("disconnected").Inc()
		case err != nil:
			report.Failed++
			s.metrics.SyncUsersTotal.WithLabelValues("error").Inc()
			s.log.Warn().Err(err).Str("user_id", user.ID).Msg("Calendar sync failed, retrying next tick")
		default:
			report.Synced++
			s.metrics.SyncUsersTotal.WithLabelValues("ok").Inc()
		}
	}

	return report
}

// SyncUser refreshes the user's token if needed, fetches the next week of
// events and reconciles them with the stored meetings.
func (s *SyncEngine) SyncUser(ctx context.Context, user *userdomain.User, now time.Time) (UserSyncResult, error) {
	var result UserSyncResult
	log := s.log.With().Str("user_id", user.ID).Logger()

	accessToken := user.AccessToken()
	if needsRefresh(user.GoogleTokenExpiry, now) {
		token, err := s.calendar.RefreshToken(ctx, user.RefreshToken())
		if err != nil {
			if apperrors.IsUnauthorized(err) {
				result.Disconnected = true
				return result, s.disconnect(ctx, user.ID, err)
			}
			return result, fmt.Errorf("refresh token: %w", err)
		}

		refreshToken := token.RefreshToken
		if refreshToken == "" {
			refreshToken = user.RefreshToken()
		}
		if err := s.users.UpdateCalendarTokens(ctx, user.ID, token.AccessToken, refreshToken, token.Expiry); err != nil {
			return result, fmt.Errorf("save refreshed token: %w", err)
		}
		accessToken = token.AccessToken
		result.Refreshed = true
		log.Debug().Time("expiry", token.Expiry).Msg("Refreshed calendar token")
	}

	events, err := s.calendar.ListEvents(ctx, accessToken, now, now.Add(SyncWindow))
	if err != nil {
		if apperrors.IsUnauthorized(err) {
			result.Disconnected = true
			return result, s.disconnect(ctx, user.ID, err)
		}
		return result, fmt.Errorf("list events: %w", err)
	}

	seen := make(map[string]bool, len(events))
	for _, event := range events {
		if event.ID == "" {
			continue
		}
		seen[event.ID] = true

		if err := s.reconcile(ctx, user.ID, event, &result); err != nil {
			log.Warn().Err(err).Str("event_id", event.ID).Msg("Failed to reconcile event")
		}
	}

	deleted, err := s.removeOrphans(ctx, user.ID, now, seen)
	result.Deleted += deleted
	if err != nil {
		return result, fmt.Errorf("orphan cleanup: %w", err)
	}

	log.Debug().
		Int("events", len(events)).
		Int("created", result.Created).
		Int("updated", result.Updated).
		Int("deleted", result.Deleted).
		Msg("Calendar synced")
	return result, nil
}

func (s *SyncEngine) reconcile(ctx context.Context, userID string, event gcal.Event, result *UserSyncResult) error {
	existing, err := s.meetings.FindByCalendarEventID(ctx, event.ID)
	if err != nil {
		return err
	}
	if existing != nil && existing.UserID != userID {
		result.Skipped++
		return nil
	}

	if event.Cancelled() {
		if existing == nil {
			return nil
		}
		result.Deleted++
		return s.meetings.Delete(ctx, existing.ID)
	}

	joinURL := ExtractJoinURL(event)
	if joinURL == "" || event.Start == nil {
		result.Skipped++
		return nil
	}

	fields := meetingrepo.CalendarFields{
		Title:       event.Summary,
		Description: event.Description,
		MeetingURL:  joinURL,
		StartTime:   *event.Start,
		EndTime:     *event.Start,
		Attendees:   event.Attendees,
	}
	if fields.Title == "" {
		fields.Title = untitledMeeting
	}
	if event.End != nil {
		fields.EndTime = *event.End
	}

	if existing != nil {
		result.Updated++
		return s.meetings.UpdateCalendarFields(ctx, existing.ID, fields)
	}

	eventID := event.ID
	meeting := &meetingdomain.Meeting{
		UserID:          userID,
		CalendarEventID: &eventID,
		IsFromCalendar:  true,
		Title:           fields.Title,
		Description:     fields.Description,
		MeetingURL:      &joinURL,
		StartTime:       fields.StartTime,
		EndTime:         fields.EndTime,
		Attendees:       fields.Attendees,
	}
	if err := s.meetings.Create(ctx, meeting); err != nil {
		return err
	}
	result.Created++
	return nil
}

// removeOrphans deletes future calendar meetings whose event was not returned.
func (s *SyncEngine) removeOrphans(ctx context.Context, userID string, now time.Time, seen map[string]bool) (int, error) {
	stored, err := s.meetings.FindCalendarMeetingsFrom(ctx, userID, now)
	if err != nil {
		return 0, err
	}

	var orphans []string
	for _, m := range stored {
		if m.CalendarEventID == nil || !seen[*m.CalendarEventID] {
			orphans = append(orphans, m.ID)
		}
	}
	if len(orphans) == 0 {
		return 0, nil
	}
	if err := s.meetings.Delete(ctx, orphans...); err != nil {
		return 0, err
	}
	return len(orphans), nil
}

func (s *SyncEngine) disconnect(ctx context.Context, userID string, cause error) error {
	s.log.Warn().Err(cause).Str("user_id", userID).Msg("Calendar access lost, disconnecting user")
	if err := s.users.DisconnectCalendar(ctx, userID); err != nil {
		return fmt.Errorf("disconnect after %v: %w", cause, err)
	}
	return cause
}

// needsRefresh reports whether the token expires within RefreshLookahead.
// An unknown expiry is treated as expired.
func needsRefresh(expiry *time.Time, now time.Time) bool {
	if expiry == nil {
		return true
	}
	return expiry.Before(now.Add(RefreshLookahead))
}

// ExtractJoinURL returns the event's conferencing link: the Meet link when
// present, else the first conference entry point.
func ExtractJoinURL(event gcal.Event) string {
	if event.HangoutLink != "" {
		return event.HangoutLink
	}
	for _, uri := range event.EntryPointURIs {
		if uri != "" {
			return uri
		}
	}
	return ""
}
