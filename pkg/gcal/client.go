// Package gcal talks to Google OAuth and Google Calendar on behalf of a user.
package gcal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Chedidayeh/meeting-bot/pkg/apperrors"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Event is the subset of a calendar event the sync engine needs.
type Event struct {
	ID             string
	Status         string
	Summary        string
	Description    string
	HangoutLink    string
	EntryPointURIs []string
	Attendees      []string
	// Start and End are nil for all-day events.
	Start *time.Time
	End   *time.Time
}

// Cancelled reports whether the event was cancelled or deleted upstream.
func (e Event) Cancelled() bool {
	return e.Status == "cancelled"
}

type Client struct {
	oauthConfig *oauth2.Config
	// calendarEndpoint overrides the Calendar API base URL (tests).
	calendarEndpoint string
}

func NewClient(clientID, clientSecret string) *Client {
	return &Client{
		oauthConfig: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{calendar.CalendarReadonlyScope},
		},
	}
}

// WithEndpoints points the client at alternative token and calendar URLs.
func (c *Client) WithEndpoints(tokenURL, calendarEndpoint string) *Client {
	if tokenURL != "" {
		c.oauthConfig.Endpoint = oauth2.Endpoint{TokenURL: tokenURL, AuthStyle: oauth2.AuthStyleInParams}
	}
	c.calendarEndpoint = calendarEndpoint
	return c
}

// RefreshToken exchanges the refresh token for a fresh access token. A
// rejection by the provider is reported as apperrors.ErrUnauthorized so the
// caller can disconnect the user; anything else is transient.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("no refresh token: %w", apperrors.ErrUnauthorized)
	}

	// An expired token forces the source to hit the token endpoint.
	expired := &oauth2.Token{RefreshToken: refreshToken, Expiry: time.Now().Add(-time.Minute)}
	token, err := c.oauthConfig.TokenSource(ctx, expired).Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return nil, fmt.Errorf("token refresh rejected (%d): %w", retrieveErr.Response.StatusCode, apperrors.ErrUnauthorized)
		}
		return nil, fmt.Errorf("token refresh failed: %w", err)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("token refresh returned no access token: %w", apperrors.ErrUnauthorized)
	}
	return token, nil
}

// ListEvents lists primary-calendar events in [timeMin, timeMax], expanding
// recurring events and including cancelled ones.
func (c *Client) ListEvents(ctx context.Context, accessToken string, timeMin, timeMax time.Time) ([]Event, error) {
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))

	opts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if c.calendarEndpoint != "" {
		opts = append(opts, option.WithEndpoint(c.calendarEndpoint))
	}

	srv, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create Calendar service: %w", err)
	}

	var events []Event
	err = srv.Events.List("primary").
		TimeMin(timeMin.UTC().Format(time.RFC3339)).
		TimeMax(timeMax.UTC().Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		ShowDeleted(true).
		MaxResults(250).
		Pages(ctx, func(page *calendar.Events) error {
			for _, item := range page.Items {
				events = append(events, convertEvent(item))
			}
			return nil
		})
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && (apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden) {
			return nil, fmt.Errorf("calendar access denied (%d): %w", apiErr.Code, apperrors.ErrUnauthorized)
		}
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	return events, nil
}

func convertEvent(item *calendar.Event) Event {
	ev := Event{
		ID:          item.Id,
		Status:      item.Status,
		Summary:     item.Summary,
		Description: item.Description,
		HangoutLink: item.HangoutLink,
	}

	if item.ConferenceData != nil {
		for _, ep := range item.ConferenceData.EntryPoints {
			if ep != nil && ep.Uri != "" {
				ev.EntryPointURIs = append(ev.EntryPointURIs, ep.Uri)
			}
		}
	}

	for _, a := range item.Attendees {
		if a != nil && a.Email != "" {
			ev.Attendees = append(ev.Attendees, a.Email)
		}
	}

	ev.Start = parseEventTime(item.Start)
	ev.End = parseEventTime(item.End)
	return ev
}

func parseEventTime(t *calendar.EventDateTime) *time.Time {
	if t == nil || t.DateTime == "" {
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, t.DateTime)
	if err != nil {
		return nil
	}
	return &parsed
}
