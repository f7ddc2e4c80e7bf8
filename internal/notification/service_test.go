package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	meetingdomain "github.com/Chedidayeh/meeting-bot/internal/meeting/domain"
	userdomain "github.com/Chedidayeh/meeting-bot/internal/user/domain"
	"github.com/Chedidayeh/meeting-bot/pkg/events"
	"github.com/Chedidayeh/meeting-bot/pkg/fcm"
	"github.com/Chedidayeh/meeting-bot/pkg/gmail"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type fakeMail struct {
	sent    []gmail.SummaryMessage
	creds   gmail.Credentials
	refresh *oauth2.Token
	err     error
}

func (f *fakeMail) SendSummary(_ context.Context, creds gmail.Credentials, msg gmail.SummaryMessage, onTokenRefresh gmail.TokenUpdateFunc) error {
	f.creds = creds
	if f.refresh != nil {
		if err := onTokenRefresh(f.refresh); err != nil {
			return err
		}
	}
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

type fakePush struct {
	tokens []string
	sent   []fcm.Notification
	stale  []string
}

func (f *fakePush) SendToDevices(_ context.Context, tokens []string, n fcm.Notification) ([]string, error) {
	f.tokens = tokens
	f.sent = append(f.sent, n)
	return f.stale, nil
}

type fakeTokens struct {
	access, refresh string
}

func (f *fakeTokens) UpdateCalendarTokens(_ context.Context, _, accessToken, refreshToken string, _ time.Time) error {
	f.access, f.refresh = accessToken, refreshToken
	return nil
}

type fakeDevices struct {
	tokens  []userdomain.FCMToken
	deleted []string
}

func (f *fakeDevices) GetTokensByUserID(_ context.Context, _ string) ([]userdomain.FCMToken, error) {
	return f.tokens, nil
}

func (f *fakeDevices) DeleteTokens(_ context.Context, tokens []string) error {
	f.deleted = append(f.deleted, tokens...)
	return nil
}

type fakePublisher struct {
	events.NopPublisher
	processed []events.MeetingProcessedEvent
}

func (f *fakePublisher) PublishMeetingProcessed(_ context.Context, evt events.MeetingProcessedEvent) error {
	f.processed = append(f.processed, evt)
	return errors.New("pubsub unavailable")
}

func testUser() *userdomain.User {
	access, refresh := "access", "refresh"
	return &userdomain.User{ID: "u1", Email: "ann@example.com", Name: "Ann", GoogleAccessToken: &access, GoogleRefreshToken: &refresh}
}

func TestSendSummaryEmail(t *testing.T) {
	mail := &fakeMail{refresh: &oauth2.Token{AccessToken: "new-access"}}
	tokens := &fakeTokens{}
	svc := NewService(mail, nil, tokens, nil, nil, "https://app.example.com/", zerolog.Nop())

	meeting := &meetingdomain.Meeting{
		ID:          "m1",
		Title:       "Weekly sync",
		Summary:     "We agreed on the launch date.",
		ActionItems: []meetingdomain.ActionItem{{ID: 1, Text: "Book venue"}, {ID: 2, Text: "Email press"}},
	}

	require.NoError(t, svc.SendSummaryEmail(context.Background(), testUser(), meeting))
	require.Len(t, mail.sent, 1)
	msg := mail.sent[0]
	assert.Equal(t, "ann@example.com", msg.To)
	assert.Equal(t, []string{"Book venue", "Email press"}, msg.ActionItems)
	assert.Equal(t, "https://app.example.com/meetings/m1", msg.MeetingURL)
	assert.Equal(t, "access", mail.creds.AccessToken)

	assert.Equal(t, "new-access", tokens.access)
	assert.Equal(t, "refresh", tokens.refresh)
}

func TestSendSummaryEmailFailures(t *testing.T) {
	meeting := &meetingdomain.Meeting{ID: "m1"}

	svc := NewService(nil, nil, &fakeTokens{}, nil, nil, "", zerolog.Nop())
	assert.Error(t, svc.SendSummaryEmail(context.Background(), testUser(), meeting))

	svc = NewService(&fakeMail{}, nil, &fakeTokens{}, nil, nil, "", zerolog.Nop())
	assert.Error(t, svc.SendSummaryEmail(context.Background(), &userdomain.User{ID: "u1", Email: "a@b.c"}, meeting))

	boom := errors.New("quota exceeded")
	svc = NewService(&fakeMail{err: boom}, nil, &fakeTokens{}, nil, nil, "", zerolog.Nop())
	assert.ErrorIs(t, svc.SendSummaryEmail(context.Background(), testUser(), meeting), boom)
}

func TestNotifyProcessedPrunesAndPublishes(t *testing.T) {
	push := &fakePush{stale: []string{"t2"}}
	devices := &fakeDevices{tokens: []userdomain.FCMToken{{Token: "t1"}, {Token: "t2"}}}
	pub := &fakePublisher{}
	svc := NewService(nil, push, &fakeTokens{}, devices, pub, "https://app.example.com", zerolog.Nop())

	meeting := &meetingdomain.Meeting{
		ID:           "m1",
		Title:        "Retro",
		EmailSent:    true,
		RAGProcessed: true,
		ActionItems:  []meetingdomain.ActionItem{{ID: 1, Text: "x"}},
	}
	svc.NotifyProcessed(context.Background(), testUser(), meeting)

	assert.Equal(t, []string{"t1", "t2"}, push.tokens)
	require.Len(t, push.sent, 1)
	assert.Equal(t, "Retro", push.sent[0].Title)
	assert.Equal(t, "Your meeting summary is ready", push.sent[0].Body)
	assert.Equal(t, "m1", push.sent[0].Data["meeting_id"])
	assert.Equal(t, []string{"t2"}, devices.deleted)

	require.Len(t, pub.processed, 1)
	evt := pub.processed[0]
	assert.Equal(t, events.TypeMeetingProcessed, evt.EventType)
	assert.True(t, evt.EmailSent)
	assert.True(t, evt.RAGProcessed)
	assert.Equal(t, 1, evt.ActionItemCount)
}

func TestNotifyProcessedWithoutDevices(t *testing.T) {
	push := &fakePush{}
	svc := NewService(nil, push, &fakeTokens{}, &fakeDevices{}, nil, "", zerolog.Nop())
	svc.NotifyProcessed(context.Background(), testUser(), &meetingdomain.Meeting{ID: "m1"})
	assert.Empty(t, push.sent)
}
