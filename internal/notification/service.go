package notification

import (
	"context"
	"fmt"
	"strings"
	"time"

	meetingdomain "github.com/Chedidayeh/meeting-bot/internal/meeting/domain"
	userdomain "github.com/Chedidayeh/meeting-bot/internal/user/domain"
	"github.com/Chedidayeh/meeting-bot/pkg/events"
	"github.com/Chedidayeh/meeting-bot/pkg/fcm"
	"github.com/Chedidayeh/meeting-bot/pkg/gmail"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

type MailSender interface {
	SendSummary(ctx context.Context, creds gmail.Credentials, msg gmail.SummaryMessage, onTokenRefresh gmail.TokenUpdateFunc) error
}

type PushSender interface {
	SendToDevices(ctx context.Context, tokens []string, n fcm.Notification) ([]string, error)
}

type TokenStore interface {
	UpdateCalendarTokens(ctx context.Context, id, accessToken, refreshToken string, expiry time.Time) error
}

type DeviceStore interface {
	GetTokensByUserID(ctx context.Context, userID string) ([]userdomain.FCMToken, error)
	DeleteTokens(ctx context.Context, tokens []string) error
}

// Service delivers the side effects of a finished meeting. Mail and push
// are optional: a nil sender disables that channel.
type Service struct {
	mail       MailSender
	push       PushSender
	tokens     TokenStore
	devices    DeviceStore
	publisher  events.Publisher
	appBaseURL string
	log        zerolog.Logger
}

func NewService(mail MailSender, push PushSender, tokens TokenStore, devices DeviceStore, publisher events.Publisher, appBaseURL string, log zerolog.Logger) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Service{
		mail:       mail,
		push:       push,
		tokens:     tokens,
		devices:    devices,
		publisher:  publisher,
		appBaseURL: strings.TrimRight(appBaseURL, "/"),
		log:        log.With().Str("component", "notifier").Logger(),
	}
}

func (s *Service) meetingLink(meetingID string) string {
	if s.appBaseURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/meetings/%s", s.appBaseURL, meetingID)
}

// SendSummaryEmail mails the summary to the owner through their own Gmail
// account. A refreshed Google token is written back to the user.
func (s *Service) SendSummaryEmail(ctx context.Context, user *userdomain.User, meeting *meetingdomain.Meeting) error {
	if s.mail == nil {
		return fmt.Errorf("mail delivery is not configured")
	}
	if user.Email == "" {
		return fmt.Errorf("user %s has no email address", user.ID)
	}
	if user.AccessToken() == "" && user.RefreshToken() == "" {
		return fmt.Errorf("user %s has no Google credentials", user.ID)
	}

	creds := gmail.Credentials{
		AccessToken:  user.AccessToken(),
		RefreshToken: user.RefreshToken(),
	}
	if user.GoogleTokenExpiry != nil {
		creds.Expiry = *user.GoogleTokenExpiry
	}

	items := make([]string, 0, len(meeting.ActionItems))
	for _, item := range meeting.ActionItems {
		items = append(items, item.Text)
	}

	msg := gmail.SummaryMessage{
		To:           user.Email,
		ToName:       user.Name,
		MeetingTitle: meeting.Title,
		MeetingDate:  meeting.StartTime,
		Summary:      meeting.Summary,
		ActionItems:  items,
		MeetingURL:   s.meetingLink(meeting.ID),
	}

	onTokenRefresh := func(token *oauth2.Token) error {
		refresh := token.RefreshToken
		if refresh == "" {
			refresh = user.RefreshToken()
		}
		return s.tokens.UpdateCalendarTokens(ctx, user.ID, token.AccessToken, refresh, token.Expiry)
	}

	if err := s.mail.SendSummary(ctx, creds, msg, onTokenRefresh); err != nil {
		return fmt.Errorf("send summary email: %w", err)
	}

	s.log.Info().Str("user_id", user.ID).Str("meeting_id", meeting.ID).Msg("Summary email sent")
	return nil
}

// NotifyProcessed pushes "summary ready" to the owner's devices and publishes
// meeting.processed. Failures are logged only.
func (s *Service) NotifyProcessed(ctx context.Context, user *userdomain.User, meeting *meetingdomain.Meeting) {
	s.pushProcessed(ctx, user, meeting)

	evt := events.MeetingProcessedEvent{
		BaseEvent:        events.NewBaseEvent(events.TypeMeetingProcessed),
		MeetingID:        meeting.ID,
		UserID:           user.ID,
		ProcessingFailed: meeting.ProcessingFailed,
		EmailSent:        meeting.EmailSent,
		RAGProcessed:     meeting.RAGProcessed,
		ActionItemCount:  len(meeting.ActionItems),
	}
	if err := s.publisher.PublishMeetingProcessed(ctx, evt); err != nil {
		s.log.Warn().Err(err).Str("meeting_id", meeting.ID).Msg("Failed to publish meeting.processed")
	}
}

func (s *Service) pushProcessed(ctx context.Context, user *userdomain.User, meeting *meetingdomain.Meeting) {
	if s.push == nil || s.devices == nil {
		return
	}

	registered, err := s.devices.GetTokensByUserID(ctx, user.ID)
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("Failed to load device tokens")
		return
	}
	if len(registered) == 0 {
		return
	}

	tokens := make([]string, 0, len(registered))
	for _, t := range registered {
		tokens = append(tokens, t.Token)
	}

	title := meeting.Title
	if title == "" {
		title = "Untitled Meeting"
	}
	body := "Your meeting summary is ready"
	if meeting.ProcessingFailed {
		body = "Your meeting transcript is ready"
	}

	stale, err := s.push.SendToDevices(ctx, tokens, fcm.Notification{
		Title: title,
		Body:  body,
		Data: map[string]string{
			"type":       events.TypeMeetingProcessed,
			"meeting_id": meeting.ID,
		},
		Link: s.meetingLink(meeting.ID),
	})
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("Failed to send push notification")
	}

	if len(stale) > 0 {
		if err := s.devices.DeleteTokens(ctx, stale); err != nil {
			s.log.Warn().Err(err).Int("count", len(stale)).Msg("Failed to prune device tokens")
			return
		}
		s.log.Info().Int("count", len(stale)).Str("user_id", user.ID).Msg("Pruned unregistered device tokens")
	}
}
