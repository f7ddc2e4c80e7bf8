package usecase

import (
	"context"
	"fmt"
	"time"

	meetingdomain "github.com/Chedidayeh/meeting-bot/internal/meeting/domain"
	userdomain "github.com/Chedidayeh/meeting-bot/internal/user/domain"
	userusecase "github.com/Chedidayeh/meeting-bot/internal/user/usecase"
	"github.com/Chedidayeh/meeting-bot/pkg/apperrors"
	"github.com/Chedidayeh/meeting-bot/pkg/events"
	"github.com/Chedidayeh/meeting-bot/pkg/lock"
	"github.com/Chedidayeh/meeting-bot/pkg/meetingbaas"
	"github.com/Chedidayeh/meeting-bot/pkg/metrics"

	"github.com/rs/zerolog"
)

const (
	// AutomaticWindow is how soon a meeting must start to get its bot on a tick.
	AutomaticWindow = 5 * time.Minute
	// ManualLeadTime is the earliest a user may send a bot before the start.
	ManualLeadTime = 10 * time.Minute

	lockTTL = time.Minute
)

const (
	ReasonNotFound      = "Meeting not found"
	ReasonAlreadySent   = "Bot already sent for this meeting"
	ReasonNoURL         = "Meeting URL not available"
	ReasonTooEarly      = "Bot can only be sent within 10 minutes before meeting"
	ReasonInProgress    = "Bot dispatch already in progress"
	ReasonUserNotFound  = "User not found"
	ReasonDispatchError = "Failed to send bot"
)

// BotClient is the recording-bot service contract.
type BotClient interface {
	SendBot(ctx context.Context, req meetingbaas.BotRequest) (string, error)
}

type MeetingStore interface {
	FindByID(ctx context.Context, id string) (*meetingdomain.Meeting, error)
	FindDueForDispatch(ctx context.Context, from, to time.Time) ([]*meetingdomain.Meeting, error)
	MarkBotSent(ctx context.Context, id string, botID *string, at time.Time) (bool, error)
	CountUsageOnce(ctx context.Context, id, userID string) (bool, error)
}

type UserStore interface {
	FindByID(ctx context.Context, id string) (*userdomain.User, error)
}

// Result is the outcome of one dispatch. A denial is a value, not an error.
type Result struct {
	Dispatched bool   `json:"dispatched"`
	Denied     bool   `json:"denied"`
	Reason     string `json:"reason,omitempty"`
	BotID      string `json:"bot_id,omitempty"`
}

func denied(reason string) *Result {
	return &Result{Denied: true, Reason: reason}
}

// DispatchReport summarizes one automatic run.
type DispatchReport struct {
	Due        int
	Dispatched int
	Denied     int
	Failed     int
}

type Dispatcher struct {
	meetings   MeetingStore
	users      UserStore
	bots       BotClient
	locker     lock.Locker
	publisher  events.Publisher
	metrics    *metrics.Metrics
	webhookURL string
	log        zerolog.Logger
}

func NewDispatcher(
	meetings MeetingStore,
	users UserStore,
	bots BotClient,
	locker lock.Locker,
	publisher events.Publisher,
	m *metrics.Metrics,
	webhookURL string,
	log zerolog.Logger,
) *Dispatcher {
	return &Dispatcher{
		meetings:   meetings,
		users:      users,
		bots:       bots,
		locker:     locker,
		publisher:  publisher,
		metrics:    m,
		webhookURL: webhookURL,
		log:        log.With().Str("component", "dispatcher").Logger(),
	}
}

// RunAutomatic sends bots to scheduled meetings starting within AutomaticWindow.
func (d *Dispatcher) RunAutomatic(ctx context.Context, now time.Time) DispatchReport {
	var report DispatchReport

	due, err := d.meetings.FindDueForDispatch(ctx, now, now.Add(AutomaticWindow))
	if err != nil {
		d.log.Error().Err(err).Msg("Failed to load meetings due for dispatch")
		return report
	}
	report.Due = len(due)

	for _, meeting := range due {
		result, err := d.dispatch(ctx, TriggerAutomatic, meeting.ID, now)
		switch {
		case err != nil:
			report.Failed++
			d.log.Warn().Err(err).Str("meeting_id", meeting.ID).Msg("Automatic dispatch failed")
		case result.Denied:
			report.Denied++
			d.log.Info().Str("meeting_id", meeting.ID).Str("reason", result.Reason).Msg("Automatic dispatch denied")
		default:
			report.Dispatched++
		}
	}

	return report
}

// SendBot dispatches a bot on the user's request. Rule violations come back as
// a denied Result; an unknown or foreign meeting is apperrors.ErrNotFound.
func (d *Dispatcher) SendBot(ctx context.Context, userID, meetingID string, now time.Time) (*Result, error) {
	meeting, err := d.meetings.FindByID(ctx, meetingID)
	if err != nil {
		return nil, fmt.Errorf("find meeting: %w", err)
	}
	if meeting == nil || meeting.UserID != userID {
		return nil, fmt.Errorf("%s: %w", ReasonNotFound, apperrors.ErrNotFound)
	}

	if meeting.BotSent {
		return denied(ReasonAlreadySent), nil
	}
	if meeting.JoinURL() == "" {
		return denied(ReasonNoURL), nil
	}
	if now.Before(meeting.StartTime.Add(-ManualLeadTime)) {
		return denied(ReasonTooEarly), nil
	}

	return d.dispatch(ctx, TriggerManual, meetingID, now)
}

// dispatch is the quota-then-send primitive shared by both triggers. The
// per-meeting lock plus the bot_sent re-read keep one meeting to one bot.
func (d *Dispatcher) dispatch(ctx context.Context, trigger Trigger, meetingID string, now time.Time) (result *Result, err error) {
	policy := PolicyFor(trigger)
	log := d.log.With().Str("meeting_id", meetingID).Str("trigger", string(trigger)).Logger()

	defer func() {
		outcome := "dispatched"
		switch {
		case err != nil:
			outcome = "error"
		case result.Denied:
			outcome = "denied"
		}
		d.metrics.DispatchTotal.WithLabelValues(string(trigger), outcome).Inc()
	}()

	unlock, ok, err := d.locker.TryLock(ctx, "dispatch:"+meetingID, lockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire dispatch lock: %w", err)
	}
	if !ok {
		return denied(ReasonInProgress), nil
	}
	defer unlock()

	meeting, err := d.meetings.FindByID(ctx, meetingID)
	if err != nil {
		return nil, fmt.Errorf("find meeting: %w", err)
	}
	if meeting == nil {
		return denied(ReasonNotFound), nil
	}
	if meeting.BotSent {
		return denied(ReasonAlreadySent), nil
	}

	user, err := d.users.FindByID(ctx, meeting.UserID)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		return denied(ReasonUserNotFound), nil
	}

	decision := userusecase.CheckMeetingQuota(user)
	if !decision.Allowed {
		if policy.MarkSentOnDenial {
			d.markSent(ctx, log, meetingID, nil, now)
		}
		return denied(decision.Reason), nil
	}

	botName := user.BotName
	if botName == "" {
		botName = meetingbaas.DefaultBotName
	}
	botID, err := d.bots.SendBot(ctx, meetingbaas.BotRequest{
		MeetingURL: meeting.JoinURL(),
		BotName:    botName,
		BotImage:   user.BotImageURL,
		WebhookURL: d.webhookURL,
		Extra:      meetingbaas.Correlation{MeetingID: meeting.ID, UserID: user.ID},
	})
	if err != nil {
		if policy.MarkSentOnFailure {
			d.markSent(ctx, log, meetingID, nil, now)
		}
		return nil, fmt.Errorf("%s: %w", ReasonDispatchError, err)
	}

	d.markSent(ctx, log, meetingID, &botID, now)

	if _, err := d.meetings.CountUsageOnce(ctx, meeting.ID, user.ID); err != nil {
		log.Error().Err(err).Msg("Failed to count meeting usage")
	}

	evt := events.BotDispatchedEvent{
		BaseEvent: events.NewBaseEvent(events.TypeBotDispatched),
		MeetingID: meeting.ID,
		UserID:    user.ID,
		BotID:     botID,
		Trigger:   string(trigger),
	}
	if err := d.publisher.PublishBotDispatched(ctx, evt); err != nil {
		log.Warn().Err(err).Msg("Failed to publish bot.dispatched event")
	}

	log.Info().Str("bot_id", botID).Msg("Bot dispatched")
	return &Result{Dispatched: true, BotID: botID}, nil
}

func (d *Dispatcher) markSent(ctx context.Context, log zerolog.Logger, meetingID string, botID *string, now time.Time) {
	won, err := d.meetings.MarkBotSent(ctx, meetingID, botID, now)
	if err != nil {
		log.Error().Err(err).Msg("Failed to mark bot as sent")
		return
	}
	if !won {
		log.Warn().Msg("Meeting was already marked as sent by another writer")
	}
}
