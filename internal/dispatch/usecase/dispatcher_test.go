package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	meetingdomain "github.com/Chedidayeh/meeting-bot/internal/meeting/domain"
	userdomain "github.com/Chedidayeh/meeting-bot/internal/user/domain"
	"github.com/Chedidayeh/meeting-bot/pkg/apperrors"
	"github.com/Chedidayeh/meeting-bot/pkg/events"
	"github.com/Chedidayeh/meeting-bot/pkg/lock"
	"github.com/Chedidayeh/meeting-bot/pkg/meetingbaas"
	"github.com/Chedidayeh/meeting-bot/pkg/metrics"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMeetings struct {
	byID         map[string]*meetingdomain.Meeting
	usageCounted map[string]bool
}

func (f *fakeMeetings) FindByID(_ context.Context, id string) (*meetingdomain.Meeting, error) {
	m, ok := f.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (f *fakeMeetings) FindDueForDispatch(_ context.Context, from, to time.Time) ([]*meetingdomain.Meeting, error) {
	var out []*meetingdomain.Meeting
	for _, m := range f.byID {
		if m.BotScheduled && !m.BotSent && m.JoinURL() != "" && !m.StartTime.Before(from) && !m.StartTime.After(to) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMeetings) MarkBotSent(_ context.Context, id string, botID *string, at time.Time) (bool, error) {
	m := f.byID[id]
	if m.BotSent {
		return false, nil
	}
	m.BotSent = true
	m.BotID = botID
	m.BotSentAt = &at
	return true, nil
}

func (f *fakeMeetings) CountUsageOnce(_ context.Context, id, _ string) (bool, error) {
	if f.usageCounted[id] {
		return false, nil
	}
	f.usageCounted[id] = true
	return true, nil
}

type fakeUsers map[string]*userdomain.User

func (f fakeUsers) FindByID(_ context.Context, id string) (*userdomain.User, error) {
	return f[id], nil
}

type fakeBots struct {
	calls []meetingbaas.BotRequest
	err   error
}

func (f *fakeBots) SendBot(_ context.Context, req meetingbaas.BotRequest) (string, error) {
	f.calls = append(f.calls, req)
	if f.err != nil {
		return "", f.err
	}
	return "bot-1", nil
}

type recordingPublisher struct {
	events.NopPublisher
	dispatched []events.BotDispatchedEvent
}

func (p *recordingPublisher) PublishBotDispatched(_ context.Context, evt events.BotDispatchedEvent) error {
	p.dispatched = append(p.dispatched, evt)
	return nil
}

var now = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

type fixture struct {
	meetings  *fakeMeetings
	users     fakeUsers
	bots      *fakeBots
	publisher *recordingPublisher
	d         *Dispatcher
}

func newFixture(plan string, startsIn time.Duration) *fixture {
	f := &fixture{
		meetings: &fakeMeetings{
			byID: map[string]*meetingdomain.Meeting{
				"m1": {
					ID: "m1", UserID: "u1", Title: "Standup", BotScheduled: true,
					MeetingURL: strPtr("https://meet.google.com/abc"),
					StartTime:  now.Add(startsIn),
				},
			},
			usageCounted: map[string]bool{},
		},
		users: fakeUsers{
			"u1": {ID: "u1", CurrentPlan: plan, SubscriptionStatus: userdomain.StatusActive, BotName: "Notetaker"},
		},
		bots:      &fakeBots{},
		publisher: &recordingPublisher{},
	}
	f.d = NewDispatcher(f.meetings, f.users, f.bots, lock.NewMemoryLocker(), f.publisher,
		metrics.NewNop(), "https://hooks.example.com/api/webhooks/meetingbaas", zerolog.Nop())
	return f
}

func TestPolicyFor(t *testing.T) {
	assert.Equal(t, FailurePolicy{MarkSentOnDenial: true, MarkSentOnFailure: true}, PolicyFor(TriggerAutomatic))
	assert.Equal(t, FailurePolicy{}, PolicyFor(TriggerManual))
}

func TestSendBotDispatches(t *testing.T) {
	f := newFixture(userdomain.PlanPro, 5*time.Minute)

	result, err := f.d.SendBot(context.Background(), "u1", "m1", now)
	require.NoError(t, err)
	assert.True(t, result.Dispatched)
	assert.Equal(t, "bot-1", result.BotID)

	require.Len(t, f.bots.calls, 1)
	req := f.bots.calls[0]
	assert.Equal(t, "https://meet.google.com/abc", req.MeetingURL)
	assert.Equal(t, "Notetaker", req.BotName)
	assert.Equal(t, meetingbaas.Correlation{MeetingID: "m1", UserID: "u1"}, req.Extra)

	stored := f.meetings.byID["m1"]
	assert.True(t, stored.BotSent)
	assert.Equal(t, "bot-1", *stored.BotID)
	assert.True(t, f.meetings.usageCounted["m1"])
	require.Len(t, f.publisher.dispatched, 1)
	assert.Equal(t, "manual", f.publisher.dispatched[0].Trigger)
}

func TestSendBotTwiceCallsServiceOnce(t *testing.T) {
	f := newFixture(userdomain.PlanPro, 5*time.Minute)

	first, err := f.d.SendBot(context.Background(), "u1", "m1", now)
	require.NoError(t, err)
	assert.True(t, first.Dispatched)

	second, err := f.d.SendBot(context.Background(), "u1", "m1", now)
	require.NoError(t, err)
	assert.True(t, second.Denied)
	assert.Equal(t, ReasonAlreadySent, second.Reason)
	assert.Len(t, f.bots.calls, 1)
}

func TestSendBotRejections(t *testing.T) {
	t.Run("unknown meeting", func(t *testing.T) {
		f := newFixture(userdomain.PlanPro, 5*time.Minute)
		_, err := f.d.SendBot(context.Background(), "u1", "missing", now)
		assert.True(t, apperrors.IsNotFound(err))
	})

	t.Run("someone else's meeting", func(t *testing.T) {
		f := newFixture(userdomain.PlanPro, 5*time.Minute)
		_, err := f.d.SendBot(context.Background(), "u2", "m1", now)
		assert.True(t, apperrors.IsNotFound(err))
	})

	t.Run("too early", func(t *testing.T) {
		f := newFixture(userdomain.PlanPro, 30*time.Minute)
		result, err := f.d.SendBot(context.Background(), "u1", "m1", now)
		require.NoError(t, err)
		assert.Equal(t, ReasonTooEarly, result.Reason)
		assert.Empty(t, f.bots.calls)
	})

	t.Run("no url", func(t *testing.T) {
		f := newFixture(userdomain.PlanPro, 5*time.Minute)
		f.meetings.byID["m1"].MeetingURL = nil
		result, err := f.d.SendBot(context.Background(), "u1", "m1", now)
		require.NoError(t, err)
		assert.Equal(t, ReasonNoURL, result.Reason)
	})

	t.Run("free plan denial leaves meeting retryable", func(t *testing.T) {
		f := newFixture(userdomain.PlanFree, 5*time.Minute)
		result, err := f.d.SendBot(context.Background(), "u1", "m1", now)
		require.NoError(t, err)
		assert.True(t, result.Denied)
		assert.Contains(t, result.Reason, "upgrade required")
		assert.False(t, f.meetings.byID["m1"].BotSent)
		assert.Empty(t, f.bots.calls)
	})

	t.Run("service failure leaves meeting retryable", func(t *testing.T) {
		f := newFixture(userdomain.PlanPro, 5*time.Minute)
		f.bots.err = errors.New("502 bad gateway")
		_, err := f.d.SendBot(context.Background(), "u1", "m1", now)
		require.Error(t, err)
		assert.False(t, f.meetings.byID["m1"].BotSent)
		assert.False(t, f.meetings.usageCounted["m1"])
	})
}

func TestRunAutomatic(t *testing.T) {
	t.Run("dispatches meetings in window", func(t *testing.T) {
		f := newFixture(userdomain.PlanPremium, 3*time.Minute)
		f.meetings.byID["later"] = &meetingdomain.Meeting{
			ID: "later", UserID: "u1", BotScheduled: true,
			MeetingURL: strPtr("https://meet.google.com/later"), StartTime: now.Add(time.Hour),
		}

		report := f.d.RunAutomatic(context.Background(), now)
		assert.Equal(t, DispatchReport{Due: 1, Dispatched: 1}, report)
		assert.True(t, f.meetings.byID["m1"].BotSent)
		assert.False(t, f.meetings.byID["later"].BotSent)
	})

	t.Run("denial marks sent", func(t *testing.T) {
		f := newFixture(userdomain.PlanStarter, 3*time.Minute)
		f.users["u1"].MeetingsThisMonth = 10

		report := f.d.RunAutomatic(context.Background(), now)
		assert.Equal(t, 1, report.Denied)
		assert.True(t, f.meetings.byID["m1"].BotSent)
		assert.Nil(t, f.meetings.byID["m1"].BotID)
		assert.Empty(t, f.bots.calls)

		again := f.d.RunAutomatic(context.Background(), now)
		assert.Zero(t, again.Due)
	})

	t.Run("failure marks sent", func(t *testing.T) {
		f := newFixture(userdomain.PlanPro, 3*time.Minute)
		f.bots.err = errors.New("timeout")

		report := f.d.RunAutomatic(context.Background(), now)
		assert.Equal(t, 1, report.Failed)
		assert.True(t, f.meetings.byID["m1"].BotSent)
		assert.Empty(t, f.publisher.dispatched)
	})

	t.Run("unscheduled meetings are ignored", func(t *testing.T) {
		f := newFixture(userdomain.PlanPro, 3*time.Minute)
		f.meetings.byID["m1"].BotScheduled = false

		report := f.d.RunAutomatic(context.Background(), now)
		assert.Zero(t, report.Due)
		assert.Empty(t, f.bots.calls)
	})
}

func TestDispatchHeldLockDenies(t *testing.T) {
	f := newFixture(userdomain.PlanPro, 5*time.Minute)
	locker := lock.NewMemoryLocker()
	f.d.locker = locker

	unlock, ok, err := locker.TryLock(context.Background(), "dispatch:m1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	defer unlock()

	result, err := f.d.SendBot(context.Background(), "u1", "m1", now)
	require.NoError(t, err)
	assert.Equal(t, ReasonInProgress, result.Reason)
	assert.Empty(t, f.bots.calls)
}
