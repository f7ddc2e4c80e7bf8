package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/teambition/rrule-go"
)

const (
	// Chat allowances reset at midnight UTC.
	dailyResetRule = "FREQ=DAILY;BYHOUR=0;BYMINUTE=0;BYSECOND=0"
	// Meeting allowances reset on the first of the month.
	monthlyResetRule = "FREQ=MONTHLY;BYMONTHDAY=1;BYHOUR=0;BYMINUTE=0;BYSECOND=0"
)

var ruleEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// UsageResetter is the part of the user repository the scheduler needs.
type UsageResetter interface {
	ResetDailyChatUsage(ctx context.Context) (int64, error)
	ResetMonthlyMeetingUsage(ctx context.Context, periodStart time.Time) (int64, error)
}

// UsageResetScheduler zeroes the chat and meeting counters on their
// recurrence instants.
type UsageResetScheduler struct {
	repo     UsageResetter
	daily    *rrule.RRule
	monthly  *rrule.RRule
	log      zerolog.Logger
	stopChan chan struct{}
	stopOnce sync.Once
}

func NewUsageResetScheduler(repo UsageResetter, log zerolog.Logger) (*UsageResetScheduler, error) {
	daily, err := parseRule(dailyResetRule)
	if err != nil {
		return nil, err
	}
	monthly, err := parseRule(monthlyResetRule)
	if err != nil {
		return nil, err
	}

	return &UsageResetScheduler{
		repo:     repo,
		daily:    daily,
		monthly:  monthly,
		log:      log.With().Str("component", "usage_reset").Logger(),
		stopChan: make(chan struct{}),
	}, nil
}

func parseRule(s string) (*rrule.RRule, error) {
	r, err := rrule.StrToRRule(s)
	if err != nil {
		return nil, fmt.Errorf("invalid reset rule %q: %w", s, err)
	}
	r.DTStart(ruleEpoch)
	return r, nil
}

// NextDailyReset is the first daily reset strictly after t.
func (s *UsageResetScheduler) NextDailyReset(t time.Time) time.Time {
	return s.daily.After(t.UTC(), false)
}

// NextMonthlyReset is the first monthly reset strictly after t.
func (s *UsageResetScheduler) NextMonthlyReset(t time.Time) time.Time {
	return s.monthly.After(t.UTC(), false)
}

// Start runs the reset loop until Stop is called.
func (s *UsageResetScheduler) Start() {
	s.log.Info().Msg("starting usage reset scheduler")

	go func() {
		last := time.Now()
		for {
			nextDaily := s.NextDailyReset(last)
			nextMonthly := s.NextMonthlyReset(last)
			next := nextDaily
			if nextMonthly.Before(next) {
				next = nextMonthly
			}

			timer := time.NewTimer(time.Until(next))
			select {
			case <-timer.C:
				s.runDue(context.Background(), next, nextDaily, nextMonthly)
				last = next
			case <-s.stopChan:
				timer.Stop()
				s.log.Info().Msg("usage reset scheduler stopped")
				return
			}
		}
	}()
}

func (s *UsageResetScheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}

// runDue performs the resets scheduled at instant at.
func (s *UsageResetScheduler) runDue(ctx context.Context, at, nextDaily, nextMonthly time.Time) {
	if at.Equal(nextDaily) {
		n, err := s.repo.ResetDailyChatUsage(ctx)
		if err != nil {
			s.log.Error().Err(err).Msg("daily chat reset failed")
		} else {
			s.log.Info().Int64("users", n).Msg("daily chat usage reset")
		}
	}

	if at.Equal(nextMonthly) {
		n, err := s.repo.ResetMonthlyMeetingUsage(ctx, at)
		if err != nil {
			s.log.Error().Err(err).Msg("monthly meeting reset failed")
		} else {
			s.log.Info().Int64("users", n).Time("period_start", at).Msg("monthly meeting usage reset")
		}
	}
}
