package usecase

import (
	"context"
	"time"

	"github.com/Chedidayeh/meeting-bot/internal/user/domain"
)

// UserUsecase covers the account operations exposed to the dashboard.
type UserUsecase interface {
	// GetUser returns the user or apperrors.ErrNotFound.
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// GetUsage reports plan, counters and allowances.
	GetUsage(ctx context.Context, userID string) (*Usage, error)

	// UpdateBotSettings sets the display name and avatar of the recording bot.
	UpdateBotSettings(ctx context.Context, userID, botName, botImageURL string) error

	// DisconnectCalendar clears the calendar grant.
	DisconnectCalendar(ctx context.Context, userID string) error

	// ConsumeChat checks the daily chat allowance and counts one message
	// when allowed.
	ConsumeChat(ctx context.Context, userID string) (Decision, error)

	RegisterDevice(ctx context.Context, userID, token, deviceInfo string) error
	UnregisterDevice(ctx context.Context, userID, token string) error
}

type Usage struct {
	Plan               string     `json:"plan"`
	SubscriptionStatus string     `json:"subscription_status"`
	MeetingsThisMonth  int        `json:"meetings_this_month"`
	ChatMessagesToday  int        `json:"chat_messages_today"`
	BillingPeriodStart *time.Time `json:"billing_period_start,omitempty"`
	Limits             PlanLimits `json:"limits"`
	CanRecord          Decision   `json:"can_record"`
	CanChat            Decision   `json:"can_chat"`
}
