package repository

import (
	"context"
	"time"

	"github.com/Chedidayeh/meeting-bot/internal/user/domain"
)

// UserRepository persists users. Find methods return nil, nil when the row
// does not exist. Every write touches only the columns it names.
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindCalendarConnected(ctx context.Context) ([]*domain.User, error)

	UpdateCalendarTokens(ctx context.Context, id, accessToken, refreshToken string, expiry time.Time) error
	DisconnectCalendar(ctx context.Context, id string) error
	UpdateBotSettings(ctx context.Context, id, botName, botImageURL string) error

	IncrementMeetingUsage(ctx context.Context, id string) error
	IncrementChatUsage(ctx context.Context, id string) error
	ResetDailyChatUsage(ctx context.Context) (int64, error)
	ResetMonthlyMeetingUsage(ctx context.Context, periodStart time.Time) (int64, error)
}

// FCMTokenRepository stores push registrations per user.
type FCMTokenRepository interface {
	SaveToken(ctx context.Context, userID, token, deviceInfo string) error
	GetTokensByUserID(ctx context.Context, userID string) ([]domain.FCMToken, error)
	DeleteToken(ctx context.Context, userID, token string) error
	DeleteTokens(ctx context.Context, tokens []string) error
}
