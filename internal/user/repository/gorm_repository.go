package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Chedidayeh/meeting-bot/internal/user/domain"

	"gorm.io/gorm"
)

// userRepository implements UserRepository interface
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new instance of userRepository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{
		db: db,
	}
}

func (r *userRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindCalendarConnected(ctx context.Context) ([]*domain.User, error) {
	var users []*domain.User
	err := r.db.WithContext(ctx).
		Where("calendar_connected = ? AND google_access_token IS NOT NULL", true).
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepository) UpdateCalendarTokens(ctx context.Context, id, accessToken, refreshToken string, expiry time.Time) error {
	updates := map[string]interface{}{
		"google_access_token": accessToken,
		"google_token_expiry": expiry,
		"updated_at":          time.Now(),
	}
	// Google only returns a refresh token on the first consent.
	if refreshToken != "" {
		updates["google_refresh_token"] = refreshToken
	}
	return r.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).Updates(updates).Error
}

func (r *userRepository) DisconnectCalendar(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).Updates(map[string]interface{}{
		"calendar_connected":   false,
		"google_access_token":  nil,
		"google_refresh_token": nil,
		"google_token_expiry":  nil,
		"updated_at":           time.Now(),
	}).Error
}

func (r *userRepository) UpdateBotSettings(ctx context.Context, id, botName, botImageURL string) error {
	return r.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).Updates(map[string]interface{}{
		"bot_name":      botName,
		"bot_image_url": botImageURL,
		"updated_at":    time.Now(),
	}).Error
}

func (r *userRepository) IncrementMeetingUsage(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).
		UpdateColumn("meetings_this_month", gorm.Expr("meetings_this_month + 1")).Error
}

func (r *userRepository) IncrementChatUsage(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).
		UpdateColumn("chat_messages_today", gorm.Expr("chat_messages_today + 1")).Error
}

func (r *userRepository) ResetDailyChatUsage(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).Model(&domain.User{}).
		Where("subscription_status = ? AND chat_messages_today > 0", domain.StatusActive).
		UpdateColumn("chat_messages_today", 0)
	return result.RowsAffected, result.Error
}

func (r *userRepository) ResetMonthlyMeetingUsage(ctx context.Context, periodStart time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&domain.User{}).
		Where("meetings_this_month > 0 OR billing_period_start IS NULL OR billing_period_start < ?", periodStart).
		UpdateColumns(map[string]interface{}{
			"meetings_this_month":  0,
			"billing_period_start": periodStart,
		})
	return result.RowsAffected, result.Error
}
