package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/Chedidayeh/meeting-bot/internal/user/domain"
	"github.com/Chedidayeh/meeting-bot/internal/user/repository"
	"github.com/Chedidayeh/meeting-bot/pkg/apperrors"
)

const maxBotNameLength = 100

type userUsecase struct {
	userRepo repository.UserRepository
	fcmRepo  repository.FCMTokenRepository
}

func NewUserUsecase(userRepo repository.UserRepository, fcmRepo repository.FCMTokenRepository) UserUsecase {
	return &userUsecase{
		userRepo: userRepo,
		fcmRepo:  fcmRepo,
	}
}

func (u *userUsecase) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := u.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("user %s: %w", userID, apperrors.ErrNotFound)
	}
	return user, nil
}

func (u *userUsecase) GetUsage(ctx context.Context, userID string) (*Usage, error) {
	user, err := u.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &Usage{
		Plan:               user.CurrentPlan,
		SubscriptionStatus: user.SubscriptionStatus,
		MeetingsThisMonth:  user.MeetingsThisMonth,
		ChatMessagesToday:  user.ChatMessagesToday,
		BillingPeriodStart: user.BillingPeriodStart,
		Limits:             PlanLimitsFor(user.CurrentPlan),
		CanRecord:          CheckMeetingQuota(user),
		CanChat:            CheckChatQuota(user),
	}, nil
}

func (u *userUsecase) UpdateBotSettings(ctx context.Context, userID, botName, botImageURL string) error {
	botName = strings.TrimSpace(botName)
	if len(botName) > maxBotNameLength {
		return fmt.Errorf("bot name longer than %d characters: %w", maxBotNameLength, apperrors.ErrValidation)
	}

	if _, err := u.GetUser(ctx, userID); err != nil {
		return err
	}
	return u.userRepo.UpdateBotSettings(ctx, userID, botName, strings.TrimSpace(botImageURL))
}

func (u *userUsecase) DisconnectCalendar(ctx context.Context, userID string) error {
	if _, err := u.GetUser(ctx, userID); err != nil {
		return err
	}
	return u.userRepo.DisconnectCalendar(ctx, userID)
}

func (u *userUsecase) ConsumeChat(ctx context.Context, userID string) (Decision, error) {
	user, err := u.GetUser(ctx, userID)
	if err != nil {
		return Decision{}, err
	}

	decision := CheckChatQuota(user)
	if !decision.Allowed {
		return decision, nil
	}

	if err := u.userRepo.IncrementChatUsage(ctx, userID); err != nil {
		return Decision{}, fmt.Errorf("failed to count chat message: %w", err)
	}
	decision.Used++
	return decision, nil
}

func (u *userUsecase) RegisterDevice(ctx context.Context, userID, token, deviceInfo string) error {
	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("empty device token: %w", apperrors.ErrValidation)
	}
	return u.fcmRepo.SaveToken(ctx, userID, token, deviceInfo)
}

func (u *userUsecase) UnregisterDevice(ctx context.Context, userID, token string) error {
	return u.fcmRepo.DeleteToken(ctx, userID, token)
}
