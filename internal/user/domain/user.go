package domain

import "time"

const (
	PlanFree    = "free"
	PlanStarter = "starter"
	PlanPro     = "pro"
	PlanPremium = "premium"

	StatusActive   = "active"
	StatusInactive = "inactive"
)

type User struct {
	ID    string `json:"id" gorm:"primaryKey"`
	Email string `json:"email" gorm:"uniqueIndex"`
	Name  string `json:"name"`

	// Calendar connection. CalendarConnected is false whenever
	// GoogleAccessToken is nil.
	CalendarConnected  bool       `json:"calendar_connected" gorm:"index"`
	GoogleAccessToken  *string    `json:"-"`
	GoogleRefreshToken *string    `json:"-"`
	GoogleTokenExpiry  *time.Time `json:"-"`

	CurrentPlan        string     `json:"current_plan" gorm:"default:free"`
	SubscriptionStatus string     `json:"subscription_status" gorm:"default:inactive"`
	MeetingsThisMonth  int        `json:"meetings_this_month" gorm:"default:0"`
	ChatMessagesToday  int        `json:"chat_messages_today" gorm:"default:0"`
	BillingPeriodStart *time.Time `json:"billing_period_start,omitempty"`

	BotName     string `json:"bot_name"`
	BotImageURL string `json:"bot_image_url,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasCalendarAccess reports whether the user can be synced.
func (u *User) HasCalendarAccess() bool {
	return u.CalendarConnected && u.GoogleAccessToken != nil && *u.GoogleAccessToken != ""
}

func (u *User) AccessToken() string {
	if u.GoogleAccessToken == nil {
		return ""
	}
	return *u.GoogleAccessToken
}

func (u *User) RefreshToken() string {
	if u.GoogleRefreshToken == nil {
		return ""
	}
	return *u.GoogleRefreshToken
}
