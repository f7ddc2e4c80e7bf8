package usecase

import (
	"fmt"

	"github.com/Chedidayeh/meeting-bot/internal/user/domain"
)

// Unlimited marks an allowance with no cap.
const Unlimited = -1

type PlanLimits struct {
	MeetingsPerMonth   int `json:"meetings_per_month"`
	ChatMessagesPerDay int `json:"chat_messages_per_day"`
}

var planLimits = map[string]PlanLimits{
	domain.PlanFree:    {MeetingsPerMonth: 0, ChatMessagesPerDay: 0},
	domain.PlanStarter: {MeetingsPerMonth: 10, ChatMessagesPerDay: 30},
	domain.PlanPro:     {MeetingsPerMonth: 30, ChatMessagesPerDay: 100},
	domain.PlanPremium: {MeetingsPerMonth: Unlimited, ChatMessagesPerDay: Unlimited},
}

// PlanLimitsFor returns the allowances of plan. Unknown plans get the free
// allowances.
func PlanLimitsFor(plan string) PlanLimits {
	if limits, ok := planLimits[plan]; ok {
		return limits
	}
	return planLimits[domain.PlanFree]
}

// Decision is the outcome of a quota check. A denial is not an error.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
	Used    int    `json:"used"`
	Limit   int    `json:"limit"`
}

// CheckMeetingQuota decides whether u may record one more meeting this month.
func CheckMeetingQuota(u *domain.User) Decision {
	limit := PlanLimitsFor(u.CurrentPlan).MeetingsPerMonth
	return check(u, limit, u.MeetingsThisMonth, "Monthly limit reached")
}

// CheckChatQuota decides whether u may ask one more question today.
func CheckChatQuota(u *domain.User) Decision {
	limit := PlanLimitsFor(u.CurrentPlan).ChatMessagesPerDay
	return check(u, limit, u.ChatMessagesToday, "Daily chat limit reached")
}

func check(u *domain.User, limit, used int, exhausted string) Decision {
	d := Decision{Used: used, Limit: limit}

	switch {
	case limit == 0:
		d.Reason = "Free plan - upgrade required"
	case u.SubscriptionStatus != domain.StatusActive:
		d.Reason = "Inactive subscription - upgrade required"
	case limit != Unlimited && used >= limit:
		d.Reason = fmt.Sprintf("%s (%d/%d)", exhausted, used, limit)
	default:
		d.Allowed = true
	}
	return d
}
