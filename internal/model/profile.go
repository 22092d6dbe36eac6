package model

import "time"

type SubscriptionTier string

const (
	TierFree    SubscriptionTier = "free"
	TierTrial   SubscriptionTier = "trial"
	TierPremium SubscriptionTier = "premium"
)

// TrialPeriod is how long a freshly registered account gets premium features.
const TrialPeriod = 30 * 24 * time.Hour

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type UserProfile struct {
	ID               string           `json:"id"`
	Email            string           `json:"email"`
	FullName         string           `json:"full_name"`
	SubscriptionTier SubscriptionTier `json:"subscription_tier"`
	TrialEndsAt      *time.Time       `json:"trial_ends_at"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// IsPremium reports whether the profile unlocks premium features at now:
// a premium subscription, or a trial that has not yet ended.
func (p *UserProfile) IsPremium(now time.Time) bool {
	if p == nil {
		return false
	}
	switch p.SubscriptionTier {
	case TierPremium:
		return true
	case TierTrial:
		return p.TrialEndsAt != nil && p.TrialEndsAt.After(now)
	default:
		return false
	}
}
