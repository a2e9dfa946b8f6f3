package domain

import "time"

// UserPlan enumerates subscription tiers.
type UserPlan string

const (
	UserPlanFree UserPlan = "free"
	UserPlanPro  UserPlan = "pro"
)

// User represents an authenticated account within the platform.
type User struct {
	ID                string
	GoogleSub         string
	Email             string
	Name              string
	Picture           string
	Locale            string
	Plan              UserPlan
	UpgradedAt        *time.Time
	CheckoutSessionID string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsPro reports whether the user holds the unrestricted paid tier.
func (u User) IsPro() bool {
	return u.Plan == UserPlanPro
}

// Identity is the verified output of the identity provider. Entitlement
// decisions must not trust ID until Verified is true.
type Identity struct {
	ID          string
	DisplayName string
	Verified    bool
}
