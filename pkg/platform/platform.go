// Package platform defines the lending platforms users register with the
// dashboard and the API keys issued against them.
package platform

import (
	"time"
)

// Plan is a platform's subscription tier. The tier bounds how many API keys
// the platform may hold.
type Plan string

const (
	PlanBasic      Plan = "basic"
	PlanPremium    Plan = "premium"
	PlanEnterprise Plan = "enterprise"
)

// Valid reports whether p is a known plan.
func (p Plan) Valid() bool {
	switch p {
	case PlanBasic, PlanPremium, PlanEnterprise:
		return true
	}
	return false
}

// MaxAPIKeys returns the API key quota for the plan.
func (p Plan) MaxAPIKeys() int {
	switch p {
	case PlanPremium:
		return 5
	case PlanEnterprise:
		return 20
	default:
		return 2
	}
}

// MaxQueries returns the monthly score query quota for the plan.
func (p Plan) MaxQueries() int64 {
	switch p {
	case PlanPremium:
		return 10_000
	case PlanEnterprise:
		return 100_000
	default:
		return 1_000
	}
}

// Platform is a lending platform registered by a user.
type Platform struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	ContactEmail string    `json:"contact_email"`
	Plan         Plan      `json:"plan"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

// Usage summarizes a platform's query consumption across all of its API keys
// against the plan quota.
type Usage struct {
	Plan       Plan  `json:"plan"`
	Used       int64 `json:"used"`
	Remaining  int64 `json:"remaining"`
	MaxQueries int64 `json:"max_queries"`
}

// UsageFor derives the usage counters for a plan from the recorded query
// count. Remaining never goes below zero, even when a plan downgrade leaves
// the platform over quota.
func UsageFor(plan Plan, used int64) Usage {
	max := plan.MaxQueries()
	remaining := max - used
	if remaining < 0 {
		remaining = 0
	}
	return Usage{Plan: plan, Used: used, Remaining: remaining, MaxQueries: max}
}

// APIKey is an issued key for a platform. The secret itself is never stored;
// only its hash is kept for verification.
type APIKey struct {
	ID         string     `json:"id"`
	PlatformID string     `json:"platform_id"`
	Name       string     `json:"name"`
	Prefix     string     `json:"prefix"`
	UsageCount int64      `json:"usage_count"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// IssuedKey pairs a freshly created APIKey with its plaintext secret. The
// secret is shown exactly once, at creation.
type IssuedKey struct {
	APIKey
	Secret string `json:"secret"`
}
