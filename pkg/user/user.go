// Package user defines the domain model for application identities bound to
// wallet addresses.
package user

import (
	"slices"
	"time"

	"github.com/creasty/defaults"
	"github.com/shopspring/decimal"
)

// Role identifies what a user does on the lending platform.
type Role string

const (
	RoleBorrower Role = "borrower"
	RoleLender   Role = "lender"
	RoleAdmin    Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleBorrower, RoleLender, RoleAdmin:
		return true
	}
	return false
}

// User represents an application identity bound to a wallet.
// Exactly one User exists per wallet address; the address is immutable once set.
type User struct {
	ID            string
	WalletAddress string
	Name          string
	Email         string
	Role          Role
	CreditScore   int
	TotalLent     decimal.Decimal
	TotalBorrowed decimal.Decimal
	Reputation    int
	// Platforms is a denormalized cache of the platform ids the user owns.
	// The platform service is the canonical source; this set exists so the
	// session can reconcile its active platform without a round trip.
	Platforms []string
	CreatedAt time.Time
}

// NewDefaults carries the defaults applied to a user created on first wallet
// connection.
type NewDefaults struct {
	Role        Role `default:"borrower"`
	CreditScore int  `default:"500"`
}

// New creates a User for a freshly connected wallet address with the profile
// information collected from the interactive prompt. The identifier is left
// empty; the directory assigns it on creation.
func New(walletAddress, name, email string) *User {
	var d NewDefaults
	_ = defaults.Set(&d)

	return &User{
		WalletAddress: walletAddress,
		Name:          name,
		Email:         email,
		Role:          d.Role,
		CreditScore:   d.CreditScore,
		TotalLent:     decimal.Zero,
		TotalBorrowed: decimal.Zero,
		Reputation:    0,
		Platforms:     []string{},
		CreatedAt:     time.Now().UTC(),
	}
}

// HasPlatform reports whether the platform id is in the user's platform set.
func (u *User) HasPlatform(platformID string) bool {
	return slices.Contains(u.Platforms, platformID)
}

// Patch describes a partial profile update. Nil fields are left untouched.
// The wallet address is deliberately absent: it is immutable once set.
type Patch struct {
	Name          *string
	Email         *string
	Role          *Role
	CreditScore   *int
	TotalLent     *decimal.Decimal
	TotalBorrowed *decimal.Decimal
	Reputation    *int
	Platforms     *[]string
}

// Apply copies the non-nil patch fields onto u.
func (p Patch) Apply(u *User) {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	if p.CreditScore != nil {
		u.CreditScore = *p.CreditScore
	}
	if p.TotalLent != nil {
		u.TotalLent = *p.TotalLent
	}
	if p.TotalBorrowed != nil {
		u.TotalBorrowed = *p.TotalBorrowed
	}
	if p.Reputation != nil {
		u.Reputation = *p.Reputation
	}
	if p.Platforms != nil {
		u.Platforms = slices.Clone(*p.Platforms)
	}
}
