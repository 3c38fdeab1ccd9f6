package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned when a session token fails verification.
var ErrInvalidToken = errors.New("invalid session token")

// SessionClaims are the claims carried by a dashboard session token.
type SessionClaims struct {
	SessionID     string `json:"sid"`
	WalletAddress string `json:"wallet"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies HS256 session tokens that bind a dashboard
// client to its server-side session.
type TokenManager struct {
	signingKey []byte
	issuer     string
	ttl        time.Duration
}

// NewTokenManager creates a token manager with the given signing key.
func NewTokenManager(signingKey []byte, issuer string, ttl time.Duration) (*TokenManager, error) {
	if len(signingKey) < 32 {
		return nil, fmt.Errorf("session signing key must be at least 32 bytes, got %d", len(signingKey))
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenManager{
		signingKey: signingKey,
		issuer:     issuer,
		ttl:        ttl,
	}, nil
}

// Issue creates a signed token for the given session and wallet address.
func (m *TokenManager) Issue(sessionID, walletAddress string) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		SessionID:     sessionID,
		WalletAddress: walletAddress,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.signingKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a session token, returning its claims.
func (m *TokenManager) Verify(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.signingKey, nil
	}, jwt.WithIssuer(m.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.SessionID == "" {
		return nil, fmt.Errorf("%w: missing session id", ErrInvalidToken)
	}

	return claims, nil
}
