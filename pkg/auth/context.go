package auth

import (
	"context"
)

// Context keys for authentication data
type contextKey string

const (
	// ContextKeySessionID is the context key for the dashboard session id
	ContextKeySessionID contextKey = "session_id"
	// ContextKeyWalletAddress is the context key for the authenticated wallet address
	ContextKeyWalletAddress contextKey = "wallet_address"
)

// WithSessionID adds the session id to the context
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, ContextKeySessionID, sessionID)
}

// SessionIDFromContext retrieves the session id from the context
func SessionIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ContextKeySessionID).(string)
	return id, ok
}

// WithWalletAddress adds the wallet address to the context
func WithWalletAddress(ctx context.Context, address string) context.Context {
	return context.WithValue(ctx, ContextKeyWalletAddress, address)
}

// WalletAddressFromContext retrieves the wallet address from the context
func WalletAddressFromContext(ctx context.Context) (string, bool) {
	addr, ok := ctx.Value(ContextKeyWalletAddress).(string)
	return addr, ok
}
