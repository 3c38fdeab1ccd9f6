// Package session holds per-client dashboard state: the authenticated user,
// the connected wallet, and the selected platform. Only the active platform
// selection survives restarts; everything else is rebuilt from the auth flow.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/kredible/score-middleware/pkg/user"
)

// ErrNotAuthenticated is returned by operations that require a logged-in user.
var ErrNotAuthenticated = errors.New("no authenticated user in session")

// ErrPlatformNotOwned is returned when activating a platform outside the
// user's platform set.
var ErrPlatformNotOwned = errors.New("platform not in user's platform set")

// ErrStashEntryNotFound is returned by a Stash when no value is persisted for
// the key.
var ErrStashEntryNotFound = errors.New("no stash entry for key")

// Stash persists the active platform selection across sessions, keyed by
// wallet address.
type Stash interface {
	Get(ctx context.Context, key string) (string, error)
	Put(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// State is a snapshot of one client's session.
type State struct {
	User           *user.User `json:"user,omitempty"`
	WalletAddress  string     `json:"wallet_address,omitempty"`
	Connected      bool       `json:"connected"`
	Connecting     bool       `json:"connecting"`
	ActivePlatform string     `json:"active_platform,omitempty"`
}

// Authenticated reports whether a user is logged in.
func (s State) Authenticated() bool {
	return s.User != nil
}

// Store owns the state for one client session. All mutations go through the
// named entry points; the snapshot returned by State is a copy.
type Store struct {
	stash  Stash
	logger *zap.Logger

	mu    sync.RWMutex
	state State
}

// NewStore creates an empty session store backed by the given stash.
func NewStore(stash Stash, logger *zap.Logger) *Store {
	return &Store{
		stash:  stash,
		logger: logger,
	}
}

// State returns a snapshot of the current session state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Login binds the authenticated user to the session and rehydrates the
// persisted active platform. A stashed selection the user no longer owns is
// dropped rather than restored.
func (s *Store) Login(ctx context.Context, usr *user.User) error {
	if usr == nil {
		return errors.New("login requires a user")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.User = usr
	s.state.Connecting = false
	s.state.ActivePlatform = ""

	stashed, err := s.stash.Get(ctx, usr.WalletAddress)
	switch {
	case err == nil:
		if usr.HasPlatform(stashed) {
			s.state.ActivePlatform = stashed
		} else {
			s.logger.Info("dropping stale active platform selection",
				zap.String("address", usr.WalletAddress),
				zap.String("platform", stashed))
			if delErr := s.stash.Delete(ctx, usr.WalletAddress); delErr != nil {
				s.logger.Warn("failed to drop stale platform selection", zap.Error(delErr))
			}
		}
	case errors.Is(err, ErrStashEntryNotFound):
	default:
		// A broken stash never blocks login; the user just loses the
		// restored selection.
		s.logger.Warn("failed to rehydrate active platform", zap.Error(err))
	}

	s.logger.Info("session authenticated",
		zap.String("user_id", usr.ID),
		zap.String("address", usr.WalletAddress))
	return nil
}

// Logout clears the authenticated user and the in-memory platform selection.
// The stashed selection is kept so the next login restores it.
func (s *Store) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.User = nil
	s.state.Connecting = false
	s.state.ActivePlatform = ""
}

// UpdateUser replaces the session's user after a profile change. The active
// platform is re-checked against the new platform set and cleared when no
// longer owned.
func (s *Store) UpdateUser(ctx context.Context, usr *user.User) error {
	if usr == nil {
		return errors.New("update requires a user")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.User == nil {
		return ErrNotAuthenticated
	}

	s.state.User = usr
	if s.state.ActivePlatform != "" && !usr.HasPlatform(s.state.ActivePlatform) {
		dropped := s.state.ActivePlatform
		s.state.ActivePlatform = ""
		if err := s.stash.Delete(ctx, usr.WalletAddress); err != nil {
			s.logger.Warn("failed to drop platform selection from stash", zap.Error(err))
		}
		s.logger.Info("active platform no longer owned, cleared",
			zap.String("user_id", usr.ID),
			zap.String("platform", dropped))
	}
	return nil
}

// SetWallet records the connected wallet address.
func (s *Store) SetWallet(address string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.WalletAddress = address
	s.state.Connected = true
}

// ClearWallet drops the wallet connection from the session.
func (s *Store) ClearWallet() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.WalletAddress = ""
	s.state.Connected = false
	s.state.Connecting = false
}

// SetConnecting flags that a wallet connection handshake is in flight.
func (s *Store) SetConnecting(connecting bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Connecting = connecting
}

// SetActivePlatform selects a platform the user owns and persists the
// selection.
func (s *Store) SetActivePlatform(ctx context.Context, platformID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.User == nil {
		return ErrNotAuthenticated
	}
	if !s.state.User.HasPlatform(platformID) {
		return fmt.Errorf("%w: %s", ErrPlatformNotOwned, platformID)
	}

	s.state.ActivePlatform = platformID
	if err := s.stash.Put(ctx, s.state.User.WalletAddress, platformID); err != nil {
		s.logger.Warn("failed to persist platform selection", zap.Error(err))
	}
	return nil
}

// ClearActivePlatform drops the platform selection from the session and the
// stash.
func (s *Store) ClearActivePlatform(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.User == nil {
		return ErrNotAuthenticated
	}

	s.state.ActivePlatform = ""
	if err := s.stash.Delete(ctx, s.state.User.WalletAddress); err != nil {
		s.logger.Warn("failed to remove platform selection from stash", zap.Error(err))
	}
	return nil
}
