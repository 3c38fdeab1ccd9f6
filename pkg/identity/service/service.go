// Package service implements the wallet authentication flow: the signature
// handshake, identity resolution with an interactive profile prompt for
// first-time addresses, and session lifecycle operations.
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/kredible/score-middleware/internal/metrics"
	apperrors "github.com/kredible/score-middleware/pkg/app/errors"
	"github.com/kredible/score-middleware/pkg/auth"
	"github.com/kredible/score-middleware/pkg/identity"
	"github.com/kredible/score-middleware/pkg/session"
	"github.com/kredible/score-middleware/pkg/user"
	"github.com/kredible/score-middleware/pkg/userstore"
	"github.com/kredible/score-middleware/pkg/wallet"

	"github.com/google/uuid"
)

// Connection statuses reported by Connect.
const (
	StatusAuthenticated   = "authenticated"
	StatusProfileRequired = "profile_required"
)

// ConnectRequest carries the signed wallet challenge.
type ConnectRequest struct {
	Message   string `json:"message" validate:"required"`
	Signature string `json:"signature" validate:"required"`
}

// ConnectResult is the outcome of a connection attempt. When the address is
// unknown, Status is StatusProfileRequired and PromptID names the pending
// profile prompt; the session stays connected but unauthenticated until the
// prompt is answered.
type ConnectResult struct {
	Status        string     `json:"status"`
	SessionID     string     `json:"session_id"`
	WalletAddress string     `json:"wallet_address"`
	Token         string     `json:"token"`
	PromptID      string     `json:"prompt_id,omitempty"`
	User          *user.User `json:"user,omitempty"`
}

// ProfileRequest answers a pending profile prompt.
type ProfileRequest struct {
	PromptID string `json:"prompt_id" validate:"required"`
	Name     string `json:"name" validate:"required,min=1,max=255"`
	Email    string `json:"email" validate:"required,email"`
}

// UpdateProfileRequest is a partial profile update. Nil fields are untouched.
type UpdateProfileRequest struct {
	Name  *string `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Email *string `json:"email,omitempty" validate:"omitempty,email"`
}

// KeyProvisioner makes sure a custodial signing key exists for a wallet.
// Provisioning happens on login so score writes never race key creation.
type KeyProvisioner interface {
	EnsureSigningKey(ctx context.Context, walletAddress string) error
}

// Service defines the authentication flow business logic.
type Service interface {
	Connect(ctx context.Context, req *ConnectRequest) (*ConnectResult, error)
	CompleteProfile(ctx context.Context, req *ProfileRequest) error
	CancelPrompt(ctx context.Context, promptID string) error
	Disconnect(ctx context.Context, sessionID string) error
	Session(ctx context.Context, sessionID string) (session.State, error)
	UpdateProfile(ctx context.Context, sessionID string, req *UpdateProfileRequest) (*user.User, error)
	SetActivePlatform(ctx context.Context, sessionID, platformID string) error
	ClearActivePlatform(ctx context.Context, sessionID string) error
}

type authService struct {
	sessions  *session.Manager
	resolver  *identity.Resolver
	broker    *identity.Broker
	tokens    *auth.TokenManager
	directory userstore.Directory
	keys      KeyProvisioner
	validate  *validator.Validate
	logger    *zap.Logger

	// resolveWindow bounds the background identity resolution that outlives
	// the connect request. It must cover the broker's prompt timeout.
	resolveWindow time.Duration

	mu         sync.Mutex
	connectors map[string]*wallet.Connector
}

// New creates the authentication service.
func New(
	sessions *session.Manager,
	resolver *identity.Resolver,
	broker *identity.Broker,
	tokens *auth.TokenManager,
	directory userstore.Directory,
	keys KeyProvisioner,
	resolveWindow time.Duration,
	logger *zap.Logger,
) Service {
	return &authService{
		sessions:      sessions,
		resolver:      resolver,
		broker:        broker,
		tokens:        tokens,
		directory:     directory,
		keys:          keys,
		validate:      validator.New(),
		logger:        logger,
		resolveWindow: resolveWindow,
		connectors:    make(map[string]*wallet.Connector),
	}
}

type resolution struct {
	usr *user.User
	err error
}

func (s *authService) Connect(ctx context.Context, req *ConnectRequest) (*ConnectResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, apperrors.BadRequestError(err, "invalid connect request")
	}

	sessionID := uuid.NewString()
	store := s.sessions.GetOrCreate(sessionID)
	store.SetConnecting(true)
	defer store.SetConnecting(false)

	connector := wallet.NewConnector(wallet.NewSignatureProvider(req.Message, req.Signature), s.logger)
	address, err := connector.Connect(ctx)
	if err != nil {
		metrics.WalletConnections.WithLabelValues("failed").Inc()
		s.sessions.Remove(sessionID)
		return nil, apperrors.UnAuthorizedError(err, "wallet connection failed")
	}
	metrics.WalletConnections.WithLabelValues("connected").Inc()

	store.SetWallet(address)
	s.mu.Lock()
	s.connectors[sessionID] = connector
	s.mu.Unlock()

	token, err := s.tokens.Issue(sessionID, address)
	if err != nil {
		return nil, apperrors.GeneralError(err)
	}

	// Resolution may block on an interactive profile prompt, so it runs
	// detached from the request context: the session is logged in whenever
	// the prompt is eventually answered.
	expect := s.broker.Expect(address)
	done := make(chan resolution, 1)
	go func() {
		rctx, cancel := context.WithTimeout(context.Background(), s.resolveWindow)
		defer cancel()

		usr, rerr := s.resolver.Resolve(rctx, address)
		if rerr == nil {
			rerr = store.Login(rctx, usr)
		}
		if rerr == nil && s.keys != nil {
			if kerr := s.keys.EnsureSigningKey(rctx, address); kerr != nil {
				s.logger.Warn("failed to provision signing key",
					zap.String("wallet_address", address), zap.Error(kerr))
			}
		}
		if rerr != nil && !errors.Is(rerr, identity.ErrPromptCancelled) {
			s.logger.Warn("identity resolution failed",
				zap.String("wallet_address", address), zap.Error(rerr))
		}
		done <- resolution{usr: usr, err: rerr}
	}()

	result := &ConnectResult{
		SessionID:     sessionID,
		WalletAddress: address,
		Token:         token,
	}

	select {
	case res := <-done:
		s.broker.Forget(address, expect)
		if res.err != nil {
			if errors.Is(res.err, identity.ErrPromptCancelled) {
				return nil, apperrors.UnAuthorizedError(res.err, "profile prompt cancelled")
			}
			return nil, apperrors.DependencyError(res.err, "identity resolution failed")
		}
		result.Status = StatusAuthenticated
		result.User = res.usr
		return result, nil
	case prompt := <-expect:
		result.Status = StatusProfileRequired
		result.PromptID = prompt.ID
		return result, nil
	case <-ctx.Done():
		s.broker.Forget(address, expect)
		return nil, apperrors.GeneralError(ctx.Err())
	}
}

func (s *authService) CompleteProfile(_ context.Context, req *ProfileRequest) error {
	if err := s.validate.Struct(req); err != nil {
		return apperrors.BadRequestError(err, "invalid profile")
	}
	input := identity.ProfileInput{Name: req.Name, Email: req.Email}
	if err := s.broker.Complete(req.PromptID, input); err != nil {
		metrics.Registrations.WithLabelValues("failed").Inc()
		return apperrors.ResourceNotFoundError(err, "prompt not found")
	}
	metrics.Registrations.WithLabelValues("completed").Inc()
	return nil
}

func (s *authService) CancelPrompt(_ context.Context, promptID string) error {
	if err := s.broker.Cancel(promptID); err != nil {
		return apperrors.ResourceNotFoundError(err, "prompt not found")
	}
	metrics.Registrations.WithLabelValues("cancelled").Inc()
	return nil
}

func (s *authService) Disconnect(ctx context.Context, sessionID string) error {
	store, ok := s.sessions.Get(sessionID)
	if !ok {
		return apperrors.ResourceNotFoundError(session.ErrNotAuthenticated, "unknown session")
	}

	s.mu.Lock()
	connector := s.connectors[sessionID]
	delete(s.connectors, sessionID)
	s.mu.Unlock()

	if connector != nil {
		if err := connector.Disconnect(ctx); err != nil {
			s.logger.Warn("provider disconnect failed", zap.Error(err))
		}
	}

	store.ClearWallet()
	store.Logout()
	s.sessions.Remove(sessionID)
	return nil
}

func (s *authService) Session(_ context.Context, sessionID string) (session.State, error) {
	store, ok := s.sessions.Get(sessionID)
	if !ok {
		return session.State{}, apperrors.ResourceNotFoundError(session.ErrNotAuthenticated, "unknown session")
	}
	return store.State(), nil
}

func (s *authService) UpdateProfile(ctx context.Context, sessionID string, req *UpdateProfileRequest) (*user.User, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, apperrors.BadRequestError(err, "invalid profile update")
	}

	store, state, err := s.authenticated(sessionID)
	if err != nil {
		return nil, err
	}

	usr := *state.User
	patch := user.Patch{Name: req.Name, Email: req.Email}
	patch.Apply(&usr)

	if err := s.directory.UpdateUser(ctx, &usr); err != nil {
		if errors.Is(err, userstore.ErrUserNotFound) {
			return nil, apperrors.ResourceNotFoundError(err, "user not found")
		}
		return nil, apperrors.GeneralError(err)
	}
	if err := store.UpdateUser(ctx, &usr); err != nil {
		return nil, apperrors.GeneralError(err)
	}
	return &usr, nil
}

func (s *authService) SetActivePlatform(ctx context.Context, sessionID, platformID string) error {
	store, _, err := s.authenticated(sessionID)
	if err != nil {
		return err
	}
	if err := store.SetActivePlatform(ctx, platformID); err != nil {
		if errors.Is(err, session.ErrPlatformNotOwned) {
			return apperrors.ForbiddenError(err, "platform not owned by user")
		}
		if errors.Is(err, session.ErrNotAuthenticated) {
			return apperrors.UnAuthorizedError(err, "not authenticated")
		}
		return apperrors.GeneralError(err)
	}
	return nil
}

func (s *authService) ClearActivePlatform(ctx context.Context, sessionID string) error {
	store, _, err := s.authenticated(sessionID)
	if err != nil {
		return err
	}
	if err := store.ClearActivePlatform(ctx); err != nil {
		return apperrors.GeneralError(err)
	}
	return nil
}

func (s *authService) authenticated(sessionID string) (*session.Store, session.State, error) {
	store, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, session.State{}, apperrors.UnAuthorizedError(session.ErrNotAuthenticated, "unknown session")
	}
	state := store.State()
	if !state.Authenticated() {
		return nil, session.State{}, apperrors.UnAuthorizedError(session.ErrNotAuthenticated, "not authenticated")
	}
	return store, state, nil
}
