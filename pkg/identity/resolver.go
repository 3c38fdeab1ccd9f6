package identity

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kredible/score-middleware/pkg/auth"
	"github.com/kredible/score-middleware/pkg/user"
	"github.com/kredible/score-middleware/pkg/userstore"
)

// Prompter collects profile information for a wallet address that has no
// user yet. PromptProfile blocks until the user answers, cancels, or the
// prompt times out.
type Prompter interface {
	PromptProfile(ctx context.Context, walletAddress string) (*ProfileInput, error)
}

// PrompterFunc adapts a function to the Prompter interface.
type PrompterFunc func(ctx context.Context, walletAddress string) (*ProfileInput, error)

// PromptProfile implements Prompter.
func (f PrompterFunc) PromptProfile(ctx context.Context, walletAddress string) (*ProfileInput, error) {
	return f(ctx, walletAddress)
}

// Resolver resolves wallet addresses to users, creating them through the
// prompter on first contact.
type Resolver struct {
	directory userstore.Directory
	prompter  Prompter
	logger    *zap.Logger

	group singleflight.Group
}

// NewResolver creates a Resolver over the directory and prompter.
func NewResolver(directory userstore.Directory, prompter Prompter, logger *zap.Logger) *Resolver {
	return &Resolver{
		directory: directory,
		prompter:  prompter,
		logger:    logger,
	}
}

// Resolve returns the user for a wallet address, creating one through the
// interactive prompt when the address is unknown. Concurrent calls for the
// same address share a single resolution.
func (r *Resolver) Resolve(ctx context.Context, walletAddress string) (*user.User, error) {
	addr := auth.NormalizeAddress(walletAddress)

	v, err, _ := r.group.Do(addr, func() (any, error) {
		return r.resolve(ctx, addr)
	})
	if err != nil {
		return nil, err
	}
	return v.(*user.User), nil
}

func (r *Resolver) resolve(ctx context.Context, addr string) (*user.User, error) {
	usr, err := r.directory.GetUser(ctx, userstore.WithWalletAddress(addr))
	if err == nil {
		return usr, nil
	}
	if !errors.Is(err, userstore.ErrUserNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}

	input, err := r.prompter.PromptProfile(ctx, addr)
	if err != nil {
		if errors.Is(err, ErrPromptCancelled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: prompt failed: %v", ErrPromptCancelled, err)
	}

	usr = user.New(addr, input.Name, input.Email)
	err = r.directory.CreateUser(ctx, usr)
	if err == nil {
		r.logger.Info("user registered",
			zap.String("address", addr),
			zap.String("user_id", usr.ID))
		return usr, nil
	}

	if !errors.Is(err, userstore.ErrAddressTaken) {
		return nil, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}

	// Someone else registered this address first. Adopt their record; the
	// address can only ever map to one user.
	existing, getErr := r.directory.GetUser(ctx, userstore.WithWalletAddress(addr))
	if getErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrCreationConflict, getErr)
	}

	r.logger.Info("adopted existing user after create conflict",
		zap.String("address", addr),
		zap.String("user_id", existing.ID))
	return existing, nil
}
