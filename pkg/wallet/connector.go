package wallet

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/kredible/score-middleware/pkg/auth"
)

// Connector tracks the wallet connection state for one client session.
// All provider failures surface as ErrConnectionFailed with the cause wrapped.
type Connector struct {
	provider Provider
	logger   *zap.Logger

	mu      sync.RWMutex
	address string
}

// NewConnector creates a Connector over the given provider.
func NewConnector(provider Provider, logger *zap.Logger) *Connector {
	return &Connector{
		provider: provider,
		logger:   logger,
	}
}

// Connect establishes the wallet connection and returns the normalized
// address. Calling Connect while already connected returns the current
// address without touching the provider.
func (c *Connector) Connect(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.address != "" {
		return c.address, nil
	}

	addr, err := c.provider.Connect(ctx)
	if err != nil {
		c.logger.Warn("wallet provider rejected connection", zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	if !auth.ValidateWalletAddress(addr) {
		return "", fmt.Errorf("%w: provider returned malformed address %q", ErrConnectionFailed, addr)
	}

	c.address = auth.NormalizeAddress(addr)
	c.logger.Info("wallet connected", zap.String("address", c.address))
	return c.address, nil
}

// Disconnect releases the provider connection and clears local state. Local
// state is cleared even when the provider disconnect fails, so a session never
// stays bound to a wallet the user asked to release.
func (c *Connector) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.address == "" {
		return nil
	}

	addr := c.address
	c.address = ""

	if err := c.provider.Disconnect(ctx); err != nil {
		c.logger.Warn("wallet provider disconnect failed", zap.String("address", addr), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	c.logger.Info("wallet disconnected", zap.String("address", addr))
	return nil
}

// CheckConnection reports whether a wallet is connected and, if so, its
// address.
func (c *Connector) CheckConnection() (bool, string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.address != "", c.address
}
