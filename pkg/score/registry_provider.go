package score

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kredible/score-middleware/pkg/contract"
)

// Registry is the on-chain score registry surface this provider needs.
type Registry interface {
	GetScore(ctx context.Context, walletAddress string) (int, error)
	NewUpdateRequest(walletAddress string, score int) *contract.UpdateRequest
	SimulateUpdate(ctx context.Context, req *contract.UpdateRequest) (*contract.SimulationResult, error)
	ExecuteUpdate(ctx context.Context, req *contract.UpdateRequest, signature []byte) (string, error)
}

// EnvelopeSigner signs a simulated update envelope with the custodial key
// held for the wallet address.
type EnvelopeSigner interface {
	SignEnvelope(ctx context.Context, walletAddress string, envelope []byte) ([]byte, error)
}

// RegistryProvider reads and writes scores through the on-chain registry.
// Writes are simulated first; the signed envelope from the simulation is what
// gets executed.
type RegistryProvider struct {
	registry Registry
	signer   EnvelopeSigner
	logger   *zap.Logger
}

// NewRegistryProvider creates the contract-backed score provider.
func NewRegistryProvider(registry Registry, signer EnvelopeSigner, logger *zap.Logger) *RegistryProvider {
	return &RegistryProvider{
		registry: registry,
		signer:   signer,
		logger:   logger,
	}
}

// Source returns SourceContract.
func (p *RegistryProvider) Source() Source {
	return SourceContract
}

// Fetch reads the score entry for the address from the registry.
func (p *RegistryProvider) Fetch(ctx context.Context, walletAddress string) (int, error) {
	value, err := p.registry.GetScore(ctx, walletAddress)
	if err != nil {
		if errors.Is(err, contract.ErrTransient) {
			return 0, fmt.Errorf("%w: %v", ErrTransient, err)
		}
		return 0, fmt.Errorf("registry read failed: %w", err)
	}
	return value, nil
}

// Submit writes the score through the registry's simulate-then-execute flow.
func (p *RegistryProvider) Submit(ctx context.Context, walletAddress string, value int) error {
	req := p.registry.NewUpdateRequest(walletAddress, value)

	sim, err := p.registry.SimulateUpdate(ctx, req)
	if err != nil {
		if errors.Is(err, contract.ErrTransient) {
			return fmt.Errorf("%w: %v", ErrTransient, err)
		}
		return fmt.Errorf("registry simulation failed: %w", err)
	}

	signature, err := p.signer.SignEnvelope(ctx, walletAddress, sim.Envelope)
	if err != nil {
		return fmt.Errorf("envelope signing failed: %w", err)
	}

	txID, err := p.registry.ExecuteUpdate(ctx, req, signature)
	if err != nil {
		if errors.Is(err, contract.ErrTransient) {
			return fmt.Errorf("%w: %v", ErrTransient, err)
		}
		return fmt.Errorf("registry execution failed: %w", err)
	}

	p.logger.Info("score written to registry",
		zap.String("address", walletAddress),
		zap.Int("score", value),
		zap.String("tx_id", txID))

	return nil
}
