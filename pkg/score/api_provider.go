package score

import (
	"context"
	"errors"
	"fmt"

	"github.com/kredible/score-middleware/pkg/scoreapi"
)

// ScoreAPI is the hosted score API surface this provider needs.
type ScoreAPI interface {
	GetScore(ctx context.Context, walletAddress string) (int, error)
	UpdateScore(ctx context.Context, walletAddress string, score int) error
}

// APIProvider reads and writes scores through the hosted score API.
type APIProvider struct {
	api ScoreAPI
}

// NewAPIProvider creates the REST-backed score provider.
func NewAPIProvider(api ScoreAPI) *APIProvider {
	return &APIProvider{api: api}
}

// Source returns SourceAPI.
func (p *APIProvider) Source() Source {
	return SourceAPI
}

// Fetch reads the stored score for the address.
func (p *APIProvider) Fetch(ctx context.Context, walletAddress string) (int, error) {
	value, err := p.api.GetScore(ctx, walletAddress)
	if err != nil {
		if errors.Is(err, scoreapi.ErrTransient) {
			return 0, fmt.Errorf("%w: %v", ErrTransient, err)
		}
		return 0, fmt.Errorf("score API read failed: %w", err)
	}
	return value, nil
}

// Submit writes the score to the hosted API.
func (p *APIProvider) Submit(ctx context.Context, walletAddress string, value int) error {
	if err := p.api.UpdateScore(ctx, walletAddress, value); err != nil {
		if errors.Is(err, scoreapi.ErrTransient) {
			return fmt.Errorf("%w: %v", ErrTransient, err)
		}
		return fmt.Errorf("score API write failed: %w", err)
	}
	return nil
}
