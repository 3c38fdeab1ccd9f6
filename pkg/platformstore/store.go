package platformstore

import (
	"context"
	"errors"

	"github.com/kredible/score-middleware/pkg/platform"
)

// ErrPlatformNotFound is returned when a platform lookup finds no record.
var ErrPlatformNotFound = errors.New("platform not found")

// ErrAPIKeyNotFound is returned when an API key lookup finds no record.
var ErrAPIKeyNotFound = errors.New("api key not found")

// Store defines the interface for platform and API key persistence.
type Store interface {
	CreatePlatform(ctx context.Context, p *platform.Platform) error
	GetPlatform(ctx context.Context, id string) (*platform.Platform, error)
	ListPlatformsByUser(ctx context.Context, userID string) ([]*platform.Platform, error)
	UpdatePlatform(ctx context.Context, p *platform.Platform) error
	DeletePlatform(ctx context.Context, id string) error

	CreateAPIKey(ctx context.Context, key *platform.APIKey, secretHash string) error
	ListAPIKeys(ctx context.Context, platformID string) ([]*platform.APIKey, error)
	CountAPIKeys(ctx context.Context, platformID string) (int, error)
	SumAPIKeyUsage(ctx context.Context, platformID string) (int64, error)
	DeleteAPIKey(ctx context.Context, id string) error
	FindAPIKeyByHash(ctx context.Context, secretHash string) (*platform.APIKey, error)
	RecordAPIKeyUse(ctx context.Context, id string) error
}
