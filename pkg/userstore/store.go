package userstore

import (
	"context"
	"errors"

	"github.com/kredible/score-middleware/pkg/user"
)

// ErrUserNotFound is returned when a user lookup finds no matching record.
var ErrUserNotFound = errors.New("user not found")

// ErrAddressTaken is returned when a create collides with an existing record
// for the same wallet address. The unique index on wallet_address makes
// concurrent first-time creates for one address detectable.
var ErrAddressTaken = errors.New("wallet address already registered")

// ErrKeyNotFound is returned when a signing key lookup finds no record.
var ErrKeyNotFound = errors.New("signing key not found")

// Directory defines the user lookup and lifecycle operations the identity
// resolver depends on.
type Directory interface {
	CreateUser(ctx context.Context, user *user.User) error
	GetUser(ctx context.Context, opts ...QueryOption) (*user.User, error)
	UserExists(ctx context.Context, walletAddress string) (bool, error)
	UpdateUser(ctx context.Context, user *user.User) error
	DeleteUser(ctx context.Context, walletAddress string) error
}

// KeyDecryptor decrypts an encrypted signing key string into raw bytes.
type KeyDecryptor func(encryptedKey string) ([]byte, error)

// KeyStore defines signing key persistence for custodial score writes.
type KeyStore interface {
	SetSigningKey(ctx context.Context, walletAddress, encryptedKey string) error
	GetSigningKey(ctx context.Context, decryptor KeyDecryptor, opts ...QueryOption) ([]byte, error)
}

// Store defines the interface for user data persistence.
type Store interface {
	Directory
	KeyStore
	ListUsers(ctx context.Context) ([]*user.User, error)
	UpdateCreditScore(ctx context.Context, walletAddress string, score int) error
}

// QueryOptions defines options for querying users
type QueryOptions struct {
	ID            *string
	WalletAddress *string
	Email         *string
}

// QueryOption is a functional option for querying users
type QueryOption func(*QueryOptions)

// WithID sets the user id filter
func WithID(id string) QueryOption {
	return func(opts *QueryOptions) {
		opts.ID = &id
	}
}

// WithWalletAddress sets the wallet address filter
func WithWalletAddress(walletAddress string) QueryOption {
	return func(opts *QueryOptions) {
		opts.WalletAddress = &walletAddress
	}
}

// WithEmail sets the email filter
func WithEmail(email string) QueryOption {
	return func(opts *QueryOptions) {
		opts.Email = &email
	}
}
