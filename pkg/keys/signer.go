package keys

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kredible/score-middleware/pkg/userstore"
)

// CustodialSigner signs registry envelopes with per-user signing keys held
// encrypted in the user store.
type CustodialSigner struct {
	store  userstore.KeyStore
	cipher KeyCipher
	logger *zap.Logger
}

// NewCustodialSigner creates a signer over the key store and cipher.
func NewCustodialSigner(store userstore.KeyStore, cipher KeyCipher, logger *zap.Logger) *CustodialSigner {
	return &CustodialSigner{
		store:  store,
		cipher: cipher,
		logger: logger,
	}
}

// SignEnvelope signs an envelope with the wallet's custodial key.
func (s *CustodialSigner) SignEnvelope(ctx context.Context, walletAddress string, envelope []byte) ([]byte, error) {
	raw, err := s.store.GetSigningKey(ctx, s.cipher.Decrypt, userstore.WithWalletAddress(walletAddress))
	if err != nil {
		return nil, fmt.Errorf("failed to load signing key for %s: %w", walletAddress, err)
	}

	kp, err := SigningKeyPairFromPrivateKey(raw)
	if err != nil {
		return nil, fmt.Errorf("stored signing key for %s is invalid: %w", walletAddress, err)
	}

	return kp.Sign(envelope)
}

// EnsureSigningKey generates, encrypts and stores a signing key for the
// wallet if none exists yet. Safe to call on every login.
func (s *CustodialSigner) EnsureSigningKey(ctx context.Context, walletAddress string) error {
	_, err := s.store.GetSigningKey(ctx, s.cipher.Decrypt, userstore.WithWalletAddress(walletAddress))
	if err == nil {
		return nil
	}
	if !errors.Is(err, userstore.ErrKeyNotFound) {
		return fmt.Errorf("failed to check signing key for %s: %w", walletAddress, err)
	}

	kp, err := GenerateSigningKeyPair()
	if err != nil {
		return err
	}

	encrypted, err := s.cipher.Encrypt(kp.PrivateKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt signing key: %w", err)
	}

	if err := s.store.SetSigningKey(ctx, walletAddress, encrypted); err != nil {
		return fmt.Errorf("failed to store signing key: %w", err)
	}

	s.logger.Info("custodial signing key provisioned", zap.String("address", walletAddress))
	return nil
}
