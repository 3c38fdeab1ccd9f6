// Package wallet manages the connection between a client session and an
// external wallet provider.
package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/kredible/score-middleware/pkg/auth"
)

// ErrConnectionFailed is returned when the wallet provider rejects or fails a
// connection attempt.
var ErrConnectionFailed = errors.New("wallet connection failed")

// Provider is the external wallet boundary. Connect proves control of an
// address and returns it; Disconnect releases the connection on the provider
// side. Implementations must be safe for concurrent use.
type Provider interface {
	Connect(ctx context.Context) (string, error)
	Disconnect(ctx context.Context) error
}

// SignatureProvider proves wallet control from a signed challenge. The client
// signs the challenge message with its wallet key (EIP-191 personal_sign) and
// submits message and signature; Connect recovers and returns the address.
type SignatureProvider struct {
	message   string
	signature string
}

// NewSignatureProvider creates a provider for a single signed challenge.
func NewSignatureProvider(message, signature string) *SignatureProvider {
	return &SignatureProvider{message: message, signature: signature}
}

// Connect recovers the signer address from the challenge signature.
func (p *SignatureProvider) Connect(_ context.Context) (string, error) {
	addr, err := auth.VerifyPersonalSignature(p.message, p.signature)
	if err != nil {
		return "", fmt.Errorf("signature verification failed: %w", err)
	}
	return addr.Hex(), nil
}

// Disconnect is a no-op: a signature challenge holds no provider-side state.
func (p *SignatureProvider) Disconnect(_ context.Context) error {
	return nil
}
