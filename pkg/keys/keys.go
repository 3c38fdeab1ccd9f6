// Package keys provides signing-key generation and encryption for the
// custodial signing model: score writes are signed by the middleware with a
// per-user secp256k1 key held encrypted under a master key.
package keys

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/hkdf"
)

// signingKeySize is the required size for signing keys (32 bytes for secp256k1).
const signingKeySize = 32

// SigningKeyPair represents a custodial signing keypair using secp256k1.
type SigningKeyPair struct {
	PublicKey  []byte // 33-byte compressed secp256k1 public key
	PrivateKey []byte // 32-byte secp256k1 private key
}

// GenerateSigningKeyPair generates a new secp256k1 keypair.
// This uses the same curve as the user's wallet for address compatibility.
func GenerateSigningKeyPair() (*SigningKeyPair, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate secp256k1 keypair: %w", err)
	}

	return &SigningKeyPair{
		PublicKey:  crypto.CompressPubkey(&privateKey.PublicKey),
		PrivateKey: crypto.FromECDSA(privateKey),
	}, nil
}

// DeriveSigningKeyPair deterministically derives a signing keypair from a
// wallet address and server seed, so the same keypair can be regenerated if
// the encrypted copy is lost. Uses HKDF with SHA-256 for key derivation.
func DeriveSigningKeyPair(walletAddress string, serverSeed []byte) (*SigningKeyPair, error) {
	if len(serverSeed) < 32 {
		return nil, fmt.Errorf("server seed must be at least 32 bytes")
	}

	info := []byte("score-signing-key-" + walletAddress)
	hkdfReader := hkdf.New(sha256.New, serverSeed, nil, info)

	privateKeyBytes := make([]byte, signingKeySize)
	if _, err := io.ReadFull(hkdfReader, privateKeyBytes); err != nil {
		return nil, fmt.Errorf("failed to derive key seed: %w", err)
	}

	privateKey, err := crypto.ToECDSA(privateKeyBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to create private key: %w", err)
	}

	return &SigningKeyPair{
		PublicKey:  crypto.CompressPubkey(&privateKey.PublicKey),
		PrivateKey: privateKeyBytes,
	}, nil
}

// SigningKeyPairFromPrivateKey reconstructs a keypair from a stored 32-byte
// private key.
func SigningKeyPairFromPrivateKey(privateKeyBytes []byte) (*SigningKeyPair, error) {
	if len(privateKeyBytes) != signingKeySize {
		return nil, fmt.Errorf("private key must be %d bytes, got %d", signingKeySize, len(privateKeyBytes))
	}

	privateKey, err := crypto.ToECDSA(privateKeyBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	return &SigningKeyPair{
		PublicKey:  crypto.CompressPubkey(&privateKey.PublicKey),
		PrivateKey: privateKeyBytes,
	}, nil
}

// PublicKeyHex returns the public key as a hex string (for display/logging)
func (kp *SigningKeyPair) PublicKeyHex() string {
	return fmt.Sprintf("%x", kp.PublicKey)
}

// Address derives the wallet-style address for this keypair.
func (kp *SigningKeyPair) Address() (string, error) {
	pubKey, err := crypto.DecompressPubkey(kp.PublicKey)
	if err != nil {
		return "", fmt.Errorf("failed to decompress public key: %w", err)
	}
	return crypto.PubkeyToAddress(*pubKey).Hex(), nil
}

// Sign signs a message with the private key using ECDSA over its SHA-256 hash.
// Returns the 64-byte R||S signature.
func (kp *SigningKeyPair) Sign(message []byte) ([]byte, error) {
	privateKey, err := crypto.ToECDSA(kp.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to convert private key: %w", err)
	}

	hash := sha256.Sum256(message)

	signature, err := crypto.Sign(hash[:], privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign: %w", err)
	}

	// crypto.Sign returns [R || S || V]; the contract envelope carries R||S.
	return signature[:64], nil
}

// Verify verifies a 64-byte R||S signature against a message.
func (kp *SigningKeyPair) Verify(message, signature []byte) bool {
	if len(signature) != 64 {
		return false
	}

	hash := sha256.Sum256(message)

	sig := make([]byte, 65)
	copy(sig, signature)

	actualPub, err := crypto.DecompressPubkey(kp.PublicKey)
	if err != nil {
		return false
	}
	expected := crypto.PubkeyToAddress(*actualPub)

	// Recovery id is not part of the stored signature; try both values.
	for _, v := range []byte{0, 1} {
		sig[64] = v
		recoveredPub, err := crypto.SigToPub(hash[:], sig)
		if err != nil {
			continue
		}
		if crypto.PubkeyToAddress(*recoveredPub) == expected {
			return true
		}
	}

	return false
}

// GenerateMasterKey generates a new random 32-byte master key for encrypting
// signing keys and API-key secrets. Store it in the environment or a secrets
// manager.
func GenerateMasterKey() ([]byte, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("failed to generate master key: %w", err)
	}
	return key, nil
}

// MasterKeyFromBase64 decodes a base64-encoded master key
func MasterKeyFromBase64(encoded string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode master key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("master key must be 32 bytes, got %d", len(key))
	}
	return key, nil
}
