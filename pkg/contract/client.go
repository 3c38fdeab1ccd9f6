// Package contract provides the client for the on-chain credit score
// registry. Writes follow the ledger's two-phase flow: a simulation returns
// the envelope to sign, execution submits the signed envelope.
package contract

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	"github.com/kredible/score-middleware/pkg/config"
)

// ErrTransient marks network-class failures: the call never reached the
// registry or timed out, so a retry may succeed.
var ErrTransient = errors.New("transient registry failure")

// ErrScoreNotFound is returned when the registry holds no entry for the
// address.
var ErrScoreNotFound = errors.New("no score entry for address")

// UpdateRequest describes a score write against the registry.
type UpdateRequest struct {
	ContractID    string `json:"contractId"`
	WalletAddress string `json:"walletAddress"`
	Score         int    `json:"score"`
	Network       string `json:"network"`
}

// SimulationResult is the outcome of a simulated write: the envelope that
// must be signed for execution plus the registry's cost estimate.
type SimulationResult struct {
	Envelope     []byte `json:"envelope"`
	CostEstimate uint64 `json:"costEstimate"`
}

// scoreEntry is the registry's read response.
type scoreEntry struct {
	WalletAddress string `json:"walletAddress"`
	Score         int    `json:"score"`
	UpdatedAt     int64  `json:"updatedAt"`
	Found         bool   `json:"found"`
}

// executeResult is the registry's write response.
type executeResult struct {
	TransactionID string `json:"transactionId"`
}

// Client talks to the score registry node over JSON-RPC.
type Client struct {
	rpc         *rpc.Client
	contractID  string
	network     string
	callTimeout time.Duration
	logger      *zap.Logger
}

// NewClient dials the registry node described by cfg.
func NewClient(ctx context.Context, cfg *config.ContractConfig, logger *zap.Logger) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial registry node %s: %w", cfg.RPCURL, err)
	}

	return &Client{
		rpc:         rpcClient,
		contractID:  cfg.ContractID,
		network:     cfg.NetworkPassphrase,
		callTimeout: cfg.CallTimeout,
		logger:      logger,
	}, nil
}

// Close releases the underlying RPC connection.
func (c *Client) Close() {
	c.rpc.Close()
}

// ContractID returns the registry contract identifier this client is bound to.
func (c *Client) ContractID() string {
	return c.contractID
}

// NewUpdateRequest builds an UpdateRequest bound to this client's contract and
// network.
func (c *Client) NewUpdateRequest(walletAddress string, score int) *UpdateRequest {
	return &UpdateRequest{
		ContractID:    c.contractID,
		WalletAddress: walletAddress,
		Score:         score,
		Network:       c.network,
	}
}

// GetScore reads the current score entry for an address.
func (c *Client) GetScore(ctx context.Context, walletAddress string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	var entry scoreEntry
	err := c.rpc.CallContext(ctx, &entry, "score_getEntry", c.contractID, walletAddress)
	if err != nil {
		return 0, classify(err, "score_getEntry")
	}

	if !entry.Found {
		return 0, ErrScoreNotFound
	}

	return entry.Score, nil
}

// SimulateUpdate runs the write through the registry's simulation endpoint.
// No state changes; the returned envelope is what execution expects signed.
func (c *Client) SimulateUpdate(ctx context.Context, req *UpdateRequest) (*SimulationResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	var result SimulationResult
	err := c.rpc.CallContext(ctx, &result, "score_simulateUpdate", req)
	if err != nil {
		return nil, classify(err, "score_simulateUpdate")
	}

	if len(result.Envelope) == 0 {
		return nil, fmt.Errorf("simulation returned empty envelope for %s", req.WalletAddress)
	}

	c.logger.Debug("score update simulated",
		zap.String("address", req.WalletAddress),
		zap.Int("score", req.Score),
		zap.Uint64("cost_estimate", result.CostEstimate))

	return &result, nil
}

// ExecuteUpdate submits a previously simulated write with its envelope
// signature and returns the transaction id.
func (c *Client) ExecuteUpdate(ctx context.Context, req *UpdateRequest, signature []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	var result executeResult
	err := c.rpc.CallContext(ctx, &result, "score_executeUpdate", req, signature)
	if err != nil {
		return "", classify(err, "score_executeUpdate")
	}

	c.logger.Info("score update executed",
		zap.String("address", req.WalletAddress),
		zap.Int("score", req.Score),
		zap.String("tx_id", result.TransactionID))

	return result.TransactionID, nil
}

// classify separates registry-side rejections (JSON-RPC errors, never worth
// retrying) from transport failures (worth retrying).
func classify(err error, method string) error {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return fmt.Errorf("%s rejected (code %d): %w", method, rpcErr.ErrorCode(), err)
	}
	return fmt.Errorf("%w: %s: %v", ErrTransient, method, err)
}
