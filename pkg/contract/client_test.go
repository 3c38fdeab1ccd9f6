package contract

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kredible/score-middleware/pkg/config"
)

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// newRegistryServer serves a fake registry node where each method either
// returns the configured result or the configured error.
func newRegistryServer(t *testing.T, results map[string]any, errs map[string]*rpcError) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		resp := rpcResponse{JSONRPC: "2.0", ID: req.ID}
		if rpcErr, ok := errs[req.Method]; ok {
			resp.Error = rpcErr
		} else if result, ok := results[req.Method]; ok {
			resp.Result = result
		} else {
			resp.Error = &rpcError{Code: -32601, Message: "method not found"}
		}

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	client, err := NewClient(context.Background(), &config.ContractConfig{
		RPCURL:            url,
		ContractID:        "registry-1",
		NetworkPassphrase: "testnet",
		CallTimeout:       5 * time.Second,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client
}

func TestGetScore(t *testing.T) {
	srv := newRegistryServer(t, map[string]any{
		"score_getEntry": scoreEntry{
			WalletAddress: "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B",
			Score:         675,
			Found:         true,
		},
	}, nil)
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	score, err := client.GetScore(context.Background(), "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B")
	require.NoError(t, err)
	assert.Equal(t, 675, score)
}

func TestGetScoreNotFound(t *testing.T) {
	srv := newRegistryServer(t, map[string]any{
		"score_getEntry": scoreEntry{Found: false},
	}, nil)
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	_, err := client.GetScore(context.Background(), "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B")
	assert.ErrorIs(t, err, ErrScoreNotFound)
}

func TestGetScoreRegistryRejection(t *testing.T) {
	srv := newRegistryServer(t, nil, map[string]*rpcError{
		"score_getEntry": {Code: 100, Message: "contract paused"},
	})
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	_, err := client.GetScore(context.Background(), "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTransient, "registry rejections are not retryable")
	assert.Contains(t, err.Error(), "contract paused")
}

func TestGetScoreTransportFailure(t *testing.T) {
	srv := newRegistryServer(t, nil, nil)
	client := newTestClient(t, srv.URL)
	srv.Close()

	_, err := client.GetScore(context.Background(), "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B")
	assert.ErrorIs(t, err, ErrTransient)
}

func TestSimulateUpdate(t *testing.T) {
	srv := newRegistryServer(t, map[string]any{
		"score_simulateUpdate": SimulationResult{
			Envelope:     []byte("envelope-bytes"),
			CostEstimate: 1200,
		},
	}, nil)
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	req := client.NewUpdateRequest("0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B", 710)
	assert.Equal(t, "registry-1", req.ContractID)
	assert.Equal(t, "testnet", req.Network)

	result, err := client.SimulateUpdate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []byte("envelope-bytes"), result.Envelope)
	assert.Equal(t, uint64(1200), result.CostEstimate)
}

func TestSimulateUpdateEmptyEnvelope(t *testing.T) {
	srv := newRegistryServer(t, map[string]any{
		"score_simulateUpdate": SimulationResult{},
	}, nil)
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	req := client.NewUpdateRequest("0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B", 710)

	_, err := client.SimulateUpdate(context.Background(), req)
	assert.Error(t, err)
}

func TestExecuteUpdate(t *testing.T) {
	srv := newRegistryServer(t, map[string]any{
		"score_executeUpdate": executeResult{TransactionID: "tx-abc123"},
	}, nil)
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	req := client.NewUpdateRequest("0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B", 710)

	txID, err := client.ExecuteUpdate(context.Background(), req, []byte("signature"))
	require.NoError(t, err)
	assert.Equal(t, "tx-abc123", txID)
}

func TestExecuteUpdateRejection(t *testing.T) {
	srv := newRegistryServer(t, nil, map[string]*rpcError{
		"score_executeUpdate": {Code: 200, Message: "invalid envelope signature"},
	})
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	req := client.NewUpdateRequest("0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B", 710)

	_, err := client.ExecuteUpdate(context.Background(), req, []byte("bad"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTransient)
}

func TestCallTimeoutIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	client, err := NewClient(context.Background(), &config.ContractConfig{
		RPCURL:      srv.URL,
		ContractID:  "registry-1",
		CallTimeout: 20 * time.Millisecond,
	}, zap.NewNop())
	require.NoError(t, err)
	defer client.Close()

	_, err = client.GetScore(context.Background(), "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTransient))
}
