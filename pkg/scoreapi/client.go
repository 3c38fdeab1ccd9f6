// Package scoreapi provides the client for the hosted credit score API, the
// fallback source when the on-chain registry is unreachable.
package scoreapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/kredible/score-middleware/pkg/config"
)

// ErrTransient marks network-class failures worth retrying.
var ErrTransient = errors.New("transient score API failure")

// ErrScoreNotFound is returned when the API holds no score for the address.
var ErrScoreNotFound = errors.New("no score recorded for address")

type scoreResponse struct {
	WalletAddress string `json:"wallet_address"`
	Score         int    `json:"score"`
	UpdatedAt     string `json:"updated_at"`
}

type updateRequest struct {
	Score int `json:"score"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Client is a thin REST client over the hosted score API.
type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

// NewClient creates a score API client from configuration.
func NewClient(cfg *config.ScoreAPIConfig, logger *zap.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.RequestTimeout).
		SetHeader("Accept", "application/json")

	return &Client{
		http:   httpClient,
		logger: logger,
	}
}

// GetScore fetches the stored score for a wallet address.
func (c *Client) GetScore(ctx context.Context, walletAddress string) (int, error) {
	var result scoreResponse
	var apiErr errorResponse

	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&result).
		SetError(&apiErr).
		SetPathParam("address", walletAddress).
		Get("/api/credit-score/{address}")
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrTransient, err)
	}

	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return 0, ErrScoreNotFound
	case resp.StatusCode() >= http.StatusInternalServerError:
		return 0, fmt.Errorf("%w: status %d", ErrTransient, resp.StatusCode())
	case resp.IsError():
		return 0, fmt.Errorf("score API rejected request (status %d): %s", resp.StatusCode(), apiErr.Error)
	}

	return result.Score, nil
}

// UpdateScore writes a score for a wallet address.
func (c *Client) UpdateScore(ctx context.Context, walletAddress string, score int) error {
	var apiErr errorResponse

	resp, err := c.http.R().
		SetContext(ctx).
		SetError(&apiErr).
		SetPathParam("address", walletAddress).
		SetBody(updateRequest{Score: score}).
		Put("/api/credit-score/{address}")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}

	switch {
	case resp.StatusCode() >= http.StatusInternalServerError:
		return fmt.Errorf("%w: status %d", ErrTransient, resp.StatusCode())
	case resp.IsError():
		return fmt.Errorf("score API rejected update (status %d): %s", resp.StatusCode(), apiErr.Error)
	}

	c.logger.Debug("score mirror updated",
		zap.String("address", walletAddress),
		zap.Int("score", score))

	return nil
}
