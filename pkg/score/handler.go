package score

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/kredible/score-middleware/pkg/app/errors"
	apphttp "github.com/kredible/score-middleware/pkg/app/http"
	"github.com/kredible/score-middleware/pkg/auth"
	"github.com/kredible/score-middleware/pkg/userstore"
)

// ScoreCache mirrors a freshly written score onto the user record.
type ScoreCache interface {
	UpdateCreditScore(ctx context.Context, walletAddress string, score int) error
}

// Handler exposes score reads and writes over HTTP. Records always carry
// their source so a caller can tell a contract reading from the REST mirror.
type Handler struct {
	oracle *Oracle
	cache  ScoreCache
	logger *zap.Logger
}

// NewHandler creates the score HTTP handler.
func NewHandler(oracle *Oracle, cache ScoreCache, logger *zap.Logger) *Handler {
	return &Handler{oracle: oracle, cache: cache, logger: logger}
}

// Routes builds the /credit-score route tree.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/{address}", apphttp.HandleError(h.get))
	r.Post("/", apphttp.HandleError(h.submit))
	return r
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) error {
	address := chi.URLParam(r, "address")
	if !auth.ValidateWalletAddress(address) {
		return apperrors.BadRequestError(errors.New("invalid wallet address"), "invalid wallet address")
	}

	record, err := h.oracle.GetScore(r.Context(), auth.NormalizeAddress(address))
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			return apperrors.DependencyError(err, "score unavailable")
		}
		return apperrors.GeneralError(err)
	}

	apphttp.WriteJSON(w, http.StatusOK, record)
	return nil
}

type submitRequest struct {
	WalletAddress string `json:"wallet_address"`
	Score         int    `json:"score"`
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) error {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequestError(err, "invalid request body")
	}
	if !auth.ValidateWalletAddress(req.WalletAddress) {
		return apperrors.BadRequestError(errors.New("invalid wallet address"), "invalid wallet address")
	}

	address := auth.NormalizeAddress(req.WalletAddress)
	record, err := h.oracle.SubmitScore(r.Context(), address, req.Score)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidScoreRange):
			return apperrors.BadRequestError(err, "score out of range")
		case errors.Is(err, ErrUnavailable):
			return apperrors.DependencyError(err, "score write failed")
		}
		return apperrors.GeneralError(err)
	}

	// Best effort: the registry stays the source of truth, the cached copy
	// only feeds dashboard listings.
	if err := h.cache.UpdateCreditScore(r.Context(), address, record.Score); err != nil &&
		!errors.Is(err, userstore.ErrUserNotFound) {
		h.logger.Warn("failed to cache credit score",
			zap.String("address", address), zap.Error(err))
	}

	apphttp.WriteJSON(w, http.StatusOK, record)
	return nil
}
