package service

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/kredible/score-middleware/pkg/app/errors"
	apphttp "github.com/kredible/score-middleware/pkg/app/http"
	"github.com/kredible/score-middleware/pkg/auth"
)

// Handler exposes the authentication flow over HTTP.
type Handler struct {
	svc    Service
	tokens *auth.TokenManager
	logger *zap.Logger
}

// NewHandler creates the auth HTTP handler.
func NewHandler(svc Service, tokens *auth.TokenManager, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, tokens: tokens, logger: logger}
}

// Routes builds the /auth route tree. Prompt answering stays public: the
// session that opened the prompt is not authenticated yet.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/connect", apphttp.HandleError(h.connect))
	r.Post("/profile", apphttp.HandleError(h.completeProfile))
	r.Delete("/prompt/{id}", apphttp.HandleError(h.cancelPrompt))

	r.Group(func(r chi.Router) {
		r.Use(h.WithSession)
		r.Post("/disconnect", apphttp.HandleError(h.disconnect))
		r.Get("/session", apphttp.HandleError(h.session))
		r.Patch("/profile", apphttp.HandleError(h.updateProfile))
		r.Put("/platform/{id}", apphttp.HandleError(h.setActivePlatform))
		r.Delete("/platform", apphttp.HandleError(h.clearActivePlatform))
	})

	return r
}

// WithSession verifies the bearer token and injects the session identity
// into the request context. It does not require the session to be
// authenticated; the Access Guard covers routes that do.
func (h *Handler) WithSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			apphttp.DefaultErrorHandler(w, apperrors.UnAuthorizedError(
				errors.New("missing bearer token"), "missing bearer token"))
			return
		}
		claims, err := h.tokens.Verify(token)
		if err != nil {
			apphttp.DefaultErrorHandler(w, apperrors.UnAuthorizedError(err, "invalid session token"))
			return
		}
		ctx := auth.WithSessionID(r.Context(), claims.SessionID)
		ctx = auth.WithWalletAddress(ctx, claims.WalletAddress)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) connect(w http.ResponseWriter, r *http.Request) error {
	var req ConnectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequestError(err, "invalid request body")
	}
	result, err := h.svc.Connect(r.Context(), &req)
	if err != nil {
		return err
	}
	status := http.StatusOK
	if result.Status == StatusProfileRequired {
		status = http.StatusAccepted
	}
	apphttp.WriteJSON(w, status, result)
	return nil
}

func (h *Handler) completeProfile(w http.ResponseWriter, r *http.Request) error {
	var req ProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequestError(err, "invalid request body")
	}
	if err := h.svc.CompleteProfile(r.Context(), &req); err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
	return nil
}

func (h *Handler) cancelPrompt(w http.ResponseWriter, r *http.Request) error {
	if err := h.svc.CancelPrompt(r.Context(), chi.URLParam(r, "id")); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *Handler) disconnect(w http.ResponseWriter, r *http.Request) error {
	sessionID, _ := auth.SessionIDFromContext(r.Context())
	if err := h.svc.Disconnect(r.Context(), sessionID); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) error {
	sessionID, _ := auth.SessionIDFromContext(r.Context())
	state, err := h.svc.Session(r.Context(), sessionID)
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, state)
	return nil
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) error {
	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequestError(err, "invalid request body")
	}
	sessionID, _ := auth.SessionIDFromContext(r.Context())
	usr, err := h.svc.UpdateProfile(r.Context(), sessionID, &req)
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, usr)
	return nil
}

func (h *Handler) setActivePlatform(w http.ResponseWriter, r *http.Request) error {
	sessionID, _ := auth.SessionIDFromContext(r.Context())
	if err := h.svc.SetActivePlatform(r.Context(), sessionID, chi.URLParam(r, "id")); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *Handler) clearActivePlatform(w http.ResponseWriter, r *http.Request) error {
	sessionID, _ := auth.SessionIDFromContext(r.Context())
	if err := h.svc.ClearActivePlatform(r.Context(), sessionID); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
