package service

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/kredible/score-middleware/pkg/app/errors"
	apphttp "github.com/kredible/score-middleware/pkg/app/http"
	"github.com/kredible/score-middleware/pkg/auth"
	"github.com/kredible/score-middleware/pkg/session"
	"github.com/kredible/score-middleware/pkg/user"
)

// Handler exposes platform and API-key management over HTTP. All routes
// expect an authenticated session; the access guard runs upstream.
type Handler struct {
	svc      Service
	sessions *session.Manager
	logger   *zap.Logger
}

// NewHandler creates the platform HTTP handler.
func NewHandler(svc Service, sessions *session.Manager, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, sessions: sessions, logger: logger}
}

// Routes builds the /platforms route tree.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", apphttp.HandleError(h.create))
	r.Get("/", apphttp.HandleError(h.list))
	r.Patch("/{id}", apphttp.HandleError(h.update))
	r.Delete("/{id}", apphttp.HandleError(h.delete))
	r.Get("/{id}/usage", apphttp.HandleError(h.usage))

	r.Post("/{id}/keys", apphttp.HandleError(h.issueKey))
	r.Get("/{id}/keys", apphttp.HandleError(h.listKeys))
	r.Delete("/{id}/keys/{keyID}", apphttp.HandleError(h.revokeKey))

	return r
}

// sessionUser resolves the calling session's store and user id.
func (h *Handler) sessionUser(r *http.Request) (*session.Store, string, error) {
	sessionID, ok := auth.SessionIDFromContext(r.Context())
	if !ok {
		return nil, "", apperrors.UnAuthorizedError(session.ErrNotAuthenticated, "missing session")
	}
	store, ok := h.sessions.Get(sessionID)
	if !ok {
		return nil, "", apperrors.UnAuthorizedError(session.ErrNotAuthenticated, "unknown session")
	}
	state := store.State()
	if !state.Authenticated() {
		return nil, "", apperrors.UnAuthorizedError(session.ErrNotAuthenticated, "not authenticated")
	}
	return store, state.User.ID, nil
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) error {
	store, userID, err := h.sessionUser(r)
	if err != nil {
		return err
	}

	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequestError(err, "invalid request body")
	}

	p, usr, err := h.svc.CreatePlatform(r.Context(), userID, &req)
	if err != nil {
		return err
	}
	h.refreshSession(r, store, usr)

	apphttp.WriteJSON(w, http.StatusCreated, p)
	return nil
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) error {
	_, userID, err := h.sessionUser(r)
	if err != nil {
		return err
	}
	platforms, err := h.svc.ListPlatforms(r.Context(), userID)
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, platforms)
	return nil
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) error {
	_, userID, err := h.sessionUser(r)
	if err != nil {
		return err
	}

	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequestError(err, "invalid request body")
	}

	p, err := h.svc.UpdatePlatform(r.Context(), userID, chi.URLParam(r, "id"), &req)
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, p)
	return nil
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) error {
	store, userID, err := h.sessionUser(r)
	if err != nil {
		return err
	}

	usr, err := h.svc.DeletePlatform(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		return err
	}
	h.refreshSession(r, store, usr)

	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *Handler) usage(w http.ResponseWriter, r *http.Request) error {
	_, userID, err := h.sessionUser(r)
	if err != nil {
		return err
	}
	usage, err := h.svc.PlatformUsage(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, usage)
	return nil
}

func (h *Handler) issueKey(w http.ResponseWriter, r *http.Request) error {
	_, userID, err := h.sessionUser(r)
	if err != nil {
		return err
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequestError(err, "invalid request body")
	}

	issued, err := h.svc.IssueAPIKey(r.Context(), userID, chi.URLParam(r, "id"), req.Name)
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusCreated, issued)
	return nil
}

func (h *Handler) listKeys(w http.ResponseWriter, r *http.Request) error {
	_, userID, err := h.sessionUser(r)
	if err != nil {
		return err
	}
	keys, err := h.svc.ListAPIKeys(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, keys)
	return nil
}

func (h *Handler) revokeKey(w http.ResponseWriter, r *http.Request) error {
	_, userID, err := h.sessionUser(r)
	if err != nil {
		return err
	}
	if err := h.svc.RevokeAPIKey(r.Context(), userID, chi.URLParam(r, "id"), chi.URLParam(r, "keyID")); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// refreshSession pushes the updated user into the session so a selection of
// a platform that just disappeared is cleared.
func (h *Handler) refreshSession(r *http.Request, store *session.Store, usr *user.User) {
	if err := store.UpdateUser(r.Context(), usr); err != nil {
		h.logger.Warn("failed to refresh session user after platform change",
			zap.String("user_id", usr.ID), zap.Error(err))
	}
}
