package guard

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/kredible/score-middleware/internal/metrics"
	"github.com/kredible/score-middleware/pkg/auth"
	"github.com/kredible/score-middleware/pkg/session"
)

// Middleware authenticates the session token, evaluates the guard against the
// session's state, and blocks the request unless access is granted.
func Middleware(tokens *auth.TokenManager, sessions *session.Manager, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				deny(w, logger, "missing bearer token")
				return
			}

			claims, err := tokens.Verify(token)
			if err != nil {
				deny(w, logger, "invalid session token")
				return
			}

			store, ok := sessions.Get(claims.SessionID)
			if !ok {
				deny(w, logger, "unknown session")
				return
			}

			state := store.State()
			if Evaluate(state.Connected, state.Authenticated()) != Granted {
				metrics.AccessBlocked.Inc()
				deny(w, logger, "session not fully authenticated")
				return
			}

			ctx := auth.WithSessionID(r.Context(), claims.SessionID)
			ctx = auth.WithWalletAddress(ctx, state.WalletAddress)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
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
	return parts[1]
}

func deny(w http.ResponseWriter, logger *zap.Logger, reason string) {
	logger.Debug("request blocked", zap.String("reason", reason))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
}
