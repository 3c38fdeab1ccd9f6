package guard

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kredible/score-middleware/pkg/auth"
	"github.com/kredible/score-middleware/pkg/session"
	"github.com/kredible/score-middleware/pkg/user"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name          string
		connected     bool
		authenticated bool
		want          Decision
	}{
		{"connected and authenticated", true, true, Granted},
		{"connected only", true, false, Blocked},
		{"authenticated only", false, true, Blocked},
		{"neither", false, false, Blocked},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Evaluate(tc.connected, tc.authenticated))
		})
	}
}

// memStash satisfies session.Stash for middleware tests.
type memStash struct{ entries map[string]string }

func (m *memStash) Get(_ context.Context, key string) (string, error) {
	v, ok := m.entries[key]
	if !ok {
		return "", session.ErrStashEntryNotFound
	}
	return v, nil
}
func (m *memStash) Put(_ context.Context, key, value string) error {
	m.entries[key] = value
	return nil
}
func (m *memStash) Delete(_ context.Context, key string) error {
	delete(m.entries, key)
	return nil
}

func setupMiddleware(t *testing.T) (*auth.TokenManager, *session.Manager, http.Handler) {
	t.Helper()

	tokens, err := auth.NewTokenManager([]byte("0123456789abcdef0123456789abcdef"), "score-middleware", time.Hour)
	require.NoError(t, err)

	sessions := session.NewManager(&memStash{entries: map[string]string{}}, zap.NewNop())

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	handler := Middleware(tokens, sessions, zap.NewNop())(next)
	return tokens, sessions, handler
}

func doRequest(handler http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestMiddlewareGrantsFullSession(t *testing.T) {
	tokens, sessions, handler := setupMiddleware(t)

	store := sessions.GetOrCreate("session-1")
	store.SetWallet("0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B")
	usr := user.New("0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B", "Alice", "alice@example.com")
	require.NoError(t, store.Login(context.Background(), usr))

	token, err := tokens.Issue("session-1", usr.WalletAddress)
	require.NoError(t, err)

	rec := doRequest(handler, token)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMiddlewareBlocksWalletOnly(t *testing.T) {
	tokens, sessions, handler := setupMiddleware(t)

	store := sessions.GetOrCreate("session-1")
	store.SetWallet("0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B")

	token, err := tokens.Issue("session-1", "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B")
	require.NoError(t, err)

	rec := doRequest(handler, token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddlewareBlocksAuthenticatedWithoutWallet(t *testing.T) {
	tokens, sessions, handler := setupMiddleware(t)

	store := sessions.GetOrCreate("session-1")
	usr := user.New("0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B", "Alice", "alice@example.com")
	require.NoError(t, store.Login(context.Background(), usr))
	// Wallet disconnected after login; the guard must block.

	token, err := tokens.Issue("session-1", usr.WalletAddress)
	require.NoError(t, err)

	rec := doRequest(handler, token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddlewareBlocksMissingToken(t *testing.T) {
	_, _, handler := setupMiddleware(t)
	rec := doRequest(handler, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddlewareBlocksGarbageToken(t *testing.T) {
	_, _, handler := setupMiddleware(t)
	rec := doRequest(handler, "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddlewareBlocksUnknownSession(t *testing.T) {
	tokens, _, handler := setupMiddleware(t)

	token, err := tokens.Issue("never-created", "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B")
	require.NoError(t, err)

	rec := doRequest(handler, token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
