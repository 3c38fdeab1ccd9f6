package reconciler

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kredible/score-middleware/internal/metrics"
	"github.com/kredible/score-middleware/pkg/contract"
	"github.com/kredible/score-middleware/pkg/scoreapi"
	"github.com/kredible/score-middleware/pkg/user"
)

type mockUserStore struct {
	mu      sync.Mutex
	users   []*user.User
	listErr error
	cached  map[string]int
}

func (m *mockUserStore) ListUsers(_ context.Context) ([]*user.User, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.users, nil
}

func (m *mockUserStore) UpdateCreditScore(_ context.Context, walletAddress string, score int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cached == nil {
		m.cached = make(map[string]int)
	}
	m.cached[walletAddress] = score
	return nil
}

type mockRegistry struct {
	scores map[string]int
	errs   map[string]error
}

func (m *mockRegistry) GetScore(_ context.Context, walletAddress string) (int, error) {
	if err, ok := m.errs[walletAddress]; ok {
		return 0, err
	}
	score, ok := m.scores[walletAddress]
	if !ok {
		return 0, contract.ErrScoreNotFound
	}
	return score, nil
}

type mockMirror struct {
	mu      sync.Mutex
	scores  map[string]int
	updates map[string]int
}

func newMockMirror(scores map[string]int) *mockMirror {
	return &mockMirror{scores: scores, updates: make(map[string]int)}
}

func (m *mockMirror) GetScore(_ context.Context, walletAddress string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	score, ok := m.scores[walletAddress]
	if !ok {
		return 0, scoreapi.ErrScoreNotFound
	}
	return score, nil
}

func (m *mockMirror) UpdateScore(_ context.Context, walletAddress string, score int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scores[walletAddress] = score
	m.updates[walletAddress] = score
	return nil
}

func newUser(addr string, cached int) *user.User {
	usr := user.New(addr, "u", addr+"@example.com")
	usr.CreditScore = cached
	return usr
}

func TestReconcileRepairsMirrorDrift(t *testing.T) {
	store := &mockUserStore{users: []*user.User{newUser("0xaa", 640)}}
	registry := &mockRegistry{scores: map[string]int{"0xaa": 640}}
	mirror := newMockMirror(map[string]int{"0xaa": 580})

	r := New(store, registry, mirror, zap.NewNop())
	require.NoError(t, r.ReconcileAll(context.Background()))

	assert.Equal(t, 640, mirror.scores["0xaa"], "mirror repaired toward the registry")
	assert.Empty(t, store.cached, "cached score already matched")
}

func TestReconcileRepairsCachedScore(t *testing.T) {
	store := &mockUserStore{users: []*user.User{newUser("0xaa", 500)}}
	registry := &mockRegistry{scores: map[string]int{"0xaa": 700}}
	mirror := newMockMirror(map[string]int{"0xaa": 700})

	r := New(store, registry, mirror, zap.NewNop())
	require.NoError(t, r.ReconcileAll(context.Background()))

	assert.Equal(t, 700, store.cached["0xaa"])
	assert.Empty(t, mirror.updates, "mirror already matched")
}

func TestReconcileBackfillsMissingMirrorEntry(t *testing.T) {
	store := &mockUserStore{users: []*user.User{newUser("0xaa", 640)}}
	registry := &mockRegistry{scores: map[string]int{"0xaa": 640}}
	mirror := newMockMirror(map[string]int{})

	r := New(store, registry, mirror, zap.NewNop())
	require.NoError(t, r.ReconcileAll(context.Background()))

	assert.Equal(t, 640, mirror.scores["0xaa"])
}

func TestReconcileSkipsUnregisteredAddresses(t *testing.T) {
	store := &mockUserStore{users: []*user.User{newUser("0xaa", 500)}}
	registry := &mockRegistry{scores: map[string]int{}}
	mirror := newMockMirror(map[string]int{})

	r := New(store, registry, mirror, zap.NewNop())
	require.NoError(t, r.ReconcileAll(context.Background()))

	assert.Empty(t, mirror.updates)
	assert.Empty(t, store.cached)
}

func TestReconcileContinuesPastReadFailures(t *testing.T) {
	store := &mockUserStore{users: []*user.User{
		newUser("0xaa", 500),
		newUser("0xbb", 500),
	}}
	registry := &mockRegistry{
		scores: map[string]int{"0xbb": 620},
		errs:   map[string]error{"0xaa": errors.New("rpc down")},
	}
	mirror := newMockMirror(map[string]int{})

	r := New(store, registry, mirror, zap.NewNop())
	require.NoError(t, r.ReconcileAll(context.Background()))

	assert.Equal(t, 620, mirror.scores["0xbb"], "healthy addresses still reconcile")
}

func TestReconcileReportsDriftGauge(t *testing.T) {
	store := &mockUserStore{users: []*user.User{
		newUser("0xaa", 640),
		newUser("0xbb", 700),
	}}
	registry := &mockRegistry{scores: map[string]int{"0xaa": 640, "0xbb": 700}}
	mirror := newMockMirror(map[string]int{"0xaa": 580, "0xbb": 700})

	r := New(store, registry, mirror, zap.NewNop())
	require.NoError(t, r.ReconcileAll(context.Background()))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.ReconciliationDrift))

	// A clean follow-up pass resets the gauge.
	require.NoError(t, r.ReconcileAll(context.Background()))
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.ReconciliationDrift))
}

func TestReconcileListFailure(t *testing.T) {
	store := &mockUserStore{listErr: errors.New("db down")}
	r := New(store, &mockRegistry{}, newMockMirror(nil), zap.NewNop())
	assert.Error(t, r.ReconcileAll(context.Background()))
}
