package service

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "github.com/kredible/score-middleware/pkg/app/errors"
	"github.com/kredible/score-middleware/pkg/platform"
	"github.com/kredible/score-middleware/pkg/platformstore"
	"github.com/kredible/score-middleware/pkg/user"
	"github.com/kredible/score-middleware/pkg/userstore"
)

// memStore is an in-memory platformstore.Store.
type memStore struct {
	mu        sync.Mutex
	platforms map[string]*platform.Platform
	keys      map[string]*platform.APIKey
	hashes    map[string]string // key id -> hash
}

func newMemStore() *memStore {
	return &memStore{
		platforms: make(map[string]*platform.Platform),
		keys:      make(map[string]*platform.APIKey),
		hashes:    make(map[string]string),
	}
}

func (m *memStore) CreatePlatform(_ context.Context, p *platform.Platform) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	cp := *p
	m.platforms[p.ID] = &cp
	return nil
}

func (m *memStore) GetPlatform(_ context.Context, id string) (*platform.Platform, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.platforms[id]
	if !ok {
		return nil, platformstore.ErrPlatformNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) ListPlatformsByUser(_ context.Context, userID string) ([]*platform.Platform, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*platform.Platform
	for _, p := range m.platforms {
		if p.UserID == userID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memStore) UpdatePlatform(_ context.Context, p *platform.Platform) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.platforms[p.ID]; !ok {
		return platformstore.ErrPlatformNotFound
	}
	cp := *p
	m.platforms[p.ID] = &cp
	return nil
}

func (m *memStore) DeletePlatform(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.platforms[id]; !ok {
		return platformstore.ErrPlatformNotFound
	}
	delete(m.platforms, id)
	for keyID, key := range m.keys {
		if key.PlatformID == id {
			delete(m.keys, keyID)
			delete(m.hashes, keyID)
		}
	}
	return nil
}

func (m *memStore) CreateAPIKey(_ context.Context, key *platform.APIKey, secretHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if key.ID == "" {
		key.ID = uuid.NewString()
	}
	cp := *key
	m.keys[key.ID] = &cp
	m.hashes[key.ID] = secretHash
	return nil
}

func (m *memStore) ListAPIKeys(_ context.Context, platformID string) ([]*platform.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*platform.APIKey
	for _, key := range m.keys {
		if key.PlatformID == platformID {
			cp := *key
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memStore) CountAPIKeys(_ context.Context, platformID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, key := range m.keys {
		if key.PlatformID == platformID {
			count++
		}
	}
	return count, nil
}

func (m *memStore) SumAPIKeyUsage(_ context.Context, platformID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int64
	for _, key := range m.keys {
		if key.PlatformID == platformID {
			total += key.UsageCount
		}
	}
	return total, nil
}

func (m *memStore) DeleteAPIKey(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[id]; !ok {
		return platformstore.ErrAPIKeyNotFound
	}
	delete(m.keys, id)
	delete(m.hashes, id)
	return nil
}

func (m *memStore) FindAPIKeyByHash(_ context.Context, secretHash string) (*platform.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, hash := range m.hashes {
		if hash == secretHash {
			cp := *m.keys[id]
			return &cp, nil
		}
	}
	return nil, platformstore.ErrAPIKeyNotFound
}

func (m *memStore) RecordAPIKeyUse(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key, ok := m.keys[id]
	if !ok {
		return platformstore.ErrAPIKeyNotFound
	}
	key.UsageCount++
	return nil
}

// memDirectory is an in-memory UserDirectory.
type memDirectory struct {
	mu    sync.Mutex
	users map[string]*user.User
}

func (d *memDirectory) GetUser(_ context.Context, opts ...userstore.QueryOption) (*user.User, error) {
	options := &userstore.QueryOptions{}
	for _, opt := range opts {
		opt(options)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if options.ID != nil {
		if usr, ok := d.users[*options.ID]; ok {
			cp := *usr
			return &cp, nil
		}
	}
	return nil, userstore.ErrUserNotFound
}

func (d *memDirectory) UpdateUser(_ context.Context, usr *user.User) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := *usr
	d.users[usr.ID] = &cp
	return nil
}

func setup(t *testing.T) (Service, *memStore, *memDirectory, string) {
	t.Helper()

	usr := user.New("0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B", "Alice", "alice@example.com")
	usr.ID = uuid.NewString()
	dir := &memDirectory{users: map[string]*user.User{usr.ID: usr}}
	store := newMemStore()
	return New(store, dir, zap.NewNop()), store, dir, usr.ID
}

func TestCreatePlatformRefreshesUserCache(t *testing.T) {
	svc, _, dir, userID := setup(t)

	p, usr, err := svc.CreatePlatform(context.Background(), userID, &CreateRequest{
		Name: "Acme Lending", Description: "Consumer lending desk",
		ContactEmail: "ops@acme.example", Plan: "basic",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.True(t, p.Active)
	assert.Contains(t, usr.Platforms, p.ID)

	stored := dir.users[userID]
	assert.Contains(t, stored.Platforms, p.ID, "directory cache must be refreshed")
}

func TestCreatePlatformValidation(t *testing.T) {
	svc, _, _, userID := setup(t)

	_, _, err := svc.CreatePlatform(context.Background(), userID, &CreateRequest{
		Name: "", Description: "desk", ContactEmail: "ops@acme.example", Plan: "basic",
	})
	assert.True(t, apperrors.Is(err, apperrors.CategoryDataError))

	_, _, err = svc.CreatePlatform(context.Background(), userID, &CreateRequest{
		Name: "Acme", Description: "desk", ContactEmail: "ops@acme.example", Plan: "platinum",
	})
	assert.True(t, apperrors.Is(err, apperrors.CategoryDataError))
}

func TestCreatePlatformKeepsDescriptiveFields(t *testing.T) {
	svc, store, _, userID := setup(t)

	p, _, err := svc.CreatePlatform(context.Background(), userID, &CreateRequest{
		Name: "Acme Lending", Description: "Consumer lending desk",
		ContactEmail: "ops@acme.example", Plan: "basic",
	})
	require.NoError(t, err)
	assert.Equal(t, "Consumer lending desk", p.Description)
	assert.Equal(t, "ops@acme.example", p.ContactEmail)

	stored := store.platforms[p.ID]
	assert.Equal(t, "Consumer lending desk", stored.Description)
	assert.Equal(t, "ops@acme.example", stored.ContactEmail)
}

func TestCreatePlatformRejectsBadContactEmail(t *testing.T) {
	svc, _, _, userID := setup(t)

	_, _, err := svc.CreatePlatform(context.Background(), userID, &CreateRequest{
		Name: "Acme", Description: "desk", ContactEmail: "not-an-email", Plan: "basic",
	})
	assert.True(t, apperrors.Is(err, apperrors.CategoryDataError))
}

func TestPlatformUsageCounters(t *testing.T) {
	svc, _, _, userID := setup(t)
	ctx := context.Background()

	p, _, err := svc.CreatePlatform(ctx, userID, &CreateRequest{Name: "Acme", Description: "desk", ContactEmail: "ops@acme.example", Plan: "basic"})
	require.NoError(t, err)

	usage, err := svc.PlatformUsage(ctx, userID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, platform.PlanBasic, usage.Plan)
	assert.Equal(t, int64(0), usage.Used)
	assert.Equal(t, platform.PlanBasic.MaxQueries(), usage.MaxQueries)
	assert.Equal(t, usage.MaxQueries, usage.Remaining)

	issued, err := svc.IssueAPIKey(ctx, userID, p.ID, "production")
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := svc.VerifyAPIKey(ctx, issued.Secret)
		require.NoError(t, err)
	}

	usage, err = svc.PlatformUsage(ctx, userID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), usage.Used)
	assert.Equal(t, usage.MaxQueries-3, usage.Remaining)

	other := user.New("0x71C7656EC7ab88b098defB751B7401B5f6d8976F", "Mallory", "m@example.com")
	other.ID = uuid.NewString()
	_, err = svc.PlatformUsage(ctx, other.ID, p.ID)
	assert.True(t, apperrors.Is(err, apperrors.CategoryForbidden))
}

func TestUpdatePlatform(t *testing.T) {
	svc, _, _, userID := setup(t)
	ctx := context.Background()

	p, _, err := svc.CreatePlatform(ctx, userID, &CreateRequest{Name: "Acme", Description: "desk", ContactEmail: "ops@acme.example", Plan: "basic"})
	require.NoError(t, err)

	name := "Acme Capital"
	plan := "premium"
	updated, err := svc.UpdatePlatform(ctx, userID, p.ID, &UpdateRequest{Name: &name, Plan: &plan})
	require.NoError(t, err)
	assert.Equal(t, "Acme Capital", updated.Name)
	assert.Equal(t, platform.PlanPremium, updated.Plan)
	assert.Equal(t, "ops@acme.example", updated.ContactEmail, "unset fields stay untouched")
}

func TestPlatformOwnershipEnforced(t *testing.T) {
	svc, _, dir, userID := setup(t)
	ctx := context.Background()

	p, _, err := svc.CreatePlatform(ctx, userID, &CreateRequest{Name: "Acme", Description: "desk", ContactEmail: "ops@acme.example", Plan: "basic"})
	require.NoError(t, err)

	other := user.New("0x71C7656EC7ab88b098defB751B7401B5f6d8976F", "Mallory", "m@example.com")
	other.ID = uuid.NewString()
	dir.users[other.ID] = other

	_, err = svc.UpdatePlatform(ctx, other.ID, p.ID, &UpdateRequest{})
	assert.True(t, apperrors.Is(err, apperrors.CategoryForbidden))

	_, err = svc.DeletePlatform(ctx, other.ID, p.ID)
	assert.True(t, apperrors.Is(err, apperrors.CategoryForbidden))

	_, err = svc.IssueAPIKey(ctx, other.ID, p.ID, "sneaky")
	assert.True(t, apperrors.Is(err, apperrors.CategoryForbidden))
}

func TestDeletePlatformRefreshesUserCache(t *testing.T) {
	svc, _, _, userID := setup(t)
	ctx := context.Background()

	p, _, err := svc.CreatePlatform(ctx, userID, &CreateRequest{Name: "Acme", Description: "desk", ContactEmail: "ops@acme.example", Plan: "basic"})
	require.NoError(t, err)

	usr, err := svc.DeletePlatform(ctx, userID, p.ID)
	require.NoError(t, err)
	assert.NotContains(t, usr.Platforms, p.ID)
}

func TestIssueAPIKey(t *testing.T) {
	svc, _, _, userID := setup(t)
	ctx := context.Background()

	p, _, err := svc.CreatePlatform(ctx, userID, &CreateRequest{Name: "Acme", Description: "desk", ContactEmail: "ops@acme.example", Plan: "basic"})
	require.NoError(t, err)

	issued, err := svc.IssueAPIKey(ctx, userID, p.ID, "production")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(issued.Secret, "sk_"))
	assert.Equal(t, issued.Secret[:keyPrefixLen], issued.Prefix)
}

func TestAPIKeyQuotaPerPlan(t *testing.T) {
	svc, _, _, userID := setup(t)
	ctx := context.Background()

	p, _, err := svc.CreatePlatform(ctx, userID, &CreateRequest{Name: "Acme", Description: "desk", ContactEmail: "ops@acme.example", Plan: "basic"})
	require.NoError(t, err)

	quota := platform.PlanBasic.MaxAPIKeys()
	for i := 0; i < quota; i++ {
		_, err := svc.IssueAPIKey(ctx, userID, p.ID, "key")
		require.NoError(t, err)
	}

	_, err = svc.IssueAPIKey(ctx, userID, p.ID, "one too many")
	assert.True(t, apperrors.Is(err, apperrors.CategoryForbidden))

	// Upgrading the plan lifts the quota.
	plan := "premium"
	_, err = svc.UpdatePlatform(ctx, userID, p.ID, &UpdateRequest{Plan: &plan})
	require.NoError(t, err)

	_, err = svc.IssueAPIKey(ctx, userID, p.ID, "fits now")
	assert.NoError(t, err)
}

func TestVerifyAPIKey(t *testing.T) {
	svc, store, _, userID := setup(t)
	ctx := context.Background()

	p, _, err := svc.CreatePlatform(ctx, userID, &CreateRequest{Name: "Acme", Description: "desk", ContactEmail: "ops@acme.example", Plan: "basic"})
	require.NoError(t, err)

	issued, err := svc.IssueAPIKey(ctx, userID, p.ID, "production")
	require.NoError(t, err)

	key, err := svc.VerifyAPIKey(ctx, issued.Secret)
	require.NoError(t, err)
	assert.Equal(t, issued.ID, key.ID)
	assert.Equal(t, int64(1), store.keys[key.ID].UsageCount, "verification must count usage")

	_, err = svc.VerifyAPIKey(ctx, "sk_wrong")
	assert.True(t, apperrors.Is(err, apperrors.CategoryUnauthorized))
}

func TestRevokeAPIKey(t *testing.T) {
	svc, _, _, userID := setup(t)
	ctx := context.Background()

	p, _, err := svc.CreatePlatform(ctx, userID, &CreateRequest{Name: "Acme", Description: "desk", ContactEmail: "ops@acme.example", Plan: "basic"})
	require.NoError(t, err)

	issued, err := svc.IssueAPIKey(ctx, userID, p.ID, "production")
	require.NoError(t, err)

	require.NoError(t, svc.RevokeAPIKey(ctx, userID, p.ID, issued.ID))

	_, err = svc.VerifyAPIKey(ctx, issued.Secret)
	assert.True(t, apperrors.Is(err, apperrors.CategoryUnauthorized))

	err = svc.RevokeAPIKey(ctx, userID, p.ID, issued.ID)
	assert.True(t, apperrors.Is(err, apperrors.CategoryResourceNotFound))
}
