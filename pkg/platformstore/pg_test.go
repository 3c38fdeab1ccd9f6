package platformstore

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kredible/score-middleware/pkg/pgutil"
	mghelper "github.com/kredible/score-middleware/pkg/pgutil/migrations"
	"github.com/kredible/score-middleware/pkg/platform"
)

func setupStore(t *testing.T) (context.Context, *pgStore) {
	t.Helper()
	requireDockerAccess(t)

	ctx := context.Background()
	db, cleanup := pgutil.SetupTestDB(t)
	t.Cleanup(cleanup)

	if err := mghelper.CreateSchema(ctx, db, &PlatformDao{}, &APIKeyDao{}); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	return ctx, NewStore(db)
}

func requireDockerAccess(t *testing.T) {
	t.Helper()

	candidates := []string{
		"/var/run/docker.sock",
		filepath.Join(os.Getenv("HOME"), ".docker/run/docker.sock"),
	}

	for _, sock := range candidates {
		if sock == "" {
			continue
		}
		if _, err := os.Stat(sock); err != nil {
			continue
		}
		conn, err := (&net.Dialer{}).DialContext(context.Background(), "unix", sock)
		if err == nil {
			_ = conn.Close()
			return
		}
	}

	t.Skip("docker daemon socket is not accessible; skipping testcontainer-backed platform tests")
}

func newTestPlatform(userID string) *platform.Platform {
	return &platform.Platform{
		UserID:       userID,
		Name:         "Acme Lending",
		Description:  "Consumer lending desk",
		ContactEmail: "ops@acme.example",
		Plan:         platform.PlanBasic,
		Active:       true,
		CreatedAt:    time.Now().UTC(),
	}
}

func TestPlatformCRUD(t *testing.T) {
	ctx, store := setupStore(t)
	userID := uuid.NewString()

	p := newTestPlatform(userID)
	if err := store.CreatePlatform(ctx, p); err != nil {
		t.Fatalf("CreatePlatform() failed: %v", err)
	}
	if p.ID == "" {
		t.Fatal("CreatePlatform() did not assign an id")
	}

	got, err := store.GetPlatform(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetPlatform() failed: %v", err)
	}
	if got.Name != "Acme Lending" || got.Plan != platform.PlanBasic {
		t.Errorf("unexpected platform: %+v", got)
	}
	if got.Description != "Consumer lending desk" || got.ContactEmail != "ops@acme.example" {
		t.Errorf("descriptive fields not persisted: %+v", got)
	}

	got.Name = "Acme Capital"
	got.Plan = platform.PlanPremium
	if err := store.UpdatePlatform(ctx, got); err != nil {
		t.Fatalf("UpdatePlatform() failed: %v", err)
	}

	updated, err := store.GetPlatform(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetPlatform() after update failed: %v", err)
	}
	if updated.Name != "Acme Capital" || updated.Plan != platform.PlanPremium {
		t.Errorf("update not applied: %+v", updated)
	}

	if err := store.DeletePlatform(ctx, p.ID); err != nil {
		t.Fatalf("DeletePlatform() failed: %v", err)
	}
	if _, err := store.GetPlatform(ctx, p.ID); !errors.Is(err, ErrPlatformNotFound) {
		t.Fatalf("expected ErrPlatformNotFound after delete, got %v", err)
	}
}

func TestListPlatformsByUser(t *testing.T) {
	ctx, store := setupStore(t)
	userID := uuid.NewString()
	otherID := uuid.NewString()

	for i := 0; i < 3; i++ {
		if err := store.CreatePlatform(ctx, newTestPlatform(userID)); err != nil {
			t.Fatalf("CreatePlatform() failed: %v", err)
		}
	}
	if err := store.CreatePlatform(ctx, newTestPlatform(otherID)); err != nil {
		t.Fatalf("CreatePlatform() failed: %v", err)
	}

	platforms, err := store.ListPlatformsByUser(ctx, userID)
	if err != nil {
		t.Fatalf("ListPlatformsByUser() failed: %v", err)
	}
	if len(platforms) != 3 {
		t.Fatalf("expected 3 platforms, got %d", len(platforms))
	}
}

func TestAPIKeyLifecycle(t *testing.T) {
	ctx, store := setupStore(t)

	p := newTestPlatform(uuid.NewString())
	if err := store.CreatePlatform(ctx, p); err != nil {
		t.Fatalf("CreatePlatform() failed: %v", err)
	}

	key := &platform.APIKey{
		PlatformID: p.ID,
		Name:       "production",
		Prefix:     "sk_12345678",
		CreatedAt:  time.Now().UTC(),
	}
	if err := store.CreateAPIKey(ctx, key, "hash-abc"); err != nil {
		t.Fatalf("CreateAPIKey() failed: %v", err)
	}

	count, err := store.CountAPIKeys(ctx, p.ID)
	if err != nil {
		t.Fatalf("CountAPIKeys() failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 key, got %d", count)
	}

	found, err := store.FindAPIKeyByHash(ctx, "hash-abc")
	if err != nil {
		t.Fatalf("FindAPIKeyByHash() failed: %v", err)
	}
	if found.ID != key.ID {
		t.Errorf("found wrong key: %s", found.ID)
	}

	if err := store.RecordAPIKeyUse(ctx, key.ID); err != nil {
		t.Fatalf("RecordAPIKeyUse() failed: %v", err)
	}
	keys, err := store.ListAPIKeys(ctx, p.ID)
	if err != nil {
		t.Fatalf("ListAPIKeys() failed: %v", err)
	}
	if len(keys) != 1 || keys[0].UsageCount != 1 || keys[0].LastUsedAt == nil {
		t.Errorf("usage not recorded: %+v", keys[0])
	}

	total, err := store.SumAPIKeyUsage(ctx, p.ID)
	if err != nil {
		t.Fatalf("SumAPIKeyUsage() failed: %v", err)
	}
	if total != 1 {
		t.Errorf("expected total usage 1, got %d", total)
	}

	if err := store.DeleteAPIKey(ctx, key.ID); err != nil {
		t.Fatalf("DeleteAPIKey() failed: %v", err)
	}
	if _, err := store.FindAPIKeyByHash(ctx, "hash-abc"); !errors.Is(err, ErrAPIKeyNotFound) {
		t.Fatalf("expected ErrAPIKeyNotFound, got %v", err)
	}
}

func TestDeletePlatformCascadesKeys(t *testing.T) {
	ctx, store := setupStore(t)

	p := newTestPlatform(uuid.NewString())
	if err := store.CreatePlatform(ctx, p); err != nil {
		t.Fatalf("CreatePlatform() failed: %v", err)
	}

	key := &platform.APIKey{PlatformID: p.ID, Name: "k", Prefix: "sk_1", CreatedAt: time.Now().UTC()}
	if err := store.CreateAPIKey(ctx, key, "hash-1"); err != nil {
		t.Fatalf("CreateAPIKey() failed: %v", err)
	}

	if err := store.DeletePlatform(ctx, p.ID); err != nil {
		t.Fatalf("DeletePlatform() failed: %v", err)
	}

	if _, err := store.FindAPIKeyByHash(ctx, "hash-1"); !errors.Is(err, ErrAPIKeyNotFound) {
		t.Fatalf("expected keys to cascade, got %v", err)
	}
}
