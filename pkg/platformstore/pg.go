package platformstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/kredible/score-middleware/pkg/platform"
)

type pgStore struct {
	db *bun.DB
}

// NewStore creates a new postgres implementation of the platform store
func NewStore(db *bun.DB) *pgStore {
	return &pgStore{db: db}
}

func (s *pgStore) CreatePlatform(ctx context.Context, p *platform.Platform) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	dao := toPlatformDao(p)

	_, err := s.db.NewInsert().
		Model(dao).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create platform: %w", err)
	}
	return nil
}

func (s *pgStore) GetPlatform(ctx context.Context, id string) (*platform.Platform, error) {
	dao := new(PlatformDao)
	err := s.db.NewSelect().
		Model(dao).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPlatformNotFound
		}
		return nil, fmt.Errorf("failed to get platform: %w", err)
	}
	return toPlatform(dao), nil
}

func (s *pgStore) ListPlatformsByUser(ctx context.Context, userID string) ([]*platform.Platform, error) {
	var daos []PlatformDao
	err := s.db.NewSelect().
		Model(&daos).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list platforms: %w", err)
	}

	platforms := make([]*platform.Platform, len(daos))
	for i := range daos {
		platforms[i] = toPlatform(&daos[i])
	}
	return platforms, nil
}

func (s *pgStore) UpdatePlatform(ctx context.Context, p *platform.Platform) error {
	dao := toPlatformDao(p)

	res, err := s.db.NewUpdate().
		Model(dao).
		Column("name", "description", "contact_email", "plan", "active").
		Where("id = ?", dao.ID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update platform: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return ErrPlatformNotFound
	}
	return nil
}

func (s *pgStore) DeletePlatform(ctx context.Context, id string) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*APIKeyDao)(nil)).
			Where("platform_id = ?", id).
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to delete platform api keys: %w", err)
		}

		res, err := tx.NewDelete().
			Model((*PlatformDao)(nil)).
			Where("id = ?", id).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to delete platform: %w", err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read delete result: %w", err)
		}
		if affected == 0 {
			return ErrPlatformNotFound
		}
		return nil
	})
}

func (s *pgStore) CreateAPIKey(ctx context.Context, key *platform.APIKey, secretHash string) error {
	if key.ID == "" {
		key.ID = uuid.NewString()
	}
	dao := &APIKeyDao{
		ID:         key.ID,
		PlatformID: key.PlatformID,
		Name:       key.Name,
		Prefix:     key.Prefix,
		SecretHash: secretHash,
		UsageCount: key.UsageCount,
		CreatedAt:  key.CreatedAt,
	}

	_, err := s.db.NewInsert().
		Model(dao).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create api key: %w", err)
	}
	return nil
}

func (s *pgStore) ListAPIKeys(ctx context.Context, platformID string) ([]*platform.APIKey, error) {
	var daos []APIKeyDao
	err := s.db.NewSelect().
		Model(&daos).
		Where("platform_id = ?", platformID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list api keys: %w", err)
	}

	keys := make([]*platform.APIKey, len(daos))
	for i := range daos {
		keys[i] = toAPIKey(&daos[i])
	}
	return keys, nil
}

func (s *pgStore) CountAPIKeys(ctx context.Context, platformID string) (int, error) {
	count, err := s.db.NewSelect().
		Model((*APIKeyDao)(nil)).
		Where("platform_id = ?", platformID).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count api keys: %w", err)
	}
	return count, nil
}

func (s *pgStore) SumAPIKeyUsage(ctx context.Context, platformID string) (int64, error) {
	var total int64
	err := s.db.NewSelect().
		Model((*APIKeyDao)(nil)).
		ColumnExpr("COALESCE(SUM(usage_count), 0)").
		Where("platform_id = ?", platformID).
		Scan(ctx, &total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum api key usage: %w", err)
	}
	return total, nil
}

func (s *pgStore) DeleteAPIKey(ctx context.Context, id string) error {
	res, err := s.db.NewDelete().
		Model((*APIKeyDao)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete api key: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if affected == 0 {
		return ErrAPIKeyNotFound
	}
	return nil
}

func (s *pgStore) FindAPIKeyByHash(ctx context.Context, secretHash string) (*platform.APIKey, error) {
	dao := new(APIKeyDao)
	err := s.db.NewSelect().
		Model(dao).
		Where("secret_hash = ?", secretHash).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAPIKeyNotFound
		}
		return nil, fmt.Errorf("failed to find api key: %w", err)
	}
	return toAPIKey(dao), nil
}

func (s *pgStore) RecordAPIKeyUse(ctx context.Context, id string) error {
	res, err := s.db.NewUpdate().
		Model((*APIKeyDao)(nil)).
		Set("usage_count = usage_count + 1").
		Set("last_used_at = NOW()").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to record api key use: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return ErrAPIKeyNotFound
	}
	return nil
}
