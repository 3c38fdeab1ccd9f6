// Package sessionstore persists per-wallet session preferences. Only the
// active platform selection is stored; all other session state is transient.
package sessionstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/kredible/score-middleware/pkg/session"
)

// StashDao is a data access object that maps directly to the 'session_stash'
// table in PostgreSQL.
type StashDao struct {
	bun.BaseModel  `bun:"table:session_stash,alias:ss"`
	Key            string    `bun:"key,pk,type:varchar(64)"`
	ActivePlatform string    `bun:"active_platform,notnull,type:varchar(64)"`
	UpdatedAt      time.Time `bun:"updated_at,nullzero,default:current_timestamp"`
}

type pgStash struct {
	db *bun.DB
}

// NewStash creates a postgres implementation of session.Stash.
func NewStash(db *bun.DB) session.Stash {
	return &pgStash{db: db}
}

func (s *pgStash) Get(ctx context.Context, key string) (string, error) {
	dao := new(StashDao)
	err := s.db.NewSelect().
		Model(dao).
		Where("key = ?", key).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", session.ErrStashEntryNotFound
		}
		return "", fmt.Errorf("failed to read session stash: %w", err)
	}
	return dao.ActivePlatform, nil
}

func (s *pgStash) Put(ctx context.Context, key, value string) error {
	dao := &StashDao{
		Key:            key,
		ActivePlatform: value,
		UpdatedAt:      time.Now().UTC(),
	}

	_, err := s.db.NewInsert().
		Model(dao).
		On("CONFLICT (key) DO UPDATE").
		Set("active_platform = EXCLUDED.active_platform").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to write session stash: %w", err)
	}
	return nil
}

func (s *pgStash) Delete(ctx context.Context, key string) error {
	_, err := s.db.NewDelete().
		Model((*StashDao)(nil)).
		Where("key = ?", key).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete session stash entry: %w", err)
	}
	return nil
}
