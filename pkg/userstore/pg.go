package userstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/kredible/score-middleware/pkg/user"
)

// pgUniqueViolation is the PostgreSQL error code for unique constraint violations.
const pgUniqueViolation = "23505"

type pgStore struct {
	db *bun.DB
}

// NewStore creates a new postgres implementation of the user store
func NewStore(db *bun.DB) *pgStore {
	return &pgStore{db: db}
}

func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C') == pgUniqueViolation
	}
	return false
}

func (s *pgStore) CreateUser(ctx context.Context, usr *user.User) error {
	if usr.ID == "" {
		usr.ID = uuid.NewString()
	}
	dao := toUserDao(usr)

	_, err := s.db.NewInsert().
		Model(dao).
		Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAddressTaken
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

func (s *pgStore) GetUser(ctx context.Context, opts ...QueryOption) (*user.User, error) {
	options := &QueryOptions{}
	for _, opt := range opts {
		opt(options)
	}

	dao := new(UserDao)
	query := s.db.NewSelect().Model(dao)

	if options.ID != nil {
		query = query.Where("id = ?", *options.ID)
	}
	if options.WalletAddress != nil {
		query = query.Where("wallet_address = ?", *options.WalletAddress)
	}
	if options.Email != nil {
		query = query.Where("email = ?", *options.Email)
	}

	err := query.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return toUser(dao), nil
}

func (s *pgStore) UserExists(ctx context.Context, walletAddress string) (bool, error) {
	exists, err := s.db.NewSelect().
		Model((*UserDao)(nil)).
		Where("wallet_address = ?", walletAddress).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check user exists: %w", err)
	}
	return exists, nil
}

func (s *pgStore) UpdateUser(ctx context.Context, usr *user.User) error {
	dao := toUserDao(usr)

	// The wallet address is immutable; everything else mutable is written.
	res, err := s.db.NewUpdate().
		Model(dao).
		Column("name", "email", "role", "credit_score", "total_lent", "total_borrowed", "reputation", "platforms").
		Where("id = ?", dao.ID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return ErrUserNotFound
	}

	return nil
}

func (s *pgStore) DeleteUser(ctx context.Context, walletAddress string) error {
	_, err := s.db.NewDelete().
		Model((*UserDao)(nil)).
		Where("wallet_address = ?", walletAddress).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

func (s *pgStore) ListUsers(ctx context.Context) ([]*user.User, error) {
	var daos []UserDao
	err := s.db.NewSelect().Model(&daos).Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	users := make([]*user.User, len(daos))
	for i := range daos {
		users[i] = toUser(&daos[i])
	}
	return users, nil
}

func (s *pgStore) UpdateCreditScore(ctx context.Context, walletAddress string, score int) error {
	res, err := s.db.NewUpdate().
		Model((*UserDao)(nil)).
		Set("credit_score = ?", score).
		Where("wallet_address = ?", walletAddress).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update credit score: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return ErrUserNotFound
	}

	return nil
}

func (s *pgStore) SetSigningKey(ctx context.Context, walletAddress, encryptedKey string) error {
	res, err := s.db.NewUpdate().
		Model((*UserDao)(nil)).
		Set("signing_key_encrypted = ?", encryptedKey).
		Set("signing_key_created_at = NOW()").
		Where("wallet_address = ?", walletAddress).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set signing key: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return ErrUserNotFound
	}

	return nil
}

func (s *pgStore) GetSigningKey(ctx context.Context, decryptor KeyDecryptor, opts ...QueryOption) ([]byte, error) {
	options := &QueryOptions{}
	for _, opt := range opts {
		opt(options)
	}

	dao := new(UserDao)
	query := s.db.NewSelect().
		Model(dao).
		Column("signing_key_encrypted")

	if options.ID != nil {
		query = query.Where("id = ?", *options.ID)
	}
	if options.WalletAddress != nil {
		query = query.Where("wallet_address = ?", *options.WalletAddress)
	}

	err := query.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("failed to get signing key: %w", err)
	}

	if dao.SigningKeyEncrypted == nil || *dao.SigningKeyEncrypted == "" {
		return nil, ErrKeyNotFound
	}

	decryptedKey, err := decryptor(*dao.SigningKeyEncrypted)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt signing key: %w", err)
	}

	return decryptedKey, nil
}

// GetUserByWalletAddress is a convenience wrapper around GetUser.
func (s *pgStore) GetUserByWalletAddress(ctx context.Context, walletAddress string) (*user.User, error) {
	return s.GetUser(ctx, WithWalletAddress(walletAddress))
}
