// Package service implements the platform management business logic: CRUD
// for a user's platforms and the API keys issued against them, with quotas
// enforced per subscription plan.
package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	apperrors "github.com/kredible/score-middleware/pkg/app/errors"
	"github.com/kredible/score-middleware/pkg/platform"
	"github.com/kredible/score-middleware/pkg/platformstore"
	"github.com/kredible/score-middleware/pkg/user"
	"github.com/kredible/score-middleware/pkg/userstore"
)

// keyPrefixLen is how much of a secret is kept visible for identification.
const keyPrefixLen = 11

var (
	ErrNotOwner      = errors.New("platform belongs to another user")
	ErrQuotaExceeded = errors.New("api key quota reached for plan")
)

// UserDirectory is the narrow user-store interface the platform service needs
// to keep the user's platform cache current.
type UserDirectory interface {
	GetUser(ctx context.Context, opts ...userstore.QueryOption) (*user.User, error)
	UpdateUser(ctx context.Context, user *user.User) error
}

// CreateRequest carries the fields for registering a platform.
type CreateRequest struct {
	Name         string `json:"name" validate:"required,min=1,max=255"`
	Description  string `json:"description" validate:"required,max=1024"`
	ContactEmail string `json:"contact_email" validate:"required,email"`
	Plan         string `json:"plan" validate:"required,oneof=basic premium enterprise"`
}

// UpdateRequest carries a partial platform update. Nil fields are untouched.
type UpdateRequest struct {
	Name         *string `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Description  *string `json:"description,omitempty" validate:"omitempty,max=1024"`
	ContactEmail *string `json:"contact_email,omitempty" validate:"omitempty,email"`
	Plan         *string `json:"plan,omitempty" validate:"omitempty,oneof=basic premium enterprise"`
	Active       *bool   `json:"active,omitempty"`
}

// Service defines the platform management business logic.
type Service interface {
	CreatePlatform(ctx context.Context, userID string, req *CreateRequest) (*platform.Platform, *user.User, error)
	ListPlatforms(ctx context.Context, userID string) ([]*platform.Platform, error)
	UpdatePlatform(ctx context.Context, userID, platformID string, req *UpdateRequest) (*platform.Platform, error)
	DeletePlatform(ctx context.Context, userID, platformID string) (*user.User, error)
	PlatformUsage(ctx context.Context, userID, platformID string) (*platform.Usage, error)

	IssueAPIKey(ctx context.Context, userID, platformID, name string) (*platform.IssuedKey, error)
	ListAPIKeys(ctx context.Context, userID, platformID string) ([]*platform.APIKey, error)
	RevokeAPIKey(ctx context.Context, userID, platformID, keyID string) error
	VerifyAPIKey(ctx context.Context, secret string) (*platform.APIKey, error)
}

type platformService struct {
	store     platformstore.Store
	directory UserDirectory
	validate  *validator.Validate
	logger    *zap.Logger
}

// New creates the platform service.
func New(store platformstore.Store, directory UserDirectory, logger *zap.Logger) Service {
	return &platformService{
		store:     store,
		directory: directory,
		validate:  validator.New(),
		logger:    logger,
	}
}

func (s *platformService) CreatePlatform(ctx context.Context, userID string, req *CreateRequest) (*platform.Platform, *user.User, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, nil, apperrors.BadRequestError(err, "invalid platform request")
	}

	p := &platform.Platform{
		UserID:       userID,
		Name:         req.Name,
		Description:  req.Description,
		ContactEmail: req.ContactEmail,
		Plan:         platform.Plan(req.Plan),
		Active:       true,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.CreatePlatform(ctx, p); err != nil {
		return nil, nil, apperrors.GeneralError(err)
	}

	usr, err := s.refreshPlatformCache(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("platform registered",
		zap.String("platform_id", p.ID),
		zap.String("user_id", userID),
		zap.String("plan", req.Plan))
	return p, usr, nil
}

func (s *platformService) ListPlatforms(ctx context.Context, userID string) ([]*platform.Platform, error) {
	platforms, err := s.store.ListPlatformsByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.GeneralError(err)
	}
	return platforms, nil
}

func (s *platformService) UpdatePlatform(ctx context.Context, userID, platformID string, req *UpdateRequest) (*platform.Platform, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, apperrors.BadRequestError(err, "invalid platform update")
	}

	p, err := s.ownedPlatform(ctx, userID, platformID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.ContactEmail != nil {
		p.ContactEmail = *req.ContactEmail
	}
	if req.Plan != nil {
		p.Plan = platform.Plan(*req.Plan)
	}
	if req.Active != nil {
		p.Active = *req.Active
	}

	if err := s.store.UpdatePlatform(ctx, p); err != nil {
		return nil, apperrors.GeneralError(err)
	}
	return p, nil
}

func (s *platformService) DeletePlatform(ctx context.Context, userID, platformID string) (*user.User, error) {
	if _, err := s.ownedPlatform(ctx, userID, platformID); err != nil {
		return nil, err
	}

	if err := s.store.DeletePlatform(ctx, platformID); err != nil {
		return nil, apperrors.GeneralError(err)
	}

	usr, err := s.refreshPlatformCache(ctx, userID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("platform removed",
		zap.String("platform_id", platformID),
		zap.String("user_id", userID))
	return usr, nil
}

func (s *platformService) PlatformUsage(ctx context.Context, userID, platformID string) (*platform.Usage, error) {
	p, err := s.ownedPlatform(ctx, userID, platformID)
	if err != nil {
		return nil, err
	}

	used, err := s.store.SumAPIKeyUsage(ctx, platformID)
	if err != nil {
		return nil, apperrors.GeneralError(err)
	}

	usage := platform.UsageFor(p.Plan, used)
	return &usage, nil
}

func (s *platformService) IssueAPIKey(ctx context.Context, userID, platformID, name string) (*platform.IssuedKey, error) {
	if name == "" {
		return nil, apperrors.BadRequestError(errors.New("empty key name"), "api key name is required")
	}

	p, err := s.ownedPlatform(ctx, userID, platformID)
	if err != nil {
		return nil, err
	}

	count, err := s.store.CountAPIKeys(ctx, platformID)
	if err != nil {
		return nil, apperrors.GeneralError(err)
	}
	if count >= p.Plan.MaxAPIKeys() {
		return nil, apperrors.ForbiddenError(ErrQuotaExceeded,
			fmt.Sprintf("plan %s allows at most %d api keys", p.Plan, p.Plan.MaxAPIKeys()))
	}

	secret, err := generateSecret()
	if err != nil {
		return nil, apperrors.GeneralError(err)
	}

	key := &platform.APIKey{
		PlatformID: platformID,
		Name:       name,
		Prefix:     secret[:keyPrefixLen],
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.store.CreateAPIKey(ctx, key, hashSecret(secret)); err != nil {
		return nil, apperrors.GeneralError(err)
	}

	s.logger.Info("api key issued",
		zap.String("platform_id", platformID),
		zap.String("key_id", key.ID),
		zap.String("prefix", key.Prefix))

	return &platform.IssuedKey{APIKey: *key, Secret: secret}, nil
}

func (s *platformService) ListAPIKeys(ctx context.Context, userID, platformID string) ([]*platform.APIKey, error) {
	if _, err := s.ownedPlatform(ctx, userID, platformID); err != nil {
		return nil, err
	}

	keys, err := s.store.ListAPIKeys(ctx, platformID)
	if err != nil {
		return nil, apperrors.GeneralError(err)
	}
	return keys, nil
}

func (s *platformService) RevokeAPIKey(ctx context.Context, userID, platformID, keyID string) error {
	if _, err := s.ownedPlatform(ctx, userID, platformID); err != nil {
		return err
	}

	if err := s.store.DeleteAPIKey(ctx, keyID); err != nil {
		if errors.Is(err, platformstore.ErrAPIKeyNotFound) {
			return apperrors.ResourceNotFoundError(err, "api key not found")
		}
		return apperrors.GeneralError(err)
	}
	return nil
}

func (s *platformService) VerifyAPIKey(ctx context.Context, secret string) (*platform.APIKey, error) {
	key, err := s.store.FindAPIKeyByHash(ctx, hashSecret(secret))
	if err != nil {
		if errors.Is(err, platformstore.ErrAPIKeyNotFound) {
			return nil, apperrors.UnAuthorizedError(err, "unknown api key")
		}
		return nil, apperrors.GeneralError(err)
	}

	if err := s.store.RecordAPIKeyUse(ctx, key.ID); err != nil {
		s.logger.Warn("failed to record api key use",
			zap.String("key_id", key.ID),
			zap.Error(err))
	}
	return key, nil
}

// ownedPlatform loads a platform and enforces that it belongs to userID.
func (s *platformService) ownedPlatform(ctx context.Context, userID, platformID string) (*platform.Platform, error) {
	p, err := s.store.GetPlatform(ctx, platformID)
	if err != nil {
		if errors.Is(err, platformstore.ErrPlatformNotFound) {
			return nil, apperrors.ResourceNotFoundError(err, "platform not found")
		}
		return nil, apperrors.GeneralError(err)
	}
	if p.UserID != userID {
		return nil, apperrors.ForbiddenError(ErrNotOwner, "platform belongs to another user")
	}
	return p, nil
}

// refreshPlatformCache rewrites the user's denormalized platform id set after
// a membership change and returns the updated user.
func (s *platformService) refreshPlatformCache(ctx context.Context, userID string) (*user.User, error) {
	usr, err := s.directory.GetUser(ctx, userstore.WithID(userID))
	if err != nil {
		return nil, apperrors.GeneralError(err)
	}

	platforms, err := s.store.ListPlatformsByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.GeneralError(err)
	}

	ids := make([]string, len(platforms))
	for i, p := range platforms {
		ids[i] = p.ID
	}
	usr.Platforms = ids

	if err := s.directory.UpdateUser(ctx, usr); err != nil {
		return nil, apperrors.GeneralError(err)
	}
	return usr, nil
}

func generateSecret() (string, error) {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate api key secret: %w", err)
	}
	return "sk_" + hex.EncodeToString(raw), nil
}

func hashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
