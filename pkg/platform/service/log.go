package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kredible/score-middleware/pkg/platform"
	"github.com/kredible/score-middleware/pkg/user"
)

const serviceName = "PlatformService"

// logService wraps Service with automatic logging of all method calls
type logService struct {
	svc    Service
	logger *zap.Logger
}

// NewLog creates a logging decorator for the platform Service.
func NewLog(svc Service, logger *zap.Logger) Service {
	return &logService{
		svc:    svc,
		logger: logger,
	}
}

func (ls *logService) done(start time.Time, method string, err error, fields ...zap.Field) {
	fields = append(fields,
		zap.String("service", serviceName),
		zap.String("method", method),
		zap.Duration("duration", time.Since(start)),
	)
	if err != nil {
		ls.logger.Error(method+" failed", append(fields, zap.Error(err))...)
		return
	}
	ls.logger.Info(method+" completed", fields...)
}

func (ls *logService) CreatePlatform(ctx context.Context, userID string, req *CreateRequest) (p *platform.Platform, usr *user.User, err error) {
	start := time.Now()
	defer func() { ls.done(start, "CreatePlatform", err, zap.String("user_id", userID)) }()
	return ls.svc.CreatePlatform(ctx, userID, req)
}

func (ls *logService) ListPlatforms(ctx context.Context, userID string) (platforms []*platform.Platform, err error) {
	start := time.Now()
	defer func() { ls.done(start, "ListPlatforms", err, zap.String("user_id", userID)) }()
	return ls.svc.ListPlatforms(ctx, userID)
}

func (ls *logService) UpdatePlatform(ctx context.Context, userID, platformID string, req *UpdateRequest) (p *platform.Platform, err error) {
	start := time.Now()
	defer func() {
		ls.done(start, "UpdatePlatform", err,
			zap.String("user_id", userID), zap.String("platform_id", platformID))
	}()
	return ls.svc.UpdatePlatform(ctx, userID, platformID, req)
}

func (ls *logService) DeletePlatform(ctx context.Context, userID, platformID string) (usr *user.User, err error) {
	start := time.Now()
	defer func() {
		ls.done(start, "DeletePlatform", err,
			zap.String("user_id", userID), zap.String("platform_id", platformID))
	}()
	return ls.svc.DeletePlatform(ctx, userID, platformID)
}

func (ls *logService) PlatformUsage(ctx context.Context, userID, platformID string) (usage *platform.Usage, err error) {
	start := time.Now()
	defer func() {
		ls.done(start, "PlatformUsage", err,
			zap.String("user_id", userID), zap.String("platform_id", platformID))
	}()
	return ls.svc.PlatformUsage(ctx, userID, platformID)
}

func (ls *logService) IssueAPIKey(ctx context.Context, userID, platformID, name string) (key *platform.IssuedKey, err error) {
	start := time.Now()
	defer func() {
		ls.done(start, "IssueAPIKey", err,
			zap.String("user_id", userID), zap.String("platform_id", platformID))
	}()
	return ls.svc.IssueAPIKey(ctx, userID, platformID, name)
}

func (ls *logService) ListAPIKeys(ctx context.Context, userID, platformID string) (keys []*platform.APIKey, err error) {
	start := time.Now()
	defer func() {
		ls.done(start, "ListAPIKeys", err,
			zap.String("user_id", userID), zap.String("platform_id", platformID))
	}()
	return ls.svc.ListAPIKeys(ctx, userID, platformID)
}

func (ls *logService) RevokeAPIKey(ctx context.Context, userID, platformID, keyID string) (err error) {
	start := time.Now()
	defer func() {
		ls.done(start, "RevokeAPIKey", err,
			zap.String("user_id", userID), zap.String("key_id", keyID))
	}()
	return ls.svc.RevokeAPIKey(ctx, userID, platformID, keyID)
}

func (ls *logService) VerifyAPIKey(ctx context.Context, secret string) (key *platform.APIKey, err error) {
	start := time.Now()
	// The secret itself is never logged.
	defer func() { ls.done(start, "VerifyAPIKey", err) }()
	return ls.svc.VerifyAPIKey(ctx, secret)
}
