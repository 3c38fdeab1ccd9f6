package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kredible/score-middleware/pkg/session"
	"github.com/kredible/score-middleware/pkg/user"
)

const serviceName = "AuthService"

// logService wraps Service with automatic logging of all method calls
type logService struct {
	svc    Service
	logger *zap.Logger
}

// NewLog creates a logging decorator for the auth Service.
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

// Connect logs the outcome without the challenge signature.
func (ls *logService) Connect(ctx context.Context, req *ConnectRequest) (res *ConnectResult, err error) {
	start := time.Now()
	defer func() {
		fields := []zap.Field{}
		if res != nil {
			fields = append(fields,
				zap.String("wallet_address", res.WalletAddress),
				zap.String("status", res.Status))
		}
		ls.done(start, "Connect", err, fields...)
	}()
	return ls.svc.Connect(ctx, req)
}

func (ls *logService) CompleteProfile(ctx context.Context, req *ProfileRequest) (err error) {
	start := time.Now()
	defer func() { ls.done(start, "CompleteProfile", err, zap.String("prompt_id", req.PromptID)) }()
	return ls.svc.CompleteProfile(ctx, req)
}

func (ls *logService) CancelPrompt(ctx context.Context, promptID string) (err error) {
	start := time.Now()
	defer func() { ls.done(start, "CancelPrompt", err, zap.String("prompt_id", promptID)) }()
	return ls.svc.CancelPrompt(ctx, promptID)
}

func (ls *logService) Disconnect(ctx context.Context, sessionID string) (err error) {
	start := time.Now()
	defer func() { ls.done(start, "Disconnect", err, zap.String("session_id", sessionID)) }()
	return ls.svc.Disconnect(ctx, sessionID)
}

func (ls *logService) Session(ctx context.Context, sessionID string) (state session.State, err error) {
	start := time.Now()
	defer func() { ls.done(start, "Session", err, zap.String("session_id", sessionID)) }()
	return ls.svc.Session(ctx, sessionID)
}

func (ls *logService) UpdateProfile(ctx context.Context, sessionID string, req *UpdateProfileRequest) (usr *user.User, err error) {
	start := time.Now()
	defer func() { ls.done(start, "UpdateProfile", err, zap.String("session_id", sessionID)) }()
	return ls.svc.UpdateProfile(ctx, sessionID, req)
}

func (ls *logService) SetActivePlatform(ctx context.Context, sessionID, platformID string) (err error) {
	start := time.Now()
	defer func() {
		ls.done(start, "SetActivePlatform", err,
			zap.String("session_id", sessionID), zap.String("platform_id", platformID))
	}()
	return ls.svc.SetActivePlatform(ctx, sessionID, platformID)
}

func (ls *logService) ClearActivePlatform(ctx context.Context, sessionID string) (err error) {
	start := time.Now()
	defer func() { ls.done(start, "ClearActivePlatform", err, zap.String("session_id", sessionID)) }()
	return ls.svc.ClearActivePlatform(ctx, sessionID)
}
