// Package reconciler keeps the REST score mirror and the cached credit score
// on user records in step with the score registry contract. The registry is
// authoritative; drift only ever repairs toward it.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kredible/score-middleware/internal/metrics"
	"github.com/kredible/score-middleware/pkg/contract"
	"github.com/kredible/score-middleware/pkg/scoreapi"
	"github.com/kredible/score-middleware/pkg/user"
)

// UserStore provides the user listing and cached-score operations for
// reconciliation.
type UserStore interface {
	ListUsers(ctx context.Context) ([]*user.User, error)
	UpdateCreditScore(ctx context.Context, walletAddress string, score int) error
}

// Registry reads authoritative scores from the contract.
type Registry interface {
	GetScore(ctx context.Context, walletAddress string) (int, error)
}

// Mirror is the REST score backend kept in sync with the registry.
type Mirror interface {
	GetScore(ctx context.Context, walletAddress string) (int, error)
	UpdateScore(ctx context.Context, walletAddress string, score int) error
}

// Reconciler handles synchronization between registry state and the mirror.
type Reconciler struct {
	userStore UserStore
	registry  Registry
	mirror    Mirror
	logger    *zap.Logger

	runTimeout time.Duration

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates a new Reconciler.
func New(userStore UserStore, registry Registry, mirror Mirror, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		userStore:  userStore,
		registry:   registry,
		mirror:     mirror,
		logger:     logger,
		runTimeout: 2 * time.Minute,
		stopCh:     make(chan struct{}),
	}
}

// ReconcileAll walks every known user, reads the registry score, and repairs
// the mirror and the cached credit score where they disagree. A user the
// registry has no entry for is skipped: nothing authoritative exists yet.
func (r *Reconciler) ReconcileAll(ctx context.Context) error {
	r.logger.Info("Starting score reconciliation")
	start := time.Now()

	users, err := r.userStore.ListUsers(ctx)
	if err != nil {
		metrics.ReconciliationRuns.WithLabelValues("failed").Inc()
		return fmt.Errorf("failed to list users: %w", err)
	}

	var checked, drifted, failed int
	for _, usr := range users {
		if ctx.Err() != nil {
			metrics.ReconciliationRuns.WithLabelValues("failed").Inc()
			return ctx.Err()
		}

		authoritative, err := r.registry.GetScore(ctx, usr.WalletAddress)
		if err != nil {
			if errors.Is(err, contract.ErrScoreNotFound) {
				continue
			}
			r.logger.Warn("Failed to read registry score",
				zap.String("address", usr.WalletAddress), zap.Error(err))
			failed++
			continue
		}
		checked++

		if r.repairUser(ctx, usr, authoritative) {
			drifted++
		}
	}

	metrics.ReconciliationDrift.Set(float64(drifted))
	if failed > 0 && checked == 0 {
		metrics.ReconciliationRuns.WithLabelValues("failed").Inc()
		return fmt.Errorf("reconciliation read no registry entries: %d failures", failed)
	}
	metrics.ReconciliationRuns.WithLabelValues("ok").Inc()

	r.logger.Info("Score reconciliation completed",
		zap.Int("users", len(users)),
		zap.Int("checked", checked),
		zap.Int("drifted", drifted),
		zap.Int("failed", failed),
		zap.Duration("duration", time.Since(start)))
	return nil
}

// repairUser pushes the authoritative score into the mirror and the cached
// user record when either has drifted. Returns true when a repair was made.
func (r *Reconciler) repairUser(ctx context.Context, usr *user.User, authoritative int) bool {
	repaired := false

	mirrored, err := r.mirror.GetScore(ctx, usr.WalletAddress)
	switch {
	case errors.Is(err, scoreapi.ErrScoreNotFound):
		mirrored = -1
	case err != nil:
		r.logger.Warn("Failed to read mirror score",
			zap.String("address", usr.WalletAddress), zap.Error(err))
		return false
	}

	if mirrored != authoritative {
		if err := r.mirror.UpdateScore(ctx, usr.WalletAddress, authoritative); err != nil {
			r.logger.Warn("Failed to repair mirror score",
				zap.String("address", usr.WalletAddress),
				zap.Int("mirror", mirrored),
				zap.Int("registry", authoritative),
				zap.Error(err))
		} else {
			r.logger.Info("Repaired mirror score drift",
				zap.String("address", usr.WalletAddress),
				zap.Int("mirror", mirrored),
				zap.Int("registry", authoritative))
			repaired = true
		}
	}

	if usr.CreditScore != authoritative {
		if err := r.userStore.UpdateCreditScore(ctx, usr.WalletAddress, authoritative); err != nil {
			r.logger.Warn("Failed to repair cached credit score",
				zap.String("address", usr.WalletAddress), zap.Error(err))
		} else {
			repaired = true
		}
	}

	return repaired
}

// StartPeriodicReconciliation starts a background goroutine that reconciles
// on the given interval until Stop is called.
func (r *Reconciler) StartPeriodicReconciliation(interval time.Duration) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		r.logger.Info("Started periodic reconciliation", zap.Duration("interval", interval))

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), r.runTimeout)
				if err := r.ReconcileAll(ctx); err != nil {
					r.logger.Error("Periodic reconciliation failed", zap.Error(err))
				}
				cancel()
			case <-r.stopCh:
				r.logger.Info("Stopping periodic reconciliation")
				return
			}
		}
	}()
}

// Stop stops the periodic reconciliation.
func (r *Reconciler) Stop() {
	close(r.stopCh)
	r.wg.Wait()
}
