package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apphttp "github.com/kredible/score-middleware/pkg/app/http"
	"github.com/kredible/score-middleware/pkg/auth"
	"github.com/kredible/score-middleware/pkg/config"
	"github.com/kredible/score-middleware/pkg/contract"
	"github.com/kredible/score-middleware/pkg/guard"
	"github.com/kredible/score-middleware/pkg/identity"
	identityservice "github.com/kredible/score-middleware/pkg/identity/service"
	"github.com/kredible/score-middleware/pkg/keys"
	"github.com/kredible/score-middleware/pkg/pgutil"
	platformservice "github.com/kredible/score-middleware/pkg/platform/service"
	"github.com/kredible/score-middleware/pkg/platformstore"
	"github.com/kredible/score-middleware/pkg/reconciler"
	"github.com/kredible/score-middleware/pkg/score"
	"github.com/kredible/score-middleware/pkg/scoreapi"
	"github.com/kredible/score-middleware/pkg/session"
	"github.com/kredible/score-middleware/pkg/sessionstore"
	"github.com/kredible/score-middleware/pkg/userstore"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadAPIServer(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to setup logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting score middleware API server",
		zap.String("config", *configPath),
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database and stores
	db, err := pgutil.ConnectDB(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Connected to database",
		zap.String("host", cfg.Database.Host),
		zap.String("database", cfg.Database.Database))

	users := userstore.NewStore(db)
	platforms := platformstore.NewStore(db)
	stash := sessionstore.NewStash(db)

	// Custodial key management
	masterKey, err := keys.MasterKeyFromBase64(os.Getenv(cfg.KeyManagement.MasterKeyEnv))
	if err != nil {
		logger.Fatal("Invalid custodial master key", zap.Error(err))
	}
	cipher, err := keys.NewMasterKeyCipher(masterKey)
	if err != nil {
		logger.Fatal("Failed to create key cipher", zap.Error(err))
	}
	signer := keys.NewCustodialSigner(users, cipher, logger)

	// Score sources: contract first, REST mirror as fallback
	registry, err := contract.NewClient(ctx, &cfg.Contract, logger)
	if err != nil {
		logger.Fatal("Failed to create contract client", zap.Error(err))
	}
	defer registry.Close()
	logger.Info("Connected to score registry",
		zap.String("rpc_url", cfg.Contract.RPCURL),
		zap.String("contract_id", cfg.Contract.ContractID))

	mirror := scoreapi.NewClient(&cfg.ScoreAPI, logger)

	oracle, err := score.NewOracle([]score.Provider{
		score.NewRegistryProvider(registry, signer, logger),
		score.NewAPIProvider(mirror),
	}, cfg.ScoreAPI.RetryCount, logger)
	if err != nil {
		logger.Fatal("Failed to create score oracle", zap.Error(err))
	}

	// Sessions and authentication
	tokens, err := auth.NewTokenManager(
		[]byte(os.Getenv(cfg.Session.SigningKeyEnv)), cfg.Session.Issuer, cfg.Session.TokenTTL)
	if err != nil {
		logger.Fatal("Failed to create token manager", zap.Error(err))
	}
	sessions := session.NewManager(stash, logger)
	broker := identity.NewBroker(logger)
	resolver := identity.NewResolver(users, broker, logger)

	authSvc := identityservice.NewLog(identityservice.New(
		sessions, resolver, broker, tokens, users, signer,
		cfg.Session.PromptTimeout+30*time.Second, logger), logger)
	platformSvc := platformservice.NewLog(platformservice.New(platforms, users, logger), logger)

	// Score mirror reconciliation: bounded initial pass, then periodic
	rec := reconciler.New(users, registry, mirror, logger)
	initialCtx, cancel := context.WithTimeout(ctx, cfg.Reconciliation.InitialTimeout)
	if err := rec.ReconcileAll(initialCtx); err != nil {
		logger.Warn("Initial reconciliation failed", zap.Error(err))
	}
	cancel()
	rec.StartPeriodicReconciliation(cfg.Reconciliation.Interval)
	defer rec.Stop()

	// HTTP surface
	authHandler := identityservice.NewHandler(authSvc, tokens, logger)
	platformHandler := platformservice.NewHandler(platformSvc, sessions, logger)
	scoreHandler := score.NewHandler(oracle, users, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		apphttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Mount("/auth", authHandler.Routes())

	r.Group(func(r chi.Router) {
		r.Use(guard.Middleware(tokens, sessions, logger))
		r.Mount("/credit-score", scoreHandler.Routes())
		r.Mount("/platforms", platformHandler.Routes())
	})

	if err := apphttp.ServeAndWait(ctx, r, logger, &cfg.Server); err != nil {
		logger.Fatal("Server exited with error", zap.Error(err))
	}
	logger.Info("Server shut down cleanly")
}
