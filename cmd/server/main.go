// Package main is the entry point for the MedChain supply chain server.
// It provides a REST API over the drug, shipment and prescription records
// of a pharmaceutical supply chain.
//
// Architecture:
//   - Records live in a hosted Supabase project, a PostgreSQL database or memory
//   - Every record is written with a pending blockchain transaction id
//   - Live dashboards poll pending records until their id is confirmed
//   - Without the hosted ledger, a Merkle tree simulator confirms records locally
//   - Sign-in checks the chosen role against the stored profile
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/medchain/medchain-server/internal/auth"
	"github.com/medchain/medchain-server/internal/config"
	"github.com/medchain/medchain-server/internal/database"
	"github.com/medchain/medchain-server/internal/handlers"
	"github.com/medchain/medchain-server/internal/ident"
	"github.com/medchain/medchain-server/internal/middleware"
	"github.com/medchain/medchain-server/internal/models"
	"github.com/medchain/medchain-server/internal/ratelimit"
	"github.com/medchain/medchain-server/internal/services"
	"github.com/medchain/medchain-server/internal/store"
	"github.com/medchain/medchain-server/internal/verification"
	"github.com/medchain/medchain-server/internal/wizard"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	logger, _ := zap.NewProduction()
	if cfg.Environment == "development" {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	sugar.Infow("Starting MedChain Server",
		"port", cfg.Port,
		"env", cfg.Environment,
		"store", cfg.StoreBackend,
		"ledger_simulator", cfg.LedgerSimulator,
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Record store
	var rs store.RecordStore
	switch cfg.StoreBackend {
	case config.BackendSupabase:
		rs = store.NewSupabaseStore(cfg.SupabaseURL, cfg.SupabaseKey)
	case config.BackendPostgres:
		db, err := database.NewPool(ctx, cfg.DatabaseURL, database.PoolOptions{})
		if err != nil {
			sugar.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		if err := database.EnsureSchema(ctx, db); err != nil {
			sugar.Fatalf("Failed to apply schema: %v", err)
		}
		rs = store.NewPostgresStore(db)
	default:
		sugar.Warn("Using the in-memory record store; data is lost on restart")
		rs = store.NewMemoryStore()
	}

	// Redis backs token revocation, rate limiting and wizard state when configured
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			sugar.Fatalf("Invalid REDIS_URL: %v", err)
		}
		rdb = redis.NewClient(opts)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			sugar.Fatalf("Failed to connect to redis: %v", err)
		}
	}

	var revoker auth.Revoker = auth.NewMemoryRevoker()
	var limiter ratelimit.Limiter
	var wizards wizard.Store
	if rdb != nil {
		revoker = auth.NewRedisRevoker(rdb, "")
		wizards = wizard.NewRedisStore(rdb, "", wizard.DefaultTTL)
		limiter, err = ratelimit.NewRedisLimiter(rdb, "", cfg.RateLimitRPM, time.Minute)
		if err != nil {
			sugar.Fatalf("Failed to create rate limiter: %v", err)
		}
	} else {
		wizards = wizard.NewMemoryStore(wizard.DefaultTTL)
		mem := ratelimit.NewMemoryLimiter(cfg.RateLimitRPM, time.Minute)
		go mem.Cleanup(ctx, 5*time.Minute)
		limiter = mem
	}

	// Authentication
	verifier := auth.NewVerifier(cfg.JWTSecret, revoker)
	var provider auth.Provider
	if cfg.StoreBackend == config.BackendSupabase {
		provider = auth.NewSupabaseProvider(cfg.SupabaseURL, cfg.SupabaseKey)
	} else {
		provider = auth.NewLocalProvider(rs, verifier, uuid.NewString, cfg.SessionTTL)
	}

	// Initialize services
	deps := services.Deps{Store: rs, IDs: ident.UUIDGenerator{}, Logger: sugar}
	drugSvc := services.NewDrugService(deps)
	shipmentSvc := services.NewShipmentService(deps, drugSvc)
	prescriptionSvc := services.NewPrescriptionService(deps, drugSvc)
	userSvc := services.NewUserService(deps)
	dashboardSvc := services.NewDashboardService(deps, drugSvc, shipmentSvc, prescriptionSvc)
	authSvc := services.NewAuthService(deps, provider, verifier, userSvc)

	hub := verification.NewHub(map[verification.Kind]verification.RecordFetcher{
		verification.KindDrugs: func(ctx context.Context, id string) (models.Record, error) {
			d, err := drugSvc.FetchByID(ctx, id)
			if err != nil {
				return nil, err
			}
			return *d, nil
		},
		verification.KindShipments: func(ctx context.Context, id string) (models.Record, error) {
			s, err := shipmentSvc.FetchByID(ctx, id)
			if err != nil {
				return nil, err
			}
			return *s, nil
		},
		verification.KindPrescriptions: func(ctx context.Context, id string) (models.Record, error) {
			rx, err := prescriptionSvc.FetchByID(ctx, id)
			if err != nil {
				return nil, err
			}
			return *rx, nil
		},
	}, verification.HubOptions{Interval: cfg.PollInterval, Logger: sugar})

	// Start the ledger simulator (confirms pending records periodically)
	var integrityHandler *handlers.IntegrityHandler
	var ledgerRoot handlers.RootSource
	if cfg.LedgerSimulator {
		merkleSvc := services.NewMerkleService(sugar)
		ledgerWorker := services.NewLedgerWorker(merkleSvc, rs, sugar)
		go ledgerWorker.Start(ctx, cfg.LedgerInterval)
		integrityHandler = handlers.NewIntegrityHandler(merkleSvc, sugar)
		ledgerRoot = merkleSvc
	}

	// Initialize handlers
	api := &handlers.API{
		Health:        handlers.NewHealthHandler(rs, cfg.StoreBackend, ledgerRoot, sugar),
		Auth:          handlers.NewAuthHandler(authSvc, sugar),
		Wizard:        handlers.NewWizardHandler(wizards, authSvc, ident.UUIDGenerator{}, sugar),
		Drugs:         handlers.NewDrugHandler(drugSvc, hub, sugar),
		Shipments:     handlers.NewShipmentHandler(shipmentSvc, hub, sugar),
		Prescriptions: handlers.NewPrescriptionHandler(prescriptionSvc, hub, sugar),
		Users:         handlers.NewUserHandler(userSvc, sugar),
		Dashboard:     handlers.NewDashboardHandler(dashboardSvc, sugar),
		Verification:  handlers.NewVerificationHandler(hub, drugSvc, shipmentSvc, prescriptionSvc, sugar),
		Integrity:     integrityHandler,
		Resolver:      authSvc,
		Limiter:       limiter,
		Timeout:       30 * time.Second,
	}

	// Build router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	if cfg.TrustProxy {
		r.Use(chimw.RealIP)
	} else {
		r.Use(middleware.StripIPHeaders()) // Forwarding headers are client-controlled here
	}
	r.Use(middleware.StructuredLogger(logger))
	r.Use(chimw.Recoverer)
	r.Use(middleware.SecurityHeaders())
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// API Routes
	r.Mount("/api/v1", api.Routes())

	// Create HTTP server. No WriteTimeout: the verification stream is long-lived.
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sugar.Infof("Server listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	sugar.Info("Shutting down gracefully...")

	// Cancels the background workers and every open verification stream
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		sugar.Errorf("Forced shutdown: %v", err)
	}

	sugar.Infow("Server stopped", "open_watches", hub.Count())
}
