package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/BradenHooton/vigil/internal/auth"
	"github.com/BradenHooton/vigil/internal/background"
	"github.com/BradenHooton/vigil/internal/behavior"
	"github.com/BradenHooton/vigil/internal/config"
	"github.com/BradenHooton/vigil/internal/database"
	"github.com/BradenHooton/vigil/internal/handlers"
	middlewareCustom "github.com/BradenHooton/vigil/internal/middleware"
	"github.com/BradenHooton/vigil/internal/models"
	"github.com/BradenHooton/vigil/internal/repositories"
	"github.com/BradenHooton/vigil/internal/routes"
	"github.com/BradenHooton/vigil/internal/services"
	pkgauth "github.com/BradenHooton/vigil/pkg/auth"
	pkghttp "github.com/BradenHooton/vigil/pkg/http"
	pkglogger "github.com/BradenHooton/vigil/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.Server.LogLevel)}))
	slog.SetDefault(logger)

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Initialize database
	db, err := database.NewConnection(context.Background(), &cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		err := database.Migrate(ctx, db, logger)
		cancel()
		if err != nil {
			logger.Error("failed to apply migrations", slog.Any("error", err))
			os.Exit(1)
		}
	}

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	eventRepo := repositories.NewBehaviorLogRepository(db)
	baselineRepo := repositories.NewBaselineRepository(db)
	deviceRepo := repositories.NewDeviceRepository(db)

	// Rebuild locking: in-process always, Redis on top when configured
	locker := behavior.LockChain{behavior.NewKeyedMutex()}
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.Error("failed to connect to redis", slog.String("addr", cfg.Redis.Addr), slog.Any("error", err))
			os.Exit(1)
		}
		locker = append(locker, behavior.NewRedisLocker(rdb, cfg.Redis.LockTTL))
		logger.Info("distributed baseline locking enabled", slog.String("addr", cfg.Redis.Addr))
	}

	// Trust engine
	detector, err := behavior.NewCIDRDetector(cfg.Trust.VPNRanges, cfg.Trust.ProxyRanges)
	if err != nil {
		logger.Error("invalid network ranges", slog.Any("error", err))
		os.Exit(1)
	}
	scorer, err := behavior.NewScorer(cfg.Trust.Scorer)
	if err != nil {
		logger.Error("invalid scorer", slog.Any("error", err))
		os.Exit(1)
	}

	builder := behavior.NewBuilder(eventRepo, baselineRepo, locker, behavior.BuilderConfig{
		Window:         cfg.Trust.BaselineWindow,
		HoursSample:    cfg.Trust.HoursSample,
		IPPrefixSample: cfg.Trust.IPPrefixSample,
		SourceIDSample: cfg.Trust.SourceIDSample,
	}, logger)
	devices := behavior.NewDeviceRegistry(deviceRepo)

	engine := behavior.NewEngine(
		behavior.NewCollector(behavior.HeaderGeoResolver{}, detector),
		eventRepo,
		builder,
		scorer,
		devices,
		behavior.EngineConfig{
			StorageTimeout:     cfg.Trust.StorageTimeout,
			BreakerFailures:    cfg.Trust.BreakerFailures,
			BreakerOpenTimeout: cfg.Trust.BreakerOpenTimeout,
		},
		logger,
	)

	reconciler := background.NewBaselineReconciler(eventRepo, builder, logger,
		cfg.Trust.ReconcileInterval, cfg.Trust.BaselineWindow, cfg.Trust.ReconcileBatchSize)

	// Initialize services
	auditLogger := pkglogger.NewAuditLogger(logger)
	hasher := pkgauth.NewHasher(pkgauth.DefaultBcryptCost)
	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenExpiry)

	authService := services.NewAuthService(userRepo, hasher, tokenManager, engine, logger, auditLogger)
	trustService := services.NewTrustService(builder, devices, engine, logger, auditLogger)

	// Bootstrap first admin user if configured
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ensureAdminUser(ctx, userRepo, hasher, logger); err != nil {
		logger.Error("failed to ensure admin user", slog.Any("error", err))
	}
	cancel()

	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}

	// Setup router. RealIP is left out: client addresses are resolved
	// against the trusted proxy list instead.
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(middlewareCustom.DefaultCORSConfig(cfg.Server.AllowedOrigins)))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(30 * time.Second))

	routes.RegisterRoutes(router, routes.Handlers{
		Auth:     handlers.NewAuthHandler(authService, ipConfig),
		Behavior: handlers.NewBehaviorHandler(trustService, ipConfig),
		Health:   handlers.NewHealthHandler(db, engine),
	}, tokenManager, ipConfig)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start reconcile task
	reconcileCtx, reconcileCancel := context.WithCancel(context.Background())
	defer reconcileCancel()

	go reconciler.Start(reconcileCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	reconciler.Stop()
	reconcileCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ensureAdminUser creates the first admin user if ADMIN_EMAIL and ADMIN_PASSWORD are set
func ensureAdminUser(ctx context.Context, userRepo *repositories.UserRepository, hasher *pkgauth.Hasher, logger *slog.Logger) error {
	adminEmail := strings.ToLower(strings.TrimSpace(os.Getenv("ADMIN_EMAIL")))
	adminPassword := os.Getenv("ADMIN_PASSWORD")

	if adminEmail == "" || adminPassword == "" {
		logger.Info("no ADMIN_EMAIL or ADMIN_PASSWORD set, skipping admin user creation")
		return nil
	}

	_, err := userRepo.GetByEmail(ctx, adminEmail)
	if err == nil {
		logger.Info("admin user already exists")
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to check if admin exists: %w", err)
	}

	if err := pkgauth.ValidatePassword(adminPassword); err != nil {
		return fmt.Errorf("ADMIN_PASSWORD rejected: %w", err)
	}
	hashedPassword, err := hasher.Hash(adminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	_, err = userRepo.Create(ctx, &models.User{
		Username:     "admin",
		Email:        adminEmail,
		PasswordHash: hashedPassword,
		Role:         models.RoleAdmin,
	})
	if err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	logger.Info("admin user created")
	return nil
}
