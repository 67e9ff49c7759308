package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"time"

	"github.com/Jazys/instagen-sub000/internal/api"
	"github.com/Jazys/instagen-sub000/internal/config"
	"github.com/Jazys/instagen-sub000/internal/services/auth"
	"github.com/Jazys/instagen-sub000/internal/services/billing"
	"github.com/Jazys/instagen-sub000/internal/services/credits"
	"github.com/Jazys/instagen-sub000/internal/services/database"
	"github.com/Jazys/instagen-sub000/internal/services/generation"
	"github.com/Jazys/instagen-sub000/internal/services/middleware"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
)

// Server is a configured Instagen API server instance.
type Server struct {
	config *config.Config
	app    *fiber.App
	redis  *redis.Client
	db     *database.DB

	creditsService *credits.Service
	sweeper        *credits.ResetSweeper
	worker         *generation.Worker
}

// New creates a new Server instance with the given configuration.
// The cfg parameter is required and must not be nil.
func New(cfg *config.Config) *Server {
	if cfg == nil {
		panic("config cannot be nil - use config.LoadFromFile() to create config")
	}

	return &Server{config: cfg}
}

// Run starts the server and blocks until shutdown.
func (s *Server) Run() error {
	if err := s.config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	setupLogLevel(s.config)

	port := s.config.Server.Port
	if port == "" {
		port = "8080"
	}
	listenAddr := ":" + port

	s.app = createFiberApp(s.config)

	// === Infrastructure Setup ===
	db, err := database.New(s.config.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	s.db = db
	defer func() {
		if err := s.db.Close(); err != nil {
			fiberlog.Errorf("Failed to close database connection: %v", err)
		}
	}()

	if s.config.Redis != nil && s.config.Redis.Addr != "" {
		s.redis = redis.NewClient(&redis.Options{
			Addr:     s.config.Redis.Addr,
			Password: s.config.Redis.Password,
			DB:       s.config.Redis.DB,
		})
		defer func() {
			if err := s.redis.Close(); err != nil {
				fiberlog.Errorf("Failed to close Redis client: %v", err)
			}
		}()
	}

	// === Services Initialization ===
	if err := s.initializeServices(); err != nil {
		return err
	}
	defer s.worker.Stop()

	// === Middleware & Routes ===
	s.setupMiddleware()
	s.setupRoutes()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if s.config.Credits.SweepEnabled {
		interval := time.Duration(s.config.Credits.SweepIntervalMin) * time.Minute
		s.sweeper = credits.NewResetSweeper(s.creditsService, interval)
		go s.sweeper.Start(ctx)
		defer s.sweeper.Stop()
	}

	fmt.Printf("Instagen API starting on %s\n", listenAddr)
	fmt.Printf("   Environment: %s\n", s.config.Server.Environment)
	fmt.Printf("   Go version: %s\n", runtime.Version())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)

	serverErrChan := make(chan error, 1)
	go func() {
		if err := s.app.Listen(listenAddr); err != nil {
			serverErrChan <- err
		}
	}()

	select {
	case sig := <-sigChan:
		fiberlog.Infof("Received signal: %v. Starting graceful shutdown...", sig)
	case err := <-serverErrChan:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		fiberlog.Info("Context cancelled, starting shutdown...")
	}

	fiberlog.Info("Server shutting down gracefully...")
	if err := s.app.ShutdownWithTimeout(30 * time.Second); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	fiberlog.Info("Server shutdown completed successfully")

	return nil
}

func (s *Server) initializeServices() error {
	s.creditsService = credits.NewService(s.db.DB, s.config.Credits.BaselineOrDefault())
	if err := s.creditsService.AutoMigrate(); err != nil {
		return fmt.Errorf("failed to migrate credit tables: %w", err)
	}

	recorder := generation.NewRecorder(s.db.DB)
	if err := recorder.AutoMigrate(); err != nil {
		return fmt.Errorf("failed to migrate generation tables: %w", err)
	}

	poolSize, bufferSize := 2, 256
	if s.config.Generation != nil {
		if s.config.Generation.WorkerPoolSize > 0 {
			poolSize = s.config.Generation.WorkerPoolSize
		}
		if s.config.Generation.WorkerBufferSize > 0 {
			bufferSize = s.config.Generation.WorkerBufferSize
		}
	}
	s.worker = generation.NewWorker(recorder, poolSize, bufferSize)

	return nil
}

func (s *Server) authProvider() auth.Provider {
	switch s.config.Auth.Provider {
	case "clerk":
		return auth.NewClerkProvider(s.config.Auth.ClerkConfig.SecretKey)
	case "jwt":
		return auth.NewJWTProvider(s.config.Auth.JWTConfig.Secret)
	default:
		// Validate() already rejected anything else.
		panic(fmt.Sprintf("unsupported auth provider: %s", s.config.Auth.Provider))
	}
}

func (s *Server) setupMiddleware() {
	isProd := s.config.IsProduction()

	// Recover middleware (must be first)
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: !isProd,
	}))

	s.app.Use(requestid.New())

	allowedOrigins := s.config.Server.AllowedOrigins
	if allowedOrigins == "" {
		allowedOrigins = "*"
	}
	s.app.Use(cors.New(cors.Config{
		AllowOrigins: allowedOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, Stripe-Signature",
		AllowMethods: "GET, POST, OPTIONS",
	}))

	if !isProd {
		s.app.Use(logger.New())
	}

	s.app.Use(compress.New())

	s.app.Use(limiter.New(limiter.Config{
		Max:               300,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
	}))
}

func (s *Server) setupRoutes() {
	healthHandler := api.NewHealthHandler(s.db, s.redis)
	s.app.Get("/health", healthHandler.HealthCheck)

	creditsHandler := api.NewCreditsHandler(s.creditsService)
	authMW := middleware.NewAuthMiddleware(s.authProvider(), nil)
	v1 := s.app.Group("/v1", authMW.RequireAuth())

	if s.config.Billing != nil {
		stripeService := billing.NewStripeService(*s.config.Billing, s.creditsService)
		stripeHandler := api.NewStripeHandler(stripeService, s.creditsService, *s.config.Billing)
		s.app.Post("/webhooks/stripe", stripeHandler.HandleWebhook)
		v1.Post("/billing/checkout", stripeHandler.CreateCheckoutSession)
		v1.Post("/billing/reconcile", stripeHandler.Reconcile)
	}

	if s.config.Auth.Provider == "clerk" && s.config.Auth.ClerkConfig.WebhookSecret != "" {
		clerkHandler := api.NewClerkWebhookHandler(s.config.Auth.ClerkConfig.WebhookSecret, s.creditsService)
		s.app.Post("/webhooks/clerk", clerkHandler.HandleWebhook)
	}

	v1.Get("/credits/balance", creditsHandler.GetBalance)
	v1.Post("/credits/consume", creditsHandler.Consume)
	v1.Get("/credits/usage", creditsHandler.GetUsage)
	v1.Get("/credits/packages", creditsHandler.GetPackages)

	var perMinute int
	if s.config.Generation != nil {
		perMinute = s.config.Generation.RateLimitPerMinute
	}
	generateHandler := api.NewGenerateHandler(
		s.creditsService,
		generation.NewClient(s.config.Generation),
		generation.NewRateLimiter(s.redis, perMinute),
		s.worker,
		s.config.Generation,
	)
	v1.Post("/generations", generateHandler.Generate)
	v1.Get("/generations", generateHandler.GetHistory)
}

func createFiberApp(cfg *config.Config) *fiber.App {
	isProd := cfg.IsProduction()

	return fiber.New(fiber.Config{
		AppName:           "Instagen API v1.0",
		EnablePrintRoutes: !isProd,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       5 * time.Minute,
		CaseSensitive:     true,
		ServerHeader:      "Instagen",
	})
}

func setupLogLevel(cfg *config.Config) {
	switch cfg.Server.LogLevel {
	case "debug":
		fiberlog.SetLevel(fiberlog.LevelDebug)
	case "warn":
		fiberlog.SetLevel(fiberlog.LevelWarn)
	case "error":
		fiberlog.SetLevel(fiberlog.LevelError)
	default:
		fiberlog.SetLevel(fiberlog.LevelInfo)
	}
}
