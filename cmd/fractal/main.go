package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rishabhxchoudhary/fractal/internal/cache"
	"github.com/rishabhxchoudhary/fractal/internal/config"
	httpserver "github.com/rishabhxchoudhary/fractal/internal/http"
	"github.com/rishabhxchoudhary/fractal/internal/notification"
	"github.com/rishabhxchoudhary/fractal/pkg/auth"
	"github.com/rishabhxchoudhary/fractal/pkg/project"
	"github.com/rishabhxchoudhary/fractal/pkg/repository"
	"github.com/rishabhxchoudhary/fractal/pkg/tenant"
	"github.com/rishabhxchoudhary/fractal/pkg/workspace"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Connect to database
	db, err := repository.NewDB(repository.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		DBName:   cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	logger.Info("connected to database")

	// Initialize repositories
	usersRepo := repository.NewUsersRepository(db)
	workspacesRepo := repository.NewWorkspacesRepository(db)
	membershipsRepo := repository.NewMembershipsRepository(db)
	invitationsRepo := repository.NewInvitationsRepository(db)
	projectsRepo := repository.NewProjectsRepository(db)
	projectMembersRepo := repository.NewProjectMembersRepository(db)
	sessionsRepo := repository.NewSessionsRepository(db)

	// Slug cache (optional)
	var slugCache *cache.SlugCache
	if cfg.HasRedis() {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		slugCache = cache.NewSlugCache(client)
		if err := slugCache.Ping(context.Background()); err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		logger.Info("slug cache enabled")
	}

	// Invite mail delivery (optional)
	var mailer workspace.InviteMailer
	if cfg.HasSMTP() {
		mailer = notification.NewEmailService(notification.EmailConfig{
			Host:      cfg.SMTPHost,
			Port:      cfg.SMTPPort,
			User:      cfg.SMTPUser,
			Password:  cfg.SMTPPassword,
			From:      cfg.SMTPFrom,
			FromName:  cfg.SMTPFromName,
			AcceptURL: tenant.URL(cfg.Scheme, "", cfg.RootDomain, "/invite"),
		})
		logger.Info("email service enabled")
	}

	// Initialize services
	sessionService := auth.NewSessionService(auth.SessionConfig{
		AccessTokenTTL:  cfg.AccessTokenTTL,
		RefreshTokenTTL: cfg.RefreshTokenTTL,
		JWTSecret:       []byte(cfg.JWTSecret),
		Issuer:          cfg.JWTIssuer,
	}, sessionsRepo, usersRepo)

	workspaceService := workspace.NewService(
		db,
		workspacesRepo,
		membershipsRepo,
		invitationsRepo,
		usersRepo,
		mailer,
	)
	workspaceService.SetInviteTTL(cfg.InviteTTL)

	projectService := project.NewService(
		db,
		projectsRepo,
		projectMembersRepo,
		membershipsRepo,
	)

	// Initialize Google service if configured
	var googleService *auth.GoogleService
	if cfg.HasGoogleOAuth() {
		googleService = auth.NewGoogleService(
			auth.GoogleConfig{
				ClientID:     cfg.GoogleClientID,
				ClientSecret: cfg.GoogleClientSecret,
				RedirectURI:  cfg.GoogleRedirectURI,
			},
			usersRepo,
		)
		logger.Info("Google OAuth enabled")
	}

	// Create router
	router := httpserver.NewRouter(httpserver.RouterConfig{
		Logger:           logger,
		GoogleService:    googleService,
		SessionService:   sessionService,
		WorkspaceService: workspaceService,
		ProjectService:   projectService,
		SlugCache:        slugCache,
		Scheme:           cfg.Scheme,
		RootDomain:       cfg.RootDomain,
		CookieSecure:     cfg.CookieSecure,
		RateLimitConfig:  cfg.RateLimit,
		SecurityHeaders:  cfg.SecurityHeaders,
		Validation:       cfg.Validation,
	})

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.ServerAddr, cfg.ServerPort)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting server", "addr", addr, "root_domain", cfg.RootDomain)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server stopped")
}
