package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	config "github.com/avatarctic/wiki-contributions/configs"
	"github.com/avatarctic/wiki-contributions/internal/application/services"
	"github.com/avatarctic/wiki-contributions/internal/core/ports"
	"github.com/avatarctic/wiki-contributions/internal/infrastructure/captcha"
	"github.com/avatarctic/wiki-contributions/internal/infrastructure/crypto"
	"github.com/avatarctic/wiki-contributions/internal/infrastructure/db"
	"github.com/avatarctic/wiki-contributions/internal/infrastructure/email"
	"github.com/avatarctic/wiki-contributions/internal/infrastructure/health"
	"github.com/avatarctic/wiki-contributions/internal/infrastructure/hosting"
	"github.com/avatarctic/wiki-contributions/internal/infrastructure/httpserver"
	"github.com/avatarctic/wiki-contributions/internal/infrastructure/memory"
	"github.com/avatarctic/wiki-contributions/internal/infrastructure/moderation"
	"github.com/avatarctic/wiki-contributions/internal/infrastructure/redis"
	"github.com/avatarctic/wiki-contributions/internal/infrastructure/repositories"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	logger := newLogger(cfg.Log)
	logger.Info("Starting wiki contribution service...")

	var (
		cache          ports.Cache
		rateLimitStore ports.RateLimitStore
		hcSlice        []ports.HealthChecker
	)

	// Verification codes, consumed tokens and rate-limit history share one store.
	if cfg.Store.Backend == "redis" {
		redisClient, err := redis.NewRedisClient(&cfg.Redis)
		if err != nil {
			logger.Fatal("Failed to connect to Redis:", err)
		}
		defer redisClient.Close()
		logger.Info("Connected to Redis successfully")

		cache = redis.NewRedisCache(redisClient, cfg.Redis.KeyPrefix)
		rateLimitStore = repositories.NewRateLimitRedisRepository(redisClient, cfg.Redis.KeyPrefix)
		hcSlice = append(hcSlice, health.NewRedisHealthChecker(redisClient))
	} else {
		logger.Warn("Using in-memory store; limits and codes are per-process and lost on restart")
		cache = memory.NewCache()
		rateLimitStore = memory.NewRateLimitStore()
		hcSlice = append(hcSlice, health.NewStaticHealthChecker("memory-store"))
	}

	var auditRepo ports.AuditRepository
	if cfg.Database.Enabled() {
		database, err := db.Open(&cfg.Database)
		if err != nil {
			logger.Fatal("Failed to connect to database:", err)
		}
		defer database.Close()
		logger.Info("Connected to database successfully")

		version, err := database.Migrate(cfg.Database.MigrationsPath)
		if err != nil {
			logger.Warn("Failed to run migrations:", err)
		} else {
			logger.WithField("version", version).Info("Database schema up to date")
		}
		auditRepo = repositories.NewAuditRepository(database, logger)
		hcSlice = append(hcSlice, health.NewDBHealthChecker(database))
	} else {
		logger.Info("No database configured; audit records go to the log only")
		auditRepo = repositories.NewLogAuditRepository(logger)
	}

	deriver, err := crypto.NewKeyDeriver(cfg.Security.KeyDerivation)
	if err != nil {
		logger.Fatal("Invalid key derivation:", err)
	}
	cipher, err := crypto.NewSecretCipher(cfg.Security.EncryptionSecret, deriver)
	if err != nil {
		logger.Fatal("Failed to initialize secret cipher:", err)
	}

	codeRepo := repositories.NewVerificationCodeRepository(cache, logger)
	consumedRepo := repositories.NewConsumedTokenRepository(cache)

	emailService, err := email.NewEmailService(&email.EmailConfig{
		SendGridAPIKey: cfg.Email.SendGridAPIKey,
		FromEmail:      cfg.Email.FromEmail,
		FromName:       cfg.Email.FromName,
		SiteName:       cfg.Email.SiteName,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize email service:", err)
	}

	captchaClient := captcha.NewClient(captcha.Config{
		Secret:    cfg.Captcha.Secret,
		VerifyURL: cfg.Captcha.VerifyURL,
		Timeout:   cfg.Captcha.Timeout,
	}, logger)

	var primaryModeration ports.ModerationClassifier
	moderationClient := moderation.NewClient(moderation.Config{
		APIKey:  cfg.Moderation.APIKey,
		BaseURL: cfg.Moderation.BaseURL,
		Model:   cfg.Moderation.Model,
		Timeout: cfg.Moderation.Timeout,
	})
	if moderationClient.Configured() {
		primaryModeration = moderationClient
	} else {
		logger.Warn("Moderation API key not set; using denylist moderation only")
	}

	gateway, err := hosting.NewGitHubGateway(hosting.Config{
		Token:         cfg.Hosting.Token,
		Owner:         cfg.Hosting.Owner,
		Repo:          cfg.Hosting.Repo,
		DefaultBranch: cfg.Hosting.DefaultBranch,
		APIBaseURL:    cfg.Hosting.APIBaseURL,
		Timeout:       cfg.Hosting.Timeout,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize hosting gateway:", err)
	}

	codeStore := services.NewCodeStore(codeRepo, cipher, cfg.Security.CodeTTL, logger)
	tokenService := services.NewVerificationTokenService(cfg.Security.TokenSigningSecret, cfg.Security.TokenTTL, consumedRepo, logger)
	rateLimiter := services.NewRateLimiterService(rateLimitStore, logger)
	moderator := services.NewContentModerator(primaryModeration, services.NewDenylistClassifier(), cfg.Moderation.Timeout, logger)
	auditService := services.NewAuditService(auditRepo, logger)

	verificationService := services.NewVerificationService(codeStore, tokenService, emailService, rateLimiter, &services.VerificationLimits{
		CodeRequestMax:    cfg.RateLimit.CodeRequestMax,
		CodeRequestIPMax:  cfg.RateLimit.CodeIPMax,
		CodeRequestWindow: cfg.RateLimit.CodeRequestWindow,
		ConfirmMax:        cfg.RateLimit.ConfirmMax,
		ConfirmWindow:     cfg.RateLimit.ConfirmWindow,
	}, cfg.Security.CodeTTL, logger)

	contributionService := services.NewContributionService(
		tokenService,
		captchaClient,
		rateLimiter,
		moderator,
		gateway,
		auditService,
		&services.ContributionConfig{
			MinCaptchaScore:      cfg.Captcha.MinScore,
			SubmissionMax:        cfg.RateLimit.SubmissionMax,
			SubmissionWindow:     cfg.RateLimit.SubmissionWindow,
			ContentRoot:          cfg.Hosting.ContentRoot,
			ModerationPrefixRune: cfg.Moderation.MaxContentRune,
			CallTimeout:          cfg.Hosting.Timeout,
		},
		logger,
	)

	serverConfig := &httpserver.ServerConfig{
		Host:              cfg.Server.Host,
		Port:              cfg.Server.Port,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		TLSCertFile:       cfg.Server.TLSCertFile,
		TLSKeyFile:        cfg.Server.TLSKeyFile,
		AllowedOrigins:    cfg.Server.AllowedOrigins,
		Environment:       cfg.Server.Environment,
		AdminAPIToken:     cfg.Server.AdminAPIToken,
		TrustedProxies:    cfg.Server.TrustedProxyCIDRs,
		RequestsPerSecond: cfg.Server.RequestsPerSecond,
		RequestBurst:      cfg.Server.RequestBurst,
	}

	server := httpserver.NewServer(serverConfig, logger, httpserver.ServerDeps{
		VerificationService: verificationService,
		ContributionService: contributionService,
		AuditService:        auditService,
		HealthCheckers:      hcSlice,
	})

	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal("Failed to start server:", err)
		}
	}()

	logger.Infof("Server started on %s:%s", cfg.Server.Host, cfg.Server.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown:", err)
	}

	logger.Info("Server exited")
}

func newLogger(cfg config.LogConfig) *logrus.Logger {
	logger := logrus.New()
	if cfg.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}
