package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/13g7895123/crm-questionnaire-sub001/internal/audit"
	"github.com/13g7895123/crm-questionnaire-sub001/internal/handler"
	"github.com/13g7895123/crm-questionnaire-sub001/internal/ratelimit"
	"github.com/13g7895123/crm-questionnaire-sub001/internal/repository"
	"github.com/13g7895123/crm-questionnaire-sub001/internal/router"
	"github.com/13g7895123/crm-questionnaire-sub001/internal/service"
	"github.com/13g7895123/crm-questionnaire-sub001/pkg/config"
	"github.com/13g7895123/crm-questionnaire-sub001/pkg/database"
	"github.com/13g7895123/crm-questionnaire-sub001/pkg/logger"
	"github.com/13g7895123/crm-questionnaire-sub001/pkg/redisclient"
	"github.com/13g7895123/crm-questionnaire-sub001/pkg/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logCfg := &logger.Config{
		Level:       "info",
		ServiceName: cfg.App.Name,
		Development: cfg.IsDevelopment(),
	}
	if cfg.App.Debug {
		logCfg.Level = "debug"
	}
	if err := logger.Init(logCfg); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	appLog := logger.Get()
	appLog.Info("Starting questionnaire platform...")

	ctx := context.Background()

	telemetryCfg := &telemetry.Config{
		Enabled:        cfg.OTel.Enabled,
		ServiceName:    cfg.App.Name,
		ServiceVersion: cfg.App.Version,
		Environment:    cfg.App.Environment,
		CollectorAddr:  cfg.OTel.CollectorAddr,
	}
	if _, err := telemetry.Init(ctx, telemetryCfg); err != nil {
		appLog.Warn(fmt.Sprintf("Failed to initialize telemetry: %v", err))
	}
	defer telemetry.Shutdown(ctx)

	db, err := database.NewPostgres(ctx, &database.PostgresConfig{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.ConnMaxLifetime,
		MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
		ConnectTimeout:  5 * time.Second,
		MaxRetries:      3,
		RetryInterval:   time.Second,
		EnableTracing:   cfg.OTel.Enabled,
	})
	if err != nil {
		appLog.Fatal(fmt.Sprintf("Database connection failed: %v", err))
	}
	defer db.Close()

	redisCfg := redisclient.DefaultConfig()
	redisCfg.Host = cfg.Redis.Host
	redisCfg.Port = cfg.Redis.Port
	redisCfg.Password = cfg.Redis.Password
	redisCfg.DB = cfg.Redis.DB
	redisClient, err := redisclient.NewClient(ctx, redisCfg)
	if err != nil {
		appLog.Fatal(fmt.Sprintf("Redis connection failed: %v", err))
	}
	defer redisClient.Close()

	jwtSecret := cfg.JWT.Secret
	if jwtSecret == "" {
		if cfg.IsDevelopment() {
			jwtSecret = "dev-only-secret-key-do-not-use-in-production"
			appLog.Warn("JWT_SECRET not set, using dev-only default (NEVER use in production)")
		} else {
			appLog.Fatal("JWT_SECRET environment variable is required in production")
		}
	}

	userRepo := repository.NewPostgresUserRepository(db.Pool())
	authService := service.NewAuthService(userRepo, &service.AuthServiceConfig{
		JWTSecret:       jwtSecret,
		AccessTokenTTL:  cfg.JWT.AccessTokenTTL,
		RefreshTokenTTL: cfg.JWT.RefreshTokenTTL,
		Issuer:          cfg.JWT.Issuer,
		BcryptCost:      12,
	})

	limiter := ratelimit.NewLoginLimiter(redisClient.Client(), ratelimit.DefaultLoginLimiterConfig())

	var publisher audit.Publisher = audit.NopPublisher{}
	if cfg.Kafka.Enabled {
		kp, err := audit.NewKafkaPublisher(&audit.KafkaPublisherConfig{
			Brokers:  cfg.Kafka.Brokers,
			ClientID: cfg.Kafka.ClientID,
		})
		if err != nil {
			appLog.Warn(fmt.Sprintf("Audit publisher unavailable: %v", err))
		} else {
			publisher = kp
			defer kp.Close()
		}
	}

	authHandler := handler.NewAuthHandler(authService, limiter, publisher, &handler.AuthHandlerConfig{
		AccessTokenTTL: cfg.JWT.AccessTokenTTL,
		CookieSecure:   !cfg.IsDevelopment(),
	})
	healthHandler := handler.NewHealthHandler(db, redisClient)

	if cfg.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := router.New(&router.Config{
		AuthService:   authService,
		AuthHandler:   authHandler,
		HealthHandler: healthHandler,
		CORSOrigins:   cfg.CORS.AllowOrigins,
		RouteRoles:    cfg.RouteRoles,
		Log:           appLog,
		Tracing:       cfg.OTel.Enabled,
	})

	// Resource groups are gated here; their handlers live in the
	// questionnaire services and register on these groups.
	for _, group := range []struct{ name, path string }{
		{"users", "/users"},
		{"organizations", "/organizations"},
		{"departments", "/departments"},
		{"projects", "/projects"},
		{"project_suppliers", "/project-suppliers"},
		{"templates", "/templates"},
		{"reviews", "/reviews"},
		{"files", "/files"},
	} {
		r.ProtectedGroup(group.name, group.path)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r.Engine(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ReadHeaderTimeout: 2 * time.Second,
	}

	go func() {
		appLog.Info(fmt.Sprintf("Listening on %s", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLog.Fatal(fmt.Sprintf("Failed to start server: %v", err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Fatal(fmt.Sprintf("Server forced to shutdown: %v", err))
	}

	appLog.Info("Server exited gracefully")
}
