package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/appverse/authapi/internal/config"
	"github.com/appverse/authapi/internal/database"
	"github.com/appverse/authapi/internal/handlers"
	"github.com/appverse/authapi/internal/identity"
	"github.com/appverse/authapi/internal/metrics"
	"github.com/appverse/authapi/internal/middleware"
	"github.com/appverse/authapi/internal/services"
	"github.com/appverse/authapi/internal/storage"
	"github.com/appverse/authapi/internal/store"
	"github.com/appverse/authapi/pkg/apptoken"
	"github.com/appverse/authapi/pkg/logger"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

func serve(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase()
	if err != nil {
		return err
	}
	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	wa, err := webauthn.New(&webauthn.Config{
		RPID:          cfg.WebAuthn.RPID,
		RPDisplayName: cfg.WebAuthn.RPDisplayName,
		RPOrigins:     cfg.WebAuthn.RPOrigins,
	})
	if err != nil {
		return fmt.Errorf("webauthn configuration failed: %w", err)
	}

	signer, err := apptoken.NewSigner(cfg.JWT.Secret)
	if err != nil {
		return fmt.Errorf("app token signer: %w", err)
	}

	challenges, closeStore, err := buildChallengeStore(ctx, db)
	if err != nil {
		return err
	}
	defer closeStore()

	var uploader services.ObjectUploader
	if cfg.MinIO.Endpoint != "" {
		storageClient, err := storage.NewMinIOClient(cfg.MinIO)
		if err != nil {
			return fmt.Errorf("minio initialization failed: %w", err)
		}
		if err := storageClient.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed ensuring minio bucket: %w", err)
		}
		uploader = storageClient
	}

	metrics.Init()

	credentials := store.NewGormCredentialStore(db)
	provider := identity.NewProvider(db)
	auditService := services.NewAuditService(db, uploader)
	defer auditService.Close()

	router := &handlers.Router{
		Prefix:      cfg.Server.RoutePrefix,
		Auth:        middleware.NewAuthMiddleware(provider, provider),
		RateLimiter: middleware.NewRateLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst),
		WebAuthn: handlers.NewWebAuthnHandler(
			services.NewRegistrationService(wa, challenges, credentials, cfg.Challenge.TTL),
			services.NewAuthenticationService(wa, challenges, credentials, provider, provider, cfg.Challenge.TTL),
			services.NewCredentialService(credentials),
			auditService,
		),
		Apps: handlers.NewAppsHandler(
			services.NewAppTokenService(signer, store.NewGormAppAccessStore(db), provider, provider, provider,
				cfg.Apps.Allowed, cfg.Apps.TokenTTL),
			auditService,
		),
	}
	app := router.NewApp()
	listenAddr := fmt.Sprintf(":%s", cfg.Server.Port)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server_starting", map[string]interface{}{
			"address":          listenAddr,
			"route_prefix":     cfg.Server.RoutePrefix,
			"challenge_store":  cfg.Challenge.Backend,
			"audit_export":     uploader != nil,
			"allowed_apps":     cfg.Apps.Allowed,
			"rate_limit_rpm":   cfg.RateLimit.RequestsPerMinute,
			"challenge_ttl":    cfg.Challenge.TTL.String(),
			"sweeper_interval": cfg.Challenge.SweepInterval.String(),
		})
		if err := app.Listen(listenAddr); err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("server_shutting_down", nil)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return services.NewChallengeSweeper(challenges, cfg.Challenge.SweepInterval).Run(ctx)
	})

	auditService.StartExporter(ctx, cfg.Audit.ExportInterval)

	return g.Wait()
}

// buildChallengeStore picks the challenge backend. The returned func
// releases any connection it opened.
func buildChallengeStore(ctx context.Context, db *gorm.DB) (store.ChallengeStore, func(), error) {
	if cfg.Challenge.Backend != config.ChallengeBackendRedis {
		return store.NewGormChallengeStore(db), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis connection failed: %w", err)
	}
	logger.Info("redis_challenge_store_ready", map[string]interface{}{
		"addr": cfg.Redis.Addr,
	})
	return store.NewRedisChallengeStore(client, "authapi"), func() { _ = client.Close() }, nil
}
