// Package app wires configuration, storage, background jobs, and the HTTP
// API into a runnable service.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/coverwatch/coverwatch/internal/batch"
	"github.com/coverwatch/coverwatch/internal/cache"
	"github.com/coverwatch/coverwatch/internal/config"
	"github.com/coverwatch/coverwatch/internal/db"
	adminapi "github.com/coverwatch/coverwatch/internal/http/api/admin"
	"github.com/coverwatch/coverwatch/internal/logging"
	"github.com/coverwatch/coverwatch/internal/models"
	"github.com/coverwatch/coverwatch/internal/security"
	internalsettings "github.com/coverwatch/coverwatch/internal/settings"
)

// shutdownTimeout bounds how long in-flight requests may linger once the
// process is asked to stop.
const shutdownTimeout = 15 * time.Second

// Migrate opens the database and runs migrations, then exits. Used by the
// migrate subcommand so deploys can run schema changes ahead of rollout.
func Migrate(_ context.Context, configPath string) error {
	cfg, errLoad := config.Load(config.ResolveConfigPath(configPath))
	if errLoad != nil {
		return errLoad
	}
	conn, errOpen := db.Open(cfg.Database.DSN)
	if errOpen != nil {
		return errOpen
	}
	return db.Migrate(conn)
}

// RunServer boots the compliance service: storage, settings snapshot, batch
// scheduler, and the admin HTTP API.
func RunServer(ctx context.Context, configPath string) error {
	cfg, errLoad := config.Load(config.ResolveConfigPath(configPath))
	if errLoad != nil {
		return errLoad
	}
	logging.Setup(cfg.Log)

	conn, errOpen := db.Open(cfg.Database.DSN)
	if errOpen != nil {
		return errOpen
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}
	if errRefresh := internalsettings.RefreshDBConfigSnapshot(ctx, conn); errRefresh != nil {
		return fmt.Errorf("load settings: %w", errRefresh)
	}
	if errBootstrap := bootstrapAdmin(ctx, conn, cfg.Auth.Bootstrap); errBootstrap != nil {
		return errBootstrap
	}

	var redisClient *redis.Client
	if strings.TrimSpace(cfg.Redis.Addr) != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if errPing := redisClient.Ping(ctx).Err(); errPing != nil {
			log.WithError(errPing).Warn("redis unreachable, evaluation cache disabled")
			redisClient = nil
		}
	}
	resultCache := cache.NewResultCache(redisClient, 0)

	runner := batch.NewRunner(conn, resultCache)
	if scheduler := batch.NewScheduler(conn, runner); scheduler != nil {
		scheduler.Start(ctx)
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	adminapi.RegisterAdminRoutes(engine, conn, cfg.Auth, runner, resultCache)

	server := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("coverwatch listening on %s", cfg.ListenAddr())
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
			return errShutdown
		}
		return nil
	case errServe := <-errCh:
		if errors.Is(errServe, http.ErrServerClosed) {
			return nil
		}
		return errServe
	}
}

// bootstrapAdmin seeds the first admin account when the admins table is
// empty and the config names one. Never touches existing accounts.
func bootstrapAdmin(ctx context.Context, conn *gorm.DB, bootstrap config.BootstrapAdmin) error {
	username := strings.TrimSpace(bootstrap.Username)
	password := strings.TrimSpace(bootstrap.Password)
	if username == "" || password == "" {
		return nil
	}

	var count int64
	if errCount := conn.WithContext(ctx).Model(&models.Admin{}).Count(&count).Error; errCount != nil {
		return errCount
	}
	if count > 0 {
		return nil
	}

	hash, errHash := security.HashPassword(password)
	if errHash != nil {
		return errHash
	}
	admin := models.Admin{Username: username, PasswordHash: hash, IsActive: true}
	if errCreate := conn.WithContext(ctx).Create(&admin).Error; errCreate != nil {
		return fmt.Errorf("bootstrap admin: %w", errCreate)
	}
	log.Infof("bootstrapped admin account %q", username)
	return nil
}
