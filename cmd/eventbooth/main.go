package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/ManuelReschke/EventBooth/app/controllers"
	"github.com/ManuelReschke/EventBooth/internal/pkg/archive"
	"github.com/ManuelReschke/EventBooth/internal/pkg/audit"
	"github.com/ManuelReschke/EventBooth/internal/pkg/billing"
	"github.com/ManuelReschke/EventBooth/internal/pkg/cache"
	"github.com/ManuelReschke/EventBooth/internal/pkg/constants"
	"github.com/ManuelReschke/EventBooth/internal/pkg/database"
	"github.com/ManuelReschke/EventBooth/internal/pkg/env"
	"github.com/ManuelReschke/EventBooth/internal/pkg/identity"
	"github.com/ManuelReschke/EventBooth/internal/pkg/metrics/counter"
	"github.com/ManuelReschke/EventBooth/internal/pkg/router"
	"github.com/ManuelReschke/EventBooth/internal/pkg/security"
)

const shutdownTimeout = 10 * time.Second

func main() {
	src := env.Load()

	app, cleanup, err := NewApplication(src)
	if err != nil {
		log.Fatalf("[Main] Startup failed: %v", err)
	}

	go func() {
		addr := fmt.Sprintf("%s:%s", src.GetEnv("APP_HOST", "localhost"), src.GetEnv("APP_PORT", "4000"))
		if err := app.Listen(addr); err != nil {
			log.Errorf("[Main] Server stopped: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("[Main] Shutting down")
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		log.Errorf("[Main] Shutdown failed: %v", err)
	}
	cleanup()
}

// NewApplication wires every component and returns the fiber app together
// with a cleanup func that flushes the audit log and closes connections.
func NewApplication(src env.Source) (*fiber.App, func(), error) {
	webhookCfg, err := billing.LoadConfig(src)
	if err != nil {
		return nil, nil, err
	}
	verifier, err := billing.NewVerifier(webhookCfg.WebhookSecret)
	if err != nil {
		return nil, nil, err
	}

	db, err := database.Open(database.LoadConfig(src))
	if err != nil {
		return nil, nil, fmt.Errorf("database: %w", err)
	}

	cacheCfg := cache.LoadConfig(src)
	redisClient := cache.NewClient(cacheCfg)

	identityCfg := identity.LoadConfig(src)
	directory, store, err := identity.NewDirectory(identityCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("identity directory: %w", err)
	}
	resolver := identity.NewResolver(db, directory,
		cache.NewCustomerIDCache(redisClient, identityCfg.CacheTTL), identityCfg.Timeout)

	archiveCfg, err := archive.LoadConfig(src)
	if err != nil {
		return nil, nil, fmt.Errorf("audit archive: %w", err)
	}
	var auditLog *audit.Log
	archiveClient, err := archive.NewClient(context.Background(), archiveCfg)
	switch {
	case err == nil:
		auditLog = audit.NewLog(db, archiveClient)
	case errors.Is(err, archive.ErrDisabled):
		auditLog = audit.NewLog(db, nil)
	default:
		return nil, nil, fmt.Errorf("audit archive: %w", err)
	}

	processor := billing.NewProcessor(db, database.ProvisioningTxOptions())
	pipeline := billing.NewPipeline(verifier, auditLog, billing.NewPackageResolver(db), resolver, processor)
	replayer := billing.NewReplayer(auditLog, pipeline)
	outcomes := counter.NewOutcomes(redisClient)

	// init fiber app
	app := fiber.New(fiber.Config{
		AppName:   "EventBooth",
		BodyLimit: 4 * 1024 * 1024,
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// SWAGGER / OPENAPI
	if docs := findDocs(); docs != "" {
		app.Use(swagger.New(swagger.Config{
			BasePath: constants.DocsBasePath,
			FilePath: docs,
			Path:     constants.DocsVersionPath,
		}))
	}

	// ROUTER
	router.InstallRouter(app, router.Dependencies{
		Health:         controllers.NewHealthController(db),
		Webhooks:       controllers.NewWebhookController(pipeline, outcomes, webhookCfg.RequestTimeout),
		Operator:       controllers.NewOperatorController(auditLog, replayer, outcomes),
		OperatorAuth:   security.LoadOperatorConfig(src),
		LimiterStorage: cache.NewFiberStorage(cacheCfg),
	})

	cleanup := func() {
		auditLog.Wait()
		if store != nil {
			if err := store.Close(); err != nil {
				log.Warnf("[Main] Closing legacy store: %v", err)
			}
		}
		if redisClient != nil {
			_ = redisClient.Close()
		}
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	return app, cleanup, nil
}

// findDocs locates the OpenAPI document from the usual working directories.
func findDocs() string {
	basePaths := []string{
		"./",        // Current directory
		"../../",    // From cmd/eventbooth to project root
		"../../../", // Fallback
	}
	for _, path := range basePaths {
		file := path + constants.OpenAPIDocsFile
		if _, err := os.Stat(file); err == nil {
			return file
		}
	}
	log.Warn("[Main] OpenAPI document not found, /docs/api/v1 disabled")
	return ""
}
