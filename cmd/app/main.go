package main

import (
	"context"
	"log"

	"collection-runner/internal/cache"
	"collection-runner/internal/collection"
	"collection-runner/internal/config"
	"collection-runner/internal/db"
	"collection-runner/internal/handlers"
	"collection-runner/internal/logger"
	"collection-runner/internal/middleware"
	"collection-runner/internal/runner"
	"collection-runner/internal/script"
	"collection-runner/internal/share"
	"collection-runner/internal/store"
	"collection-runner/internal/version"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	lg := logger.New(cfg.LogLevel, cfg.LogPretty)
	defer lg.Sync()

	// Connect to database
	database, err := db.NewConnection(cfg.DatabaseURL())
	if err != nil {
		lg.Fatal("failed to connect to database", logger.Error(err))
	}
	defer database.Close()
	lg.Info("connected to database")

	records := store.NewPostgres(database)

	// Cache is optional: without a Redis address the service runs straight
	// against the store.
	var collectionCache cache.CollectionCache = cache.Disabled{}
	if cfg.RedisAddr != "" {
		redisClient, err := cache.Connect(context.Background(), cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			lg.Fatal("failed to connect to redis", logger.Error(err))
		}
		defer redisClient.Close()
		collectionCache = cache.NewRedis(redisClient, cfg.CacheTTL, lg)
		lg.Info("connected to redis", logger.String("addr", cfg.RedisAddr))
	}

	// Core services
	versions := version.NewManager(records.Versions, records.Collections, cfg.MaxVersions)
	collections := collection.NewService(records.Collections, collectionCache, versions, cfg.MaxHeaderCount)
	shares := share.NewManager(records.Shares, cfg.ShareTokenBytes)
	transport := &runner.HTTPTransport{
		DefaultTimeout:  cfg.RequestTimeout,
		MaxRedirects:    cfg.MaxRedirects,
		MaxResponseSize: cfg.MaxResponseSize,
		AllowLocalhost:  cfg.AllowLocalhost,
		AllowPrivateIPs: cfg.AllowPrivateIPs,
	}
	runs := runner.NewService(collections, records.Environments, records.Runs, transport, script.NewExprHost(), lg, cfg.MaxRunDelay)

	// Initialize Gin router
	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery()) // Panic recovery
	// CORS middleware - allow localhost:5173 for development
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:5173"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * 3600,
	}))
	router.Use(middleware.Logger(lg)) // Request logging

	// Initialize rate limiter
	limiter := middleware.NewIPRateLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)

	// Initialize handlers
	collectionHandler := handlers.NewCollectionHandler(collections, versions, cfg)
	itemHandler := handlers.NewItemHandler(collections)
	environmentHandler := handlers.NewEnvironmentHandler(records.Environments)
	runHandler := handlers.NewRunHandler(runs)
	shareHandler := handlers.NewShareHandler(shares, collections)
	versionHandler := handlers.NewVersionHandler(versions, collections)

	// Health check endpoint (no rate limit)
	router.GET("/health", handlers.HealthCheck)

	// API routes
	api := router.Group("/api/v1")
	{
		// Collections
		api.POST("/collections", collectionHandler.CreateCollection)
		api.POST("/collections/upload", collectionHandler.UploadCollection)
		api.GET("/collections", collectionHandler.ListCollections)
		api.GET("/collections/:id", collectionHandler.GetCollection)
		api.GET("/collections/:id/tree", collectionHandler.GetCollectionTree)
		api.GET("/collections/:id/export", collectionHandler.ExportCollection)
		api.PUT("/collections/:id", collectionHandler.UpdateCollection)
		api.DELETE("/collections/:id", collectionHandler.DeleteCollection)

		// Items
		api.POST("/collections/:id/items", itemHandler.CreateItem)
		api.GET("/collections/:id/items/:itemId", itemHandler.GetItem)
		api.PUT("/collections/:id/items/:itemId", itemHandler.UpdateItem)
		api.PATCH("/collections/:id/items/:itemId/move", itemHandler.MoveItem)
		api.DELETE("/collections/:id/items/:itemId", itemHandler.DeleteItem)

		// Execution (with rate limiting)
		api.POST("/collections/:id/run", middleware.RateLimit(limiter), runHandler.StartRun)
		api.POST("/collections/:id/items/:itemId/execute", middleware.RateLimit(limiter), runHandler.ExecuteItem)
		api.GET("/collections/:id/runs", runHandler.ListRuns)
		api.GET("/runs/:id", runHandler.GetRun)
		api.POST("/runs/:id/cancel", runHandler.CancelRun)

		// Versions
		api.GET("/collections/:id/versions", versionHandler.ListVersions)
		api.GET("/collections/:id/versions/diff", versionHandler.DiffVersions)
		api.POST("/collections/:id/versions/:versionId/restore", versionHandler.RestoreVersion)

		// Shares
		api.POST("/collections/:id/shares", shareHandler.CreateShare)
		api.DELETE("/shares/:token", shareHandler.RevokeShare)
		api.GET("/shared/:token", shareHandler.ResolveShare)

		// Environments
		api.POST("/environments", environmentHandler.CreateEnvironment)
		api.GET("/environments", environmentHandler.ListEnvironments)
		api.GET("/environments/:id", environmentHandler.GetEnvironment)
		api.PUT("/environments/:id", environmentHandler.UpdateEnvironment)
		api.PATCH("/environments/:id/variables", environmentHandler.BatchUpdateEnvironmentVariables)
		api.DELETE("/environments/:id", environmentHandler.DeleteEnvironment)
	}

	// Start server
	address := ":" + cfg.Port
	lg.Info("server starting", logger.String("address", address))
	if err := router.Run(address); err != nil {
		lg.Fatal("failed to start server", logger.Error(err))
	}
}
