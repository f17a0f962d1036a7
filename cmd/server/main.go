package main

import (
	"collab-docs/internal/comment"
	"collab-docs/internal/config"
	"collab-docs/internal/db"
	"collab-docs/internal/document"
	"collab-docs/internal/logger"
	"collab-docs/internal/middleware"
	"collab-docs/internal/notification"
	"collab-docs/internal/permission"
	syncengine "collab-docs/internal/sync"
	"collab-docs/internal/user"
	"collab-docs/internal/version"
	"collab-docs/internal/worker"
	"collab-docs/redis"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	config.LoadConfig()

	log := logger.New(config.AppConfig.Environment)

	// Connect to database
	db.ConnectDb()
	defer db.CloseDb()

	// Migrate database schema
	db.Migrate()

	// Initialize cache and worker pool
	cache := redis.NewCache(config.AppConfig.RedisAddress)
	pool := worker.NewWorkerPool(config.AppConfig.WorkerPoolSize, log)
	defer pool.Shutdown()

	// Initialize repositories
	userRepo := user.NewRepository(db.AppDb)
	permissionRepo := permission.NewRepository(db.AppDb)
	documentRepo := document.NewRepository(db.AppDb)
	versionRepo := version.NewRepository(db.AppDb)
	commentRepo := comment.NewRepository(db.AppDb)
	notificationRepo := notification.NewRepository(db.AppDb)
	syncRepo := syncengine.NewRepository(db.AppDb)

	// Initialize services
	userService := user.NewService(userRepo)
	notificationService := notification.NewService(notificationRepo, log)
	permissionService := permission.NewService(permissionRepo, notificationService, cache)
	documentService := document.NewService(documentRepo, permissionService, notificationService, cache, pool, log)
	versionService := version.NewService(versionRepo, permissionService)
	commentService := comment.NewService(commentRepo, permissionService, notificationService, log)

	hub := syncengine.NewHub(
		permissionService,
		documentService,
		syncRepo,
		log,
		config.AppConfig.TouchDebounce,
		config.AppConfig.SnapshotThreshold,
	)

	// Initialize handlers
	userHandler := user.NewHandler(userService)
	documentHandler := document.NewHandler(documentService)
	permissionHandler := permission.NewHandler(permissionService)
	versionHandler := version.NewHandler(versionService)
	commentHandler := comment.NewHandler(commentService)
	notificationHandler := notification.NewHandler(notificationService)
	syncHandler := syncengine.NewHandler(syncRepo)

	authMiddleware := &middleware.Auth{
		JWTSecret:      []byte(config.AppConfig.JWTSecret),
		InternalSecret: config.AppConfig.InternalSecret,
	}

	// Initialize Gin router
	router := gin.Default()
	router.Use(middleware.ErrorHandler())

	// cors setting
	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
	}
	if config.AppConfig.Environment == "development" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = []string{config.AppConfig.FrontendAddress}
	}
	router.Use(cors.New(corsConfig))

	authed := router.Group("/", authMiddleware.AuthMiddleWare())

	// User directory routes
	authed.PUT("/users/sync", userHandler.Sync)
	authed.GET("/users", userHandler.SearchUsers)

	// Document routes
	authed.POST("/documents", documentHandler.Create)
	authed.GET("/documents", documentHandler.List)
	authed.GET("/documents/:id", documentHandler.Show)
	authed.PUT("/documents/:id", documentHandler.Rename)
	authed.DELETE("/documents/:id", documentHandler.Delete)
	authed.POST("/documents/:id/access", documentHandler.TrackAccess)

	// Permission routes
	authed.GET("/documents/:id/permissions", permissionHandler.ListWithUsers)
	authed.POST("/documents/:id/permissions", permissionHandler.Grant)
	authed.DELETE("/documents/:id/permissions/:userId", permissionHandler.Revoke)
	authed.GET("/documents/:id/role", permissionHandler.GetMyRole)

	// Version routes
	authed.POST("/documents/:id/versions", versionHandler.Save)
	authed.GET("/documents/:id/versions", versionHandler.List)
	authed.POST("/versions/:id/restore", versionHandler.Restore)

	// Comment routes
	authed.POST("/documents/:id/comments", commentHandler.Create)
	authed.GET("/documents/:id/comments", commentHandler.GetForDocument)
	authed.DELETE("/comments/:id", commentHandler.Remove)

	// Notification routes
	authed.GET("/notifications", notificationHandler.GetForUser)
	authed.GET("/notifications/unread-count", notificationHandler.UnreadCount)
	authed.PUT("/notifications/read-all", notificationHandler.MarkAllAsRead)
	authed.PUT("/notifications/:id/read", notificationHandler.MarkAsRead)
	authed.DELETE("/notifications/:id", notificationHandler.Remove)
	authed.DELETE("/notifications", notificationHandler.ClearAll)

	// Sync channel
	authed.GET("/documents/:id/sync", hub.HandleWS)

	// internal use routes
	router.GET("/internal/documents/:id/state",
		authMiddleware.InternalAuthMiddleware(), syncHandler.ShowState)

	// Server configuration
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", config.AppConfig.ServerPort),
		Handler: router.Handler(),
	}

	// Start server
	go func() {
		log.Info().Str("port", config.AppConfig.ServerPort).Msg("server listening")
		err := server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}

	log.Info().Msg("server shutdown complete")
}
