// Package main runs the volunteer events HTTP server with WebSocket chat and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eblago/backend/config"
	"github.com/eblago/backend/internal/auth"
	"github.com/eblago/backend/internal/chat"
	"github.com/eblago/backend/internal/events"
	"github.com/eblago/backend/internal/middleware"
	"github.com/eblago/backend/internal/models"
	"github.com/eblago/backend/internal/notifications"
	"github.com/eblago/backend/internal/organizerrequests"
	"github.com/eblago/backend/internal/realtime"
	"github.com/eblago/backend/internal/registrations"
	"github.com/eblago/backend/internal/statistics"
	"github.com/eblago/backend/internal/users"
	"github.com/eblago/backend/internal/worker"
	"github.com/eblago/backend/pkg/database"
	"github.com/eblago/backend/pkg/queue"
	"github.com/eblago/backend/pkg/redis"
	"github.com/eblago/backend/pkg/response"
	"github.com/eblago/backend/pkg/storage"
	"github.com/eblago/backend/pkg/validation"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.Sentry.DSN, Environment: cfg.Sentry.Environment}); err != nil {
			logger.Warn("sentry disabled", zap.Error(err))
		}
		defer sentry.Flush(2 * time.Second)
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), database.PoolOptions{
		MaxConns:        int32(cfg.Database.MaxConns),
		MaxConnLifetime: time.Hour,
	}, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	images, err := newImageStore(ctx, cfg, logger)
	if err != nil {
		logger.Warn("image storage disabled", zap.Error(err))
	}

	validation.RegisterGin()

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.RefreshSecret, cfg.JWT.ExpireHours, cfg.JWT.RefreshExpireHours)
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Events and participation
	eventService := events.NewService(events.NewRepository(pool), images, jobQueue, logger)
	eventHandler := events.NewHandler(eventService)
	registrationService := registrations.NewService(registrations.NewRepository(pool), eventService, logger)
	registrationHandler := registrations.NewHandler(registrationService)

	// Chat
	chatService := chat.NewService(chat.NewRepository(pool), hub, logger)
	chatHandler := chat.NewHandler(chatService)

	// Users and organizer promotion
	userService := users.NewService(users.NewRepository(pool), eventService, images, jobQueue, logger)
	userHandler := users.NewHandler(userService)
	requestService := organizerrequests.NewService(organizerrequests.NewRepository(pool), authRepo, logger)
	requestHandler := organizerrequests.NewHandler(requestService)

	notificationHandler := notifications.NewHandler(notifications.NewService(notifications.NewRepository(pool)))
	statisticsHandler := statistics.NewHandler(statistics.NewRepository(pool))

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.MaxMultipartMemory = int64(cfg.Server.MaxUploadMB) << 20
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins()))
	router.Use(middleware.Logger(logger))

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	requireJWT := middleware.JWT(jwtService, logger)
	adminOnly := middleware.RequireRole(models.RoleAdmin)

	api := router.Group("/api")

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/refresh-token", authHandler.Refresh)
		authGroup.GET("/me", requireJWT, authHandler.Me)
		authGroup.POST("/logout", requireJWT, authHandler.Logout)
	}

	eventGroup := api.Group("/events")
	{
		eventGroup.GET("", eventHandler.List)
		eventGroup.GET("/:id", eventHandler.GetByID)
		eventGroup.POST("", requireJWT, middleware.RequireRole(models.RoleOrganizer, models.RoleAdmin), eventHandler.Create)
		eventGroup.PUT("/:id", requireJWT, eventHandler.Update)
		eventGroup.DELETE("/:id", requireJWT, eventHandler.Delete)
		eventGroup.POST("/:id/register", requireJWT, registrationHandler.Register)
		eventGroup.POST("/:id/unregister", requireJWT, registrationHandler.Unregister)
	}

	chatGroup := api.Group("/chat", requireJWT)
	{
		chatGroup.GET("/events/:eventId/messages", chatHandler.List)
		chatGroup.POST("/events/:eventId/messages", chatHandler.Send)
		chatGroup.PUT("/messages/:messageId", chatHandler.Edit)
		chatGroup.DELETE("/messages/:messageId", chatHandler.Delete)
	}

	userGroup := api.Group("/users", requireJWT)
	{
		userGroup.GET("/profile", userHandler.GetProfile)
		userGroup.PUT("/profile", userHandler.UpdateProfile)
		userGroup.PUT("/password", userHandler.ChangePassword)
		userGroup.DELETE("/account", userHandler.DeleteAccount)
		userGroup.GET("/events", userHandler.Events)
		userGroup.POST("/organizer-request", requestHandler.Apply)

		userGroup.GET("", adminOnly, userHandler.List)
		userGroup.GET("/:id", adminOnly, userHandler.Get)
		userGroup.PUT("/:id/role", adminOnly, userHandler.SetRole)
		userGroup.PUT("/:id/block", adminOnly, userHandler.Block)
		userGroup.PUT("/:id/unblock", adminOnly, userHandler.Unblock)
	}

	requestGroup := api.Group("/organizer-requests", requireJWT, adminOnly)
	{
		requestGroup.GET("", requestHandler.List)
		requestGroup.GET("/:id", requestHandler.Get)
		requestGroup.PUT("/:id/approve", requestHandler.Approve)
		requestGroup.PUT("/:id/reject", requestHandler.Reject)
	}

	notificationGroup := api.Group("/notifications", requireJWT)
	{
		notificationGroup.GET("", notificationHandler.List)
		notificationGroup.PUT("/read-all", notificationHandler.MarkAllRead)
		notificationGroup.PUT("/:id/read", notificationHandler.MarkRead)
		notificationGroup.DELETE("/:id", notificationHandler.Delete)
		notificationGroup.DELETE("", notificationHandler.DeleteAll)
	}

	api.GET("/statistics", requireJWT, adminOnly, statisticsHandler.Get)

	// WebSocket (token in handshake query or Authorization header)
	router.GET("/ws", realtime.ServeWs(hub, logger, auth.SocketAuthenticator(jwtService, authRepo)))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Background worker (deleting replaced images from storage)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	if images != nil {
		go worker.NewImageCleanupProcessor(images, jobQueue, logger).Run(workerCtx)
		logger.Info("image cleanup worker started")
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

// newImageStore returns nil when no provider is configured.
func newImageStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.ImageStore, error) {
	switch cfg.Storage.ImageProvider {
	case "s3":
		s3, err := storage.NewS3(ctx, storage.S3Config{
			Region:          cfg.AWS.Region,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
			ImagesBucket:    cfg.AWS.ImagesBucket,
			PublicRead:      cfg.AWS.PublicRead,
		}, logger)
		if err != nil {
			return nil, err
		}
		return s3, nil
	case "cloudinary":
		cld, err := storage.NewCloudinary(storage.CloudinaryConfig{
			CloudName: cfg.Cloudinary.CloudName,
			APIKey:    cfg.Cloudinary.APIKey,
			APISecret: cfg.Cloudinary.APISecret,
			Folder:    cfg.Cloudinary.Folder,
		}, logger)
		if err != nil {
			return nil, err
		}
		return cld, nil
	}
	return nil, nil
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
