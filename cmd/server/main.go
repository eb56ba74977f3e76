// Package main runs the community events HTTP server with WebSocket and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/civic-events/backend/config"
	"github.com/civic-events/backend/internal/auth"
	"github.com/civic-events/backend/internal/comments"
	"github.com/civic-events/backend/internal/events"
	"github.com/civic-events/backend/internal/middleware"
	"github.com/civic-events/backend/internal/notifications"
	"github.com/civic-events/backend/internal/plans"
	"github.com/civic-events/backend/internal/profiles"
	"github.com/civic-events/backend/internal/realtime"
	"github.com/civic-events/backend/internal/session"
	"github.com/civic-events/backend/internal/web"
	"github.com/civic-events/backend/internal/worker"
	"github.com/civic-events/backend/pkg/database"
	"github.com/civic-events/backend/pkg/queue"
	"github.com/civic-events/backend/pkg/redis"
	"github.com/civic-events/backend/pkg/response"
	"github.com/civic-events/backend/pkg/storage"
	"github.com/civic-events/backend/pkg/validation"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if cfg.Server.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(cfg.Database.DSN(), logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	// Redis is optional: without it the hub stays local and status changes are not queued.
	var (
		notifier events.Notifier
		jobQueue *queue.Queue
		hub      *realtime.Hub
	)
	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Warn("redis unavailable, running single instance", zap.Error(err))
		hub = realtime.NewHub(logger, nil, nil)
	} else {
		defer rdb.Close()
		pubsub := realtime.NewRedisPubSub(rdb.Client, logger)
		hub = realtime.NewHub(logger, pubsub, pubsub)
		jobQueue = queue.NewQueue(rdb.Client, logger)
		notifier = jobQueue
	}

	var avatars profiles.AvatarStorage
	s3Cfg := storage.S3Config{
		Region:          cfg.AWS.Region,
		AccessKeyID:     cfg.AWS.AccessKeyID,
		SecretAccessKey: cfg.AWS.SecretAccessKey,
		AvatarsBucket:   cfg.AWS.AvatarsBucket,
	}
	if s3Cfg.Enabled() {
		s3Client, err := storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		} else {
			avatars = s3Client
		}
	}

	validation.Register()
	sessions := session.NewManager(cfg.Session.Secret, cfg.Session.ExpireHours, cfg.Session.CookieName, cfg.Session.Secure)

	// Accounts
	userRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(userRepo, sessions, logger)
	profileHandler := profiles.NewHandler(userRepo, avatars, logger)

	// Events, plans, comments
	eventRepo := events.NewRepository(pool)
	planRepo := plans.NewRepository(pool)
	commentRepo := comments.NewRepository(pool)
	eventHandler := events.NewHandler(eventRepo, commentRepo, planRepo, notifier, hub, cfg.Events.DefaultRequiredUpvotes, logger)
	planHandler := plans.NewHandler(planRepo, logger)
	commentHandler := comments.NewHandler(commentRepo, eventRepo, eventHandler, logger)

	// Notifications
	notificationRepo := notifications.NewRepository(pool)
	notificationHandler := notifications.NewHandler(notificationRepo, userRepo, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Session(sessions))
	web.Install(router)
	router.NoRoute(func(c *gin.Context) { web.NotFound(c, "Page not found.") })

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Public pages
	router.GET("/", eventHandler.Home)
	router.GET("/about/", web.About)
	router.GET("/events/", eventHandler.List)
	router.GET("/events/detail/:id/", eventHandler.Detail)
	router.GET("/profile/:username/", profileHandler.Profile)

	// Accounts
	accounts := router.Group("/accounts")
	{
		accounts.GET("/signup/", authHandler.SignupPage)
		accounts.POST("/signup/", authHandler.Signup)
		accounts.GET("/login/", authHandler.LoginPage)
		accounts.POST("/login/", authHandler.Login)
		accounts.POST("/logout/", authHandler.Logout)
	}

	// Signed-in users
	authed := router.Group("", middleware.RequireLogin())
	{
		authed.GET("/events/create/", eventHandler.CreatePage)
		authed.POST("/events/create/", eventHandler.Create)
		authed.GET("/events/edit/:id/", eventHandler.EditPage)
		authed.POST("/events/edit/:id/", eventHandler.Edit)
		authed.POST("/events/upvote/:id/", eventHandler.Upvote)
		authed.POST("/events/create-comment/:id/", commentHandler.Create)
		authed.POST("/events/status/:id/", middleware.RequireStaff(), eventHandler.SetStatus)

		authed.POST("/plans/volunteer/:id/", planHandler.Volunteer)
		authed.POST("/plans/propose-date/:id/", planHandler.ProposeDate)
		authed.POST("/plans/vote-date/:id/", planHandler.VoteDate)

		authed.GET("/settings/:username/", profileHandler.SettingsPage)
		authed.POST("/settings/:username/", profileHandler.Settings)
		authed.POST("/settings/:username/avatar/", profileHandler.UploadAvatar)

		authed.GET("/notifications/", notificationHandler.List)
		authed.GET("/notifications/count/", notificationHandler.Count)
		authed.POST("/notifications/read/:kind/:id/", notificationHandler.MarkRead)
		authed.POST("/friends/request/:username/", notificationHandler.FriendRequest)
	}

	// WebSocket (anonymous viewers allowed; session cookie identifies signed-in ones)
	router.GET("/ws", realtime.ServeWs(hub, logger))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// In-process notification worker; cmd/worker runs the same loop standalone.
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	if jobQueue != nil && cfg.Server.EmbeddedWorker {
		processor := worker.NewNotificationProcessor(eventRepo, notificationRepo, jobQueue, logger)
		go processor.Run(workerCtx)
		logger.Info("notification worker started")
	}

	go hub.Listen(workerCtx)

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

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
