package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/campusperks/backend/config"
	"github.com/campusperks/backend/internal/admin"
	"github.com/campusperks/backend/internal/auth"
	"github.com/campusperks/backend/internal/brands"
	"github.com/campusperks/backend/internal/emaillogs"
	"github.com/campusperks/backend/internal/middleware"
	"github.com/campusperks/backend/internal/models"
	"github.com/campusperks/backend/internal/offers"
	"github.com/campusperks/backend/internal/otp"
	"github.com/campusperks/backend/internal/users"
	"github.com/campusperks/backend/pkg/database"
	"github.com/campusperks/backend/pkg/queue"
	"github.com/campusperks/backend/pkg/redis"
	"github.com/campusperks/backend/pkg/response"
	"github.com/campusperks/backend/pkg/storage"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("run migrations", zap.Error(err))
	}

	redisClient, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("connect redis", zap.Error(err))
	}
	defer redisClient.Close()

	var media *storage.S3
	if cfg.AWS.Region != "" {
		media, err = storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			MediaBucket:          cfg.AWS.MediaBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Fatal("init s3", zap.Error(err))
		}
	} else {
		logger.Warn("AWS_REGION not set, media uploads disabled")
	}

	jobQueue := queue.NewQueue(redisClient.Client, logger)
	tokens := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.SessionExpireHours, cfg.JWT.ResetExpireMinutes)
	otpSvc := otp.NewService(otp.NewRepository(pool), cfg.OTP.ExpireMinutes, cfg.OTP.ResendCooldownSeconds, logger)

	userRepo := users.NewRepository(pool)
	userSvc := users.NewService(userRepo, otpSvc, tokens, jobQueue, logger)
	brandRepo := brands.NewRepository(pool)
	brandSvc := brands.NewService(brandRepo, otpSvc, tokens, jobQueue, logger)
	offerSvc := offers.NewService(offers.NewRepository(pool), brandRepo, jobQueue, logger)
	emailLogs := emaillogs.NewRepository(pool)

	if err := userSvc.EnsureAdmin(ctx, cfg.Admin.Email, cfg.Admin.Password, cfg.Admin.FullName); err != nil {
		logger.Fatal("seed admin account", zap.Error(err))
	}

	userHandler := users.NewHandler(userSvc, logger)
	brandHandler := brands.NewHandler(brandSvc, media, logger)
	offerHandler := offers.NewHandler(offerSvc, media, logger)
	adminHandler := admin.NewHandler(brandSvc, offerSvc, emailLogs, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		response.OK(c, gin.H{"status": "ok"})
	})

	authRoutes := router.Group("/auth")
	{
		authRoutes.POST("/register", userHandler.Register)
		authRoutes.POST("/verify-otp", userHandler.VerifyOTP)
		authRoutes.POST("/resend-otp", userHandler.ResendOTP)
		authRoutes.POST("/login", userHandler.Login)
		authRoutes.POST("/forgot-password", userHandler.ForgotPassword)
		authRoutes.POST("/verify-reset-otp", userHandler.VerifyResetOTP)
		authRoutes.POST("/reset-password", userHandler.ResetPassword)
	}

	brandRoutes := router.Group("/brands")
	{
		brandRoutes.POST("/register", brandHandler.Register)
		brandRoutes.POST("/verify-otp", brandHandler.VerifyOTP)
		brandRoutes.POST("/resend-otp", brandHandler.ResendOTP)
		brandRoutes.POST("/login", brandHandler.Login)

		me := brandRoutes.Group("/me", middleware.JWT(tokens), middleware.RequireRole(string(models.RoleBrand)))
		{
			me.GET("", brandHandler.Me)
			me.PATCH("", brandHandler.UpdateProfile)
			me.POST("/logo", brandHandler.UploadLogo)
			me.GET("/offers", offerHandler.ListMine)
		}
	}

	offerRoutes := router.Group("/offers")
	{
		offerRoutes.GET("", offerHandler.List)
		offerRoutes.GET("/:id", offerHandler.Get)
		offerRoutes.POST("/:id/redeem",
			middleware.JWT(tokens), middleware.RequireRole(string(models.RoleStudent), string(models.RoleAdmin)),
			offerHandler.Redeem)

		brandOnly := offerRoutes.Group("", middleware.JWT(tokens), middleware.RequireRole(string(models.RoleBrand)))
		{
			brandOnly.POST("", offerHandler.Create)
			brandOnly.PATCH("/:id", offerHandler.Update)
			brandOnly.PATCH("/:id/status", offerHandler.SetStatus)
			brandOnly.POST("/:id/image", offerHandler.UploadImage)
		}
	}

	adminRoutes := router.Group("/admin", middleware.JWT(tokens), middleware.RequireRole(string(models.RoleAdmin)))
	{
		adminRoutes.GET("/brands", adminHandler.ListBrands)
		adminRoutes.GET("/brands/:id", adminHandler.GetBrand)
		adminRoutes.POST("/brands/:id/approve", adminHandler.ApproveBrand)
		adminRoutes.POST("/brands/:id/reject", adminHandler.RejectBrand)
		adminRoutes.GET("/offers", adminHandler.ListPendingOffers)
		adminRoutes.POST("/offers/:id/approve", adminHandler.ApproveOffer)
		adminRoutes.POST("/offers/:id/reject", adminHandler.RejectOffer)
		adminRoutes.GET("/emails", adminHandler.ListEmails)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("server stopped")
}
