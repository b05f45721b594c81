package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/photofolio/internal/config"
	"github.com/photofolio/internal/db"
	"github.com/photofolio/internal/feed"
	"github.com/photofolio/internal/handler"
	"github.com/photofolio/internal/logging"
	"github.com/photofolio/internal/router"
	"github.com/photofolio/internal/service"
	"github.com/photofolio/internal/storage"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("failed to load .env: %v", err)
	}

	cfg := config.Load()
	gin.SetMode(cfg.GinMode)

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	if err := cfg.CheckSessionSecret(); err != nil {
		logger.Fatal("refusing to start", zap.Error(err))
	}
	if cfg.UsesDevSessionSecret() {
		logger.Warn("SESSION_SECRET is not set; admin sessions are signed with the public development secret")
	}

	// 初始化数据库
	if err := db.Init(cfg.DatabaseURL, cfg.DatabasePath); err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	if err := db.EnsureUser(db.DB, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		logger.Fatal("failed to ensure admin user", zap.Error(err))
	}
	if cfg.AdminEmail == "" {
		logger.Warn("ADMIN_EMAIL is not set; the admin area will refuse every login")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bucket, uploadDir, err := openBucket(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open storage", zap.Error(err))
	}

	photos := service.NewPhotoService(db.DB, bucket, service.PhotoServiceOptions{
		Naming:         cfg.StorageNaming,
		AuthorName:     cfg.AuthorName,
		RequireAltText: cfg.RequireAltText,
		MaxUploadBytes: cfg.MaxUploadBytes,
		CacheSize:      cfg.CacheSize,
		CacheTTL:       cfg.CacheTTL,
		Location:       cfg.Location,
		Logger:         logger,
	})

	hub := feed.NewHub(photos, logger)
	defer hub.Close()
	photos.SetNotifier(hub)

	authorSlug := storage.Slugify(cfg.AuthorName)
	api := handler.NewAPI(handler.Deps{
		DB:       db.DB,
		Photos:   photos,
		Settings: service.NewSiteSettingService(db.DB, bucket, service.SiteSettings{ProfilePhotoURL: cfg.DefaultProfile, HeroBackdropURL: cfg.DefaultHero}, logger),
		Auth:     service.NewAuthService(db.DB, cfg.AdminEmail),
		Sitemap:  service.NewSitemapService(photos, cfg.SiteBaseURL, authorSlug, cfg.SitemapLimit),
		Hub:      hub,
		Site: handler.SiteInfo{
			AuthorName: cfg.AuthorName,
			AuthorSlug: authorSlug,
			SiteName:   cfg.SiteName,
			BaseURL:    cfg.SiteBaseURL,
		},
		Logger: logger,
	})
	defer api.Close()

	// 设置并运行 Gin 服务器
	r := router.SetupRouter(api, router.Options{
		SessionSecret:      cfg.SessionSecret,
		UploadDir:          uploadDir,
		UploadURLPath:      cfg.UploadURLPath,
		MaxMultipartMemory: cfg.MaxUploadBytes,
		AuthorSlug:         authorSlug,
		Logger:             logger,
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", cfg.ListenAddr), zap.String("storage", cfg.StorageDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("failed to run server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// openBucket 返回配置的对象存储；本地存储时同时返回需要对外提供的目录。
func openBucket(ctx context.Context, cfg config.AppConfig, logger *zap.Logger) (storage.Bucket, string, error) {
	if cfg.StorageDriver == config.StorageDriverS3 {
		bucket, err := storage.NewS3Bucket(ctx, storage.S3Options{
			Endpoint:        cfg.S3.Endpoint,
			Region:          cfg.S3.Region,
			Bucket:          cfg.S3.Bucket,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			PublicURL:       cfg.S3.PublicURL,
		}, logger)
		if err != nil {
			return nil, "", err
		}
		return bucket, "", nil
	}

	bucket, err := storage.NewLocalBucket(cfg.UploadDir, cfg.UploadURLPath)
	if err != nil {
		return nil, "", err
	}
	return bucket, bucket.Root(), nil
}
