package router

import (
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/photofolio/internal/handler"
	"github.com/photofolio/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options 描述构建 Gin 引擎所需的参数。
type Options struct {
	SessionSecret string
	// UploadDir 在本地存储照片时以 UploadURLPath 对外提供静态访问。
	UploadDir          string
	UploadURLPath      string
	MaxMultipartMemory int64
	// AuthorSlug 是分享页路径的第一段。
	AuthorSlug string
	Logger     *zap.Logger
}

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(api *handler.API, opts Options) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger.Named("access")), metrics.Middleware())

	store := cookie.NewStore([]byte(opts.SessionSecret))
	store.Options(sessions.Options{Path: "/", MaxAge: 7 * 24 * 3600, HttpOnly: true})
	r.Use(sessions.Sessions("photofolio_session", store))

	if opts.MaxMultipartMemory > 0 {
		r.MaxMultipartMemory = opts.MaxMultipartMemory
	}
	r.SetHTMLTemplate(handler.Templates())

	if opts.UploadDir != "" {
		path := opts.UploadURLPath
		if path == "" {
			path = "/uploads"
		}
		r.Static(path, opts.UploadDir)
	}

	r.GET("/healthz", api.HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/sitemap.xml", api.Sitemap)
	r.GET("/robots.txt", api.Robots)
	r.GET("/photo/:id", api.ShowPhotoPage)
	if opts.AuthorSlug != "" {
		r.GET("/"+opts.AuthorSlug+"/photo/:id", api.ShowPhotoPage)
	}
	r.GET("/ws/photos", api.StreamPhotos)

	public := r.Group("/api")
	{
		public.GET("/photos", api.ListPhotos)
		public.GET("/photos/:id", api.GetPhoto)
		public.GET("/highlights", api.ListHighlights)
		public.GET("/categories", api.ListCategories)
		public.GET("/settings", api.GetSiteSettings)
	}

	admin := r.Group("/admin/api")
	{
		admin.POST("/login", api.Login)
		admin.POST("/logout", api.Logout)
		admin.GET("/session", api.Session)

		auth := admin.Group("")
		auth.Use(api.AdminRequired())
		{
			auth.GET("/ping", api.CountPhotos)
			auth.GET("/photos", api.AdminListPhotos)
			auth.POST("/photos", api.UploadPhotos)
			auth.PUT("/photos/:id", api.UpdatePhoto)
			auth.DELETE("/photos/:id", api.DeletePhoto)
			auth.POST("/settings/:asset", api.UpdateSiteAsset)
			auth.DELETE("/settings/:asset", api.ResetSiteAsset)
		}
	}

	return r
}

// requestLogger 每个请求记录一行日志，4xx 记为 warn，5xx 记为 error。
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		level := zapcore.InfoLevel
		switch {
		case status >= 500:
			level = zapcore.ErrorLevel
		case status >= 400:
			level = zapcore.WarnLevel
		}

		if ce := logger.Check(level, "request"); ce != nil {
			ce.Write(
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.Int("status", status),
				zap.Duration("duration", time.Since(start)),
				zap.Int("bytes", c.Writer.Size()),
				zap.String("client_ip", c.ClientIP()),
			)
		}
	}
}
