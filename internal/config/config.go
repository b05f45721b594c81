package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// S3Config 描述 STORAGE_DRIVER=s3 时使用的 S3 兼容存储桶配置。
type S3Config struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	PublicURL       string
}

// AppConfig 汇总运行服务所需的全部配置。
type AppConfig struct {
	ListenAddr     string
	Port           string
	DatabaseURL    string
	DatabasePath   string
	SessionSecret  string
	GinMode        string
	LogLevel       string
	LogFormat      string
	StorageDriver  string
	StorageNaming  string
	UploadDir      string
	UploadURLPath  string
	S3             S3Config
	AdminEmail     string
	AdminPassword  string
	AuthorName     string
	SiteName       string
	SiteBaseURL    string
	DefaultProfile string
	DefaultHero    string
	SitemapLimit   int
	CacheSize      int
	CacheTTL       time.Duration
	MaxUploadBytes int64
	RequireAltText bool
	Location       *time.Location
}

const (
	StorageDriverLocal = "local"
	StorageDriverS3    = "s3"

	NamingSlug      = "slug"
	NamingTimestamp = "timestamp"
)

// DevSessionSecret 是未设置 SESSION_SECRET 时使用的会话密钥，公开可见，release 模式下拒绝使用。
const DevSessionSecret = "photofolio-dev-secret"

// ErrDevSessionSecret 表示 release 模式仍在使用默认会话密钥。
var ErrDevSessionSecret = errors.New("SESSION_SECRET must be set in release mode")

// Load 从环境变量读取应用配置，并为缺失项提供默认值。
func Load() AppConfig {
	port := envString("PORT", "8080")

	listenAddr := envString("LISTEN_ADDR", "")
	if listenAddr == "" {
		listenAddr = fmt.Sprintf(":%s", port)
	}

	storageDriver := strings.ToLower(envString("STORAGE_DRIVER", StorageDriverLocal))
	if storageDriver != StorageDriverS3 {
		storageDriver = StorageDriverLocal
	}

	naming := strings.ToLower(envString("STORAGE_NAMING", NamingSlug))
	if naming != NamingTimestamp {
		naming = NamingSlug
	}

	logFormat := strings.ToLower(envString("LOG_FORMAT", "json"))
	if logFormat != "console" {
		logFormat = "json"
	}

	return AppConfig{
		ListenAddr:    listenAddr,
		Port:          port,
		DatabaseURL:   envString("DATABASE_URL", ""),
		DatabasePath:  envString("DATABASE_PATH", "photofolio.db"),
		SessionSecret: envString("SESSION_SECRET", DevSessionSecret),
		GinMode:       envString("GIN_MODE", "release"),
		LogLevel:      strings.ToLower(envString("LOG_LEVEL", "info")),
		LogFormat:     logFormat,
		StorageDriver: storageDriver,
		StorageNaming: naming,
		UploadDir:     envString("UPLOAD_DIR", "data/uploads"),
		UploadURLPath: envString("UPLOAD_URL_PATH", "/uploads"),
		S3: S3Config{
			Endpoint:        envString("S3_ENDPOINT", ""),
			Region:          envString("S3_REGION", "auto"),
			Bucket:          envString("S3_BUCKET", ""),
			AccessKeyID:     envString("S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: envString("S3_SECRET_ACCESS_KEY", ""),
			PublicURL:       envString("S3_PUBLIC_URL", ""),
		},
		AdminEmail:     strings.ToLower(envString("ADMIN_EMAIL", "")),
		AdminPassword:  envString("ADMIN_PASSWORD", ""),
		AuthorName:     envString("AUTHOR_NAME", "Amrit Kumar Chanchal"),
		SiteName:       envString("SITE_NAME", "Amrit's Album"),
		SiteBaseURL:    strings.TrimRight(envString("SITE_BASE_URL", "https://pics.amritkumarchanchal.me"), "/"),
		DefaultProfile: envString("DEFAULT_PROFILE_PHOTO_URL", "https://placehold.co/400x400.png"),
		DefaultHero:    envString("DEFAULT_HERO_BACKDROP_URL", "https://placehold.co/1920x1080.png"),
		SitemapLimit:   envInt("SITEMAP_LIMIT", 20),
		CacheSize:      envInt("DETAIL_CACHE_SIZE", 256),
		CacheTTL:       envDuration("DETAIL_CACHE_TTL", 5*time.Minute),
		MaxUploadBytes: int64(envInt("MAX_UPLOAD_BYTES", 20<<20)),
		RequireAltText: envBool("REQUIRE_ALT_TEXT", true),
		Location:       envLocation("POSTING_TIMEZONE"),
	}
}

// UsesDevSessionSecret 判断会话 Cookie 是否仍由内置密钥签名。
func (c AppConfig) UsesDevSessionSecret() bool {
	return c.SessionSecret == DevSessionSecret
}

// CheckSessionSecret 在 release 模式使用默认密钥时返回错误，避免后台会话被伪造。
func (c AppConfig) CheckSessionSecret() error {
	if c.UsesDevSessionSecret() && c.GinMode == "release" {
		return ErrDevSessionSecret
	}
	return nil
}

func envString(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func envDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func envBool(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return value
}

// envLocation 解析 IANA 时区名，为空或无法识别时回退到 UTC。
func envLocation(key string) *time.Location {
	name := strings.TrimSpace(os.Getenv(key))
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}
