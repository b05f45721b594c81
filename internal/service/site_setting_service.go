package service

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/photofolio/internal/db"
	"github.com/photofolio/internal/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SiteAsset 表示首页上可替换的一张图片。
type SiteAsset string

const (
	AssetProfilePhoto SiteAsset = "profile-photo"
	AssetHeroBackdrop SiteAsset = "hero-backdrop"
)

var siteAssets = map[SiteAsset]struct {
	settingKey string
	objectName string
}{
	AssetProfilePhoto: {db.SettingKeyProfilePhotoURL, "profile_photo"},
	AssetHeroBackdrop: {db.SettingKeyHeroBackdropURL, "hero_backdrop"},
}

// ParseSiteAsset 校验 URL 中的图片名称。
func ParseSiteAsset(raw string) (SiteAsset, error) {
	asset := SiteAsset(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := siteAssets[asset]; !ok {
		return "", ErrInvalidAsset
	}
	return asset, nil
}

// SiteSettings 描述首页实际使用的图片链接。
type SiteSettings struct {
	ProfilePhotoURL string `json:"profilePhotoUrl"`
	HeroBackdropURL string `json:"heroBackdropUrl"`
}

// SiteSettingService 负责读写站点设置。
type SiteSettingService struct {
	db       *gorm.DB
	bucket   storage.Bucket
	defaults SiteSettings
	logger   *zap.Logger
}

// NewSiteSettingService 构造 SiteSettingService，未覆盖的设置项使用 defaults。
func NewSiteSettingService(gdb *gorm.DB, bucket storage.Bucket, defaults SiteSettings, logger *zap.Logger) *SiteSettingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SiteSettingService{db: gdb, bucket: bucket, defaults: defaults, logger: logger.Named("settings")}
}

// Get 返回合并默认值后的站点设置。
func (s *SiteSettingService) Get(ctx context.Context) (SiteSettings, error) {
	result := s.defaults

	var records []db.SiteSetting
	keys := []string{db.SettingKeyProfilePhotoURL, db.SettingKeyHeroBackdropURL}
	if err := s.db.WithContext(ctx).Where("key IN ?", keys).Find(&records).Error; err != nil {
		return result, fmt.Errorf("load site settings: %w", err)
	}

	for _, record := range records {
		value := strings.TrimSpace(record.Value)
		if value == "" {
			continue
		}
		switch record.Key {
		case db.SettingKeyProfilePhotoURL:
			result.ProfilePhotoURL = value
		case db.SettingKeyHeroBackdropURL:
			result.HeroBackdropURL = value
		}
	}
	return result, nil
}

// UpdateAsset 以新的对象键上传图片并保存其链接，随后尽力删除被替换的旧图片。
func (s *SiteSettingService) UpdateAsset(ctx context.Context, asset SiteAsset, file UploadFile) (SiteSettings, error) {
	target, ok := siteAssets[asset]
	if !ok {
		return SiteSettings{}, ErrInvalidAsset
	}
	contentType := normalizeContentType(file.ContentType)
	if !supportedImageTypes[contentType] {
		return SiteSettings{}, &ValidationError{Field: "file", Message: fieldMessages["ContentType"]["supported_image"]}
	}

	content, err := readUpload(file)
	if err != nil {
		return SiteSettings{}, &TransferError{Kind: storage.Classify(err), Err: err}
	}
	previous := s.override(ctx, target.settingKey)

	key := storage.AssetKey(target.objectName)
	url, err := s.bucket.Put(ctx, key, bytes.NewReader(content), int64(len(content)), contentType, nil)
	if err != nil {
		return SiteSettings{}, &TransferError{Kind: storage.Classify(err), Err: err}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return upsertSetting(tx, target.settingKey, url)
	})
	if err != nil {
		return SiteSettings{}, &WriteError{Op: "update", Orphan: key, Err: err}
	}

	s.logger.Info("site asset updated", zap.String("asset", string(asset)), zap.String("key", key))
	s.removeReplaced(ctx, previous)
	return s.Get(ctx)
}

func (s *SiteSettingService) override(ctx context.Context, settingKey string) string {
	var record db.SiteSetting
	if err := s.db.WithContext(ctx).Where("key = ?", settingKey).Limit(1).Find(&record).Error; err != nil {
		return ""
	}
	return strings.TrimSpace(record.Value)
}

func (s *SiteSettingService) removeReplaced(ctx context.Context, previousURL string) {
	if previousURL == "" || !s.bucket.Owns(previousURL) {
		return
	}
	key, ok := s.bucket.KeyFromURL(previousURL)
	if !ok || !strings.HasPrefix(key, storage.AssetPrefix) {
		return
	}
	if err := s.bucket.Delete(ctx, key); err != nil {
		s.logger.Warn("replaced site asset not removed", zap.String("key", key), zap.Error(err))
	}
}

// ResetAsset 删除覆盖设置以恢复默认图片，并移除已上传的图片。
func (s *SiteSettingService) ResetAsset(ctx context.Context, asset SiteAsset) (SiteSettings, error) {
	target, ok := siteAssets[asset]
	if !ok {
		return SiteSettings{}, ErrInvalidAsset
	}
	previous := s.override(ctx, target.settingKey)
	if err := s.db.WithContext(ctx).Unscoped().Where("key = ?", target.settingKey).Delete(&db.SiteSetting{}).Error; err != nil {
		return SiteSettings{}, fmt.Errorf("reset site asset: %w", err)
	}
	s.removeReplaced(ctx, previous)
	return s.Get(ctx)
}

func upsertSetting(tx *gorm.DB, key, value string) error {
	setting := db.SiteSetting{Key: key, Value: value}
	if err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"value":      value,
			"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
		}),
	}).Create(&setting).Error; err != nil {
		return fmt.Errorf("upsert setting %s: %w", key, err)
	}
	return nil
}
