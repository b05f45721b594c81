package db

import "gorm.io/gorm"

// SiteSetting 存储后台可配置的站点级键值对。
type SiteSetting struct {
	gorm.Model
	Key   string `gorm:"size:100;uniqueIndex;not null"`
	Value string `gorm:"type:text"`
}

// TableName 自定义表名以保持命名一致。
func (SiteSetting) TableName() string {
	return "site_settings"
}

const (
	// SettingKeyProfilePhotoURL 表示首页头像的覆盖链接。
	SettingKeyProfilePhotoURL = "profile_photo_url"
	// SettingKeyHeroBackdropURL 表示首页背景大图的覆盖链接。
	SettingKeyHeroBackdropURL = "hero_backdrop_url"
)
