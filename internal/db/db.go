package db

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB 是一个全局的数据库连接实例
var DB *gorm.DB

// Init 初始化数据库连接并执行自动迁移。
// databaseURL 为 postgres DSN 时优先使用 postgres，否则使用 databasePath 指向的 sqlite（默认 photofolio.db）。
func Init(databaseURL, databasePath string) error {
	dialector, err := dialectorFor(databaseURL, databasePath)
	if err != nil {
		return err
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return err
	}

	if err := Migrate(gdb); err != nil {
		return err
	}

	DB = gdb
	return nil
}

// Migrate 为所有模型创建或更新数据表。
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&User{},
		&Photo{},
		&SiteSetting{},
	)
}

func dialectorFor(databaseURL, databasePath string) (gorm.Dialector, error) {
	dsn := strings.TrimSpace(databaseURL)
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return postgres.Open(dsn), nil
	}

	path := strings.TrimSpace(databasePath)
	if path == "" {
		path = "photofolio.db"
	}
	if err := ensureParentDir(path); err != nil {
		return nil, err
	}
	return sqlite.Open(path), nil
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}

	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return errors.New("database path parent is not a directory")
		}
		return nil
	}

	if os.IsNotExist(err) {
		return os.MkdirAll(dir, 0o755)
	}

	return err
}
