package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/photofolio/internal/config"
	"github.com/photofolio/internal/db"
)

// 初始化管理员账号，邮箱与密码默认取自 ADMIN_EMAIL 与 ADMIN_PASSWORD。
func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("failed to load .env: %v", err)
	}
	cfg := config.Load()

	email := flag.String("email", cfg.AdminEmail, "admin email")
	password := flag.String("password", cfg.AdminPassword, "admin password")
	flag.Parse()

	addr := strings.ToLower(strings.TrimSpace(*email))
	if addr == "" || *password == "" {
		log.Fatal("email and password are required (flags or ADMIN_EMAIL / ADMIN_PASSWORD)")
	}

	if err := db.Init(cfg.DatabaseURL, cfg.DatabasePath); err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}

	var count int64
	db.DB.Model(&db.User{}).Where("email = ?", addr).Count(&count)
	if count > 0 {
		fmt.Printf("user %s already exists\n", addr)
		return
	}

	if err := db.EnsureUser(db.DB, addr, *password); err != nil {
		log.Fatalf("failed to create user: %v", err)
	}
	fmt.Printf("admin user %s created\n", addr)
	if cfg.AdminEmail != "" && cfg.AdminEmail != addr {
		fmt.Printf("note: ADMIN_EMAIL is %s, so this account will not pass the admin check\n", cfg.AdminEmail)
	}
}
