package db

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// User 定义了可登录后台的账号，邮箱统一以小写存储。
type User struct {
	gorm.Model
	Email    string `gorm:"unique;not null"`
	Password string `gorm:"not null" json:"-"`
}

// NormalizeEmail 返回邮箱存储与比较时使用的规范形式。
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SetPassword 以 bcrypt 哈希替换当前密码。
func (u *User) SetPassword(password string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hashed)
	return nil
}

// CheckPassword 校验密码是否与存储的哈希匹配。
func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) == nil
}

// FindUserByEmail 按邮箱查找账号，不存在时返回 gorm.ErrRecordNotFound。
func FindUserByEmail(ctx context.Context, gdb *gorm.DB, email string) (*User, error) {
	var user User
	if err := gdb.WithContext(ctx).Where("email = ?", NormalizeEmail(email)).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// EnsureUser 存在性检查：邮箱与密码均非空且账号不存在时创建管理员账号，已有账号保留原密码。
func EnsureUser(gdb *gorm.DB, email, password string) error {
	email = NormalizeEmail(email)
	password = strings.TrimSpace(password)
	if email == "" || password == "" {
		return nil
	}
	if gdb == nil {
		return errors.New("database not initialized")
	}

	_, err := FindUserByEmail(context.Background(), gdb, email)
	switch {
	case err == nil:
		return nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return err
	}

	user := User{Email: email}
	if err := user.SetPassword(password); err != nil {
		return err
	}
	return gdb.Create(&user).Error
}
