package service

import (
	"context"
	"errors"

	"github.com/photofolio/internal/db"
	"gorm.io/gorm"
)

var ErrInvalidCredentials = errors.New("invalid email or password")

// AuthService checks admin credentials and the admin allow-list.
type AuthService struct {
	db         *gorm.DB
	adminEmail string
}

// NewAuthService creates an AuthService. Only adminEmail may use the admin API.
func NewAuthService(gdb *gorm.DB, adminEmail string) *AuthService {
	return &AuthService{db: gdb, adminEmail: db.NormalizeEmail(adminEmail)}
}

// Authenticate verifies the password of the account registered under email.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*db.User, error) {
	if db.NormalizeEmail(email) == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := db.FindUserByEmail(ctx, s.db, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.CheckPassword(password) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// IsAdmin reports whether email is the configured admin address.
func (s *AuthService) IsAdmin(email string) bool {
	return s.adminEmail != "" && db.NormalizeEmail(email) == s.adminEmail
}
