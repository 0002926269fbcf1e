// Package users stores API users and their tokens.
package users

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	glogger "gorm.io/gorm/logger"
)

// Outcomes of user store operations.
var (
	ErrUserExists         = errors.New("user with this username already exists")
	ErrEmailExists        = errors.New("user with this email already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrSamePassword       = errors.New("new password must be different than old password")
	ErrTokenExists        = errors.New("user already has a token")
	ErrTokenNotFound      = errors.New("token not found")
)

const tokenLength = 32

// Store is a gorm-backed user store.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

// gormWriter routes gorm's logger into slog.
type gormWriter struct {
	logger *slog.Logger
}

func (w gormWriter) Printf(format string, args ...any) {
	w.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "gorm")
}

// DSN turns a DATABASE_URL style value into a sqlite path.
// Both "sqlite:///froidapi.db" and a bare path are accepted.
func DSN(databaseURL string) string {
	return strings.TrimPrefix(databaseURL, "sqlite:///")
}

// Open opens (creating if needed) the sqlite database at path and migrates it.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: glogger.New(gormWriter{logger: logger}, glogger.Config{
			SlowThreshold:             time.Second * 5,
			LogLevel:                  glogger.Error,
			IgnoreRecordNotFoundError: true,
			ParameterizedQueries:      true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if err := db.AutoMigrate(&User{}, &Token{}); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	logger.Info("User database initialized", "path", path)
	return &Store{db: db, logger: logger}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func verifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// GenerateToken returns a new random 32 character hex token.
func GenerateToken() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	sum := sha256.Sum256([]byte(base64.RawURLEncoding.EncodeToString(raw)))
	return hex.EncodeToString(sum[:])[:tokenLength], nil
}

// ByUsername looks a user up by username.
func (s *Store) ByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	err := s.db.WithContext(ctx).
		Preload("Token").
		Where("username = ?", username).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &user, nil
}

// Register validates and creates a new user.
func (s *Store) Register(ctx context.Context, username, email, password string) (*User, error) {
	if err := ValidateRegistration(username, email, password); err != nil {
		return nil, err
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if count > 0 {
		return nil, ErrUserExists
	}
	if err := s.db.WithContext(ctx).Model(&User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if count > 0 {
		return nil, ErrEmailExists
	}

	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}
	user := &User{Username: username, Email: email, HashedPassword: hash}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("User registered", "user_id", user.ID, "username", username)
	return user, nil
}

// Authenticate returns the user when password matches.
func (s *Store) Authenticate(ctx context.Context, username, password string) (*User, error) {
	user, err := s.ByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if !verifyPassword(password, user.HashedPassword) {
		s.logger.Warn("Authentication failed", "username", username)
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// Delete removes a user along with its token.
func (s *Store) Delete(ctx context.Context, user *User) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", user.ID).Delete(&Token{}).Error; err != nil {
			return err
		}
		return tx.Delete(&User{}, user.ID).Error
	})
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	s.logger.Info("User deleted", "user_id", user.ID, "username", user.Username)
	return nil
}

// ChangePassword replaces the user's password.
func (s *Store) ChangePassword(ctx context.Context, user *User, newPassword string) (*User, error) {
	if err := ValidatePassword(newPassword); err != nil {
		return nil, err
	}
	if verifyPassword(newPassword, user.HashedPassword) {
		return nil, ErrSamePassword
	}

	hash, err := hashPassword(newPassword)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(user).Update("hashed_password", hash).Error; err != nil {
		return nil, fmt.Errorf("update password: %w", err)
	}
	user.HashedPassword = hash

	s.logger.Info("Password changed", "user_id", user.ID)
	return user, nil
}

// Token returns the user's token.
func (s *Store) Token(ctx context.Context, user *User) (*Token, error) {
	var token Token
	err := s.db.WithContext(ctx).Where("user_id = ?", user.ID).First(&token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find token: %w", err)
	}
	return &token, nil
}

// CreateToken issues a token for a user that has none.
func (s *Store) CreateToken(ctx context.Context, user *User) (*Token, error) {
	if _, err := s.Token(ctx, user); err == nil {
		return nil, ErrTokenExists
	} else if !errors.Is(err, ErrTokenNotFound) {
		return nil, err
	}

	value, err := GenerateToken()
	if err != nil {
		return nil, err
	}
	token := &Token{Token: value, UserID: user.ID}
	if err := s.db.WithContext(ctx).Create(token).Error; err != nil {
		return nil, fmt.Errorf("create token: %w", err)
	}
	user.Token = token

	s.logger.Info("Token created", "user_id", user.ID)
	return token, nil
}

// RevokeToken deletes the user's token.
func (s *Store) RevokeToken(ctx context.Context, user *User) error {
	res := s.db.WithContext(ctx).Where("user_id = ?", user.ID).Delete(&Token{})
	if res.Error != nil {
		return fmt.Errorf("revoke token: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrTokenNotFound
	}
	user.Token = nil

	s.logger.Info("Token revoked", "user_id", user.ID)
	return nil
}

// VerifyToken returns the stored token matching value.
func (s *Store) VerifyToken(ctx context.Context, value string) (*Token, error) {
	if len(value) != tokenLength {
		return nil, ErrTokenNotFound
	}
	var token Token
	err := s.db.WithContext(ctx).Where("token = ?", value).First(&token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("verify token: %w", err)
	}
	return &token, nil
}
