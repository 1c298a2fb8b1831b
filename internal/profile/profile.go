// Package profile looks up the admin profile row that decides whether a
// principal may see the dashboard.
package profile

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/campusnotes/notes-admin/internal/models"
)

// ErrNotFound is returned when no users row matches the principal id
var ErrNotFound = errors.New("admin profile not found")

// Store answers "select role from users where id = ? limit 1"
type Store interface {
	Role(ctx context.Context, id string) (string, error)
}

// GormStore runs the lookup through gorm against the application database
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Role(ctx context.Context, id string) (string, error) {
	var row struct{ Role string }
	err := s.db.WithContext(ctx).
		Model(&models.User{}).
		Select("role").
		Where("id = ?", id).
		Limit(1).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to query role: %w", err)
	}
	return row.Role, nil
}
