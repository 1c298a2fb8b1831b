// Package catalog manages the academic content and accounts administered
// through the dashboard: departments, semesters, subjects, notes and users.
package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

var (
	ErrNotFound         = errors.New("record not found")
	ErrConflict         = errors.New("record conflicts with an existing one")
	ErrInvalidReference = errors.New("referenced record does not exist")
	ErrSelfDelete       = errors.New("cannot delete your own account")
)

// Service is the gorm-backed catalog
type Service struct {
	db        *gorm.DB
	validator *validator.Validate
}

func New(db *gorm.DB) *Service {
	return &Service{db: db, validator: newValidator()}
}

// translate maps driver errors onto the catalog's sentinel errors
func translate(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey), strings.Contains(msg, "UNIQUE constraint failed"):
		return ErrConflict
	case errors.Is(err, gorm.ErrForeignKeyViolated), strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return ErrInvalidReference
	default:
		return err
	}
}

func list[T any](ctx context.Context, db *gorm.DB, order string, preloads ...string) ([]T, error) {
	query := db.WithContext(ctx)
	for _, p := range preloads {
		query = query.Preload(p)
	}
	var out []T
	if err := query.Order(order).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func get[T any](ctx context.Context, db *gorm.DB, id string, preloads ...string) (*T, error) {
	var out T
	query := db.WithContext(ctx)
	for _, p := range preloads {
		query = query.Preload(p)
	}
	if err := query.Where("id = ?", id).First(&out).Error; err != nil {
		return nil, translate(err)
	}
	return &out, nil
}

func remove[T any](ctx context.Context, db *gorm.DB, id string) error {
	var model T
	result := db.WithContext(ctx).Where("id = ?", id).Delete(&model)
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func count[T any](ctx context.Context, db *gorm.DB, query string, args ...any) (int64, error) {
	var model T
	var n int64
	q := db.WithContext(ctx).Model(&model)
	if query != "" {
		q = q.Where(query, args...)
	}
	err := q.Count(&n).Error
	return n, err
}
