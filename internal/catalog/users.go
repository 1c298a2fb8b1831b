package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/campusnotes/notes-admin/internal/backend"
	"github.com/campusnotes/notes-admin/internal/models"
)

type UserCreateInput struct {
	Email    string `json:"email" form:"email" validate:"required,email,max=254"`
	Name     string `json:"name" form:"name" validate:"max=120"`
	Password string `json:"password" form:"password" validate:"required,min=8,max=72"`
	Role     string `json:"role" form:"role" validate:"required,oneof=admin user"`
}

// UserUpdateInput changes profile fields. An empty password keeps the current one.
type UserUpdateInput struct {
	Name     string `json:"name" form:"name" validate:"max=120"`
	Password string `json:"password" form:"password" validate:"omitempty,min=8,max=72"`
	Role     string `json:"role" form:"role" validate:"required,oneof=admin user"`
}

func (s *Service) Users(ctx context.Context) ([]models.User, error) {
	return list[models.User](ctx, s.db, "email")
}

func (s *Service) User(ctx context.Context, id string) (*models.User, error) {
	return get[models.User](ctx, s.db, id)
}

func (s *Service) CreateUser(ctx context.Context, in UserCreateInput) (*models.User, error) {
	in.Email = backend.NormalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	if err := s.validate(in); err != nil {
		return nil, err
	}

	hash, err := backend.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	user := &models.User{
		Email:        in.Email,
		Name:         in.Name,
		PasswordHash: hash,
		Role:         in.Role,
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, translate(err)
	}
	return user, nil
}

func (s *Service) UpdateUser(ctx context.Context, id string, in UserUpdateInput) (*models.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := s.validate(in); err != nil {
		return nil, err
	}
	user, err := s.User(ctx, id)
	if err != nil {
		return nil, err
	}

	user.Name, user.Role = in.Name, in.Role
	if in.Password != "" {
		hash, err := backend.HashPassword(in.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		user.PasswordHash = hash
	}
	if err := s.db.WithContext(ctx).Save(user).Error; err != nil {
		return nil, translate(err)
	}
	return user, nil
}

// UpsertUser creates the account or updates the existing one with the same
// email. Used by the seed and create-admin commands. An empty name keeps
// the current one.
func (s *Service) UpsertUser(ctx context.Context, in UserCreateInput) (*models.User, bool, error) {
	var existing models.User
	err := s.db.WithContext(ctx).Where("email = ?", backend.NormalizeEmail(in.Email)).First(&existing).Error
	if err = translate(err); errors.Is(err, ErrNotFound) {
		user, err := s.CreateUser(ctx, in)
		return user, true, err
	} else if err != nil {
		return nil, false, err
	}

	name := in.Name
	if name == "" {
		name = existing.Name
	}
	user, err := s.UpdateUser(ctx, existing.ID, UserUpdateInput{Name: name, Password: in.Password, Role: in.Role})
	return user, false, err
}

// DeleteUser removes an account. actorID is the admin performing the
// deletion, who may not remove themselves.
func (s *Service) DeleteUser(ctx context.Context, id, actorID string) error {
	if id == actorID {
		return ErrSelfDelete
	}
	return remove[models.User](ctx, s.db, id)
}

func (s *Service) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", backend.NormalizeEmail(email)).First(&user).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}
