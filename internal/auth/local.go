package auth

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/dirgate/dirgate/internal/db/models"
)

// LocalProvider authenticates against local database accounts with Argon2id
// password hashes. It implements Provider and can be registered on a
// ManagerBuilder alongside the directory provider.
type LocalProvider struct {
	db      *gorm.DB
	service *Service
}

// NewLocalProvider creates a new local authentication provider.
func NewLocalProvider(db *gorm.DB) *LocalProvider {
	return &LocalProvider{
		db:      db,
		service: NewService(db),
	}
}

// Authenticate verifies username/password against the local user table.
func (p *LocalProvider) Authenticate(_ context.Context, username, password string) (*Principal, error) {
	var user models.User

	err := p.db.Where("username = ? AND auth_source = ?", username, models.AuthSourceLocal).
		First(&user).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	if !user.Active {
		return nil, ErrUserAccountDisabled
	}

	if !user.VerifyPassword(password) {
		return nil, ErrCredentialMismatch
	}

	authorities, err := p.service.GetUserAuthorities(user.ID)
	if err != nil {
		return nil, err
	}

	return &Principal{
		Username:    user.Username,
		Authorities: authorities,
		Attributes: map[string][]string{
			"mail": {user.Email},
			"cn":   {user.DisplayName},
		},
	}, nil
}

// CreateUser creates a new local user account.
func (p *LocalProvider) CreateUser(username, email, password, displayName string) (*models.User, error) {
	var existing models.User

	err := p.db.Where("username = ?", username).First(&existing).Error
	if err == nil {
		return nil, fmt.Errorf("user %s already exists", username)
	}

	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}

	user := models.User{
		Active:      true,
		Username:    username,
		Email:       email,
		Password:    models.HashPassword(password),
		DisplayName: displayName,
		AuthSource:  models.AuthSourceLocal,
	}

	if err := p.db.Create(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return &user, nil
}
