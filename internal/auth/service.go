package auth

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/dirgate/dirgate/internal/db/models"
)

// Service persists authenticated principals and their group-derived
// authorities in the local database. It is how the demo daemon keeps a
// queryable record of who logged in with which authorities.
type Service struct {
	db *gorm.DB
}

// NewService creates a new auth service.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// UpsertPrincipal creates or refreshes the user record for an authenticated
// principal and synchronizes its authority groups for the given source.
func (s *Service) UpsertPrincipal(principal *Principal, source models.AuthSource) (*models.User, error) {
	externalID := principal.DN
	if externalID == "" {
		externalID = principal.Attribute("sub")
	}

	var user models.User

	err := s.db.Where("username = ? AND auth_source = ?", principal.Username, source).
		First(&user).Error

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		user = models.User{
			Active:      true,
			Username:    principal.Username,
			Email:       principal.Attribute("mail"),
			DisplayName: principal.Attribute("cn"),
			AuthSource:  source,
			ExternalID:  externalID,
			CreatedAt:   time.Now(),
			UpdatedAt:   time.Now(),
		}

		if err = s.db.Create(&user).Error; err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to query user: %w", err)
	default:
		user.ExternalID = externalID
		user.UpdatedAt = time.Now()

		if err = s.db.Save(&user).Error; err != nil {
			return nil, fmt.Errorf("failed to update user: %w", err)
		}
	}

	groupSource := models.GroupSource(source)
	if err := s.SyncUserGroups(user.ID, principal.Authorities, groupSource); err != nil {
		return nil, err
	}

	return &user, nil
}

// GetUserAuthorities retrieves all authority names granted to a user via
// group memberships.
func (s *Service) GetUserAuthorities(userID uint64) ([]string, error) {
	var authorities []string

	err := s.db.Table("groups").
		Select("DISTINCT groups.name").
		Joins("JOIN user_groups ON user_groups.group_id = groups.id").
		Where("user_groups.user_id = ?", userID).
		Pluck("groups.name", &authorities).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get user authorities: %w", err)
	}

	return authorities, nil
}

// SyncUserGroups replaces a user's memberships for the given source with the
// supplied authority names. Called after every directory or OIDC login so
// the local records mirror the identity source.
func (s *Service) SyncUserGroups(userID uint64, authorities []string, source models.GroupSource) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var groupIDs []uint

		for _, authority := range authorities {
			var group models.Group

			err := tx.Where("external_id = ? AND source = ?", authority, source).
				FirstOrCreate(&group, models.Group{
					Name:       authority,
					ExternalID: authority,
					Source:     source,
				}).Error
			if err != nil {
				return fmt.Errorf("failed to create/get group %s: %w", authority, err)
			}

			groupIDs = append(groupIDs, group.ID)
		}

		if err := tx.Where("user_id = ?", userID).
			Where("group_id IN (SELECT id FROM groups WHERE source = ?)", source).
			Delete(&models.UserGroup{}).Error; err != nil {
			return fmt.Errorf("failed to remove old group memberships: %w", err)
		}

		for _, groupID := range groupIDs {
			if err := tx.Create(&models.UserGroup{
				UserID:  userID,
				GroupID: groupID,
			}).Error; err != nil {
				return fmt.Errorf("failed to add group membership: %w", err)
			}
		}

		return nil
	})
}
