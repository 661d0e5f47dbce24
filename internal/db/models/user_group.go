package models

import "time"

// UserGroup is the many-to-many relation between users and groups. For
// external auth sources the memberships are replaced on every login to
// mirror the identity source.
type UserGroup struct {
	// UserID is the ID of the user in this membership.
	UserID uint64 `gorm:"primaryKey;column:user_id"`
	// GroupID is the ID of the group in this membership.
	GroupID uint `gorm:"primaryKey;column:group_id"`
	// User is the associated user; memberships cascade on user deletion.
	User User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	// Group is the associated group; memberships cascade on group deletion.
	Group Group `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE"`
	// CreatedAt is managed by GORM.
	CreatedAt time.Time
}

// TableName overrides GORM's default pluralized table naming.
func (UserGroup) TableName() string {
	return "user_groups"
}
