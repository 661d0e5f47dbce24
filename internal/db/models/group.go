package models

import "time"

// GroupSource represents the origin of a group record.
type GroupSource string

const (
	// GroupSourceLocal indicates a locally managed group.
	GroupSourceLocal GroupSource = "local"
	// GroupSourceLDAP indicates a group synchronized from the directory.
	GroupSourceLDAP GroupSource = "ldap"
	// GroupSourceOIDC indicates a group synchronized from an OIDC groups claim.
	GroupSourceOIDC GroupSource = "oidc"
)

// Group represents a granted-authority group. Directory and federated groups
// are synchronized on every login; the Name carries the mapped authority
// (e.g. "ROLE_developers").
type Group struct {
	// ID is the unique identifier for the group.
	ID uint `gorm:"primaryKey"`
	// Name is the authority name as granted to principals.
	Name string `gorm:"size:100;not null"`
	// ExternalID is the identifier at the identity source. Combined with
	// Source it forms a unique constraint.
	ExternalID string `gorm:"size:255;uniqueIndex:idx_source_external"`
	// Source indicates where the group originates from.
	Source GroupSource `gorm:"type:varchar(20);not null;uniqueIndex:idx_source_external"`
	// CreatedAt is managed by GORM.
	CreatedAt time.Time
	// UpdatedAt is managed by GORM.
	UpdatedAt time.Time
}

// TableName overrides GORM's default pluralized table naming.
func (Group) TableName() string {
	return "groups"
}
