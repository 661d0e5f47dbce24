package auth

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/dirgate/dirgate/internal/db/models"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Group{}, &models.UserGroup{}))

	return NewService(db)
}

func TestUpsertPrincipalCreatesDirectoryUser(t *testing.T) {
	svc := newTestService(t)

	principal := &Principal{
		Username:    "ben",
		DN:          "uid=ben,ou=people,dc=springframework,dc=org",
		Authorities: []string{"ROLE_developers", "ROLE_managers"},
		Attributes: map[string][]string{
			"cn":   {"Ben Alex"},
			"mail": {"ben@example.com"},
		},
	}

	user, err := svc.UpsertPrincipal(principal, models.AuthSourceLDAP)
	require.NoError(t, err)

	assert.True(t, user.Active)
	assert.Equal(t, "ben", user.Username)
	assert.Equal(t, "Ben Alex", user.DisplayName)
	assert.Equal(t, "ben@example.com", user.Email)
	assert.Equal(t, models.AuthSourceLDAP, user.AuthSource)
	assert.Equal(t, principal.DN, user.ExternalID)

	authorities, err := svc.GetUserAuthorities(user.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"ROLE_developers", "ROLE_managers"}, authorities)
}

func TestUpsertPrincipalFallsBackToSubjectClaim(t *testing.T) {
	svc := newTestService(t)

	principal := &Principal{
		Username:    "jane",
		Authorities: []string{"ROLE_users"},
		Attributes: map[string][]string{
			"sub": {"f3a9c1"},
		},
	}

	user, err := svc.UpsertPrincipal(principal, models.AuthSourceOIDC)
	require.NoError(t, err)

	assert.Equal(t, "f3a9c1", user.ExternalID)
	assert.Equal(t, models.AuthSourceOIDC, user.AuthSource)
}

func TestUpsertPrincipalRefreshesExistingUser(t *testing.T) {
	svc := newTestService(t)

	principal := &Principal{
		Username:    "ben",
		DN:          "uid=ben,ou=people,dc=springframework,dc=org",
		Authorities: []string{"ROLE_developers"},
	}

	first, err := svc.UpsertPrincipal(principal, models.AuthSourceLDAP)
	require.NoError(t, err)

	// the directory entry moved and the memberships changed
	principal.DN = "uid=ben,ou=staff,dc=springframework,dc=org"
	principal.Authorities = []string{"ROLE_managers"}

	second, err := svc.UpsertPrincipal(principal, models.AuthSourceLDAP)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, principal.DN, second.ExternalID)

	var count int64
	require.NoError(t, svc.db.Model(&models.User{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	authorities, err := svc.GetUserAuthorities(second.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"ROLE_managers"}, authorities)
}

func TestSyncUserGroupsReplacesOnlyOwnSource(t *testing.T) {
	svc := newTestService(t)

	user := models.User{Active: true, Username: "ben", AuthSource: models.AuthSourceLDAP}
	require.NoError(t, svc.db.Create(&user).Error)

	require.NoError(t, svc.SyncUserGroups(user.ID, []string{"ROLE_developers"}, models.GroupSourceLDAP))
	require.NoError(t, svc.SyncUserGroups(user.ID, []string{"ROLE_federated"}, models.GroupSourceOIDC))

	// re-sync the directory memberships; the OIDC one must survive
	require.NoError(t, svc.SyncUserGroups(user.ID, []string{"ROLE_managers"}, models.GroupSourceLDAP))

	authorities, err := svc.GetUserAuthorities(user.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"ROLE_managers", "ROLE_federated"}, authorities)
}

func TestSyncUserGroupsReusesGroupRecords(t *testing.T) {
	svc := newTestService(t)

	alice := models.User{Active: true, Username: "alice", AuthSource: models.AuthSourceLDAP}
	bob := models.User{Active: true, Username: "bob", AuthSource: models.AuthSourceLDAP}
	require.NoError(t, svc.db.Create(&alice).Error)
	require.NoError(t, svc.db.Create(&bob).Error)

	require.NoError(t, svc.SyncUserGroups(alice.ID, []string{"ROLE_developers"}, models.GroupSourceLDAP))
	require.NoError(t, svc.SyncUserGroups(bob.ID, []string{"ROLE_developers"}, models.GroupSourceLDAP))

	var count int64
	require.NoError(t, svc.db.Model(&models.Group{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}
