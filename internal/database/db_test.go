package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/jobeco/fairprice/internal/models"
)

func TestOpenSQLiteMemory(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.Exec("SELECT 1").Error)
	require.NoError(t, Ping(db))
}

func TestOpenSQLiteMemoryIsPrivate(t *testing.T) {
	first := openTestDB(t)
	second := openTestDB(t)

	require.NoError(t, Migrate(first))
	require.NoError(t, first.Create(&models.User{Username: "alice", Email: "a@example.com", Password: "x", FirstName: "A", LastName: "B"}).Error)

	require.False(t, second.Migrator().HasTable(&models.User{}))
}

func TestOpenSQLiteFileCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "fairprice.db")
	db, err := Open(Config{Driver: "sqlite", Path: path})
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })

	require.NoError(t, Migrate(db))
	require.FileExists(t, path)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"})
	require.ErrorContains(t, err, "unsupported database driver")
}

func TestMigrateCreatesSchema(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, Migrate(db))

	for _, model := range []any{
		&models.User{},
		&models.Group{},
		&models.UserGroup{},
		&models.Tradesman{},
		&models.UserTradesman{},
		&models.GroupTradesman{},
		&models.Job{},
		&models.GroupInvitation{},
		&models.AuditLog{},
		&models.CacheEntry{},
	} {
		require.True(t, db.Migrator().HasTable(model), "%T", model)
	}
}

func TestMembershipPairIsUnique(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, Migrate(db))

	user := models.User{Username: "alice", Email: "alice@example.com", Password: "x", FirstName: "Alice", LastName: "Smith"}
	require.NoError(t, db.Create(&user).Error)
	group := models.Group{Name: "Street Group", Postcode: "12345", CreatedBy: user.ID}
	require.NoError(t, db.Create(&group).Error)

	require.NoError(t, db.Create(&models.UserGroup{UserID: user.ID, GroupID: group.ID, Status: models.StatusPending}).Error)
	err := db.Create(&models.UserGroup{UserID: user.ID, GroupID: group.ID, Status: models.StatusMember}).Error
	require.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	var count int64
	require.NoError(t, db.Model(&models.UserGroup{}).Where("user_id = ? AND group_id = ?", user.ID, group.ID).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestJoinTablesCascadeOnDelete(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, Migrate(db))

	user := models.User{Username: "bob", Email: "bob@example.com", Password: "x", FirstName: "Bob", LastName: "Jones"}
	require.NoError(t, db.Create(&user).Error)
	group := models.Group{Name: "G", Postcode: "AB1", CreatedBy: user.ID}
	require.NoError(t, db.Create(&group).Error)
	require.NoError(t, db.Create(&models.UserGroup{UserID: user.ID, GroupID: group.ID, Status: models.StatusCreator}).Error)

	require.NoError(t, db.Delete(&group).Error)

	var count int64
	require.NoError(t, db.Model(&models.UserGroup{}).Count(&count).Error)
	require.Zero(t, count)
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := Open(Config{Driver: "sqlite"})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = Close(db)
	})

	return db
}
