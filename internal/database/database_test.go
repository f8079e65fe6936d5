package database

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/moneta/internal/config"
	"github.com/mrlokans/moneta/internal/entities"
)

func setupTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := NewDatabase(config.Database{
		Path:     filepath.Join(t.TempDir(), "test.db"),
		LogLevel: "silent",
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNewDatabase_CreatesSchema(t *testing.T) {
	db := setupTestDB(t)

	for _, table := range []string{
		"users", "books", "authors", "sections", "contents", "written", "category",
		"borrow", "requested", "returns", "read", "comments", "ratings", "audit_events",
	} {
		assert.True(t, db.DB.Migrator().HasTable(table), table)
	}
}

func TestUniqueViolation(t *testing.T) {
	db := setupTestDB(t)

	require.NoError(t, db.DB.Create(&entities.User{Username: "alice", Email: "a@example.com", PasswordHash: "x", Role: entities.UserRoleMember}).Error)

	err := db.DB.Create(&entities.User{Username: "bobby", Email: "a@example.com", PasswordHash: "x", Role: entities.UserRoleMember}).Error
	require.Error(t, err)

	c, ok := UniqueViolation(err)
	require.True(t, ok)
	assert.Equal(t, "users", c.Table)
	assert.True(t, c.Has("email"))
	assert.False(t, c.Has("username"))

	err = db.DB.Create(&entities.User{Username: "alice", Email: "b@example.com", PasswordHash: "x", Role: entities.UserRoleMember}).Error
	c, ok = UniqueViolation(err)
	require.True(t, ok)
	assert.True(t, c.Has("username"))

	_, ok = UniqueViolation(errors.New("UNIQUE constraint failed: users.email"))
	assert.False(t, ok, "only structured sqlite errors count")
}

func TestForeignKeysEnforced(t *testing.T) {
	db := setupTestDB(t)

	err := db.DB.Create(&entities.Written{BookID: 42, AuthorID: 7}).Error
	assert.Error(t, err)
}

func TestNewDatabase_UsesWAL(t *testing.T) {
	db := setupTestDB(t)

	var mode string
	require.NoError(t, db.DB.Raw("PRAGMA journal_mode").Scan(&mode).Error)
	assert.Equal(t, "wal", mode)
}

func TestParseConstraint(t *testing.T) {
	c := parseConstraint("UNIQUE constraint failed: returns.book_id, returns.user_id")
	assert.Equal(t, "returns", c.Table)
	assert.Equal(t, []string{"book_id", "user_id"}, c.Columns)

	assert.Empty(t, parseConstraint("something else").Columns)
}
