package database

import (
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veriloft/vmusic/internal/config"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, Migrate(db))
	return db
}

func TestOpen(t *testing.T) {
	cfg := &config.DatabaseConfig{
		Path:           filepath.Join(t.TempDir(), "nested", "vmusic.db"),
		MaxConnections: 2,
		WALMode:        true,
		AutoVacuum:     true,
	}

	db, err := Open(cfg)
	require.NoError(t, err)

	for _, table := range []string{"settings", "downloads", "search_history", "plays", "schema_migrations"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	// Reopening an existing file must not re-run applied migrations.
	db, err = Open(cfg)
	require.NoError(t, err)
	var applied int64
	require.NoError(t, db.Table("schema_migrations").Count(&applied).Error)
	assert.Equal(t, int64(1), applied)
}

func TestRunMigrations_RenamesLegacyTokenKeys(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&Setting{}))
	require.NoError(t, db.Create(&Setting{Key: "vkToken", Value: "vk"}).Error)
	require.NoError(t, db.Create(&Setting{Key: "lastFmToken", Value: "lfm"}).Error)

	require.NoError(t, RunMigrations(db))

	v, ok, err := GetSetting(db, "vk_token")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "vk", v)

	v, ok, err = GetSetting(db, "lastfm_token")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "lfm", v)

	_, ok, err = GetSetting(db, "vkToken")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSettings(t *testing.T) {
	db := setupTestDB(t)

	_, ok, err := GetSetting(db, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, SetSettings(db, map[string]string{"a": "1", "b": "2"}))
	require.NoError(t, SetSetting(db, "a", "3"))

	v, ok, err := GetSetting(db, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "3", v)

	require.NoError(t, DeleteSettings(db, "a", "nope"))
	_, ok, err = GetSetting(db, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	v, _, err = GetSetting(db, "b")
	require.NoError(t, err)
	assert.Equal(t, "2", v)
}

func TestExtractMigrationName(t *testing.T) {
	assert.Equal(t, "20260301", extractMigrationName("20260301_token_setting_keys.sql"))
	assert.Equal(t, "notes.sql", extractMigrationName("notes.sql"))
}

func TestParseRequires(t *testing.T) {
	sql := "-- requires: settings\n-- requires: downloads\n-- comment\nUPDATE x SET y = 1;\n-- requires: ignored\n"
	assert.Equal(t, []string{"settings", "downloads"}, parseRequires(sql))
}
