package testutil

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Asuura666/game-habits/cache"
	"github.com/Asuura666/game-habits/config"
	dbadapter "github.com/Asuura666/game-habits/db"
	"github.com/Asuura666/game-habits/model"
)

// SetupTestDB opens a throwaway SQLite file under t.TempDir() and runs
// AutoMigrate. Each test gets its own database.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := dbadapter.Open(config.DatabaseConfig{
		Mode:       dbadapter.ModeSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err, "SetupTestDB: Open")
	require.NoError(t, model.AutoMigrate(db), "SetupTestDB: AutoMigrate")
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// SetupTestCache creates LocalCache and LocalPubSub (no Redis required).
func SetupTestCache(t *testing.T) (cache.Cache, cache.PubSub) {
	t.Helper()
	cfg := config.CacheConfig{LocalGCInterval: time.Minute} // empty RedisAddr → LocalCache
	c, err := cache.NewCache(cfg)
	require.NoError(t, err, "SetupTestCache: NewCache")
	ps, err := cache.NewPubSub(cfg)
	require.NoError(t, err, "SetupTestCache: NewPubSub")
	return c, ps
}

// SeedUser inserts a user with its character and streak rows.
func SeedUser(t *testing.T, db *gorm.DB, u *model.User, ch *model.Character) *model.User {
	t.Helper()
	if u.Level == 0 {
		u.Level = 1
	}
	if u.PasswordHash == "" {
		u.PasswordHash = "x"
	}
	require.NoError(t, db.Create(u).Error)
	if ch == nil {
		ch = &model.Character{Class: "none", Strength: 5, Endurance: 5, Agility: 5, Intelligence: 5, Charisma: 5}
	}
	ch.UserID = u.ID
	require.NoError(t, db.Create(ch).Error)
	require.NoError(t, db.Create(&model.Streak{UserID: u.ID}).Error)
	return u
}
