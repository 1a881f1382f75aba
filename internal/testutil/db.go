package testutil

import (
	"path/filepath"
	"testing"

	"github.com/bluesky-social/feedview/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestDB opens a fresh sqlite index database under t.TempDir with every
// read path table migrated.
func TestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "index.sqlite")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqldb, err := db.DB()
	require.NoError(t, err)
	// a single connection keeps concurrent readers off "database is locked"
	sqldb.SetMaxOpenConns(1)
	t.Cleanup(func() { sqldb.Close() })

	require.NoError(t, models.Migrate(db))
	return db
}
