package migration

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	sub, err := Source()
	require.NoError(t, err)

	entries, err := fs.ReadDir(sub, ".")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		}
	}
	assert.Equal(t, ups, downs)
}

func TestOrdersMigrationIsPartitioned(t *testing.T) {
	sub, err := Source()
	require.NoError(t, err)

	raw, err := fs.ReadFile(sub, "000002_orders.up.sql")
	require.NoError(t, err)
	sql := string(raw)
	assert.Contains(t, sql, "PARTITION BY RANGE (order_date)")
	assert.Contains(t, sql, "PRIMARY KEY (order_date, id)")
	assert.Contains(t, sql, "PARTITION OF orders DEFAULT")
}

func TestRunMigrationsRequiresURL(t *testing.T) {
	assert.Error(t, RunMigrations(""))
}

func TestAutoMigrateSQLite(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, AutoMigrate(conn))
	assert.True(t, conn.Migrator().HasTable("orders"))
	assert.True(t, conn.Migrator().HasTable("locations"))
	assert.True(t, conn.Migrator().HasTable("products"))
}
