package migration

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestLatestMigrationVersion(t *testing.T) {
	version, err := LatestMigrationVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(5), version)
}

func TestMigrationsChecksumIsStable(t *testing.T) {
	first, err := MigrationsChecksum()
	require.NoError(t, err)
	second, err := MigrationsChecksum()
	require.NoError(t, err)
	assert.Len(t, first, 64)
	assert.Equal(t, first, second)
}

func TestParseMigrationVersion(t *testing.T) {
	cases := map[string]struct {
		version uint
		ok      bool
	}{
		"0003_create_payment_events.up.sql": {3, true},
		"12_x.up.sql":                       {12, true},
		"abc_x.up.sql":                      {0, false},
		"_x.up.sql":                         {0, false},
	}
	for name, want := range cases {
		t.Run(name, func(t *testing.T) {
			version, ok := parseMigrationVersion(name)
			assert.Equal(t, want.ok, ok)
			assert.Equal(t, want.version, version)
		})
	}
}

func TestApplyOnSQLite(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "migrate.db")), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, Apply(conn, zap.NewNop()))
	for _, table := range []string{"orders", "payment_transactions", "payment_events", "payment_provider_configs"} {
		assert.True(t, conn.Migrator().HasTable(table), table)
	}
	assert.True(t, conn.Migrator().HasIndex("payment_events", "ux_payment_events_provider_event"))

	require.NoError(t, Apply(conn, zap.NewNop()))
}

func TestRunMigrationsRequiresHandle(t *testing.T) {
	err := RunMigrations(context.Background(), nil, zap.NewNop())
	assert.EqualError(t, err, "migrate: nil database handle")
}
