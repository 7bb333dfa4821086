package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSQLite(t *testing.T) {
	conn, err := Open("sqlite", filepath.Join(t.TempDir(), "db.sqlite"))
	require.NoError(t, err)
	assert.Equal(t, "sqlite", conn.Dialector.Name())

	var one int
	require.NoError(t, conn.Raw("SELECT 1").Scan(&one).Error)
	assert.Equal(t, 1, one)
}

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := Open("mysql", "root@/x")
	assert.ErrorContains(t, err, "unsupported driver")
}
