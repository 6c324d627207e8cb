package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suPer8Hu/helpdesk-triage/internal/config"
	"github.com/suPer8Hu/helpdesk-triage/internal/logger"
)

func TestConnect_SQLiteCreatesDir(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "nested", "helpdesk.db")

	gdb, err := Connect(config.DBConfig{Driver: "sqlite", DSN: dsn}, logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(gdb) })

	var one int
	require.NoError(t, gdb.Raw("SELECT 1").Scan(&one).Error)
	assert.Equal(t, 1, one)
}

func TestConnect_UnknownDriver(t *testing.T) {
	_, err := Connect(config.DBConfig{Driver: "oracle"}, logger.Discard())
	assert.Error(t, err)
}
