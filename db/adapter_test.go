package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Asuura666/game-habits/config"
)

func TestOpen_SQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "habits.db")
	gdb, err := Open(config.DatabaseConfig{Mode: ModeSQLite, SQLitePath: path})
	require.NoError(t, err)
	require.NoError(t, gdb.Exec("CREATE TABLE ping (id INTEGER)").Error)
	assert.FileExists(t, path)
}

func TestOpen_UnknownMode(t *testing.T) {
	_, err := Open(config.DatabaseConfig{Mode: "embedded_xml"})
	assert.ErrorContains(t, err, "unknown mode")
}

func TestOpen_ServerModesRejectBadDSN(t *testing.T) {
	cases := []struct {
		name string
		cfg  config.DatabaseConfig
		msg  string
	}{
		{"mysql empty", config.DatabaseConfig{Mode: ModeMySQL}, "mysql_dsn is empty"},
		{"mysql no database", config.DatabaseConfig{Mode: ModeMySQL, MySQLDSN: "habits@tcp(db:3306)"}, "mysql:"},
		{"postgres empty", config.DatabaseConfig{Mode: ModePostgres}, "postgres_dsn is empty"},
		{"postgres bad port", config.DatabaseConfig{Mode: ModePostgres, PostgresDSN: "host=db port=notaport"}, "postgres:"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Open(tc.cfg)
			assert.ErrorContains(t, err, tc.msg)
		})
	}
}
