package mysql

import (
	"testing"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDSN_ForcesParseTime(t *testing.T) {
	for _, dsn := range []string{
		"habits:secret@tcp(db:3306)/habits",
		"habits:secret@tcp(db:3306)/habits?parseTime=false&charset=utf8mb4",
	} {
		out, err := NormalizeDSN(dsn)
		require.NoError(t, err, dsn)

		cfg, err := gomysql.ParseDSN(out)
		require.NoError(t, err)
		assert.True(t, cfg.ParseTime, dsn)
		assert.Equal(t, "habits", cfg.User)
		assert.Equal(t, "secret", cfg.Passwd)
		assert.Equal(t, "db:3306", cfg.Addr)
		assert.Equal(t, "habits", cfg.DBName)
	}
}

func TestDialector_Rejects(t *testing.T) {
	_, err := Dialector("")
	assert.ErrorContains(t, err, "empty")

	_, err = Dialector("habits@tcp(db:3306)")
	assert.Error(t, err, "missing database name separator")
}
