package mysql

import (
	"errors"
	"fmt"

	gomysql "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// Dialector returns a MySQL dialector for dsn. DATETIME columns only scan
// into time.Time with parseTime on, so it is forced.
func Dialector(dsn string) (gorm.Dialector, error) {
	normalized, err := NormalizeDSN(dsn)
	if err != nil {
		return nil, err
	}
	return mysql.New(mysql.Config{
		DSN:               normalized,
		DefaultStringSize: 191,
	}), nil
}

// NormalizeDSN validates dsn and turns parseTime on.
func NormalizeDSN(dsn string) (string, error) {
	if dsn == "" {
		return "", errors.New("mysql: database.mysql_dsn is empty")
	}
	cfg, err := gomysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("mysql: %w", err)
	}
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}
