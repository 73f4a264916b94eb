package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Dialector returns a PostgreSQL dialector for dsn. The DSN is parsed up
// front so a typo fails at startup rather than on the first query.
func Dialector(dsn string) (gorm.Dialector, error) {
	if dsn == "" {
		return nil, errors.New("postgres: database.postgres_dsn is empty")
	}
	if _, err := pgx.ParseConfig(dsn); err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	return postgres.New(postgres.Config{DSN: dsn}), nil
}
