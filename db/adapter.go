package db

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Asuura666/game-habits/config"
	dbmysql "github.com/Asuura666/game-habits/db/mysql"
	dbpostgres "github.com/Asuura666/game-habits/db/postgres"
	dbsqlite "github.com/Asuura666/game-habits/db/sqlite"
)

const (
	ModeSQLite   = "sqlite"
	ModeMySQL    = "mysql"
	ModePostgres = "postgres"
)

// Open returns a *gorm.DB for the configured database mode.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var (
		dialector gorm.Dialector
		err       error
	)
	switch cfg.Mode {
	case ModeSQLite:
		return dbsqlite.Open(cfg.SQLitePath)
	case ModeMySQL:
		dialector, err = dbmysql.Dialector(cfg.MySQLDSN)
	case ModePostgres:
		dialector, err = dbpostgres.Dialector(cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("db: unknown mode %q", cfg.Mode)
	}
	if err != nil {
		return nil, err
	}
	return openPooled(dialector, cfg)
}

// openPooled opens a server database and sizes its connection pool.
func openPooled(dialector gorm.Dialector, cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLife)
	return db, nil
}
