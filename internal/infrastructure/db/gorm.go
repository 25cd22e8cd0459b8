package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/66gu1/authsession/migrations"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pressly/goose/v3"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DuplicateCode is the postgres unique_violation SQLSTATE.
const DuplicateCode = "23505"

type Timestamps struct {
	CreatedAt time.Time // autoCreateTime
	UpdatedAt time.Time // autoUpdateTime
}

type Config struct {
	DSN             string        `mapstructure:"dsn" json:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" json:"conn_max_lifetime"`
}

// Open connects to postgres. password is appended to the DSN so it can come from the environment.
func Open(cfg Config, password string) (*gorm.DB, error) {
	dsn := cfg.DSN
	if password != "" {
		dsn = fmt.Sprintf("%s password=%s", dsn, password)
	}

	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("db.Open: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("db.Open: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	return gdb, nil
}

// Migrate applies the embedded goose migrations.
func Migrate(ctx context.Context, sqlDB *sql.DB) error {
	provider, err := goose.NewProvider(goose.DialectPostgres, sqlDB, migrations.FS)
	if err != nil {
		return fmt.Errorf("db.Migrate: %w", err)
	}
	if _, err = provider.Up(ctx); err != nil {
		return fmt.Errorf("db.Migrate: %w", err)
	}

	return nil
}

func IsDuplicate(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == DuplicateCode
}
