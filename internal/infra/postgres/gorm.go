package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/sifan077/linkpulse/config"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const slowQueryThreshold = 200 * time.Millisecond

// NewGorm returns a gorm.DB configured for the application's Postgres instance.
// Driver errors are translated so unique violations surface as gorm.ErrDuplicatedKey.
func NewGorm(cfg config.PostgresConfig, log *zap.Logger) (*gorm.DB, error) {
	settings, err := ParsePoolSettings(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(postgres.Open(ConnString(cfg)), &gorm.Config{
		Logger:                                   NewGormLogger(log),
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: open gorm connection: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("postgres: retrieve sql db: %w", err)
	}

	sqlDB.SetConnMaxLifetime(5 * time.Minute)
	if settings.MaxConnLifetime > 0 {
		sqlDB.SetConnMaxLifetime(settings.MaxConnLifetime)
	}
	if settings.MaxConnIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(settings.MaxConnIdleTime)
	}
	if settings.MaxConns > 0 {
		sqlDB.SetMaxOpenConns(int(settings.MaxConns))
	}
	if settings.MinConns > 0 {
		sqlDB.SetMaxIdleConns(int(settings.MinConns))
	}

	return db, nil
}

// NewGormLogger routes GORM's warnings and slow queries through zap.
func NewGormLogger(log *zap.Logger) logger.Interface {
	if log == nil {
		return logger.Default.LogMode(logger.Silent)
	}
	return logger.New(
		zap.NewStdLog(log.Named("gorm")),
		logger.Config{
			SlowThreshold:             slowQueryThreshold,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	)
}

// AutoMigrate uses GORM to perform schema migrations for the provided models.
func AutoMigrate(ctx context.Context, db *gorm.DB, models ...interface{}) error {
	if db == nil || len(models) == 0 {
		return nil
	}

	if err := db.WithContext(ctx).AutoMigrate(models...); err != nil {
		return fmt.Errorf("postgres: auto migrate: %w", err)
	}

	return nil
}
