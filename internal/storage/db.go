// Package storage persists the audit trail and learned chart preferences
// through GORM on SQLite or PostgreSQL.
package storage

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"integralq/internal/config"
)

const memoryDSN = ":memory:"

// Open connects to the configured database and migrates the schema.
func Open(cfg config.DatabaseConfig, logger *slog.Logger) (*gorm.DB, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	var dialector gorm.Dialector
	switch cfg.Type {
	case "postgres":
		dialector = postgres.Open(postgresDSN(cfg))
	case "sqlite", "":
		if cfg.Path != memoryDSN && cfg.Path != "" {
			if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		path := cfg.Path
		if path == "" {
			path = memoryDSN
		}
		dialector = sqlite.Open(path)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: newGormLogger(logger, cfg.LogLevel)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get generic database object: %w", err)
	}
	if cfg.Type != "postgres" {
		// SQLite allows one writer; an in-memory database also lives on a single connection.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := AutoMigrate(db); err != nil {
		_ = Close(db)
		return nil, err
	}

	logger.Info("database ready",
		slog.String("component", "storage"),
		slog.String("type", dialector.Name()))
	return db, nil
}

// AutoMigrate creates or updates the tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&AuditEntry{}, &ChartPreference{}); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get generic database object: %w", err)
	}
	return sqlDB.Close()
}

func postgresDSN(cfg config.DatabaseConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, port, cfg.User, cfg.Password, cfg.DBName, sslMode)
}

// newGormLogger routes GORM output through slog.
func newGormLogger(logger *slog.Logger, level string) gormlogger.Interface {
	var lvl gormlogger.LogLevel
	switch level {
	case "info":
		lvl = gormlogger.Info
	case "warn":
		lvl = gormlogger.Warn
	case "error":
		lvl = gormlogger.Error
	default:
		lvl = gormlogger.Silent
	}
	writer := slog.NewLogLogger(logger.With(slog.String("component", "gorm")).Handler(), slog.LevelDebug)
	return gormlogger.New(writer, gormlogger.Config{
		SlowThreshold:             500 * time.Millisecond,
		LogLevel:                  lvl,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}
