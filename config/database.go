package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/oakandloom/storefront/models"
)

var db *gorm.DB

// InitDatabase opens the configured database and migrates the analytics tables.
func InitDatabase() *gorm.DB {
	if db != nil {
		return db
	}

	opened, err := OpenDatabase(Get())
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}

	if err := models.AutoMigrate(opened); err != nil {
		log.Fatalf("auto migration failed: %v", err)
	}

	db = opened
	return db
}

// OpenDatabase connects to MySQL or SQLite depending on DBDriver and tunes the pool.
func OpenDatabase(c AppConfig) (*gorm.DB, error) {
	// Derive GORM log level from app LogLevel and raise slow-sql threshold to reduce noise
	gLogger := logger.New(
		log.New(os.Stdout, "", log.LstdFlags),
		logger.Config{
			SlowThreshold:             2 * time.Second,
			LogLevel:                  toGormLogLevel(c.LogLevel),
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	gormCfg := &gorm.Config{
		Logger:                                   gLogger,
		DisableForeignKeyConstraintWhenMigrating: true,
		// timestamps are stored in UTC; sqlite compares them as text
		NowFunc: func() time.Time { return time.Now().UTC() },
		// unique violations surface as gorm.ErrDuplicatedKey
		TranslateError: true,
	}

	var dialector gorm.Dialector
	switch c.DBDriver {
	case "sqlite":
		if dir := filepath.Dir(c.SQLitePath); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite dir: %w", err)
			}
		}
		dialector = sqlite.Open(c.SQLitePath + "?_busy_timeout=5000")
	default:
		dsn := c.DatabaseURI
		if dsn == "" {
			dsn = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
				c.DBUser,
				c.DBPassword,
				c.DBHost,
				c.DBPort,
				c.DBName,
			)
		}
		dialector = mysql.Open(dsn)
	}

	opened, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, err
	}

	sqlDB, err := opened.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}

	if c.DBDriver == "sqlite" {
		// single writer
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetMaxOpenConns(20)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
		sqlDB.SetConnMaxIdleTime(10 * time.Minute)
	}

	// Ping at boot so network/auth problems show up before the first query
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("database ping: %w", err)
	}
	return opened, nil
}

// toGormLogLevel maps application LogLevel to GORM's logger level.
func toGormLogLevel(level string) logger.LogLevel {
	switch level {
	case "debug":
		// GORM 'Info' shows SQL; use with caution
		return logger.Info
	case "info", "", "warn":
		return logger.Warn
	case "error":
		return logger.Error
	case "silent":
		return logger.Silent
	default:
		return logger.Warn
	}
}
