package database

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/moneta/internal/config"
	"github.com/mrlokans/moneta/internal/entities"
)

// connParams turns on foreign key enforcement and WAL, and waits on a locked
// database instead of failing immediately. Transactions take the write lock
// up front (BEGIN IMMEDIATE): a deferred transaction that reads and then
// writes cannot wait out the busy timeout when another connection holds the
// lock, so it would fail with "database is locked".
const connParams = "_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate"

type Database struct {
	DB *gorm.DB
}

func NewDatabase(cfg config.Database, log *zap.Logger) (*Database, error) {
	if log == nil {
		log = zap.NewNop()
	}

	db, err := gorm.Open(sqlite.Open(dsn(cfg.Path)), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel(cfg.LogLevel)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	log.Info("database initialized", zap.String("path", cfg.Path))

	return &Database{DB: db}, nil
}

func migrate(db *gorm.DB) error {
	if err := db.SetupJoinTable(&entities.Book{}, "Authors", &entities.Written{}); err != nil {
		return err
	}
	if err := db.SetupJoinTable(&entities.Author{}, "Books", &entities.Written{}); err != nil {
		return err
	}
	if err := db.SetupJoinTable(&entities.Book{}, "Sections", &entities.Category{}); err != nil {
		return err
	}
	if err := db.SetupJoinTable(&entities.Section{}, "Books", &entities.Category{}); err != nil {
		return err
	}

	return db.AutoMigrate(
		&entities.User{},
		&entities.Author{},
		&entities.Section{},
		&entities.Book{},
		&entities.Content{},
		&entities.Written{},
		&entities.Category{},
		&entities.Borrow{},
		&entities.Requested{},
		&entities.Return{},
		&entities.Read{},
		&entities.Comment{},
		&entities.Rating{},
		&entities.AuditEvent{},
	)
}

func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func dsn(path string) string {
	if strings.Contains(path, "?") {
		return path + "&" + connParams
	}
	return path + "?" + connParams
}

func logLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}
