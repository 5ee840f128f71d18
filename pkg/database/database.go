package database

import (
	"fmt"
	"time"

	"github.com/biodoia/gocareerflow/pkg/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config contiene la configurazione del database
type Config struct {
	Type       string `yaml:"type"`       // "postgres" or "sqlite"
	Connection string `yaml:"connection"` // Connection string
	MaxConns   int    `yaml:"max_conns"`
	LogLevel   string `yaml:"log_level"`
}

// DB wrappa la connessione GORM
type DB struct {
	*gorm.DB
}

// New crea una nuova connessione al database
func New(cfg *Config) (*DB, error) {
	var dialector gorm.Dialector

	switch cfg.Type {
	case "postgres":
		dialector = postgres.Open(cfg.Connection)
	case "sqlite":
		dialector = sqlite.Open(cfg.Connection)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}

	// Configure logger
	logLevel := logger.Silent
	switch cfg.LogLevel {
	case "info":
		logLevel = logger.Info
	case "warn":
		logLevel = logger.Warn
	case "error":
		logLevel = logger.Error
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	if cfg.MaxConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxConns)
		sqlDB.SetMaxIdleConns(cfg.MaxConns / 2)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	return &DB{DB: db}, nil
}

// AutoMigrate esegue le migrazioni del database
func (db *DB) AutoMigrate() error {
	return db.DB.AutoMigrate(
		&models.RequestLog{},
		&models.WorkflowRun{},
	)
}

// Close chiude la connessione al database
func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GetRecentLogs restituisce i log più recenti
func (db *DB) GetRecentLogs(limit int) ([]models.RequestLog, error) {
	var logs []models.RequestLog
	err := db.Order("timestamp DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}

// GetRecentRuns restituisce i run di workflow più recenti
func (db *DB) GetRecentRuns(limit int) ([]models.WorkflowRun, error) {
	var runs []models.WorkflowRun
	err := db.Order("created_at DESC").
		Limit(limit).
		Find(&runs).Error
	return runs, err
}

// CountRunsByStatus conta i run per stato terminale
func (db *DB) CountRunsByStatus(status models.WorkflowStatus) (int64, error) {
	var count int64
	err := db.Model(&models.WorkflowRun{}).
		Where("status = ?", status).
		Count(&count).Error
	return count, err
}
