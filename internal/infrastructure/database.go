package infrastructure

import (
	"fmt"
	"log"
	"os"
	"time"

	"order-workflow/internal/model"
	"order-workflow/internal/repository"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DatabaseConfig contains database connection configuration
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

// DSN returns the PostgreSQL connection string
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Database,
		c.SSLMode,
	)
}

// ConnectDatabase establishes a connection to PostgreSQL database using GORM
func ConnectDatabase(config DatabaseConfig, verbose bool) (*gorm.DB, error) {
	logLevel := logger.Silent
	if verbose {
		logLevel = logger.Info
	}

	gormConfig := &gorm.Config{
		Logger: logger.New(
			log.New(os.Stdout, "\r\n", log.LstdFlags),
			logger.Config{
				SlowThreshold:             time.Second,
				LogLevel:                  logLevel,
				IgnoreRecordNotFoundError: true,
				Colorful:                  false,
			},
		),
		// unique violations surface as gorm.ErrDuplicatedKey
		TranslateError: true,
	}

	db, err := gorm.Open(postgres.Open(config.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

// MigrateAllSchemas performs all database migrations in the correct order
func MigrateAllSchemas(db *gorm.DB) error {
	if err := db.AutoMigrate(&model.User{}); err != nil {
		return fmt.Errorf("failed to migrate User table: %w", err)
	}

	if err := db.AutoMigrate(&model.Order{}, &model.Product{}); err != nil {
		return fmt.Errorf("failed to migrate Order tables: %w", err)
	}

	if err := db.AutoMigrate(&model.HistoryRecord{}); err != nil {
		return fmt.Errorf("failed to migrate HistoryRecord table: %w", err)
	}

	if err := db.AutoMigrate(&model.ActivityLogEntry{}, &repository.CodeSequence{}); err != nil {
		return fmt.Errorf("failed to migrate support tables: %w", err)
	}

	if err := createAdditionalIndexes(db); err != nil {
		return fmt.Errorf("failed to create additional indexes: %w", err)
	}

	return nil
}

// createAdditionalIndexes creates additional indexes for performance
func createAdditionalIndexes(db *gorm.DB) error {
	statements := []string{
		`CREATE INDEX IF NOT EXISTS idx_orders_stage ON orders(stage)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders(created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_order_products_order_position ON order_products(order_id, position)`,
		`CREATE INDEX IF NOT EXISTS idx_order_history_delivered_at ON order_history(delivered_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_activity_log_category_ts ON activity_log(category, timestamp DESC)`,
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}
