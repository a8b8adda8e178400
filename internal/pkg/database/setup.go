package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ManuelReschke/EventBooth/app/models"
	"github.com/ManuelReschke/EventBooth/internal/pkg/env"
)

const maxRetries = 5
const retryDelay = 5 * time.Second

// Config holds the primary database connection settings.
type Config struct {
	User     string
	Password string
	Host     string
	Port     string
	Name     string
	Debug    bool
}

// LoadConfig loads database settings from the environment.
func LoadConfig(src env.Source) *Config {
	return &Config{
		User:     src.GetEnv("DB_USER", ""),
		Password: src.GetEnv("DB_PASSWORD", ""),
		Host:     src.GetEnv("DB_HOST", "127.0.0.1"),
		Port:     src.GetEnv("DB_PORT", "3306"),
		Name:     src.GetEnv("DB_NAME", ""),
		Debug:    src.IsDev(),
	}
}

// DSN renders the go-sql-driver/mysql data source name.
func (c *Config) DSN() string {
	// "user:pass@tcp(127.0.0.1:3306)/dbname?charset=utf8mb4&parseTime=True&loc=Local"
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.Name)
}

// Models lists every table owned by this service, in migration order.
func Models() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Event{},
		&models.EventEntitlement{},
		&models.PackageDefinition{},
		&models.IdempotencyReceipt{},
		&models.WebhookAuditRecord{},
	}
}

// Migrate creates or updates the service tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}

// Open connects to MySQL, retrying while the database container starts, and
// migrates the schema.
func Open(cfg *Config) (*gorm.DB, error) {
	gormCfg := &gorm.Config{}
	if !cfg.Debug {
		gormCfg.Logger = logger.Default.LogMode(logger.Warn)
	}

	var db *gorm.DB
	var err error
	for i := 0; i < maxRetries; i++ {
		db, err = gorm.Open(mysql.New(mysql.Config{
			DSN:                       cfg.DSN(), // data source name
			DefaultStringSize:         256,       // default size for string fields
			DisableDatetimePrecision:  true,      // disable datetime precision, which not supported before MySQL 5.6
			DontSupportRenameIndex:    true,      // drop & create when rename index, rename index not supported before MySQL 5.7, MariaDB
			DontSupportRenameColumn:   true,      // `change` when rename column, rename column not supported before MySQL 8, MariaDB
			SkipInitializeWithVersion: false,     // auto configure based on currently MySQL version
		}), gormCfg)
		if err == nil {
			if err = Migrate(db); err != nil {
				return nil, fmt.Errorf("migrate schema: %w", err)
			}
			return db, nil
		}

		log.Warnf("[Database] Failed to connect to database (try %d/%d): %v", i+1, maxRetries, err)
		if i < maxRetries-1 {
			log.Infof("[Database] Retrying in %v...", retryDelay)
			time.Sleep(retryDelay)
		}
	}
	return nil, err
}

// ProvisioningTxOptions returns the isolation used by the provisioning
// transaction. MySQL defaults to REPEATABLE READ; the receipt insert must see
// rows committed by a concurrent winner, so READ COMMITTED is requested.
func ProvisioningTxOptions() *sql.TxOptions {
	return &sql.TxOptions{Isolation: sql.LevelReadCommitted}
}
