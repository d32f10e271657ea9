package db

import (
	"database/sql"
	stdlog "log"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type DatabaseConnection struct {
	db    *gorm.DB
	sqlDb *sql.DB
}

// NewDatabaseConnection opens the configured database and runs migrations.
// Defaults to a sqlite file taken from the database config key; set
// DATABASE_TYPE=postgres and POSTGRES_DSN to use postgres instead.
func NewDatabaseConnection() (*DatabaseConnection, error) {
	// Set up viper to read from the environment
	viper.AutomaticEnv()

	// Default to sqlite if no DATABASE_TYPE is set
	dbType := viper.GetString("DATABASE_TYPE")
	if dbType == "" {
		dbType = "sqlite"
	}

	var dialector gorm.Dialector
	switch dbType {
	case "sqlite":
		path := viper.GetString("database")
		if path == "" {
			path = "recondor.db"
		}
		dialector = sqlite.Open(path)
	case "postgres":
		// Get the connection string from the environment variable
		dsn := viper.GetString("POSTGRES_DSN")
		if dsn == "" {
			return nil, ErrPostgresDSNNotSet
		}
		dialector = postgres.Open(dsn)
	default:
		log.Error().Str("type", dbType).Msg("Unknown database type")
		return nil, ErrUnknownDatabaseType
	}

	newLogger := logger.New(
		stdlog.New(os.Stdout, "\r\n", stdlog.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Silent,
			IgnoreRecordNotFoundError: true,
			ParameterizedQueries:      true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         newLogger,
		TranslateError: true,
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to connect to database")
		return nil, err
	}
	if err := db.AutoMigrate(&Scan{}, &Finding{}); err != nil {
		log.Error().Err(err).Msg("Failed to migrate database")
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Error().Err(err).Msg("Failed to get underlying database connection")
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(80)
	sqlDB.SetConnMaxLifetime(time.Hour)

	conn := &DatabaseConnection{
		db:    db,
		sqlDb: sqlDB,
	}
	conn.migrateLegacySchema()
	return conn, nil
}

// migrateLegacySchema adds the scan_id column to findings tables created
// before scans were tracked. Already migrated databases report a duplicate
// column, which is fine.
func (d *DatabaseConnection) migrateLegacySchema() {
	err := d.db.Exec("ALTER TABLE findings ADD COLUMN scan_id text").Error
	if err != nil && !isDuplicateColumnError(err) {
		log.Debug().Err(err).Msg("Legacy schema migration skipped")
	}
}

func isDuplicateColumnError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate column") || strings.Contains(msg, "already exists")
}

// Close releases the underlying database handle.
func (d *DatabaseConnection) Close() error {
	return d.sqlDb.Close()
}
