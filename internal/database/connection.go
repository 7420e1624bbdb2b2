package database

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/customeros/mailchannel/config"
)

func NewConnection(dbConfig *config.DatabaseConfig) (*gorm.DB, error) {
	if err := validateConfig(dbConfig); err != nil {
		return nil, err
	}

	portInt, err := strconv.Atoi(dbConfig.Port)
	if err != nil {
		return nil, errors.Wrap(err, "invalid port number")
	}

	db, err := gorm.Open(postgres.Open(dsn(dbConfig, portInt)), &gorm.Config{
		Logger: gormlogger.Default.LogMode(logLevel(dbConfig.LogLevel)),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(dbConfig.MaxIdleConn)
	sqlDB.SetMaxOpenConns(dbConfig.MaxConn)
	sqlDB.SetConnMaxLifetime(time.Duration(dbConfig.ConnMaxLifetime) * time.Minute)

	return db, nil
}

func dsn(dbConfig *config.DatabaseConfig, port int) string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		dbConfig.Host, port, dbConfig.User, dbConfig.Password, dbConfig.DBName, dbConfig.SSLMode,
	)
}

func logLevel(level string) gormlogger.LogLevel {
	switch strings.ToUpper(level) {
	case "SILENT":
		return gormlogger.Silent
	case "ERROR":
		return gormlogger.Error
	case "INFO":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}

func validateConfig(config *config.DatabaseConfig) error {
	switch {
	case config == nil:
		return errors.New("Database config is nil")
	case config.Host == "":
		return errors.New("Database host config is empty")
	case config.Port == "":
		return errors.New("Database port config is empty")
	case config.User == "":
		return errors.New("Database user config is empty")
	case config.Password == "":
		return errors.New("Database password config is empty")
	case config.DBName == "":
		return errors.New("Database name config is empty")
	case config.SSLMode == "":
		return errors.New("Database SSLMode config is empty")
	}
	return nil
}
