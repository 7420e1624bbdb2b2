package database

import (
	"gorm.io/gorm"

	"github.com/customeros/mailchannel/config"
	"github.com/customeros/mailchannel/internal/logger"
)

// InitSessionDatabase returns nil without error when no database host is configured
func InitSessionDatabase(dbConfig *config.DatabaseConfig, log logger.Logger) (*gorm.DB, error) {
	if dbConfig == nil || dbConfig.Host == "" {
		log.Warn("MAILCHANNEL_POSTGRES_HOST not set, sessions are kept in memory")
		return nil, nil
	}

	db, err := NewConnection(dbConfig)
	if err != nil {
		return nil, err
	}
	log.Infof("connected to session database %s/%s", dbConfig.Host, dbConfig.DBName)
	return db, nil
}
