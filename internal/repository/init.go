package repository

import (
	"gorm.io/gorm"

	"github.com/customeros/mailchannel/config"
	"github.com/customeros/mailchannel/interfaces"
	"github.com/customeros/mailchannel/internal/models"
)

type Repositories struct {
	SessionRepository interfaces.SessionRepository
}

// InitRepositories falls back to in-memory storage when db is nil
func InitRepositories(db *gorm.DB) *Repositories {
	if db == nil {
		return &Repositories{
			SessionRepository: NewMemorySessionRepository(),
		}
	}
	return &Repositories{
		SessionRepository: NewSessionRepository(db),
	}
}

func MigrateDB(dbConfig *config.DatabaseConfig, db *gorm.DB) error {
	if db == nil {
		return ErrNoDatabase
	}

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	sqlDB.SetMaxOpenConns(5)

	err = db.AutoMigrate(
		&models.InboundSession{},
		&models.InboundTurn{},
		&models.SessionRoute{},
	)

	sqlDB.SetMaxOpenConns(dbConfig.MaxConn)

	return err
}
