package config

import (
	"log"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"github.com/customeros/mailchannel/internal/logger"
	"github.com/customeros/mailchannel/internal/tracing"
)

type Config struct {
	AppConfig          *AppConfig
	Logger             *logger.Config
	Tracing            *tracing.JaegerConfig
	AgentMailAPIConfig *AgentMailAPIConfig
	AgentConfig        *AgentConfig
	DatabaseConfig     *DatabaseConfig
	R2StorageConfig    *R2StorageConfig
	CronConfig         *CronConfig
}

func InitConfig() (*Config, error) {
	config := &Config{
		AppConfig:          &AppConfig{},
		Logger:             &logger.Config{},
		Tracing:            &tracing.JaegerConfig{},
		AgentMailAPIConfig: &AgentMailAPIConfig{},
		AgentConfig:        &AgentConfig{},
		DatabaseConfig:     &DatabaseConfig{},
		R2StorageConfig:    &R2StorageConfig{},
		CronConfig:         &CronConfig{},
	}

	err := godotenv.Load()
	if err != nil {
		log.Print("Unable to load .env file")
	}

	err = env.Parse(config)
	if err != nil {
		return nil, errors.Wrap(err, "error loading mailchannel config")
	}

	return config, nil
}
