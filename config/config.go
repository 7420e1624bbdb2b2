package config

import (
	"time"
)

type AppConfig struct {
	APIPort           string `env:"PORT,required" envDefault:"12222"`
	APIKey            string `env:"API_KEY"`
	RabbitMQURL       string `env:"RABBITMQ_URL"`
	ChannelConfigFile string `env:"CHANNEL_CONFIG_FILE" envDefault:"mailchannel.yaml"`
	PodName           string `env:"POD_NAME" envDefault:"local"`
	Namespace         string `env:"POD_NAMESPACE" envDefault:"default"`
	LocalDev          bool   `env:"LOCAL_DEV" envDefault:"false"`
}

type AgentMailAPIConfig struct {
	BaseURL              string        `env:"AGENTMAIL_API_URL" envDefault:"https://api.agentmail.to/v0"`
	WebSocketURL         string        `env:"AGENTMAIL_WS_URL" envDefault:"wss://ws.agentmail.to/v0"`
	RequestTimeout       time.Duration `env:"AGENTMAIL_REQUEST_TIMEOUT" envDefault:"60s"`
	MaxReconnectAttempts int           `env:"AGENTMAIL_MAX_RECONNECT_ATTEMPTS" envDefault:"30"`
	TempDir              string        `env:"AGENTMAIL_TEMP_DIR"`
}

type AgentConfig struct {
	WebhookURL    string        `env:"AGENT_WEBHOOK_URL"`
	WebhookAPIKey string        `env:"AGENT_WEBHOOK_API_KEY"`
	Timeout       time.Duration `env:"AGENT_WEBHOOK_TIMEOUT" envDefault:"120s"`
}

type DatabaseConfig struct {
	Host            string `env:"MAILCHANNEL_POSTGRES_HOST"`
	Port            string `env:"MAILCHANNEL_POSTGRES_PORT" envDefault:"5432"`
	User            string `env:"MAILCHANNEL_POSTGRES_USER"`
	DBName          string `env:"MAILCHANNEL_POSTGRES_DB_NAME"`
	Password        string `env:"MAILCHANNEL_POSTGRES_PASSWORD"`
	MaxConn         int    `env:"MAILCHANNEL_POSTGRES_DB_MAX_CONN" envDefault:"25"`
	MaxIdleConn     int    `env:"MAILCHANNEL_POSTGRES_DB_MAX_IDLE_CONN" envDefault:"10"`
	ConnMaxLifetime int    `env:"MAILCHANNEL_POSTGRES_DB_CONN_MAX_LIFETIME" envDefault:"60"`
	LogLevel        string `env:"MAILCHANNEL_POSTGRES_LOG_LEVEL" envDefault:"WARN"`
	SSLMode         string `env:"MAILCHANNEL_POSTGRES_SSL_MODE" envDefault:"require"`
}

type R2StorageConfig struct {
	AccountID        string `env:"CLOUDFLARE_R2_ACCOUNT_ID"`
	AccessKeyID      string `env:"CLOUDFLARE_R2_ACCESS_KEY_ID"`
	AccessKeySecret  string `env:"CLOUDFLARE_R2_ACCESS_KEY_SECRET"`
	AttachmentBucket string `env:"BUCKET_NAME_EMAIL_ATTACHMENT" envDefault:"attachments"`
	CDNDomain        string `env:"ATTACHMENT_CDN_DOMAIN"`
}

// Enabled reports whether attachment archiving to R2 is configured
func (c *R2StorageConfig) Enabled() bool {
	return c != nil && c.AccountID != "" && c.AccessKeyID != "" && c.AccessKeySecret != ""
}

type CronConfig struct {
	// Heartbeat check, every minute
	CronScheduleHeartbeat string `env:"CRON_SCHEDULE_HEARTBEAT" envDefault:"0 * * * * *"`
	// Account probe, every five minutes
	CronScheduleAccountProbe string `env:"CRON_SCHEDULE_ACCOUNT_PROBE" envDefault:"0 */5 * * * *"`
}
