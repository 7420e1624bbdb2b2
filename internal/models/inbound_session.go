package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/customeros/mailchannel/internal/utils"
)

// InboundSession is one conversation between a sender and an agent, keyed by store path and session key
type InboundSession struct {
	ID            string     `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	StorePath     string     `gorm:"column:store_path;type:varchar(255);not null;uniqueIndex:idx_inbound_session_key" json:"storePath"`
	SessionKey    string     `gorm:"column:session_key;type:varchar(500);not null;uniqueIndex:idx_inbound_session_key" json:"sessionKey"`
	AccountID     string     `gorm:"column:account_id;type:varchar(64)" json:"accountId"`
	Provider      string     `gorm:"column:provider;type:varchar(50)" json:"provider"`
	LastFrom      string     `gorm:"column:last_from;type:varchar(255)" json:"lastFrom"`
	LastSender    string     `gorm:"column:last_sender;type:varchar(255)" json:"lastSender"`
	LastMessageID string     `gorm:"column:last_message_id;type:varchar(255)" json:"lastMessageId"`
	LastThreadID  string     `gorm:"column:last_thread_id;type:varchar(255)" json:"lastThreadId"`
	TurnCount     int        `gorm:"column:turn_count;default:0" json:"turnCount"`
	Context       JSONMap    `gorm:"column:context;type:jsonb" json:"context"`
	LastInboundAt *time.Time `gorm:"column:last_inbound_at;type:timestamp" json:"lastInboundAt"`
	CreatedAt     time.Time  `gorm:"column:created_at;type:timestamp" json:"createdAt"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;type:timestamp" json:"updatedAt"`
}

func (InboundSession) TableName() string {
	return "inbound_sessions"
}

func (s *InboundSession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = utils.GenerateNanoIDWithPrefix("sess", 16)
	}
	return nil
}
