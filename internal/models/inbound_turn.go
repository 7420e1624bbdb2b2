package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/customeros/mailchannel/internal/utils"
)

type InboundTurn struct {
	ID         string         `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	SessionID  string         `gorm:"column:session_id;type:varchar(50);index" json:"sessionId"`
	MessageID  string         `gorm:"column:message_id;type:varchar(255);index" json:"messageId"`
	ThreadID   string         `gorm:"column:thread_id;type:varchar(255)" json:"threadId"`
	From       string         `gorm:"column:from_address;type:varchar(255)" json:"from"`
	SenderName string         `gorm:"column:sender_name;type:varchar(255)" json:"senderName"`
	Body       string         `gorm:"column:body;type:text" json:"body"`
	RawBody    string         `gorm:"column:raw_body;type:text" json:"rawBody"`
	MediaPaths pq.StringArray `gorm:"column:media_paths;type:text[]" json:"mediaPaths"`
	MediaTypes pq.StringArray `gorm:"column:media_types;type:text[]" json:"mediaTypes"`
	SentAt     *time.Time     `gorm:"column:sent_at;type:timestamp" json:"sentAt"`
	CreatedAt  time.Time      `gorm:"column:created_at;type:timestamp" json:"createdAt"`
}

func (InboundTurn) TableName() string {
	return "inbound_turns"
}

func (t *InboundTurn) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = utils.GenerateNanoIDWithPrefix("turn", 16)
	}
	t.CreatedAt = utils.Now()
	return nil
}
