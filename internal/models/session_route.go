package models

import "time"

// SessionRoute remembers where the agent's main session last heard from
type SessionRoute struct {
	StorePath  string    `gorm:"column:store_path;type:varchar(255);primaryKey" json:"storePath"`
	SessionKey string    `gorm:"column:session_key;type:varchar(500);primaryKey" json:"sessionKey"`
	Channel    string    `gorm:"column:channel;type:varchar(50)" json:"channel"`
	To         string    `gorm:"column:to_address;type:varchar(255)" json:"to"`
	AccountID  string    `gorm:"column:account_id;type:varchar(64)" json:"accountId"`
	UpdatedAt  time.Time `gorm:"column:updated_at;type:timestamp" json:"updatedAt"`
}

func (SessionRoute) TableName() string {
	return "session_routes"
}
