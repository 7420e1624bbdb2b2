package dto

import "github.com/customeros/mailchannel/internal/enum"

type Event struct {
	Event    EventDetails  `json:"event"`
	Metadata EventMetadata `json:"metadata"`
}

type EventDetails struct {
	Id         string          `json:"id"`
	AccountId  string          `json:"accountId"`
	InboxId    string          `json:"inboxId"`
	EntityId   string          `json:"entityId"`
	EntityType enum.EntityType `json:"entityType"`
	EventType  string          `json:"eventType"`
	Data       interface{}     `json:"data"`
}

type EventMetadata struct {
	UberTraceId string `json:"uber-trace-id"`
	AppSource   string `json:"appSource"`
	RequestId   string `json:"requestId,omitempty"`
	Timestamp   string `json:"timestamp"`
}
