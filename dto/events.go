package dto

import "time"

// AgentMailInboundReceived is published once an allowed inbound email has been handed to the agent
type AgentMailInboundReceived struct {
	MessageID   string    `json:"messageId"`
	ThreadID    string    `json:"threadId"`
	From        string    `json:"from"`
	SenderName  string    `json:"senderName"`
	Subject     string    `json:"subject,omitempty"`
	SessionKey  string    `json:"sessionKey"`
	Attachments int       `json:"attachments"`
	ReceivedAt  time.Time `json:"receivedAt"`
}

// AgentMailReplySent is published after a reply-all was accepted by the provider
type AgentMailReplySent struct {
	InReplyTo string    `json:"inReplyTo"`
	MessageID string    `json:"messageId"`
	ThreadID  string    `json:"threadId"`
	Kind      string    `json:"kind"`
	SentAt    time.Time `json:"sentAt"`
}

// SystemEventEnqueued carries a host system event for downstream consumers
type SystemEventEnqueued struct {
	Text       string    `json:"text"`
	SessionKey string    `json:"sessionKey"`
	ContextKey string    `json:"contextKey"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
}

// AgentMailReplyRequested asks the channel to reply-all to an inbound message on behalf of another service
type AgentMailReplyRequested struct {
	ReplyToID string `json:"replyToId"`
	AccountID string `json:"accountId,omitempty"`
	Text      string `json:"text"`
	MediaURL  string `json:"mediaUrl,omitempty"`
}
