package dto

import (
	"context"
	"time"

	"github.com/customeros/mailchannel/internal/enum"
)

type Peer struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

type AgentRoute struct {
	AgentID        string `json:"agentId"`
	Channel        string `json:"channel"`
	AccountID      string `json:"accountId"`
	SessionKey     string `json:"sessionKey"`
	MainSessionKey string `json:"mainSessionKey"`
}

type EnvelopeOptions struct {
	Timezone         string
	IncludeTimestamp bool
	IncludeElapsed   bool
}

type AgentEnvelope struct {
	Channel           string
	From              string
	Timestamp         time.Time
	PreviousTimestamp *time.Time
	Envelope          EnvelopeOptions
	Body              string
}

// InboundContext is the normalized turn handed to the agent runtime
type InboundContext struct {
	Body               string   `json:"Body"`
	RawBody            string   `json:"RawBody"`
	CommandBody        string   `json:"CommandBody"`
	From               string   `json:"From"`
	To                 string   `json:"To"`
	SessionKey         string   `json:"SessionKey"`
	AccountId          string   `json:"AccountId"`
	ChatType           string   `json:"ChatType"`
	ConversationLabel  string   `json:"ConversationLabel"`
	SenderName         string   `json:"SenderName"`
	SenderId           string   `json:"SenderId"`
	SenderUsername     string   `json:"SenderUsername"`
	Provider           string   `json:"Provider"`
	Surface            string   `json:"Surface"`
	MessageSid         string   `json:"MessageSid"`
	MessageThreadId    string   `json:"MessageThreadId"`
	Timestamp          int64    `json:"Timestamp"`
	CommandAuthorized  bool     `json:"CommandAuthorized"`
	CommandSource      string   `json:"CommandSource"`
	OriginatingChannel string   `json:"OriginatingChannel"`
	OriginatingTo      string   `json:"OriginatingTo"`
	MediaPath          string   `json:"MediaPath,omitempty"`
	MediaType          string   `json:"MediaType,omitempty"`
	MediaUrl           string   `json:"MediaUrl,omitempty"`
	MediaPaths         []string `json:"MediaPaths,omitempty"`
	MediaUrls          []string `json:"MediaUrls,omitempty"`
	MediaTypes         []string `json:"MediaTypes,omitempty"`
}

type LastRouteUpdate struct {
	SessionKey string
	Channel    string
	To         string
	AccountID  string
}

type RecordInboundSessionRequest struct {
	StorePath       string
	SessionKey      string
	Ctx             InboundContext
	UpdateLastRoute *LastRouteUpdate
	OnRecordError   func(err error)
}

type HumanDelay struct {
	Mode string
	Min  time.Duration
	Max  time.Duration
}

type ReplyPayload struct {
	Text     string `json:"text,omitempty"`
	MediaURL string `json:"mediaUrl,omitempty"`
}

type ReplyInfo struct {
	Kind enum.ReplyKind
}

type ReplyDispatcherOptions struct {
	HumanDelay HumanDelay
	Deliver    func(ctx context.Context, payload ReplyPayload, info ReplyInfo) error
	OnError    func(err error, info ReplyInfo)
}

type ReplyCounts struct {
	Tool  int `json:"tool"`
	Block int `json:"block"`
	Final int `json:"final"`
}

type DispatchResult struct {
	QueuedFinal bool        `json:"queuedFinal"`
	Counts      ReplyCounts `json:"counts"`
}

type SystemEventOptions struct {
	SessionKey string
	ContextKey string
}

// AgentReply is one payload returned by the agent webhook
type AgentReply struct {
	Kind     enum.ReplyKind `json:"kind"`
	Text     string         `json:"text,omitempty"`
	MediaURL string         `json:"mediaUrl,omitempty"`
}

type AgentWebhookResponse struct {
	Replies []AgentReply `json:"replies"`
}
