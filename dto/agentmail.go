package dto

import (
	"time"

	"github.com/customeros/mailchannel/internal/enum"
)

type Inbox struct {
	InboxID     string    `json:"inbox_id"`
	DisplayName string    `json:"display_name,omitempty"`
	ClientID    string    `json:"client_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type ListInboxesResponse struct {
	Count         int     `json:"count"`
	Limit         int     `json:"limit,omitempty"`
	NextPageToken string  `json:"next_page_token,omitempty"`
	Inboxes       []Inbox `json:"inboxes"`
}

type CreateInboxRequest struct {
	Username    string `json:"username,omitempty"`
	Domain      string `json:"domain,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
}

type Attachment struct {
	AttachmentID string `json:"attachment_id"`
	Filename     string `json:"filename,omitempty"`
	ContentType  string `json:"content_type,omitempty"`
	Size         int64  `json:"size"`
	Inline       bool   `json:"inline,omitempty"`
}

type AttachmentResponse struct {
	AttachmentID string    `json:"attachment_id"`
	Filename     string    `json:"filename,omitempty"`
	ContentType  string    `json:"content_type,omitempty"`
	Size         int64     `json:"size"`
	DownloadURL  string    `json:"download_url"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type Message struct {
	InboxID       string       `json:"inbox_id"`
	ThreadID      string       `json:"thread_id"`
	MessageID     string       `json:"message_id"`
	Labels        []string     `json:"labels,omitempty"`
	Timestamp     time.Time    `json:"timestamp"`
	From          string       `json:"from"`
	ReplyTo       []string     `json:"reply_to,omitempty"`
	To            []string     `json:"to"`
	Cc            []string     `json:"cc,omitempty"`
	Bcc           []string     `json:"bcc,omitempty"`
	Subject       string       `json:"subject,omitempty"`
	Preview       string       `json:"preview,omitempty"`
	Text          string       `json:"text,omitempty"`
	HTML          string       `json:"html,omitempty"`
	ExtractedText string       `json:"extracted_text,omitempty"`
	ExtractedHTML string       `json:"extracted_html,omitempty"`
	Attachments   []Attachment `json:"attachments,omitempty"`
	InReplyTo     string       `json:"in_reply_to,omitempty"`
	References    []string     `json:"references,omitempty"`
	Size          int64        `json:"size,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

type Thread struct {
	InboxID       string       `json:"inbox_id"`
	ThreadID      string       `json:"thread_id"`
	Labels        []string     `json:"labels,omitempty"`
	Timestamp     time.Time    `json:"timestamp"`
	Senders       []string     `json:"senders"`
	Recipients    []string     `json:"recipients"`
	Subject       string       `json:"subject,omitempty"`
	Preview       string       `json:"preview,omitempty"`
	Attachments   []Attachment `json:"attachments,omitempty"`
	LastMessageID string       `json:"last_message_id,omitempty"`
	MessageCount  int          `json:"message_count"`
	Size          int64        `json:"size,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
	Messages      []Message    `json:"messages"`
}

type UpdateMessageRequest struct {
	AddLabels    []string `json:"add_labels,omitempty"`
	RemoveLabels []string `json:"remove_labels,omitempty"`
}

type ReplyRequest struct {
	Text   string   `json:"text,omitempty"`
	HTML   string   `json:"html,omitempty"`
	Labels []string `json:"labels,omitempty"`
}

type SendMessageResponse struct {
	MessageID string `json:"message_id"`
	ThreadID  string `json:"thread_id"`
}

const (
	SocketFrameSubscribe     = "subscribe"
	SocketFrameSubscribed    = "subscribed"
	SocketFrameEvent         = "event"
	EventTypeMessageReceived = "message.received"
)

// SubscribeFrame is sent on every (re)connect to receive inbox events
type SubscribeFrame struct {
	Type       string   `json:"type"`
	InboxIDs   []string `json:"inbox_ids"`
	EventTypes []string `json:"event_types"`
}

func NewSubscribeFrame(inboxID string) SubscribeFrame {
	return SubscribeFrame{
		Type:       SocketFrameSubscribe,
		InboxIDs:   []string{inboxID},
		EventTypes: []string{EventTypeMessageReceived},
	}
}

// SocketFrame is a server frame received over the websocket
type SocketFrame struct {
	Type      string   `json:"type"`
	EventType string   `json:"event_type,omitempty"`
	EventID   string   `json:"event_id,omitempty"`
	InboxIDs  []string `json:"inbox_ids,omitempty"`
	Message   *Message `json:"message,omitempty"`
	Thread    *Thread  `json:"thread,omitempty"`
}

// SocketEvent is what the socket transport hands to its consumer
type SocketEvent struct {
	Kind        enum.SocketEventKind
	Frame       *SocketFrame
	Err         error
	CloseCode   int
	CloseReason string
}

type OutboundRequest struct {
	To        string `json:"to,omitempty"`
	Text      string `json:"text"`
	HTML      string `json:"html,omitempty"`
	MediaURL  string `json:"mediaUrl,omitempty"`
	ReplyToID string `json:"replyToId"`
	AccountID string `json:"accountId,omitempty"`
}

type OutboundResult struct {
	Channel   string `json:"channel"`
	MessageID string `json:"messageId"`
	ThreadID  string `json:"threadId,omitempty"`
}

// DownloadedAttachment is an attachment saved on local disk for the agent
type DownloadedAttachment struct {
	Path        string `json:"path"`
	ContentType string `json:"contentType"`
	Filename    string `json:"filename"`
}
