package mocks

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/customeros/mailchannel/dto"
	"github.com/customeros/mailchannel/interfaces"
)

type AgentMailClient struct {
	mock.Mock
}

func (m *AgentMailClient) GetInbox(ctx context.Context, inboxID string) (*dto.Inbox, error) {
	args := m.Called(ctx, inboxID)
	inbox, _ := args.Get(0).(*dto.Inbox)
	return inbox, args.Error(1)
}

func (m *AgentMailClient) ListInboxes(ctx context.Context) ([]dto.Inbox, error) {
	args := m.Called(ctx)
	inboxes, _ := args.Get(0).([]dto.Inbox)
	return inboxes, args.Error(1)
}

func (m *AgentMailClient) CreateInbox(ctx context.Context, request dto.CreateInboxRequest) (*dto.Inbox, error) {
	args := m.Called(ctx, request)
	inbox, _ := args.Get(0).(*dto.Inbox)
	return inbox, args.Error(1)
}

func (m *AgentMailClient) GetMessage(ctx context.Context, inboxID, messageID string) (*dto.Message, error) {
	args := m.Called(ctx, inboxID, messageID)
	message, _ := args.Get(0).(*dto.Message)
	return message, args.Error(1)
}

func (m *AgentMailClient) UpdateMessage(ctx context.Context, inboxID, messageID string, request dto.UpdateMessageRequest) (*dto.Message, error) {
	args := m.Called(ctx, inboxID, messageID, request)
	message, _ := args.Get(0).(*dto.Message)
	return message, args.Error(1)
}

func (m *AgentMailClient) ReplyAll(ctx context.Context, inboxID, messageID string, request dto.ReplyRequest) (*dto.SendMessageResponse, error) {
	args := m.Called(ctx, inboxID, messageID, request)
	response, _ := args.Get(0).(*dto.SendMessageResponse)
	return response, args.Error(1)
}

func (m *AgentMailClient) GetAttachment(ctx context.Context, inboxID, messageID, attachmentID string) ([]byte, error) {
	args := m.Called(ctx, inboxID, messageID, attachmentID)
	content, _ := args.Get(0).([]byte)
	return content, args.Error(1)
}

func (m *AgentMailClient) GetThread(ctx context.Context, inboxID, threadID string) (*dto.Thread, error) {
	args := m.Called(ctx, inboxID, threadID)
	thread, _ := args.Get(0).(*dto.Thread)
	return thread, args.Error(1)
}

func (m *AgentMailClient) Connect(ctx context.Context) (interfaces.AgentMailSocket, error) {
	args := m.Called(ctx)
	socket, _ := args.Get(0).(interfaces.AgentMailSocket)
	return socket, args.Error(1)
}

// Socket is an in-memory socket driven by the test through Push
type Socket struct {
	mutex      sync.Mutex
	events     chan dto.SocketEvent
	subscribed []dto.SubscribeFrame
	closed     bool
	closeCount int
}

func NewSocket() *Socket {
	return &Socket{events: make(chan dto.SocketEvent, 64)}
}

func (s *Socket) Push(event dto.SocketEvent) {
	s.events <- event
}

// End closes the event stream as the transport does when reconnects are exhausted
func (s *Socket) End() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
}

func (s *Socket) Events() <-chan dto.SocketEvent {
	return s.events
}

func (s *Socket) Subscribe(frame dto.SubscribeFrame) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.subscribed = append(s.subscribed, frame)
	return nil
}

func (s *Socket) Close() error {
	s.mutex.Lock()
	s.closeCount++
	s.mutex.Unlock()
	return nil
}

func (s *Socket) Subscriptions() []dto.SubscribeFrame {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return append([]dto.SubscribeFrame(nil), s.subscribed...)
}

func (s *Socket) CloseCount() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.closeCount
}

type ClientProvider struct {
	Result interfaces.AgentMailClient
	Err    error
	Keys   []string
}

func (p *ClientProvider) Client(apiKey string) (interfaces.AgentMailClient, error) {
	p.Keys = append(p.Keys, apiKey)
	return p.Result, p.Err
}
