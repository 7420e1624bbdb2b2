package monitor

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/customeros/mailchannel/config"
	"github.com/customeros/mailchannel/dto"
	"github.com/customeros/mailchannel/interfaces"
	"github.com/customeros/mailchannel/internal/enum"
	"github.com/customeros/mailchannel/internal/logger"
	"github.com/customeros/mailchannel/internal/mocks"
	"github.com/customeros/mailchannel/services/accounts"
	"github.com/customeros/mailchannel/services/agentmail"
	"github.com/customeros/mailchannel/services/attachments"
	"github.com/customeros/mailchannel/services/email_filter"
	"github.com/customeros/mailchannel/services/outbound"
	"github.com/customeros/mailchannel/services/thread"
)

const (
	testInbox = "bot@agentmail.to"
	waitFor   = 5 * time.Second
	tick      = 10 * time.Millisecond
)

func getLogger() logger.Logger {
	appLogger := logger.NewAppLogger(&logger.Config{
		DevMode:  true,
		LogLevel: "debug",
	})
	appLogger.InitLogger()
	return appLogger
}

type harness struct {
	client  *mocks.AgentMailClient
	socket  *mocks.Socket
	session *mocks.Session
	reply   *mocks.Reply
	system  *mocks.System
	monitor *Monitor
}

func newHarness(t *testing.T, section *config.AgentMailChannelConfig) *harness {
	h := &harness{
		client:  &mocks.AgentMailClient{},
		socket:  mocks.NewSocket(),
		session: &mocks.Session{},
		reply:   &mocks.Reply{},
		system:  &mocks.System{},
	}
	log := getLogger()
	cfg := &config.HostConfig{Channels: config.ChannelsConfig{AgentMail: section}}
	runtime := interfaces.HostRuntime{
		Config:  &mocks.ConfigLoader{Config: cfg},
		Routing: &mocks.Routing{},
		Session: h.session,
		Reply:   h.reply,
		System:  h.system,
		Logging: &mocks.Logging{Log: log, Verbose: true},
	}
	outboundService := outbound.NewOutboundService(runtime.Config, agentmail.NewClientCacheWithFactory(nil), log)
	h.monitor = NewMonitor(runtime,
		&mocks.ClientProvider{Result: h.client},
		NewStateStore(),
		email_filter.NewEmailFilterService(),
		thread.NewThreadService(log),
		attachments.NewDownloader(t.TempDir(), nil, log),
		outboundService,
		WithEnv(func() accounts.Env { return accounts.Env{} }),
	)
	return h
}

func configured(allowFrom ...string) *config.AgentMailChannelConfig {
	return &config.AgentMailChannelConfig{Token: "am_1", EmailAddress: testInbox, AllowFrom: allowFrom}
}

func (h *harness) start(t *testing.T) (context.CancelFunc, <-chan error) {
	h.client.On("Connect", mock.Anything).Return(h.socket, nil).Once()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- h.monitor.Run(ctx, "default")
	}()
	return cancel, done
}

func waitDone(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(waitFor):
		t.Fatal("monitor did not stop")
		return nil
	}
}

func (h *harness) state() RuntimeState {
	state, _ := h.monitor.State().Get("default")
	return state
}

func messageEvent(message *dto.Message) dto.SocketEvent {
	return dto.SocketEvent{Kind: enum.SocketMessage, Frame: &dto.SocketFrame{
		Type:      dto.SocketFrameEvent,
		EventType: dto.EventTypeMessageReceived,
		Message:   message,
	}}
}

func janeMessage() *dto.Message {
	return &dto.Message{
		MessageID:     "msg_1",
		ThreadID:      "thr_1",
		From:          "Jane <jane@good.com>",
		To:            []string{testInbox},
		Subject:       "Quote",
		ExtractedText: "Can you send a quote?\nThanks",
		Timestamp:     time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		Attachments:   []dto.Attachment{{AttachmentID: "att_1", Filename: "report.pdf", ContentType: "application/pdf", Size: 10}},
	}
}

func twoMessageThread() *dto.Thread {
	return &dto.Thread{
		ThreadID:     "thr_1",
		Subject:      "Quote",
		Senders:      []string{"jane@good.com"},
		Recipients:   []string{testInbox},
		MessageCount: 2,
		Messages: []dto.Message{
			{From: "Jane <jane@good.com>", To: []string{testInbox}, Text: "first"},
			{From: "Jane <jane@good.com>", To: []string{testInbox}, ExtractedText: "Can you send a quote?"},
		},
	}
}

func TestRun_DisabledIsNoop(t *testing.T) {
	// Arrange
	disabled := false
	section := configured()
	section.Enabled = &disabled
	h := newHarness(t, section)

	// Act
	err := h.monitor.Run(context.Background(), "default")

	// Assert
	assert.NoError(t, err)
	h.client.AssertNotCalled(t, "Connect", mock.Anything)
	_, recorded := h.monitor.State().Get("default")
	assert.False(t, recorded)
}

func TestRun_NotConfiguredIsNoop(t *testing.T) {
	// Arrange
	h := newHarness(t, &config.AgentMailChannelConfig{Token: "am_1"})

	// Act
	err := h.monitor.Run(context.Background(), "default")

	// Assert
	assert.NoError(t, err)
	h.client.AssertNotCalled(t, "Connect", mock.Anything)
}

func TestRun_ConnectFailureRecordsState(t *testing.T) {
	// Arrange
	h := newHarness(t, configured())
	h.client.On("Connect", mock.Anything).Return(nil, assert.AnError)

	// Act
	err := h.monitor.Run(context.Background(), "default")

	// Assert
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
	state := h.state()
	assert.False(t, state.Running)
	assert.Equal(t, assert.AnError.Error(), state.LastError)
	assert.NotNil(t, state.LastStartAt)
	assert.NotNil(t, state.LastStopAt)
	assert.Equal(t, enum.MonitorStopped, state.Phase)
}

func TestRun_CancelClosesSocketAndRecordsStop(t *testing.T) {
	// Arrange
	h := newHarness(t, configured())
	cancel, done := h.start(t)
	h.socket.Push(dto.SocketEvent{Kind: enum.SocketOpen})
	require.Eventually(t, func() bool { return len(h.socket.Subscriptions()) == 1 }, waitFor, tick)

	// Act
	cancel()
	err := waitDone(t, done)

	// Assert
	assert.NoError(t, err)
	assert.Equal(t, 1, h.socket.CloseCount())
	state := h.state()
	assert.False(t, state.Running)
	assert.NotNil(t, state.LastStopAt)
	assert.Equal(t, dto.NewSubscribeFrame(testInbox), h.socket.Subscriptions()[0])
}

func TestRun_ReconnectResubscribesAndClearsError(t *testing.T) {
	// Arrange
	h := newHarness(t, configured())
	cancel, done := h.start(t)
	defer func() {
		cancel()
		waitDone(t, done)
	}()

	// Act
	h.socket.Push(dto.SocketEvent{Kind: enum.SocketOpen})
	h.socket.Push(dto.SocketEvent{Kind: enum.SocketError, Err: assert.AnError})
	require.Eventually(t, func() bool { return h.state().LastError == assert.AnError.Error() }, waitFor, tick)
	assert.True(t, h.state().Running)
	h.socket.Push(dto.SocketEvent{Kind: enum.SocketClose, CloseCode: 1006})
	require.Eventually(t, func() bool { return h.state().Phase == enum.MonitorReconnecting }, waitFor, tick)
	h.socket.Push(dto.SocketEvent{Kind: enum.SocketOpen})

	// Assert
	require.Eventually(t, func() bool { return len(h.socket.Subscriptions()) == 2 }, waitFor, tick)
	require.Eventually(t, func() bool { return h.state().LastError == "" }, waitFor, tick)
	assert.Equal(t, enum.MonitorConnected, h.state().Phase)
}

func TestRun_TransportEndReturnsError(t *testing.T) {
	// Arrange
	h := newHarness(t, configured())
	_, done := h.start(t)

	// Act
	h.socket.Push(dto.SocketEvent{Kind: enum.SocketOpen})
	h.socket.End()
	err := waitDone(t, done)

	// Assert
	assert.Equal(t, ErrTransportClosed, err)
	assert.False(t, h.state().Running)
}

func TestRun_InboundHappyPath(t *testing.T) {
	// Arrange
	h := newHarness(t, configured("good.com"))
	h.reply.Payloads = []mocks.ReplyStep{
		{Kind: enum.ReplyTool, Payload: dto.ReplyPayload{}},
		{Kind: enum.ReplyFinal, Payload: dto.ReplyPayload{Text: "Here is your quote."}},
	}
	h.client.On("UpdateMessage", mock.Anything, testInbox, "msg_1", dto.UpdateMessageRequest{AddLabels: []string{"allowed"}}).Return(&dto.Message{}, nil)
	h.client.On("GetAttachment", mock.Anything, testInbox, "msg_1", "att_1").Return([]byte("%PDF"), nil)
	h.client.On("GetThread", mock.Anything, testInbox, "thr_1").Return(twoMessageThread(), nil)
	h.client.On("ReplyAll", mock.Anything, testInbox, "msg_1", dto.ReplyRequest{Text: "Here is your quote."}).
		Return(&dto.SendMessageResponse{MessageID: "msg_2", ThreadID: "thr_1"}, nil)
	cancel, done := h.start(t)

	// Act
	h.socket.Push(dto.SocketEvent{Kind: enum.SocketOpen})
	h.socket.Push(dto.SocketEvent{Kind: enum.SocketMessage, Frame: &dto.SocketFrame{Type: dto.SocketFrameSubscribed, InboxIDs: []string{testInbox}}})
	h.socket.Push(messageEvent(janeMessage()))
	require.Eventually(t, func() bool { return len(h.system.Enqueued()) == 1 }, waitFor, tick)
	cancel()
	require.NoError(t, waitDone(t, done))

	// Assert
	h.client.AssertExpectations(t)

	state := h.state()
	assert.NotNil(t, state.LastInboundAt)
	assert.NotNil(t, state.LastOutboundAt)

	inbound := h.reply.InboundContexts()
	require.Len(t, inbound, 1)
	ctx := inbound[0]
	assert.Equal(t, "jane@good.com", ctx.From)
	assert.Equal(t, testInbox, ctx.To)
	assert.Equal(t, "agent:main:agentmail:dm:jane@good.com", ctx.SessionKey)
	assert.Equal(t, "default", ctx.AccountId)
	assert.Equal(t, "direct", ctx.ChatType)
	assert.Equal(t, "Jane", ctx.SenderName)
	assert.Equal(t, "Jane", ctx.ConversationLabel)
	assert.Equal(t, "jane@good.com", ctx.SenderId)
	assert.Equal(t, "jane", ctx.SenderUsername)
	assert.Equal(t, "agentmail", ctx.Provider)
	assert.Equal(t, "agentmail", ctx.Surface)
	assert.Equal(t, "agentmail", ctx.OriginatingChannel)
	assert.Equal(t, testInbox, ctx.OriginatingTo)
	assert.Equal(t, "msg_1", ctx.MessageSid)
	assert.Equal(t, "thr_1", ctx.MessageThreadId)
	assert.Equal(t, janeMessage().Timestamp.UnixMilli(), ctx.Timestamp)
	assert.True(t, ctx.CommandAuthorized)
	assert.Equal(t, "text", ctx.CommandSource)
	assert.Equal(t, "Can you send a quote?\nThanks", ctx.RawBody)
	assert.Equal(t, "Can you send a quote?\nThanks", ctx.CommandBody)
	assert.Equal(t, "application/pdf", ctx.MediaType)
	assert.True(t, strings.HasSuffix(ctx.MediaPath, "report.pdf"))
	assert.Equal(t, ctx.MediaPath, ctx.MediaUrl)
	assert.Equal(t, []string{ctx.MediaPath}, ctx.MediaPaths)
	assert.Equal(t, []string{"application/pdf"}, ctx.MediaTypes)
	assert.True(t, strings.HasPrefix(ctx.Body, "[Email Jane] Subject: Quote\nSenders: jane@good.com"))
	assert.True(t, strings.HasSuffix(ctx.Body, "\n[email message_id: msg_1 thread: thr_1]\n[Note: Your response will be sent automatically as an email reply. Do not use reply_to_message or send_message tools to respond to this email.]"))

	sessions := h.session.Requests()
	require.Len(t, sessions, 1)
	assert.Equal(t, "agent:main:agentmail:dm:jane@good.com", sessions[0].SessionKey)
	assert.Equal(t, &dto.LastRouteUpdate{SessionKey: "agent:main:main", Channel: "agentmail", To: testInbox, AccountID: "default"}, sessions[0].UpdateLastRoute)

	events := h.system.Enqueued()
	assert.Equal(t, `Email from Jane: Can you send a quote?\nThanks`, events[0].Text)
	assert.Equal(t, dto.SystemEventOptions{SessionKey: "agent:main:agentmail:dm:jane@good.com", ContextKey: "agentmail:message:msg_1"}, events[0].Options)
}

func TestRun_FilteredSenderStopsPipeline(t *testing.T) {
	// Arrange
	h := newHarness(t, configured("trusted.com"))
	cancel, done := h.start(t)
	message := janeMessage()
	message.From = "stranger@unknown.com"

	// Act
	h.socket.Push(dto.SocketEvent{Kind: enum.SocketOpen})
	h.socket.Push(messageEvent(message))
	// events are handled in order, so the marker error lands after the message was processed
	h.socket.Push(dto.SocketEvent{Kind: enum.SocketError, Err: assert.AnError})
	require.Eventually(t, func() bool { return h.state().LastError != "" }, waitFor, tick)
	cancel()
	require.NoError(t, waitDone(t, done))

	// Assert
	h.client.AssertNotCalled(t, "UpdateMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, h.session.Requests())
	assert.Empty(t, h.reply.InboundContexts())
	assert.Nil(t, h.state().LastInboundAt)
}

func TestRun_ThreadFailureFallsBackToMessageBody(t *testing.T) {
	// Arrange
	h := newHarness(t, configured())
	message := janeMessage()
	message.Attachments = nil
	h.client.On("UpdateMessage", mock.Anything, testInbox, "msg_1", mock.Anything).Return(nil, assert.AnError)
	h.client.On("GetThread", mock.Anything, testInbox, "thr_1").Return(nil, assert.AnError)
	cancel, done := h.start(t)

	// Act
	h.socket.Push(dto.SocketEvent{Kind: enum.SocketOpen})
	h.socket.Push(messageEvent(message))
	require.Eventually(t, func() bool { return len(h.reply.InboundContexts()) == 1 }, waitFor, tick)
	cancel()
	require.NoError(t, waitDone(t, done))

	// Assert
	inbound := h.reply.InboundContexts()[0]
	assert.True(t, strings.HasPrefix(inbound.Body, "[Email Jane] Subject: Quote\n\nCan you send a quote?\nThanks\n[email message_id: msg_1"))
	assert.Empty(t, inbound.MediaPath)
	assert.Nil(t, inbound.MediaPaths)
	// no final reply, no system event
	assert.Empty(t, h.system.Enqueued())
	assert.Nil(t, h.state().LastOutboundAt)
}

func TestRun_ReplyFailureIsReportedNotFatal(t *testing.T) {
	// Arrange
	h := newHarness(t, configured())
	message := janeMessage()
	message.Attachments = nil
	h.reply.Payloads = []mocks.ReplyStep{{Kind: enum.ReplyFinal, Payload: dto.ReplyPayload{Text: "hi"}}}
	h.client.On("UpdateMessage", mock.Anything, testInbox, "msg_1", mock.Anything).Return(&dto.Message{}, nil)
	h.client.On("GetThread", mock.Anything, testInbox, "thr_1").Return(twoMessageThread(), nil)
	h.client.On("ReplyAll", mock.Anything, testInbox, "msg_1", mock.Anything).Return(nil, assert.AnError)
	cancel, done := h.start(t)

	// Act
	h.socket.Push(dto.SocketEvent{Kind: enum.SocketOpen})
	h.socket.Push(messageEvent(message))
	h.socket.Push(dto.SocketEvent{Kind: enum.SocketError, Err: assert.AnError})
	require.Eventually(t, func() bool { return h.state().LastError != "" }, waitFor, tick)
	cancel()
	require.NoError(t, waitDone(t, done))

	// Assert
	assert.Nil(t, h.state().LastOutboundAt)
	assert.Empty(t, h.system.Enqueued())
}

func TestHandleFrame_IgnoresOtherShapes(t *testing.T) {
	// Arrange
	h := newHarness(t, configured())
	conn := &connection{accountID: "default", inboxID: testInbox, client: h.client, socket: h.socket, log: getLogger()}
	frames := []*dto.SocketFrame{
		nil,
		{Type: "event", EventType: "message.sent", Message: janeMessage()},
		{Type: "event", EventType: dto.EventTypeMessageReceived},
		{Type: "unknown"},
	}

	// Act
	for _, frame := range frames {
		h.monitor.handleFrame(context.Background(), conn, frame)
	}

	// Assert
	assert.Empty(t, h.reply.InboundContexts())
	h.client.AssertNotCalled(t, "UpdateMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPreviewSource_ConvertsHTMLOnlyBodies(t *testing.T) {
	message := &dto.Message{HTML: "<p>Hello <b>there</b></p>"}
	assert.Equal(t, "Hello there", previewSource(message, message.HTML))

	plain := &dto.Message{Text: "<not html"}
	assert.Equal(t, "<not html", previewSource(plain, plain.Text))
}

func TestPreviewSource_ConvertsExtractedHTMLChosenOverText(t *testing.T) {
	// Arrange
	message := &dto.Message{ExtractedHTML: "<div>Quarterly <i>numbers</i></div>", Text: "plain fallback"}
	body := thread.ExtractMessageBody(message)

	// Act
	preview := previewSource(message, body)

	// Assert
	assert.Equal(t, message.ExtractedHTML, body)
	assert.Equal(t, "Quarterly numbers", preview)
}

func TestPreviewSource_KeepsTextTierUntouched(t *testing.T) {
	message := &dto.Message{ExtractedText: "<b>literal</b>", HTML: "<p>ignored</p>"}

	assert.Equal(t, "<b>literal</b>", previewSource(message, thread.ExtractMessageBody(message)))
}
