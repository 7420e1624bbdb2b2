package monitor

import (
	"context"
	"strings"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/mailchannel/config"
	"github.com/customeros/mailchannel/dto"
	"github.com/customeros/mailchannel/interfaces"
	"github.com/customeros/mailchannel/internal/enum"
	mcerrors "github.com/customeros/mailchannel/internal/errors"
	"github.com/customeros/mailchannel/internal/logger"
	"github.com/customeros/mailchannel/internal/tracing"
	"github.com/customeros/mailchannel/internal/utils"
	"github.com/customeros/mailchannel/services/accounts"
)

const (
	ChannelID  = "agentmail"
	moduleName = "agentmail-monitor"
)

var ErrTransportClosed = errors.New("agentmail websocket closed permanently")

type Monitor struct {
	runtime     interfaces.HostRuntime
	clients     interfaces.AgentMailClientProvider
	state       *StateStore
	filter      interfaces.EmailFilterService
	threads     interfaces.ThreadService
	attachments interfaces.AttachmentDownloader
	outbound    interfaces.OutboundService
	publisher   interfaces.EventPublisher
	env         func() accounts.Env
}

type Option func(*Monitor)

func WithEventPublisher(publisher interfaces.EventPublisher) Option {
	return func(m *Monitor) {
		m.publisher = publisher
	}
}

func WithEnv(env func() accounts.Env) Option {
	return func(m *Monitor) {
		m.env = env
	}
}

func NewMonitor(runtime interfaces.HostRuntime, clients interfaces.AgentMailClientProvider, state *StateStore,
	filter interfaces.EmailFilterService, threads interfaces.ThreadService, attachments interfaces.AttachmentDownloader,
	outbound interfaces.OutboundService, opts ...Option) *Monitor {
	m := &Monitor{
		runtime:     runtime,
		clients:     clients,
		state:       state,
		filter:      filter,
		threads:     threads,
		attachments: attachments,
		outbound:    outbound,
		env:         accounts.OSEnv,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Monitor) State() *StateStore {
	return m.state
}

// connection is the per-run state of one account monitor
type connection struct {
	accountID string
	inboxID   string
	allowFrom []string
	cfg       *config.HostConfig
	client    interfaces.AgentMailClient
	socket    interfaces.AgentMailSocket
	log       logger.Logger
	verbose   bool
	opened    int
}

// Run monitors one account until ctx is cancelled or the transport gives up.
// A disabled or unconfigured channel returns nil without connecting.
func (m *Monitor) Run(ctx context.Context, accountID string) error {
	accountID = accounts.NormalizeAccountID(accountID)

	cfg, err := m.runtime.Config.LoadConfig()
	if err != nil {
		return errors.Wrap(err, "loading channel config")
	}
	section := cfg.AgentMail()
	if section.Enabled != nil && !*section.Enabled {
		return nil
	}

	log := m.runtime.Logging.ChildLogger(moduleName)
	creds := accounts.ResolveCredentials(section, m.env())
	if creds.APIKey == "" || creds.InboxID == "" {
		log.Warn(mcerrors.ErrNotConfigured.Error())
		return nil
	}

	client, err := m.clients.Client(creds.APIKey)
	if err != nil {
		return errors.Wrap(err, "creating agentmail client")
	}

	ctx = utils.WithAccount(ctx, accountID, creds.InboxID)
	conn := &connection{
		accountID: accountID,
		inboxID:   creds.InboxID,
		allowFrom: section.AllowFrom,
		cfg:       cfg,
		client:    client,
		log:       log,
		verbose:   m.runtime.Logging.ShouldLogVerbose(),
	}

	now := utils.Now()
	m.state.Record(accountID, StatePatch{Phase: enum.MonitorConnecting, Running: boolPtr(true), LastStartAt: &now, LastError: stringPtr("")})
	log.Infof("AgentMail: connecting WebSocket for %s", conn.inboxID)

	socket, err := client.Connect(ctx)
	if err != nil {
		log.Errorf("AgentMail WebSocket connection failed: %v", err)
		stoppedAt := utils.Now()
		m.state.Record(accountID, StatePatch{Phase: enum.MonitorStopped, Running: boolPtr(false), LastError: stringPtr(err.Error()), LastStopAt: &stoppedAt})
		return errors.Wrap(err, "connecting agentmail websocket")
	}
	conn.socket = socket

	for {
		select {
		case <-ctx.Done():
			m.stop(conn)
			return nil
		case event, ok := <-socket.Events():
			if !ok {
				log.Errorf("AgentMail: WebSocket closed permanently for %s", conn.inboxID)
				stoppedAt := utils.Now()
				m.state.Record(accountID, StatePatch{Phase: enum.MonitorStopped, Running: boolPtr(false), LastStopAt: &stoppedAt})
				return ErrTransportClosed
			}
			if ctx.Err() != nil {
				m.stop(conn)
				return nil
			}
			m.dispatch(ctx, conn, event)
		}
	}
}

func (m *Monitor) stop(conn *connection) {
	conn.verbosef("agentmail: stopping monitor")
	if err := conn.socket.Close(); err != nil {
		conn.log.Warnf("AgentMail: error closing WebSocket: %v", err)
	}
	stoppedAt := utils.Now()
	m.state.Record(conn.accountID, StatePatch{Phase: enum.MonitorStopped, Running: boolPtr(false), LastStopAt: &stoppedAt})
}

// dispatch is the single transition function of the monitor state machine
func (m *Monitor) dispatch(ctx context.Context, conn *connection, event dto.SocketEvent) {
	switch event.Kind {
	case enum.SocketOpen:
		conn.opened++
		isReconnect := conn.opened > 1
		if isReconnect {
			conn.log.Infof("AgentMail: WebSocket reconnected, subscribing to %s", conn.inboxID)
		} else {
			conn.log.Infof("AgentMail: WebSocket connected, subscribing to %s", conn.inboxID)
		}
		m.state.Record(conn.accountID, StatePatch{Phase: enum.MonitorConnected})
		if err := conn.socket.Subscribe(dto.NewSubscribeFrame(conn.inboxID)); err != nil {
			conn.log.Errorf("AgentMail: subscribe failed: %v", err)
			m.state.Record(conn.accountID, StatePatch{LastError: stringPtr(err.Error())})
			return
		}
		if isReconnect {
			m.state.Record(conn.accountID, StatePatch{LastError: stringPtr("")})
		}

	case enum.SocketMessage:
		m.handleFrame(ctx, conn, event.Frame)

	case enum.SocketError:
		errText := "unknown websocket error"
		if event.Err != nil {
			errText = event.Err.Error()
		}
		conn.log.Errorf("AgentMail WebSocket error: %s", errText)
		m.state.Record(conn.accountID, StatePatch{LastError: stringPtr(errText)})

	case enum.SocketClose:
		m.state.Record(conn.accountID, StatePatch{Phase: enum.MonitorReconnecting})
		conn.log.Warnf("AgentMail: WebSocket closed (code: %d), will attempt reconnect", event.CloseCode)
	}
}

func (m *Monitor) handleFrame(ctx context.Context, conn *connection, frame *dto.SocketFrame) {
	if frame == nil {
		return
	}
	if frame.Type == dto.SocketFrameSubscribed {
		inboxes := "inbox"
		if len(frame.InboxIDs) > 0 {
			inboxes = strings.Join(frame.InboxIDs, ", ")
		}
		conn.log.Infof("AgentMail: subscribed to %s", inboxes)
		return
	}
	if frame.Type != dto.SocketFrameEvent || frame.EventType != dto.EventTypeMessageReceived || frame.Message == nil {
		return
	}

	span, ctx := opentracing.StartSpanFromContext(ctx, "Monitor.HandleMessageReceived")
	defer span.Finish()
	tracing.SetDefaultMonitorSpanTags(ctx, span)
	tracing.TagEntity(span, frame.Message.MessageID)

	m.processMessage(ctx, conn, frame.Message)
}

func (c *connection) verbosef(template string, args ...interface{}) {
	if c.verbose {
		c.log.Debugf(template, args...)
	}
}
