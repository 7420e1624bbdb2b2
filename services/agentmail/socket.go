package agentmail

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/mailchannel/dto"
	"github.com/customeros/mailchannel/interfaces"
	"github.com/customeros/mailchannel/internal/enum"
	"github.com/customeros/mailchannel/internal/logger"
	"github.com/customeros/mailchannel/internal/tracing"
)

const (
	initialReconnectDelay = 1 * time.Second
	maxReconnectDelay     = 2 * time.Minute
	reconnectMultiplier   = 1.5
	defaultMaxAttempts    = 30
	handshakeTimeout      = 30 * time.Second
	writeTimeout          = 10 * time.Second
	eventBufferSize       = 16
)

var ErrReconnectExhausted = errors.New("agentmail websocket reconnect attempts exhausted")

type socket struct {
	endpoint    string
	header      http.Header
	dialer      *websocket.Dialer
	maxAttempts int
	log         logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	events chan dto.SocketEvent

	connMutex  sync.Mutex
	conn       *websocket.Conn
	writeMutex sync.Mutex

	closeOnce sync.Once
	// overridable in tests
	sleep func(ctx context.Context, d time.Duration) bool
}

// Connect dials the provider websocket. The first dial is synchronous so startup failures surface to the caller;
// later drops are retried in the background and reported as events.
func (c *client) Connect(ctx context.Context) (interfaces.AgentMailSocket, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "AgentMailClient.Connect")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	endpoint, err := socketURL(c.cfg.WebSocketURL, c.apiKey)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.apiKey)

	maxAttempts := c.cfg.MaxReconnectAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	s := newSocket(ctx, endpoint, header, maxAttempts, c.log)
	conn, err := s.dial(ctx)
	if err != nil {
		s.cancel()
		tracing.TraceErr(span, err)
		return nil, err
	}
	s.setConn(conn)

	go s.run(conn)
	return s, nil
}

func newSocket(ctx context.Context, endpoint string, header http.Header, maxAttempts int, log logger.Logger) *socket {
	socketCtx, cancel := context.WithCancel(ctx)
	return &socket{
		endpoint:    endpoint,
		header:      header,
		dialer:      &websocket.Dialer{Proxy: http.ProxyFromEnvironment, HandshakeTimeout: handshakeTimeout},
		maxAttempts: maxAttempts,
		log:         log,
		ctx:         socketCtx,
		cancel:      cancel,
		events:      make(chan dto.SocketEvent, eventBufferSize),
		sleep:       sleepContext,
	}
}

func socketURL(base, apiKey string) (string, error) {
	if base == "" {
		base = "wss://ws.agentmail.to/v0"
	}
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return "", errors.Wrap(err, "invalid agentmail websocket url")
	}
	q := u.Query()
	q.Set("auth_token", apiKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (s *socket) Events() <-chan dto.SocketEvent {
	return s.events
}

func (s *socket) Subscribe(frame dto.SubscribeFrame) error {
	s.connMutex.Lock()
	conn := s.conn
	s.connMutex.Unlock()
	if conn == nil {
		return errors.New("agentmail websocket is not connected")
	}

	payload, err := json.Marshal(frame)
	if err != nil {
		return errors.Wrap(err, "failed to marshal subscribe frame")
	}

	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return errors.Wrap(err, "failed to send subscribe frame")
	}
	return nil
}

func (s *socket) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.cancel()

		s.connMutex.Lock()
		conn := s.conn
		s.conn = nil
		s.connMutex.Unlock()

		if conn != nil {
			s.writeMutex.Lock()
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client closing"),
				time.Now().Add(writeTimeout))
			s.writeMutex.Unlock()
			err = conn.Close()
		}
	})
	return err
}

func (s *socket) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, resp, err := s.dialer.DialContext(ctx, s.endpoint, s.header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, errors.Wrapf(err, "agentmail websocket handshake failed with status %d", resp.StatusCode)
		}
		return nil, errors.Wrap(err, "agentmail websocket dial failed")
	}
	return conn, nil
}

func (s *socket) setConn(conn *websocket.Conn) {
	s.connMutex.Lock()
	s.conn = conn
	s.connMutex.Unlock()
}

func (s *socket) run(conn *websocket.Conn) {
	defer close(s.events)

	for {
		if !s.emit(dto.SocketEvent{Kind: enum.SocketOpen}) {
			return
		}

		code, reason := s.readLoop(conn)
		_ = conn.Close()
		if s.ctx.Err() != nil {
			return
		}
		if !s.emit(dto.SocketEvent{Kind: enum.SocketClose, CloseCode: code, CloseReason: reason}) {
			return
		}

		next, err := s.reconnect()
		if err != nil {
			s.emit(dto.SocketEvent{Kind: enum.SocketError, Err: err})
			return
		}
		conn = next
	}
}

func (s *socket) readLoop(conn *websocket.Conn) (int, string) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if s.ctx.Err() != nil {
				return websocket.CloseNormalClosure, ""
			}
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				return closeErr.Code, closeErr.Text
			}
			s.emit(dto.SocketEvent{Kind: enum.SocketError, Err: err})
			return websocket.CloseAbnormalClosure, err.Error()
		}

		var frame dto.SocketFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			s.log.Warnf("agentmail: dropping undecodable websocket frame: %v", err)
			continue
		}
		if !s.emit(dto.SocketEvent{Kind: enum.SocketMessage, Frame: &frame}) {
			return websocket.CloseNormalClosure, ""
		}
	}
}

// reconnect retries the dial with exponential backoff until the attempt budget is spent
func (s *socket) reconnect() (*websocket.Conn, error) {
	delay := initialReconnectDelay
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		wait := addJitter(delay)
		s.log.Infof("agentmail: reconnecting websocket in %v (attempt %d/%d)", wait, attempt, s.maxAttempts)
		if !s.sleep(s.ctx, wait) {
			return nil, s.ctx.Err()
		}

		conn, err := s.dial(s.ctx)
		if err == nil {
			s.setConn(conn)
			return conn, nil
		}
		if s.ctx.Err() != nil {
			return nil, s.ctx.Err()
		}
		s.emit(dto.SocketEvent{Kind: enum.SocketError, Err: err})

		delay = nextDelay(delay)
	}
	return nil, ErrReconnectExhausted
}

func (s *socket) emit(event dto.SocketEvent) bool {
	select {
	case s.events <- event:
		return true
	case <-s.ctx.Done():
		return false
	}
}

func nextDelay(current time.Duration) time.Duration {
	next := time.Duration(float64(current) * reconnectMultiplier)
	if next > maxReconnectDelay {
		return maxReconnectDelay
	}
	return next
}

// addJitter spreads the delay over 80%..120%
func addJitter(d time.Duration) time.Duration {
	jitter := 0.8 + rand.Float64()*0.4
	return time.Duration(float64(d) * jitter)
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
