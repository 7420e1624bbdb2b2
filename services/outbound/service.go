package outbound

import (
	"context"
	"strings"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

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
	ChannelID = "agentmail"

	// DeliveryMode collects the whole reply and sends it as one email
	DeliveryMode = "direct"
	// TextChunkLimit is effectively unbounded, email is never chunked
	TextChunkLimit = 100000
)

// AgentTool describes a tool the channel exposes to the agent
type AgentTool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// AgentTools is intentionally empty so the agent can never originate mail, it can only be replied through
func AgentTools() []AgentTool {
	return []AgentTool{}
}

type outboundService struct {
	configLoader interfaces.ConfigLoader
	clients      interfaces.ClientResolver
	publisher    interfaces.EventPublisher
	env          func() accounts.Env
	log          logger.Logger
}

type Option func(*outboundService)

func WithEventPublisher(publisher interfaces.EventPublisher) Option {
	return func(s *outboundService) {
		s.publisher = publisher
	}
}

func WithEnv(env func() accounts.Env) Option {
	return func(s *outboundService) {
		s.env = env
	}
}

func NewOutboundService(configLoader interfaces.ConfigLoader, clients interfaces.ClientResolver, log logger.Logger, opts ...Option) interfaces.OutboundService {
	s := &outboundService{
		configLoader: configLoader,
		clients:      clients,
		env:          accounts.OSEnv,
		log:          log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *outboundService) SendReply(ctx context.Context, client interfaces.AgentMailClient, inboxID, messageID, text, html string) (*dto.SendMessageResponse, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "outboundService.SendReply")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, messageID)

	response, err := client.ReplyAll(ctx, inboxID, messageID, dto.ReplyRequest{Text: text, HTML: html})
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	s.publishReplySent(ctx, inboxID, messageID, response)
	return response, nil
}

func (s *outboundService) SendText(ctx context.Context, request dto.OutboundRequest) (*dto.OutboundResult, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "outboundService.SendText")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.LogKV("replyToId", request.ReplyToID)

	// reply-only, checked before any network call
	if strings.TrimSpace(request.ReplyToID) == "" {
		tracing.TraceErr(span, mcerrors.ErrRepliesOnly)
		return nil, mcerrors.ErrRepliesOnly
	}

	cfg, err := s.configLoader.LoadConfig()
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "loading channel config")
	}

	client, inboxID, err := s.clients.ClientAndInbox(cfg, s.env())
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	response, err := s.SendReply(ctx, client, inboxID, request.ReplyToID, request.Text, request.HTML)
	if err != nil {
		return nil, err
	}

	return &dto.OutboundResult{
		Channel:   ChannelID,
		MessageID: response.MessageID,
		ThreadID:  response.ThreadID,
	}, nil
}

// SendMedia has no multipart support, the media url is appended to the text body
func (s *outboundService) SendMedia(ctx context.Context, request dto.OutboundRequest) (*dto.OutboundResult, error) {
	if request.MediaURL != "" {
		request.Text = request.Text + "\n\nAttachment: " + request.MediaURL
	}
	return s.SendText(ctx, request)
}

func (s *outboundService) publishReplySent(ctx context.Context, inboxID, inReplyTo string, response *dto.SendMessageResponse) {
	if s.publisher == nil || response == nil {
		return
	}
	ctx = utils.WithAccount(ctx, utils.GetAccountIDFromContext(ctx), inboxID)
	err := s.publisher.PublishFanoutEvent(ctx, response.MessageID, enum.EMAIL_REPLY, dto.AgentMailReplySent{
		InReplyTo: inReplyTo,
		MessageID: response.MessageID,
		ThreadID:  response.ThreadID,
		Kind:      enum.ReplyFinal.String(),
		SentAt:    utils.Now(),
	})
	if err != nil {
		s.log.Warnf("[%s] failed to publish reply sent event: %v", inboxID, err)
	}
}
