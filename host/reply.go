package host

import (
	"context"
	"strings"

	"github.com/opentracing/opentracing-go"

	"github.com/customeros/mailchannel/config"
	"github.com/customeros/mailchannel/dto"
	"github.com/customeros/mailchannel/interfaces"
	"github.com/customeros/mailchannel/internal/enum"
	"github.com/customeros/mailchannel/internal/tracing"
)

type replyCapability struct {
	agent interfaces.AgentRuntimeClient
}

func NewReplyCapability(agent interfaces.AgentRuntimeClient) interfaces.ReplyCapability {
	return &replyCapability{agent: agent}
}

func (r *replyCapability) ResolveEnvelopeFormatOptions(cfg *config.HostConfig) dto.EnvelopeOptions {
	return ResolveEnvelopeFormatOptions(cfg)
}

func (r *replyCapability) FormatAgentEnvelope(envelope dto.AgentEnvelope) string {
	return FormatAgentEnvelope(envelope)
}

func (r *replyCapability) FinalizeInboundContext(inbound dto.InboundContext) dto.InboundContext {
	return FinalizeInboundContext(inbound)
}

func (r *replyCapability) ResolveHumanDelayConfig(cfg *config.HostConfig, agentID string) dto.HumanDelay {
	return ResolveHumanDelayConfig(cfg, agentID)
}

func (r *replyCapability) CreateReplyDispatcher(options dto.ReplyDispatcherOptions) interfaces.ReplyDispatcher {
	return NewReplyDispatcher(options)
}

func (r *replyCapability) DispatchReplyFromConfig(ctx context.Context, inbound dto.InboundContext, cfg *config.HostConfig, dispatcher interfaces.ReplyDispatcher) (dto.DispatchResult, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ReplyCapability.DispatchReplyFromConfig")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, inbound.MessageSid)

	replies, err := r.agent.Run(ctx, inbound)
	if err != nil {
		tracing.TraceErr(span, err)
		return dto.DispatchResult{}, err
	}

	if !cfg.AgentMail().IsBlockStreaming() {
		replies = foldBlockReplies(replies)
	}

	var result dto.DispatchResult
	for _, reply := range replies {
		if strings.TrimSpace(reply.Text) == "" && reply.MediaURL == "" {
			continue
		}
		kind := reply.Kind
		if kind == "" {
			kind = enum.ReplyFinal
		}
		if !dispatcher.Dispatch(ctx, dto.ReplyPayload{Text: reply.Text, MediaURL: reply.MediaURL}, kind) {
			continue
		}
		switch kind {
		case enum.ReplyTool:
			result.Counts.Tool++
		case enum.ReplyBlock:
			result.Counts.Block++
		default:
			result.Counts.Final++
		}
	}
	result.QueuedFinal = result.Counts.Final > 0

	tracing.LogObjectAsJson(span, "result", result)
	return result, nil
}

// foldBlockReplies merges streamed block text into the next final reply, so one email goes out
func foldBlockReplies(replies []dto.AgentReply) []dto.AgentReply {
	var folded []dto.AgentReply
	var pending []string

	for _, reply := range replies {
		switch reply.Kind {
		case enum.ReplyBlock:
			if text := strings.TrimSpace(reply.Text); text != "" {
				pending = append(pending, text)
			}
		case enum.ReplyTool:
			folded = append(folded, reply)
		default:
			if text := strings.TrimSpace(reply.Text); text != "" {
				pending = append(pending, text)
			}
			reply.Kind = enum.ReplyFinal
			reply.Text = strings.Join(pending, "\n\n")
			pending = nil
			folded = append(folded, reply)
		}
	}

	if len(pending) > 0 {
		folded = append(folded, dto.AgentReply{Kind: enum.ReplyFinal, Text: strings.Join(pending, "\n\n")})
	}
	return folded
}

// FinalizeInboundContext fills the fields every channel leaves to the host
func FinalizeInboundContext(inbound dto.InboundContext) dto.InboundContext {
	inbound.From = strings.TrimSpace(inbound.From)
	inbound.To = strings.TrimSpace(inbound.To)
	inbound.SessionKey = strings.TrimSpace(inbound.SessionKey)
	inbound.SenderName = strings.TrimSpace(inbound.SenderName)
	inbound.RawBody = strings.TrimSpace(inbound.RawBody)
	inbound.CommandBody = strings.TrimSpace(inbound.CommandBody)

	if inbound.ChatType == "" {
		inbound.ChatType = "direct"
	}
	if inbound.CommandBody == "" {
		inbound.CommandBody = inbound.RawBody
	}
	if inbound.ConversationLabel == "" {
		inbound.ConversationLabel = inbound.SenderName
	}
	return inbound
}
