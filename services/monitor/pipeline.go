package monitor

import (
	"context"
	"fmt"

	"github.com/customeros/mailchannel/dto"
	"github.com/customeros/mailchannel/internal/enum"
	"github.com/customeros/mailchannel/internal/utils"
	"github.com/customeros/mailchannel/services/thread"
)

const (
	previewLength = 200

	replyNote = "[Note: Your response will be sent automatically as an email reply. " +
		"Do not use reply_to_message or send_message tools to respond to this email.]"
)

// processMessage runs one inbound email end to end. Provider failures degrade the context, they never abort.
func (m *Monitor) processMessage(ctx context.Context, conn *connection, message *dto.Message) {
	senderEmail := utils.ParseEmailFromAddress(message.From)
	conn.verbosef("agentmail: received message from %s", senderEmail)

	if !m.filter.IsSenderAllowed(senderEmail, conn.allowFrom) {
		conn.verbosef("agentmail: sender %s not in allowFrom", senderEmail)
		return
	}

	if err := m.filter.LabelMessageAllowed(ctx, conn.client, conn.inboxID, message.MessageID); err != nil {
		conn.verbosef("agentmail: failed to label message: %v", err)
	}

	receivedAt := utils.Now()
	m.state.Record(conn.accountID, StatePatch{LastInboundAt: &receivedAt})

	downloaded := m.attachments.Download(ctx, conn.client, conn.inboxID, message.MessageID, message.Attachments)

	threadBody := m.threads.FetchFormattedThread(ctx, conn.client, conn.inboxID, message.ThreadID)
	messageBody := thread.ExtractMessageBody(message)
	fullBody := threadBody
	if fullBody == "" {
		fullBody = buildFallbackBody(message)
	}

	runtime := m.runtime
	route := runtime.Routing.ResolveAgentRoute(conn.cfg, ChannelID, dto.Peer{Kind: "dm", ID: senderEmail})

	senderName := utils.ParseNameFromAddress(message.From)
	storePath := runtime.Session.ResolveStorePath(conn.cfg.Session.Store, route.AgentID)
	previousTimestamp := runtime.Session.ReadSessionUpdatedAt(ctx, storePath, route.SessionKey)
	formattedBody := runtime.Reply.FormatAgentEnvelope(dto.AgentEnvelope{
		Channel:           "Email",
		From:              senderName,
		Timestamp:         message.Timestamp,
		PreviousTimestamp: previousTimestamp,
		Envelope:          runtime.Reply.ResolveEnvelopeFormatOptions(conn.cfg),
		Body:              fmt.Sprintf("%s\n[email message_id: %s thread: %s]\n%s", fullBody, message.MessageID, message.ThreadID, replyNote),
	})

	inbound := runtime.Reply.FinalizeInboundContext(buildInboundContext(conn, route, message, senderEmail, senderName, formattedBody, messageBody, downloaded))

	sessionKey := utils.FirstNonEmpty(inbound.SessionKey, route.SessionKey)
	runtime.Session.RecordInboundSession(ctx, dto.RecordInboundSessionRequest{
		StorePath:  storePath,
		SessionKey: sessionKey,
		Ctx:        inbound,
		UpdateLastRoute: &dto.LastRouteUpdate{
			SessionKey: route.MainSessionKey,
			Channel:    ChannelID,
			To:         conn.inboxID,
			AccountID:  route.AccountID,
		},
		OnRecordError: func(err error) {
			conn.log.Warnf("Failed updating session meta: %v", err)
		},
	})

	preview := utils.Preview(previewSource(message, messageBody), previewLength)
	conn.verbosef("agentmail inbound: from=%s preview=\"%s\"", senderEmail, preview)
	m.publishInbound(ctx, conn, message, senderEmail, senderName, sessionKey, len(downloaded))

	dispatcher := runtime.Reply.CreateReplyDispatcher(dto.ReplyDispatcherOptions{
		HumanDelay: runtime.Reply.ResolveHumanDelayConfig(conn.cfg, route.AgentID),
		Deliver: func(ctx context.Context, payload dto.ReplyPayload, info dto.ReplyInfo) error {
			if payload.Text == "" {
				return nil
			}
			if _, err := m.outbound.SendReply(ctx, conn.client, conn.inboxID, message.MessageID, payload.Text, ""); err != nil {
				return err
			}
			sentAt := utils.Now()
			m.state.Record(conn.accountID, StatePatch{LastOutboundAt: &sentAt})
			return nil
		},
		OnError: func(err error, info dto.ReplyInfo) {
			conn.log.Errorf("agentmail %s reply failed: %v", info.Kind, err)
		},
	})

	result, err := runtime.Reply.DispatchReplyFromConfig(ctx, inbound, conn.cfg, dispatcher)
	dispatcher.MarkIdle()
	if err != nil {
		conn.log.Errorf("agentmail: reply dispatch failed for %s: %v", message.MessageID, err)
		return
	}

	if result.QueuedFinal {
		conn.verbosef("agentmail: delivered %d reply(ies) to %s", result.Counts.Final, senderEmail)
		runtime.System.EnqueueSystemEvent(ctx, fmt.Sprintf("Email from %s: %s", senderName, preview), dto.SystemEventOptions{
			SessionKey: route.SessionKey,
			ContextKey: "agentmail:message:" + message.MessageID,
		})
	}
}

func buildFallbackBody(message *dto.Message) string {
	subject := ""
	if message.Subject != "" {
		subject = "Subject: " + message.Subject + "\n\n"
	}
	return subject + thread.ExtractMessageBody(message)
}

// previewSource renders the body as text when it was taken from an html tier
func previewSource(message *dto.Message, messageBody string) string {
	if bodyFromHTML(message) && utils.LooksLikeHTML(messageBody) {
		return utils.HTMLToText(messageBody)
	}
	return messageBody
}

// bodyFromHTML mirrors the tier order of thread.ExtractMessageBody
func bodyFromHTML(message *dto.Message) bool {
	switch {
	case message.ExtractedText != "":
		return false
	case message.ExtractedHTML != "":
		return true
	case message.Text != "":
		return false
	default:
		return message.HTML != ""
	}
}

func buildInboundContext(conn *connection, route dto.AgentRoute, message *dto.Message, senderEmail, senderName, formattedBody, messageBody string, downloaded []dto.DownloadedAttachment) dto.InboundContext {
	inbound := dto.InboundContext{
		Body:               formattedBody,
		RawBody:            messageBody,
		CommandBody:        messageBody,
		From:               senderEmail,
		To:                 conn.inboxID,
		SessionKey:         route.SessionKey,
		AccountId:          route.AccountID,
		ChatType:           "direct",
		ConversationLabel:  senderName,
		SenderName:         senderName,
		SenderId:           senderEmail,
		SenderUsername:     utils.LocalPart(senderEmail),
		Provider:           ChannelID,
		Surface:            ChannelID,
		MessageSid:         message.MessageID,
		MessageThreadId:    message.ThreadID,
		Timestamp:          message.Timestamp.UnixMilli(),
		CommandAuthorized:  true,
		CommandSource:      "text",
		OriginatingChannel: ChannelID,
		OriginatingTo:      conn.inboxID,
	}

	if len(downloaded) > 0 {
		inbound.MediaPath = downloaded[0].Path
		inbound.MediaType = downloaded[0].ContentType
		inbound.MediaUrl = downloaded[0].Path
		for _, a := range downloaded {
			inbound.MediaPaths = append(inbound.MediaPaths, a.Path)
			inbound.MediaUrls = append(inbound.MediaUrls, a.Path)
			inbound.MediaTypes = append(inbound.MediaTypes, a.ContentType)
		}
	}
	return inbound
}

func (m *Monitor) publishInbound(ctx context.Context, conn *connection, message *dto.Message, senderEmail, senderName, sessionKey string, attachmentCount int) {
	if m.publisher == nil {
		return
	}
	err := m.publisher.PublishFanoutEvent(ctx, message.MessageID, enum.INBOUND_EMAIL, dto.AgentMailInboundReceived{
		MessageID:   message.MessageID,
		ThreadID:    message.ThreadID,
		From:        senderEmail,
		SenderName:  senderName,
		Subject:     message.Subject,
		SessionKey:  sessionKey,
		Attachments: attachmentCount,
		ReceivedAt:  utils.Now(),
	})
	if err != nil {
		conn.log.Warnf("[%s][%s] failed to publish inbound event: %v", conn.accountID, conn.inboxID, err)
	}
}
