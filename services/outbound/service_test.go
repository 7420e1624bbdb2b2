package outbound

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/customeros/mailchannel/config"
	"github.com/customeros/mailchannel/dto"
	"github.com/customeros/mailchannel/interfaces"
	"github.com/customeros/mailchannel/internal/enum"
	mcerrors "github.com/customeros/mailchannel/internal/errors"
	"github.com/customeros/mailchannel/internal/logger"
	"github.com/customeros/mailchannel/internal/mocks"
	"github.com/customeros/mailchannel/services/accounts"
	"github.com/customeros/mailchannel/services/agentmail"
)

func getLogger() logger.Logger {
	appLogger := logger.NewAppLogger(&logger.Config{
		DevMode: true,
	})
	appLogger.InitLogger()
	return appLogger
}

func configuredLoader() *mocks.ConfigLoader {
	return &mocks.ConfigLoader{Config: &config.HostConfig{Channels: config.ChannelsConfig{
		AgentMail: &config.AgentMailChannelConfig{Token: "am_1", EmailAddress: "bot@agentmail.to"},
	}}}
}

func newService(loader interfaces.ConfigLoader, client *mocks.AgentMailClient, factoryCalls *int, opts ...Option) interfaces.OutboundService {
	cache := agentmail.NewClientCacheWithFactory(func(apiKey string) (interfaces.AgentMailClient, error) {
		*factoryCalls++
		return client, nil
	})
	opts = append(opts, WithEnv(func() accounts.Env { return accounts.Env{} }))
	return NewOutboundService(loader, cache, getLogger(), opts...)
}

func TestSendText_RejectsMissingReplyToID(t *testing.T) {
	// Arrange
	client := &mocks.AgentMailClient{}
	calls := 0
	service := newService(configuredLoader(), client, &calls)

	// Act
	result, err := service.SendText(context.Background(), dto.OutboundRequest{To: "stranger@unknown.com", Text: "hi"})

	// Assert
	assert.Nil(t, result)
	assert.Equal(t, mcerrors.ErrRepliesOnly, err)
	assert.EqualError(t, err, "AgentMail: Only replies are allowed. Cannot send new emails to arbitrary addresses.")
	assert.Zero(t, calls)
	client.AssertNotCalled(t, "ReplyAll", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSendText_RejectsEvenWhenNotConfigured(t *testing.T) {
	// Arrange
	calls := 0
	service := newService(&mocks.ConfigLoader{}, &mocks.AgentMailClient{}, &calls)

	// Act
	_, err := service.SendText(context.Background(), dto.OutboundRequest{Text: "hi"})

	// Assert
	assert.Equal(t, mcerrors.ErrRepliesOnly, err)
}

func TestSendText_NotConfigured(t *testing.T) {
	// Arrange
	calls := 0
	service := newService(&mocks.ConfigLoader{}, &mocks.AgentMailClient{}, &calls)

	// Act
	_, err := service.SendText(context.Background(), dto.OutboundRequest{Text: "hi", ReplyToID: "msg_1"})

	// Assert
	assert.Equal(t, mcerrors.ErrNotConfigured, err)
	assert.Zero(t, calls)
}

func TestSendText_RepliesAll(t *testing.T) {
	// Arrange
	client := &mocks.AgentMailClient{}
	client.On("ReplyAll", mock.Anything, "bot@agentmail.to", "msg_1", dto.ReplyRequest{Text: "thanks"}).
		Return(&dto.SendMessageResponse{MessageID: "msg_2", ThreadID: "thr_1"}, nil)
	publisher := &mocks.EventPublisher{}
	publisher.On("PublishFanoutEvent", mock.Anything, "msg_2", enum.EMAIL_REPLY, mock.AnythingOfType("dto.AgentMailReplySent")).Return(nil)
	calls := 0
	service := newService(configuredLoader(), client, &calls, WithEventPublisher(publisher))

	// Act
	result, err := service.SendText(context.Background(), dto.OutboundRequest{Text: "thanks", ReplyToID: "msg_1"})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, &dto.OutboundResult{Channel: "agentmail", MessageID: "msg_2", ThreadID: "thr_1"}, result)
	client.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestSendMedia_AppendsAttachmentLine(t *testing.T) {
	// Arrange
	client := &mocks.AgentMailClient{}
	client.On("ReplyAll", mock.Anything, "bot@agentmail.to", "msg_1", dto.ReplyRequest{Text: "see file\n\nAttachment: https://cdn/x.pdf"}).
		Return(&dto.SendMessageResponse{MessageID: "msg_2", ThreadID: "thr_1"}, nil)
	calls := 0
	service := newService(configuredLoader(), client, &calls)

	// Act
	_, err := service.SendMedia(context.Background(), dto.OutboundRequest{Text: "see file", MediaURL: "https://cdn/x.pdf", ReplyToID: "msg_1"})

	// Assert
	require.NoError(t, err)
	client.AssertExpectations(t)
}

func TestSendMedia_WithoutURLSendsPlainText(t *testing.T) {
	// Arrange
	client := &mocks.AgentMailClient{}
	client.On("ReplyAll", mock.Anything, "bot@agentmail.to", "msg_1", dto.ReplyRequest{Text: "plain"}).
		Return(&dto.SendMessageResponse{MessageID: "msg_2"}, nil)
	calls := 0
	service := newService(configuredLoader(), client, &calls)

	// Act
	_, err := service.SendMedia(context.Background(), dto.OutboundRequest{Text: "plain", ReplyToID: "msg_1"})

	// Assert
	require.NoError(t, err)
	client.AssertExpectations(t)
}

func TestSendReply_PropagatesError(t *testing.T) {
	// Arrange
	client := &mocks.AgentMailClient{}
	client.On("ReplyAll", mock.Anything, "bot@agentmail.to", "msg_1", mock.Anything).Return(nil, assert.AnError)
	calls := 0
	service := newService(configuredLoader(), client, &calls)

	// Act
	_, err := service.SendReply(context.Background(), client, "bot@agentmail.to", "msg_1", "x", "")

	// Assert
	assert.ErrorIs(t, err, assert.AnError)
}

func TestAgentTools_IsEmpty(t *testing.T) {
	assert.Empty(t, AgentTools())
	assert.Equal(t, "direct", DeliveryMode)
	assert.Equal(t, 100000, TextChunkLimit)
}
