package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/customeros/mailchannel/dto"
	"github.com/customeros/mailchannel/interfaces"
)

type OutboundService struct {
	mock.Mock
}

func (m *OutboundService) SendReply(ctx context.Context, client interfaces.AgentMailClient, inboxID, messageID, text, html string) (*dto.SendMessageResponse, error) {
	args := m.Called(ctx, client, inboxID, messageID, text, html)
	response, _ := args.Get(0).(*dto.SendMessageResponse)
	return response, args.Error(1)
}

func (m *OutboundService) SendText(ctx context.Context, request dto.OutboundRequest) (*dto.OutboundResult, error) {
	args := m.Called(ctx, request)
	result, _ := args.Get(0).(*dto.OutboundResult)
	return result, args.Error(1)
}

func (m *OutboundService) SendMedia(ctx context.Context, request dto.OutboundRequest) (*dto.OutboundResult, error) {
	args := m.Called(ctx, request)
	result, _ := args.Get(0).(*dto.OutboundResult)
	return result, args.Error(1)
}
