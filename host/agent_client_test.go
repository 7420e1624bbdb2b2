package host

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/mailchannel/config"
	"github.com/customeros/mailchannel/dto"
	"github.com/customeros/mailchannel/internal/enum"
)

func TestAgentClient_PostsInboundAndDecodesReplies(t *testing.T) {
	// Arrange
	var received dto.InboundContext
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&received)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"replies":[{"kind":"block","text":"Hi"},{"kind":"final","text":"Bye","mediaUrl":"https://cdn/x.pdf"}]}`))
	}))
	defer server.Close()
	client := NewAgentClient(&config.AgentConfig{WebhookURL: server.URL, WebhookAPIKey: "secret"})

	// Act
	replies, err := client.Run(context.Background(), dto.InboundContext{MessageSid: "msg_1", SessionKey: "agent:main:main"})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret", auth)
	assert.Equal(t, "msg_1", received.MessageSid)
	assert.Equal(t, []dto.AgentReply{
		{Kind: enum.ReplyBlock, Text: "Hi"},
		{Kind: enum.ReplyFinal, Text: "Bye", MediaURL: "https://cdn/x.pdf"},
	}, replies)
}

func TestAgentClient_EmptyResponseMeansNoReplies(t *testing.T) {
	// Arrange
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	// Act
	replies, err := NewAgentClient(&config.AgentConfig{WebhookURL: server.URL}).Run(context.Background(), dto.InboundContext{})

	// Assert
	require.NoError(t, err)
	assert.Empty(t, replies)
}

func TestAgentClient_NonSuccessStatus(t *testing.T) {
	// Arrange
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "agent offline", http.StatusBadGateway)
	}))
	defer server.Close()

	// Act
	_, err := NewAgentClient(&config.AgentConfig{WebhookURL: server.URL}).Run(context.Background(), dto.InboundContext{})

	// Assert
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "agent offline")
}

func TestAgentClient_NotConfigured(t *testing.T) {
	_, err := NewAgentClient(nil).Run(context.Background(), dto.InboundContext{})
	assert.ErrorIs(t, err, ErrAgentNotConfigured)
}
