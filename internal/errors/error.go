package errors

import "github.com/pkg/errors"

var (
	// channel configuration errors
	ErrNotConfigured = errors.New("AgentMail not configured (missing token or email address)")
	ErrTokenRequired = errors.New("AgentMail token is required")

	// outbound errors
	ErrRepliesOnly = errors.New("AgentMail: Only replies are allowed. Cannot send new emails to arbitrary addresses.")

	// session store errors
	ErrSessionNotFound = errors.New("session not found")
)
