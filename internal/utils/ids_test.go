package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateNanoIDWithPrefix(t *testing.T) {
	id := GenerateNanoIDWithPrefix("event", 21)

	assert.True(t, strings.HasPrefix(id, "event_"))
	assert.Len(t, id, len("event_")+21)
	assert.NotEqual(t, id, GenerateNanoIDWithPrefix("event", 21))
	assert.Len(t, GenerateNanoIDWithPrefix("", 12), 12)
}
