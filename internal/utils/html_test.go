package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTMLToText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"paragraphs", "<p>Hello <b>world</b></p><p>Second</p>", "Hello world\nSecond"},
		{"line breaks", "one<br>two<br/>three", "one\ntwo\nthree"},
		{"drops style and script", "<style>p{color:red}</style><script>x()</script><div>kept</div>", "kept"},
		{"collapses whitespace", "<div>  lots   of\t space </div>", "lots of space"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, HTMLToText(tt.input))
		})
	}
}

func TestLooksLikeHTML(t *testing.T) {
	assert.True(t, LooksLikeHTML("  <p>hi</p>"))
	assert.False(t, LooksLikeHTML("plain text"))
	assert.False(t, LooksLikeHTML("a < b"))
}
