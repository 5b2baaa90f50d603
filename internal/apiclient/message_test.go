package apiclient

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProviderMessage(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"openai style", `{"error":{"message":"Invalid API Key","type":"invalid_request_error"}}`, "Invalid API Key"},
		{"oauth style", `{"error":"invalid_request","error_description":"Value passed for the token was invalid."}`, "Value passed for the token was invalid."},
		{"top-level message", `{"message":"Too many requests"}`, "Too many requests"},
		{"problem details", `{"title":"Unauthorized","detail":"Unauthorized","status":401}`, "Unauthorized"},
		{"error string only", `{"error":"invalid_grant"}`, "invalid_grant"},
		{"errors array", `{"errors":[{"message":"Invalid query"}]}`, "Invalid query"},
		{"plain text", "  Bad Gateway\n", "Bad Gateway"},
		{"html", "<html><body>502</body></html>", "<html><body>502</body></html>"},
		{"json without known fields", `{"status":500}`, `{"status":500}`},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ProviderMessage([]byte(tt.body)))
		})
	}
}

func TestProviderMessage_CapsRawBody(t *testing.T) {
	long := strings.Repeat("x", 2000)
	assert.Len(t, ProviderMessage([]byte(long)), maxRawMessage)
}

func TestTruncate_KeepsValidUTF8(t *testing.T) {
	s := strings.Repeat("a", 511) + "é"
	got := truncate(s, 512)
	assert.Equal(t, strings.Repeat("a", 511), got)
}
