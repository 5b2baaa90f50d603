package apiclient

import (
	"strings"

	"github.com/tidwall/gjson"
)

const maxRawMessage = 512

// Paths tried in order when a provider answers with a structured error body.
var messagePaths = []string{
	"error.message",
	"error_description",
	"message",
	"detail",
	"title",
	"error",
	"errors.0.message",
}

// ProviderMessage extracts a human-readable message from an error body. Bodies that are not JSON,
// or carry none of the known fields, fall back to the trimmed raw text.
func ProviderMessage(body []byte) string {
	if gjson.ValidBytes(body) {
		for _, path := range messagePaths {
			res := gjson.GetBytes(body, path)
			if res.Type == gjson.String && strings.TrimSpace(res.Str) != "" {
				return strings.TrimSpace(res.Str)
			}
		}
	}
	return truncate(strings.TrimSpace(string(body)), maxRawMessage)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.ToValidUTF8(s[:n], "")
}
