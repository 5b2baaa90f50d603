package sentiment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnescapeJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no escapes", `[{"a":1}]`, `[{"a":1}]`},
		{"quotes", `{\"a\":\"b\"}`, `{"a":"b"}`},
		{"backslash", `a\\b`, `a\b`},
		{"solidus", `https:\/\/t.co`, `https://t.co`},
		{"control", `a\nb\tc\rd\be\ff`, "a\nb\tc\rd\be\ff"},
		{"bmp unicode", `Mi\u0142ego`, "Miłego"},
		{"surrogate pair", `\uD83C\uDF89`, "🎉"},
		{"lone surrogate", `\uD83Cx`, "\uFFFDx"},
		{"bad hex kept", `\uZZZZ`, `\uZZZZ`},
		{"short unicode kept", `\u12`, `\u12`},
		{"unknown escape kept", `\q`, `\q`},
		{"trailing backslash", `abc\`, `abc\`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, unescapeJSON(tt.in))
		})
	}
}
