package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Property is a task property before rendering. It decodes from a JSON string, number or boolean
// so `"numberOfPosts": 5` and `"numberOfPosts": "{{ inputs.count }}"` both work.
type Property string

func (p *Property) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch {
	case bytes.Equal(trimmed, []byte("null")):
		return nil
	case len(trimmed) > 0 && trimmed[0] == '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*p = Property(s)
	case bytes.Equal(trimmed, []byte("true")), bytes.Equal(trimmed, []byte("false")):
		*p = Property(trimmed)
	default:
		var n json.Number
		if err := json.Unmarshal(trimmed, &n); err != nil {
			return fmt.Errorf("property must be a string, number or boolean: %s", string(trimmed))
		}
		*p = Property(n.String())
	}
	return nil
}

func (p Property) String() string { return string(p) }

// OrDefault returns def when the rendered value is blank.
func OrDefault(rendered, def string) string {
	if strings.TrimSpace(rendered) == "" {
		return def
	}
	return strings.TrimSpace(rendered)
}

// EncodeJSON marshals v without HTML escaping and without a trailing newline.
func EncodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
