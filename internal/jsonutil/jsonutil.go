package jsonutil

import (
	"bytes"
	"encoding/json"
	"strings"
)

// StripFences removes markdown code-fence wrappers the model sometimes
// emits around a JSON payload (```json ... ``` or bare ``` ... ```),
// plus any stray prose before the first brace/bracket.
func StripFences(raw []byte) []byte {
	s := strings.TrimSpace(string(raw))
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		// drop an optional language tag on the fence line
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			first := strings.TrimSpace(s[:i])
			if first == "json" || first == "JSON" || first == "" {
				s = s[i+1:]
			}
		}
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}
	// Models occasionally prefix a sentence before the object.
	if !strings.HasPrefix(s, "{") && !strings.HasPrefix(s, "[") {
		obj := strings.IndexByte(s, '{')
		arr := strings.IndexByte(s, '[')
		start := obj
		if start < 0 || (arr >= 0 && arr < start) {
			start = arr
		}
		if start > 0 {
			s = s[start:]
		}
	}
	return []byte(s)
}

// Unmarshal decodes an untrusted model payload into v: it strips fence
// wrappers and attempts a single parse.
func Unmarshal(raw []byte, v any) error {
	return json.Unmarshal(StripFences(raw), v)
}

// UnmarshalRaw accepts json.RawMessage directly.
func UnmarshalRaw(raw json.RawMessage, v any) error {
	return Unmarshal([]byte(raw), v)
}

// MarshalNoEscape encodes v into JSON without escaping <, >, & into \u003c, etc.
func MarshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	// Remove trailing newline from json.Encoder.Encode
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
