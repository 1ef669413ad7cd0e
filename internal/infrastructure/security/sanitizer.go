package security

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"
)

const redactedValue = "[REDACTED]"

var sensitiveHeaders = map[string]bool{
	"authorization":       true,
	"cookie":              true,
	"set-cookie":          true,
	"x-api-key":           true,
	"x-auth-token":        true,
	"proxy-authorization": true,
}

// Field names are matched as lowercase substrings.
var sensitiveFields = []string{
	"password",
	"secret",
	"token",
	"key",
	"authorization",
	"credential",
	"auth",
	"signature",
}

// Bulky fields replaced by a size summary. product_document is the base64 document
// inside a CRPT envelope.
var summarizedFields = map[string]bool{
	"product_document": true,
}

// SanitizeHeaders returns a flat copy of headers with sensitive values redacted.
func SanitizeHeaders(headers http.Header) map[string]string {
	sanitized := make(map[string]string, len(headers))
	for key, values := range headers {
		if sensitiveHeaders[strings.ToLower(key)] {
			sanitized[key] = redactedValue
			continue
		}
		sanitized[key] = strings.Join(values, ", ")
	}
	return sanitized
}

// SanitizeBody redacts sensitive JSON fields and returns a JSON document safe to log or persist.
// Redaction happens before truncation, so a truncated preview never contains a secret.
// Gzip bodies are decompressed; binary bodies are wrapped as base64.
func SanitizeBody(body []byte, maxSize int) json.RawMessage {
	if len(body) == 0 {
		return nil
	}

	if len(body) >= 2 && body[0] == 0x1f && body[1] == 0x8b {
		decompressed, err := decompressGzip(body)
		if err != nil {
			return wrapBinary(body, "gzip-compressed (decompression failed)")
		}
		body = decompressed
	}

	if !utf8.Valid(body) {
		return wrapBinary(body, "binary (non-UTF8)")
	}

	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		return truncate(mustMarshal(map[string]any{"_raw": string(body), "_format": "text"}), maxSize)
	}

	return truncate(mustMarshal(sanitizeValue(data)), maxSize)
}

// SanitizeURL redacts query parameters whose names look sensitive.
// Unparseable input is returned as-is.
func SanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.RawQuery == "" {
		return raw
	}

	query := u.Query()
	changed := false
	for name := range query {
		if isSensitive(name) {
			query.Set(name, redactedValue)
			changed = true
		}
	}
	if !changed {
		return raw
	}
	u.RawQuery = query.Encode()
	return u.String()
}

func isSensitive(name string) bool {
	lower := strings.ToLower(name)
	for _, field := range sensitiveFields {
		if strings.Contains(lower, field) {
			return true
		}
	}
	return false
}

func sanitizeValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for key, value := range val {
			switch {
			case summarizedFields[strings.ToLower(key)]:
				out[key] = summarize(value)
			case isSensitive(key):
				out[key] = redactedValue
			default:
				out[key] = sanitizeValue(value)
			}
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, value := range val {
			out[i] = sanitizeValue(value)
		}
		return out
	default:
		return val
	}
}

func summarize(v any) any {
	s, ok := v.(string)
	if !ok {
		return redactedValue
	}
	return fmt.Sprintf("[omitted %d chars]", len(s))
}

func truncate(data []byte, maxSize int) json.RawMessage {
	if maxSize <= 0 || len(data) <= maxSize {
		return json.RawMessage(data)
	}
	preview := data[:maxSize]
	for len(preview) > 0 && !utf8.Valid(preview) {
		preview = preview[:len(preview)-1]
	}
	return json.RawMessage(mustMarshal(map[string]any{
		"_truncated": true,
		"_size":      len(data),
		"_preview":   string(preview),
	}))
}

func decompressGzip(data []byte) ([]byte, error) {
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	return io.ReadAll(reader)
}

func wrapBinary(data []byte, format string) json.RawMessage {
	return json.RawMessage(mustMarshal(map[string]any{
		"_binary": true,
		"_format": format,
		"_size":   len(data),
		"_base64": base64.StdEncoding.EncodeToString(data),
	}))
}

// mustMarshal is only called with maps of JSON-decoded values and strings.
func mustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte(`{"_error":"unserializable body"}`)
	}
	return data
}
