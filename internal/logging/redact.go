package logging

import (
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// redactedKeys are field names whose string values are never emitted.
var redactedKeys = map[string]bool{
	"api_key":       true,
	"apikey":        true,
	"authorization": true,
	"bearer":        true,
	"credential":    true,
	"password":      true,
	"secret":        true,
	"token":         true,
}

// RedactedString creates a zap field with redacted value and length.
func RedactedString(key, val string) zap.Field {
	return zap.String(key, "[REDACTED:"+strconv.Itoa(len(val))+"]")
}

// MaskKey returns a credential preview safe for display: the first four
// characters followed by "...". Short values are fully masked.
func MaskKey(val string) string {
	if val == "" {
		return ""
	}
	if len(val) <= 8 {
		return "****"
	}
	return val[:4] + "..."
}

// redactingEncoder wraps a zapcore.Encoder to redact credential fields.
type redactingEncoder struct {
	zapcore.Encoder
}

func newRedactingEncoder(base zapcore.Encoder) zapcore.Encoder {
	return &redactingEncoder{Encoder: base}
}

func shouldRedactKey(key string) bool {
	return redactedKeys[strings.ToLower(key)]
}

// AddString redacts credential field names.
func (e *redactingEncoder) AddString(key, val string) {
	if shouldRedactKey(key) {
		e.Encoder.AddString(key, "[REDACTED]")
		return
	}
	e.Encoder.AddString(key, val)
}

// AddByteString redacts credential field names.
func (e *redactingEncoder) AddByteString(key string, val []byte) {
	if shouldRedactKey(key) {
		e.Encoder.AddByteString(key, []byte("[REDACTED]"))
		return
	}
	e.Encoder.AddByteString(key, val)
}

// AddReflected redacts credential field names.
func (e *redactingEncoder) AddReflected(key string, val interface{}) error {
	if shouldRedactKey(key) {
		e.Encoder.AddString(key, "[REDACTED]")
		return nil
	}
	return e.Encoder.AddReflected(key, val)
}

// Clone creates a copy of the encoder.
func (e *redactingEncoder) Clone() zapcore.Encoder {
	return &redactingEncoder{Encoder: e.Encoder.Clone()}
}
