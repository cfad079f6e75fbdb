package logging

import (
	"log/slog"
	"strings"
)

const redacted = "[redacted]"

// secretKeys are attribute keys whose values never reach a log sink. The
// ShotGrid script key is the main offender: config dumps and request
// errors tend to carry it.
var secretKeys = map[string]struct{}{
	"script_key":    {},
	"api_key":       {},
	"password":      {},
	"token":         {},
	"authorization": {},
}

func isSecretKey(key string) bool {
	if i := strings.LastIndexByte(key, '.'); i >= 0 {
		key = key[i+1:]
	}
	_, ok := secretKeys[strings.ToLower(key)]
	return ok
}

func redact(attr slog.Attr) slog.Attr {
	if isSecretKey(attr.Key) && attr.Value.Kind() != slog.KindGroup {
		attr.Value = slog.StringValue(redacted)
	}
	return attr
}
