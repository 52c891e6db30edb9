// Package config exposes typed, read-only access to application settings.
package config

import (
	"io"
	"time"
)

// Config reads settings by dotted key, e.g. "modules.auth.otp.max_attempts".
// Missing keys yield the zero value.
type Config interface {
	io.Closer

	GetString(key string) string
	GetBool(key string) bool
	GetInt(key string) int
	GetInt32(key string) int32
	GetInt64(key string) int64
	GetUint(key string) uint
	GetUint16(key string) uint16
	GetFloat64(key string) float64

	// GetSecond, GetMinute and GetHour read an integer in the named unit.
	GetSecond(key string) time.Duration
	GetMinute(key string) time.Duration
	GetHour(key string) time.Duration

	// GetBinary decodes a base64 value; invalid input yields nil.
	GetBinary(key string) []byte

	// GetArray reads a YAML list or a comma separated string, skipping blanks.
	GetArray(key string) []string
}
