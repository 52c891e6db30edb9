// Package sms sends text messages through a configurable provider.
//
// Callers depend on Sender; the HTTP provider posts JSON to a gateway and the
// Log provider writes the message to the application log for local use.
package sms

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNoRecipient = errors.New("sms: recipient is required")
	ErrEmptyBody   = errors.New("sms: body is required")
)

// Message is one text message.
type Message struct {
	To   string
	Body string
	// Reference lets the provider deduplicate retried submissions.
	Reference string
}

func (m Message) validate() error {
	if strings.TrimSpace(m.To) == "" {
		return ErrNoRecipient
	}
	if strings.TrimSpace(m.Body) == "" {
		return ErrEmptyBody
	}
	return nil
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// New selects a provider by driver name: "http" or "log".
func New(driver string, cfg HTTPConfig) (Sender, error) {
	switch driver {
	case "http":
		return NewHTTP(cfg)
	case "log", "":
		return NewLog(), nil
	default:
		return nil, fmt.Errorf("sms: unknown driver %q", driver)
	}
}

// MaskPhone keeps the country prefix and the last two digits.
func MaskPhone(phone string) string {
	if len(phone) <= 5 {
		return "***"
	}
	return phone[:3] + strings.Repeat("*", len(phone)-5) + phone[len(phone)-2:]
}
