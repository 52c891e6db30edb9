// Package uid generates identifiers: numeric ids for rows, string ids for
// messages and correlation, and unguessable tokens for bearer secrets.
package uid

// NumberID generates sortable numeric ids.
type NumberID interface {
	Generate() int64
}

// StringID generates unique string ids.
type StringID interface {
	Generate() string
}

// Tokener generates unguessable bearer tokens.
type Tokener interface {
	Token() (string, error)
}
