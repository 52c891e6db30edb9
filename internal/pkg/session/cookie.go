package session

import (
	"net/http"
	"time"
)

// Cookie describes how a token travels to the browser.
type Cookie struct {
	Name   string
	Path   string
	Domain string
	Secure bool
}

// Set builds a cookie carrying value until expires.
func (c Cookie) Set(value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     c.Name,
		Value:    value,
		Path:     c.path(),
		Domain:   c.Domain,
		Expires:  expires,
		Secure:   c.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// Clear builds a cookie that deletes the browser copy.
func (c Cookie) Clear() *http.Cookie {
	return &http.Cookie{
		Name:     c.Name,
		Path:     c.path(),
		Domain:   c.Domain,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		Secure:   c.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// Read returns the cookie value from r, or "".
func (c Cookie) Read(r *http.Request) string {
	ck, err := r.Cookie(c.Name)
	if err != nil {
		return ""
	}
	return ck.Value
}

func (c Cookie) path() string {
	if c.Path == "" {
		return "/"
	}
	return c.Path
}
