// Package auth provides API credentials for the market-data provider.
//
// Credentials are an opaque value type: String, GoString, and slog output are
// all redacted so a key or secret can never leak into logs by accident.
package auth

import (
	"errors"
	"log/slog"
	"os"
)

// Environment variables checked by FromEnv.
const (
	EnvKeyID     = "ALPACA_API_KEY_ID"
	EnvSecretKey = "ALPACA_API_SECRET_KEY"
)

// ErrMissingCredentials indicates an empty API key or secret.
var ErrMissingCredentials = errors.New("api key and secret are required")

// Credentials holds the API key pair used for both REST and stream auth.
// The zero value is invalid; construct via New or FromEnv.
type Credentials struct {
	keyID  string
	secret string
}

// New validates and wraps an API key pair.
func New(keyID, secret string) (Credentials, error) {
	if keyID == "" || secret == "" {
		return Credentials{}, ErrMissingCredentials
	}
	return Credentials{keyID: keyID, secret: secret}, nil
}

// FromEnv loads credentials from the standard environment variables.
func FromEnv() (Credentials, error) {
	return New(os.Getenv(EnvKeyID), os.Getenv(EnvSecretKey))
}

// KeyID returns the raw API key ID for request signing.
func (c Credentials) KeyID() string { return c.keyID }

// Secret returns the raw API secret for request signing.
func (c Credentials) Secret() string { return c.secret }

// IsZero reports whether the credentials are unset.
func (c Credentials) IsZero() bool { return c.keyID == "" && c.secret == "" }

// String implements fmt.Stringer with a redacted representation.
func (c Credentials) String() string { return "Credentials(redacted)" }

// GoString implements fmt.GoStringer so %#v does not expose fields.
func (c Credentials) GoString() string { return "auth.Credentials(redacted)" }

// LogValue implements slog.LogValuer; structured logs only ever see the marker.
func (c Credentials) LogValue() slog.Value { return slog.StringValue("[redacted]") }
