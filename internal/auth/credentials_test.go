package auth

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	creds, err := New("PKTEST123", "supersecret")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if creds.KeyID() != "PKTEST123" {
		t.Errorf("KeyID() = %q, want %q", creds.KeyID(), "PKTEST123")
	}
	if creds.Secret() != "supersecret" {
		t.Errorf("Secret() = %q, want %q", creds.Secret(), "supersecret")
	}
	if creds.IsZero() {
		t.Error("IsZero() = true for populated credentials")
	}
}

func TestNew_Missing(t *testing.T) {
	cases := []struct {
		name   string
		key    string
		secret string
	}{
		{"empty key", "", "secret"},
		{"empty secret", "key", ""},
		{"both empty", "", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.key, tc.secret)
			if !errors.Is(err, ErrMissingCredentials) {
				t.Errorf("New(%q, %q) err = %v, want ErrMissingCredentials", tc.key, tc.secret, err)
			}
		})
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv(EnvKeyID, "PKENV")
	t.Setenv(EnvSecretKey, "envsecret")

	creds, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv failed: %v", err)
	}
	if creds.KeyID() != "PKENV" {
		t.Errorf("KeyID() = %q, want PKENV", creds.KeyID())
	}
}

func TestCredentials_Redaction(t *testing.T) {
	creds, err := New("PKLEAKY", "hunter2")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	for _, verb := range []string{"%v", "%+v", "%#v", "%s"} {
		out := fmt.Sprintf(verb, creds)
		if strings.Contains(out, "PKLEAKY") || strings.Contains(out, "hunter2") {
			t.Errorf("format %s leaked credentials: %s", verb, out)
		}
		if !strings.Contains(out, "redacted") {
			t.Errorf("format %s missing redaction marker: %s", verb, out)
		}
	}
}

func TestCredentials_SlogRedaction(t *testing.T) {
	creds, err := New("PKLEAKY", "hunter2")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	logger.Info("connecting", "credentials", creds)

	out := buf.String()
	if strings.Contains(out, "PKLEAKY") || strings.Contains(out, "hunter2") {
		t.Errorf("slog output leaked credentials: %s", out)
	}
	if !strings.Contains(out, "redacted") {
		t.Errorf("slog output missing redaction marker: %s", out)
	}
}
