// Package auth gates live explain calls behind an optional shared secret
// presented in a request header.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"
)

// DefaultHeader carries the shared secret.
const DefaultHeader = "x-demo-pass"

// SharedSecret validates the secret presented by a caller. A zero-value or
// empty secret disables the gate.
type SharedSecret struct {
	header string
	hash   [sha256.Size]byte
	set    bool
}

// NewSharedSecret creates a gate for secret, read from header. An empty
// header falls back to DefaultHeader.
func NewSharedSecret(secret, header string) *SharedSecret {
	if header == "" {
		header = DefaultHeader
	}
	s := &SharedSecret{header: header}
	if secret != "" {
		s.hash = sha256.Sum256([]byte(secret))
		s.set = true
	}
	return s
}

// Enabled reports whether a secret is configured.
func (s *SharedSecret) Enabled() bool {
	return s != nil && s.set
}

// Header returns the header name the secret is read from.
func (s *SharedSecret) Header() string {
	if s == nil || s.header == "" {
		return DefaultHeader
	}
	return s.header
}

// Check reports whether presented matches the configured secret. It always
// succeeds when the gate is disabled.
func (s *SharedSecret) Check(presented string) bool {
	if !s.Enabled() {
		return true
	}
	if presented == "" {
		return false
	}
	// Hashing first keeps the comparison length-independent.
	got := sha256.Sum256([]byte(presented))
	return subtle.ConstantTimeCompare(got[:], s.hash[:]) == 1
}

// Extract reads the presented secret from r.
func (s *SharedSecret) Extract(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(s.Header()))
}

// UnauthorizedMessage is returned to callers that fail the gate.
func (s *SharedSecret) UnauthorizedMessage() string {
	return "Unauthorized demo (missing or wrong " + s.Header() + ")"
}
