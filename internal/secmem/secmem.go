// Package secmem holds operator-supplied credentials between the prompt
// that reads them and the command that applies them.
package secmem

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/breeze-rmm/remediate/internal/logging"
)

var log = logging.L("secmem")

const redacted = "[REDACTED]"

// SecureString holds a secret with best-effort memory zeroing. Go's GC may
// copy the backing array, so Zero() narrows the exposure window rather than
// guaranteeing erasure.
//
// Every formatting and marshalling path yields [REDACTED]; Reveal() is the
// only way to the plaintext.
type SecureString struct {
	mu     sync.Mutex
	data   []byte
	zeroed bool
	warned bool
}

// NewSecureString creates a SecureString from the given string.
func NewSecureString(s string) *SecureString {
	b := make([]byte, len(s))
	copy(b, s)
	return &SecureString{data: b}
}

// FromBytes copies b into a SecureString and wipes b, which is the shape
// term.ReadPassword hands back.
func FromBytes(b []byte) *SecureString {
	data := make([]byte, len(b))
	copy(data, b)
	for i := range b {
		b[i] = 0
	}
	return &SecureString{data: data}
}

// Reveal returns the plaintext, or "" for a nil or zeroed receiver.
func (s *SecureString) Reveal() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.zeroed {
		if !s.warned {
			s.warned = true
			log.Warn("Reveal() called after Zero(), secret has been wiped")
		}
		return ""
	}
	return string(s.data)
}

// Len reports the secret length without revealing it.
func (s *SecureString) Len() int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

// IsZeroed returns true once Zero() has been called.
func (s *SecureString) IsZeroed() bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.zeroed
}

// Zero overwrites the backing bytes and drops them.
func (s *SecureString) Zero() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.data {
		s.data[i] = 0
	}
	s.data = nil
	s.zeroed = true
}

func (s *SecureString) String() string {
	return redacted
}

func (s *SecureString) GoString() string {
	return redacted
}

// Format implements fmt.Formatter so every verb, including %x and %q,
// prints the redaction marker.
func (s *SecureString) Format(f fmt.State, verb rune) {
	fmt.Fprint(f, redacted)
}

// LogValue keeps secrets out of slog output.
func (s *SecureString) LogValue() slog.Value {
	return slog.StringValue(redacted)
}

func (s *SecureString) MarshalJSON() ([]byte, error) {
	return json.Marshal(redacted)
}

func (s *SecureString) MarshalText() ([]byte, error) {
	return []byte(redacted), nil
}
