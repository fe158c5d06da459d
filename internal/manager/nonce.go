package manager

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"time"
)

// ChallengePrefix is part of the wire contract: clients sign
// ChallengePrefix + nonce byte for byte.
const ChallengePrefix = "Sign this message to authenticate: "

const nonceBytes = 16

// NonceManager issues single-use wallet challenge nonces and decides when an
// issued nonce has expired. Persistence and rotation are the caller's job.
type NonceManager struct {
	ttl    time.Duration
	now    func() time.Time
	source io.Reader
}

type NonceOption func(*NonceManager)

// WithClock overrides the time source.
func WithClock(now func() time.Time) NonceOption {
	return func(m *NonceManager) { m.now = now }
}

// WithEntropy overrides the random source.
func WithEntropy(r io.Reader) NonceOption {
	return func(m *NonceManager) { m.source = r }
}

func NewNonceManager(ttl time.Duration, opts ...NonceOption) *NonceManager {
	m := &NonceManager{
		ttl:    ttl,
		now:    time.Now,
		source: rand.Reader,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// New returns a fresh 128-bit nonce as lowercase hex.
func (m *NonceManager) New() (string, error) {
	buf := make([]byte, nonceBytes)
	if _, err := io.ReadFull(m.source, buf); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func (m *NonceManager) Message(nonce string) string {
	return ChallengePrefix + nonce
}

// Expired reports whether a nonce issued at issuedAt is older than the TTL.
func (m *NonceManager) Expired(issuedAt time.Time) bool {
	return m.now().Sub(issuedAt) > m.ttl
}

func (m *NonceManager) Now() time.Time {
	return m.now().UTC()
}

func (m *NonceManager) TTL() time.Duration {
	return m.ttl
}
