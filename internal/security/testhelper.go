package security

import "time"

// TestHMACSecret is a 32-byte HS256 secret for unit tests only.
const TestHMACSecret = "test-secret-0123456789abcdefghij"

// NewTestTokenProvider returns an HS256 TokenProvider with a one-hour access TTL.
// For unit tests only. Callers must not use in production.
func NewTestTokenProvider(opts ...Option) (*TokenProvider, error) {
	key, err := NewHMACKey("HS256", []byte(TestHMACSecret))
	if err != nil {
		return nil, err
	}
	return NewTokenProvider(key, "test-issuer", "test-audience", time.Hour, opts...)
}
