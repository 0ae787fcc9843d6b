package domain

import (
	"testing"
	"time"
)

func TestSession_StateAt(t *testing.T) {
	issued := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	exp := issued.Add(7 * 24 * time.Hour)
	revokedAt := issued.Add(time.Hour)

	testCases := []struct {
		name    string
		session Session
		now     time.Time
		want    State
	}{
		{"fresh", Session{IssuedAt: issued, ExpiresAt: exp}, issued, StateActive},
		{"1s before expiry", Session{ExpiresAt: exp}, exp.Add(-time.Second), StateActive},
		{"at expiry", Session{ExpiresAt: exp}, exp, StateExpired},
		{"1s after expiry", Session{ExpiresAt: exp}, exp.Add(time.Second), StateExpired},
		{"revoked", Session{ExpiresAt: exp, Revoked: true, RevokedAt: &revokedAt}, issued, StateRevoked},
		{"revoked and expired", Session{ExpiresAt: exp, Revoked: true}, exp.Add(time.Hour), StateRevoked},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.session.StateAt(tc.now); got != tc.want {
				t.Errorf("StateAt = %v, want %v", got, tc.want)
			}
			if got := tc.session.Usable(tc.now); got != (tc.want == StateActive) {
				t.Errorf("Usable = %v", got)
			}
		})
	}
}

func TestState_String(t *testing.T) {
	for s, want := range map[State]string{StateActive: "active", StateExpired: "expired", StateRevoked: "revoked", State(9): "unknown"} {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", s, got, want)
		}
	}
}
