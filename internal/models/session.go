package models

import "time"

// Session is the server-side state behind a session cookie.
type Session struct {
	ID        string       `json:"id"`
	UserID    string       `json:"user_id,omitempty"`
	State     string       `json:"state,omitempty"` // pending OAuth state, cleared after the callback
	Token     *TokenRecord `json:"token,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
	ExpiresAt time.Time    `json:"expires_at"`

	// New is set when the session was created for this request and has not been stored yet.
	New bool `json:"-"`
}

// NewSession creates an unsaved session that expires ttl after now.
func NewSession(id string, now time.Time, ttl time.Duration) *Session {
	return &Session{
		ID:        id,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(ttl),
		New:       true,
	}
}

// HasToken reports whether a token record is stored in the session.
func (s *Session) HasToken() bool {
	return s != nil && s.Token != nil
}

// SetToken replaces the stored token record.
func (s *Session) SetToken(rec TokenRecord) {
	s.Token = &rec
}

// ClearToken removes the stored token record.
func (s *Session) ClearToken() {
	s.Token = nil
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Touch bumps UpdatedAt and slides the expiry forward by ttl.
func (s *Session) Touch(now time.Time, ttl time.Duration) {
	s.UpdatedAt = now
	s.ExpiresAt = now.Add(ttl)
}
