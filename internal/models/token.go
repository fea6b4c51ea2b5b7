package models

import (
	"time"

	"golang.org/x/oauth2"
)

// TokenRecord is the access/refresh token pair plus its expiry, as kept in a session.
type TokenRecord struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"` // epoch seconds
}

// Remaining returns the number of seconds until the access token expires, relative to now.
func (t TokenRecord) Remaining(now time.Time) int64 {
	return t.ExpiresAt - now.Unix()
}

// OAuth2 converts the record to an [oauth2.Token].
func (t TokenRecord) OAuth2() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    "Bearer",
	}
	if t.ExpiresAt > 0 {
		tok.Expiry = time.Unix(t.ExpiresAt, 0)
	}
	return tok
}

// TokenFromOAuth2 builds a [TokenRecord] from an exchanged or refreshed [oauth2.Token].
//
// A token without an expiry is treated as expiring one hour after now, the lifetime Spotify issues.
func TokenFromOAuth2(tok *oauth2.Token, now time.Time) TokenRecord {
	rec := TokenRecord{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}
	if tok.Expiry.IsZero() {
		rec.ExpiresAt = now.Add(time.Hour).Unix()
	} else {
		rec.ExpiresAt = tok.Expiry.Unix()
	}
	return rec
}
