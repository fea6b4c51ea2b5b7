package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/desertthunder/podx/internal/models"
	"github.com/desertthunder/podx/internal/shared"
)

// Store persists sessions by ID.
//
// Load returns [shared.ErrSessionNotFound] for unknown or expired sessions.
// Prune deletes sessions that expired at or before now and reports how many were removed.
type Store interface {
	Load(ctx context.Context, id string) (*models.Session, error)
	Save(ctx context.Context, sess *models.Session) error
	Delete(ctx context.Context, id string) error
	Prune(ctx context.Context, now time.Time) (int64, error)
}

// record is the stored form of a session. The token is kept sealed.
type record struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id,omitempty"`
	State     string    `json:"state,omitempty"`
	Token     []byte    `json:"token,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Codec converts sessions to and from the bytes written by persistent stores.
type Codec struct {
	sealer *Sealer
}

// NewCodec creates a [Codec] that seals token records with sealer.
func NewCodec(sealer *Sealer) *Codec {
	return &Codec{sealer: sealer}
}

// Encode serializes sess as JSON with its token sealed.
func (c *Codec) Encode(sess *models.Session) ([]byte, error) {
	rec := record{
		ID:        sess.ID,
		UserID:    sess.UserID,
		State:     sess.State,
		CreatedAt: sess.CreatedAt.UTC(),
		UpdatedAt: sess.UpdatedAt.UTC(),
		ExpiresAt: sess.ExpiresAt.UTC(),
	}

	if sess.HasToken() {
		plain, err := json.Marshal(sess.Token)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal token: %w", err)
		}
		if rec.Token, err = c.sealer.Seal(plain); err != nil {
			return nil, err
		}
	}

	return json.Marshal(rec)
}

// Decode parses data produced by [Codec.Encode].
func (c *Codec) Decode(data []byte) (*models.Session, error) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidSession, err)
	}

	sess := &models.Session{
		ID:        rec.ID,
		UserID:    rec.UserID,
		State:     rec.State,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
		ExpiresAt: rec.ExpiresAt,
	}

	if len(rec.Token) > 0 {
		plain, err := c.sealer.Open(rec.Token)
		if err != nil {
			return nil, err
		}
		var tok models.TokenRecord
		if err := json.Unmarshal(plain, &tok); err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrInvalidSession, err)
		}
		sess.Token = &tok
	}

	return sess, nil
}

// clone copies sess so stored sessions never alias caller state.
func clone(sess *models.Session) *models.Session {
	c := *sess
	if sess.Token != nil {
		tok := *sess.Token
		c.Token = &tok
	}
	c.New = false
	return &c
}
