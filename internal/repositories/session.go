package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/podx/internal/models"
	"github.com/desertthunder/podx/internal/session"
	"github.com/desertthunder/podx/internal/shared"
)

var _ session.Store = (*SessionRepository)(nil)

// SessionRepository implements [session.Store] on the sqlite sessions table.
//
// Rows hold the codec's JSON encoding, so the token record is sealed at rest.
type SessionRepository struct {
	db    *sql.DB
	codec *session.Codec
	now   func() time.Time
}

// NewSessionRepository creates a new [SessionRepository] with the given database connection
func NewSessionRepository(db *sql.DB, codec *session.Codec) *SessionRepository {
	return &SessionRepository{db: db, codec: codec, now: time.Now}
}

// Load retrieves an unexpired session by ID
func (r *SessionRepository) Load(ctx context.Context, id string) (*models.Session, error) {
	query := `
		SELECT data FROM sessions
		WHERE id = ? AND expires_at > ?
	`

	var data []byte
	err := r.db.QueryRowContext(ctx, query, id, r.now().UTC()).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}

	return r.codec.Decode(data)
}

// Save inserts or replaces a session
func (r *SessionRepository) Save(ctx context.Context, sess *models.Session) error {
	data, err := r.codec.Encode(sess)
	if err != nil {
		return err
	}

	var userID sql.NullString
	if sess.UserID != "" {
		userID = sql.NullString{String: sess.UserID, Valid: true}
	}

	query := `
		INSERT INTO sessions (id, user_id, data, created_at, updated_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			user_id = excluded.user_id,
			data = excluded.data,
			updated_at = excluded.updated_at,
			expires_at = excluded.expires_at
	`

	_, err = r.db.ExecContext(ctx, query,
		sess.ID, userID, data, sess.CreatedAt.UTC(), sess.UpdatedAt.UTC(), sess.ExpiresAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Delete removes a session by ID. Deleting an unknown session is not an error.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Prune removes sessions that expired at or before now
func (r *SessionRepository) Prune(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune sessions: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows, nil
}

// CountForUser returns the number of unexpired sessions belonging to userID
func (r *SessionRepository) CountForUser(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sessions WHERE user_id = ? AND expires_at > ?`, userID, r.now().UTC(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return n, nil
}
