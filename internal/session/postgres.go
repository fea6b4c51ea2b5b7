package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/podx/internal/models"
	"github.com/desertthunder/podx/internal/shared"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ Store = (*PostgresStore)(nil)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS podx_sessions (
    id         TEXT PRIMARY KEY,
    user_id    TEXT,
    data       BYTEA NOT NULL,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL,
    expires_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_podx_sessions_expires_at ON podx_sessions (expires_at);
`

// PostgresStore implements [Store] on PostgreSQL through a pgx pool.
type PostgresStore struct {
	pool  *pgxpool.Pool
	codec *Codec
	now   func() time.Time
}

// NewPostgresPool connects to dsn and verifies the connection.
func NewPostgresPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// NewPostgresStore creates a [PostgresStore], creating the sessions table when it is missing.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool, codec *Codec) (*PostgresStore, error) {
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		return nil, fmt.Errorf("create sessions table: %w", err)
	}
	return &PostgresStore{pool: pool, codec: codec, now: time.Now}, nil
}

func (s *PostgresStore) Load(ctx context.Context, id string) (*models.Session, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `
        SELECT data FROM podx_sessions
        WHERE id = $1 AND expires_at > $2
    `, id, s.now().UTC()).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrSessionNotFound
		}
		return nil, fmt.Errorf("select session: %w", err)
	}
	return s.codec.Decode(data)
}

func (s *PostgresStore) Save(ctx context.Context, sess *models.Session) error {
	data, err := s.codec.Encode(sess)
	if err != nil {
		return err
	}

	var userID *string
	if sess.UserID != "" {
		userID = &sess.UserID
	}

	_, err = s.pool.Exec(ctx, `
        INSERT INTO podx_sessions (id, user_id, data, created_at, updated_at, expires_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (id)
        DO UPDATE SET user_id = EXCLUDED.user_id, data = EXCLUDED.data,
                      updated_at = EXCLUDED.updated_at, expires_at = EXCLUDED.expires_at
    `, sess.ID, userID, data, sess.CreatedAt.UTC(), sess.UpdatedAt.UTC(), sess.ExpiresAt.UTC())
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM podx_sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *PostgresStore) Prune(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM podx_sessions WHERE expires_at <= $1`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}
