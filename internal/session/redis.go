package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/podx/internal/models"
	"github.com/desertthunder/podx/internal/shared"
	"github.com/redis/go-redis/v9"
)

var _ Store = (*RedisStore)(nil)

// RedisStore implements [Store] on redis. Keys expire with their sessions, so Prune has nothing to do.
type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
	codec  *Codec
	now    func() time.Time
}

// NewRedisClient connects to redis with cfg and verifies the connection.
func NewRedisClient(ctx context.Context, cfg shared.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}

// NewRedisStore creates a [RedisStore] that stores sessions under prefix.
func NewRedisStore(rdb redis.UniversalClient, prefix string, codec *Codec) *RedisStore {
	if prefix == "" {
		prefix = "podx:session:"
	}
	return &RedisStore{rdb: rdb, prefix: prefix, codec: codec, now: time.Now}
}

func (s *RedisStore) key(id string) string {
	return s.prefix + id
}

func (s *RedisStore) Load(ctx context.Context, id string) (*models.Session, error) {
	data, err := s.rdb.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, shared.ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	sess, err := s.codec.Decode(data)
	if err != nil {
		return nil, err
	}
	if sess.Expired(s.now()) {
		return nil, shared.ErrSessionNotFound
	}
	return sess, nil
}

func (s *RedisStore) Save(ctx context.Context, sess *models.Session) error {
	ttl := sess.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return s.Delete(ctx, sess.ID)
	}

	data, err := s.codec.Encode(sess)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, s.key(sess.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("set session: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.rdb.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *RedisStore) Prune(context.Context, time.Time) (int64, error) {
	return 0, nil
}
