// Package redisstore keeps the session in Redis, letting several client processes on one
// machine (or a fleet of kiosk clients) share a single signed-in session.
package redisstore

import (
	"context"
	"time"

	"github.com/jrsteele09/micromanager/session"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	DefaultPrefix  = "micromanager:session:"
	defaultTimeout = 2 * time.Second
)

var _ session.Store = (*Store)(nil)

type Config struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	Timeout  time.Duration
}

type Store struct {
	rdb     *redis.Client
	prefix  string
	timeout time.Duration
}

func New(cfg Config) *Store {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewWithClient(rdb, cfg.Prefix, cfg.Timeout)
}

// NewWithClient wraps an existing client. Empty prefix and zero timeout select defaults.
func NewWithClient(rdb *redis.Client, prefix string, timeout time.Duration) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Store{rdb: rdb, prefix: prefix, timeout: timeout}
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return errors.Wrap(err, "[redisstore.Ping]")
	}
	return nil
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

func (s *Store) Get(key string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	v, err := s.rdb.Get(ctx, s.prefix+key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		log.Err(err).Str("key", key).Msg("redis session GET failed")
		return "", false, errors.Wrapf(err, "[redisstore.Get] %s", key)
	}
	return v, true, nil
}

func (s *Store) Set(key, value string) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.rdb.Set(ctx, s.prefix+key, value, 0).Err(); err != nil {
		log.Err(err).Str("key", key).Msg("redis session SET failed")
		return errors.Wrapf(err, "[redisstore.Set] %s", key)
	}
	return nil
}

func (s *Store) Remove(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.rdb.Del(ctx, s.prefix+key).Err(); err != nil {
		log.Err(err).Str("key", key).Msg("redis session DEL failed")
		return errors.Wrapf(err, "[redisstore.Remove] %s", key)
	}
	return nil
}
