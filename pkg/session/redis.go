package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"

	"github.com/rexliu/motoshop/pkg/core"
)

const redisKeyPrefix = "motoshop:session:"

// Redis shares sessions between server instances. Expiry is left to Redis.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// DialRedis connects using a redis:// URL and enables tracing.
func DialRedis(ctx context.Context, url string, ttl time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		client.Close()
		return nil, fmt.Errorf("instrument redis: %w", err)
	}
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: client, ttl: ttl}, nil
}

func (r *Redis) Issue(ctx context.Context, u core.User) (Session, error) {
	s := newSession(u, r.ttl, time.Now())
	body, err := sonic.ConfigStd.Marshal(s)
	if err != nil {
		return Session{}, err
	}
	if err := r.client.Set(ctx, redisKeyPrefix+s.Token, body, r.ttl).Err(); err != nil {
		return Session{}, fmt.Errorf("store session: %w", err)
	}
	return s, nil
}

func (r *Redis) Lookup(ctx context.Context, token string) (Session, error) {
	if token == "" {
		return Session{}, unauthorized("missing token")
	}
	body, err := r.client.Get(ctx, redisKeyPrefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, unauthorized("unknown token")
	}
	if err != nil {
		return Session{}, fmt.Errorf("load session: %w", err)
	}
	var s Session
	if err := sonic.ConfigStd.Unmarshal(body, &s); err != nil {
		return Session{}, fmt.Errorf("decode session: %w", err)
	}
	return s, nil
}

func (r *Redis) Revoke(ctx context.Context, token string) error {
	if err := r.client.Del(ctx, redisKeyPrefix+token).Err(); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

func (r *Redis) Close() error { return r.client.Close() }
