package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"doc-chat/internal/retry"
)

const (
	keyPrefix  = "docchat:session:"
	lockPrefix = "docchat:lock:"
	lockTTL    = 30 * time.Second
	lockPoll   = 50 * time.Millisecond
)

var (
	// Both scripts act only while the caller's token still owns the lock.
	unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)
	refreshScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0`)
)

// RedisStore keeps each session as one JSON value whose TTL is renewed on every Save.
// When the key expires the session is gone; nothing else is kept.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects and pings the server, retrying a few times while it starts up.
func NewRedisStore(ctx context.Context, addr, password string, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
	err := retry.Do(ctx, 3, 200*time.Millisecond, func(ctx context.Context) error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return client.Ping(pingCtx).Err()
	})
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return NewRedisStoreFromClient(client, ttl), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (r *RedisStore) Create(ctx context.Context, s Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	ok, err := r.client.SetNX(ctx, keyPrefix+s.ID.String(), data, r.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("session %s already exists", s.ID)
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, id uuid.UUID) (Session, error) {
	data, err := r.client.Get(ctx, keyPrefix+id.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, err
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return Session{}, fmt.Errorf("decode session %s: %w", id, err)
	}
	return s, nil
}

// Save overwrites an existing session only; an expired session stays gone.
func (r *RedisStore) Save(ctx context.Context, s Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	ok, err := r.client.SetXX(ctx, keyPrefix+s.ID.String(), data, r.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrSessionNotFound
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, id uuid.UUID) error {
	n, err := r.client.Del(ctx, keyPrefix+id.String()).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// Lock takes docchat:lock:<id> with SET NX, polling until it is free or ctx ends.
// While held, the lock's TTL is refreshed so a slow answer does not lose it; a
// crashed holder releases it after lockTTL.
func (r *RedisStore) Lock(ctx context.Context, id uuid.UUID) (func(), error) {
	key := lockPrefix + id.String()
	token := uuid.NewString()
	for {
		ok, err := r.client.SetNX(ctx, key, token, lockTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("lock session %s: %w", id, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockPoll):
		}
	}

	bg := context.WithoutCancel(ctx)
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(lockTTL / 3)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				_ = refreshScript.Run(bg, r.client, []string{key}, token, lockTTL.Milliseconds()).Err()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			_ = unlockScript.Run(bg, r.client, []string{key}, token).Err()
		})
	}, nil
}

// Close closes the redis connection.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
