package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/MKhiriev/go-todo-auth/internal/config"
	"github.com/MKhiriev/go-todo-auth/internal/logger"
	"github.com/redis/go-redis/v9"
)

// compareAndDeleteLua deletes KEYS[1] only if it still holds ARGV[1].
var compareAndDeleteLua = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

// takeLua atomically performs GET→DEL→SET marker.
// KEYS[1] = key, KEYS[2] = marker key
// ARGV[1] = marker ttl in milliseconds
//
// Returns the value, nil when neither key nor marker exist, or the error
// string "consumed" when only the marker exists.
var takeLua = redis.NewScript(`
local v = redis.call('GET', KEYS[1])
if v then
  redis.call('DEL', KEYS[1])
  redis.call('SET', KEYS[2], '1', 'PX', ARGV[1])
  return v
end
if redis.call('EXISTS', KEYS[2]) == 1 then
  return {err='consumed'}
end
return false
`)

// incrLua starts the ttl only when the counter is created.
var incrLua = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`)

var setIfGreaterLua = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if cur and tonumber(cur) >= tonumber(ARGV[1]) then
  return 0
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
return 1
`)

const errConsumedReply = "consumed"

// redisSessionStore is the Redis-backed [SessionStore]. Multi-step
// operations run as Lua scripts so they are atomic across every service
// instance sharing the server.
type redisSessionStore struct {
	client redis.UniversalClient
	logger *logger.Logger
}

// NewRedisClient builds a client from cfg and verifies connectivity.
func NewRedisClient(ctx context.Context, cfg config.Redis, log *logger.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		log.Err(err).Str("func", "NewRedisClient").Msg("error connecting redis (ping)")
		client.Close()
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	log.Info().Str("func", "NewRedisClient").Msg("connected to redis successfully")

	return client, nil
}

func NewRedisSessionStore(client redis.UniversalClient, log *logger.Logger) SessionStore {
	log.Debug().Msg("creating redis session store")
	return &redisSessionStore{
		client: client,
		logger: log,
	}
}

func (s *redisSessionStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *redisSessionStore) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return value, nil
}

func (s *redisSessionStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (s *redisSessionStore) CompareAndDelete(ctx context.Context, key string, expected []byte) (bool, error) {
	n, err := compareAndDeleteLua.Run(ctx, s.client, []string{key}, expected).Int64()
	if err != nil {
		return false, fmt.Errorf("redis compare and delete: %w", err)
	}
	return n == 1, nil
}

func (s *redisSessionStore) Take(ctx context.Context, key, marker string, markerTTL time.Duration) ([]byte, error) {
	value, err := takeLua.Run(ctx, s.client, []string{key, marker}, markerTTL.Milliseconds()).Text()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrKeyNotFound
		}
		var redisErr redis.Error
		if errors.As(err, &redisErr) && strings.Contains(redisErr.Error(), errConsumedReply) {
			return nil, ErrKeyConsumed
		}
		return nil, fmt.Errorf("redis take: %w", err)
	}
	return []byte(value), nil
}

func (s *redisSessionStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	n, err := incrLua.Run(ctx, s.client, []string{key}, ttl.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("redis incr: %w", err)
	}
	return n, nil
}

func (s *redisSessionStore) SetIfGreater(ctx context.Context, key string, value int64, ttl time.Duration) (bool, error) {
	n, err := setIfGreaterLua.Run(ctx, s.client, []string{key}, strconv.FormatInt(value, 10), ttl.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("redis set if greater: %w", err)
	}
	return n == 1, nil
}

func (s *redisSessionStore) IndexAdd(ctx context.Context, index, member string, ttl time.Duration) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, index, member)
		pipe.PExpire(ctx, index, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis index add: %w", err)
	}
	return nil
}

func (s *redisSessionStore) IndexMembers(ctx context.Context, index string) ([]string, error) {
	members, err := s.client.SMembers(ctx, index).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis index members: %w", err)
	}
	return members, nil
}

func (s *redisSessionStore) IndexRemove(ctx context.Context, index string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	args := make([]any, len(members))
	for i, m := range members {
		args[i] = m
	}
	if err := s.client.SRem(ctx, index, args...).Err(); err != nil {
		return fmt.Errorf("redis index remove: %w", err)
	}
	return nil
}

func (s *redisSessionStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return nil
}
