package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/YuldShah/uptovipnew/internal/database"
	"github.com/YuldShah/uptovipnew/internal/domain"
)

// redisUpsertScript writes an entry atomically, keeping created_at.
// KEYS[1] = entry hash, KEYS[2] = validation index
// ARGV[1] = fingerprint, ARGV[2] = reference, ARGV[3] = now millis,
// ARGV[4] = size, ARGV[5] = artifact kind
var redisUpsertScript = redis.NewScript(`
redis.call("HSETNX", KEYS[1], "created_at", ARGV[3])
redis.call("HSET", KEYS[1],
    "artifact_reference", ARGV[2],
    "last_validated_at", ARGV[3],
    "size_bytes", ARGV[4],
    "artifact_kind", ARGV[5])
redis.call("ZADD", KEYS[2], ARGV[3], ARGV[1])
return redis.call("HGET", KEYS[1], "created_at")
`)

// redisEvictScript removes entries validated before a cutoff. Each score is
// read again inside the script so an entry revalidated after the scan stays.
// KEYS[1] = validation index
// ARGV[1] = exclusive cutoff millis, ARGV[2] = key prefix
var redisEvictScript = redis.NewScript(`
local removed = 0
local members = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", "(" .. ARGV[1])
for _, fp in ipairs(members) do
    local score = redis.call("ZSCORE", KEYS[1], fp)
    if score and tonumber(score) < tonumber(ARGV[1]) then
        redis.call("DEL", ARGV[2] .. ":" .. fp)
        redis.call("ZREM", KEYS[1], fp)
        removed = removed + 1
    end
end
return removed
`)

// RedisStore implements Store with one hash per fingerprint and a sorted set
// scored by last validation time.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// RedisOptions configures the Redis cache backend.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// NewRedisStore creates a store backed by Redis.
func NewRedisStore(opts RedisOptions) *RedisStore {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "uptovip:cache"
	}
	return &RedisStore{client: rdb, prefix: prefix}
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) entryKey(fp domain.Fingerprint) string {
	return s.prefix + ":" + string(fp)
}

func (s *RedisStore) indexKey() string {
	return s.prefix + ":validated"
}

// Get returns the entry for fp.
func (s *RedisStore) Get(ctx context.Context, fp domain.Fingerprint) (*domain.CacheEntry, error) {
	fields, err := s.client.HGetAll(ctx, s.entryKey(fp)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	if len(fields) == 0 {
		return nil, domain.ErrEntryNotFound
	}

	created, _ := strconv.ParseInt(fields["created_at"], 10, 64)
	validated, _ := strconv.ParseInt(fields["last_validated_at"], 10, 64)
	size, _ := strconv.ParseInt(fields["size_bytes"], 10, 64)

	return &domain.CacheEntry{
		Fingerprint:       fp,
		ArtifactReference: fields["artifact_reference"],
		CreatedAt:         database.FromMillis(created),
		LastValidatedAt:   database.FromMillis(validated),
		SizeBytes:         size,
		ArtifactKind:      domain.ArtifactKind(fields["artifact_kind"]),
	}, nil
}

// Upsert writes the entry.
func (s *RedisStore) Upsert(ctx context.Context, entry domain.CacheEntry) (*domain.CacheEntry, error) {
	validated := database.Millis(entry.LastValidatedAt)
	res, err := redisUpsertScript.Run(ctx, s.client,
		[]string{s.entryKey(entry.Fingerprint), s.indexKey()},
		string(entry.Fingerprint), entry.ArtifactReference, validated, entry.SizeBytes, string(entry.ArtifactKind),
	).Text()
	if err != nil {
		return nil, fmt.Errorf("redis upsert: %w", err)
	}

	created, err := strconv.ParseInt(res, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("redis upsert: invalid created_at %q", res)
	}
	entry.CreatedAt = database.FromMillis(created)
	return &entry, nil
}

// Delete removes the entry for fp.
func (s *RedisStore) Delete(ctx context.Context, fp domain.Fingerprint) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.entryKey(fp))
		pipe.ZRem(ctx, s.indexKey(), string(fp))
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	return nil
}

// DeleteValidatedBefore removes stale entries in one script run, so an
// Upsert racing the eviction is never lost.
func (s *RedisStore) DeleteValidatedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	n, err := redisEvictScript.Run(ctx, s.client,
		[]string{s.indexKey()},
		database.Millis(cutoff), s.prefix,
	).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("redis evict: %w", err)
	}
	return n, nil
}
