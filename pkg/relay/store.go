package relay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

// Store caches immutable events and expiring profiles between requests.
// Only complete, validated records are stored, so a cache hit can never
// surface a partial relay answer.
type Store interface {
	// GetEvent returns ErrNotFound when the event is not cached.
	GetEvent(ctx context.Context, id EventID) (Event, error)
	PutEvents(ctx context.Context, events ...Event) error

	// GetProfiles returns the cached subset of pubkeys; misses are omitted.
	GetProfiles(ctx context.Context, pubkeys []PubKey) (map[PubKey]Profile, error)
	PutProfiles(ctx context.Context, profiles ...Profile) error

	Close() error
}

// ErrNotFound is returned by stores for cache misses.
var ErrNotFound = errors.New("not found in store")

// IsNotFound returns true if the error is a store miss.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, redis.Nil)
}

// RedisStore is a Store backed by Redis hashes.
// It is safe for concurrent use.
type RedisStore struct {
	rdb        *redis.Client
	namespace  string
	profileTTL time.Duration
}

// NewRedisStore creates a Redis-backed store. Profiles expire after
// profileTTL; events never expire because they are immutable.
//
// Returns an error if namespace is empty.
func NewRedisStore(redisOpts *redis.Options, namespace string, profileTTL time.Duration) (*RedisStore, error) {
	if namespace == "" {
		return nil, fmt.Errorf("namespace cannot be empty")
	}

	return &RedisStore{
		rdb:        redis.NewClient(redisOpts),
		namespace:  namespace,
		profileTTL: profileTTL,
	}, nil
}

// Close closes the Redis connection. Implements io.Closer.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

// Ping verifies Redis connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// GetEvent reads a cached event.
func (s *RedisStore) GetEvent(ctx context.Context, id EventID) (Event, error) {
	hashData, err := s.rdb.HGetAll(ctx, EventKey(s.namespace, id)).Result()
	if err != nil {
		return Event{}, fmt.Errorf("failed to read event from Redis: %w", err)
	}

	// HGetAll returns an empty map for missing keys
	if len(hashData) == 0 {
		return Event{}, ErrNotFound
	}

	ev, err := HashToEvent(hashData)
	if err != nil {
		return Event{}, fmt.Errorf("failed to deserialize event: %w", err)
	}
	return ev, nil
}

// PutEvents writes events in one pipeline. Writing the same event twice is safe.
func (s *RedisStore) PutEvents(ctx context.Context, events ...Event) error {
	if len(events) == 0 {
		return nil
	}

	pipe := s.rdb.Pipeline()
	for _, ev := range events {
		hash, err := EventToHash(ev)
		if err != nil {
			return fmt.Errorf("failed to serialize event: %w", err)
		}
		pipe.HSet(ctx, EventKey(s.namespace, ev.ID), hash)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write events to Redis: %w", err)
	}
	return nil
}

// GetProfiles reads cached profiles in one pipeline.
func (s *RedisStore) GetProfiles(ctx context.Context, pubkeys []PubKey) (map[PubKey]Profile, error) {
	profiles := make(map[PubKey]Profile, len(pubkeys))
	if len(pubkeys) == 0 {
		return profiles, nil
	}

	pipe := s.rdb.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(pubkeys))
	for i, pk := range pubkeys {
		cmds[i] = pipe.HGetAll(ctx, ProfileKey(s.namespace, pk))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to read profiles from Redis: %w", err)
	}

	for _, cmd := range cmds {
		hashData := cmd.Val()
		if len(hashData) == 0 {
			continue
		}
		p, err := HashToProfile(hashData)
		if err != nil {
			// Treat a corrupt entry as a miss; it is refetched and overwritten
			continue
		}
		profiles[p.PubKey] = p
	}
	return profiles, nil
}

// PutProfiles writes profiles with the store's TTL.
func (s *RedisStore) PutProfiles(ctx context.Context, profiles ...Profile) error {
	if len(profiles) == 0 {
		return nil
	}

	pipe := s.rdb.Pipeline()
	for _, p := range profiles {
		key := ProfileKey(s.namespace, p.PubKey)
		pipe.HSet(ctx, key, ProfileToHash(p))
		if s.profileTTL > 0 {
			pipe.Expire(ctx, key, s.profileTTL)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write profiles to Redis: %w", err)
	}
	return nil
}

// MemoryStore is an in-process Store with bounded LRU eviction.
// Used when no Redis URL is configured.
type MemoryStore struct {
	events   *expirable.LRU[EventID, Event]
	profiles *expirable.LRU[PubKey, Profile]
}

// NewMemoryStore creates a store holding at most size events and size
// profiles. Profiles expire after profileTTL.
func NewMemoryStore(size int, profileTTL time.Duration) *MemoryStore {
	if size < 1 {
		size = 1
	}
	return &MemoryStore{
		events:   expirable.NewLRU[EventID, Event](size, nil, 0),
		profiles: expirable.NewLRU[PubKey, Profile](size, nil, profileTTL),
	}
}

func (s *MemoryStore) GetEvent(_ context.Context, id EventID) (Event, error) {
	ev, ok := s.events.Get(id)
	if !ok {
		return Event{}, ErrNotFound
	}
	return ev, nil
}

func (s *MemoryStore) PutEvents(_ context.Context, events ...Event) error {
	for _, ev := range events {
		s.events.Add(ev.ID, ev)
	}
	return nil
}

func (s *MemoryStore) GetProfiles(_ context.Context, pubkeys []PubKey) (map[PubKey]Profile, error) {
	profiles := make(map[PubKey]Profile, len(pubkeys))
	for _, pk := range pubkeys {
		if p, ok := s.profiles.Get(pk); ok {
			profiles[pk] = p
		}
	}
	return profiles, nil
}

func (s *MemoryStore) PutProfiles(_ context.Context, profiles ...Profile) error {
	for _, p := range profiles {
		s.profiles.Add(p.PubKey, p)
	}
	return nil
}

func (s *MemoryStore) Close() error {
	s.events.Purge()
	s.profiles.Purge()
	return nil
}
