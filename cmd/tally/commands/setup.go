package commands

import (
	"context"
	"fmt"

	"github.com/dyluth/tally/internal/config"
	"github.com/dyluth/tally/internal/thread"
	"github.com/dyluth/tally/pkg/relay"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// storeNamespace scopes Redis keys so several tools can share one server.
const storeNamespace = "default"

// dialer opens relay connections. Tests replace it with in-process relays.
var dialer relay.Dialer = relay.NostrDialer{}

// openStore returns the Redis store when configured and reachable, else the
// in-memory store. An unreachable Redis degrades to memory with a warning.
func openStore(ctx context.Context, cfg *config.TallyConfig) relay.Store {
	memory := func() relay.Store {
		return relay.NewMemoryStore(cfg.Cache.MemorySize, *cfg.Cache.ProfileTTL)
	}

	if cfg.Cache.RedisURL == "" {
		return memory()
	}

	redisOpts, err := redis.ParseURL(cfg.Cache.RedisURL)
	if err != nil {
		log.Warn().Err(err).Msg("Invalid Redis URL; using in-memory cache")
		return memory()
	}

	store, err := relay.NewRedisStore(redisOpts, storeNamespace, *cfg.Cache.ProfileTTL)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create Redis store; using in-memory cache")
		return memory()
	}
	if err := store.Ping(ctx); err != nil {
		store.Close()
		log.Warn().Err(err).Msg("Redis unreachable; using in-memory cache")
		return memory()
	}
	return store
}

// resolverOptions maps configuration onto resolver options.
func resolverOptions(cfg *config.TallyConfig) thread.Options {
	opts := relay.DefaultOptions()
	opts.RelayTimeout = cfg.Timeouts.Relay
	opts.ConnectTimeout = cfg.Timeouts.Connect
	opts.MaxConcurrency = *cfg.MaxConcurrency
	opts.Ingest = relay.IngestOptions{VerifySignatures: cfg.VerifySignatures}

	return thread.Options{
		Relays: cfg.Relays,
		Limits: thread.Limits{
			MaxDepth:      cfg.Limits.MaxDepth,
			PerQueryLimit: cfg.Limits.PerQueryLimit,
			BatchSize:     cfg.Limits.BatchSize,
			MaxTotal:      cfg.Limits.MaxTotal,
		},
		Session: opts,
	}
}

// newResolver builds a resolver and the store it uses. Caller closes the store.
func newResolver(ctx context.Context, opts thread.Options, cfg *config.TallyConfig) (*thread.Resolver, relay.Store, error) {
	store := openStore(ctx, cfg)
	resolver, err := thread.NewResolver(dialer, store, opts)
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("failed to create resolver: %w", err)
	}
	return resolver, store, nil
}
