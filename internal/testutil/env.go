package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dyluth/tally/pkg/relay"
	"github.com/nbd-wtf/go-nostr"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// Environment is an isolated set of fake relays with a dialer over them.
type Environment struct {
	T      *testing.T
	Relays []*FakeRelay
	Dialer *FakeDialer
}

// SetupEnvironment creates n empty relays at wss://relayN.test.
func SetupEnvironment(t *testing.T, n int) *Environment {
	t.Helper()
	relays := make([]*FakeRelay, n)
	for i := range relays {
		relays[i] = NewFakeRelay(fmt.Sprintf("wss://relay%d.test", i+1))
	}
	return &Environment{T: t, Relays: relays, Dialer: NewFakeDialer(relays...)}
}

// URLs returns the relay URLs in order.
func (e *Environment) URLs() []string {
	urls := make([]string, len(e.Relays))
	for i, r := range e.Relays {
		urls[i] = r.URL
	}
	return urls
}

// PublishAll stores events on every relay.
func (e *Environment) PublishAll(events ...*nostr.Event) {
	for _, r := range e.Relays {
		r.Publish(events...)
	}
}

// RequireClosed fails the test if any connection is still open.
func (e *Environment) RequireClosed() {
	e.T.Helper()
	require.Zero(e.T, e.Dialer.Open(), "relay connections left open")
}

// SetupRedisStore starts an in-process Redis and returns a store on it.
// The server and store are closed when the test ends.
func SetupRedisStore(t *testing.T, profileTTL time.Duration) (*relay.RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	store, err := relay.NewRedisStore(&redis.Options{Addr: mr.Addr()}, "test", profileTTL)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store, mr
}
