package thread

import (
	"context"
	"testing"
	"time"

	"github.com/dyluth/tally/internal/ident"
	"github.com/dyluth/tally/internal/testutil"
	"github.com/dyluth/tally/pkg/relay"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootOf(t *testing.T) {
	self := relay.EventID(testutil.HexKey(1))
	root := relay.EventID(testutil.HexKey(2))
	other := relay.EventID(testutil.HexKey(3))

	tests := []struct {
		name string
		refs []relay.Reference
		want relay.EventID
	}{
		{"top-level post is its own root", nil, self},
		{"marked root wins over position", []relay.Reference{
			{ID: other, Marker: relay.MarkerReply},
			{ID: root, Marker: relay.MarkerRoot},
		}, root},
		{"first unmarked reference", []relay.Reference{{ID: other}, {ID: root}}, other},
		{"root marker among unmarked", []relay.Reference{{ID: other}, {ID: root, Marker: relay.MarkerRoot}}, root},
		{"reply-only marker falls back to first", []relay.Reference{{ID: other, Marker: relay.MarkerReply}}, other},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RootOf(relay.Event{ID: self, References: tt.refs}))
		})
	}
}

func TestRootResolver_ResolveRoot(t *testing.T) {
	env := testutil.SetupEnvironment(t, 2)
	root := testutil.Note(testutil.Author(1), 1000, "root")
	reply := testutil.Reply(testutil.Author(2), 1100, "reply", testutil.ID(root), testutil.ID(root))
	nested := testutil.Reply(testutil.Author(3), 1200, "nested", testutil.ID(root), testutil.ID(reply))
	env.Relays[0].Publish(root, reply)
	env.Relays[1].Publish(nested)

	resolver := NewRootResolver(newSession(t, env), nil)
	ctx := context.Background()

	t.Run("reply resolves to its root", func(t *testing.T) {
		rr, err := resolver.ResolveRoot(ctx, testutil.ID(nested), env.URLs())
		require.NoError(t, err)
		assert.Equal(t, testutil.ID(root), rr.RootID)
		assert.True(t, rr.StartFound)
		assert.Equal(t, "nested", rr.Start.Content)
	})

	t.Run("root resolves to itself", func(t *testing.T) {
		rr, err := resolver.ResolveRoot(ctx, testutil.ID(root), env.URLs())
		require.NoError(t, err)
		assert.Equal(t, testutil.ID(root), rr.RootID)
		assert.True(t, rr.StartFound)
	})

	t.Run("unknown start is treated as root", func(t *testing.T) {
		missing := relay.EventID(testutil.HexKey(99))
		rr, err := resolver.ResolveRoot(ctx, missing, env.URLs())
		require.NoError(t, err)
		assert.Equal(t, missing, rr.RootID)
		assert.False(t, rr.StartFound)
		assert.Nil(t, rr.Start)
	})

	t.Run("cancelled context is an error", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := resolver.ResolveRoot(cctx, testutil.ID(root), env.URLs())
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestRootResolver_FetchEventUsesStore(t *testing.T) {
	env := testutil.SetupEnvironment(t, 1)
	note := testutil.Note(testutil.Author(1), 1000, "cached")
	env.Relays[0].Publish(note)

	store := relay.NewMemoryStore(16, time.Hour)
	defer store.Close()
	resolver := NewRootResolver(newSession(t, env), store)
	ctx := context.Background()

	ev, found, err := resolver.FetchEvent(ctx, testutil.ID(note), env.URLs())
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "cached", ev.Content)
	assert.Len(t, env.Relays[0].Queries(), 1)

	stored, err := store.GetEvent(ctx, testutil.ID(note))
	require.NoError(t, err, "fetched events are written back")
	assert.Equal(t, ev, stored)

	again, found, err := resolver.FetchEvent(ctx, testutil.ID(note), env.URLs())
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, ev, again)
	assert.Len(t, env.Relays[0].Queries(), 1, "second lookup served from the store")
}

func TestRootResolver_ResolveAddress(t *testing.T) {
	env := testutil.SetupEnvironment(t, 2)
	old := testutil.Article(testutil.Author(1), 1000, "essay", "first draft")
	latest := testutil.Article(testutil.Author(1), 2000, "essay", "final")
	env.Relays[0].Publish(old)
	env.Relays[1].Publish(latest)

	resolver := NewRootResolver(newSession(t, env), nil)
	ctx := context.Background()

	ev, found, err := resolver.ResolveAddress(ctx, ident.Address{Kind: 30023, Author: testutil.Author(1), Identifier: "essay"}, env.URLs())
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "final", ev.Content, "newest version wins")

	_, found, err = resolver.ResolveAddress(ctx, ident.Address{Kind: 30023, Author: testutil.Author(1), Identifier: "missing"}, env.URLs())
	require.NoError(t, err)
	assert.False(t, found)
}
