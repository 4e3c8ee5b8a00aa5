package thread

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dyluth/tally/internal/ident"
	"github.com/dyluth/tally/internal/testutil"
	"github.com/dyluth/tally/pkg/relay"
	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip19"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func newTestResolver(t *testing.T, env *testutil.Environment, store relay.Store, defaults ...string) *Resolver {
	t.Helper()
	if len(defaults) == 0 {
		defaults = env.URLs()
	}
	r, err := NewResolver(env.Dialer, store, Options{
		Relays:  defaults,
		Limits:  DefaultLimits(),
		Session: testSessionOptions(),
	})
	require.NoError(t, err)
	return r
}

func TestNewResolver(t *testing.T) {
	env := testutil.SetupEnvironment(t, 1)

	tests := []struct {
		name   string
		dialer relay.Dialer
		opts   Options
		want   string
	}{
		{"nil dialer", nil, Options{Relays: env.URLs(), Limits: DefaultLimits()}, "dialer cannot be nil"},
		{"no relays", env.Dialer, Options{Limits: DefaultLimits()}, "at least one default relay"},
		{"bad limits", env.Dialer, Options{Relays: env.URLs()}, "invalid limits"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewResolver(tt.dialer, nil, tt.opts)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestResolver_Resolve(t *testing.T) {
	defer goleak.VerifyNone(t)

	env := testutil.SetupEnvironment(t, 2)
	alice, bob, carol := testutil.Author(1), testutil.Author(2), testutil.Author(3)

	root := testutil.Note(alice, 1000, "hello world")
	r1 := testutil.Reply(bob, 1100, "first!", testutil.ID(root), testutil.ID(root))
	r2 := testutil.Reply(carol, 1200, "gm", testutil.ID(root), testutil.ID(root))
	nested := testutil.Reply(bob, 1300, "replying to carol", testutil.ID(root), testutil.ID(r2))

	env.Relays[0].Publish(root, r1, nested, testutil.Metadata(alice, 900, `{"display_name":"Alice"}`))
	env.Relays[1].Publish(r1, r2, testutil.Metadata(bob, 900, `{"name":"bob"}`))

	start, err := nip19.EncodeNote(nested.ID)
	require.NoError(t, err)

	resolved, err := newTestResolver(t, env, nil).Resolve(context.Background(), start)
	require.NoError(t, err)

	assert.NotEmpty(t, resolved.RequestID)
	assert.Equal(t, ident.KindNote, resolved.Pointer.Kind)
	assert.True(t, resolved.RootFound, "a reply reference resolves to the thread root")
	assert.Equal(t, testutil.ID(root), resolved.Root.ID)
	assert.Equal(t, "hello world", resolved.Root.Content)

	assert.Equal(t, []relay.EventID{testutil.ID(nested), testutil.ID(r2), testutil.ID(r1)}, eventIDs(resolved.Replies),
		"replies most recent first")
	assert.False(t, resolved.IsEmpty())

	require.Len(t, resolved.Authors, 2)
	assert.Equal(t, "Alice", resolved.Authors[alice].Label())
	assert.Equal(t, "bob", resolved.Authors[bob].Label())
	assert.NotContains(t, resolved.Authors, carol)

	assert.Equal(t, 2, resolved.Stats.Endpoints)
	assert.Zero(t, resolved.Stats.RelayFailures)
	assert.Positive(t, resolved.Stats.Queries)

	text := resolved.Text()
	assert.Contains(t, text, "ORIGINAL POST:\nAuthor: Alice\nContent: hello world\n")
	assert.Contains(t, text, "REPLIES (3 total):")
	assert.Contains(t, text, "Author: Anonymous\nContent: gm\n")

	env.RequireClosed()
}

func TestResolver_EmptyThread(t *testing.T) {
	env := testutil.SetupEnvironment(t, 1)
	root := testutil.Note(testutil.Author(1), 1000, "anyone?")
	env.PublishAll(root)

	resolved, err := newTestResolver(t, env, nil).Resolve(context.Background(), root.ID)
	require.NoError(t, err)
	assert.True(t, resolved.RootFound)
	assert.True(t, resolved.IsEmpty())
	assert.Contains(t, resolved.Text(), "REPLIES (0 total):")
}

func TestResolver_RootMissing(t *testing.T) {
	env := testutil.SetupEnvironment(t, 1)
	missing := relay.EventID(testutil.HexKey(77))
	reply := testutil.Reply(testutil.Author(2), 1100, "orphan", missing, missing)
	env.PublishAll(reply)

	resolved, err := newTestResolver(t, env, nil).Resolve(context.Background(), string(missing))
	require.NoError(t, err, "a missing root is not an error")
	assert.False(t, resolved.RootFound)
	assert.Equal(t, missing, resolved.Root.ID)
	assert.Equal(t, []relay.EventID{testutil.ID(reply)}, eventIDs(resolved.Replies))
}

func TestResolver_RelayHints(t *testing.T) {
	env := testutil.SetupEnvironment(t, 2)
	defaults, hint := env.Relays[0], env.Relays[1]

	author := testutil.Author(1)
	article := testutil.Article(author, 1000, "essay", "long read")
	coord := relay.Coordinate(30023, author, "essay")
	comment := testutil.Note(testutil.Author(2), 1100, "nice essay", nostr.Tag{"a", coord})
	hint.Publish(article, comment)

	naddr, err := nip19.EncodeEntity(string(author), 30023, "essay", []string{hint.URL + "/", hint.URL, defaults.URL})
	require.NoError(t, err)

	resolved, err := newTestResolver(t, env, nil, defaults.URL).Resolve(context.Background(), naddr)
	require.NoError(t, err)

	assert.Equal(t, ident.KindAddress, resolved.Pointer.Kind)
	assert.True(t, resolved.RootFound)
	assert.Equal(t, testutil.ID(article), resolved.Root.ID)
	assert.Equal(t, []relay.EventID{testutil.ID(comment)}, eventIDs(resolved.Replies))
	assert.Equal(t, 2, resolved.Stats.Endpoints, "hints are normalized, deduplicated and added to the defaults")
	assert.NotEmpty(t, defaults.Queries())
}

func TestResolver_AllRelaysFailed(t *testing.T) {
	env := testutil.SetupEnvironment(t, 2)
	for _, r := range env.Relays {
		r.FailDials(errors.New("connection refused"))
	}

	_, err := newTestResolver(t, env, nil).Resolve(context.Background(), testutil.HexKey(1))
	require.Error(t, err)
	assert.True(t, IsAllRelaysFailed(err))
	assert.Contains(t, err.Error(), "all 2 relays failed")
	env.RequireClosed()
}

func TestResolver_InvalidReference(t *testing.T) {
	env := testutil.SetupEnvironment(t, 1)

	_, err := newTestResolver(t, env, nil).Resolve(context.Background(), "not-a-thread")
	require.Error(t, err)
	assert.True(t, ident.IsInvalidReference(err))
	assert.Zero(t, env.Relays[0].Dials(), "nothing is dialed for an invalid reference")
}

func TestResolver_Cancelled(t *testing.T) {
	env := testutil.SetupEnvironment(t, 1)
	env.Relays[0].Hang()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := newTestResolver(t, env, nil).Resolve(ctx, testutil.HexKey(1))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	env.RequireClosed()
}

func TestResolver_CachesInRedis(t *testing.T) {
	env := testutil.SetupEnvironment(t, 1)
	store, mr := testutil.SetupRedisStore(t, time.Hour)

	root := testutil.Note(testutil.Author(1), 1000, "root")
	reply := testutil.Reply(testutil.Author(2), 1100, "reply", testutil.ID(root), testutil.ID(root))
	env.PublishAll(root, reply, testutil.Metadata(testutil.Author(2), 900, `{"name":"bob"}`))

	resolver := newTestResolver(t, env, store)
	ref, err := nip19.EncodeEvent(reply.ID, nil, "")
	require.NoError(t, err)

	first, err := resolver.Resolve(context.Background(), ref)
	require.NoError(t, err)

	assert.True(t, mr.Exists(relay.EventKey("test", testutil.ID(reply))))
	assert.True(t, mr.Exists(relay.EventKey("test", testutil.ID(root))))
	assert.True(t, mr.Exists(relay.ProfileKey("test", testutil.Author(2))))

	second, err := resolver.Resolve(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, first.Root, second.Root)
	assert.Equal(t, eventIDs(first.Replies), eventIDs(second.Replies))
	assert.Less(t, second.Stats.Queries, first.Stats.Queries, "cached root and profiles skip relay queries")
}

func TestResolver_ResolveProfile(t *testing.T) {
	env := testutil.SetupEnvironment(t, 1)
	alice := testutil.Author(1)
	env.PublishAll(testutil.Metadata(alice, 900, `{"name":"alice","lud16":"alice@getalby.com"}`))

	resolver := newTestResolver(t, env, nil)
	ctx := context.Background()

	npub, err := nip19.EncodePublicKey(string(alice))
	require.NoError(t, err)

	p, found, err := resolver.ResolveProfile(ctx, npub)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "alice", p.Name)
	assert.Equal(t, "alice@getalby.com", p.Lud16)

	_, found, err = resolver.ResolveProfile(ctx, testutil.HexKey(2))
	require.NoError(t, err)
	assert.False(t, found)

	_, _, err = resolver.ResolveProfile(ctx, "bob")
	assert.True(t, ident.IsInvalidReference(err))

	env.Relays[0].FailDials(errors.New("connection refused"))
	_, _, err = resolver.ResolveProfile(ctx, testutil.HexKey(2))
	assert.True(t, IsAllRelaysFailed(err))
}

func TestResolver_ProbeRelays(t *testing.T) {
	env := testutil.SetupEnvironment(t, 2)
	env.Relays[1].FailDials(errors.New("connection refused"))

	results := newTestResolver(t, env, nil).ProbeRelays(context.Background())
	require.Len(t, results, 2)
	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err)
	env.RequireClosed()
}
