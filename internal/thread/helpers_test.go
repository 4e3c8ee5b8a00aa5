package thread

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dyluth/tally/internal/testutil"
	"github.com/dyluth/tally/pkg/relay"
	"github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/require"
)

func testSessionOptions() relay.Options {
	return relay.Options{
		RelayTimeout:   500 * time.Millisecond,
		ConnectTimeout: 200 * time.Millisecond,
		MaxConcurrency: 8,
	}
}

// newSession opens a session over env that is closed when the test ends.
func newSession(t *testing.T, env *testutil.Environment) *relay.Session {
	t.Helper()
	s := relay.NewSession(env.Dialer, testSessionOptions())
	t.Cleanup(func() {
		require.NoError(t, s.Close())
		env.RequireClosed()
	})
	return s
}

// stubQuerier answers every query with fn and records the filters.
type stubQuerier struct {
	fn func(ctx context.Context, filter relay.Filter) []relay.Event

	mu      sync.Mutex
	filters []relay.Filter
}

func (s *stubQuerier) Query(ctx context.Context, _ []string, filter relay.Filter) *relay.Result {
	s.mu.Lock()
	s.filters = append(s.filters, filter)
	s.mu.Unlock()

	var messages []relay.Message
	if s.fn != nil {
		for _, ev := range s.fn(ctx, filter) {
			messages = append(messages, relay.Post{Event: ev})
		}
	}
	return relay.Fold([]relay.Outcome{{Endpoint: "wss://stub.test", Messages: messages}})
}

func (s *stubQuerier) Filters() []relay.Filter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]relay.Filter(nil), s.filters...)
}

// replies builds n direct replies to root, one second apart.
func replies(root relay.EventID, from, n int) []*nostr.Event {
	events := make([]*nostr.Event, n)
	for i := range events {
		k := from + i
		events[i] = testutil.Reply(testutil.Author(100+k%7), int64(2000+k), fmt.Sprintf("reply %d", k), root, root)
	}
	return events
}

func eventIDs(events []relay.Event) []relay.EventID {
	ids := make([]relay.EventID, len(events))
	for i, ev := range events {
		ids[i] = ev.ID
	}
	return ids
}

func toEvent(t *testing.T, ev *nostr.Event) relay.Event {
	t.Helper()
	msg, err := relay.Ingest(ev, relay.IngestOptions{})
	require.NoError(t, err)
	post, ok := msg.(relay.Post)
	require.True(t, ok)
	return post.Event
}
