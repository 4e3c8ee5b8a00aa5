// Package testutil provides in-process fake relays and event builders for
// exercising relay sessions and thread resolution without a network.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dyluth/tally/pkg/relay"
	"github.com/nbd-wtf/go-nostr"
)

// FakeRelay is an in-memory relay. Queries are answered with the stored
// events matching the filter, newest first, capped at the filter limit.
type FakeRelay struct {
	URL string

	mu      sync.Mutex
	events  []*nostr.Event
	err     error         // returned by every query
	dialErr error         // returned by every dial
	delay   time.Duration // added before answering
	hang    bool          // never answer; wait for the caller's context
	queries []nostr.Filter
	dials   int
}

// NewFakeRelay creates an empty relay at url.
func NewFakeRelay(url string) *FakeRelay {
	return &FakeRelay{URL: url}
}

// Publish stores events on the relay.
func (r *FakeRelay) Publish(events ...*nostr.Event) *FakeRelay {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
	return r
}

// FailQueries makes every query return err.
func (r *FakeRelay) FailQueries(err error) *FakeRelay {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
	return r
}

// FailDials makes every dial return err.
func (r *FakeRelay) FailDials(err error) *FakeRelay {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dialErr = err
	return r
}

// Slow delays every answer by d.
func (r *FakeRelay) Slow(d time.Duration) *FakeRelay {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delay = d
	return r
}

// Hang makes queries block until the caller gives up.
func (r *FakeRelay) Hang() *FakeRelay {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hang = true
	return r
}

// Queries returns every filter the relay received.
func (r *FakeRelay) Queries() []nostr.Filter {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]nostr.Filter(nil), r.queries...)
}

// Dials returns how many connections were opened to the relay.
func (r *FakeRelay) Dials() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dials
}

func (r *FakeRelay) query(ctx context.Context, filter nostr.Filter) ([]*nostr.Event, error) {
	r.mu.Lock()
	r.queries = append(r.queries, filter)
	err, delay, hang := r.err, r.delay, r.hang
	var matched []*nostr.Event
	for _, ev := range r.events {
		if filter.Matches(ev) {
			matched = append(matched, ev)
		}
	}
	r.mu.Unlock()

	if hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt > matched[j].CreatedAt
	})
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

// FakeDialer connects to FakeRelays by URL. Unknown URLs fail to dial.
type FakeDialer struct {
	mu     sync.Mutex
	relays map[string]*FakeRelay
	open   int
}

// NewFakeDialer creates a dialer serving the given relays.
func NewFakeDialer(relays ...*FakeRelay) *FakeDialer {
	d := &FakeDialer{relays: make(map[string]*FakeRelay)}
	for _, r := range relays {
		d.relays[r.URL] = r
	}
	return d
}

// Dial implements relay.Dialer.
func (d *FakeDialer) Dial(ctx context.Context, url string) (relay.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	r, ok := d.relays[url]
	d.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("no relay at %s", url)
	}

	r.mu.Lock()
	dialErr := r.dialErr
	r.dials++
	r.mu.Unlock()
	if dialErr != nil {
		return nil, dialErr
	}

	d.mu.Lock()
	d.open++
	d.mu.Unlock()
	return &fakeConn{relay: r, dialer: d}, nil
}

// Open returns the number of connections not yet closed.
func (d *FakeDialer) Open() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open
}

type fakeConn struct {
	relay  *FakeRelay
	dialer *FakeDialer
	once   sync.Once
	closed bool
	mu     sync.Mutex
}

func (c *fakeConn) Query(ctx context.Context, filter nostr.Filter) ([]*nostr.Event, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, fmt.Errorf("connection to %s closed", c.relay.URL)
	}
	return c.relay.query(ctx, filter)
}

func (c *fakeConn) Close() error {
	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		c.dialer.mu.Lock()
		c.dialer.open--
		c.dialer.mu.Unlock()
	})
	return nil
}
