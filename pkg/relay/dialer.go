package relay

import (
	"context"
	"errors"
	"fmt"

	"github.com/nbd-wtf/go-nostr"
)

// Conn is an open connection to one relay.
type Conn interface {
	// Query sends filter as a subscription and returns the stored events
	// received before end-of-stored-events. An answer that never reaches
	// end-of-stored-events is an error, not a partial result.
	Query(ctx context.Context, filter nostr.Filter) ([]*nostr.Event, error)

	// Close releases the connection.
	Close() error
}

// Dialer opens relay connections.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// ErrIncomplete is returned when a relay stops answering before EOSE.
var ErrIncomplete = errors.New("relay closed subscription before end of stored events")

// NostrDialer dials real relays over websockets.
type NostrDialer struct{}

// Dial connects to url. ctx bounds the connection handshake only.
func (NostrDialer) Dial(ctx context.Context, url string) (Conn, error) {
	r, err := nostr.RelayConnect(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	return &nostrConn{relay: r}, nil
}

type nostrConn struct {
	relay *nostr.Relay
}

func (c *nostrConn) Query(ctx context.Context, filter nostr.Filter) ([]*nostr.Event, error) {
	sub, err := c.relay.Subscribe(ctx, nostr.Filters{filter})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}
	defer sub.Unsub()

	var events []*nostr.Event
	for {
		select {
		case ev, ok := <-sub.Events:
			if !ok {
				return nil, ErrIncomplete
			}
			events = append(events, ev)
		case <-sub.EndOfStoredEvents:
			// Drain anything delivered alongside EOSE
			for {
				select {
				case ev, ok := <-sub.Events:
					if !ok {
						return events, nil
					}
					events = append(events, ev)
				default:
					return events, nil
				}
			}
		case reason := <-sub.ClosedReason:
			return nil, fmt.Errorf("%w: %s", ErrIncomplete, reason)
		case <-ctx.Done():
			return nil, fmt.Errorf("no end of stored events before deadline: %w", ctx.Err())
		}
	}
}

func (c *nostrConn) Close() error {
	return c.relay.Close()
}
