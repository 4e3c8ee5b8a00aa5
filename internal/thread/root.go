package thread

import (
	"context"

	"github.com/dyluth/tally/internal/ident"
	"github.com/dyluth/tally/pkg/relay"
	"github.com/rs/zerolog/log"
)

// RootOf returns the thread root an event points at: the reference marked
// "root", else the first reference, else the event itself.
func RootOf(ev relay.Event) relay.EventID {
	for _, ref := range ev.References {
		if ref.Marker == relay.MarkerRoot {
			return ref.ID
		}
	}
	if len(ev.References) > 0 {
		return ev.References[0].ID
	}
	return ev.ID
}

// RootResult is the outcome of root resolution.
type RootResult struct {
	RootID     relay.EventID
	StartFound bool         // false means RootNotFound: RootID is the start id
	Start      *relay.Event // the start event, when found
}

// RootResolver finds the canonical root of a thread.
// Lookups consult the store first; fetched events are written back.
type RootResolver struct {
	pool  Querier
	store relay.Store // optional
}

// NewRootResolver creates a root resolver. store may be nil.
func NewRootResolver(pool Querier, store relay.Store) *RootResolver {
	return &RootResolver{pool: pool, store: store}
}

// ResolveRoot fetches startID and returns the root it points at. If the start
// event is on no endpoint, startID is returned as the root with
// StartFound=false. Only context errors are returned.
func (r *RootResolver) ResolveRoot(ctx context.Context, startID relay.EventID, endpoints []string) (RootResult, error) {
	start, found, err := r.FetchEvent(ctx, startID, endpoints)
	if err != nil {
		return RootResult{}, err
	}
	if !found {
		log.Debug().Str("event", startID.Short()).Msg("Start event not found; treating it as root")
		return RootResult{RootID: startID}, nil
	}

	return RootResult{
		RootID:     RootOf(start),
		StartFound: true,
		Start:      &start,
	}, nil
}

// FetchEvent looks an event up by id, store first.
func (r *RootResolver) FetchEvent(ctx context.Context, id relay.EventID, endpoints []string) (relay.Event, bool, error) {
	if r.store != nil {
		ev, err := r.store.GetEvent(ctx, id)
		if err == nil {
			return ev, true, nil
		}
		if !relay.IsNotFound(err) {
			log.Debug().Err(err).Msg("Event store lookup failed")
		}
	}

	res := r.pool.Query(ctx, endpoints, relay.Filter{
		IDs:   []relay.EventID{id},
		Limit: 1,
	})
	if err := ctx.Err(); err != nil {
		return relay.Event{}, false, err
	}

	ev, ok := res.Get(id)
	if !ok {
		return relay.Event{}, false, nil
	}
	r.remember(ctx, ev)
	return ev, true, nil
}

// ResolveAddress finds the newest event published at addr.
func (r *RootResolver) ResolveAddress(ctx context.Context, addr ident.Address, endpoints []string) (relay.Event, bool, error) {
	res := r.pool.Query(ctx, endpoints, relay.Filter{
		Kinds:       []int{addr.Kind},
		Authors:     []relay.PubKey{addr.Author},
		Identifiers: []string{addr.Identifier},
		Limit:       1,
	})
	if err := ctx.Err(); err != nil {
		return relay.Event{}, false, err
	}

	var newest relay.Event
	found := false
	for _, ev := range res.Events() {
		if ev.Author != addr.Author || ev.Kind != addr.Kind {
			continue
		}
		if !found || ev.CreatedAt > newest.CreatedAt {
			newest = ev
			found = true
		}
	}
	return newest, found, nil
}

func (r *RootResolver) remember(ctx context.Context, events ...relay.Event) {
	if r.store == nil {
		return
	}
	if err := r.store.PutEvents(ctx, events...); err != nil {
		log.Debug().Err(err).Msg("Event store write failed")
	}
}
