package thread

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dyluth/tally/internal/ident"
	"github.com/dyluth/tally/pkg/relay"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// AllRelaysFailedError means no endpoint answered any query of a resolution
// and neither the root nor any reply was found.
type AllRelaysFailedError struct {
	Endpoints []string
	Failures  int
}

func (e *AllRelaysFailedError) Error() string {
	return fmt.Sprintf("all %d relays failed (%d failed calls)", len(e.Endpoints), e.Failures)
}

// IsAllRelaysFailed checks if an error is an AllRelaysFailedError.
func IsAllRelaysFailed(err error) bool {
	var target *AllRelaysFailedError
	return errors.As(err, &target)
}

// Options configures a Resolver.
type Options struct {
	Relays  []string // default endpoints, always queried first
	Limits  Limits
	Session relay.Options
}

// Stats summarizes one resolution.
type Stats struct {
	Walk          WalkStats
	Endpoints     int
	Queries       int // across root lookup, walk and author lookup
	Responses     int
	RelayFailures int
	Elapsed       time.Duration
}

// Resolved is a reconstructed thread.
type Resolved struct {
	RequestID string
	Pointer   ident.Pointer
	Root      relay.Event
	RootFound bool                           // false: Root only carries the id
	Replies   []relay.Event                  // most recent first
	Authors   map[relay.PubKey]relay.Profile // authors with a usable profile
	Stats     Stats
}

// IsEmpty reports whether the thread has no replies. An empty thread is a
// valid result, not an error.
func (r *Resolved) IsEmpty() bool {
	return len(r.Replies) == 0
}

// Text renders the thread with Format.
func (r *Resolved) Text() string {
	return Format(r.Root, r.Replies, r.Authors)
}

// Resolver reconstructs threads from references. Each call to Resolve opens
// its own relay session; a Resolver is safe for concurrent use.
type Resolver struct {
	dialer relay.Dialer
	store  relay.Store // optional
	opts   Options
}

// NewResolver creates a resolver. store may be nil.
func NewResolver(dialer relay.Dialer, store relay.Store, opts Options) (*Resolver, error) {
	if dialer == nil {
		return nil, fmt.Errorf("dialer cannot be nil")
	}
	if len(opts.Relays) == 0 {
		return nil, fmt.Errorf("at least one default relay is required")
	}
	if err := opts.Limits.Validate(); err != nil {
		return nil, fmt.Errorf("invalid limits: %w", err)
	}
	return &Resolver{dialer: dialer, store: store, opts: opts}, nil
}

// Resolve decodes reference, finds the thread root, walks the reply graph and
// fetches author profiles.
//
// Returns *ident.InvalidReferenceError for undecodable references and
// *AllRelaysFailedError when no relay answered and nothing was found. A root
// that cannot be fetched is not an error: RootFound is false and replies are
// still collected.
func (r *Resolver) Resolve(ctx context.Context, reference string) (*Resolved, error) {
	started := time.Now()

	ptr, err := ident.Decode(reference)
	if err != nil {
		return nil, err
	}

	requestID := uuid.NewString()
	logger := log.With().Str("request_id", requestID).Logger()

	endpoints := relay.Endpoints(r.opts.Relays, ptr.Relays)
	logger.Debug().
		Str("pointer", string(ptr.Kind)).
		Int("endpoints", len(endpoints)).
		Msg("Resolving thread")

	session := relay.NewSession(r.dialer, r.opts.Session)
	defer func() {
		if err := session.Close(); err != nil {
			logger.Debug().Err(err).Msg("Failed to close relay session")
		}
	}()
	q := &countingQuerier{inner: session}

	roots := NewRootResolver(q, r.store)

	var (
		anchor    Anchor
		root      relay.Event
		rootFound bool
	)

	if ptr.Kind == ident.KindAddress {
		anchor.Coordinate = ptr.Address.Coordinate()
		ev, found, err := roots.ResolveAddress(ctx, *ptr.Address, endpoints)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve address: %w", err)
		}
		if found {
			anchor.ID = ev.ID
			root, rootFound = ev, true
		} else {
			root = relay.Event{Author: ptr.Address.Author, Kind: ptr.Address.Kind}
		}
	} else {
		rr, err := roots.ResolveRoot(ctx, ptr.ID, endpoints)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve root: %w", err)
		}
		anchor.ID = rr.RootID

		switch {
		case rr.StartFound && rr.Start.ID == rr.RootID:
			root, rootFound = *rr.Start, true
		case rr.StartFound:
			ev, found, err := roots.FetchEvent(ctx, rr.RootID, endpoints)
			if err != nil {
				return nil, fmt.Errorf("failed to fetch root: %w", err)
			}
			root, rootFound = ev, found
			if !found {
				root = relay.Event{ID: rr.RootID}
			}
		default:
			root = relay.Event{ID: rr.RootID, Author: ptr.Author}
		}
	}

	if !rootFound {
		logger.Info().Str("root", root.ID.Short()).Msg("Root event not found on any relay")
	}

	walker := NewWalker(q, r.opts.Limits)
	collected, walkStats, err := walker.Walk(ctx, anchor, endpoints)
	if err != nil {
		return nil, fmt.Errorf("failed to walk thread: %w", err)
	}

	if !rootFound && collected.Len() == 0 && q.responses == 0 && q.failures > 0 {
		return nil, &AllRelaysFailedError{Endpoints: endpoints, Failures: q.failures}
	}

	replies := collected.Events()
	SortReplies(replies)

	// Profiles come from the default relays only; hints are thread-specific
	pubkeys := append([]relay.PubKey{root.Author}, collected.Authors()...)
	authors := NewDirectory(q, r.store, r.opts.Limits.BatchSize).
		ResolveAuthors(ctx, pubkeys, relay.Endpoints(r.opts.Relays))

	resolved := &Resolved{
		RequestID: requestID,
		Pointer:   ptr,
		Root:      root,
		RootFound: rootFound,
		Replies:   replies,
		Authors:   authors,
		Stats: Stats{
			Walk:          walkStats,
			Endpoints:     len(endpoints),
			Queries:       q.queries,
			Responses:     q.responses,
			RelayFailures: q.failures,
			Elapsed:       time.Since(started),
		},
	}

	logger.Info().
		Str("root", root.ID.Short()).
		Bool("root_found", rootFound).
		Int("replies", len(replies)).
		Int("authors", len(authors)).
		Int("levels", walkStats.Levels).
		Bool("truncated", walkStats.Truncated).
		Int("relay_failures", q.failures).
		Dur("elapsed", resolved.Stats.Elapsed).
		Msg("Thread resolved")

	return resolved, nil
}

// ResolveProfile fetches the profile of one author from the default relays.
// Returns false if the author has no usable profile.
func (r *Resolver) ResolveProfile(ctx context.Context, reference string) (relay.Profile, bool, error) {
	pk, err := ident.DecodePubKey(reference)
	if err != nil {
		return relay.Profile{}, false, err
	}

	session := relay.NewSession(r.dialer, r.opts.Session)
	defer session.Close()

	q := &countingQuerier{inner: session}
	profiles := NewDirectory(q, r.store, r.opts.Limits.BatchSize).
		ResolveAuthors(ctx, []relay.PubKey{pk}, relay.Endpoints(r.opts.Relays))

	if p, ok := profiles[pk]; ok {
		return p, true, nil
	}
	if err := ctx.Err(); err != nil {
		return relay.Profile{}, false, err
	}
	if q.responses == 0 && q.failures > 0 {
		return relay.Profile{}, false, &AllRelaysFailedError{Endpoints: r.opts.Relays, Failures: q.failures}
	}
	return relay.Profile{}, false, nil
}

// ProbeRelays dials every default relay and reports reachability.
func (r *Resolver) ProbeRelays(ctx context.Context) []relay.ProbeResult {
	session := relay.NewSession(r.dialer, r.opts.Session)
	defer session.Close()
	return session.Probe(ctx, relay.Endpoints(r.opts.Relays))
}

// countingQuerier tallies endpoint answers and failures across the queries
// of one resolution.
type countingQuerier struct {
	inner Querier

	mu        sync.Mutex
	queries   int
	responses int
	failures  int
}

func (c *countingQuerier) Query(ctx context.Context, endpoints []string, filter relay.Filter) *relay.Result {
	res := c.inner.Query(ctx, endpoints, filter)

	c.mu.Lock()
	c.queries++
	c.responses += res.Responded
	c.failures += len(res.Failures)
	c.mu.Unlock()

	return res
}
