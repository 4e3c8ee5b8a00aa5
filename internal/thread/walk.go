package thread

import (
	"context"

	"github.com/dyluth/tally/pkg/relay"
	"github.com/rs/zerolog/log"
)

// Querier issues one filter to a set of endpoints and returns the folded,
// best-effort union. *relay.Session implements it.
type Querier interface {
	Query(ctx context.Context, endpoints []string, filter relay.Filter) *relay.Result
}

// Anchor is where a walk starts: the root event id, the root's address
// coordinate (for replaceable content), or both.
type Anchor struct {
	ID         relay.EventID
	Coordinate string
}

// WalkStats summarizes one walk.
type WalkStats struct {
	Levels        int  // BFS levels merged
	Queries       int  // batch queries issued
	Responses     int  // endpoint answers across all queries
	RelayFailures int  // endpoint failures across all queries
	Truncated     bool // MaxTotal stopped discovery
}

// Walker expands a thread breadth-first from its root.
type Walker struct {
	pool   Querier
	limits Limits
}

// NewWalker creates a walker with the given limits.
func NewWalker(pool Querier, limits Limits) *Walker {
	return &Walker{pool: pool, limits: limits}
}

// walk is the state of one Walk call. The frontier is the worklist for the
// current level and collected doubles as the seen-set.
type walk struct {
	w         *Walker
	anchor    Anchor
	endpoints []string
	collected *CollectedSet
	frontier  []relay.EventID
	addresses []string // only expanded at the first level
	stats     WalkStats
}

// Walk collects events that reference the anchor, then events that reference
// those, level by level, until MaxDepth levels are expanded, the frontier is
// empty or a new event is refused because MaxTotal events are collected. The
// root itself is never collected.
//
// A level is merged only after all its batches finish. If ctx is cancelled
// mid-level, that level is discarded and the set from the previous levels is
// returned with the context error.
func (w *Walker) Walk(ctx context.Context, anchor Anchor, endpoints []string) (*CollectedSet, WalkStats, error) {
	wk := &walk{
		w:         w,
		anchor:    anchor,
		endpoints: endpoints,
		collected: NewCollectedSet(),
	}
	if anchor.ID != "" {
		wk.frontier = []relay.EventID{anchor.ID}
	}
	if anchor.Coordinate != "" {
		wk.addresses = []string{anchor.Coordinate}
	}

	for depth := 0; depth < w.limits.MaxDepth; depth++ {
		if len(wk.frontier) == 0 && len(wk.addresses) == 0 {
			break
		}
		staged, err := wk.expand(ctx)
		if err != nil {
			return wk.collected, wk.stats, err
		}

		next := make([]relay.EventID, 0, len(staged))
		for _, ev := range staged {
			if wk.collected.Add(ev) {
				next = append(next, ev.ID)
			}
		}
		wk.stats.Levels++

		log.Debug().
			Int("depth", depth).
			Int("frontier", len(wk.frontier)+len(wk.addresses)).
			Int("discovered", len(next)).
			Int("collected", wk.collected.Len()).
			Msg("Expanded thread level")

		wk.frontier = next
		wk.addresses = nil

		if wk.stats.Truncated {
			break
		}
	}

	return wk.collected, wk.stats, nil
}

// expand queries every batch of the current frontier and returns the newly
// discovered events, capped so the set never exceeds MaxTotal. Truncated is
// set only when a new event is refused; the remaining batches are skipped.
func (wk *walk) expand(ctx context.Context) ([]relay.Event, error) {
	limits := wk.w.limits
	budget := limits.MaxTotal - wk.collected.Len()

	var filters []relay.Filter
	for _, batch := range partition(wk.frontier, limits.BatchSize) {
		filters = append(filters, relay.Filter{
			Kinds:      []int{relay.KindTextNote},
			References: batch,
			Limit:      limits.PerQueryLimit,
		})
	}
	for _, batch := range partition(wk.addresses, limits.BatchSize) {
		filters = append(filters, relay.Filter{
			Kinds:     []int{relay.KindTextNote},
			Addresses: batch,
			Limit:     limits.PerQueryLimit,
		})
	}

	var staged []relay.Event
	stagedIDs := make(map[relay.EventID]struct{})

	for _, f := range filters {
		if wk.stats.Truncated {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res := wk.w.pool.Query(ctx, wk.endpoints, f)
		wk.stats.Queries++
		wk.stats.Responses += res.Responded
		wk.stats.RelayFailures += len(res.Failures)

		for _, ev := range res.Events() {
			if ev.ID == wk.anchor.ID || wk.collected.Has(ev.ID) {
				continue
			}
			if _, ok := stagedIDs[ev.ID]; ok {
				continue
			}
			if len(staged) >= budget {
				wk.stats.Truncated = true
				break
			}
			stagedIDs[ev.ID] = struct{}{}
			staged = append(staged, ev)
		}
	}

	// Relays answer cancelled queries with errors, not data; do not merge a
	// level that may be missing batches.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return staged, nil
}

// partition splits items into consecutive chunks of at most size.
func partition[T any](items []T, size int) [][]T {
	if size < 1 {
		size = 1
	}
	var chunks [][]T
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end])
	}
	return chunks
}
