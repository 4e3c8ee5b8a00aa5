package thread

import (
	"fmt"

	"github.com/dyluth/tally/pkg/relay"
)

// Limits bounds one reply-graph walk. All four are hard ceilings.
type Limits struct {
	MaxDepth      int // BFS levels expanded from the root
	PerQueryLimit int // "limit" sent with each batch query
	BatchSize     int // ids per "#e" filter
	MaxTotal      int // events collected per walk
}

// DefaultLimits returns the walk defaults.
func DefaultLimits() Limits {
	return Limits{
		MaxDepth:      2,
		PerQueryLimit: 500,
		BatchSize:     150,
		MaxTotal:      2000,
	}
}

// Validate checks that every limit is positive.
func (l Limits) Validate() error {
	if l.MaxDepth < 1 {
		return fmt.Errorf("max_depth must be >= 1, got %d", l.MaxDepth)
	}
	if l.PerQueryLimit < 1 {
		return fmt.Errorf("per_query_limit must be >= 1, got %d", l.PerQueryLimit)
	}
	if l.BatchSize < 1 {
		return fmt.Errorf("batch_size must be >= 1, got %d", l.BatchSize)
	}
	if l.MaxTotal < 1 {
		return fmt.Errorf("max_total must be >= 1, got %d", l.MaxTotal)
	}
	return nil
}

// CollectedSet maps EventID to Event. No id appears twice, however many
// relays or levels return it. Insertion order is kept for stable output.
type CollectedSet struct {
	byID  map[relay.EventID]relay.Event
	order []relay.EventID
}

// NewCollectedSet returns an empty set.
func NewCollectedSet() *CollectedSet {
	return &CollectedSet{byID: make(map[relay.EventID]relay.Event)}
}

// Add inserts ev unless its id is already present. Returns true if inserted.
func (c *CollectedSet) Add(ev relay.Event) bool {
	if _, ok := c.byID[ev.ID]; ok {
		return false
	}
	c.byID[ev.ID] = ev
	c.order = append(c.order, ev.ID)
	return true
}

// Has reports whether id is in the set.
func (c *CollectedSet) Has(id relay.EventID) bool {
	_, ok := c.byID[id]
	return ok
}

// Get returns the event with the given id.
func (c *CollectedSet) Get(id relay.EventID) (relay.Event, bool) {
	ev, ok := c.byID[id]
	return ev, ok
}

// Len returns the number of distinct events.
func (c *CollectedSet) Len() int {
	return len(c.order)
}

// Events returns the events in insertion order.
func (c *CollectedSet) Events() []relay.Event {
	events := make([]relay.Event, 0, len(c.order))
	for _, id := range c.order {
		events = append(events, c.byID[id])
	}
	return events
}

// Authors returns the distinct authors in first-seen order.
func (c *CollectedSet) Authors() []relay.PubKey {
	seen := make(map[relay.PubKey]struct{})
	var authors []relay.PubKey
	for _, id := range c.order {
		pk := c.byID[id].Author
		if _, ok := seen[pk]; ok {
			continue
		}
		seen[pk] = struct{}{}
		authors = append(authors, pk)
	}
	return authors
}
