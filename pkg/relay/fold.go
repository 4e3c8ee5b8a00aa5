package relay

import (
	"fmt"
	"sort"
)

// Outcome is the result of one filter against one endpoint: either the
// validated messages it returned or the error that excluded it.
type Outcome struct {
	Index    int // position of the endpoint in the query, for stable folding
	Endpoint string
	Messages []Message
	Err      error
}

// RelayError records why an endpoint contributed nothing to a query.
type RelayError struct {
	Endpoint string
	Err      error
}

func (e *RelayError) Error() string {
	return fmt.Sprintf("relay %s unavailable: %v", e.Endpoint, e.Err)
}

func (e *RelayError) Unwrap() error {
	return e.Err
}

// Result is the best-effort union of all successful outcomes of a query.
// Posts are deduplicated by EventID and kept in fold order.
type Result struct {
	posts     map[EventID]Event
	order     []EventID
	Profiles  []ProfileUpdate
	Failures  []*RelayError
	Responded int // endpoints that answered (possibly with zero events)
}

// Len returns the number of distinct posts.
func (r *Result) Len() int {
	return len(r.order)
}

// Events returns the distinct posts in fold order: endpoint order, then the
// order each endpoint returned them.
func (r *Result) Events() []Event {
	events := make([]Event, 0, len(r.order))
	for _, id := range r.order {
		events = append(events, r.posts[id])
	}
	return events
}

// Get returns the post with the given id, if any endpoint returned it.
func (r *Result) Get(id EventID) (Event, bool) {
	ev, ok := r.posts[id]
	return ev, ok
}

// AllFailed is true when at least one endpoint was asked and none answered.
func (r *Result) AllFailed() bool {
	return r.Responded == 0 && len(r.Failures) > 0
}

// Fold merges outcomes into a Result. Failed outcomes are recorded and
// excluded; successful ones are unioned by EventID. The fold is independent of
// arrival order: outcomes are applied by endpoint index.
func Fold(outcomes []Outcome) *Result {
	sorted := make([]Outcome, len(outcomes))
	copy(sorted, outcomes)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Index < sorted[j].Index
	})

	res := &Result{posts: make(map[EventID]Event)}
	seenProfiles := make(map[EventID]struct{})

	for _, o := range sorted {
		if o.Err != nil {
			res.Failures = append(res.Failures, &RelayError{Endpoint: o.Endpoint, Err: o.Err})
			continue
		}
		res.Responded++

		for _, m := range o.Messages {
			switch msg := m.(type) {
			case Post:
				if _, ok := res.posts[msg.ID]; ok {
					continue
				}
				res.posts[msg.ID] = msg.Event
				res.order = append(res.order, msg.ID)
			case ProfileUpdate:
				if _, ok := seenProfiles[msg.ID]; ok {
					continue
				}
				seenProfiles[msg.ID] = struct{}{}
				res.Profiles = append(res.Profiles, msg)
			}
		}
	}

	return res
}
