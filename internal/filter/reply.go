package filter

import (
	"strings"

	"github.com/dyluth/tally/pkg/relay"
)

// Criteria defines filtering criteria for replies.
// All filters are ANDed together - a reply must match ALL criteria to pass.
type Criteria struct {
	Since  int64        // Unix seconds, 0 = no filter
	Until  int64        // Unix seconds, 0 = no filter
	Author relay.PubKey // exact author, empty = no filter
	Search string       // case-insensitive substring of content, empty = no filter
}

// Matches returns true if the reply matches all filter criteria.
// Empty/zero criteria values are treated as "match all" for that criterion.
func (c *Criteria) Matches(ev relay.Event) bool {
	if c.Since > 0 && ev.CreatedAt < c.Since {
		return false
	}
	if c.Until > 0 && ev.CreatedAt > c.Until {
		return false
	}

	if c.Author != "" && ev.Author != c.Author {
		return false
	}

	if c.Search != "" && !strings.Contains(strings.ToLower(ev.Content), strings.ToLower(c.Search)) {
		return false
	}

	return true
}

// HasFilters returns true if any filters are active.
func (c *Criteria) HasFilters() bool {
	return c.Since > 0 ||
		c.Until > 0 ||
		c.Author != "" ||
		c.Search != ""
}

// Apply returns the replies that match, in their original order. The input
// slice is not modified.
func (c *Criteria) Apply(replies []relay.Event) []relay.Event {
	if !c.HasFilters() {
		return replies
	}
	out := make([]relay.Event, 0, len(replies))
	for _, ev := range replies {
		if c.Matches(ev) {
			out = append(out, ev)
		}
	}
	return out
}
