package relay

import "fmt"

// Redis key pattern helpers
//
// All cache keys are namespaced so several tally configurations can share one
// Redis server without interference.
//
// Key pattern: tally:{namespace}:{entity}:{hex}

// EventKey returns the Redis key for a cached event.
// Pattern: tally:{namespace}:event:{event_id}
func EventKey(namespace string, id EventID) string {
	return fmt.Sprintf("tally:%s:event:%s", namespace, id)
}

// ProfileKey returns the Redis key for a cached profile.
// Pattern: tally:{namespace}:profile:{pubkey}
func ProfileKey(namespace string, pubkey PubKey) string {
	return fmt.Sprintf("tally:%s:profile:%s", namespace, pubkey)
}
