// Package relay provides type-safe Go definitions for the Nostr events the
// thread resolver consumes, a per-request relay query session, and the event
// and profile stores used to avoid refetching immutable data.
//
// Relays are independently operated and unreliable. Nothing in this package
// treats any single relay as authoritative: queries are issued to many relays
// and the successful responses are folded into one deduplicated result.
package relay

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Event kinds consumed by the resolver.
const (
	// KindProfile is user metadata (NIP-01 kind 0)
	KindProfile = 0

	// KindTextNote is a short text post (NIP-01 kind 1)
	KindTextNote = 1
)

// EventID is a 64-character lowercase hexadecimal event identifier.
// It is the sole deduplication key for events.
type EventID string

// PubKey is a 64-character lowercase hexadecimal author key.
type PubKey string

// ParseEventID validates s as a 64-hex identifier and returns it lower-cased.
func ParseEventID(s string) (EventID, error) {
	if !isHex64(s) {
		return "", fmt.Errorf("invalid event id %q: must be 64 hex characters", s)
	}
	return EventID(strings.ToLower(s)), nil
}

// ParsePubKey validates s as a 64-hex public key and returns it lower-cased.
func ParsePubKey(s string) (PubKey, error) {
	if !isHex64(s) {
		return "", fmt.Errorf("invalid pubkey %q: must be 64 hex characters", s)
	}
	return PubKey(strings.ToLower(s)), nil
}

// Short returns the first 8 characters for compact display.
func (id EventID) Short() string {
	if len(id) > 8 {
		return string(id[:8])
	}
	return string(id)
}

// Short returns the first 8 characters for compact display.
func (pk PubKey) Short() string {
	if len(pk) > 8 {
		return string(pk[:8])
	}
	return string(pk)
}

func isHex64(s string) bool {
	if len(s) != 64 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// Marker is the relation role carried by an "e" reference tag (NIP-10).
type Marker string

const (
	// MarkerNone is an unmarked (positional) reference
	MarkerNone Marker = ""

	// MarkerRoot points at the thread root
	MarkerRoot Marker = "root"

	// MarkerReply points at the immediate parent
	MarkerReply Marker = "reply"

	// MarkerMention is a quote or mention, not a thread relation
	MarkerMention Marker = "mention"
)

// Reference is one "e" tag of an event, in tag order.
type Reference struct {
	ID     EventID `json:"id"`
	Relay  string  `json:"relay,omitempty"`
	Marker Marker  `json:"marker,omitempty"`
}

// Event is an immutable post-like record served by relays.
// The resolver only indexes events; it never mutates them.
type Event struct {
	ID         EventID     `json:"id"`
	Author     PubKey      `json:"pubkey"`
	Kind       int         `json:"kind"`
	Content    string      `json:"content"`
	CreatedAt  int64       `json:"created_at"` // Unix seconds
	References []Reference `json:"references,omitempty"`
}

// Filter describes a relay query. Empty fields are not sent.
// Tag filters match events whose tags contain any of the given values.
type Filter struct {
	IDs         []EventID
	Kinds       []int
	Authors     []PubKey
	References  []EventID // "#e"
	Addresses   []string  // "#a", kind:pubkey:identifier coordinates
	Identifiers []string  // "#d"
	Limit       int
}
