package testutil

import (
	"fmt"

	"github.com/dyluth/tally/pkg/relay"
	"github.com/nbd-wtf/go-nostr"
)

// HexKey returns a deterministic 64-hex key for n, usable as a pubkey or id.
func HexKey(n int) string {
	return fmt.Sprintf("%064x", n)
}

// Author returns the deterministic pubkey for n.
func Author(n int) relay.PubKey {
	return relay.PubKey(HexKey(n))
}

// ETag builds an "e" tag. An empty marker leaves the tag unmarked.
func ETag(id relay.EventID, marker relay.Marker) nostr.Tag {
	if marker == relay.MarkerNone {
		return nostr.Tag{"e", string(id)}
	}
	return nostr.Tag{"e", string(id), "", string(marker)}
}

// Note builds a kind-1 text note. The id is the real content hash, so
// distinct content yields distinct ids.
func Note(author relay.PubKey, createdAt int64, content string, tags ...nostr.Tag) *nostr.Event {
	ev := &nostr.Event{
		PubKey:    string(author),
		CreatedAt: nostr.Timestamp(createdAt),
		Kind:      relay.KindTextNote,
		Tags:      nostr.Tags(tags),
		Content:   content,
	}
	ev.ID = ev.GetID()
	return ev
}

// Reply builds a note replying to parent within the thread rooted at root,
// using marked "e" tags.
func Reply(author relay.PubKey, createdAt int64, content string, root, parent relay.EventID) *nostr.Event {
	tags := []nostr.Tag{ETag(root, relay.MarkerRoot)}
	if parent != root {
		tags = append(tags, ETag(parent, relay.MarkerReply))
	}
	return Note(author, createdAt, content, tags...)
}

// Metadata builds a kind-0 profile event with raw JSON content.
func Metadata(author relay.PubKey, createdAt int64, content string) *nostr.Event {
	ev := &nostr.Event{
		PubKey:    string(author),
		CreatedAt: nostr.Timestamp(createdAt),
		Kind:      relay.KindProfile,
		Content:   content,
	}
	ev.ID = ev.GetID()
	return ev
}

// Article builds an addressable event (kind 30023) with a "d" identifier.
func Article(author relay.PubKey, createdAt int64, identifier, content string) *nostr.Event {
	ev := &nostr.Event{
		PubKey:    string(author),
		CreatedAt: nostr.Timestamp(createdAt),
		Kind:      30023,
		Tags:      nostr.Tags{{"d", identifier}},
		Content:   content,
	}
	ev.ID = ev.GetID()
	return ev
}

// ID returns the typed id of ev.
func ID(ev *nostr.Event) relay.EventID {
	return relay.EventID(ev.ID)
}
