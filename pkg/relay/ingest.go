package relay

import (
	"fmt"

	"github.com/nbd-wtf/go-nostr"
)

// Message is the validated form of a raw relay event. It is one of Post or
// ProfileUpdate; every other shape is rejected by Ingest.
type Message interface {
	MessageID() EventID
	isMessage()
}

// Post is a post-like event (text note or addressable long-form content).
type Post struct {
	Event
}

// ProfileUpdate is an unparsed kind 0 metadata event. Parsing is deferred to
// the consumer so that a malformed profile only affects that author.
type ProfileUpdate struct {
	ID        EventID
	Author    PubKey
	CreatedAt int64
	Content   string
}

func (p Post) MessageID() EventID          { return p.ID }
func (p ProfileUpdate) MessageID() EventID { return p.ID }
func (Post) isMessage()                    {}
func (ProfileUpdate) isMessage()           {}

// IngestOptions controls validation strictness at the ingestion boundary.
type IngestOptions struct {
	// VerifySignatures recomputes the event id hash and checks the Schnorr
	// signature. Off by default: relays already verify on publish.
	VerifySignatures bool
}

// MalformedEventError indicates a relay returned an event that failed validation.
type MalformedEventError struct {
	ID     string
	Reason string
}

func (e *MalformedEventError) Error() string {
	return fmt.Sprintf("malformed event '%s': %s", e.ID, e.Reason)
}

// IsMalformed returns true if the error is a MalformedEventError.
func IsMalformed(err error) bool {
	_, ok := err.(*MalformedEventError)
	return ok
}

// Ingest validates a raw relay event and converts it to a Message.
// Reference tags with invalid ids are dropped; the event itself is kept.
func Ingest(ev *nostr.Event, opts IngestOptions) (Message, error) {
	if ev == nil {
		return nil, &MalformedEventError{Reason: "nil event"}
	}

	id, err := ParseEventID(ev.ID)
	if err != nil {
		return nil, &MalformedEventError{ID: ev.ID, Reason: "invalid id"}
	}
	author, err := ParsePubKey(ev.PubKey)
	if err != nil {
		return nil, &MalformedEventError{ID: ev.ID, Reason: "invalid pubkey"}
	}

	if opts.VerifySignatures {
		if ev.GetID() != ev.ID {
			return nil, &MalformedEventError{ID: ev.ID, Reason: "id does not match content hash"}
		}
		if ok, err := ev.CheckSignature(); err != nil || !ok {
			return nil, &MalformedEventError{ID: ev.ID, Reason: "bad signature"}
		}
	}

	switch {
	case ev.Kind == KindProfile:
		return ProfileUpdate{
			ID:        id,
			Author:    author,
			CreatedAt: int64(ev.CreatedAt),
			Content:   ev.Content,
		}, nil
	case ev.Kind == KindTextNote, isAddressableKind(ev.Kind):
		return Post{Event: Event{
			ID:         id,
			Author:     author,
			Kind:       ev.Kind,
			Content:    ev.Content,
			CreatedAt:  int64(ev.CreatedAt),
			References: parseReferences(ev.Tags),
		}}, nil
	default:
		return nil, &MalformedEventError{ID: ev.ID, Reason: fmt.Sprintf("unsupported kind %d", ev.Kind)}
	}
}

// isAddressableKind reports whether kind is in the NIP-01 addressable range.
func isAddressableKind(kind int) bool {
	return kind >= 30000 && kind < 40000
}

func parseReferences(tags nostr.Tags) []Reference {
	var refs []Reference
	for _, tag := range tags {
		if len(tag) < 2 || tag[0] != "e" {
			continue
		}
		id, err := ParseEventID(tag[1])
		if err != nil {
			continue
		}
		ref := Reference{ID: id}
		if len(tag) > 2 {
			ref.Relay = tag[2]
		}
		if len(tag) > 3 {
			ref.Marker = Marker(tag[3])
		}
		refs = append(refs, ref)
	}
	return refs
}

// Coordinate returns the "a" tag value for an addressable event.
func Coordinate(kind int, author PubKey, identifier string) string {
	return fmt.Sprintf("%d:%s:%s", kind, author, identifier)
}
