package ident

import (
	"fmt"
	"strings"

	"github.com/dyluth/tally/pkg/relay"
	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip19"
)

// PointerKind identifies which encoding a thread reference used.
type PointerKind string

const (
	// KindNote is a bech32 "note1" event id
	KindNote PointerKind = "note"

	// KindEvent is a bech32 "nevent1" pointer, possibly with relay hints
	KindEvent PointerKind = "nevent"

	// KindAddress is a bech32 "naddr1" pointer to replaceable content
	KindAddress PointerKind = "naddr"

	// KindHex is a raw 64-character hex id
	KindHex PointerKind = "hex"
)

// Address identifies parameterized replaceable content by kind, author and
// "d" identifier rather than by event id.
type Address struct {
	Kind       int
	Author     relay.PubKey
	Identifier string
}

// Coordinate returns the "a" tag value for the address.
func (a Address) Coordinate() string {
	return relay.Coordinate(a.Kind, a.Author, a.Identifier)
}

// Pointer is a decoded thread reference. For KindAddress, ID is empty and
// Address is set; for every other kind ID is a valid EventID.
type Pointer struct {
	Kind    PointerKind
	ID      relay.EventID
	Author  relay.PubKey // optional, nevent only
	Address *Address
	Relays  []string // relay hints exactly as encoded
}

// LookupKey returns the value used to look the pointer up: the event id, or
// for addresses the identifier (falling back to the author).
func (p Pointer) LookupKey() string {
	if p.Address != nil {
		if p.Address.Identifier != "" {
			return p.Address.Identifier
		}
		return string(p.Address.Author)
	}
	return string(p.ID)
}

// Decode parses a user-supplied thread reference.
//
// The function handles four cases:
// 1. "note1..." - bare event id, no relay hints
// 2. "nevent1..." - event id plus embedded relay hints
// 3. "naddr1..." - replaceable content address plus relay hints
// 4. 64 hex characters - passed through, lower-cased
//
// Anything else returns an InvalidReferenceError.
func Decode(reference string) (Pointer, error) {
	ref := strings.TrimSpace(reference)

	switch {
	case strings.HasPrefix(ref, "note1"), strings.HasPrefix(ref, "nevent1"), strings.HasPrefix(ref, "naddr1"):
		return decodeBech32(ref)
	}

	id, err := relay.ParseEventID(ref)
	if err != nil {
		return Pointer{}, &InvalidReferenceError{Reference: ref, Reason: "not a note1, nevent1, naddr1 or 64-character hex id"}
	}
	return Pointer{Kind: KindHex, ID: id}, nil
}

func decodeBech32(ref string) (Pointer, error) {
	prefix, value, err := nip19.Decode(ref)
	if err != nil {
		return Pointer{}, &InvalidReferenceError{Reference: ref, Reason: err.Error()}
	}

	switch prefix {
	case "note":
		s, ok := value.(string)
		if !ok {
			return Pointer{}, &InvalidReferenceError{Reference: ref, Reason: "unexpected note payload"}
		}
		id, err := relay.ParseEventID(s)
		if err != nil {
			return Pointer{}, &InvalidReferenceError{Reference: ref, Reason: err.Error()}
		}
		return Pointer{Kind: KindNote, ID: id}, nil

	case "nevent":
		var ep nostr.EventPointer
		switch v := value.(type) {
		case nostr.EventPointer:
			ep = v
		case *nostr.EventPointer:
			ep = *v
		default:
			return Pointer{}, &InvalidReferenceError{Reference: ref, Reason: "unexpected nevent payload"}
		}
		id, err := relay.ParseEventID(ep.ID)
		if err != nil {
			return Pointer{}, &InvalidReferenceError{Reference: ref, Reason: err.Error()}
		}
		ptr := Pointer{Kind: KindEvent, ID: id, Relays: ep.Relays}
		if ep.Author != "" {
			if author, err := relay.ParsePubKey(ep.Author); err == nil {
				ptr.Author = author
			}
		}
		return ptr, nil

	case "naddr":
		var ap nostr.EntityPointer
		switch v := value.(type) {
		case nostr.EntityPointer:
			ap = v
		case *nostr.EntityPointer:
			ap = *v
		default:
			return Pointer{}, &InvalidReferenceError{Reference: ref, Reason: "unexpected naddr payload"}
		}
		author, err := relay.ParsePubKey(ap.PublicKey)
		if err != nil {
			return Pointer{}, &InvalidReferenceError{Reference: ref, Reason: err.Error()}
		}
		return Pointer{
			Kind: KindAddress,
			Address: &Address{
				Kind:       ap.Kind,
				Author:     author,
				Identifier: ap.Identifier,
			},
			Relays: ap.Relays,
		}, nil
	}

	return Pointer{}, &InvalidReferenceError{Reference: ref, Reason: fmt.Sprintf("unsupported bech32 prefix %q", prefix)}
}

// DecodePubKey parses an author reference: "npub1...", "nprofile1..." or
// 64 hex characters.
func DecodePubKey(reference string) (relay.PubKey, error) {
	ref := strings.TrimSpace(reference)

	if strings.HasPrefix(ref, "npub1") || strings.HasPrefix(ref, "nprofile1") {
		prefix, value, err := nip19.Decode(ref)
		if err != nil {
			return "", &InvalidReferenceError{Reference: ref, Reason: err.Error()}
		}
		var hexKey string
		switch v := value.(type) {
		case string:
			hexKey = v
		case nostr.ProfilePointer:
			hexKey = v.PublicKey
		case *nostr.ProfilePointer:
			hexKey = v.PublicKey
		default:
			return "", &InvalidReferenceError{Reference: ref, Reason: fmt.Sprintf("unexpected %s payload", prefix)}
		}
		pk, err := relay.ParsePubKey(hexKey)
		if err != nil {
			return "", &InvalidReferenceError{Reference: ref, Reason: err.Error()}
		}
		return pk, nil
	}

	pk, err := relay.ParsePubKey(ref)
	if err != nil {
		return "", &InvalidReferenceError{Reference: ref, Reason: "not an npub1, nprofile1 or 64-character hex key"}
	}
	return pk, nil
}

// InvalidReferenceError indicates the input matched no known encoding.
type InvalidReferenceError struct {
	Reference string
	Reason    string
}

func (e *InvalidReferenceError) Error() string {
	return fmt.Sprintf("invalid reference '%s': %s", e.Reference, e.Reason)
}

// IsInvalidReference checks if an error is an InvalidReferenceError.
func IsInvalidReference(err error) bool {
	_, ok := err.(*InvalidReferenceError)
	return ok
}
