package relay

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Serialization helpers for converting between Go structs and Redis hashes
//
// Redis stores data as string-to-string maps (hashes). The reference list is
// JSON-encoded into a single hash field.

// EventToHash converts an Event to a Redis hash.
func EventToHash(e Event) (map[string]interface{}, error) {
	refs := e.References
	if refs == nil {
		refs = []Reference{}
	}
	refsJSON, err := json.Marshal(refs)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal references: %w", err)
	}

	return map[string]interface{}{
		"id":         string(e.ID),
		"pubkey":     string(e.Author),
		"kind":       e.Kind,
		"content":    e.Content,
		"created_at": e.CreatedAt,
		"references": string(refsJSON),
	}, nil
}

// HashToEvent converts a Redis hash back to an Event, re-validating ids.
func HashToEvent(hash map[string]string) (Event, error) {
	id, err := ParseEventID(hash["id"])
	if err != nil {
		return Event{}, fmt.Errorf("invalid id field: %w", err)
	}
	author, err := ParsePubKey(hash["pubkey"])
	if err != nil {
		return Event{}, fmt.Errorf("invalid pubkey field: %w", err)
	}
	kind, err := strconv.Atoi(hash["kind"])
	if err != nil {
		return Event{}, fmt.Errorf("invalid kind field: %w", err)
	}
	createdAt, err := strconv.ParseInt(hash["created_at"], 10, 64)
	if err != nil {
		return Event{}, fmt.Errorf("invalid created_at field: %w", err)
	}

	var refs []Reference
	if raw := hash["references"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &refs); err != nil {
			return Event{}, fmt.Errorf("failed to unmarshal references: %w", err)
		}
	}
	if len(refs) == 0 {
		refs = nil
	}

	return Event{
		ID:         id,
		Author:     author,
		Kind:       kind,
		Content:    hash["content"],
		CreatedAt:  createdAt,
		References: refs,
	}, nil
}

// ProfileToHash converts a Profile to a Redis hash.
func ProfileToHash(p Profile) map[string]interface{} {
	return map[string]interface{}{
		"pubkey":       string(p.PubKey),
		"name":         p.Name,
		"display_name": p.DisplayName,
		"picture":      p.Picture,
		"about":        p.About,
		"nip05":        p.Nip05,
		"website":      p.Website,
		"lud16":        p.Lud16,
		"lud06":        p.Lud06,
		"updated_at":   p.UpdatedAt,
	}
}

// HashToProfile converts a Redis hash back to a Profile.
func HashToProfile(hash map[string]string) (Profile, error) {
	pubkey, err := ParsePubKey(hash["pubkey"])
	if err != nil {
		return Profile{}, fmt.Errorf("invalid pubkey field: %w", err)
	}

	var updatedAt int64
	if raw := hash["updated_at"]; raw != "" {
		updatedAt, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Profile{}, fmt.Errorf("invalid updated_at field: %w", err)
		}
	}

	return Profile{
		PubKey:      pubkey,
		Name:        hash["name"],
		DisplayName: hash["display_name"],
		Picture:     hash["picture"],
		About:       hash["about"],
		Nip05:       hash["nip05"],
		Website:     hash["website"],
		Lud16:       hash["lud16"],
		Lud06:       hash["lud06"],
		UpdatedAt:   updatedAt,
	}, nil
}
