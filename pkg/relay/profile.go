package relay

import (
	"encoding/json"
	"fmt"
)

// Profile is best-effort author metadata parsed from a kind 0 event.
// A missing profile is valid and renders as "Anonymous".
type Profile struct {
	PubKey      PubKey `json:"pubkey"`
	Name        string `json:"name,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Picture     string `json:"picture,omitempty"`
	About       string `json:"about,omitempty"`
	Nip05       string `json:"nip05,omitempty"`
	Website     string `json:"website,omitempty"`
	Lud16       string `json:"lud16,omitempty"` // Lightning address, used only by payment flows
	Lud06       string `json:"lud06,omitempty"` // LNURL, used only by payment flows
	UpdatedAt   int64  `json:"updated_at,omitempty"`
}

// AnonymousName is shown for authors without a usable profile.
const AnonymousName = "Anonymous"

// Label returns display_name, then name, then AnonymousName.
func (p Profile) Label() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	if p.Name != "" {
		return p.Name
	}
	return AnonymousName
}

// ParseProfile decodes kind 0 content. Clients disagree on field types, so
// non-string values are ignored rather than failing the whole profile.
// Content that is not a JSON object is an error.
func ParseProfile(pubkey PubKey, content string, createdAt int64) (Profile, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return Profile{}, fmt.Errorf("unparseable profile for %s: %w", pubkey.Short(), err)
	}
	if raw == nil {
		return Profile{}, fmt.Errorf("unparseable profile for %s: content is null", pubkey.Short())
	}

	str := func(keys ...string) string {
		for _, k := range keys {
			if v, ok := raw[k].(string); ok && v != "" {
				return v
			}
		}
		return ""
	}

	return Profile{
		PubKey:      pubkey,
		Name:        str("name", "username"),
		DisplayName: str("display_name", "displayName"),
		Picture:     str("picture"),
		About:       str("about"),
		Nip05:       str("nip05"),
		Website:     str("website"),
		Lud16:       str("lud16"),
		Lud06:       str("lud06"),
		UpdatedAt:   createdAt,
	}, nil
}
