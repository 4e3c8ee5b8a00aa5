package relay

import (
	"net/url"
	"strings"

	"github.com/nbd-wtf/go-nostr"
)

// NormalizeEndpoint canonicalizes a relay URL. Returns false for anything
// that is not a websocket URL after normalization.
func NormalizeEndpoint(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	u := nostr.NormalizeURL(raw)
	if !strings.HasPrefix(u, "wss://") && !strings.HasPrefix(u, "ws://") {
		return "", false
	}
	if p, err := url.Parse(u); err != nil || p.Hostname() == "" {
		return "", false
	}
	return u, true
}

// Endpoints builds the endpoint list for a request. Defaults always come
// first; hints are appended, never replacing defaults. Invalid and duplicate
// URLs are dropped.
func Endpoints(defaults []string, hints ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string

	add := func(urls []string) {
		for _, raw := range urls {
			u, ok := NormalizeEndpoint(raw)
			if !ok {
				continue
			}
			if _, dup := seen[u]; dup {
				continue
			}
			seen[u] = struct{}{}
			out = append(out, u)
		}
	}

	add(defaults)
	for _, h := range hints {
		add(h)
	}
	return out
}
