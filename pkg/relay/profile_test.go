package relay

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProfile(t *testing.T) {
	pk := PubKey(strings.Repeat("a", 64))

	t.Run("standard fields", func(t *testing.T) {
		p, err := ParseProfile(pk, `{"name":"alice","display_name":"Alice","lud16":"alice@getalby.com","nip05":"alice@example.com"}`, 42)
		require.NoError(t, err)
		assert.Equal(t, pk, p.PubKey)
		assert.Equal(t, "alice", p.Name)
		assert.Equal(t, "Alice", p.DisplayName)
		assert.Equal(t, "alice@getalby.com", p.Lud16)
		assert.Equal(t, "alice@example.com", p.Nip05)
		assert.Equal(t, int64(42), p.UpdatedAt)
	})

	t.Run("legacy field names", func(t *testing.T) {
		p, err := ParseProfile(pk, `{"username":"bob","displayName":"Bob"}`, 1)
		require.NoError(t, err)
		assert.Equal(t, "bob", p.Name)
		assert.Equal(t, "Bob", p.DisplayName)
	})

	t.Run("non-string values ignored", func(t *testing.T) {
		p, err := ParseProfile(pk, `{"name":"carol","about":42,"picture":null,"lud16":["x"]}`, 1)
		require.NoError(t, err)
		assert.Equal(t, "carol", p.Name)
		assert.Empty(t, p.About)
		assert.Empty(t, p.Picture)
		assert.Empty(t, p.Lud16)
	})

	t.Run("unparseable content", func(t *testing.T) {
		for _, content := range []string{"", "not json", `["a"]`, `"name"`, "null"} {
			_, err := ParseProfile(pk, content, 1)
			assert.Error(t, err, "content %q", content)
		}
	})
}

func TestProfileLabel(t *testing.T) {
	tests := []struct {
		name    string
		profile Profile
		want    string
	}{
		{"display name preferred", Profile{Name: "alice", DisplayName: "Alice"}, "Alice"},
		{"name fallback", Profile{Name: "alice"}, "alice"},
		{"anonymous", Profile{}, AnonymousName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.profile.Label())
		})
	}
}
