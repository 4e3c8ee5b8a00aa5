package relay

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEventID(t *testing.T) {
	valid := strings.Repeat("ab", 32)

	tests := []struct {
		name    string
		input   string
		want    EventID
		wantErr bool
	}{
		{"lowercase hex", valid, EventID(valid), false},
		{"uppercase is lowered", strings.ToUpper(valid), EventID(valid), false},
		{"too short", valid[:63], "", true},
		{"too long", valid + "a", "", true},
		{"not hex", strings.Repeat("zz", 32), "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseEventID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "must be 64 hex characters")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParsePubKey(t *testing.T) {
	pk, err := ParsePubKey(strings.Repeat("CD", 32))
	require.NoError(t, err)
	assert.Equal(t, PubKey(strings.Repeat("cd", 32)), pk)

	_, err = ParsePubKey("npub1xyz")
	assert.Error(t, err)
}

func TestShort(t *testing.T) {
	assert.Equal(t, "abababab", EventID(strings.Repeat("ab", 32)).Short())
	assert.Equal(t, "cdcdcdcd", PubKey(strings.Repeat("cd", 32)).Short())
	assert.Equal(t, "abc", EventID("abc").Short())
}
