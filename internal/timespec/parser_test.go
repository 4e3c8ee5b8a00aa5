package timespec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 10, 29, 14, 0, 0, 0, time.UTC)

func TestParseAt(t *testing.T) {
	tests := []struct {
		name    string
		spec    string
		want    int64
		wantErr string
	}{
		{"rfc3339", "2025-10-29T13:00:00Z", now.Add(-time.Hour).Unix(), ""},
		{"rfc3339 with offset", "2025-10-29T15:00:00+02:00", now.Add(-time.Hour).Unix(), ""},
		{"duration", "1h", now.Add(-time.Hour).Unix(), ""},
		{"compound duration", "1h30m", now.Add(-90 * time.Minute).Unix(), ""},
		{"empty", "", 0, "empty time specification"},
		{"garbage", "yesterday", 0, "invalid time specification"},
		{"negative duration", "-1h", 0, "must not be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAt(tt.spec, now)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_UsesCurrentTime(t *testing.T) {
	before := time.Now().Add(-time.Minute).Unix()
	got, err := Parse("1m")
	require.NoError(t, err)
	assert.InDelta(t, before, got, 2)
}

func TestParseRangeAt(t *testing.T) {
	t.Run("no bounds", func(t *testing.T) {
		since, until, err := ParseRangeAt("", "", now)
		require.NoError(t, err)
		assert.Zero(t, since)
		assert.Zero(t, until)
	})

	t.Run("both bounds", func(t *testing.T) {
		since, until, err := ParseRangeAt("2h", "1h", now)
		require.NoError(t, err)
		assert.Equal(t, now.Add(-2*time.Hour).Unix(), since)
		assert.Equal(t, now.Add(-time.Hour).Unix(), until)
	})

	t.Run("since after until", func(t *testing.T) {
		_, _, err := ParseRangeAt("1h", "2h", now)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "--since must be before --until")
	})

	t.Run("invalid since names the flag", func(t *testing.T) {
		_, _, err := ParseRangeAt("soon", "", now)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid --since")
	})

	t.Run("invalid until names the flag", func(t *testing.T) {
		_, _, err := ParseRangeAt("", "later", now)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid --until")
	})
}
