package printer

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T) (*bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	noColor := color.NoColor
	color.NoColor = true

	var out, errOut bytes.Buffer
	restore := SetOutput(&out, &errOut)
	t.Cleanup(func() {
		restore()
		color.NoColor = noColor
	})
	return &out, &errOut
}

func TestError(t *testing.T) {
	t.Run("returns error with title", func(t *testing.T) {
		_, errOut := capture(t)
		err := Error("Test Error", "This is a test error", []string{})
		require.Error(t, err)
		require.Equal(t, "Test Error", err.Error())
		assert.Equal(t, "Test Error\n\nThis is a test error\n", errOut.String())
	})

	t.Run("single suggestion printed bare", func(t *testing.T) {
		_, errOut := capture(t)
		err := Error("Test Error", "Explanation", []string{"Try this fix"})
		require.Equal(t, "Test Error", err.Error())
		assert.Contains(t, errOut.String(), "\nTry this fix\n")
		assert.NotContains(t, errOut.String(), "Either:")
	})

	t.Run("multiple suggestions numbered", func(t *testing.T) {
		_, errOut := capture(t)
		err := Error("Test Error", "Explanation", []string{
			"First option",
			"Second option",
		})
		require.Equal(t, "Test Error", err.Error())
		assert.Contains(t, errOut.String(), "Either:\n  1. First option\n  2. Second option\n")
	})
}

func TestErrorWithContext(t *testing.T) {
	t.Run("context printed in key order", func(t *testing.T) {
		out, errOut := capture(t)
		context := map[string]string{
			"Reference": "note1abc",
			"Endpoints": "5",
		}
		err := ErrorWithContext("Test Error", "Explanation", context, []string{})
		require.Error(t, err)
		require.Equal(t, "Test Error", err.Error())
		assert.Contains(t, errOut.String(), "  Endpoints: 5\n  Reference: note1abc\n")
		assert.Empty(t, out.String())
	})
}

func TestOutputHelpers(t *testing.T) {
	out, errOut := capture(t)

	Success("done\n")
	Info("info %d\n", 1)
	Printf("plain %s\n", "text")
	Println("line")
	Warning("careful\n")
	Step("working\n")

	assert.Equal(t, "✓ done\ninfo 1\nplain text\nline\n", out.String())
	assert.Equal(t, "⚠️  careful\n→ working\n", errOut.String())
}

func TestRelayStatus(t *testing.T) {
	out, _ := capture(t)

	RelayStatus("wss://nos.lol", 1500*time.Microsecond, nil)
	RelayStatus("wss://down.example.com", 0, errors.New("connection refused"))

	assert.Contains(t, out.String(), "✓ wss://nos.lol")
	assert.Contains(t, out.String(), "2ms")
	assert.Contains(t, out.String(), "✗ wss://down.example.com")
	assert.Contains(t, out.String(), "connection refused")
}
