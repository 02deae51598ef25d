package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeUUID(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "16-bit UUID lowercase", input: "ffe1", expected: "ffe1"},
		{name: "16-bit UUID uppercase", input: "FFE1", expected: "ffe1"},
		{name: "16-bit UUID with 0x prefix", input: "0xFFE0", expected: "ffe0"},
		{name: "Full Bluetooth SIG UUID with dashes", input: "0000ffe0-0000-1000-8000-00805f9b34fb", expected: "ffe0"},
		{name: "Full Bluetooth SIG UUID uppercase", input: "0000FFE1-0000-1000-8000-00805F9B34FB", expected: "ffe1"},
		{name: "Full Bluetooth SIG UUID without dashes", input: "0000ffe100001000800000805f9b34fb", expected: "ffe1"},
		{name: "Custom UUID - wrong prefix", input: "AA00ffe1-0000-1000-8000-00805f9b34fb", expected: "aa00ffe100001000800000805f9b34fb"},
		{name: "Custom UUID - completely different", input: "6e400001-b5a3-f393-e0a9-e50e24dcca9e", expected: "6e400001b5a3f393e0a9e50e24dcca9e"},
		{name: "Empty string", input: "", expected: ""},
		{name: "Surrounding whitespace", input: "  ffe1 ", expected: "ffe1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeUUID(tt.input))
		})
	}
}

func TestEqualUUID(t *testing.T) {
	assert.True(t, EqualUUID("FFE0", "0000ffe0-0000-1000-8000-00805f9b34fb"))
	assert.False(t, EqualUUID("ffe0", "ffe1"))
}

func TestValidateUUID(t *testing.T) {
	got, err := ValidateUUID("FFE0", "0000ffe1-0000-1000-8000-00805f9b34fb")
	require.NoError(t, err)
	assert.Equal(t, []string{"ffe0", "ffe1"}, got)

	_, err = ValidateUUID()
	assert.Error(t, err)

	_, err = ValidateUUID("ffe0", "")
	assert.ErrorContains(t, err, "index 1 cannot be empty")

	_, err = ValidateUUID("zzzz")
	assert.ErrorContains(t, err, "invalid UUID format")

	_, err = ValidateUUID("ffe")
	assert.ErrorContains(t, err, "invalid UUID format")
}
