package testutils

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// recordingT captures reported failures.
type recordingT struct {
	failures []string
}

func (r *recordingT) Helper() {}

func (r *recordingT) Errorf(format string, args ...interface{}) {
	r.failures = append(r.failures, fmt.Sprintf(format, args...))
}

func TestJSONAsserter_Defaults(t *testing.T) {
	ja := NewJSONAsserter(t)

	assert.True(t, ja.options.IgnoreExtraKeys)
	assert.True(t, ja.options.AllowPresencePlaceholder)
	assert.Empty(t, ja.options.IgnoredFields)
}

func TestJSONAsserter_Diff(t *testing.T) {
	tests := []struct {
		name     string
		opts     []JSONOption
		actual   string
		expected string
		match    bool
	}{
		{
			name:     "equal objects",
			actual:   `{"address":"AA","rssi":-50}`,
			expected: `{"rssi":-50,"address":"AA"}`,
			match:    true,
		},
		{
			name:     "root array",
			actual:   `[{"address":"AA"},{"address":"BB"}]`,
			expected: `[{"address":"AA"},{"address":"BB"}]`,
			match:    true,
		},
		{
			name:     "array order matters",
			actual:   `[{"address":"BB"},{"address":"AA"}]`,
			expected: `[{"address":"AA"},{"address":"BB"}]`,
			match:    false,
		},
		{
			name:     "extra keys ignored",
			actual:   `[{"address":"AA","last_seen":"2024-01-01T00:00:00Z"}]`,
			expected: `[{"address":"AA"}]`,
			match:    true,
		},
		{
			name:     "extra keys reported when strict",
			opts:     []JSONOption{WithIgnoreExtraKeys(false)},
			actual:   `{"address":"AA","rssi":-50}`,
			expected: `{"address":"AA"}`,
			match:    false,
		},
		{
			name:     "presence placeholder",
			actual:   `{"address":"AA","last_seen":"2024-01-01T00:00:00Z"}`,
			expected: `{"address":"AA","last_seen":"<<PRESENCE>>"}`,
			match:    true,
		},
		{
			name:     "presence placeholder requires the key",
			actual:   `{"address":"AA"}`,
			expected: `{"address":"AA","last_seen":"<<PRESENCE>>"}`,
			match:    false,
		},
		{
			name:     "ignored fields",
			opts:     []JSONOption{WithIgnoreExtraKeys(false), WithIgnoredFields("last_seen")},
			actual:   `{"address":"AA","last_seen":"now"}`,
			expected: `{"address":"AA","last_seen":"then"}`,
			match:    true,
		},
		{
			name:     "value mismatch",
			actual:   `{"rssi":-60}`,
			expected: `{"rssi":-50}`,
			match:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diff := NewJSONAsserter(t, tt.opts...).Diff(tt.actual, tt.expected)
			if tt.match {
				assert.Empty(t, diff)
			} else {
				assert.NotEmpty(t, diff)
			}
		})
	}
}

func TestJSONAsserter_AssertReportsFailure(t *testing.T) {
	rt := &recordingT{}

	ok := NewJSONAsserter(rt).Assert(`{"rssi":-60}`, `{"rssi":-50}`)

	assert.False(t, ok)
	assert.Len(t, rt.failures, 1)
	assert.Contains(t, rt.failures[0], "JSON assertion failed")
}

func TestJSONAsserter_InvalidInput(t *testing.T) {
	ja := NewJSONAsserter(t)

	assert.Contains(t, ja.Diff(`{`, `{}`), "invalid actual JSON")
	assert.Contains(t, ja.Diff(`{}`, `[`), "invalid expected JSON")
}
