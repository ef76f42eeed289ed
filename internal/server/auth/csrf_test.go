package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCSRFToken(t *testing.T) {
	a, err := NewCSRFToken()
	require.NoError(t, err)
	b, err := NewCSRFToken()
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
}

func TestCSRFMatches(t *testing.T) {
	tests := []struct {
		name           string
		cookie, header string
		want           bool
	}{
		{"equal", "abc", "abc", true},
		{"different", "abc", "abd", false},
		{"different length", "abc", "abcd", false},
		{"missing cookie", "", "abc", false},
		{"missing header", "abc", "", false},
		{"both missing", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CSRFMatches(tt.cookie, tt.header))
		})
	}
}
