package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReferralCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code, err := NewReferralCode()
		require.NoError(t, err)
		assert.Len(t, code, RefCodeLength)
		// Only uppercase letters and digits
		for _, r := range code {
			assert.True(t, strings.ContainsRune(refCodeAlphabet, r), "unexpected character %q in %s", r, code)
		}
		seen[code] = true
	}
	// 100 draws from a 36^8 space should never all collide
	assert.Greater(t, len(seen), 1)
}
