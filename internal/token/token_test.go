package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	tok, err := Generate()
	require.NoError(t, err)
	assert.Len(t, tok, DefaultLength)
	assert.True(t, Valid(tok), "token %q should be alphanumeric", tok)
}

func TestGenerateN(t *testing.T) {
	tests := []struct {
		name    string
		n       int
		wantErr bool
	}{
		{name: "minimum", n: MinLength},
		{name: "longer", n: 64},
		{name: "too short", n: 16, wantErr: true},
		{name: "zero", n: 0, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok, err := GenerateN(tt.n)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, tok, tt.n)
			assert.True(t, Valid(tok))
		})
	}
}

func TestGenerateIsUnique(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for range 1000 {
		tok, err := Generate()
		require.NoError(t, err)
		_, dup := seen[tok]
		require.False(t, dup, "duplicate token generated")
		seen[tok] = struct{}{}
	}
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("abcdefghijklmnopqrstuvwxyzABCDEF"))
	assert.False(t, Valid("short"))
	assert.False(t, Valid("abcdefghijklmnopqrstuvwxyzABCDE-"))
	assert.False(t, Valid("abcdefghijklmnopqrstuvwxyzABCDE "))
}
